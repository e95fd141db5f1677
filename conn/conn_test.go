/*
 * BGP speaker core. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package conn

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coreswitch/bgpspeak/neighbor"
	"github.com/coreswitch/bgpspeak/wire"
	"github.com/coreswitch/bgpspeak/wireerr"
)

func listenLoopback(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestDialAndFrameRoundTrip(t *testing.T) {
	ln, port := listenLoopback(t)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		require.NoError(t, err)
		accepted <- c
	}()

	n := &neighbor.Neighbor{
		PeerAddress: netip.MustParseAddr("127.0.0.1"),
		PeerPort:    port,
	}
	client, err := Dial(context.Background(), n, nil)
	require.NoError(t, err)
	defer client.Close()

	serverRaw := <-accepted
	defer serverRaw.Close()

	framed, err := wire.Encode(wire.KeepaliveMessage{}, nil, wire.DefaultMaxMessageSize)
	require.NoError(t, err)
	_, err = serverRaw.Write(framed)
	require.NoError(t, err)

	select {
	case f := <-client.Frames():
		require.Equal(t, wire.TypeKeepalive, f.Header.Type)
		require.Empty(t, f.Body)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestSendDeliversBytes(t *testing.T) {
	ln, port := listenLoopback(t)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		require.NoError(t, err)
		accepted <- c
	}()

	n := &neighbor.Neighbor{
		PeerAddress: netip.MustParseAddr("127.0.0.1"),
		PeerPort:    port,
	}
	client, err := Dial(context.Background(), n, nil)
	require.NoError(t, err)
	defer client.Close()

	serverRaw := <-accepted
	defer serverRaw.Close()

	framed, err := wire.Encode(wire.KeepaliveMessage{}, nil, wire.DefaultMaxMessageSize)
	require.NoError(t, err)
	client.Send(framed)

	buf := make([]byte, len(framed))
	serverRaw.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = ioReadFull(serverRaw, buf)
	require.NoError(t, err)
	require.Equal(t, framed, buf)
}

func TestCloseUnblocksFrames(t *testing.T) {
	ln, port := listenLoopback(t)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		require.NoError(t, err)
		accepted <- c
	}()

	n := &neighbor.Neighbor{
		PeerAddress: netip.MustParseAddr("127.0.0.1"),
		PeerPort:    port,
	}
	client, err := Dial(context.Background(), n, nil)
	require.NoError(t, err)

	serverRaw := <-accepted
	defer serverRaw.Close()

	client.Close()

	select {
	case _, ok := <-client.Frames():
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not unblock Frames()")
	}
}

// TestBadMarkerReportsFramingFrame checks that a bad marker doesn't just
// silently kill the reader: it must surface as a Frame carrying Err (not
// close the socket itself), so the reactor still gets a chance to send
// the peer a NOTIFICATION before tearing the connection down.
func TestBadMarkerReportsFramingFrame(t *testing.T) {
	ln, port := listenLoopback(t)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		require.NoError(t, err)
		accepted <- c
	}()

	n := &neighbor.Neighbor{
		PeerAddress: netip.MustParseAddr("127.0.0.1"),
		PeerPort:    port,
	}
	client, err := Dial(context.Background(), n, nil)
	require.NoError(t, err)
	defer client.Close()

	serverRaw := <-accepted
	defer serverRaw.Close()

	bad := make([]byte, wire.HeaderSize)
	for i := range bad[:16] {
		bad[i] = 0x00 // every real marker byte must be 0xff
	}
	_, err = serverRaw.Write(bad)
	require.NoError(t, err)

	select {
	case f := <-client.Frames():
		require.NotNil(t, f.Err)
		require.Equal(t, uint8(wireerr.MessageHeaderError), f.Err.Code)
		require.Equal(t, uint8(wireerr.ConnectionNotSynchronized), f.Err.Sub)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for framing-error frame")
	}

	reason, ferr := client.Failure()
	require.Equal(t, FailureFraming, reason)
	require.Error(t, ferr)

	// The connection is still open until something calls Close(), the
	// same way the reactor waits to send a NOTIFICATION first.
	select {
	case <-client.Done():
		t.Fatal("Done closed before Close() was called")
	case <-time.After(50 * time.Millisecond):
	}

	client.Close()
	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done never closed after Close()")
	}
}

func ioReadFull(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
