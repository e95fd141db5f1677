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

package reactor

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coreswitch/bgpspeak/config"
	"github.com/coreswitch/bgpspeak/logging"
	"github.com/coreswitch/bgpspeak/neighbor"
)

func loopbackPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func awaitEstablished(t *testing.T, r *Reactor, name string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if st := r.Status()[name]; st.Established {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("neighbor %q never reached Established", name)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// TestSessionEstablishesOverLoopback runs two real Reactors end to end
// over a loopback TCP socket: one passive, one dialing in. Both sides
// should converge on Established purely by exchanging OPEN/KEEPALIVE
// through the real conn/wire stack, with no hand-crafted frames.
func TestSessionEstablishesOverLoopback(t *testing.T) {
	port := loopbackPort(t)
	loopback := netip.MustParseAddr("127.0.0.1")

	serverCfg := neighbor.Config{
		Neighbors: []neighbor.Neighbor{{
			Name:        "client",
			LocalASN:    65001,
			PeerASN:     65002,
			RouterID:    netip.MustParseAddr("10.0.0.1"),
			PeerAddress: loopback,
			Passive:     true,
			HoldTime:    90 * time.Second,
		}},
	}
	clientCfg := neighbor.Config{
		Neighbors: []neighbor.Neighbor{{
			Name:        "server",
			LocalASN:    65002,
			PeerASN:     65001,
			RouterID:    netip.MustParseAddr("10.0.0.2"),
			PeerAddress: loopback,
			PeerPort:    port,
			HoldTime:    90 * time.Second,
			ConnectRetry: time.Second,
		}},
	}

	server := New(serverCfg, config.Defaults(), logging.Nil{})
	require.NoError(t, server.Listen("127.0.0.1:"+strconv.Itoa(port)))
	client := New(clientCfg, config.Defaults(), logging.Nil{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	clientDone := make(chan error, 1)
	go func() { serverDone <- server.Run(ctx) }()
	go func() { clientDone <- client.Run(ctx) }()

	awaitEstablished(t, server, "client")
	awaitEstablished(t, client, "server")

	cancel()
	require.Equal(t, context.Canceled, <-serverDone)
	require.Equal(t, context.Canceled, <-clientDone)
}

// TestRunExitsAfterMaxCumulativeTCPFailures checks that a peer stuck
// dialing a closed port trips env.MaxCumulativeTCPFailures and that Run
// returns ErrMaxCumulativeTCPFailures instead of retrying forever.
func TestRunExitsAfterMaxCumulativeTCPFailures(t *testing.T) {
	closedPort := loopbackPort(t) // nothing is listening on this port once loopbackPort returns

	cfg := neighbor.Config{
		Neighbors: []neighbor.Neighbor{{
			Name:        "unreachable",
			LocalASN:    65001,
			PeerASN:     65099,
			RouterID:    netip.MustParseAddr("10.0.0.1"),
			PeerAddress: netip.MustParseAddr("127.0.0.1"),
			PeerPort:    closedPort,
			ConnectRetry: 10 * time.Millisecond,
			IdleHoldTime: 10 * time.Millisecond,
		}},
	}
	env := config.Defaults()
	env.MaxCumulativeTCPFailures = 3
	r := New(cfg, env, logging.Nil{})

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrMaxCumulativeTCPFailures)
	case <-time.After(10 * time.Second):
		t.Fatal("Run never exited after repeated TCP failures")
	}
}

// TestStatusReportsUnconnectedPassiveNeighborNotEstablished checks that a
// passive neighbor with no listener ever arms waits in Active rather than
// Established, exercising Status without a live session.
func TestStatusReportsUnconnectedPassiveNeighborNotEstablished(t *testing.T) {
	cfg := neighbor.Config{
		Neighbors: []neighbor.Neighbor{{
			Name:        "unreachable",
			LocalASN:    65001,
			PeerASN:     65099,
			RouterID:    netip.MustParseAddr("10.0.0.1"),
			PeerAddress: netip.MustParseAddr("127.0.0.1"),
			Passive:     true,
		}},
	}
	r := New(cfg, config.Defaults(), logging.Nil{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	defer cancel()

	time.Sleep(50 * time.Millisecond)
	st := r.Status()["unreachable"]
	require.False(t, st.Established)
}
