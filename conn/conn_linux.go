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

//go:build linux

package conn

import (
	"errors"
	"net"
	"net/netip"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/coreswitch/bgpspeak/neighbor"
)

// socketControl builds a net.Dialer.Control callback that applies
// whatever of eBGP multihop TTL and TCP MD5 (RFC 2385) n requires, before
// the TCP handshake's SYN ever leaves the socket — both must be set
// pre-connect to take effect.
func socketControl(n *neighbor.Neighbor) func(string, string, syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		var opErr error
		err := c.Control(func(fd uintptr) {
			if n.Multihop > 0 {
				if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TTL, int(n.Multihop)); e != nil {
					opErr = e
					return
				}
			}
			if n.MD5Key != "" {
				if e := setMD5Sig(int(fd), n.PeerAddress, n.Port(), n.MD5Key); e != nil {
					opErr = e
					return
				}
			}
		})
		if err != nil {
			return err
		}
		return opErr
	}
}

// setMD5Sig installs peer's TCP MD5 signature secret on fd via
// TCP_MD5SIG (RFC 2385, Linux-specific socket option). prefixlen 0 with
// the full address set matches only that exact peer, mirroring the
// kernel's own single-peer TCP_MD5SIG semantics pre TCP-AO.
func setMD5Sig(fd int, peer netip.Addr, port int, key string) error {
	if len(key) > unix.TCP_MD5SIG_MAXKEYLEN {
		return errors.New("conn: MD5 key exceeds TCP_MD5SIG_MAXKEYLEN")
	}
	var sig unix.TCPMD5Sig
	sig.Keylen = uint16(len(key))
	copy(sig.Key[:], key)

	// TCPMD5Sig.Addr is a generic sockaddr_storage; for an IPv4 peer its
	// Data field holds sin_port then sin_addr, the bytes that follow
	// sin_family in struct sockaddr_in.
	sig.Addr.Family = unix.AF_INET
	sig.Addr.Data[0] = byte(port >> 8) // sin_port is network (big-endian) order
	sig.Addr.Data[1] = byte(port)
	addr4 := peer.As4()
	copy(sig.Addr.Data[2:6], addr4[:])

	return unix.SetsockoptTCPMD5Sig(fd, unix.IPPROTO_TCP, unix.TCP_MD5SIG, &sig)
}

func classifyReadErr(err error) FailureReason {
	var serr syscall.Errno
	if errors.As(err, &serr) {
		switch serr {
		case syscall.ECONNREFUSED:
			return FailureRefused
		case syscall.ETIMEDOUT:
			return FailureTimeout
		case syscall.ECONNRESET, syscall.EPIPE:
			return FailureReset
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureUnknown
}
