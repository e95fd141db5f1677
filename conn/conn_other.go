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

//go:build !linux

package conn

import (
	"errors"
	"net"
	"syscall"

	"github.com/coreswitch/bgpspeak/neighbor"
)

// socketControl is a no-op stub outside Linux: TCP_MD5SIG and per-socket
// TTL control are both Linux-specific mechanisms in this codebase (BSD
// and Darwin expose them through different, less uniform APIs this
// speaker doesn't target).
func socketControl(n *neighbor.Neighbor) func(string, string, syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		if n.Multihop > 0 || n.MD5Key != "" {
			return errors.New("conn: MD5/TTL socket options are only implemented on Linux")
		}
		return nil
	}
}

func classifyReadErr(err error) FailureReason {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureUnknown
}
