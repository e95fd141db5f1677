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

// Package neighbor is the typed external configuration surface (spec.md
// §6 "config tree"): an already-validated description of one BGP session
// to establish. No parser lives here — the process embedding this module
// is responsible for producing a Neighbor from whatever configuration
// format it uses (spec.md's explicit Non-goal).
package neighbor

import (
	"net/netip"
	"time"

	"github.com/coreswitch/bgpspeak/afi"
)

// Neighbor fully describes one configured peering.
type Neighbor struct {
	Name string // free-form identifier used in logs and the event stream

	LocalASN, PeerASN uint32
	RouterID          netip.Addr

	PeerAddress netip.Addr
	PeerPort    int // 0 means the default (179)

	// LocalAddress, if valid, binds the outbound/listening socket to a
	// specific local address instead of letting the stack choose.
	LocalAddress netip.Addr

	Passive bool // only accept, never initiate TCP connections
	Multihop uint8 // eBGP multihop TTL; 0 means "don't set"

	// MD5Key, if non-empty, is installed as the TCP_MD5SIG secret for this
	// peer's socket (spec.md §4.5, SPEC_FULL.md §6.5).
	MD5Key string

	HoldTime     time.Duration
	ConnectRetry time.Duration
	IdleHoldTime time.Duration // time spent Idle before re-attempting Connect

	Families []afi.Family // advertised via Multiprotocol capability

	AddPath map[afi.Family]AddPathMode

	ExtendedMessage bool
	RouteRefresh    bool
	FourByteASN     bool
	AIGP            bool

	GracefulRestart     bool
	GracefulRestartTime time.Duration
	// GracefulRestartFamilies marks, per family, whether this speaker
	// claims to preserve forwarding state across a restart.
	GracefulRestartFamilies map[afi.Family]bool

	// APICommand, if set, names an external child process (spec.md §4.6)
	// whose stdout is parsed as route commands for this neighbor's
	// outbound RIB and whose lifecycle is supervised alongside the
	// session.
	APICommand []string
	APIRespawn bool
}

// AddPathMode mirrors capability.AddPathReceive/Send/Both for
// configuration purposes, without requiring neighbor to import
// capability and risk a future cycle.
type AddPathMode uint8

const (
	AddPathDisabled AddPathMode = 0
	AddPathReceive  AddPathMode = 1
	AddPathSend     AddPathMode = 2
	AddPathBoth     AddPathMode = 3
)

// Config is the top-level configuration tree: process-wide defaults plus
// the configured neighbors.
type Config struct {
	Defaults  Neighbor // fields neighbors fall back to when unset
	Neighbors []Neighbor
}

// Port returns n's effective TCP port, applying the BGP default.
func (n Neighbor) Port() int {
	if n.PeerPort != 0 {
		return n.PeerPort
	}
	return 179
}
