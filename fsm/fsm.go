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

// Package fsm implements the per-peer BGP finite state machine (spec.md
// §4.4): six states, the RFC 4271 §8 transition table, per-state message
// admissibility, ConnectRetry/Hold/Keepalive/IdleHold timers, collision
// detection and Graceful-Restart stale handling. It is driven entirely by
// method calls from the reactor's single event loop — the FSM itself
// never touches a socket or starts a goroutine, mirroring the teacher's
// session.go/try() shape but with I/O pulled out into the caller so one
// event loop can own every peer (SPEC_FULL.md §6.7).
package fsm

import (
	"net/netip"
	"time"

	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/capability"
	"github.com/coreswitch/bgpspeak/logging"
	"github.com/coreswitch/bgpspeak/negotiated"
	"github.com/coreswitch/bgpspeak/neighbor"
	"github.com/coreswitch/bgpspeak/rib"
	"github.com/coreswitch/bgpspeak/wire"
	"github.com/coreswitch/bgpspeak/wireerr"
)

// State is one of the six BGP session states (RFC 4271 §8).
type State uint8

const (
	Idle State = iota
	Active
	Connect
	OpenSent
	OpenConfirm
	Established
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Active:
		return "Active"
	case Connect:
		return "Connect"
	case OpenSent:
		return "OpenSent"
	case OpenConfirm:
		return "OpenConfirm"
	case Established:
		return "Established"
	default:
		return "Unknown"
	}
}

// minHoldTime is the floor RFC 4271 §4.2 implies for any advertised hold
// time below 3 seconds (either 0 — meaning disabled — or >=3); the
// teacher's session.go rounds anything under 3 up to 10.
const minHoldTime = 3 * time.Second

// largeOpenWaitHold is the generous hold time armed for OpenSent, before a
// negotiated value exists (spec.md §4.4: "HoldTimer_Large (4 min
// default)").
const largeOpenWaitHold = 4 * time.Minute

const maxIdleHoldBackoff = 2 * time.Minute

// Stats mirrors the teacher's Status struct's counters, exposed for the
// API/introspection surface rather than governing behaviour itself.
type Stats struct {
	Attempts     uint64
	Connections  uint64
	Established  uint64
	LastError    string
	Since        time.Time
	HoldTime     time.Duration
	LocalASN     uint32
	PeerASN      uint32
}

// FSM is one peer's state machine. All fields are owned by the single
// event loop driving it; no internal locking is needed (spec.md §5).
type FSM struct {
	Neighbor *neighbor.Neighbor
	RIBIn    *rib.RIB
	RIBOut   *rib.RIB
	Logger   logging.Logger

	state State
	since time.Time

	negotiated *negotiated.Negotiated

	localRouterID netip.Addr
	localHoldTime time.Duration

	peerOpen *wire.OpenMessage // the peer's OPEN, retained through OpenConfirm for collision checks

	connectRetryDeadline time.Time
	holdDeadline         time.Time
	keepaliveDeadline    time.Time
	idleHoldDeadline     time.Time
	idleHoldBackoff      time.Duration

	eorSent     map[afi.Family]bool
	eorReceived map[afi.Family]bool

	stats Stats
}

// New builds an FSM in Idle for n, reading/writing the given RIB pair.
func New(n *neighbor.Neighbor, ribIn, ribOut *rib.RIB, logger logging.Logger) *FSM {
	if logger == nil {
		logger = logging.Nil{}
	}
	return &FSM{
		Neighbor: n,
		RIBIn:    ribIn,
		RIBOut:   ribOut,
		Logger:   logger,
		state:    Idle,
		since:    time.Time{},
	}
}

func (f *FSM) State() State { return f.state }

func (f *FSM) Stats() Stats {
	s := f.stats
	s.Since = f.since
	return s
}

func (f *FSM) Negotiated() *negotiated.Negotiated { return f.negotiated }

func (f *FSM) transition(s State) {
	f.state = s
	f.since = time.Now()
	f.Logger.Info(logging.Network, "fsm state transition", logging.KV{"neighbor": f.Neighbor.Name, "state": s.String()})
}

// holdTimeFloor applies the teacher's "anything under 3s becomes
// effectively usable" rule: 0 (unset) yields the 90s default, and
// anything from 1s up to just under 3s is raised to minHoldTime.
func (f *FSM) holdTimeFloor() time.Duration {
	h := f.Neighbor.HoldTime
	if h == 0 {
		return 90 * time.Second
	}
	if h < minHoldTime {
		return minHoldTime
	}
	return h
}

// Open is called by the reactor to begin a session attempt from Idle: it
// starts active TCP open (Connect) unless the neighbor is passive-only,
// in which case it waits for an inbound connection (Active). Calling it
// from any state other than Idle is a no-op.
func (f *FSM) Open() {
	if f.state != Idle {
		return
	}
	f.localHoldTime = f.holdTimeFloor()
	if f.Neighbor.Passive {
		f.transition(Active)
		return
	}
	f.armConnectRetry()
	f.transition(Connect)
}

func (f *FSM) armConnectRetry() {
	cr := f.Neighbor.ConnectRetry
	if cr == 0 {
		cr = 120 * time.Second
	}
	f.connectRetryDeadline = time.Now().Add(cr)
	f.stats.Attempts++
}

// InboundConnection is called when a passive neighbor accepts an inbound
// TCP connection while Active.
func (f *FSM) InboundConnection() {
	if f.state != Active {
		return
	}
	f.transition(Connect)
}

// TCPEstablished is called once the TCP handshake completes (outbound
// Connect succeeding, or inbound accept while Active having already moved
// to Connect). It produces the OPEN to send and arms the large
// pre-negotiation hold timer.
func (f *FSM) TCPEstablished(localRouterID netip.Addr) wire.OpenMessage {
	f.localRouterID = localRouterID
	f.stats.Connections++
	f.holdDeadline = time.Now().Add(largeOpenWaitHold)
	f.transition(OpenSent)

	open := wire.OpenMessage{
		Version:      4,
		ASN:          f.Neighbor.LocalASN,
		HoldTime:     uint16(f.localHoldTime / time.Second),
		RouterID:     localRouterID,
		Capabilities: f.localCapabilities(),
	}
	return open
}

func (f *FSM) localCapabilities() []capability.Capability {
	n := f.Neighbor
	var caps []capability.Capability
	for _, fam := range n.Families {
		caps = append(caps, capability.MultiprotocolCap{AFI: uint16(fam.AFI()), SAFI: uint8(fam.SAFI())})
	}
	if len(n.Families) == 0 {
		caps = append(caps, capability.MultiprotocolCap{AFI: uint16(afi.IPv4), SAFI: uint8(afi.Unicast)})
	}
	if n.FourByteASN || n.LocalASN > 0xffff {
		caps = append(caps, capability.FourByteASNCap{ASN: n.LocalASN})
	}
	if n.RouteRefresh {
		caps = append(caps, capability.RouteRefreshCap{})
	}
	if n.ExtendedMessage {
		caps = append(caps, capability.ExtendedMessageCap{})
	}
	if n.AIGP {
		caps = append(caps, capability.AIGPCap{})
	}
	if n.GracefulRestart {
		gr := capability.GracefulRestartCap{RestartTime: uint16(n.GracefulRestartTime / time.Second)}
		for fam, forward := range n.GracefulRestartFamilies {
			gr.Families = append(gr.Families, capability.GracefulRestartFamily{AFI: uint16(fam.AFI()), SAFI: uint8(fam.SAFI()), Forward: forward})
		}
		caps = append(caps, gr)
	}
	var apEntries []capability.AddPathEntry
	for fam, mode := range n.AddPath {
		if mode == neighbor.AddPathDisabled {
			continue
		}
		apEntries = append(apEntries, capability.AddPathEntry{AFI: uint16(fam.AFI()), SAFI: uint8(fam.SAFI()), Mode: uint8(mode)})
	}
	if len(apEntries) > 0 {
		caps = append(caps, capability.AddPathCap{Entries: apEntries})
	}
	return caps
}

// TCPFailed is called when the active open attempt fails (refused,
// timeout, reset) or an open connection ends. A failed open in Connect
// moves to Active and arms ConnectRetry again; a connection lost in any
// other state resets to Idle and arms the IdleHold back-off (spec.md
// §4.4: "IdleHoldTimer armed with exponential back-off (capped)").
func (f *FSM) TCPFailed(reason string) {
	f.stats.LastError = reason
	f.Logger.Warn(logging.Network, "tcp connect failed", logging.KV{"neighbor": f.Neighbor.Name, "reason": reason})
	if f.state == Connect {
		f.armConnectRetry()
		f.transition(Active)
		return
	}
	f.resetToIdle()
	f.armIdleHold()
}

func (f *FSM) armIdleHold() {
	if f.idleHoldBackoff == 0 {
		f.idleHoldBackoff = f.Neighbor.IdleHoldTime
		if f.idleHoldBackoff == 0 {
			f.idleHoldBackoff = time.Second
		}
	} else {
		f.idleHoldBackoff *= 2
		if f.idleHoldBackoff > maxIdleHoldBackoff {
			f.idleHoldBackoff = maxIdleHoldBackoff
		}
	}
	f.idleHoldDeadline = time.Now().Add(f.idleHoldBackoff)
}

// resetBackoff clears the exponential back-off once a session reaches
// Established, so the next failure starts from the configured base again.
func (f *FSM) resetBackoff() {
	f.idleHoldBackoff = 0
}

// resetToIdle is the common teardown path: clears negotiated state and
// per-family EOR bookkeeping, preserves Adj-RIB-In if Graceful-Restart was
// negotiated (marking it stale instead of discarding), and lands in Idle.
func (f *FSM) resetToIdle() {
	if f.negotiated != nil && f.negotiated.GracefulRestart {
		for fam := range f.negotiated.GracefulRestartFamilies {
			f.RIBIn.MarkStale(fam)
		}
	} else if f.negotiated != nil {
		f.RIBIn.Clear()
	}
	f.negotiated = nil
	f.peerOpen = nil
	f.eorSent = nil
	f.eorReceived = nil
	f.transition(Idle)
}

// IdleHoldExpired is called by the reactor when the IdleHold timer fires;
// it re-enters Open()'s logic to retry the connection.
func (f *FSM) IdleHoldExpired() {
	if f.state != Idle {
		return
	}
	f.Open()
}

// ConnectRetryExpired is called when ConnectRetry fires in Connect or
// Active: it re-arms the timer and (for an active neighbor) signals the
// caller to retry the TCP dial by returning to Connect.
func (f *FSM) ConnectRetryExpired() {
	if f.state != Connect && f.state != Active {
		return
	}
	if f.Neighbor.Passive {
		return
	}
	f.armConnectRetry()
	f.transition(Connect)
}
