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

// Package negotiated builds the session-scoped Negotiated context
// (spec.md §3, "Negotiated") from the capability sets exchanged in OPEN.
// It is produced once, on OPEN-exchange completion, and carried alongside
// every codec invocation for the life of the session (spec.md §5:
// "Negotiated publication is totally ordered with respect to message
// processing: no Established-state handler observes a half-built
// Negotiated").
package negotiated

import (
	"net/netip"

	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/capability"
)

// AddPathDirection records whether ADD-PATH is enabled for a family in
// the send direction, the receive direction, or both, per peer.
type AddPathDirection struct {
	Receive bool
	Send    bool
}

// Negotiated is immutable once built.
type Negotiated struct {
	LocalASN, PeerASN     uint32
	FourByteASN           bool
	ExtendedMessage       bool
	RouteRefresh          bool
	Operational           bool
	AIGP                   bool
	ExtendedNextHop       map[afi.Family]bool

	// Families is the effective AFI/SAFI set for the session: the
	// intersection of what each side announced via Multiprotocol
	// capability. A side that announced no Multiprotocol capability at all
	// counts as announcing IPv4-unicast only, per RFC 4271 legacy behaviour.
	Families map[afi.Family]bool

	// AddPath is keyed by family; absent entries mean ADD-PATH disabled.
	AddPath map[afi.Family]AddPathDirection

	GracefulRestart        bool
	GracefulRestartTime    uint16
	GracefulRestartFamilies map[afi.Family]bool // forwarding-state preserved on restart

	HoldTime      uint16
	KeepaliveTime uint16

	LocalRouterID, PeerRouterID netip.Addr
}

// MaxMessageSize returns the negotiated message size ceiling (spec.md
// §4.1.1: 4096 by default, 65535 with Extended-Message).
func (n *Negotiated) MaxMessageSize() int {
	if n.ExtendedMessage {
		return 65535
	}
	return 4096
}

// AddPathEnabled reports whether path identifiers are carried on the wire
// for f in the given direction (send=true for outbound encode, false for
// inbound decode).
func (n *Negotiated) AddPathEnabled(f afi.Family, send bool) bool {
	d, ok := n.AddPath[f]
	if !ok {
		return false
	}
	if send {
		return d.Send
	}
	return d.Receive
}

// FamilyEnabled reports whether f is in the session's negotiated family
// set (spec.md invariant I3: "An UPDATE emitted outbound contains only
// families in the session's Negotiated family set").
func (n *Negotiated) FamilyEnabled(f afi.Family) bool {
	return n.Families[f]
}

// Side is one direction's advertised capability set, used as input to
// Build.
type Side struct {
	ASN          uint32
	RouterID     netip.Addr
	HoldTime     uint16
	Capabilities []capability.Capability
}

// Build intersects local and peer capability sets into the Negotiated
// context that governs the rest of the session (spec.md §3 "Negotiated").
// Capabilities neither side announced are left at their zero/disabled
// value; unknown capabilities (capability.Unknown) are never folded in,
// matching spec.md §4.1.4.
func Build(local, peer Side) *Negotiated {
	n := &Negotiated{
		LocalASN:      local.ASN,
		PeerASN:       peer.ASN,
		LocalRouterID: local.RouterID,
		PeerRouterID:  peer.RouterID,
		Families:      map[afi.Family]bool{},
		AddPath:       map[afi.Family]AddPathDirection{},
		ExtendedNextHop: map[afi.Family]bool{},
		GracefulRestartFamilies: map[afi.Family]bool{},
	}

	localFamilies := map[afi.Family]bool{}
	peerFamilies := map[afi.Family]bool{}
	localMP := false
	peerMP := false

	scan := func(caps []capability.Capability, families map[afi.Family]bool, mp *bool) (fourByte bool, extMsg bool, rr bool, op bool, aigp bool, gr capability.GracefulRestartCap, hasGR bool, addpath []capability.AddPathEntry, xnh []capability.ExtendedNextHopEntry) {
		for _, c := range caps {
			switch v := c.(type) {
			case capability.MultiprotocolCap:
				families[afi.Get(afi.AFI(v.AFI), afi.SAFI(v.SAFI))] = true
				*mp = true
			case capability.FourByteASNCap:
				fourByte = true
			case capability.ExtendedMessageCap:
				extMsg = true
			case capability.RouteRefreshCap:
				rr = true
			case capability.OperationalCap:
				op = true
			case capability.AIGPCap:
				aigp = true
			case capability.GracefulRestartCap:
				gr = v
				hasGR = true
			case capability.AddPathCap:
				addpath = append(addpath, v.Entries...)
			case capability.ExtendedNextHopCap:
				xnh = append(xnh, v.Entries...)
			}
		}
		return
	}

	lFourByte, lExtMsg, lRR, lOp, lAIGP, lGR, lHasGR, lAddPath, lXNH := scan(local.Capabilities, localFamilies, &localMP)
	pFourByte, pExtMsg, pRR, pOp, pAIGP, pGR, pHasGR, pAddPath, pXNH := scan(peer.Capabilities, peerFamilies, &peerMP)

	n.FourByteASN = lFourByte && pFourByte
	n.ExtendedMessage = lExtMsg && pExtMsg
	n.RouteRefresh = lRR && pRR
	n.Operational = lOp && pOp
	n.AIGP = lAIGP && pAIGP

	// A legacy side announces IPv4 unicast implicitly (RFC 4271, pre RFC 2858).
	if !localMP {
		localFamilies[afi.IPv4Unicast] = true
	}
	if !peerMP {
		peerFamilies[afi.IPv4Unicast] = true
	}
	for f := range localFamilies {
		if peerFamilies[f] {
			n.Families[f] = true
		}
	}

	// Add-Path is per (AFI,SAFI): a peer's "receive" declaration for a
	// family enables *our* send for that family, and vice versa.
	localAP := map[afi.Family]uint8{}
	for _, e := range lAddPath {
		localAP[afi.Get(afi.AFI(e.AFI), afi.SAFI(e.SAFI))] = e.Mode
	}
	peerAP := map[afi.Family]uint8{}
	for _, e := range pAddPath {
		peerAP[afi.Get(afi.AFI(e.AFI), afi.SAFI(e.SAFI))] = e.Mode
	}
	for f := range n.Families {
		lm, lok := localAP[f]
		pm, pok := peerAP[f]
		if !lok && !pok {
			continue
		}
		d := AddPathDirection{}
		if lok && (lm == capability.AddPathSend || lm == capability.AddPathBoth) && pok && (pm == capability.AddPathReceive || pm == capability.AddPathBoth) {
			d.Send = true
		}
		if pok && (pm == capability.AddPathSend || pm == capability.AddPathBoth) && lok && (lm == capability.AddPathReceive || lm == capability.AddPathBoth) {
			d.Receive = true
		}
		if d.Send || d.Receive {
			n.AddPath[f] = d
		}
	}

	for _, e := range lXNH {
		if pHasXNH(pXNH, e) {
			n.ExtendedNextHop[afi.Get(afi.AFI(e.NLRIAFI), afi.SAFI(e.NLRISAFI))] = true
		}
	}

	if lHasGR && pHasGR {
		n.GracefulRestart = true
		if pGR.RestartTime < lGR.RestartTime || lGR.RestartTime == 0 {
			n.GracefulRestartTime = pGR.RestartTime
		} else {
			n.GracefulRestartTime = lGR.RestartTime
		}
		pf := map[afi.Family]bool{}
		for _, f := range pGR.Families {
			pf[afi.Get(afi.AFI(f.AFI), afi.SAFI(f.SAFI))] = f.Forward
		}
		for _, f := range lGR.Families {
			fam := afi.Get(afi.AFI(f.AFI), afi.SAFI(f.SAFI))
			if pf[fam] {
				n.GracefulRestartFamilies[fam] = true
			}
		}
	}

	n.HoldTime = local.HoldTime
	if peer.HoldTime < n.HoldTime {
		n.HoldTime = peer.HoldTime
	}
	if n.HoldTime > 0 {
		n.KeepaliveTime = n.HoldTime / 3
	}

	return n
}

func pHasXNH(entries []capability.ExtendedNextHopEntry, e capability.ExtendedNextHopEntry) bool {
	for _, x := range entries {
		if x.NLRIAFI == e.NLRIAFI && x.NLRISAFI == e.NLRISAFI && x.NextHopAFI == e.NextHopAFI {
			return true
		}
	}
	return false
}
