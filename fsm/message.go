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

package fsm

import (
	"time"

	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/attr"
	"github.com/coreswitch/bgpspeak/change"
	"github.com/coreswitch/bgpspeak/logging"
	"github.com/coreswitch/bgpspeak/negotiated"
	"github.com/coreswitch/bgpspeak/wire"
	"github.com/coreswitch/bgpspeak/wireerr"
)

// HandleMessage dispatches one inbound message per spec.md §4.4. A
// non-admissible message is an FSM violation: the session resets to Idle
// and the caller must send the returned NOTIFICATION before closing the
// connection (spec.md I4).
func (f *FSM) HandleMessage(msg wire.Message) ([]wire.Message, *wireerr.Error) {
	if !admissible(f.state, msg.Type()) {
		err := wireerr.FSM("message type " + wire.TypeName(msg.Type()) + " not admissible in " + f.state.String())
		f.resetToIdle()
		return []wire.Message{wire.FromError(err)}, err
	}

	switch m := msg.(type) {
	case wire.OpenMessage:
		return f.handleOpen(m)
	case wire.KeepaliveMessage:
		return f.handleKeepalive()
	case wire.NotificationMessage:
		f.stats.LastError = wireerr.New(m.Code, m.Sub, "").Error()
		f.resetToIdle()
		return nil, nil
	case wire.UpdateMessage:
		return f.handleUpdate(m)
	case wire.RouteRefreshMessage:
		return f.handleRouteRefresh(m)
	case wire.OperationalMessage:
		f.Logger.Info(logging.API, "operational message", logging.KV{"neighbor": f.Neighbor.Name, "category": m.Category, "subtype": m.SubType})
		return nil, nil
	default:
		return nil, nil
	}
}

// handleOpen is only reached in OpenSent — admissible() filters every
// other state before dispatch ever gets here.
func (f *FSM) handleOpen(o wire.OpenMessage) ([]wire.Message, *wireerr.Error) {
	if o.RouterID == f.localRouterID {
		err := wireerr.Open(wireerr.BadBGPIdentifier, "peer router-id matches local router-id")
		f.resetToIdle()
		return []wire.Message{wire.FromError(err)}, err
	}

	peerHold := time.Duration(o.HoldTime) * time.Second
	if peerHold != 0 && peerHold < minHoldTime {
		err := wireerr.Open(wireerr.UnacceptableHoldTime, "peer hold time below minimum")
		f.resetToIdle()
		return []wire.Message{wire.FromError(err)}, err
	}

	local := negotiated.Side{
		ASN:          f.Neighbor.LocalASN,
		RouterID:     f.localRouterID,
		HoldTime:     uint16(f.localHoldTime / time.Second),
		Capabilities: f.localCapabilities(),
	}
	peer := negotiated.Side{
		ASN:          o.ASN,
		RouterID:     o.RouterID,
		HoldTime:     o.HoldTime,
		Capabilities: o.Capabilities,
	}
	f.negotiated = negotiated.Build(local, peer)
	f.stats.LocalASN = local.ASN
	f.stats.PeerASN = peer.ASN
	f.stats.HoldTime = time.Duration(f.negotiated.HoldTime) * time.Second

	opOpen := o
	f.peerOpen = &opOpen

	f.holdDeadline = f.nextHoldDeadline()
	f.keepaliveDeadline = f.nextKeepaliveDeadline()
	f.transition(OpenConfirm)

	return []wire.Message{wire.KeepaliveMessage{}}, nil
}

func (f *FSM) handleKeepalive() ([]wire.Message, *wireerr.Error) {
	switch f.state {
	case OpenConfirm:
		f.resetBackoff()
		f.stats.Established++
		f.transition(Established)
		f.eorSent = map[afi.Family]bool{}
		f.eorReceived = map[afi.Family]bool{}
		return f.initialEndOfRIB(), nil
	case Established:
		f.holdDeadline = f.nextHoldDeadline()
		return nil, nil
	default:
		err := wireerr.FSM("unexpected KEEPALIVE")
		f.resetToIdle()
		return []wire.Message{wire.FromError(err)}, err
	}
}

// initialEndOfRIB emits an End-of-RIB marker for every negotiated family
// on reaching Established, as required when Graceful-Restart is in play
// and harmless otherwise (SPEC_FULL.md §7).
func (f *FSM) initialEndOfRIB() []wire.Message {
	var out []wire.Message
	for fam := range f.negotiated.Families {
		out = append(out, wire.EndOfRIB(fam))
		f.eorSent[fam] = true
	}
	return out
}

func (f *FSM) nextHoldDeadline() time.Time {
	if f.negotiated.HoldTime == 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(f.negotiated.HoldTime) * time.Second)
}

func (f *FSM) nextKeepaliveDeadline() time.Time {
	if f.negotiated.KeepaliveTime == 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(f.negotiated.KeepaliveTime) * time.Second)
}

func (f *FSM) handleUpdate(u wire.UpdateMessage) ([]wire.Message, *wireerr.Error) {
	f.holdDeadline = f.nextHoldDeadline()

	for _, c := range updateToChanges(u) {
		f.RIBIn.Insert(c, f.negotiated)
	}

	for fam, isEOR := range eorFamilies(u) {
		if isEOR {
			f.RIBIn.ClearStale(fam)
			f.eorReceived[fam] = true
		}
	}
	return nil, nil
}

func (f *FSM) handleRouteRefresh(r wire.RouteRefreshMessage) ([]wire.Message, *wireerr.Error) {
	if f.negotiated.RouteRefresh {
		f.RIBOut.Requeue(r.Family)
	}
	return nil, nil
}

// updateToChanges converts one decoded UPDATE into the Change values it
// carries: classic withdrawn/NLRI entries use the shared attribute set
// as-is, MP_REACH_NLRI's entries take the collection with that attribute
// removed (it is a wire-only carrier, not semantic route state), and
// MP_UNREACH_NLRI's entries are withdrawals (spec.md §4.1.3 / RFC 4760).
func updateToChanges(u wire.UpdateMessage) []change.Change {
	var out []change.Change
	for _, n := range u.Withdrawn {
		out = append(out, change.Withdraw(n))
	}
	if len(u.NLRI) > 0 {
		classic := u.Attrs.Without(attr.MPReachNLRI).Without(attr.MPUnreachNLRI)
		for _, n := range u.NLRI {
			out = append(out, change.Announce(n, classic))
		}
	}
	if a, ok := u.Attrs.Get(attr.MPReachNLRI); ok {
		mp := a.(attr.MPReachAttr)
		rest := u.Attrs.Without(attr.MPReachNLRI)
		for _, n := range mp.NLRIs {
			out = append(out, change.Announce(n, rest))
		}
	}
	if a, ok := u.Attrs.Get(attr.MPUnreachNLRI); ok {
		mp := a.(attr.MPUnreachAttr)
		for _, n := range mp.NLRIs {
			out = append(out, change.Withdraw(n))
		}
	}
	return out
}

// eorFamilies reports, per family this UPDATE is End-of-RIB for, whether
// it actually is one — at most one entry, since a single UPDATE carries
// at most one family's EOR marker.
func eorFamilies(u wire.UpdateMessage) map[afi.Family]bool {
	out := map[afi.Family]bool{}
	if u.IsEndOfRIB() {
		out[afi.IPv4Unicast] = true
		return out
	}
	if a, ok := u.Attrs.Get(attr.MPUnreachNLRI); ok {
		if mp, ok := a.(attr.MPUnreachAttr); ok && len(mp.NLRIs) == 0 {
			out[mp.Family] = true
		}
	}
	return out
}
