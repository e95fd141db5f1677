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
	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/attr"
	"github.com/coreswitch/bgpspeak/change"
	"github.com/coreswitch/bgpspeak/nlri"
	"github.com/coreswitch/bgpspeak/wire"
)

// NextOutbound drains at most one dirty family's worth of Adj-RIB-Out
// Changes into UPDATE messages, batching announcements that share the
// same packed attribute set (so, implicitly, the same next hop) into one
// message until it approaches the negotiated size ceiling (spec.md §4.4:
// "coalesce announcements sharing (nexthop, attribute-collection) into a
// single UPDATE... then flush"), and returns: a single call handles one
// family, not the whole Adj-RIB-Out. The reactor calls it repeatedly
// until it returns nothing, so this alone sets no per-turn limit.
func (f *FSM) NextOutbound() []wire.UpdateMessage {
	if f.state != Established {
		return nil
	}
	dirty := f.RIBOut.DirtyFamilies()
	if len(dirty) == 0 {
		return nil
	}
	fam := dirty[0]
	if !f.negotiated.FamilyEnabled(fam) {
		// Configured but not negotiated for this peer: drop silently by
		// draining without transmitting (nothing else will ever want it).
		f.RIBOut.Queued(fam)
		return nil
	}

	changes := f.RIBOut.Queued(fam)
	msgs := batchFamily(fam, changes, f.negotiated.MaxMessageSize())

	for _, c := range changes {
		f.RIBOut.Flush(c)
	}
	return msgs
}

type group struct {
	key   string
	attrs attr.Collection
	nlris []nlri.NLRI
}

func batchFamily(fam afi.Family, changes []change.Change, maxSize int) []wire.UpdateMessage {
	var withdrawals []nlri.NLRI
	var groups []*group
	byKey := map[string]*group{}

	for _, c := range changes {
		if c.Withdrawn {
			withdrawals = append(withdrawals, c.NLRI)
			continue
		}
		key := string(c.Attrs.Pack(nil))
		g, ok := byKey[key]
		if !ok {
			g = &group{key: key, attrs: c.Attrs}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.nlris = append(g.nlris, c.NLRI)
	}

	var out []wire.UpdateMessage
	if fam == afi.IPv4Unicast {
		out = append(out, batchClassic(withdrawals, groups, maxSize)...)
	} else {
		out = append(out, batchMP(fam, withdrawals, groups, maxSize)...)
	}
	return out
}

// batchClassic builds UPDATEs for the classic IPv4-unicast encoding,
// where both withdrawn routes and NLRI ride in the message's dedicated
// fields rather than inside MP attributes.
func batchClassic(withdrawals []nlri.NLRI, groups []*group, maxSize int) []wire.UpdateMessage {
	var out []wire.UpdateMessage
	for len(withdrawals) > 0 {
		n := fittingCount(len(withdrawals), maxSize)
		out = append(out, wire.UpdateMessage{Withdrawn: withdrawals[:n]})
		withdrawals = withdrawals[n:]
	}
	for _, g := range groups {
		rest := g.nlris
		for len(rest) > 0 {
			n := fittingCount(len(rest), maxSize)
			out = append(out, wire.UpdateMessage{Attrs: g.attrs, NLRI: rest[:n]})
			rest = rest[n:]
		}
	}
	return out
}

// batchMP builds UPDATEs for any family needing RFC 4760 MP_REACH/
// MP_UNREACH attributes; next hop is whatever the group's NextHopAttr (or
// the caller's policy layer) already set on the collection — the batcher
// only groups and frames, it never invents a next hop.
func batchMP(fam afi.Family, withdrawals []nlri.NLRI, groups []*group, maxSize int) []wire.UpdateMessage {
	var out []wire.UpdateMessage
	if len(withdrawals) > 0 {
		out = append(out, wire.UpdateMessage{
			Attrs: attr.NewCollection(attr.MPUnreachAttr{Family: fam, NLRIs: withdrawals}),
		})
	}
	for _, g := range groups {
		nh := nextHopBytes(g.attrs)
		out = append(out, wire.UpdateMessage{
			Attrs: g.attrs.With(attr.MPReachAttr{Family: fam, NextHop: nh, NLRIs: g.nlris}),
		})
	}
	_ = maxSize // MP groups are not yet split across multiple messages; see DESIGN.md
	return out
}

func nextHopBytes(attrs attr.Collection) []byte {
	if a, ok := attrs.Get(attr.NextHop); ok {
		if nh, ok := a.(attr.NextHopAttr); ok {
			return nh.Value.AsSlice()
		}
	}
	return nil
}

// fittingCount returns how many of the first total withdrawn/NLRI entries
// can plausibly fit under a maxSize-byte UPDATE; this implementation uses
// a simple fixed cap rather than re-packing speculatively, which is
// conservative but avoids a pack/measure/repack loop per entry.
func fittingCount(total, maxSize int) int {
	const assumedEntryBytes = 32
	n := (maxSize - wire.HeaderSize - 8) / assumedEntryBytes
	if n < 1 {
		n = 1
	}
	if n > total {
		n = total
	}
	return n
}
