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

package wire

import (
	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/attr"
	"github.com/coreswitch/bgpspeak/negotiated"
	"github.com/coreswitch/bgpspeak/nlri"
	"github.com/coreswitch/bgpspeak/wireerr"
)

// UpdateMessage is the BGP UPDATE message (RFC 4271 §4.3). Withdrawn and
// NLRI carry classic IPv4-unicast entries; reachability/withdrawal for
// every other family rides inside Attrs as MP_REACH_NLRI/MP_UNREACH_NLRI
// attributes (RFC 4760), so this type needs no family-specific fields of
// its own.
type UpdateMessage struct {
	Withdrawn []nlri.NLRI
	Attrs     attr.Collection
	NLRI      []nlri.NLRI
}

func (UpdateMessage) Type() uint8 { return TypeUpdate }

func (u UpdateMessage) Pack(n *negotiated.Negotiated) []byte {
	addPath := n != nil && n.AddPathEnabled(afi.IPv4Unicast, true)

	var withdrawn []byte
	for _, e := range u.Withdrawn {
		withdrawn = append(withdrawn, encodeClassicEntry(e, addPath)...)
	}

	attrBytes := u.Attrs.Pack(n)

	var nlriBytes []byte
	for _, e := range u.NLRI {
		nlriBytes = append(nlriBytes, encodeClassicEntry(e, addPath)...)
	}

	out := make([]byte, 0, 4+len(withdrawn)+len(attrBytes)+len(nlriBytes))
	out = append(out, byte(len(withdrawn)>>8), byte(len(withdrawn)))
	out = append(out, withdrawn...)
	out = append(out, byte(len(attrBytes)>>8), byte(len(attrBytes)))
	out = append(out, attrBytes...)
	out = append(out, nlriBytes...)
	return out
}

func encodeClassicEntry(n nlri.NLRI, addPath bool) []byte {
	var out []byte
	if addPath {
		id, _ := n.PathID()
		out = append(out, byte(id>>24), byte(id>>16), byte(id>>8), byte(id))
	}
	return append(out, n.Bytes()...)
}

func decodeClassicEntries(b []byte, addPath bool) ([]nlri.NLRI, error) {
	var out []nlri.NLRI
	for len(b) > 0 {
		var id uint32
		if addPath {
			if len(b) < 4 {
				return nil, wireerr.Update(wireerr.MalformedAttributeList, "truncated addpath id")
			}
			id = uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
			b = b[4:]
		}
		entry, consumed, err := nlri.ParseINET(afi.IPv4Unicast, b)
		if err != nil {
			return nil, wireerr.Update(wireerr.InvalidNetworkField, err.Error())
		}
		var e nlri.NLRI = entry
		if addPath {
			e = nlri.WithPathID(e, id)
		}
		out = append(out, e)
		b = b[consumed:]
	}
	return out, nil
}

func decodeUpdateBody(body []byte, n *negotiated.Negotiated) (Message, error) {
	if len(body) < 2 {
		return nil, wireerr.Update(wireerr.MalformedAttributeList, "truncated withdrawn-routes length")
	}
	addPath := n != nil && n.AddPathEnabled(afi.IPv4Unicast, false)

	wLen := int(body[0])<<8 | int(body[1])
	body = body[2:]
	if len(body) < wLen {
		return nil, wireerr.Update(wireerr.MalformedAttributeList, "truncated withdrawn routes")
	}
	withdrawn, err := decodeClassicEntries(body[:wLen], addPath)
	if err != nil {
		return nil, err
	}
	body = body[wLen:]

	if len(body) < 2 {
		return nil, wireerr.Update(wireerr.MalformedAttributeList, "truncated attribute length")
	}
	aLen := int(body[0])<<8 | int(body[1])
	body = body[2:]
	if len(body) < aLen {
		return nil, wireerr.Update(wireerr.MalformedAttributeList, "truncated attributes")
	}
	attrs, err := attr.Decode(body[:aLen], n)
	if err != nil {
		return nil, err
	}
	body = body[aLen:]

	nlris, err := decodeClassicEntries(body, addPath)
	if err != nil {
		return nil, err
	}

	return UpdateMessage{Withdrawn: withdrawn, Attrs: attrs, NLRI: nlris}, nil
}

// IsEndOfRIB reports whether msg is the classic end-of-RIB marker: an
// UPDATE with no withdrawn routes, no NLRI and no path attributes
// (SPEC_FULL.md §7).
func (u UpdateMessage) IsEndOfRIB() bool {
	return len(u.Withdrawn) == 0 && len(u.NLRI) == 0 && u.Attrs.Len() == 0
}

// EndOfRIB builds the end-of-RIB marker for fam (SPEC_FULL.md §7): the
// classic empty UPDATE for IPv4 unicast, or an UPDATE carrying an empty
// MP_UNREACH_NLRI for any other negotiated family.
func EndOfRIB(fam afi.Family) UpdateMessage {
	if fam == afi.IPv4Unicast {
		return UpdateMessage{}
	}
	return UpdateMessage{Attrs: attr.NewCollection(attr.MPUnreachAttr{Family: fam})}
}

// IsEndOfRIBFor reports whether msg is the end-of-RIB marker for fam,
// recognising both the classic-empty and MP_UNREACH-empty shapes.
func IsEndOfRIBFor(u UpdateMessage, fam afi.Family) bool {
	if fam == afi.IPv4Unicast {
		return u.IsEndOfRIB()
	}
	a, ok := u.Attrs.Get(attr.MPUnreachNLRI)
	if !ok {
		return false
	}
	mp, ok := a.(attr.MPUnreachAttr)
	return ok && mp.Family == fam && len(mp.NLRIs) == 0
}
