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

package attr

import (
	"fmt"

	"github.com/coreswitch/bgpspeak/negotiated"
)

// CommunitiesAttr is the plain 4-byte COMMUNITIES attribute (RFC 1997).
type CommunitiesAttr struct {
	Values []uint32
}

func (CommunitiesAttr) Code() Code  { return Communities }
func (CommunitiesAttr) Flags() byte { return OptionalTransitiveFlags }
func (c CommunitiesAttr) Pack(*negotiated.Negotiated) []byte {
	out := make([]byte, 0, 4*len(c.Values))
	for _, v := range c.Values {
		out = append(out, put32(v)...)
	}
	return out
}

func decodeCommunities(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	if len(v)%4 != 0 {
		return nil, fmt.Errorf("attr: COMMUNITIES length %d not a multiple of 4", len(v))
	}
	out := make([]uint32, 0, len(v)/4)
	for i := 0; i+4 <= len(v); i += 4 {
		out = append(out, get32(v[i:i+4]))
	}
	return CommunitiesAttr{Values: out}, nil
}

// ExtendedCommunity is one opaque 8-byte extended community (RFC 4360):
// type(1) + subtype(1, when the high bit of type marks an "extended"
// type) + value(6). Kept as raw bytes since the many type/subtype
// combinations do not benefit from a semantic accessor at this layer.
type ExtendedCommunity [8]byte

// ExtendedCommunitiesAttr is the EXTENDED_COMMUNITIES attribute.
type ExtendedCommunitiesAttr struct {
	Values []ExtendedCommunity
}

func (ExtendedCommunitiesAttr) Code() Code  { return ExtendedCommunities }
func (ExtendedCommunitiesAttr) Flags() byte { return OptionalTransitiveFlags }
func (e ExtendedCommunitiesAttr) Pack(*negotiated.Negotiated) []byte {
	out := make([]byte, 0, 8*len(e.Values))
	for _, v := range e.Values {
		out = append(out, v[:]...)
	}
	return out
}

func decodeExtendedCommunities(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	if len(v)%8 != 0 {
		return nil, fmt.Errorf("attr: EXTENDED_COMMUNITIES length %d not a multiple of 8", len(v))
	}
	out := make([]ExtendedCommunity, 0, len(v)/8)
	for i := 0; i+8 <= len(v); i += 8 {
		var ec ExtendedCommunity
		copy(ec[:], v[i:i+8])
		out = append(out, ec)
	}
	return ExtendedCommunitiesAttr{Values: out}, nil
}

// LargeCommunity is one RFC 8092 large community: global-admin(4) +
// local-data-1(4) + local-data-2(4).
type LargeCommunity struct {
	GlobalAdmin, LocalData1, LocalData2 uint32
}

// LargeCommunitiesAttr is the LARGE_COMMUNITIES attribute.
type LargeCommunitiesAttr struct {
	Values []LargeCommunity
}

func (LargeCommunitiesAttr) Code() Code  { return LargeCommunities }
func (LargeCommunitiesAttr) Flags() byte { return OptionalTransitiveFlags }
func (l LargeCommunitiesAttr) Pack(*negotiated.Negotiated) []byte {
	out := make([]byte, 0, 12*len(l.Values))
	for _, v := range l.Values {
		out = append(out, put32(v.GlobalAdmin)...)
		out = append(out, put32(v.LocalData1)...)
		out = append(out, put32(v.LocalData2)...)
	}
	return out
}

func decodeLargeCommunities(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	if len(v)%12 != 0 {
		return nil, fmt.Errorf("attr: LARGE_COMMUNITIES length %d not a multiple of 12", len(v))
	}
	out := make([]LargeCommunity, 0, len(v)/12)
	for i := 0; i+12 <= len(v); i += 12 {
		out = append(out, LargeCommunity{
			GlobalAdmin: get32(v[i : i+4]),
			LocalData1:  get32(v[i+4 : i+8]),
			LocalData2:  get32(v[i+8 : i+12]),
		})
	}
	return LargeCommunitiesAttr{Values: out}, nil
}
