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

	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/negotiated"
	"github.com/coreswitch/bgpspeak/nlri"
)

// MPReachAttr is the MP_REACH_NLRI attribute (RFC 4760): it carries
// reachability for one (AFI, SAFI) family other than plain IPv4 unicast,
// whose NLRI otherwise rides in the UPDATE's own NLRI field. NextHop is
// kept as raw bytes since its length varies by family and by whether
// Extended-Next-Hop-Encoding widened it to an IPv6 address.
type MPReachAttr struct {
	Family  afi.Family
	NextHop []byte
	NLRIs   []nlri.NLRI
}

func (MPReachAttr) Code() Code  { return MPReachNLRI }
func (MPReachAttr) Flags() byte { return OptionalNonTransitiveFlags }

func (m MPReachAttr) Pack(n *negotiated.Negotiated) []byte {
	packed := m.Family.Pack()
	out := append([]byte{}, packed[:]...)
	out = append(out, byte(len(m.NextHop)))
	out = append(out, m.NextHop...)
	out = append(out, 0) // reserved (SNPA count, always 0)
	addPath := n != nil && n.AddPathEnabled(m.Family, true)
	for _, entry := range m.NLRIs {
		out = append(out, packNLRIEntry(entry, addPath)...)
	}
	return out
}

func decodeMPReach(_ byte, v []byte, n *negotiated.Negotiated) (Attribute, error) {
	if len(v) < 4 {
		return nil, fmt.Errorf("attr: MP_REACH_NLRI truncated header")
	}
	fam, err := afi.Parse(v[:3])
	if err != nil {
		return nil, err
	}
	nhLen := int(v[3])
	v = v[4:]
	if len(v) < nhLen+1 {
		return nil, fmt.Errorf("attr: MP_REACH_NLRI truncated next hop")
	}
	nextHop := append([]byte(nil), v[:nhLen]...)
	v = v[nhLen:]
	v = v[1:] // reserved/SNPA count

	addPath := n != nil && n.AddPathEnabled(fam, false)
	nlris, err := decodeNLRIEntries(fam, v, addPath)
	if err != nil {
		return nil, err
	}
	return MPReachAttr{Family: fam, NextHop: nextHop, NLRIs: nlris}, nil
}

// MPUnreachAttr is the MP_UNREACH_NLRI attribute (RFC 4760): withdrawal
// for a non-IPv4-unicast family.
type MPUnreachAttr struct {
	Family afi.Family
	NLRIs  []nlri.NLRI
}

func (MPUnreachAttr) Code() Code  { return MPUnreachNLRI }
func (MPUnreachAttr) Flags() byte { return OptionalNonTransitiveFlags }

func (m MPUnreachAttr) Pack(n *negotiated.Negotiated) []byte {
	packed := m.Family.Pack()
	out := append([]byte{}, packed[:]...)
	addPath := n != nil && n.AddPathEnabled(m.Family, true)
	for _, entry := range m.NLRIs {
		out = append(out, packNLRIEntry(entry, addPath)...)
	}
	return out
}

func decodeMPUnreach(_ byte, v []byte, n *negotiated.Negotiated) (Attribute, error) {
	if len(v) < 3 {
		return nil, fmt.Errorf("attr: MP_UNREACH_NLRI truncated header")
	}
	fam, err := afi.Parse(v[:3])
	if err != nil {
		return nil, err
	}
	v = v[3:]
	addPath := n != nil && n.AddPathEnabled(fam, false)
	nlris, err := decodeNLRIEntries(fam, v, addPath)
	if err != nil {
		return nil, err
	}
	return MPUnreachAttr{Family: fam, NLRIs: nlris}, nil
}

// packNLRIEntry encodes one entry, prefixing a 4-byte path identifier
// first when ADD-PATH is active for the direction (spec.md §4.1.4:
// "the path identifier, when present, is a 4-byte unsigned integer
// immediately preceding the NLRI's own bytes").
func packNLRIEntry(n nlri.NLRI, addPath bool) []byte {
	var out []byte
	if addPath {
		id, _ := n.PathID()
		out = append(out, put32(id)...)
	}
	return append(out, n.Bytes()...)
}

func decodeNLRIEntries(fam afi.Family, v []byte, addPath bool) ([]nlri.NLRI, error) {
	var out []nlri.NLRI
	for len(v) > 0 {
		var id uint32
		if addPath {
			if len(v) < 4 {
				return nil, fmt.Errorf("attr: nlri entry truncated addpath id")
			}
			id = get32(v[:4])
			v = v[4:]
		}
		entry, consumed, err := nlri.Decode(fam, v)
		if err != nil {
			return nil, err
		}
		if addPath {
			entry = nlri.WithPathID(entry, id)
		}
		out = append(out, entry)
		v = v[consumed:]
	}
	return out, nil
}
