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

package nlri

import (
	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/registry"
)

// ParseFunc decodes one NLRI entry for a given family from the front of b,
// returning the decoded value and the number of bytes consumed.
type ParseFunc func(fam afi.Family, b []byte) (NLRI, int, error)

// Table is the NLRI kind of the Message Registry (spec.md §4.2): it maps
// an (AFI, SAFI) family to the decoder that understands its entries.
// Families with no registration fall back to Generic, the byte-preserving
// codec, so MP-Reach/MP-Unreach decoding never fails merely because this
// speaker hasn't been taught a family's semantics.
var Table = registry.New[afi.Family, ParseFunc]()

func init() {
	Table.Register(afi.IPv4Unicast, "ipv4-unicast", wrapINET)
	Table.Register(afi.IPv4Multicast, "ipv4-multicast", wrapINET)
	Table.Register(afi.IPv6Unicast, "ipv6-unicast", wrapINET)
	Table.Register(afi.IPv6Multicast, "ipv6-multicast", wrapINET)

	Table.Register(afi.IPv4MPLS, "ipv4-nlri-mpls", wrapLabel)
	Table.Register(afi.IPv6MPLS, "ipv6-nlri-mpls", wrapLabel)

	Table.Register(afi.IPv4MPLSVPN, "ipv4-mpls-vpn", wrapIPVPN)
	Table.Register(afi.IPv6MPLSVPN, "ipv6-mpls-vpn", wrapIPVPN)

	Table.Register(afi.IPv4Flow, "ipv4-flow", wrapFlow)
	Table.Register(afi.IPv4FlowVPN, "ipv4-flow-vpn", wrapFlow)
	Table.Register(afi.IPv6Flow, "ipv6-flow", wrapFlow)
	Table.Register(afi.IPv6FlowVPN, "ipv6-flow-vpn", wrapFlow)

	Table.Register(afi.L2VPNEVPN, "l2vpn-evpn", wrapEVPN)
	Table.Register(afi.L2VPNVPLS, "l2vpn-vpls", wrapVPLS)
}

func wrapINET(fam afi.Family, b []byte) (NLRI, int, error) {
	n, c, err := ParseINET(fam, b)
	return n, c, err
}

func wrapLabel(fam afi.Family, b []byte) (NLRI, int, error) {
	n, c, err := ParseLabel(fam, b)
	return n, c, err
}

func wrapIPVPN(fam afi.Family, b []byte) (NLRI, int, error) {
	n, c, err := ParseIPVPN(fam, b)
	return n, c, err
}

func wrapFlow(fam afi.Family, b []byte) (NLRI, int, error) {
	n, c, err := ParseFlow(fam, b)
	return n, c, err
}

func wrapEVPN(_ afi.Family, b []byte) (NLRI, int, error) {
	n, c, err := ParseEVPN(b)
	return n, c, err
}

func wrapVPLS(_ afi.Family, b []byte) (NLRI, int, error) {
	n, c, err := ParseVPLS(b)
	return n, c, err
}

// Decode parses one NLRI entry for family fam from the front of b, using
// the registered handler if one exists and falling back to the
// byte-preserving Generic codec otherwise (spec.md §4.2: "Unknown codes
// in a kind that has a generic fallback... route to that fallback").
func Decode(fam afi.Family, b []byte) (NLRI, int, error) {
	if fn, ok := Table.Lookup(fam); ok {
		return fn(fam, b)
	}
	return ParseGeneric(fam, b)
}
