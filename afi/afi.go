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

// Package afi defines the AFI/SAFI address family identifiers used
// throughout the wire codec and RIB. Families are cached singletons so
// that two decodes of the same (AFI, SAFI) bytes compare equal and hash
// identically without an allocation per comparison.
package afi

import "fmt"

// AFI is the 16-bit Address Family Identifier (IANA "Address Family Numbers").
type AFI uint16

// SAFI is the 8-bit Subsequent Address Family Identifier.
type SAFI uint8

const (
	IPv4  AFI = 1
	IPv6  AFI = 2
	L2VPN AFI = 25
	LS    AFI = 16388 // BGP-LS
)

const (
	Unicast    SAFI = 1
	Multicast  SAFI = 2
	NLRIMPLS   SAFI = 4  // nlri-mpls (RFC 8277)
	MPLSVPN    SAFI = 128 // mpls-vpn / IPVPN
	Flow       SAFI = 133
	FlowVPN    SAFI = 134
	EVPN       SAFI = 70
	VPLS       SAFI = 65
	BGPLS      SAFI = 71
	BGPLSVPN   SAFI = 72
	RTC        SAFI = 132 // route target constrain
	MUP        SAFI = 85
	MCastVPN   SAFI = 5
)

// Family is a cached (AFI, SAFI) singleton. The zero value is not a valid
// family; use Get to obtain one.
type Family struct {
	afi  AFI
	safi SAFI
}

func (f Family) AFI() AFI   { return f.afi }
func (f Family) SAFI() SAFI { return f.safi }

func (f Family) String() string {
	if n, ok := names[f]; ok {
		return n
	}
	return fmt.Sprintf("afi=%d/safi=%d", f.afi, f.safi)
}

// known enumerates the families spec.md §3 calls out by name. Other
// (AFI, SAFI) pairs are representable (Get never fails) but unsupported
// by name lookups and by any registry handler that hasn't registered for
// them explicitly.
var known = map[Family]string{}
var names = map[Family]string{}
var cache = map[Family]Family{}

func define(a AFI, s SAFI, name string) Family {
	f := Family{afi: a, safi: s}
	known[f] = name
	names[f] = name
	cache[f] = f
	return f
}

var (
	IPv4Unicast   = define(IPv4, Unicast, "ipv4-unicast")
	IPv4Multicast = define(IPv4, Multicast, "ipv4-multicast")
	IPv4MPLS      = define(IPv4, NLRIMPLS, "ipv4-nlri-mpls")
	IPv4MPLSVPN   = define(IPv4, MPLSVPN, "ipv4-mpls-vpn")
	IPv4Flow      = define(IPv4, Flow, "ipv4-flow")
	IPv4FlowVPN   = define(IPv4, FlowVPN, "ipv4-flow-vpn")
	IPv4RTC       = define(IPv4, RTC, "ipv4-rtc")
	IPv4MUP       = define(IPv4, MUP, "ipv4-mup")
	IPv4MCastVPN  = define(IPv4, MCastVPN, "ipv4-mcast-vpn")

	IPv6Unicast   = define(IPv6, Unicast, "ipv6-unicast")
	IPv6Multicast = define(IPv6, Multicast, "ipv6-multicast")
	IPv6MPLS      = define(IPv6, NLRIMPLS, "ipv6-nlri-mpls")
	IPv6MPLSVPN   = define(IPv6, MPLSVPN, "ipv6-mpls-vpn")
	IPv6Flow      = define(IPv6, Flow, "ipv6-flow")
	IPv6FlowVPN   = define(IPv6, FlowVPN, "ipv6-flow-vpn")
	IPv6MUP       = define(IPv6, MUP, "ipv6-mup")
	IPv6MCastVPN  = define(IPv6, MCastVPN, "ipv6-mcast-vpn")

	L2VPNEVPN = define(L2VPN, EVPN, "l2vpn-evpn")
	L2VPNVPLS = define(L2VPN, VPLS, "l2vpn-vpls")

	BGPLSUnicast = define(LS, BGPLS, "bgp-ls")
	BGPLSVPNFam  = define(LS, BGPLSVPN, "bgp-ls-vpn")
)

// Get returns the cached Family for (a, s), minting and caching a new
// singleton the first time an unrecognised pair is requested. The same
// bytes always return the same instance, so Family values may be used as
// map keys and compared with ==.
func Get(a AFI, s SAFI) Family {
	f := Family{afi: a, safi: s}
	if c, ok := cache[f]; ok {
		return c
	}
	cache[f] = f
	return f
}

// Known reports whether f is one of the families named in spec.md §3.
func Known(f Family) bool {
	_, ok := known[f]
	return ok
}

// Pack writes the 3-byte AFI(2)+SAFI(1) wire encoding used by MP-Reach,
// MP-Unreach and the Multiprotocol capability.
func (f Family) Pack() [3]byte {
	return [3]byte{byte(f.afi >> 8), byte(f.afi), byte(f.safi)}
}

// Parse reads a 3-byte AFI(2)+SAFI(1) wire encoding.
func Parse(b []byte) (Family, error) {
	if len(b) < 3 {
		return Family{}, fmt.Errorf("afi: short buffer (%d bytes)", len(b))
	}
	return Get(AFI(uint16(b[0])<<8|uint16(b[1])), SAFI(b[2])), nil
}
