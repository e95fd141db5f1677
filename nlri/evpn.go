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
	"fmt"
	"net/netip"

	"github.com/coreswitch/bgpspeak/afi"
)

// EVPNRouteType is the EVPN NLRI's first-byte route type (RFC 7432 §7).
type EVPNRouteType uint8

const (
	EVPNEthernetAutoDiscovery EVPNRouteType = 1
	EVPNMACIPAdvertisement    EVPNRouteType = 2
	EVPNInclusiveMulticast    EVPNRouteType = 3
	EVPNEthernetSegment       EVPNRouteType = 4
	EVPNIPPrefix              EVPNRouteType = 5
)

// EVPN is an L2VPN/EVPN route (spec.md §3 "EVPN (5 route-type
// subvariants + generic)"). Route type 2 (MAC/IP Advertisement) gets a
// full semantic accessor since it is the type carrying a host route;
// types 1/3/4/5 and any unrecognised type are kept as generic
// byte-preserving payloads per the registry's "unknown preserved as
// opaque bytes" rule (spec.md §4.2), which also covers any record this
// speaker has not been taught to interpret.
type EVPN struct {
	base
	routeType EVPNRouteType
}

// NewEVPNGeneric wraps an already-encoded EVPN route-type value (length
// prefix + value) for route types this speaker does not parse
// semantically.
func NewEVPNGeneric(routeType EVPNRouteType, value []byte) EVPN {
	raw := append([]byte{byte(routeType), byte(len(value))}, value...)
	return EVPN{base: base{family: afi.L2VPNEVPN, raw: raw}, routeType: routeType}
}

// MACIPAdvertisement is the semantic view of an EVPN route type 2 (RFC
// 7432 §7.2): RD(8) + ESI(10) + Ethernet-Tag-ID(4) + MAC-length(1) +
// MAC(6) + IP-length(1) + IP(0/4/16) + MPLS-label1(3) [+ MPLS-label2(3)].
type MACIPAdvertisement struct {
	RD          RouteDistinguisher
	ESI         [10]byte
	EthernetTag uint32
	MAC         [6]byte
	IP          netip.Addr // zero Addr if IP-length was 0
	Labels      []uint32
}

// NewMACIPAdvertisement packs a type-2 route into canonical EVPN wire
// bytes.
func NewMACIPAdvertisement(m MACIPAdvertisement) EVPN {
	var value []byte
	value = append(value, m.RD[:]...)
	value = append(value, m.ESI[:]...)
	value = append(value, byte(m.EthernetTag>>24), byte(m.EthernetTag>>16), byte(m.EthernetTag>>8), byte(m.EthernetTag))
	value = append(value, 48) // MAC address length in bits
	value = append(value, m.MAC[:]...)
	if m.IP.IsValid() {
		if m.IP.Is4() {
			value = append(value, 32)
			b := m.IP.As4()
			value = append(value, b[:]...)
		} else {
			value = append(value, 128)
			b := m.IP.As16()
			value = append(value, b[:]...)
		}
	} else {
		value = append(value, 0)
	}
	for _, l := range m.Labels {
		value = append(value, EncodeLabelStack([]uint32{l})...)
	}
	return NewEVPNGeneric(EVPNMACIPAdvertisement, value)
}

// ParseEVPN decodes one EVPN NLRI entry: route-type(1) + length(1) +
// value. Bytes consumed is always 2+length.
func ParseEVPN(b []byte) (EVPN, int, error) {
	if len(b) < 2 {
		return EVPN{}, 0, fmt.Errorf("nlri: truncated evpn nlri header")
	}
	routeType := EVPNRouteType(b[0])
	length := int(b[1])
	if len(b) < 2+length {
		return EVPN{}, 0, fmt.Errorf("nlri: truncated evpn route value (need %d bytes)", length)
	}
	raw := append([]byte(nil), b[:2+length]...)
	return EVPN{base: base{family: afi.L2VPNEVPN, raw: raw}, routeType: routeType}, 2 + length, nil
}

func (n EVPN) RouteType() EVPNRouteType { return n.routeType }

func (n EVPN) Value() []byte { return n.raw[2:] }

// MACIP parses the route as a type-2 MAC/IP Advertisement. Callers must
// check RouteType() == EVPNMACIPAdvertisement first; this does not
// re-validate the type.
func (n EVPN) MACIP() (MACIPAdvertisement, error) {
	v := n.Value()
	if len(v) < 8+10+4+1+6+1+3 {
		return MACIPAdvertisement{}, fmt.Errorf("nlri: evpn type-2 value too short")
	}
	var m MACIPAdvertisement
	copy(m.RD[:], v[0:8])
	copy(m.ESI[:], v[8:18])
	m.EthernetTag = getUint32(v[18:22])
	// v[22] is the MAC address length in bits (always 48 in practice)
	copy(m.MAC[:], v[23:29])
	off := 29
	ipLenBits := int(v[off])
	off++
	switch ipLenBits {
	case 0:
	case 32:
		var a4 [4]byte
		copy(a4[:], v[off:off+4])
		m.IP = netip.AddrFrom4(a4)
		off += 4
	case 128:
		var a16 [16]byte
		copy(a16[:], v[off:off+16])
		m.IP = netip.AddrFrom16(a16)
		off += 16
	default:
		return MACIPAdvertisement{}, fmt.Errorf("nlri: evpn type-2 bad ip length %d", ipLenBits)
	}
	for off+3 <= len(v) {
		labels, n, err := DecodeLabelStack(v[off:])
		if err != nil {
			break
		}
		m.Labels = append(m.Labels, labels...)
		off += n
	}
	return m, nil
}

func (n EVPN) WithPathID(id uint32) NLRI {
	n.base.hasID = true
	n.base.id = id
	return n
}
