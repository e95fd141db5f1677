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
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreswitch/bgpspeak/afi"
)

func TestINETRoundTrip(t *testing.T) {
	p := netip.MustParsePrefix("10.100.0.0/16")
	n := NewINET(afi.IPv4Unicast, p)

	got, consumed, err := ParseINET(afi.IPv4Unicast, n.Bytes())
	require.NoError(t, err)
	require.Equal(t, len(n.Bytes()), consumed)
	require.Equal(t, p, got.Prefix())
	require.Equal(t, n.Bytes(), got.Bytes())
}

func TestINETRoundTripIPv6(t *testing.T) {
	p := netip.MustParsePrefix("2001:db8::/32")
	n := NewINET(afi.IPv6Unicast, p)
	got, _, err := ParseINET(afi.IPv6Unicast, n.Bytes())
	require.NoError(t, err)
	require.Equal(t, p, got.Prefix())
}

func TestFingerprintStability(t *testing.T) {
	p := netip.MustParsePrefix("192.168.101.0/24")
	a := NewINET(afi.IPv4Unicast, p)
	b, _, err := ParseINET(afi.IPv4Unicast, a.Bytes())
	require.NoError(t, err)

	require.Equal(t, Fingerprint(a), Fingerprint(b))

	withID := WithPathID(a, 7)
	require.NotEqual(t, Fingerprint(a), Fingerprint(withID))

	sameID := WithPathID(b, 7)
	require.Equal(t, Fingerprint(withID), Fingerprint(sameID))
}

func TestLabelRoundTrip(t *testing.T) {
	p := netip.MustParsePrefix("10.0.0.0/24")
	n := NewLabel(afi.IPv4MPLS, []uint32{100, 200}, p)

	got, consumed, err := ParseLabel(afi.IPv4MPLS, n.Bytes())
	require.NoError(t, err)
	require.Equal(t, len(n.Bytes()), consumed)
	require.Equal(t, []uint32{100, 200}, got.Labels())
	require.Equal(t, p, got.Prefix())
}

func TestIPVPNRoundTrip(t *testing.T) {
	p := netip.MustParsePrefix("172.16.0.0/24")
	rd := RouteDistinguisher{0, 0, 0, 1, 0, 0, 0, 42}
	n := NewIPVPN(afi.IPv4MPLSVPN, []uint32{42}, rd, p)

	got, consumed, err := ParseIPVPN(afi.IPv4MPLSVPN, n.Bytes())
	require.NoError(t, err)
	require.Equal(t, len(n.Bytes()), consumed)
	require.Equal(t, rd, got.RD())
	require.Equal(t, []uint32{42}, got.Labels())
	require.Equal(t, p, got.Prefix())
}

func TestFlowRoundTrip(t *testing.T) {
	components := []byte{byte(FlowDestPrefix), 24, 10, 0, 0}
	n := NewFlow(afi.IPv4Flow, components)

	got, consumed, err := ParseFlow(afi.IPv4Flow, n.Bytes())
	require.NoError(t, err)
	require.Equal(t, len(n.Bytes()), consumed)
	require.Equal(t, components, got.Components())
}

func TestEVPNMACIPRoundTrip(t *testing.T) {
	m := MACIPAdvertisement{
		RD:          RouteDistinguisher{0, 0, 1, 2, 3, 4, 5, 6},
		EthernetTag: 100,
		MAC:         [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		IP:          netip.MustParseAddr("10.0.0.5"),
		Labels:      []uint32{500},
	}
	n := NewMACIPAdvertisement(m)

	got, consumed, err := ParseEVPN(n.Bytes())
	require.NoError(t, err)
	require.Equal(t, len(n.Bytes()), consumed)
	require.Equal(t, EVPNMACIPAdvertisement, got.RouteType())

	parsed, err := got.MACIP()
	require.NoError(t, err)
	require.Equal(t, m.RD, parsed.RD)
	require.Equal(t, m.EthernetTag, parsed.EthernetTag)
	require.Equal(t, m.MAC, parsed.MAC)
	require.Equal(t, m.IP, parsed.IP)
	require.Equal(t, m.Labels, parsed.Labels)
}

func TestGenericRoundTrip(t *testing.T) {
	n := NewGeneric(afi.BGPLSUnicast, []byte{1, 2, 3, 4})
	got, consumed, err := ParseGeneric(afi.BGPLSUnicast, n.Bytes())
	require.NoError(t, err)
	require.Equal(t, len(n.Bytes()), consumed)
	require.Equal(t, []byte{1, 2, 3, 4}, got.Value())
}

func TestVPLSRoundTrip(t *testing.T) {
	var raw [19]byte
	raw[0] = 1
	n := NewVPLS(raw)
	got, consumed, err := ParseVPLS(n.Bytes())
	require.NoError(t, err)
	require.Equal(t, 19, consumed)
	require.Equal(t, n.Bytes(), got.Bytes())
}
