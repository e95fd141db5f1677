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
	"bytes"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/attr"
	"github.com/coreswitch/bgpspeak/capability"
	"github.com/coreswitch/bgpspeak/negotiated"
	"github.com/coreswitch/bgpspeak/nlri"
)

// roundTrip frames msg, reads the header/body back through ReadHeader and
// Decode, and returns the decoded Message (spec.md property 1: "decode(encode(m))
// == m for every representable message").
func roundTrip(t *testing.T, msg Message, n *negotiated.Negotiated) Message {
	t.Helper()
	framed, err := Encode(msg, n, ExtendedMaxMessageSize)
	require.NoError(t, err)

	h, err := ReadHeader(bytes.NewReader(framed))
	require.NoError(t, err)
	require.Equal(t, len(framed), h.Length)
	require.Equal(t, msg.Type(), h.Type)

	got, err := Decode(h, framed[HeaderSize:], n)
	require.NoError(t, err)
	return got
}

func TestOpenRoundTrip(t *testing.T) {
	o := OpenMessage{
		Version:  4,
		ASN:      65001,
		HoldTime: 90,
		RouterID: netip.MustParseAddr("192.0.2.1"),
		Capabilities: []capability.Capability{
			capability.MultiprotocolCap{AFI: uint16(afi.IPv4), SAFI: uint8(afi.Unicast)},
			capability.RouteRefreshCap{},
		},
	}
	got := roundTrip(t, o, nil).(OpenMessage)
	require.Equal(t, o.ASN, got.ASN)
	require.Equal(t, o.HoldTime, got.HoldTime)
	require.Equal(t, o.RouterID, got.RouterID)
	require.Len(t, got.Capabilities, 2)
}

func TestOpenFourByteASNDowngrade(t *testing.T) {
	o := OpenMessage{Version: 4, ASN: 4200000001, HoldTime: 90, RouterID: netip.MustParseAddr("192.0.2.1")}
	got := roundTrip(t, o, nil).(OpenMessage)
	require.Equal(t, o.ASN, got.ASN)

	var found bool
	for _, c := range got.Capabilities {
		if f, ok := c.(capability.FourByteASNCap); ok {
			found = true
			require.Equal(t, o.ASN, f.ASN)
		}
	}
	require.True(t, found, "expected synthesised four-byte-asn capability")
}

func TestKeepaliveRoundTrip(t *testing.T) {
	got := roundTrip(t, KeepaliveMessage{}, nil)
	require.Equal(t, KeepaliveMessage{}, got)
}

func TestNotificationRoundTrip(t *testing.T) {
	m := NotificationMessage{Code: 6, Sub: 2, Data: []byte("administrative shutdown")}
	got := roundTrip(t, m, nil).(NotificationMessage)
	require.Equal(t, m, got)
}

func TestRouteRefreshRoundTrip(t *testing.T) {
	m := RouteRefreshMessage{Family: afi.IPv6Unicast}
	got := roundTrip(t, m, nil).(RouteRefreshMessage)
	require.Equal(t, m.Family, got.Family)
}

func TestOperationalRoundTrip(t *testing.T) {
	m := OperationalMessage{Category: 1, SubType: 2, Value: []byte{9, 9}}
	got := roundTrip(t, m, nil).(OperationalMessage)
	require.Equal(t, m, got)
}

func TestUpdateRoundTripClassicIPv4(t *testing.T) {
	p := netip.MustParsePrefix("198.51.100.0/24")
	u := UpdateMessage{
		NLRI: []nlri.NLRI{nlri.NewINET(afi.IPv4Unicast, p)},
		Attrs: attr.NewCollection(
			attr.OriginAttr{Value: attr.OriginIGP},
			attr.NextHopAttr{Value: netip.MustParseAddr("192.0.2.1")},
			attr.ASPathAttr{},
		),
	}
	n := &negotiated.Negotiated{Families: map[afi.Family]bool{afi.IPv4Unicast: true}}

	got := roundTrip(t, u, n).(UpdateMessage)
	require.Len(t, got.NLRI, 1)
	require.Equal(t, p, got.NLRI[0].(nlri.INET).Prefix())
	require.False(t, got.IsEndOfRIB())
}

func TestUpdateEndOfRIB(t *testing.T) {
	classic := EndOfRIB(afi.IPv4Unicast)
	got := roundTrip(t, classic, nil).(UpdateMessage)
	require.True(t, got.IsEndOfRIB())
	require.True(t, IsEndOfRIBFor(got, afi.IPv4Unicast))

	mp := EndOfRIB(afi.IPv6Unicast)
	n := &negotiated.Negotiated{Families: map[afi.Family]bool{afi.IPv6Unicast: true}}
	gotMP := roundTrip(t, mp, n).(UpdateMessage)
	require.True(t, IsEndOfRIBFor(gotMP, afi.IPv6Unicast))
}

func TestUpdateWithMPReachIPv6(t *testing.T) {
	p := netip.MustParsePrefix("2001:db8::/32")
	n1 := nlri.NewINET(afi.IPv6Unicast, p)
	n := &negotiated.Negotiated{Families: map[afi.Family]bool{afi.IPv6Unicast: true}}

	u := UpdateMessage{
		Attrs: attr.NewCollection(
			attr.OriginAttr{Value: attr.OriginIGP},
			attr.MPReachAttr{Family: afi.IPv6Unicast, NextHop: netip.MustParseAddr("2001:db8::1").AsSlice(), NLRIs: []nlri.NLRI{n1}},
		),
	}

	got := roundTrip(t, u, n).(UpdateMessage)
	a, ok := got.Attrs.Get(attr.MPReachNLRI)
	require.True(t, ok)
	mp := a.(attr.MPReachAttr)
	require.Len(t, mp.NLRIs, 1)
	require.Equal(t, p, mp.NLRIs[0].(nlri.INET).Prefix())
}

func TestMessageTooLargeForCeiling(t *testing.T) {
	_, err := Encode(KeepaliveMessage{}, nil, 10)
	require.Error(t, err)
}
