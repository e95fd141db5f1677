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
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/negotiated"
	"github.com/coreswitch/bgpspeak/nlri"
)

func fourByteSession() *negotiated.Negotiated {
	return &negotiated.Negotiated{FourByteASN: true, Families: map[afi.Family]bool{afi.IPv4Unicast: true}}
}

func twoByteSession() *negotiated.Negotiated {
	return &negotiated.Negotiated{FourByteASN: false, Families: map[afi.Family]bool{afi.IPv4Unicast: true}}
}

func TestOriginRoundTrip(t *testing.T) {
	o := OriginAttr{Value: OriginIGP}
	got, err := decodeOrigin(o.Flags(), o.Pack(nil), nil)
	require.NoError(t, err)
	require.Equal(t, o, got)
}

func TestNextHopRoundTrip(t *testing.T) {
	nh := NextHopAttr{Value: netip.MustParseAddr("192.0.2.1")}
	got, err := decodeNextHop(nh.Flags(), nh.Pack(nil), nil)
	require.NoError(t, err)
	require.Equal(t, nh, got)
}

func TestAggregatorRoundTrip(t *testing.T) {
	a := NewAggregator(65001, netip.MustParseAddr("192.0.2.1"), false)
	got, err := decodeAggregator(a.Flags(), a.Pack(nil), nil)
	require.NoError(t, err)
	require.Equal(t, a, got)

	a4 := NewAggregator(4200000001, netip.MustParseAddr("192.0.2.1"), true)
	got4, err := decodeAggregator4(a4.Flags(), a4.Pack(nil), nil)
	require.NoError(t, err)
	require.Equal(t, a4, got4)
}

func TestASPathFourByteRoundTrip(t *testing.T) {
	a := ASPathAttr{Segments: []ASPathSegment{{Type: ASSequence, ASNs: []uint32{65001, 4200000001}}}}
	n := fourByteSession()
	require.False(t, a.NeedsAS4Path(n))

	got, err := decodeASPath(a.Flags(), a.Pack(n), n)
	require.NoError(t, err)
	require.Equal(t, a, got)
}

// TestASPathDowngrade covers spec.md property 5: encoding a 32-bit ASN over
// a non-4-byte session emits AS_TRANS in AS_PATH and the real value in a
// companion AS4_PATH, and decoding the pair reconstructs the original.
func TestASPathDowngrade(t *testing.T) {
	a := ASPathAttr{Segments: []ASPathSegment{{Type: ASSequence, ASNs: []uint32{65001, 4200000001, 65002}}}}
	n := twoByteSession()

	require.True(t, a.NeedsAS4Path(n))

	packed := a.Pack(n)
	decodedPath, err := decodeASPath(a.Flags(), packed, n)
	require.NoError(t, err)
	downgraded := decodedPath.(ASPathAttr)
	require.Equal(t, uint32(ASTrans), downgraded.Segments[0].ASNs[1])

	as4 := a.PackAS4Path()
	decodedAS4, err := decodeAS4Path(as4.Flags(), as4.Pack(n), n)
	require.NoError(t, err)

	reconciled := ReconcileAS4Path(downgraded, decodedAS4.(AS4PathAttr))
	require.Equal(t, a.Segments, reconciled.Segments)
}

func TestCollectionPackIsCanonicalAndDecodes(t *testing.T) {
	c := NewCollection(
		OriginAttr{Value: OriginIGP},
		NextHopAttr{Value: netip.MustParseAddr("192.0.2.1")},
		LocalPrefAttr{Value: 100},
	)
	n := fourByteSession()
	wire := c.Pack(n)

	decoded, err := Decode(wire, n)
	require.NoError(t, err)
	require.True(t, c.Equal(decoded, n))

	// Packing twice from the same logical content yields identical bytes.
	require.Equal(t, wire, c.Pack(n))
}

func TestCollectionPreservesUnknownAttribute(t *testing.T) {
	unknown := NewUnknown(Code(99), OptionalTransitiveFlags, []byte{1, 2, 3})
	c := NewCollection(OriginAttr{Value: OriginIGP}, unknown)
	n := fourByteSession()

	decoded, err := Decode(c.Pack(n), n)
	require.NoError(t, err)

	got, ok := decoded.Get(Code(99))
	require.True(t, ok)
	require.Equal(t, unknown, got)
}

func TestCollectionDowngradesASPathAndSynthesisesAS4Path(t *testing.T) {
	asPath := ASPathAttr{Segments: []ASPathSegment{{Type: ASSequence, ASNs: []uint32{4200000001}}}}
	c := NewCollection(OriginAttr{Value: OriginIGP}, asPath)
	n := twoByteSession()

	wire := c.Pack(n)
	decoded, err := Decode(wire, n)
	require.NoError(t, err)

	got, ok := decoded.Get(ASPath)
	require.True(t, ok)
	require.Equal(t, asPath.Segments, got.(ASPathAttr).Segments)

	_, hasAS4 := decoded.Get(AS4Path)
	require.False(t, hasAS4, "AS4_PATH should be reconciled away after decode")
}

func TestMPReachRoundTrip(t *testing.T) {
	p := netip.MustParsePrefix("2001:db8::/32")
	n1 := nlri.NewINET(afi.IPv6Unicast, p)

	m := MPReachAttr{
		Family:  afi.IPv6Unicast,
		NextHop: netip.MustParseAddr("2001:db8::1").AsSlice(),
		NLRIs:   []nlri.NLRI{n1},
	}
	sess := &negotiated.Negotiated{Families: map[afi.Family]bool{afi.IPv6Unicast: true}}

	got, err := decodeMPReach(m.Flags(), m.Pack(sess), sess)
	require.NoError(t, err)
	decoded := got.(MPReachAttr)
	require.Equal(t, m.Family, decoded.Family)
	require.Equal(t, m.NextHop, decoded.NextHop)
	require.Len(t, decoded.NLRIs, 1)
	require.Equal(t, n1.Bytes(), decoded.NLRIs[0].Bytes())
}

func TestMPUnreachRoundTrip(t *testing.T) {
	p := netip.MustParsePrefix("10.0.0.0/24")
	n1 := nlri.NewINET(afi.IPv4Unicast, p)

	m := MPUnreachAttr{Family: afi.IPv4Unicast, NLRIs: []nlri.NLRI{n1}}
	sess := &negotiated.Negotiated{Families: map[afi.Family]bool{afi.IPv4Unicast: true}}

	got, err := decodeMPUnreach(m.Flags(), m.Pack(sess), sess)
	require.NoError(t, err)
	decoded := got.(MPUnreachAttr)
	require.Equal(t, m.Family, decoded.Family)
	require.Len(t, decoded.NLRIs, 1)
	require.Equal(t, n1.Bytes(), decoded.NLRIs[0].Bytes())
}

func TestCommunitiesRoundTrip(t *testing.T) {
	c := CommunitiesAttr{Values: []uint32{0xFFFF0000, 100}}
	got, err := decodeCommunities(c.Flags(), c.Pack(nil), nil)
	require.NoError(t, err)
	require.Equal(t, c, got)

	lc := LargeCommunitiesAttr{Values: []LargeCommunity{{GlobalAdmin: 65001, LocalData1: 1, LocalData2: 2}}}
	gotlc, err := decodeLargeCommunities(lc.Flags(), lc.Pack(nil), nil)
	require.NoError(t, err)
	require.Equal(t, lc, gotlc)
}
