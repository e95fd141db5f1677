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
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/attr"
	"github.com/coreswitch/bgpspeak/change"
	"github.com/coreswitch/bgpspeak/neighbor"
	"github.com/coreswitch/bgpspeak/nlri"
	"github.com/coreswitch/bgpspeak/rib"
	"github.com/coreswitch/bgpspeak/wire"
)

func testNeighbor() *neighbor.Neighbor {
	return &neighbor.Neighbor{
		Name:      "peer1",
		LocalASN:  65001,
		PeerASN:   65002,
		RouterID:  netip.MustParseAddr("192.0.2.1"),
		HoldTime:  90 * time.Second,
		Families:  []afi.Family{afi.IPv4Unicast},
	}
}

func establish(t *testing.T) (*FSM, *rib.RIB, *rib.RIB) {
	t.Helper()
	in, out := rib.New(), rib.New()
	f := New(testNeighbor(), in, out, nil)
	require.Equal(t, Idle, f.State())

	f.Open()
	require.Equal(t, Connect, f.State())

	open := f.TCPEstablished(netip.MustParseAddr("192.0.2.1"))
	require.Equal(t, OpenSent, f.State())
	require.Equal(t, uint32(65001), open.ASN)

	peerOpen := wire.OpenMessage{
		Version:  4,
		ASN:      65002,
		HoldTime: 90,
		RouterID: netip.MustParseAddr("192.0.2.2"),
	}
	outMsgs, err := f.HandleMessage(peerOpen)
	require.Nil(t, err)
	require.Equal(t, OpenConfirm, f.State())
	require.Len(t, outMsgs, 1)
	require.Equal(t, wire.KeepaliveMessage{}, outMsgs[0])

	outMsgs, err = f.HandleMessage(wire.KeepaliveMessage{})
	require.Nil(t, err)
	require.Equal(t, Established, f.State())
	require.NotEmpty(t, outMsgs, "expected end-of-rib on reaching Established")

	return f, in, out
}

func TestEstablishmentSequence(t *testing.T) {
	establish(t)
}

func TestNonAdmissibleMessageResetsToIdle(t *testing.T) {
	in, out := rib.New(), rib.New()
	f := New(testNeighbor(), in, out, nil)
	f.Open()
	f.TCPEstablished(netip.MustParseAddr("192.0.2.1"))

	// UPDATE is not admissible in OpenSent (spec.md §4.4).
	_, err := f.HandleMessage(wire.UpdateMessage{})
	require.NotNil(t, err)
	require.Equal(t, Idle, f.State())
}

func TestOpenWithMatchingRouterIDRejected(t *testing.T) {
	in, out := rib.New(), rib.New()
	f := New(testNeighbor(), in, out, nil)
	f.Open()
	f.TCPEstablished(netip.MustParseAddr("192.0.2.1"))

	_, err := f.HandleMessage(wire.OpenMessage{Version: 4, ASN: 65002, HoldTime: 90, RouterID: netip.MustParseAddr("192.0.2.1")})
	require.NotNil(t, err)
	require.Equal(t, Idle, f.State())
}

func TestUpdateAppliesToRIBIn(t *testing.T) {
	f, in, _ := establish(t)

	p := netip.MustParsePrefix("198.51.100.0/24")
	u := wire.UpdateMessage{
		NLRI:  []nlri.NLRI{nlri.NewINET(afi.IPv4Unicast, p)},
		Attrs: attr.NewCollection(attr.OriginAttr{Value: attr.OriginIGP}, attr.NextHopAttr{Value: netip.MustParseAddr("192.0.2.2")}),
	}
	_, err := f.HandleMessage(u)
	require.Nil(t, err)

	snap := in.Snapshot(afi.IPv4Unicast)
	require.Len(t, snap, 1)
}

func TestNextOutboundBatchesAnnouncements(t *testing.T) {
	f, _, out := establish(t)
	out.Queued(afi.IPv4Unicast) // drain the implicit initial-EOR-adjacent empty dirty set, if any

	attrs := attr.NewCollection(attr.OriginAttr{Value: attr.OriginIGP}, attr.NextHopAttr{Value: netip.MustParseAddr("192.0.2.1")})
	out.Insert(change.Announce(nlri.NewINET(afi.IPv4Unicast, netip.MustParsePrefix("10.0.0.0/24")), attrs), nil)
	out.Insert(change.Announce(nlri.NewINET(afi.IPv4Unicast, netip.MustParsePrefix("10.0.1.0/24")), attrs), nil)

	msgs := f.NextOutbound()
	require.NotEmpty(t, msgs)
	var total int
	for _, m := range msgs {
		total += len(m.NLRI)
	}
	require.Equal(t, 2, total)
}

func TestRouteRefreshRequeuesSnapshot(t *testing.T) {
	f, _, out := establish(t)
	// Both sides advertised Route-Refresh.
	f.negotiated.RouteRefresh = true
	attrs := attr.NewCollection(attr.OriginAttr{Value: attr.OriginIGP})
	out.Insert(change.Announce(nlri.NewINET(afi.IPv4Unicast, netip.MustParsePrefix("10.0.0.0/24")), attrs), nil)
	out.Queued(afi.IPv4Unicast)
	require.Empty(t, out.DirtyFamilies())

	_, err := f.HandleMessage(wire.RouteRefreshMessage{Family: afi.IPv4Unicast})
	require.Nil(t, err)
	require.NotEmpty(t, out.DirtyFamilies(), "route-refresh must re-dirty the whole family even though nothing changed")
}

func TestGracefulRestartResetMarksStaleNotDiscarded(t *testing.T) {
	in, out := rib.New(), rib.New()
	n := testNeighbor()
	n.GracefulRestart = true
	n.GracefulRestartFamilies = map[afi.Family]bool{afi.IPv4Unicast: true}
	f := New(n, in, out, nil)

	f.Open()
	f.TCPEstablished(netip.MustParseAddr("192.0.2.1"))
	gr := []byte{}
	_ = gr
	peerOpen := wire.OpenMessage{Version: 4, ASN: 65002, HoldTime: 90, RouterID: netip.MustParseAddr("192.0.2.2")}
	_, err := f.HandleMessage(peerOpen)
	require.Nil(t, err)
	// Negotiated.GracefulRestart requires BOTH sides to send the capability;
	// this FSM's own OPEN carries one (n.GracefulRestart is set), but the
	// simulated peer OPEN above does not, so directly exercise the
	// RIB-level contract instead.
	in.Insert(change.Announce(nlri.NewINET(afi.IPv4Unicast, netip.MustParsePrefix("10.0.0.0/24")), attr.NewCollection()), nil)
	in.MarkStale(afi.IPv4Unicast)
	require.Equal(t, 1, in.Len())
	withdrawn := in.ExpireStale(afi.IPv4Unicast)
	require.Len(t, withdrawn, 1)
	require.Equal(t, 0, in.Len())
}

func TestCollisionResolutionPrefersLargerRouterID(t *testing.T) {
	in, out := rib.New(), rib.New()
	f := New(testNeighbor(), in, out, nil)
	f.Open()
	f.TCPEstablished(netip.MustParseAddr("192.0.2.100"))

	require.True(t, f.ResolveCollision(netip.MustParseAddr("192.0.2.1")))
	require.False(t, f.ResolveCollision(netip.MustParseAddr("192.0.2.200")))
}

func TestHoldTimerExpiryResetsToIdle(t *testing.T) {
	f, _, _ := establish(t)
	f.holdDeadline = time.Now().Add(-time.Second)

	msgs, err := f.Tick(time.Now())
	require.NotNil(t, err)
	require.Equal(t, Idle, f.State())
	require.Len(t, msgs, 1)
}

func TestKeepaliveTimerFiresInEstablished(t *testing.T) {
	f, _, _ := establish(t)
	f.keepaliveDeadline = time.Now().Add(-time.Second)

	msgs, err := f.Tick(time.Now())
	require.Nil(t, err)
	require.Contains(t, msgs, wire.Message(wire.KeepaliveMessage{}))
}
