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

package rib

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/attr"
	"github.com/coreswitch/bgpspeak/change"
	"github.com/coreswitch/bgpspeak/nlri"
)

func announce(prefix string) change.Change {
	p := netip.MustParsePrefix(prefix)
	n := nlri.NewINET(afi.IPv4Unicast, p)
	return change.Announce(n, attr.NewCollection(attr.OriginAttr{Value: attr.OriginIGP}))
}

func withdraw(prefix string) change.Change {
	p := netip.MustParsePrefix(prefix)
	return change.Withdraw(nlri.NewINET(afi.IPv4Unicast, p))
}

func TestInsertNewRouteIsDirty(t *testing.T) {
	r := New()
	require.True(t, r.Insert(announce("10.0.0.0/24"), nil))
	require.Equal(t, []afi.Family{afi.IPv4Unicast}, r.DirtyFamilies())

	q := r.Queued(afi.IPv4Unicast)
	require.Len(t, q, 1)
	require.Empty(t, r.DirtyFamilies())
}

func TestInsertIdenticalReannouncementIsNoOp(t *testing.T) {
	r := New()
	c := announce("10.0.0.0/24")
	require.True(t, r.Insert(c, nil))
	r.Queued(afi.IPv4Unicast)

	require.False(t, r.Insert(c, nil), "re-announcing an unchanged route must be idempotent")
	require.Empty(t, r.DirtyFamilies())
}

func TestInsertChangedAttributesIsDirty(t *testing.T) {
	r := New()
	require.True(t, r.Insert(announce("10.0.0.0/24"), nil))
	r.Queued(afi.IPv4Unicast)

	p := netip.MustParsePrefix("10.0.0.0/24")
	changed := change.Announce(nlri.NewINET(afi.IPv4Unicast, p), attr.NewCollection(attr.OriginAttr{Value: attr.OriginEGP}))
	require.True(t, r.Insert(changed, nil))
}

func TestWithdrawUnknownRouteIsStored(t *testing.T) {
	r := New()
	w := withdraw("10.0.0.0/24")
	require.True(t, r.Insert(w, nil), "a withdrawal of a never-seen fingerprint must still be stored (Graceful Restart)")
	require.Equal(t, []afi.Family{afi.IPv4Unicast}, r.DirtyFamilies())

	q := r.Queued(afi.IPv4Unicast)
	require.Len(t, q, 1)
	require.True(t, q[0].Withdrawn)
	require.Equal(t, 1, r.Len())

	require.False(t, r.Insert(w, nil), "re-withdrawing the same fingerprint must be idempotent")
}

func TestWithdrawKnownRouteIsDirtyOnceThenFlushed(t *testing.T) {
	r := New()
	r.Insert(announce("10.0.0.0/24"), nil)
	r.Queued(afi.IPv4Unicast)

	w := withdraw("10.0.0.0/24")
	require.True(t, r.Insert(w, nil))
	require.False(t, r.Insert(w, nil), "withdrawing an already-withdrawn route must be idempotent")

	q := r.Queued(afi.IPv4Unicast)
	require.Len(t, q, 1)
	require.True(t, q[0].Withdrawn)

	require.Equal(t, 1, r.Len())
	r.Flush(w)
	require.Equal(t, 0, r.Len())
}

func TestFamiliesPartitionIndependently(t *testing.T) {
	r := New()
	r.Insert(announce("10.0.0.0/24"), nil)

	v6 := nlri.NewINET(afi.IPv6Unicast, netip.MustParsePrefix("2001:db8::/32"))
	r.Insert(change.Announce(v6, attr.NewCollection()), nil)

	require.ElementsMatch(t, []afi.Family{afi.IPv4Unicast, afi.IPv6Unicast}, r.DirtyFamilies())
	require.Len(t, r.Queued(afi.IPv4Unicast), 1)
	require.ElementsMatch(t, []afi.Family{afi.IPv6Unicast}, r.DirtyFamilies())
	require.Len(t, r.Queued(afi.IPv6Unicast), 1)
}

func TestGracefulRestartStaleLifecycle(t *testing.T) {
	r := New()
	r.Insert(announce("10.0.0.0/24"), nil)
	r.Insert(announce("10.0.1.0/24"), nil)
	r.Queued(afi.IPv4Unicast)

	r.MarkStale(afi.IPv4Unicast)
	r.ClearStale(afi.IPv4Unicast)
	require.Empty(t, r.ExpireStale(afi.IPv4Unicast), "clearing the stale mark must prevent expiry")
	require.Equal(t, 2, r.Len())

	r.MarkStale(afi.IPv4Unicast)
	withdrawn := r.ExpireStale(afi.IPv4Unicast)
	require.Len(t, withdrawn, 2)
	require.Equal(t, 0, r.Len())
}

func TestSnapshotExcludesWithdrawn(t *testing.T) {
	r := New()
	r.Insert(announce("10.0.0.0/24"), nil)
	r.Insert(announce("10.0.1.0/24"), nil)
	r.Queued(afi.IPv4Unicast)
	r.Insert(withdraw("10.0.0.0/24"), nil)

	snap := r.Snapshot(afi.IPv4Unicast)
	require.Len(t, snap, 1)
	require.Equal(t, "10.0.1.0/24", snap[0].NLRI.(nlri.INET).Prefix().String())
}
