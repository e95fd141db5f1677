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

// Package rib implements the per-peer Adj-RIB-In and Adj-RIB-Out (spec.md
// §3 "RIB", §4.3). Each is a fingerprint-keyed map of the most recent
// Change per route, partitioned by address family so a peer negotiating
// only IPv4 unicast never sees IPv6 work and a multi-protocol peer's
// families can be drained independently and fairly.
//
// The diffing rule (insert wins over a stale entry, a re-announcement
// that doesn't change the wire bytes is a no-op, a repeated withdrawal
// of an already-withdrawn route is a no-op) is the same one the
// teacher's rib.go applies to a flat IP list; here it operates on Change
// fingerprints instead of bare addresses so it generalises across every
// NLRI kind and full path-attribute sets. A withdrawal of a fingerprint
// never announced is still stored rather than dropped (spec.md §4.3):
// some peers rely on seeing that withdrawal during Graceful Restart
// resynchronisation even though nothing local ever announced the route.
package rib

import (
	"sync"

	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/change"
	"github.com/coreswitch/bgpspeak/negotiated"
)

// entry is one RIB slot: the last Change applied, and whether it has been
// sent out (Adj-RIB-Out) or processed (Adj-RIB-In) since.
type entry struct {
	change change.Change
	dirty  bool
	stale  bool // Graceful-Restart: carried over from a prior session, not yet refreshed
}

// RIB is a single-writer, fingerprint-keyed table of routes, partitioned
// by family. It is safe for one writer and any number of readers of
// Queued/Snapshot to run concurrently, matching the reactor's single
// event-loop-owns-writes, API-goroutines-may-read model.
type RIB struct {
	mu      sync.Mutex
	byFam   map[afi.Family]map[string]*entry
	dirtySet map[afi.Family]bool
}

// New returns an empty RIB.
func New() *RIB {
	return &RIB{
		byFam:    map[afi.Family]map[string]*entry{},
		dirtySet: map[afi.Family]bool{},
	}
}

func (r *RIB) table(fam afi.Family) map[string]*entry {
	t, ok := r.byFam[fam]
	if !ok {
		t = map[string]*entry{}
		r.byFam[fam] = t
	}
	return t
}

// Insert applies c, returning true if it changed RIB state (a genuinely
// new route, a changed attribute set, a withdrawal — whether or not the
// fingerprint was already present). A no-op re-announcement (same
// fingerprint, Equal under n) or a repeated withdrawal of an
// already-withdrawn fingerprint returns false and leaves the dirty flag
// untouched, so a route that hasn't actually changed is never re-queued
// for sending (spec.md testable property 3: "repeated application of the
// same Change is idempotent").
func (r *RIB) Insert(c change.Change, n *negotiated.Negotiated) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	fam := c.Family()
	t := r.table(fam)
	fp := c.Fingerprint()

	existing, present := t[fp]
	switch {
	case c.Withdrawn:
		if present && existing.change.Withdrawn {
			return false
		}
	case present && existing.change.Equal(c, n):
		return false
	}

	t[fp] = &entry{change: c, dirty: true}
	r.dirtySet[fam] = true
	return true
}

// Queued returns every dirty Change for fam, in no defined order (not
// insertion order, not fingerprint order), and clears the dirty flag on each (the reactor calls this once per turn per
// family it chooses to service). It does not remove withdrawn entries
// from the table immediately; Flush does that once the withdrawal has
// actually been sent.
func (r *RIB) Queued(fam afi.Family) []change.Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byFam[fam]
	if !ok {
		return nil
	}
	var out []change.Change
	for _, e := range t {
		if e.dirty {
			out = append(out, e.change)
			e.dirty = false
		}
	}
	delete(r.dirtySet, fam)
	return out
}

// Flush removes the entry for c's fingerprint once a withdrawal for it
// has actually been transmitted, reclaiming the slot. Calling Flush for
// an announcement is a no-op: announced routes stay resident so a later
// re-announcement can be compared against them.
func (r *RIB) Flush(c change.Change) {
	if !c.Withdrawn {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.table(c.Family())
	delete(t, c.Fingerprint())
}

// DirtyFamilies returns the families with at least one unsent Change,
// for the reactor's per-turn scheduling across peers and families.
func (r *RIB) DirtyFamilies() []afi.Family {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]afi.Family, 0, len(r.dirtySet))
	for f := range r.dirtySet {
		out = append(out, f)
	}
	return out
}

// Snapshot returns every live (non-withdrawn) Change for fam, for
// Graceful-Restart re-synchronisation and API introspection.
func (r *RIB) Snapshot(fam afi.Family) []change.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byFam[fam]
	if !ok {
		return nil
	}
	var out []change.Change
	for _, e := range t {
		if !e.change.Withdrawn {
			out = append(out, e.change)
		}
	}
	return out
}

// MarkStale flags every live entry in fam as stale (spec.md §4.4
// Graceful-Restart: "on session reset the receiver retains stale Adj-RIB-In
// entries... for up to the advertised restart-time"). Called by the FSM
// on Adj-RIB-In when a Graceful-Restart-negotiated session resets.
func (r *RIB) MarkStale(fam afi.Family) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.table(fam) {
		if !e.change.Withdrawn {
			e.stale = true
		}
	}
}

// ClearStale drops the stale mark on every entry in fam, called when the
// new session's End-of-RIB for fam arrives (spec.md §4.4: "a refresh EOR
// per family clears the stale marks for that family").
func (r *RIB) ClearStale(fam afi.Family) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.table(fam) {
		e.stale = false
	}
}

// ExpireStale withdraws every entry in fam still marked stale, returning
// the withdrawal Changes produced (spec.md §4.4: "if the restart-time
// elapses without a new session reaching Established, stale entries are
// withdrawn"). The caller is responsible for delivering the withdrawals
// onward (e.g. to policy/API consumers of Adj-RIB-In); this only mutates
// RIB state.
func (r *RIB) ExpireStale(fam afi.Family) []change.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.table(fam)
	var out []change.Change
	for fp, e := range t {
		if e.stale && !e.change.Withdrawn {
			w := change.Withdraw(e.change.NLRI)
			out = append(out, w)
			delete(t, fp)
		}
	}
	return out
}

// Requeue marks every live entry in fam dirty regardless of whether its
// content actually changed, for ROUTE-REFRESH (RFC 2918): the peer asked
// for the whole family again, not just what's changed since last sent.
func (r *RIB) Requeue(fam afi.Family) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.table(fam)
	var any bool
	for _, e := range t {
		if !e.change.Withdrawn {
			e.dirty = true
			any = true
		}
	}
	if any {
		r.dirtySet[fam] = true
	}
}

// Clear discards every entry across every family, used when a session
// resets without Graceful-Restart having been negotiated (spec.md §4.4:
// Adj-RIB-In "is preserved if graceful-restart was negotiated, else
// discarded").
func (r *RIB) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byFam = map[afi.Family]map[string]*entry{}
	r.dirtySet = map[afi.Family]bool{}
}

// Len reports the number of resident entries across every family,
// announced or withdrawn-but-not-yet-flushed.
func (r *RIB) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.byFam {
		n += len(t)
	}
	return n
}
