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
	"time"

	"github.com/coreswitch/bgpspeak/change"
)

// ArmGracefulRestartExpiry is called by the reactor whenever the
// connection of a neighbor configured with GracefulRestart ends: it schedules the
// restart-time deadline after which any still-stale Adj-RIB-In entries
// must be withdrawn (spec.md §4.4: "if the restart-time elapses without a
// new session reaching Established, stale entries are withdrawn").
func (f *FSM) ArmGracefulRestartExpiry() time.Time {
	return time.Now().Add(f.gracefulRestartTime())
}

func (f *FSM) gracefulRestartTime() time.Duration {
	t := f.Neighbor.GracefulRestartTime
	if t == 0 {
		t = 120 * time.Second
	}
	return t
}

// ExpireGracefulRestart withdraws every entry still marked stale across
// the neighbor's Graceful-Restart families, for the reactor to forward to
// policy/API consumers. Safe to call even if the session has since
// reached Established (ClearStale will already have run for any family
// whose EOR arrived, so nothing stale remains there).
func (f *FSM) ExpireGracefulRestart() []change.Change {
	var out []change.Change
	for fam := range f.Neighbor.GracefulRestartFamilies {
		out = append(out, f.RIBIn.ExpireStale(fam)...)
	}
	return out
}
