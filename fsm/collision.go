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

	"github.com/coreswitch/bgpspeak/wire"
	"github.com/coreswitch/bgpspeak/wireerr"
)

// ResolveCollision implements spec.md §4.4's collision resolution: called
// by the reactor when a second TCP connection for this same peer identity
// shows up while this FSM is already past Idle (RFC 4271 §6.8). The
// session whose local Router-ID is the larger of the two wins; the loser
// is torn down with NOTIFICATION(Cease/Connection-Collision-Resolution).
//
// localWins reports whether THIS FSM's own in-progress session should
// survive; when true the caller must close the new connection without
// ever handing it to this FSM, and when false the caller should instead
// tear down this FSM's own session by calling Collide on it.
func (f *FSM) ResolveCollision(peerRouterID netip.Addr) (localWins bool) {
	if f.state == Idle || f.state == Active || f.state == Connect {
		// No OPEN exchanged yet on this side; nothing to collide with.
		return true
	}
	return f.localRouterID.Compare(peerRouterID) > 0
}

// Collide tears down this FSM's in-progress session as the loser of
// collision resolution.
func (f *FSM) Collide() wire.Message {
	err := wireerr.CeaseWith(wireerr.ConnectionCollisionResolution, "")
	f.resetToIdle()
	return wire.FromError(err)
}
