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

import "github.com/coreswitch/bgpspeak/wire"

// admissible implements spec.md §4.4's per-state admissibility table.
// Idle/Active/Connect admit nothing (those states only react to TCP/timer
// events, never application messages); OpenSent admits OPEN and
// NOTIFICATION; OpenConfirm admits KEEPALIVE and NOTIFICATION; Established
// admits UPDATE, KEEPALIVE and NOTIFICATION plus the supplemented
// Route-Refresh and Operational kinds (SPEC_FULL.md §7), but not OPEN.
func admissible(s State, msgType uint8) bool {
	switch s {
	case OpenSent:
		return msgType == wire.TypeOpen || msgType == wire.TypeNotification
	case OpenConfirm:
		return msgType == wire.TypeKeepalive || msgType == wire.TypeNotification
	case Established:
		switch msgType {
		case wire.TypeUpdate, wire.TypeKeepalive, wire.TypeNotification, wire.TypeRouteRefresh, wire.TypeOperational:
			return true
		}
		return false
	default: // Idle, Active, Connect
		return false
	}
}
