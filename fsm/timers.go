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

	"github.com/coreswitch/bgpspeak/wire"
	"github.com/coreswitch/bgpspeak/wireerr"
)

// NextDeadline returns the earliest timer deadline currently armed for
// this FSM, zero if none is armed. The reactor uses this across every
// peer to compute its poll-loop's bounded wait (spec.md §4.7: "bounded-
// timeout multiplex wait").
func (f *FSM) NextDeadline() time.Time {
	var earliest time.Time
	consider := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	switch f.state {
	case Connect, Active:
		consider(f.connectRetryDeadline)
	case Idle:
		consider(f.idleHoldDeadline)
	case OpenSent, OpenConfirm, Established:
		consider(f.holdDeadline)
		if f.state == Established {
			consider(f.keepaliveDeadline)
		}
	}
	return earliest
}

// Tick is called by the reactor once this FSM's NextDeadline has passed;
// it fires whichever timer(s) actually expired and returns any outbound
// messages (typically a KEEPALIVE) and a NOTIFICATION if Hold expired.
func (f *FSM) Tick(now time.Time) ([]wire.Message, *wireerr.Error) {
	switch f.state {
	case Idle:
		if !f.idleHoldDeadline.IsZero() && !now.Before(f.idleHoldDeadline) {
			f.IdleHoldExpired()
		}
		return nil, nil

	case Connect, Active:
		if !f.connectRetryDeadline.IsZero() && !now.Before(f.connectRetryDeadline) {
			f.ConnectRetryExpired()
		}
		return nil, nil

	case OpenSent, OpenConfirm:
		if !f.holdDeadline.IsZero() && !now.Before(f.holdDeadline) {
			return f.expireHold()
		}
		return nil, nil

	case Established:
		var out []wire.Message
		if !f.holdDeadline.IsZero() && !now.Before(f.holdDeadline) {
			return f.expireHold()
		}
		if !f.keepaliveDeadline.IsZero() && !now.Before(f.keepaliveDeadline) {
			out = append(out, wire.KeepaliveMessage{})
			f.keepaliveDeadline = f.nextKeepaliveDeadline()
		}
		return out, nil
	}
	return nil, nil
}

func (f *FSM) expireHold() ([]wire.Message, *wireerr.Error) {
	err := wireerr.HoldExpired()
	f.resetToIdle()
	f.armIdleHold()
	return []wire.Message{wire.FromError(err)}, err
}
