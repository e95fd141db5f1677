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
	"github.com/coreswitch/bgpspeak/negotiated"
	"github.com/coreswitch/bgpspeak/wireerr"
)

// NotificationMessage is the BGP NOTIFICATION message (RFC 4271 §4.5).
// Data may carry an RFC 8203 UTF-8 shutdown reason on Cease notifications.
type NotificationMessage struct {
	Code uint8
	Sub  uint8
	Data []byte
}

func (NotificationMessage) Type() uint8 { return TypeNotification }

func (m NotificationMessage) Pack(*negotiated.Negotiated) []byte {
	return append([]byte{m.Code, m.Sub}, m.Data...)
}

// FromError builds a NotificationMessage from a wireerr.Error, the shape
// every decode/framing/FSM failure in this implementation produces.
func FromError(e *wireerr.Error) NotificationMessage {
	return NotificationMessage{Code: e.Code, Sub: e.Sub, Data: e.Data}
}

func decodeNotificationBody(body []byte, _ *negotiated.Negotiated) (Message, error) {
	if len(body) < 2 {
		return nil, wireerr.Framing(wireerr.BadMessageLength, "truncated NOTIFICATION")
	}
	return NotificationMessage{Code: body[0], Sub: body[1], Data: append([]byte(nil), body[2:]...)}, nil
}
