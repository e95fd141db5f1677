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

// OperationalMessage (SPEC_FULL.md §7) is framed as category(1) +
// subType(1) + value, and forwarded to the API event stream as a
// structural event rather than interpreted (admissible only in
// Established, per the FSM's admissibility table).
type OperationalMessage struct {
	Category uint8
	SubType  uint8
	Value    []byte
}

func (OperationalMessage) Type() uint8 { return TypeOperational }

func (o OperationalMessage) Pack(*negotiated.Negotiated) []byte {
	return append([]byte{o.Category, o.SubType}, o.Value...)
}

func decodeOperationalBody(body []byte, _ *negotiated.Negotiated) (Message, error) {
	if len(body) < 2 {
		return nil, wireerr.Framing(wireerr.BadMessageLength, "truncated OPERATIONAL")
	}
	return OperationalMessage{Category: body[0], SubType: body[1], Value: append([]byte(nil), body[2:]...)}, nil
}
