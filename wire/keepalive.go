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

// KeepaliveMessage is the BGP KEEPALIVE message (RFC 4271 §4.4): header
// only, zero-length body.
type KeepaliveMessage struct{}

func (KeepaliveMessage) Type() uint8                             { return TypeKeepalive }
func (KeepaliveMessage) Pack(*negotiated.Negotiated) []byte { return nil }

func decodeKeepaliveBody(body []byte, _ *negotiated.Negotiated) (Message, error) {
	if len(body) != 0 {
		return nil, wireerr.Framing(wireerr.BadMessageLength, "non-empty KEEPALIVE body")
	}
	return KeepaliveMessage{}, nil
}
