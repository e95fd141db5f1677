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
	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/negotiated"
	"github.com/coreswitch/bgpspeak/wireerr"
)

// RouteRefreshMessage is the RFC 2918 ROUTE-REFRESH message: AFI(2) +
// Reserved(1) + SAFI(1), no ORF sub-payload (spec.md §9 Open Question,
// preserved unsupported — SPEC_FULL.md §7).
type RouteRefreshMessage struct {
	Family afi.Family
}

func (RouteRefreshMessage) Type() uint8 { return TypeRouteRefresh }

func (r RouteRefreshMessage) Pack(*negotiated.Negotiated) []byte {
	return []byte{byte(r.Family.AFI() >> 8), byte(r.Family.AFI()), 0, byte(r.Family.SAFI())}
}

func decodeRouteRefreshBody(body []byte, _ *negotiated.Negotiated) (Message, error) {
	if len(body) != 4 {
		return nil, wireerr.Framing(wireerr.BadMessageLength, "bad ROUTE-REFRESH length")
	}
	fam := afi.Get(afi.AFI(uint16(body[0])<<8|uint16(body[1])), afi.SAFI(body[3]))
	return RouteRefreshMessage{Family: fam}, nil
}
