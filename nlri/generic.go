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

package nlri

import (
	"fmt"

	"github.com/coreswitch/bgpspeak/afi"
)

// VPLS is the fixed 19-byte VPLS NLRI record (RFC 4761 §3.2.2): RD(8) +
// VE-ID(2) + VE-Block-Offset(2) + VE-Block-Size(2) + Label-Base(3),
// spec.md §3 "VPLS (fixed 19-byte record)". AFI/SAFI l2vpn x vpls.
type VPLS struct {
	base
}

func NewVPLS(raw [19]byte) VPLS {
	return VPLS{base: base{family: afi.L2VPNVPLS, raw: raw[:]}}
}

func ParseVPLS(b []byte) (VPLS, int, error) {
	if len(b) < 19 {
		return VPLS{}, 0, fmt.Errorf("nlri: vpls record requires 19 bytes, got %d", len(b))
	}
	raw := append([]byte(nil), b[:19]...)
	return VPLS{base: base{family: afi.L2VPNVPLS, raw: raw}}, 19, nil
}

func (n VPLS) WithPathID(id uint32) NLRI {
	n.base.hasID = true
	n.base.id = id
	return n
}

// Generic is the byte-preserving fallback used for families this speaker
// round-trips without semantic accessors: BGP-LS, BGP-LS-VPN, MVPN, MUP
// and RTC (spec.md §4.2: "Unknown codes in a kind that has a generic
// fallback... route to that fallback"; SPEC_FULL.md §6.1 extends this
// same rule one level broader, to whole families rather than just
// sub-types within EVPN/MVPN/MUP/BGP-LS). Each entry is framed with a
// 2-byte big-endian length prefix so repeated entries inside one
// MP-Reach/MP-Unreach NLRI field can still be split deterministically;
// that framing is this implementation's own convention, not a wire
// format mandated by the family's RFC.
type Generic struct {
	base
}

func NewGeneric(fam afi.Family, value []byte) Generic {
	raw := make([]byte, 2+len(value))
	raw[0] = byte(len(value) >> 8)
	raw[1] = byte(len(value))
	copy(raw[2:], value)
	return Generic{base: base{family: fam, raw: raw}}
}

func ParseGeneric(fam afi.Family, b []byte) (Generic, int, error) {
	if len(b) < 2 {
		return Generic{}, 0, fmt.Errorf("nlri: truncated generic nlri length")
	}
	length := int(b[0])<<8 | int(b[1])
	if len(b) < 2+length {
		return Generic{}, 0, fmt.Errorf("nlri: truncated generic nlri value (need %d bytes)", length)
	}
	raw := append([]byte(nil), b[:2+length]...)
	return Generic{base: base{family: fam, raw: raw}}, 2 + length, nil
}

func (n Generic) Value() []byte { return n.raw[2:] }

func (n Generic) WithPathID(id uint32) NLRI {
	n.base.hasID = true
	n.base.id = id
	return n
}
