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
	"net/netip"

	"github.com/coreswitch/bgpspeak/afi"
)

// bitsToBytes is the classic "VLBM" prefix byte count: ceil(bits/8).
func bitsToBytes(bits int) int { return (bits + 7) / 8 }

// INET is a plain IPv4/IPv6 prefix, the wire shape used by classic
// IPv4-unicast UPDATE NLRI and by MP-Reach/MP-Unreach for unicast and
// multicast families (spec.md §3 "NLRI... INET (prefix)").
type INET struct {
	base
}

// NewINET packs a prefix into its canonical wire bytes immediately
// (spec.md §4.1.2: "Constructing an NLRI from semantic fields... packs
// those fields into canonical bytes immediately").
func NewINET(fam afi.Family, p netip.Prefix) INET {
	bits := p.Bits()
	addr := p.Addr()
	nbytes := bitsToBytes(bits)
	raw := make([]byte, 1+nbytes)
	raw[0] = byte(bits)
	b := addr.AsSlice()
	copy(raw[1:], b[:nbytes])
	return INET{base: base{family: fam, raw: raw}}
}

// ParseINET decodes one prefix NLRI entry from b, returning the parsed
// instance and the number of bytes consumed (1 + ceil(bits/8)).
func ParseINET(fam afi.Family, b []byte) (INET, int, error) {
	if len(b) < 1 {
		return INET{}, 0, fmt.Errorf("nlri: empty inet prefix")
	}
	bits := int(b[0])
	maxBits := 32
	if fam.AFI() == afi.IPv6 {
		maxBits = 128
	}
	if bits > maxBits {
		return INET{}, 0, fmt.Errorf("nlri: prefix length %d exceeds family width", bits)
	}
	nbytes := bitsToBytes(bits)
	if len(b) < 1+nbytes {
		return INET{}, 0, fmt.Errorf("nlri: truncated prefix (need %d bytes)", nbytes)
	}
	raw := append([]byte(nil), b[:1+nbytes]...)
	return INET{base: base{family: fam, raw: raw}}, 1 + nbytes, nil
}

// Prefix parses the semantic prefix value from the stored bytes on demand
// (spec.md §4.1.2: "Accessing semantic fields... is done via lazy
// accessors that parse from the stored bytes on demand"). INET is
// immutable, so this never caches; the cost is a few-byte copy per call.
func (n INET) Prefix() netip.Prefix {
	bits := int(n.raw[0])
	var addrBytes [16]byte
	copy(addrBytes[:], n.raw[1:])
	var addr netip.Addr
	if n.family.AFI() == afi.IPv6 {
		addr = netip.AddrFrom16(addrBytes)
	} else {
		var a4 [4]byte
		copy(a4[:], n.raw[1:])
		addr = netip.AddrFrom4(a4)
	}
	return netip.PrefixFrom(addr, bits)
}

func (n INET) WithPathID(id uint32) NLRI {
	n.base.hasID = true
	n.base.id = id
	return n
}

func (n INET) String() string {
	return n.Prefix().String()
}
