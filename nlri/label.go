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

// Label is a prefix carrying an MPLS label stack (RFC 8277, AFI/SAFI
// {ipv4,ipv6} x nlri-mpls): spec.md §3 "Label (prefix + MPLS label
// stack)". Each label is 3 octets: 20 label bits, 3 experimental bits,
// 1 bottom-of-stack bit.
type Label struct {
	base
}

// EncodeLabelStack packs a label stack into its 3-bytes-per-label wire
// form, setting the bottom-of-stack bit on the last entry.
func EncodeLabelStack(labels []uint32) []byte {
	out := make([]byte, 3*len(labels))
	for i, l := range labels {
		v := (l & 0xfffff) << 4
		if i == len(labels)-1 {
			v |= 1 // bottom of stack
		}
		out[3*i] = byte(v >> 16)
		out[3*i+1] = byte(v >> 8)
		out[3*i+2] = byte(v)
	}
	return out
}

// DecodeLabelStack reads consecutive 3-byte label entries from b until
// the bottom-of-stack bit is seen (or b is exhausted), returning the
// labels and the number of bytes consumed. The RFC 3107 §3 "withdraw
// compatibility" value 0x800000 gets no special case: its BoS bit is
// clear, so it decodes as label 0x80000 and decoding continues.
func DecodeLabelStack(b []byte) ([]uint32, int, error) {
	var labels []uint32
	n := 0
	for {
		if len(b) < n+3 {
			return nil, 0, fmt.Errorf("nlri: truncated label stack")
		}
		v := uint32(b[n])<<16 | uint32(b[n+1])<<8 | uint32(b[n+2])
		bos := v&1 != 0
		labels = append(labels, v>>4)
		n += 3
		if bos {
			break
		}
		if n > 3*16 { // defensive cap against malformed streams with no BoS bit
			return nil, 0, fmt.Errorf("nlri: label stack too deep")
		}
	}
	return labels, n, nil
}

// NewLabel packs labels + prefix into canonical wire bytes.
func NewLabel(fam afi.Family, labels []uint32, p netip.Prefix) Label {
	stack := EncodeLabelStack(labels)
	bits := p.Bits()
	nbytes := bitsToBytes(bits)
	prefixBytes := p.Addr().AsSlice()[:nbytes]

	totalBits := len(stack)*8 + bits
	raw := make([]byte, 1+len(stack)+nbytes)
	raw[0] = byte(totalBits)
	copy(raw[1:], stack)
	copy(raw[1+len(stack):], prefixBytes)
	return Label{base: base{family: fam, raw: raw}}
}

// ParseLabel decodes one Label NLRI entry, returning bytes consumed.
func ParseLabel(fam afi.Family, b []byte) (Label, int, error) {
	if len(b) < 1 {
		return Label{}, 0, fmt.Errorf("nlri: empty label nlri")
	}
	totalBits := int(b[0])
	totalBytes := bitsToBytes(totalBits)
	if len(b) < 1+totalBytes {
		return Label{}, 0, fmt.Errorf("nlri: truncated label nlri")
	}
	raw := append([]byte(nil), b[:1+totalBytes]...)
	return Label{base: base{family: fam, raw: raw}}, 1 + totalBytes, nil
}

// Labels parses the label stack out of the stored bytes.
func (n Label) Labels() []uint32 {
	stack := n.stackBytes()
	labels, _, _ := DecodeLabelStack(stack)
	return labels
}

func (n Label) stackBytes() []byte {
	b := n.raw[1:]
	consumed := 0
	for consumed+3 <= len(b) {
		v := uint32(b[consumed])<<16 | uint32(b[consumed+1])<<8 | uint32(b[consumed+2])
		consumed += 3
		if v&1 != 0 {
			break
		}
	}
	return b[:consumed]
}

// Prefix parses the semantic prefix following the label stack.
func (n Label) Prefix() netip.Prefix {
	totalBits := int(n.raw[0])
	stackLen := len(n.stackBytes())
	prefixBits := totalBits - stackLen*8
	prefixBytes := n.raw[1+stackLen:]

	var addrBytes [16]byte
	copy(addrBytes[:], prefixBytes)
	var addr netip.Addr
	if n.family.AFI() == afi.IPv6 {
		addr = netip.AddrFrom16(addrBytes)
	} else {
		var a4 [4]byte
		copy(a4[:], prefixBytes)
		addr = netip.AddrFrom4(a4)
	}
	return netip.PrefixFrom(addr, prefixBits)
}

func (n Label) WithPathID(id uint32) NLRI {
	n.base.hasID = true
	n.base.id = id
	return n
}

// RouteDistinguisher is the 8-byte VPN scoping key (spec.md GLOSSARY
// "Route-Distinguisher"). Types 0/1/2 (RFC 4364 §4.2) are all stored
// as opaque 8 bytes; String renders type 0/1/2 conventionally.
type RouteDistinguisher [8]byte

func (rd RouteDistinguisher) String() string {
	typ := uint16(rd[0])<<8 | uint16(rd[1])
	switch typ {
	case 0:
		admin := uint16(rd[2])<<8 | uint16(rd[3])
		assigned := uint32(rd[4])<<24 | uint32(rd[5])<<16 | uint32(rd[6])<<8 | uint32(rd[7])
		return fmt.Sprintf("%d:%d", admin, assigned)
	case 1:
		ip := netip.AddrFrom4([4]byte{rd[2], rd[3], rd[4], rd[5]})
		assigned := uint16(rd[6])<<8 | uint16(rd[7])
		return fmt.Sprintf("%s:%d", ip, assigned)
	case 2:
		admin := uint32(rd[2])<<24 | uint32(rd[3])<<16 | uint32(rd[4])<<8 | uint32(rd[5])
		assigned := uint16(rd[6])<<8 | uint16(rd[7])
		return fmt.Sprintf("%d:%d", admin, assigned)
	}
	return fmt.Sprintf("%x", [8]byte(rd))
}

// IPVPN is a VPN-IPv4/VPN-IPv6 route: label stack + route-distinguisher +
// prefix (spec.md §3 "IPVPN (label stack + route-distinguisher +
// prefix)"), used for AFI/SAFI {ipv4,ipv6} x mpls-vpn.
type IPVPN struct {
	base
}

func NewIPVPN(fam afi.Family, labels []uint32, rd RouteDistinguisher, p netip.Prefix) IPVPN {
	stack := EncodeLabelStack(labels)
	bits := p.Bits()
	nbytes := bitsToBytes(bits)
	prefixBytes := p.Addr().AsSlice()[:nbytes]

	totalBits := len(stack)*8 + 8*8 + bits
	raw := make([]byte, 0, 1+len(stack)+8+nbytes)
	raw = append(raw, byte(totalBits))
	raw = append(raw, stack...)
	raw = append(raw, rd[:]...)
	raw = append(raw, prefixBytes...)
	return IPVPN{base: base{family: fam, raw: raw}}
}

func ParseIPVPN(fam afi.Family, b []byte) (IPVPN, int, error) {
	if len(b) < 1 {
		return IPVPN{}, 0, fmt.Errorf("nlri: empty ipvpn nlri")
	}
	totalBits := int(b[0])
	totalBytes := bitsToBytes(totalBits)
	if len(b) < 1+totalBytes || totalBytes < 8 {
		return IPVPN{}, 0, fmt.Errorf("nlri: truncated ipvpn nlri")
	}
	raw := append([]byte(nil), b[:1+totalBytes]...)
	return IPVPN{base: base{family: fam, raw: raw}}, 1 + totalBytes, nil
}

func (n IPVPN) stackBytes() []byte {
	b := n.raw[1:]
	consumed := 0
	for consumed+3 <= len(b)-8 { // leave room for the 8-byte RD
		v := uint32(b[consumed])<<16 | uint32(b[consumed+1])<<8 | uint32(b[consumed+2])
		consumed += 3
		if v&1 != 0 {
			break
		}
	}
	return b[:consumed]
}

func (n IPVPN) Labels() []uint32 {
	labels, _, _ := DecodeLabelStack(n.stackBytes())
	return labels
}

func (n IPVPN) RD() RouteDistinguisher {
	var rd RouteDistinguisher
	stackLen := len(n.stackBytes())
	copy(rd[:], n.raw[1+stackLen:1+stackLen+8])
	return rd
}

func (n IPVPN) Prefix() netip.Prefix {
	totalBits := int(n.raw[0])
	stackLen := len(n.stackBytes())
	prefixBits := totalBits - stackLen*8 - 64
	prefixBytes := n.raw[1+stackLen+8:]

	var addrBytes [16]byte
	copy(addrBytes[:], prefixBytes)
	var addr netip.Addr
	if n.family.AFI() == afi.IPv6 {
		addr = netip.AddrFrom16(addrBytes)
	} else {
		var a4 [4]byte
		copy(a4[:], prefixBytes)
		addr = netip.AddrFrom4(a4)
	}
	if prefixBits < 0 {
		prefixBits = 0
	}
	return netip.PrefixFrom(addr, prefixBits)
}

func (n IPVPN) WithPathID(id uint32) NLRI {
	n.base.hasID = true
	n.base.id = id
	return n
}
