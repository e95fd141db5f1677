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

package attr

import (
	"fmt"

	"github.com/coreswitch/bgpspeak/negotiated"
)

// ASTrans is the reserved 2-byte placeholder ASN (RFC 6793 §4.2.3) used in
// AS_PATH in place of a 32-bit ASN when the session has not negotiated
// four-octet ASN support.
const ASTrans = 23456

// ASPathSegment is one AS_SET or AS_SEQUENCE run within an AS-Path.
type ASPathSegment struct {
	Type uint8 // ASSet or ASSequence
	ASNs []uint32
}

// ASPathAttr holds the logical AS-Path as full-width (up to 32-bit) ASNs
// regardless of what the peer session actually negotiated; Pack downgrades
// to 2-byte ASNs (spec.md §4.1.3 property 5) when required.
type ASPathAttr struct {
	Segments []ASPathSegment
}

func (ASPathAttr) Code() Code  { return ASPath }
func (ASPathAttr) Flags() byte { return WellKnownFlags }

// Pack emits AS_PATH sized to the session: 4-byte ASNs when the session
// negotiated four-octet ASN support, else 2-byte ASNs with any ASN beyond
// 16 bits downgraded to AS_TRANS (the matching AS4_PATH attribute carrying
// the real values is produced separately by PackAS4Path).
func (a ASPathAttr) Pack(n *negotiated.Negotiated) []byte {
	fourByte := n != nil && n.FourByteASN
	var out []byte
	for _, seg := range a.Segments {
		out = append(out, seg.Type, byte(len(seg.ASNs)))
		for _, asn := range seg.ASNs {
			if fourByte {
				out = append(out, put32(asn)...)
			} else {
				out = append(out, put16(downgradeASN(asn))...)
			}
		}
	}
	return out
}

// NeedsAS4Path reports whether packing this AS-Path over a non-4-byte
// session loses information that an accompanying AS4_PATH attribute must
// carry (spec.md §4.1.3 property 5).
func (a ASPathAttr) NeedsAS4Path(n *negotiated.Negotiated) bool {
	if n != nil && n.FourByteASN {
		return false
	}
	for _, seg := range a.Segments {
		for _, asn := range seg.ASNs {
			if asn > 0xffff {
				return true
			}
		}
	}
	return false
}

// PackAS4Path emits the AS4_PATH companion attribute: the full AS-Path
// re-encoded with 4-byte ASNs, used only when downgrading for a non-4-byte
// session.
func (a ASPathAttr) PackAS4Path() AS4PathAttr {
	return AS4PathAttr{Segments: a.Segments}
}

func downgradeASN(asn uint32) uint16 {
	if asn > 0xffff {
		return ASTrans
	}
	return uint16(asn)
}

func decodeASPath(_ byte, v []byte, n *negotiated.Negotiated) (Attribute, error) {
	fourByte := n != nil && n.FourByteASN
	segs, err := decodeASPathSegments(v, fourByte)
	if err != nil {
		return nil, err
	}
	return ASPathAttr{Segments: segs}, nil
}

func decodeASPathSegments(v []byte, fourByte bool) ([]ASPathSegment, error) {
	width := 2
	if fourByte {
		width = 4
	}
	var segs []ASPathSegment
	for len(v) > 0 {
		if len(v) < 2 {
			return nil, fmt.Errorf("attr: AS_PATH truncated segment header")
		}
		typ := v[0]
		count := int(v[1])
		v = v[2:]
		need := count * width
		if len(v) < need {
			return nil, fmt.Errorf("attr: AS_PATH truncated segment body (need %d bytes)", need)
		}
		asns := make([]uint32, count)
		for i := 0; i < count; i++ {
			if fourByte {
				asns[i] = get32(v[i*4 : i*4+4])
			} else {
				asns[i] = uint32(get16(v[i*2 : i*2+2]))
			}
		}
		segs = append(segs, ASPathSegment{Type: typ, ASNs: asns})
		v = v[need:]
	}
	return segs, nil
}

// AS4PathAttr is the RFC 6793 companion attribute carrying the true
// 4-byte ASNs of an AS-Path that was downgraded for a 2-byte session.
type AS4PathAttr struct {
	Segments []ASPathSegment
}

func (AS4PathAttr) Code() Code  { return AS4Path }
func (AS4PathAttr) Flags() byte { return OptionalTransitiveFlags }

func (a AS4PathAttr) Pack(*negotiated.Negotiated) []byte {
	var out []byte
	for _, seg := range a.Segments {
		out = append(out, seg.Type, byte(len(seg.ASNs)))
		for _, asn := range seg.ASNs {
			out = append(out, put32(asn)...)
		}
	}
	return out
}

func decodeAS4Path(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	segs, err := decodeASPathSegments(v, true)
	if err != nil {
		return nil, err
	}
	return AS4PathAttr{Segments: segs}, nil
}

// ReconcileAS4Path merges an AS4_PATH attribute received alongside a
// 2-byte AS_PATH back into full-width ASNs (RFC 6793 §4.2.3): the
// AS4_PATH segments replace the trailing portion of AS_PATH that
// corresponds to them, substituting real ASNs for any AS_TRANS entries.
func ReconcileAS4Path(asPath ASPathAttr, as4Path AS4PathAttr) ASPathAttr {
	flatOld := flattenSegments(asPath.Segments)
	flatNew := flattenSegments(as4Path.Segments)
	if len(flatNew) > len(flatOld) {
		// Malformed: AS4_PATH cannot be longer than AS_PATH. Fall back to
		// the AS_PATH as received.
		return asPath
	}
	offset := len(flatOld) - len(flatNew)
	merged := make([]uint32, len(flatOld))
	copy(merged, flatOld)
	copy(merged[offset:], flatNew)
	return ASPathAttr{Segments: resegment(asPath.Segments, merged)}
}

func flattenSegments(segs []ASPathSegment) []uint32 {
	var out []uint32
	for _, s := range segs {
		out = append(out, s.ASNs...)
	}
	return out
}

// resegment rebuilds segments with the same type/length shape as template
// but with ASNs drawn from flat, in order.
func resegment(template []ASPathSegment, flat []uint32) []ASPathSegment {
	out := make([]ASPathSegment, len(template))
	i := 0
	for si, seg := range template {
		asns := make([]uint32, len(seg.ASNs))
		copy(asns, flat[i:i+len(seg.ASNs)])
		out[si] = ASPathSegment{Type: seg.Type, ASNs: asns}
		i += len(seg.ASNs)
	}
	return out
}
