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
	"net/netip"

	"github.com/coreswitch/bgpspeak/negotiated"
)

// ---- ORIGIN ----

type OriginAttr struct {
	Value uint8 // OriginIGP / OriginEGP / OriginIncomplete
}

func (OriginAttr) Code() Code  { return Origin }
func (OriginAttr) Flags() byte { return WellKnownFlags }
func (o OriginAttr) Pack(*negotiated.Negotiated) []byte { return []byte{o.Value} }

func decodeOrigin(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	if err := requireLen("ORIGIN", v, 1); err != nil {
		return nil, err
	}
	return OriginAttr{Value: v[0]}, nil
}

// ---- NEXT_HOP ----

type NextHopAttr struct {
	Value netip.Addr // always IPv4 on the wire for this attribute
}

func (NextHopAttr) Code() Code  { return NextHop }
func (NextHopAttr) Flags() byte { return WellKnownFlags }
func (n NextHopAttr) Pack(*negotiated.Negotiated) []byte {
	b := n.Value.As4()
	return b[:]
}

func decodeNextHop(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	if err := requireLen("NEXT_HOP", v, 4); err != nil {
		return nil, err
	}
	return NextHopAttr{Value: netip.AddrFrom4([4]byte{v[0], v[1], v[2], v[3]})}, nil
}

// ---- MULTI_EXIT_DISC ----

type MEDAttr struct{ Value uint32 }

func (MEDAttr) Code() Code  { return MED }
func (MEDAttr) Flags() byte { return OptionalNonTransitiveFlags }
func (m MEDAttr) Pack(*negotiated.Negotiated) []byte { return put32(m.Value) }

func decodeMED(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	if err := requireLen("MULTI_EXIT_DISC", v, 4); err != nil {
		return nil, err
	}
	return MEDAttr{Value: get32(v)}, nil
}

// ---- LOCAL_PREF ----

type LocalPrefAttr struct{ Value uint32 }

func (LocalPrefAttr) Code() Code  { return LocalPref }
func (LocalPrefAttr) Flags() byte { return WellKnownFlags }
func (l LocalPrefAttr) Pack(*negotiated.Negotiated) []byte { return put32(l.Value) }

func decodeLocalPref(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	if err := requireLen("LOCAL_PREF", v, 4); err != nil {
		return nil, err
	}
	return LocalPrefAttr{Value: get32(v)}, nil
}

// ---- ATOMIC_AGGREGATE ----

type AtomicAggregateAttr struct{}

func (AtomicAggregateAttr) Code() Code  { return AtomicAggregate }
func (AtomicAggregateAttr) Flags() byte { return WellKnownFlags }
func (AtomicAggregateAttr) Pack(*negotiated.Negotiated) []byte { return nil }

func decodeAtomicAggregate(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	if err := requireLen("ATOMIC_AGGREGATE", v, 0); err != nil {
		return nil, err
	}
	return AtomicAggregateAttr{}, nil
}

// ---- AGGREGATOR / AS4_AGGREGATOR ----

type AggregatorAttr struct {
	ASN     uint32 // 2-byte on the wire for Aggregator, 4-byte for Aggregator4
	Address netip.Addr
	fourByte bool
}

func (a AggregatorAttr) Code() Code {
	if a.fourByte {
		return Aggregator4
	}
	return Aggregator
}
func (AggregatorAttr) Flags() byte { return OptionalTransitiveFlags }
func (a AggregatorAttr) Pack(*negotiated.Negotiated) []byte {
	addr := a.Address.As4()
	if a.fourByte {
		return append(put32(a.ASN), addr[:]...)
	}
	return append(put16(uint16(a.ASN)), addr[:]...)
}

func NewAggregator(asn uint32, addr netip.Addr, fourByte bool) AggregatorAttr {
	return AggregatorAttr{ASN: asn, Address: addr, fourByte: fourByte}
}

func decodeAggregator(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	if err := requireLen("AGGREGATOR", v, 6); err != nil {
		return nil, err
	}
	return AggregatorAttr{ASN: uint32(get16(v[:2])), Address: netip.AddrFrom4([4]byte{v[2], v[3], v[4], v[5]})}, nil
}

func decodeAggregator4(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	if err := requireLen("AS4_AGGREGATOR", v, 8); err != nil {
		return nil, err
	}
	return AggregatorAttr{ASN: get32(v[:4]), Address: netip.AddrFrom4([4]byte{v[4], v[5], v[6], v[7]}), fourByte: true}, nil
}

// ---- ORIGINATOR_ID ----

type OriginatorIDAttr struct{ Value netip.Addr }

func (OriginatorIDAttr) Code() Code  { return OriginatorID }
func (OriginatorIDAttr) Flags() byte { return OptionalNonTransitiveFlags }
func (o OriginatorIDAttr) Pack(*negotiated.Negotiated) []byte {
	b := o.Value.As4()
	return b[:]
}

func decodeOriginatorID(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	if err := requireLen("ORIGINATOR_ID", v, 4); err != nil {
		return nil, err
	}
	return OriginatorIDAttr{Value: netip.AddrFrom4([4]byte{v[0], v[1], v[2], v[3]})}, nil
}

// ---- CLUSTER_LIST ----

type ClusterListAttr struct{ Value []netip.Addr }

func (ClusterListAttr) Code() Code  { return ClusterList }
func (ClusterListAttr) Flags() byte { return OptionalNonTransitiveFlags }
func (c ClusterListAttr) Pack(*negotiated.Negotiated) []byte {
	out := make([]byte, 0, 4*len(c.Value))
	for _, a := range c.Value {
		b := a.As4()
		out = append(out, b[:]...)
	}
	return out
}

func decodeClusterList(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	if len(v)%4 != 0 {
		return nil, requireLen("CLUSTER_LIST", v, len(v)-len(v)%4)
	}
	var out []netip.Addr
	for i := 0; i+4 <= len(v); i += 4 {
		out = append(out, netip.AddrFrom4([4]byte{v[i], v[i+1], v[i+2], v[i+3]}))
	}
	return ClusterListAttr{Value: out}, nil
}

// ---- AIGP ----

type AIGPAttr struct{ Value uint64 }

func (AIGPAttr) Code() Code  { return AIGP }
func (AIGPAttr) Flags() byte { return OptionalNonTransitiveFlags }
func (a AIGPAttr) Pack(*negotiated.Negotiated) []byte {
	// TLV: type(1)=1, length(2)=11, value(8)
	out := make([]byte, 11)
	out[0] = 1
	out[1] = 0
	out[2] = 11
	for i := 0; i < 8; i++ {
		out[3+i] = byte(a.Value >> (56 - 8*i))
	}
	return out
}

func decodeAIGP(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	if len(v) < 11 || v[0] != 1 {
		return nil, requireLen("AIGP", v, 11)
	}
	var val uint64
	for i := 0; i < 8; i++ {
		val = val<<8 | uint64(v[3+i])
	}
	return AIGPAttr{Value: val}, nil
}

// ---- PMSI_TUNNEL (RFC 6514) ----

type PMSITunnelAttr struct {
	Flags_  uint8
	Type    uint8
	Label   uint32 // 20-bit MPLS label in the field's high 20 bits, whatever Type is; a 24-bit VNI does not fit
	Value   []byte // tunnel identifier, opaque
}

func (PMSITunnelAttr) Code() Code  { return PMSITunnel }
func (PMSITunnelAttr) Flags() byte { return OptionalTransitiveFlags }
func (p PMSITunnelAttr) Pack(*negotiated.Negotiated) []byte {
	label := p.Label << 4
	out := []byte{p.Flags_, p.Type, byte(label >> 16), byte(label >> 8), byte(label)}
	return append(out, p.Value...)
}

func decodePMSITunnel(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	if len(v) < 5 {
		return nil, requireLen("PMSI_TUNNEL", v, 5)
	}
	label := (uint32(v[2])<<16 | uint32(v[3])<<8 | uint32(v[4])) >> 4
	return PMSITunnelAttr{Flags_: v[0], Type: v[1], Label: label, Value: append([]byte(nil), v[5:]...)}, nil
}

// ---- PREFIX_SID (RFC 8669), kept opaque at TLV granularity ----

type PrefixSIDAttr struct {
	Value []byte // sequence of [type(1)][length(2)][value] TLVs, preserved verbatim
}

func (PrefixSIDAttr) Code() Code  { return PrefixSID }
func (PrefixSIDAttr) Flags() byte { return OptionalTransitiveFlags }
func (p PrefixSIDAttr) Pack(*negotiated.Negotiated) []byte { return p.Value }

func decodePrefixSID(_ byte, v []byte, _ *negotiated.Negotiated) (Attribute, error) {
	return PrefixSIDAttr{Value: append([]byte(nil), v...)}, nil
}
