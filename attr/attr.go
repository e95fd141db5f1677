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

// Package attr implements BGP path attributes (spec.md §3 "Path
// Attribute", §4.1.3). Each attribute is `[flags(1)][code(1)][length(1 or
// 2)][value]`; decoding dispatches on code through registry.Table to a
// registered handler, with unknown codes preserved as Unknown (generic
// fallback, flags/type/bytes retained) per §4.1.3.
package attr

import (
	"encoding/binary"
	"fmt"

	"github.com/coreswitch/bgpspeak/negotiated"
	"github.com/coreswitch/bgpspeak/registry"
)

type Code uint8

const (
	Origin              Code = 1
	ASPath              Code = 2
	NextHop             Code = 3
	MED                 Code = 4
	LocalPref           Code = 5
	AtomicAggregate     Code = 6
	Aggregator          Code = 7
	Communities         Code = 8
	OriginatorID        Code = 9
	ClusterList         Code = 10
	MPReachNLRI         Code = 14
	MPUnreachNLRI       Code = 15
	ExtendedCommunities Code = 16
	AS4Path             Code = 17
	Aggregator4         Code = 18
	PMSITunnel          Code = 22
	AIGP                Code = 26
	LargeCommunities    Code = 32
	PrefixSID           Code = 40
)

// Flag bits (spec.md §4.1.3).
const (
	FlagOptional       byte = 0x80
	FlagTransitive     byte = 0x40
	FlagPartial        byte = 0x20
	FlagExtendedLength byte = 0x10
)

// WellKnownFlags / OptionalTransitiveFlags / OptionalNonTransitiveFlags
// are the canonical flag bytes for each attribute category (spec.md
// §4.1.3: "Well-known attributes MUST have transitive set; optional
// non-transitive must not").
const (
	WellKnownFlags             = FlagTransitive
	OptionalTransitiveFlags    = FlagOptional | FlagTransitive
	OptionalNonTransitiveFlags = FlagOptional
)

// Origin values.
const (
	OriginIGP        = 0
	OriginEGP        = 1
	OriginIncomplete = 2
)

// AS-Path segment types.
const (
	ASSet      = 1
	ASSequence = 2
)

// Attribute is any decoded path attribute. Pack returns the value bytes
// only (the caller prefixes flags/code/length); Flags returns the flag
// byte to use when re-encoding (which for Unknown is whatever was
// received, partial-flagged per RFC 4271 §5 rules applied by the caller).
type Attribute interface {
	Code() Code
	Flags() byte
	Pack(n *negotiated.Negotiated) []byte
}

// DecodeFunc parses one attribute's value given its flags (codes that
// change shape based on Negotiated, like AS-Path, inspect n).
type DecodeFunc func(flags byte, value []byte, n *negotiated.Negotiated) (Attribute, error)

// Table is the attribute kind of the Message Registry (spec.md §4.2).
var Table = registry.New[Code, DecodeFunc]()

func init() {
	Table.Register(Origin, "ORIGIN", decodeOrigin)
	Table.Register(ASPath, "AS_PATH", decodeASPath)
	Table.Register(AS4Path, "AS4_PATH", decodeAS4Path)
	Table.Register(NextHop, "NEXT_HOP", decodeNextHop)
	Table.Register(MED, "MULTI_EXIT_DISC", decodeMED)
	Table.Register(LocalPref, "LOCAL_PREF", decodeLocalPref)
	Table.Register(AtomicAggregate, "ATOMIC_AGGREGATE", decodeAtomicAggregate)
	Table.Register(Aggregator, "AGGREGATOR", decodeAggregator)
	Table.Register(Aggregator4, "AS4_AGGREGATOR", decodeAggregator4)
	Table.Register(Communities, "COMMUNITIES", decodeCommunities)
	Table.Register(ExtendedCommunities, "EXTENDED_COMMUNITIES", decodeExtendedCommunities)
	Table.Register(LargeCommunities, "LARGE_COMMUNITIES", decodeLargeCommunities)
	Table.Register(OriginatorID, "ORIGINATOR_ID", decodeOriginatorID)
	Table.Register(ClusterList, "CLUSTER_LIST", decodeClusterList)
	Table.Register(MPReachNLRI, "MP_REACH_NLRI", decodeMPReach)
	Table.Register(MPUnreachNLRI, "MP_UNREACH_NLRI", decodeMPUnreach)
	Table.Register(AIGP, "AIGP", decodeAIGP)
	Table.Register(PMSITunnel, "PMSI_TUNNEL", decodePMSITunnel)
	Table.Register(PrefixSID, "PREFIX_SID", decodePrefixSID)
}

// Unknown is the generic fallback (spec.md §4.1.3: "Unknown attributes
// MUST be preserved as a generic attribute retaining original flags and
// bytes, with the partial flag set per RFC 4271 §5 when re-encoded by a
// non-origin speaker").
type Unknown struct {
	code  Code
	flags byte
	value []byte
}

func NewUnknown(code Code, flags byte, value []byte) Unknown {
	return Unknown{code: code, flags: flags, value: append([]byte(nil), value...)}
}

func (u Unknown) Code() Code  { return u.code }
func (u Unknown) Flags() byte { return u.flags }
func (u Unknown) Pack(*negotiated.Negotiated) []byte {
	return u.value
}

// Repartialize sets the partial flag, per RFC 4271 §5: an optional
// transitive attribute that passes through a speaker unmodified but was
// not originated by it must have PARTIAL set when re-advertised.
func (u Unknown) Repartialize() Unknown {
	u.flags |= FlagPartial
	return u
}

func put16(v uint16) []byte { b := make([]byte, 2); binary.BigEndian.PutUint16(b, v); return b }
func put32(v uint32) []byte { b := make([]byte, 4); binary.BigEndian.PutUint32(b, v); return b }
func get16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func get32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

func requireLen(name string, b []byte, want int) error {
	if len(b) != want {
		return fmt.Errorf("attr: %s requires %d bytes, got %d", name, want, len(b))
	}
	return nil
}
