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

// Package nlri implements the polymorphic NLRI identity of a route
// (spec.md §3 "NLRI", §4.1.2 "NLRI: packed-bytes-first"). Every variant
// stores the exact wire bytes it was built from and exposes semantic
// fields through lazy accessors parsed from those bytes on demand;
// instances are immutable after construction, and two NLRIs with the same
// (family, canonical bytes, addpath id) fingerprint compare equal.
package nlri

import (
	"encoding/binary"
	"fmt"

	"github.com/coreswitch/bgpspeak/afi"
)

// NLRI is the common interface every route-identity variant satisfies.
// Per spec.md §4.1.2, constructing from semantic fields packs immediately;
// decoding from the wire stores the raw slice and defers semantic parsing.
type NLRI interface {
	Family() afi.Family
	// Bytes returns the canonical wire encoding of this NLRI, not
	// including any ADD-PATH path-identifier prefix (that is applied by
	// the wire codec's UPDATE encoder per Negotiated, spec.md §4.1.3).
	Bytes() []byte
	// PathID returns the ADD-PATH identifier, if this instance carries
	// one, and whether it is present at all.
	PathID() (uint32, bool)
}

// WithPathID returns a copy of n carrying path identifier id. Variants
// implement this via the pathIDSetter interface; non-addpath-aware callers
// can use the package-level helper below.
type pathIDSetter interface {
	WithPathID(id uint32) NLRI
}

// WithPathID attaches an ADD-PATH identifier to any NLRI value.
func WithPathID(n NLRI, id uint32) NLRI {
	if s, ok := n.(pathIDSetter); ok {
		return s.WithPathID(id)
	}
	return n
}

// Fingerprint is the RIB indexing key (spec.md §3 "Change... fingerprint
// is the (family, NLRI canonical bytes, addpath id) tuple"). It is a
// plain string so it can be used directly as a Go map key.
func Fingerprint(n NLRI) string {
	f := n.Family()
	var id uint32
	if pid, ok := n.PathID(); ok {
		id = pid + 1 // +1 so "no path id" (0 below) never collides with id==0
	}
	return fmt.Sprintf("%d/%d:%d:%s", f.AFI(), f.SAFI(), id, n.Bytes())
}

// base is embedded by every concrete variant: it carries the immutable
// wire bytes and optional addpath id common to all of them.
type base struct {
	family afi.Family
	raw    []byte
	hasID  bool
	id     uint32
}

func (b base) Family() afi.Family   { return b.family }
func (b base) Bytes() []byte        { return b.raw }
func (b base) PathID() (uint32, bool) { return b.id, b.hasID }

func putUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func getUint32(b []byte) uint32    { return binary.BigEndian.Uint32(b) }
