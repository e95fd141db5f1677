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

// Package change implements the Change value (spec.md §3 "Change"): a
// single route's announcement (with attributes) or withdrawal, keyed by
// the NLRI's fingerprint so the RIB can index, diff and de-duplicate on
// it without caring about the concrete NLRI type underneath.
package change

import (
	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/attr"
	"github.com/coreswitch/bgpspeak/negotiated"
	"github.com/coreswitch/bgpspeak/nlri"
)

// Change is either an announcement (Withdrawn == false, Attrs populated)
// or a withdrawal (Withdrawn == true, Attrs ignored).
type Change struct {
	NLRI      nlri.NLRI
	Attrs     attr.Collection
	Withdrawn bool
}

// Announce builds an announcement Change.
func Announce(n nlri.NLRI, attrs attr.Collection) Change {
	return Change{NLRI: n, Attrs: attrs}
}

// Withdraw builds a withdrawal Change; its Attrs are never consulted.
func Withdraw(n nlri.NLRI) Change {
	return Change{NLRI: n, Withdrawn: true}
}

// Family is a convenience accessor over the embedded NLRI.
func (c Change) Family() afi.Family { return c.NLRI.Family() }

// Fingerprint is the RIB indexing key for this change (spec.md §3
// "Change... fingerprint is the (family, NLRI canonical bytes, addpath
// id) tuple").
func (c Change) Fingerprint() string { return nlri.Fingerprint(c.NLRI) }

// Equal reports whether c and other represent the same route state under
// session n: same fingerprint, same withdrawn-ness, and (for
// announcements) attribute collections that canonicalise to the same
// wire bytes. Used by the RIB to detect no-op re-announcements.
func (c Change) Equal(other Change, n *negotiated.Negotiated) bool {
	if c.Fingerprint() != other.Fingerprint() || c.Withdrawn != other.Withdrawn {
		return false
	}
	if c.Withdrawn {
		return true
	}
	return c.Attrs.Equal(other.Attrs, n)
}
