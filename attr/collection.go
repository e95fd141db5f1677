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
	"bytes"
	"fmt"
	"sort"

	"github.com/coreswitch/bgpspeak/negotiated"
	"github.com/coreswitch/bgpspeak/wireerr"
)

// Collection is an ordered-by-code set of path attributes attached to a
// route (spec.md §3 "Attribute Collection... Two collections are equal
// iff they canonicalise to the same wire bytes"). At most one attribute
// per code may be present, matching RFC 4271 §5's "a given path attribute
// type may appear at most once".
type Collection struct {
	byCode map[Code]Attribute
}

// NewCollection builds a Collection from a list of attributes; later
// entries for the same code overwrite earlier ones.
func NewCollection(attrs ...Attribute) Collection {
	c := Collection{byCode: map[Code]Attribute{}}
	for _, a := range attrs {
		c.byCode[a.Code()] = a
	}
	return c
}

// Get returns the attribute registered under code, if present.
func (c Collection) Get(code Code) (Attribute, bool) {
	a, ok := c.byCode[code]
	return a, ok
}

// With returns a copy of c with a added (or replacing any attribute of
// the same code).
func (c Collection) With(a Attribute) Collection {
	out := Collection{byCode: make(map[Code]Attribute, len(c.byCode)+1)}
	for k, v := range c.byCode {
		out.byCode[k] = v
	}
	out.byCode[a.Code()] = a
	return out
}

// Without returns a copy of c with code removed.
func (c Collection) Without(code Code) Collection {
	out := Collection{byCode: make(map[Code]Attribute, len(c.byCode))}
	for k, v := range c.byCode {
		if k != code {
			out.byCode[k] = v
		}
	}
	return out
}

// Len reports the number of attributes in the collection.
func (c Collection) Len() int { return len(c.byCode) }

// sortedCodes returns every code present, in ascending numeric order —
// the canonical attribute ordering this implementation always emits in,
// so that two collections carrying the same attributes always pack to
// identical bytes.
func (c Collection) sortedCodes() []Code {
	codes := make([]Code, 0, len(c.byCode))
	for k := range c.byCode {
		codes = append(codes, k)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Pack encodes the collection to the wire, in canonical (ascending code)
// order, downgrading AS_PATH and synthesising AS4_PATH when n requires it
// (spec.md §4.1.3 property 5).
func (c Collection) Pack(n *negotiated.Negotiated) []byte {
	var out []byte
	var as4 *AS4PathAttr
	for _, code := range c.sortedCodes() {
		a := c.byCode[code]
		if asPath, ok := a.(ASPathAttr); ok && asPath.NeedsAS4Path(n) {
			v := asPath.PackAS4Path()
			as4 = &v
		}
		out = append(out, packOne(a, n)...)
	}
	if as4 != nil {
		if _, already := c.byCode[AS4Path]; !already {
			out = append(out, packOne(*as4, n)...)
		}
	}
	return out
}

func packOne(a Attribute, n *negotiated.Negotiated) []byte {
	value := a.Pack(n)
	flags := a.Flags()
	var out []byte
	if len(value) > 255 {
		flags |= FlagExtendedLength
		out = append(out, flags, byte(a.Code()))
		out = append(out, put16(uint16(len(value)))...)
	} else {
		out = append(out, flags, byte(a.Code()), byte(len(value)))
	}
	return append(out, value...)
}

// Decode parses a sequence of path attributes from b (the UPDATE
// message's Total Path Attribute field), dispatching each through attr's
// registry Table and falling back to Unknown for unregistered codes
// (spec.md §4.2). A trailing AS4_PATH attribute, if present alongside a
// 2-byte AS_PATH, is reconciled into it per RFC 6793 §4.2.3.
func Decode(b []byte, n *negotiated.Negotiated) (Collection, error) {
	c := Collection{byCode: map[Code]Attribute{}}
	for len(b) > 0 {
		if len(b) < 3 {
			return Collection{}, wireerr.Update(wireerr.MalformedAttributeList, "truncated attribute header")
		}
		flags := b[0]
		code := Code(b[1])
		var length int
		var value []byte
		if flags&FlagExtendedLength != 0 {
			if len(b) < 4 {
				return Collection{}, wireerr.Update(wireerr.MalformedAttributeList, "truncated extended-length header")
			}
			length = int(get16(b[2:4]))
			b = b[4:]
		} else {
			length = int(b[2])
			b = b[3:]
		}
		if len(b) < length {
			return Collection{}, wireerr.Update(wireerr.AttributeLengthError, fmt.Sprintf("attribute %d truncated value", code))
		}
		value = b[:length]
		b = b[length:]

		if fn, ok := Table.Lookup(code); ok {
			a, err := fn(flags, value, n)
			if err != nil {
				return Collection{}, wireerr.Update(wireerr.MalformedAttributeList, err.Error())
			}
			c.byCode[code] = a
		} else {
			c.byCode[code] = NewUnknown(code, flags, value)
		}
	}

	if as4, ok := c.byCode[AS4Path].(AS4PathAttr); ok {
		if asPath, ok := c.byCode[ASPath].(ASPathAttr); ok && (n == nil || !n.FourByteASN) {
			c.byCode[ASPath] = ReconcileAS4Path(asPath, as4)
			delete(c.byCode, AS4Path)
		}
	}

	return c, nil
}

// Equal reports whether c and other canonicalise to identical wire bytes
// under the given session (spec.md §3's equality rule for collections).
func (c Collection) Equal(other Collection, n *negotiated.Negotiated) bool {
	return bytes.Equal(c.Pack(n), other.Pack(n))
}
