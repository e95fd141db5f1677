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

// Package registry is the Message Registry (spec.md §4.2): a
// process-global, dynamic dispatch table mapping a numeric code to a
// decode/encode handler. It is deliberately generic and has no knowledge
// of message types, attributes, NLRI families or capabilities — each of
// those packages declares its own typed Table and registers handlers
// into it from an init() function, so "adding a new NLRI family or
// attribute type means writing the handler and adding one registration
// line; dispatch sites do not change" (spec.md §4.2) without this
// package importing, or being imported in a cycle by, any of them.
package registry

import "fmt"

// Table is a process-global registration table keyed by a numeric (or
// otherwise comparable) code. It is safe to populate from package-level
// init() functions (single-threaded startup, per spec.md §5's "Message
// Registry... [is] process-wide and immutable after initialisation") and
// safe to read concurrently thereafter; Register itself is not
// goroutine-safe and must not be called after startup.
type Table[K comparable, V any] struct {
	entries map[K]V
	names   map[K]string
}

// New creates an empty registration table.
func New[K comparable, V any]() *Table[K, V] {
	return &Table[K, V]{entries: map[K]V{}, names: map[K]string{}}
}

// Register adds (or replaces) the handler for code. name is used only for
// diagnostics (logs, String()).
func (t *Table[K, V]) Register(code K, name string, handler V) {
	t.entries[code] = handler
	t.names[code] = name
}

// Lookup returns the handler registered for code, or the zero value and
// false if nothing is registered.
func (t *Table[K, V]) Lookup(code K) (V, bool) {
	v, ok := t.entries[code]
	return v, ok
}

// Name returns the diagnostic name registered alongside code, if any.
func (t *Table[K, V]) Name(code K) string {
	if n, ok := t.names[code]; ok {
		return n
	}
	return fmt.Sprintf("%v", code)
}

// Codes returns every registered code, in no particular order.
func (t *Table[K, V]) Codes() []K {
	out := make([]K, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	return out
}
