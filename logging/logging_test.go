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

package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	cats []Category
}

func (r *recorder) Debug(cat Category, msg string, fields KV) { r.cats = append(r.cats, cat) }
func (r *recorder) Info(cat Category, msg string, fields KV)  { r.cats = append(r.cats, cat) }
func (r *recorder) Warn(cat Category, msg string, fields KV)  { r.cats = append(r.cats, cat) }
func (r *recorder) Error(cat Category, msg string, fields KV) { r.cats = append(r.cats, cat) }

func TestNewFilteredWithNoCategoriesPassesThrough(t *testing.T) {
	rec := &recorder{}
	l := NewFiltered(rec, nil)
	require.Same(t, rec, l.(*recorder))
	l.Info(RIB, "x", nil)
	require.Equal(t, []Category{RIB}, rec.cats)
}

func TestNewFilteredDropsUnlistedCategories(t *testing.T) {
	rec := &recorder{}
	l := NewFiltered(rec, []string{"network", "rib"})

	l.Info(Network, "a", nil)
	l.Warn(Parser, "b", nil)
	l.Error(RIB, "c", nil)
	l.Debug(Timer, "d", nil)

	require.Equal(t, []Category{Network, RIB}, rec.cats)
}
