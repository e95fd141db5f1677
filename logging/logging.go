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

// Package logging is the small, category-scoped logging seam every other
// component writes through (spec.md §7: "log categories are separable
// (network, message, rib, timer, parser)"). Logger is deliberately a
// narrow interface so call sites never depend on zap directly; Nil{} is
// the no-op default a caller gets if it never installs a real logger.
package logging

import "go.uber.org/zap"

// KV is a structured field payload, passed straight through to zap's
// SugaredLogger.Infow/Warnw/Errorw-style calls.
type KV = map[string]any

// Category names the separable log streams spec.md §7 calls out.
type Category string

const (
	Network Category = "network"
	Message Category = "message"
	RIB     Category = "rib"
	Timer   Category = "timer"
	Parser  Category = "parser"
	API     Category = "api"
)

// Logger is implemented by Zap and Nil below; components take a Logger,
// never a concrete type.
type Logger interface {
	Debug(cat Category, msg string, fields KV)
	Info(cat Category, msg string, fields KV)
	Warn(cat Category, msg string, fields KV)
	Error(cat Category, msg string, fields KV)
}

// Nil discards everything; it is the zero-value-safe default so
// components can be constructed without wiring a logger for tests.
type Nil struct{}

func (Nil) Debug(Category, string, KV) {}
func (Nil) Info(Category, string, KV)  {}
func (Nil) Warn(Category, string, KV)  {}
func (Nil) Error(Category, string, KV) {}

// Zap wraps a *zap.SugaredLogger, tagging every call with its category so
// log aggregation can filter per spec.md §7's separable streams.
type Zap struct {
	sugar *zap.SugaredLogger
}

// NewZap builds a Zap logger from an already-configured *zap.Logger
// (construction, e.g. production vs. development config, is the
// embedding process's concern — cmd/bgpd builds one with
// zap.NewProduction()).
func NewZap(l *zap.Logger) *Zap {
	return &Zap{sugar: l.Sugar()}
}

func (z *Zap) log(level func(args ...any), cat Category, msg string, fields KV) {
	args := make([]any, 0, 2+2*len(fields))
	args = append(args, "category", string(cat))
	for k, v := range fields {
		args = append(args, k, v)
	}
	level(append([]any{msg}, args...)...)
}

func (z *Zap) Debug(cat Category, msg string, fields KV) { z.log(z.sugar.Debugln, cat, msg, fields) }
func (z *Zap) Info(cat Category, msg string, fields KV)  { z.log(z.sugar.Infoln, cat, msg, fields) }
func (z *Zap) Warn(cat Category, msg string, fields KV)  { z.log(z.sugar.Warnln, cat, msg, fields) }
func (z *Zap) Error(cat Category, msg string, fields KV) { z.log(z.sugar.Errorln, cat, msg, fields) }

// Filtered wraps a Logger and drops entries outside an allow-list of
// categories (spec.md §6's "log category toggles" env knob). An empty
// allow-list is a pass-through, matching config.FromEnv's documented
// "empty means all categories enabled".
type Filtered struct {
	next    Logger
	allowed map[Category]bool
}

// NewFiltered wraps next so only the named categories reach it; with no
// categories given it returns next unwrapped rather than an always-drop
// filter.
func NewFiltered(next Logger, categories []string) Logger {
	if len(categories) == 0 {
		return next
	}
	allowed := make(map[Category]bool, len(categories))
	for _, c := range categories {
		allowed[Category(c)] = true
	}
	return &Filtered{next: next, allowed: allowed}
}

func (f *Filtered) Debug(cat Category, msg string, fields KV) {
	if f.allowed[cat] {
		f.next.Debug(cat, msg, fields)
	}
}

func (f *Filtered) Info(cat Category, msg string, fields KV) {
	if f.allowed[cat] {
		f.next.Info(cat, msg, fields)
	}
}

func (f *Filtered) Warn(cat Category, msg string, fields KV) {
	if f.allowed[cat] {
		f.next.Warn(cat, msg, fields)
	}
}

func (f *Filtered) Error(cat Category, msg string, fields KV) {
	if f.allowed[cat] {
		f.next.Error(cat, msg, fields)
	}
}
