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

// Package config carries the process-wide environment knobs spec.md §6
// names (default hold-time, default connect-retry, default
// graceful-restart-time, max cumulative TCP failures, daemonise, log
// category toggles), read the way the teacher's cmd/bgp.go reads
// process-wide flag.* options, but exposed as plain Go values so cmd/bgpd
// can source them from flags, env vars, or a config file equally.
package config

import (
	"os"
	"strconv"
	"time"
)

// Environment holds the process-wide defaults and knobs.
type Environment struct {
	DefaultHoldTime         time.Duration
	DefaultConnectRetry     time.Duration
	DefaultGracefulRestart  time.Duration
	MaxCumulativeTCPFailures int
	Daemonise               bool
	LogCategories           []string // empty means "all categories enabled"
}

// Defaults returns the built-in fallback values (RFC 4271 §4.2 suggested
// timer values, generous failure tolerance, foreground by default).
func Defaults() Environment {
	return Environment{
		DefaultHoldTime:          90 * time.Second,
		DefaultConnectRetry:      120 * time.Second,
		DefaultGracefulRestart:   120 * time.Second,
		MaxCumulativeTCPFailures: 16,
		Daemonise:                false,
	}
}

// FromEnv overlays Defaults() with any BGPSPEAK_* environment variables
// present, mirroring the small set of process-wide options the teacher's
// cmd/bgp.go exposes via command-line flags.
func FromEnv() Environment {
	e := Defaults()

	if v := os.Getenv("BGPSPEAK_HOLD_TIME"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			e.DefaultHoldTime = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("BGPSPEAK_CONNECT_RETRY"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			e.DefaultConnectRetry = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("BGPSPEAK_GRACEFUL_RESTART_TIME"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			e.DefaultGracefulRestart = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("BGPSPEAK_MAX_TCP_FAILURES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			e.MaxCumulativeTCPFailures = n
		}
	}
	if v := os.Getenv("BGPSPEAK_DAEMONISE"); v != "" {
		e.Daemonise = v == "1" || v == "true"
	}
	if v := os.Getenv("BGPSPEAK_LOG_CATEGORIES"); v != "" {
		e.LogCategories = splitNonEmpty(v, ',')
	}

	return e
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
