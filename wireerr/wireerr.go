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

// Package wireerr is the error taxonomy shared by the codec, FSM and
// connection layer: a decode/framing/FSM/timer failure is always paired
// with the BGP NOTIFICATION code/subcode that must be sent for it
// (spec.md §4.1.5, §7).
package wireerr

import "fmt"

// Notification error codes (RFC 4271 §4.5 and extensions).
const (
	MessageHeaderError = 1
	OpenError          = 2
	UpdateError        = 3
	HoldTimerExpired   = 4
	FSMError           = 5
	Cease              = 6
)

// Message-Header-Error subcodes.
const (
	ConnectionNotSynchronized = 1
	BadMessageLength          = 2
	BadMessageType            = 3
)

// OPEN-Error subcodes.
const (
	UnsupportedVersionNumber = 1
	BadPeerAS                = 2
	BadBGPIdentifier         = 3
	UnsupportedOptionalParam = 4
	UnacceptableHoldTime     = 6
)

// UPDATE-Message-Error subcodes.
const (
	MalformedAttributeList    = 1
	UnrecognizedAttribute     = 2
	MissingWellKnownAttribute = 3
	AttributeFlagsError       = 4
	AttributeLengthError      = 5
	InvalidOriginAttribute    = 6
	InvalidNextHopAttribute   = 8
	OptionalAttributeError    = 9
	InvalidNetworkField       = 10
	MalformedASPath           = 11
)

// Cease subcodes (RFC 4486).
const (
	MaximumPrefixesReached       = 1
	AdministrativeShutdown       = 2
	PeerDeconfigured             = 3
	AdministrativeReset          = 4
	ConnectionRejected           = 5
	OtherConfigurationChange     = 6
	ConnectionCollisionResolution = 7
	OutOfResources               = 8
)

// Error is a decode/framing failure paired with the NOTIFICATION it
// requires (spec.md §4.1.5: "Any decode failure produces a DecodeError
// carrying the BGP notification code/subcode to emit").
type Error struct {
	Code    uint8
	Sub     uint8
	Data    []byte
	Context string // e.g. "attribute 1 (ORIGIN)", free text for logs only
}

func New(code, sub uint8, context string) *Error {
	return &Error{Code: code, Sub: sub, Context: context}
}

func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("bgp notification %d/%d: %s", e.Code, e.Sub, e.Context)
	}
	return fmt.Sprintf("bgp notification %d/%d", e.Code, e.Sub)
}

// Framing constructs the Message-Header-Error family of decode errors.
func Framing(sub uint8, context string) *Error {
	return New(MessageHeaderError, sub, context)
}

// Open constructs the OPEN-Error family.
func Open(sub uint8, context string) *Error {
	return New(OpenError, sub, context)
}

// Update constructs the UPDATE-Message-Error family.
func Update(sub uint8, context string) *Error {
	return New(UpdateError, sub, context)
}

// FSM constructs an FSM-Error (no meaningful subcode, per RFC 4271).
func FSM(context string) *Error {
	return New(FSMError, 0, context)
}

// HoldExpired constructs a Hold-Timer-Expired notification.
func HoldExpired() *Error {
	return New(HoldTimerExpired, 0, "hold timer expired")
}

// CeaseWith constructs a Cease notification with an optional UTF-8 reason
// (RFC 8203 Administrative Shutdown Communication).
func CeaseWith(sub uint8, reason string) *Error {
	e := New(Cease, sub, reason)
	if reason != "" {
		e.Data = []byte(reason)
	}
	return e
}
