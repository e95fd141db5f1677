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

package wire

import (
	"fmt"
	"net/netip"

	"github.com/coreswitch/bgpspeak/capability"
	"github.com/coreswitch/bgpspeak/negotiated"
	"github.com/coreswitch/bgpspeak/wireerr"
)

const capabilitiesOptionalParameter = 2

// OpenMessage is the BGP OPEN message (RFC 4271 §4.2). ASN always carries
// the full-width value: when a Four-Octet-ASN capability is present its
// value takes precedence over the legacy 2-byte field (SPEC_FULL.md §7);
// the two values are not cross-checked.
type OpenMessage struct {
	Version      uint8
	ASN          uint32
	HoldTime     uint16
	RouterID     netip.Addr
	Capabilities []capability.Capability
}

func (OpenMessage) Type() uint8 { return TypeOpen }

func (o OpenMessage) Pack(*negotiated.Negotiated) []byte {
	legacyASN := o.ASN
	needFourByte := legacyASN > 0xffff
	if needFourByte {
		legacyASN = asTransASN
		if !hasFourByteCap(o.Capabilities) {
			o.Capabilities = append(append([]capability.Capability{}, o.Capabilities...), capability.FourByteASNCap{ASN: o.ASN})
		}
	}

	var capBytes []byte
	for _, c := range o.Capabilities {
		capBytes = append(capBytes, capability.Pack(c)...)
	}

	var optParams []byte
	if len(capBytes) > 0 {
		optParams = append(optParams, capabilitiesOptionalParameter, byte(len(capBytes)))
		optParams = append(optParams, capBytes...)
	}

	rid := o.RouterID.As4()
	out := []byte{4, byte(legacyASN >> 8), byte(legacyASN), byte(o.HoldTime >> 8), byte(o.HoldTime)}
	out = append(out, rid[:]...)
	out = append(out, byte(len(optParams)))
	out = append(out, optParams...)
	return out
}

const asTransASN = 23456

func hasFourByteCap(caps []capability.Capability) bool {
	for _, c := range caps {
		if _, ok := c.(capability.FourByteASNCap); ok {
			return true
		}
	}
	return false
}

func decodeOpenBody(body []byte, _ *negotiated.Negotiated) (Message, error) {
	if len(body) < 10 {
		return nil, wireerr.Open(wireerr.UnsupportedVersionNumber, "truncated OPEN")
	}
	version := body[0]
	if version != 4 {
		return nil, wireerr.Open(wireerr.UnsupportedVersionNumber, fmt.Sprintf("unsupported version %d", version))
	}
	legacyASN := uint32(body[1])<<8 | uint32(body[2])
	holdTime := uint16(body[3])<<8 | uint16(body[4])
	rid := netip.AddrFrom4([4]byte{body[5], body[6], body[7], body[8]})
	optLen := int(body[9])
	rest := body[10:]
	if len(rest) < optLen {
		return nil, wireerr.Open(wireerr.UnsupportedOptionalParam, "truncated optional parameters")
	}
	rest = rest[:optLen]

	var caps []capability.Capability
	for len(rest) > 0 {
		if len(rest) < 2 {
			return nil, wireerr.Open(wireerr.UnsupportedOptionalParam, "truncated parameter header")
		}
		paramType := rest[0]
		paramLen := int(rest[1])
		if len(rest) < 2+paramLen {
			return nil, wireerr.Open(wireerr.UnsupportedOptionalParam, "truncated parameter value")
		}
		value := rest[2 : 2+paramLen]
		switch paramType {
		case capabilitiesOptionalParameter:
			decoded, err := capability.DecodeAll(value)
			if err != nil {
				return nil, wireerr.Open(wireerr.UnsupportedOptionalParam, err.Error())
			}
			caps = append(caps, decoded...)
		default:
			return nil, wireerr.Open(wireerr.UnsupportedOptionalParam, fmt.Sprintf("unrecognised optional parameter type %d", paramType))
		}
		rest = rest[2+paramLen:]
	}

	asn := legacyASN
	for _, c := range caps {
		if f, ok := c.(capability.FourByteASNCap); ok {
			asn = f.ASN
		}
	}

	return OpenMessage{Version: version, ASN: asn, HoldTime: holdTime, RouterID: rid, Capabilities: caps}, nil
}
