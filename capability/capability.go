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

// Package capability implements the OPEN message's capability optional
// parameter (spec.md §4.1.4): [code(1)][length(1)][value]. Each capability
// decodes to a typed Capability; unknown codes decode to Unknown, which
// preserves the raw value but is ignored when capabilities are
// intersected into a Negotiated (negotiated.Build skips anything it
// doesn't recognise).
package capability

import "fmt"

type Code uint8

const (
	Multiprotocol    Code = 1
	RouteRefresh     Code = 2
	ExtendedNextHop  Code = 5
	ExtendedMessage  Code = 6
	GracefulRestart  Code = 64
	FourByteASN      Code = 65
	Multisession     Code = 68
	AddPath          Code = 69
	Operational      Code = 66
	AIGP             Code = 71
	CiscoRouteRefresh Code = 128 // pre-standard route-refresh, decoded as RouteRefreshCap
)

// Capability is a decoded OPEN capability.
type Capability interface {
	Code() Code
	Pack() []byte // value only, not including the [code][length] wrapper
}

// Pack wraps a Capability's code + encoded value into the wire TLV.
func Pack(c Capability) []byte {
	v := c.Pack()
	return append([]byte{byte(c.Code()), byte(len(v))}, v...)
}

// ---- Multiprotocol (AFI/SAFI announcement) ----

type MultiprotocolCap struct {
	AFI  uint16
	SAFI uint8
}

func (MultiprotocolCap) Code() Code { return Multiprotocol }
func (m MultiprotocolCap) Pack() []byte {
	return []byte{byte(m.AFI >> 8), byte(m.AFI), 0, m.SAFI}
}
func decodeMultiprotocol(v []byte) (Capability, error) {
	if len(v) != 4 {
		return nil, fmt.Errorf("capability: bad multiprotocol length %d", len(v))
	}
	return MultiprotocolCap{AFI: uint16(v[0])<<8 | uint16(v[1]), SAFI: v[3]}, nil
}

// ---- Route-Refresh (no value) ----

type RouteRefreshCap struct{}

func (RouteRefreshCap) Code() Code    { return RouteRefresh }
func (RouteRefreshCap) Pack() []byte { return nil }

// ---- Extended Message / AIGP / no-value markers ----

type ExtendedMessageCap struct{}

func (ExtendedMessageCap) Code() Code    { return ExtendedMessage }
func (ExtendedMessageCap) Pack() []byte { return nil }

type AIGPCap struct{}

func (AIGPCap) Code() Code    { return AIGP }
func (AIGPCap) Pack() []byte { return nil }

// ---- 4-byte ASN ----

type FourByteASNCap struct {
	ASN uint32
}

func (FourByteASNCap) Code() Code { return FourByteASN }
func (f FourByteASNCap) Pack() []byte {
	return []byte{byte(f.ASN >> 24), byte(f.ASN >> 16), byte(f.ASN >> 8), byte(f.ASN)}
}
func decodeFourByteASN(v []byte) (Capability, error) {
	if len(v) != 4 {
		return nil, fmt.Errorf("capability: bad 4-byte-asn length %d", len(v))
	}
	return FourByteASNCap{ASN: uint32(v[0])<<24 | uint32(v[1])<<16 | uint32(v[2])<<8 | uint32(v[3])}, nil
}

// ---- Add-Path ----

const (
	AddPathReceive = 1
	AddPathSend    = 2
	AddPathBoth    = 3
)

type AddPathEntry struct {
	AFI  uint16
	SAFI uint8
	Mode uint8 // AddPathReceive / AddPathSend / AddPathBoth
}

type AddPathCap struct {
	Entries []AddPathEntry
}

func (AddPathCap) Code() Code { return AddPath }
func (a AddPathCap) Pack() []byte {
	out := make([]byte, 0, 4*len(a.Entries))
	for _, e := range a.Entries {
		out = append(out, byte(e.AFI>>8), byte(e.AFI), e.SAFI, e.Mode)
	}
	return out
}
func decodeAddPath(v []byte) (Capability, error) {
	if len(v)%4 != 0 {
		return nil, fmt.Errorf("capability: bad add-path length %d", len(v))
	}
	var entries []AddPathEntry
	for i := 0; i+4 <= len(v); i += 4 {
		entries = append(entries, AddPathEntry{
			AFI:  uint16(v[i])<<8 | uint16(v[i+1]),
			SAFI: v[i+2],
			Mode: v[i+3],
		})
	}
	return AddPathCap{Entries: entries}, nil
}

// ---- Graceful Restart ----

type GracefulRestartFamily struct {
	AFI     uint16
	SAFI    uint8
	Forward bool // forwarding-state preserved
}

type GracefulRestartCap struct {
	Restarting  bool
	RestartTime uint16 // seconds, 12 bits on the wire
	Families    []GracefulRestartFamily
}

func (GracefulRestartCap) Code() Code { return GracefulRestart }
func (g GracefulRestartCap) Pack() []byte {
	flags := uint16(g.RestartTime & 0x0fff)
	if g.Restarting {
		flags |= 0x8000
	}
	out := []byte{byte(flags >> 8), byte(flags)}
	for _, f := range g.Families {
		var fflags byte
		if f.Forward {
			fflags = 0x80
		}
		out = append(out, byte(f.AFI>>8), byte(f.AFI), f.SAFI, fflags)
	}
	return out
}
func decodeGracefulRestart(v []byte) (Capability, error) {
	if len(v) < 2 {
		return nil, fmt.Errorf("capability: bad graceful-restart length %d", len(v))
	}
	flags := uint16(v[0])<<8 | uint16(v[1])
	g := GracefulRestartCap{
		Restarting:  flags&0x8000 != 0,
		RestartTime: flags & 0x0fff,
	}
	rest := v[2:]
	for i := 0; i+4 <= len(rest); i += 4 {
		g.Families = append(g.Families, GracefulRestartFamily{
			AFI:     uint16(rest[i])<<8 | uint16(rest[i+1]),
			SAFI:    rest[i+2],
			Forward: rest[i+3]&0x80 != 0,
		})
	}
	return g, nil
}

// ---- Multisession ----

type MultisessionCap struct {
	Value []byte
}

func (MultisessionCap) Code() Code     { return Multisession }
func (m MultisessionCap) Pack() []byte { return m.Value }

// ---- Operational ----

type OperationalCap struct{}

func (OperationalCap) Code() Code    { return Operational }
func (OperationalCap) Pack() []byte { return nil }

// ---- Extended Next Hop (RFC 8950) ----

type ExtendedNextHopEntry struct {
	NLRIAFI     uint16
	NLRISAFI    uint16 // carried as 2 octets in this capability, unlike the 1-octet SAFI elsewhere
	NextHopAFI  uint16
}

type ExtendedNextHopCap struct {
	Entries []ExtendedNextHopEntry
}

func (ExtendedNextHopCap) Code() Code { return ExtendedNextHop }
func (e ExtendedNextHopCap) Pack() []byte {
	out := make([]byte, 0, 6*len(e.Entries))
	for _, x := range e.Entries {
		out = append(out, byte(x.NLRIAFI>>8), byte(x.NLRIAFI), byte(x.NLRISAFI>>8), byte(x.NLRISAFI), byte(x.NextHopAFI>>8), byte(x.NextHopAFI))
	}
	return out
}
func decodeExtendedNextHop(v []byte) (Capability, error) {
	if len(v)%6 != 0 {
		return nil, fmt.Errorf("capability: bad extended-next-hop length %d", len(v))
	}
	var entries []ExtendedNextHopEntry
	for i := 0; i+6 <= len(v); i += 6 {
		entries = append(entries, ExtendedNextHopEntry{
			NLRIAFI:    uint16(v[i])<<8 | uint16(v[i+1]),
			NLRISAFI:   uint16(v[i+2])<<8 | uint16(v[i+3]),
			NextHopAFI: uint16(v[i+4])<<8 | uint16(v[i+5]),
		})
	}
	return ExtendedNextHopCap{Entries: entries}, nil
}

// ---- Unknown ----

// Unknown preserves an unrecognised capability's raw code+value so that it
// survives being echoed back in logs, but negotiated.Build never folds it
// into a Negotiated (spec.md §4.1.4: "Unknown capabilities are preserved
// in the received OPEN but ignored in Negotiated").
type Unknown struct {
	code  Code
	Value []byte
}

func (u Unknown) Code() Code    { return u.code }
func (u Unknown) Pack() []byte { return u.Value }

// Decode parses one capability TLV's value given its code.
func Decode(code Code, value []byte) (Capability, error) {
	switch code {
	case Multiprotocol:
		return decodeMultiprotocol(value)
	case RouteRefresh, CiscoRouteRefresh:
		return RouteRefreshCap{}, nil
	case ExtendedNextHop:
		return decodeExtendedNextHop(value)
	case ExtendedMessage:
		return ExtendedMessageCap{}, nil
	case GracefulRestart:
		return decodeGracefulRestart(value)
	case FourByteASN:
		return decodeFourByteASN(value)
	case AddPath:
		return decodeAddPath(value)
	case Operational:
		return OperationalCap{}, nil
	case Multisession:
		return MultisessionCap{Value: append([]byte(nil), value...)}, nil
	case AIGP:
		return AIGPCap{}, nil
	default:
		return Unknown{code: code, Value: append([]byte(nil), value...)}, nil
	}
}

// DecodeAll parses the sequence of [code][len][value] TLVs inside an
// OPEN's capabilities optional parameter.
func DecodeAll(b []byte) ([]Capability, error) {
	var out []Capability
	for len(b) > 0 {
		if len(b) < 2 {
			return nil, fmt.Errorf("capability: truncated TLV header")
		}
		code := Code(b[0])
		l := int(b[1])
		if len(b) < 2+l {
			return nil, fmt.Errorf("capability: truncated TLV value")
		}
		c, err := Decode(code, b[2:2+l])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		b = b[2+l:]
	}
	return out, nil
}
