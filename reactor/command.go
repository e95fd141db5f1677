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

package reactor

import (
	"net/netip"

	"github.com/tidwall/gjson"

	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/apisup"
	"github.com/coreswitch/bgpspeak/attr"
	"github.com/coreswitch/bgpspeak/change"
	"github.com/coreswitch/bgpspeak/conn"
	"github.com/coreswitch/bgpspeak/fsm"
	"github.com/coreswitch/bgpspeak/logging"
	"github.com/coreswitch/bgpspeak/nlri"
)

// CommandKind selects what a Command asks the loop to do.
type CommandKind int

const (
	// CommandRoute applies a route Change to a neighbor's Adj-RIB-Out (or
	// every neighbor's, if Neighbor is empty).
	CommandRoute CommandKind = iota
	// commandExpireGracefulRestart is internal: it fires a previously
	// armed ArmGracefulRestartExpiry deadline back into the loop.
	commandExpireGracefulRestart
	// commandAdopt is internal: a dialer/acceptor goroutine handing a
	// freshly-connected socket back to the loop, which is the only
	// goroutine allowed to touch peerState.conn/fsm.
	commandAdopt
	// commandStatus is internal: Status round-trips a snapshot request
	// through the loop rather than reading peerState from outside it,
	// the same way the teacher's Pool.Status() uses a reply channel
	// instead of a mutex.
	commandStatus
)

// Command is the external write surface into the reactor's RIBs, the
// path by which external callers change session state. spec.md §4.6's
// route-injection children do not use it: their lines arrive as inbox
// events, and handleAPIEvent applies them to the RIB directly.
type Command struct {
	Kind     CommandKind
	Neighbor string // empty applies to every configured neighbor
	Change   change.Change

	expireGen int
	conn      *conn.Conn
	reply     chan map[string]PeerStatus
}

func (r *Reactor) handleCommand(cmd Command) {
	switch cmd.Kind {
	case CommandRoute:
		r.applyRoute(cmd.Neighbor, cmd.Change)
	case commandExpireGracefulRestart:
		r.expireGracefulRestart(cmd.Neighbor, cmd.expireGen)
	case commandAdopt:
		r.handleAdopt(cmd.Neighbor, cmd.conn)
	case commandStatus:
		cmd.reply <- r.snapshotStatus()
	}
}

// PeerStatus is a point-in-time snapshot of one configured neighbor.
type PeerStatus struct {
	State       string
	Established bool
	RIBInLen    int
	RIBOutLen   int
}

// Status returns every configured neighbor's current state. Safe to call
// from any goroutine; it round-trips through the loop rather than reading
// peerState directly, since only the loop's own goroutine may touch it.
func (r *Reactor) Status() map[string]PeerStatus {
	reply := make(chan map[string]PeerStatus, 1)
	r.commands <- Command{Kind: commandStatus, reply: reply}
	return <-reply
}

func (r *Reactor) snapshotStatus() map[string]PeerStatus {
	out := make(map[string]PeerStatus, len(r.peers))
	for name, p := range r.peers {
		out[name] = PeerStatus{
			State:       p.fsm.State().String(),
			Established: p.fsm.State() == fsm.Established,
			RIBInLen:    p.ribIn.Len(),
			RIBOutLen:   p.ribOut.Len(),
		}
	}
	return out
}

func (r *Reactor) handleAdopt(name string, c *conn.Conn) {
	p, ok := r.peers[name]
	if !ok {
		c.Close()
		return
	}
	if p.conn != nil {
		c.Close()
		return
	}
	p.conn = c
	go r.pumpConn(name, c)
	r.establish(p)
}

func (r *Reactor) applyRoute(neighborName string, c change.Change) {
	if neighborName != "" {
		if p, ok := r.peers[neighborName]; ok {
			p.ribOut.Insert(c, p.fsm.Negotiated())
		}
		return
	}
	for _, p := range r.peers {
		p.ribOut.Insert(c, p.fsm.Negotiated())
	}
}

// handleAPIEvent turns one apisup.Child stdout line into a RIB mutation.
// Only the "type" field was inspected by apisup itself; everything else
// ("prefix", "next_hop", "family") is this reactor's own small route
// schema, kept deliberately minimal since spec.md leaves the child's wire
// format as an integration detail rather than a protocol requirement.
func (r *Reactor) handleAPIEvent(p *peerState, ev apisup.Event) {
	switch ev.Kind {
	case "announce", "withdraw":
		c, err := decodeRouteLine(ev.Line, ev.Kind)
		if err != nil {
			r.logger.Warn(logging.API, "malformed api route line", logging.KV{"neighbor": p.name, "error": err.Error()})
			return
		}
		p.ribOut.Insert(c, p.fsm.Negotiated())
	default:
		r.logger.Debug(logging.API, "unhandled api event kind", logging.KV{"neighbor": p.name, "kind": ev.Kind})
	}
}

var familyByName = map[string]afi.Family{
	"ipv4-unicast": afi.IPv4Unicast,
	"ipv6-unicast": afi.IPv6Unicast,
}

func decodeRouteLine(line []byte, kind string) (change.Change, error) {
	prefixStr := gjson.GetBytes(line, "prefix").String()
	prefix, err := netip.ParsePrefix(prefixStr)
	if err != nil {
		return change.Change{}, err
	}

	famName := gjson.GetBytes(line, "family").String()
	fam, ok := familyByName[famName]
	if !ok {
		fam = afi.IPv4Unicast
	}

	n := nlri.NewINET(fam, prefix)
	if kind == "withdraw" {
		return change.Withdraw(n), nil
	}

	attrs := attr.NewCollection(attr.OriginAttr{Value: 0})
	if nh := gjson.GetBytes(line, "next_hop").String(); nh != "" {
		if addr, err := netip.ParseAddr(nh); err == nil {
			attrs = attrs.With(attr.NextHopAttr{Value: addr})
		}
	}
	return change.Announce(n, attrs), nil
}
