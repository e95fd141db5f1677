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
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/coreswitch/bgpspeak/apisup"
	"github.com/coreswitch/bgpspeak/conn"
	"github.com/coreswitch/bgpspeak/fsm"
	"github.com/coreswitch/bgpspeak/logging"
	"github.com/coreswitch/bgpspeak/wire"
)

// dialerTimeout bounds one outbound TCP attempt; the FSM's own
// ConnectRetry timer governs when the loop tries again, not this value.
const dialerTimeout = 30 * time.Second

// dial starts an asynchronous outbound connection attempt for an active
// neighbor currently in Connect; Dial itself blocks, so it runs on its
// own goroutine and reports back to the loop (a failure through the
// inbox, a success through adopt), keeping every FSM/Conn touch on the
// loop.
func (r *Reactor) dial(name string, p *peerState) {
	if p.conn != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dialerTimeout)
		defer cancel()
		c, err := conn.Dial(ctx, p.neighbor, r.logger)
		if err != nil {
			r.inbox <- event{kind: evConnDone, peer: name, failure: classifyDialErr(err), failErr: err}
			return
		}
		r.adopt(name, c)
	}()
}

func classifyDialErr(err error) conn.FailureReason {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return conn.FailureTimeout
	}
	return conn.FailureRefused
}

// adopt wires an established outbound Conn to its peer and
// starts the forwarder goroutine that feeds the loop's inbox; it must
// only touch the loop's own state (p.conn, p.fsm) from the loop's
// goroutine, so it submits itself as a pseudo-event instead of mutating
// directly from the dialer/acceptor goroutine.
func (r *Reactor) adopt(name string, c *conn.Conn) {
	r.commands <- Command{Kind: commandAdopt, Neighbor: name, conn: c}
}

func (r *Reactor) pumpConn(name string, c *conn.Conn) {
	for f := range c.Frames() {
		r.inbox <- event{kind: evFrame, peer: name, frame: f}
	}
	reason, err := c.Failure()
	r.inbox <- event{kind: evConnDone, peer: name, failure: reason, failErr: err}
}

// acceptLoop runs the listener's blocking Accept loop on its own
// goroutine, handing each accepted socket to the loop via r.accepts
// rather than matching it to a neighbor itself (matching requires
// r.peers, which only the loop's goroutine may read).
func (r *Reactor) acceptLoop() {
	for {
		nc, err := r.listener.Accept()
		if err != nil {
			return
		}
		r.accepts <- nc
	}
}

func (r *Reactor) handleAccept(nc net.Conn) {
	remote, ok := nc.RemoteAddr().(*net.TCPAddr)
	if !ok {
		nc.Close()
		return
	}
	remoteIP, ok := netipFromTCP(remote)
	if !ok {
		nc.Close()
		return
	}

	for name, p := range r.peers {
		if p.neighbor.PeerAddress != remoteIP {
			continue
		}
		if p.conn != nil {
			// Collision: a session for this peer is already up. The
			// existing connection is always kept and the new one
			// rejected; no Router-ID comparison is made here.
			nc.Close()
			return
		}
		if p.fsm.State() != fsm.Active && p.fsm.State() != fsm.Idle {
			nc.Close()
			return
		}
		c := conn.Accept(nc, p.neighbor, r.logger)
		p.conn = c
		go r.pumpConn(name, c)
		p.fsm.InboundConnection()
		r.establish(p)
		return
	}
	r.logger.Warn(logging.Network, "rejecting connection from unconfigured peer", logging.KV{"remote": remoteIP.String()})
	nc.Close()
}

func netipFromTCP(a *net.TCPAddr) (netip.Addr, bool) {
	ip, ok := netip.AddrFromSlice(a.IP)
	if !ok {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

// establish moves a peer from Connect to OpenSent once its Conn exists,
// the one path both an outbound dial and an inbound accept funnel
// through. The OPEN carries the neighbor's configured Router-ID when set;
// absent that, it falls back to the address the socket actually bound to,
// the way the teacher picks a Router-ID when none is configured.
func (r *Reactor) establish(p *peerState) {
	if p.fsm.State() != fsm.Connect || p.conn == nil {
		return
	}
	addr := p.neighbor.RouterID
	if !addr.IsValid() {
		addr, _ = netipFromBytes(p.conn.LocalAddr())
	}
	if !addr.IsValid() {
		addr = p.neighbor.LocalAddress
	}
	open := p.fsm.TCPEstablished(addr)
	r.send(p, []wire.Message{open})
}

func netipFromBytes(ip net.IP) (netip.Addr, bool) {
	a, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

// startChild launches the supervised route-injection child for a
// neighbor with an APICommand configured; its Events/Errors are pumped
// into the loop's inbox exactly like a Conn's frames.
func (r *Reactor) startChild(p *peerState) {
	child := apisup.NewChild(p.name, p.neighbor.APICommand, p.neighbor.APIRespawn, r.logger)
	ctx, cancel := context.WithCancel(context.Background())
	p.child = child
	p.childCancel = cancel

	go child.Run(ctx)
	go r.pumpChild(p.name, child)
}

func (r *Reactor) pumpChild(name string, child *apisup.Child) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range child.Events() {
			r.inbox <- event{kind: evAPIEvent, peer: name, apiEv: ev}
		}
	}()
	for err := range child.Errors() {
		r.inbox <- event{kind: evAPIErr, peer: name, apiErr: err}
	}
	<-done
}
