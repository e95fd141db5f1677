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

// Package reactor is the single cooperative event loop (spec.md §5,
// SPEC_FULL.md §6.7) that owns every peer FSM, its RIB pair, its Conn and
// its optional apisup.Child. It generalises the teacher's bgp/pool.go
// peer-map/select pattern — one goroutine per Session, each internally
// single-threaded — into one loop that owns every peer's state directly,
// per the spec's single-threaded-ownership rule: FSM, RIB and Conn method
// calls only ever happen from this loop's goroutine. Only blocking socket
// and process I/O runs elsewhere, and only to feed this loop's inbox.
package reactor

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreswitch/bgpspeak/apisup"
	"github.com/coreswitch/bgpspeak/conn"
	"github.com/coreswitch/bgpspeak/config"
	"github.com/coreswitch/bgpspeak/fsm"
	"github.com/coreswitch/bgpspeak/logging"
	"github.com/coreswitch/bgpspeak/neighbor"
	"github.com/coreswitch/bgpspeak/rib"
	"github.com/coreswitch/bgpspeak/wire"
	"github.com/coreswitch/bgpspeak/wireerr"
)

// eventKind tags what an inbox entry carries; the single loop switches on
// it rather than selecting over a dynamically-sized set of channels
// (spec.md §4.7: "an explicit readySet poll-loop, not goroutine-per-peer
// with shared state").
type eventKind int

const (
	evFrame eventKind = iota
	evConnDone
	evAPIEvent
	evAPIErr
)

type event struct {
	kind    eventKind
	peer    string
	frame   conn.Frame
	failure conn.FailureReason
	failErr error
	apiEv   apisup.Event
	apiErr  *apisup.ChildError
}

// peerState bundles everything the loop owns for one configured
// neighbor.
type peerState struct {
	name     string
	neighbor *neighbor.Neighbor
	fsm      *fsm.FSM
	ribIn    *rib.RIB
	ribOut   *rib.RIB
	conn     *conn.Conn
	child    *apisup.Child
	childCancel context.CancelFunc
	grGen    int // bumped on every connection loss, to invalidate a stale Graceful-Restart expiry
}

// Reactor drives every configured neighbor's session to completion.
// Listen must be called before Run starts; Submit and Status are the
// entry points external callers (an API handler, a signal) may use
// concurrently from any goroutine.
type Reactor struct {
	env    config.Environment
	logger logging.Logger

	peers map[string]*peerState

	listener net.Listener
	accepts  chan net.Conn

	inbox    chan event
	commands chan Command

	shutdownOnce sync.Once

	// cumulativeTCPFailures counts every connection loss across every
	// peer for the life of the process (spec.md §6: "maximum cumulative
	// TCP connection failures before reactor exit"). It never resets on
	// a successful session, by design: it bounds total churn, not a
	// per-peer retry count.
	cumulativeTCPFailures int
}

// ErrMaxCumulativeTCPFailures is returned by Run once env.MaxCumulativeTCPFailures
// connection losses have accumulated across every peer (0 disables the
// limit).
var ErrMaxCumulativeTCPFailures = errors.New("reactor: max cumulative TCP connection failures reached")

// New builds a Reactor for every neighbor in cfg, each starting with an
// empty Adj-RIB-In/Adj-RIB-Out pair and an Idle FSM. Sessions are not
// started until Run is called.
func New(cfg neighbor.Config, env config.Environment, logger logging.Logger) *Reactor {
	if logger == nil {
		logger = logging.Nil{}
	}
	r := &Reactor{
		env:      env,
		logger:   logger,
		peers:    map[string]*peerState{},
		accepts:  make(chan net.Conn, 8),
		inbox:    make(chan event, 256),
		commands: make(chan Command, 256),
	}
	for i := range cfg.Neighbors {
		n := mergeDefaults(cfg.Neighbors[i], cfg.Defaults)
		ribIn, ribOut := rib.New(), rib.New()
		r.peers[n.Name] = &peerState{
			name:     n.Name,
			neighbor: n,
			fsm:      fsm.New(n, ribIn, ribOut, logger),
			ribIn:    ribIn,
			ribOut:   ribOut,
		}
	}
	return r
}

// mergeDefaults overlays a configured neighbor's zero-valued fields with
// the process-wide neighbor defaults, matching the teacher's Parameters
// merge in cmd/bgp.go: a neighbor entry only needs to state what differs
// from the common case.
func mergeDefaults(n, defaults neighbor.Neighbor) *neighbor.Neighbor {
	out := n
	if out.HoldTime == 0 {
		out.HoldTime = defaults.HoldTime
	}
	if out.ConnectRetry == 0 {
		out.ConnectRetry = defaults.ConnectRetry
	}
	if out.IdleHoldTime == 0 {
		out.IdleHoldTime = defaults.IdleHoldTime
	}
	if out.GracefulRestartTime == 0 {
		out.GracefulRestartTime = defaults.GracefulRestartTime
	}
	return &out
}

// Listen arms a TCP listener for inbound sessions from passive/dual-mode
// neighbors; Run's accept loop matches each accepted connection's remote
// address against a configured PeerAddress.
func (r *Reactor) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	r.listener = ln
	return nil
}

// Submit enqueues an external route command (typically relayed from an
// apisup.Child or an API handler) for the loop to apply on its next turn.
// Safe to call from any goroutine.
func (r *Reactor) Submit(cmd Command) {
	r.commands <- cmd
}

// Run starts every configured session and drives the event loop until
// ctx is cancelled or SIGTERM/SIGINT is received, at which point it
// performs a graceful Cease shutdown of every Established peer before
// returning.
func (r *Reactor) Run(ctx context.Context) error {
	for name, p := range r.peers {
		p.fsm.Open()
		if !p.neighbor.Passive {
			r.dial(name, p)
		}
		if len(p.neighbor.APICommand) > 0 {
			r.startChild(p)
		}
	}

	if r.listener != nil {
		go r.acceptLoop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	for {
		wait := r.earliestWait()
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			r.gracefulShutdown()
			return ctx.Err()

		case sig := <-sigCh:
			timer.Stop()
			r.logger.Info(logging.Network, "reactor received shutdown signal", logging.KV{"signal": sig.String()})
			r.gracefulShutdown()
			return nil

		case ev := <-r.inbox:
			timer.Stop()
			r.handleEvent(ev)
			if r.maxFailuresReached() {
				r.logger.Warn(logging.Network, "reactor exiting: max cumulative TCP failures reached", logging.KV{"failures": r.cumulativeTCPFailures})
				r.gracefulShutdown()
				return ErrMaxCumulativeTCPFailures
			}

		case cmd := <-r.commands:
			timer.Stop()
			r.handleCommand(cmd)

		case nc := <-r.accepts:
			timer.Stop()
			r.handleAccept(nc)

		case <-timer.C:
			r.tickAll(time.Now())
		}

		r.drainOutboundAll()
	}
}

// earliestWait computes the bounded wait for the loop's next turn: the
// soonest armed FSM deadline across every peer, capped so the loop still
// wakes periodically even with no peers configured.
func (r *Reactor) earliestWait() time.Duration {
	const maxWait = 30 * time.Second
	var earliest time.Time
	now := time.Now()
	for _, p := range r.peers {
		d := p.fsm.NextDeadline()
		if d.IsZero() {
			continue
		}
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}
	if earliest.IsZero() {
		return maxWait
	}
	wait := earliest.Sub(now)
	if wait < 0 {
		wait = 0
	}
	if wait > maxWait {
		wait = maxWait
	}
	return wait
}

func (r *Reactor) tickAll(now time.Time) {
	for _, p := range r.peers {
		deadline := p.fsm.NextDeadline()
		if deadline.IsZero() || now.Before(deadline) {
			continue
		}
		msgs, werr := p.fsm.Tick(now)
		r.send(p, msgs)
		if werr != nil {
			r.teardownConn(p)
		}
		r.afterTransition(p)
	}
}

// afterTransition reacts to state changes a Tick/HandleMessage call may
// have produced: dialling out again after ConnectRetry re-arms Connect,
// and draining a freshly-Established peer's initial End-of-RIB/backlog.
func (r *Reactor) afterTransition(p *peerState) {
	switch p.fsm.State() {
	case fsm.Connect:
		if p.conn == nil {
			r.dial(p.name, p)
		}
	case fsm.Established:
		r.drainOutbound(p)
	case fsm.Idle:
		if p.conn != nil {
			r.teardownConn(p)
		}
	}
}

func (r *Reactor) handleEvent(ev event) {
	p, ok := r.peers[ev.peer]
	if !ok {
		return
	}
	switch ev.kind {
	case evFrame:
		r.handleFrame(p, ev.frame)
	case evConnDone:
		r.handleConnDone(p, ev.failure, ev.failErr)
	case evAPIEvent:
		r.handleAPIEvent(p, ev.apiEv)
	case evAPIErr:
		r.logger.Warn(logging.API, "apisup child error", logging.KV{"neighbor": p.name, "error": ev.apiErr.Error()})
	}
}

func (r *Reactor) handleFrame(p *peerState, f conn.Frame) {
	if f.Err != nil {
		// Conn itself rejected the byte stream (bad marker, bad/over
		// length) before a message could even be assembled — the same
		// Message-Header-Error NOTIFICATION obligation as an in-band
		// decode failure below, just caught one layer lower.
		r.notifyAndTeardown(p, f.Err)
		return
	}

	msg, err := wire.Decode(f.Header, f.Body, p.fsm.Negotiated())
	if err != nil {
		r.notifyAndTeardown(p, asWireErr(err))
		return
	}

	out, werr := p.fsm.HandleMessage(msg)
	r.send(p, out)
	if werr != nil {
		r.teardownConn(p)
		return
	}
	r.afterTransition(p)
}

// notifyAndTeardown sends the NOTIFICATION a framing or decode violation
// requires, resets the FSM to Idle via its usual HandleMessage path, and
// closes the connection — the write is always queued before Close() is
// called, so the peer actually receives it.
func (r *Reactor) notifyAndTeardown(p *peerState, we *wireerr.Error) {
	r.logger.Warn(logging.Parser, "decode failure", logging.KV{"neighbor": p.name, "error": we.Error()})
	r.send(p, []wire.Message{wire.FromError(we)})
	// Feed a NOTIFICATION back through HandleMessage purely to reuse its
	// reset-to-Idle path; it is never mistaken for one the peer actually
	// sent since nothing reads NotificationMessage.Data here.
	p.fsm.HandleMessage(wire.NotificationMessage{Code: we.Code, Sub: we.Sub})
	r.teardownConn(p)
}

func asWireErr(err error) *wireerr.Error {
	if we, ok := err.(*wireerr.Error); ok {
		return we
	}
	return wireerr.Framing(wireerr.BadMessageLength, err.Error())
}

func (r *Reactor) handleConnDone(p *peerState, reason conn.FailureReason, err error) {
	p.conn = nil
	p.fsm.TCPFailed(reason.String())
	if err != nil {
		r.logger.Warn(logging.Network, "connection ended", logging.KV{"neighbor": p.name, "reason": reason.String(), "error": err.Error()})
	}
	r.cumulativeTCPFailures++

	p.grGen++
	if p.fsm.Neighbor.GracefulRestart {
		r.scheduleGracefulRestartExpiry(p)
	}
}

// maxFailuresReached reports whether env.MaxCumulativeTCPFailures (spec.md
// §6) has been hit; a zero limit means unlimited.
func (r *Reactor) maxFailuresReached() bool {
	return r.env.MaxCumulativeTCPFailures > 0 && r.cumulativeTCPFailures >= r.env.MaxCumulativeTCPFailures
}

// drainOutbound pushes every NextOutbound batch that is ready for one
// peer: NextOutbound handles one dirty family per call, and this loop
// calls it until it returns nothing, so all of the peer's dirty families
// are sent before the loop moves on. No per-turn limit on UPDATEs applies.
func (r *Reactor) drainOutbound(p *peerState) {
	if p.fsm.State() != fsm.Established {
		return
	}
	for {
		msgs := p.fsm.NextOutbound()
		if len(msgs) == 0 {
			return
		}
		for _, m := range msgs {
			r.send(p, []wire.Message{m})
		}
	}
}

func (r *Reactor) drainOutboundAll() {
	for _, p := range r.peers {
		r.drainOutbound(p)
	}
}

func (r *Reactor) send(p *peerState, msgs []wire.Message) {
	if p.conn == nil || len(msgs) == 0 {
		return
	}
	maxSize := wire.DefaultMaxMessageSize
	if neg := p.fsm.Negotiated(); neg != nil {
		maxSize = neg.MaxMessageSize()
	}
	for _, m := range msgs {
		framed, err := wire.Encode(m, p.fsm.Negotiated(), maxSize)
		if err != nil {
			r.logger.Error(logging.Message, "encode failure", logging.KV{"neighbor": p.name, "error": err.Error()})
			continue
		}
		p.conn.Send(framed)
	}
}

func (r *Reactor) teardownConn(p *peerState) {
	if p.conn == nil {
		return
	}
	p.conn.Close()
}
