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
	"time"

	"github.com/coreswitch/bgpspeak/fsm"
	"github.com/coreswitch/bgpspeak/logging"
)

// scheduleGracefulRestartExpiry arms a Graceful-Restart-negotiated
// session's restart-time deadline on its own timer goroutine, since it
// lives far longer than the loop's ordinary turn-to-turn wait and
// shouldn't have to be recomputed into earliestWait. The goroutine only
// ever writes to r.commands, never peerState directly, keeping every
// RIB/FSM touch on the loop.
func (r *Reactor) scheduleGracefulRestartExpiry(p *peerState) {
	at := p.fsm.ArmGracefulRestartExpiry()
	gen := p.grGen
	name := p.name
	go func() {
		time.Sleep(time.Until(at))
		r.Submit(Command{Kind: commandExpireGracefulRestart, Neighbor: name, expireGen: gen})
	}()
}

func (r *Reactor) expireGracefulRestart(name string, gen int) {
	p, ok := r.peers[name]
	if !ok || p.grGen != gen || p.fsm.State() == fsm.Established {
		return
	}
	withdrawn := p.fsm.ExpireGracefulRestart()
	if len(withdrawn) == 0 {
		return
	}
	r.logger.Info(logging.RIB, "graceful restart time elapsed, withdrawing stale routes", logging.KV{"neighbor": name, "count": len(withdrawn)})
}
