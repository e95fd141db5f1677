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

	"github.com/coreswitch/bgpspeak/logging"
	"github.com/coreswitch/bgpspeak/wire"
	"github.com/coreswitch/bgpspeak/wireerr"
)

// drainTimeout bounds how long gracefulShutdown waits for each peer's
// Cease NOTIFICATION to actually reach the wire before the process exits
// regardless (RFC 8203's Administrative Shutdown communication is best
// effort, not a handshake).
const drainTimeout = 3 * time.Second

// gracefulShutdown sends every connected peer a Cease/Administrative-
// Shutdown NOTIFICATION (RFC 8203), stops any supervised API children,
// and gives the writer goroutines a bounded window to actually flush
// those bytes before Run returns. Safe to call at most meaningfully
// once per process lifetime; Run guarantees that.
func (r *Reactor) gracefulShutdown() {
	r.shutdownOnce.Do(r.doGracefulShutdown)
}

func (r *Reactor) doGracefulShutdown() {
	if r.listener != nil {
		r.listener.Close()
	}

	var draining []<-chan struct{}
	for _, p := range r.peers {
		if p.childCancel != nil {
			p.childCancel()
		}
		if p.conn == nil {
			continue
		}
		note := wireerr.CeaseWith(wireerr.AdministrativeShutdown, "administrative shutdown")
		r.send(p, []wire.Message{wire.FromError(note)})
		p.conn.Close()
		draining = append(draining, p.conn.Done())
	}

	r.logger.Info(logging.Network, "reactor shutting down", logging.KV{"draining_peers": len(draining)})

	deadline := time.NewTimer(drainTimeout)
	defer deadline.Stop()
	for _, done := range draining {
		select {
		case <-done:
		case <-deadline.C:
			return
		}
	}
}
