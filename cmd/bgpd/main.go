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

// Command bgpd runs a single-neighbor BGP-4 speaker, the way the
// teacher's cmd/bgp.go drove one bgp.Session from flag-parsed arguments.
// It takes the place of a config-file parser (out of scope, per §1): the
// as-number/router-id/peer-address triple and flag options below are
// assembled directly into a neighbor.Neighbor and handed to the reactor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/coreswitch/bgpspeak/afi"
	"github.com/coreswitch/bgpspeak/config"
	"github.com/coreswitch/bgpspeak/logging"
	"github.com/coreswitch/bgpspeak/neighbor"
	"github.com/coreswitch/bgpspeak/reactor"
)

func main() {
	if _, err := maxprocs.Set(); err != nil {
		log.Printf("automaxprocs: %v", err)
	}

	n, listenAddr, env := parseCommandLineArguments()

	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()
	logger := logging.NewFiltered(logging.NewZap(zl), env.LogCategories)

	r := reactor.New(neighbor.Config{Defaults: neighbor.Neighbor{
		HoldTime:            env.DefaultHoldTime,
		ConnectRetry:        env.DefaultConnectRetry,
		GracefulRestartTime: env.DefaultGracefulRestart,
	}, Neighbors: []neighbor.Neighbor{n}}, env, logger)

	if err := r.Listen(listenAddr); err != nil {
		log.Fatal(err)
	}

	if err := r.Run(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func parseCommandLineArguments() (neighbor.Neighbor, string, config.Environment) {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <as-number> <router-id> <peer-address>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	passive := flag.Bool("passive", false, "never initiate outbound connections, only accept them")
	multihop := flag.Int("multihop", 0, "eBGP multihop TTL (0 disables)")
	md5 := flag.String("md5", "", "TCP MD5 shared secret (RFC 2385)")
	holdTime := flag.Duration("hold-time", 90*time.Second, "hold time")
	connectRetry := flag.Duration("connect-retry", 120*time.Second, "ConnectRetry interval")
	gracefulRestart := flag.Bool("graceful-restart", false, "advertise Graceful Restart capability")
	gracefulRestartTime := flag.Duration("graceful-restart-time", 120*time.Second, "Graceful Restart restart-time")
	routeRefresh := flag.Bool("route-refresh", true, "advertise Route Refresh capability")
	multiprotocol := flag.Bool("m", false, "advertise IPv4 and IPv6 unicast instead of just IPv4")
	listen := flag.String("listen", ":179", "local address to accept inbound sessions on")
	apiCommand := flag.String("api-command", "", "child process (with arguments) whose stdout feeds route updates")
	apiRespawn := flag.Bool("api-respawn", true, "restart the api-command child if it exits")

	flag.Parse()
	args := flag.Args()
	if len(args) < 3 {
		flag.Usage()
		os.Exit(2)
	}

	asNumber, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		log.Fatal(err)
	}

	routerID, err := netip.ParseAddr(args[1])
	if err != nil {
		log.Fatal(err)
	}

	peerAddr, peerPort := parsePeerAddress(args[2])

	families := []afi.Family{afi.IPv4Unicast}
	if *multiprotocol {
		families = []afi.Family{afi.IPv4Unicast, afi.IPv6Unicast}
	}

	n := neighbor.Neighbor{
		Name:                peerAddr.String(),
		LocalASN:            uint32(asNumber),
		RouterID:            routerID,
		PeerAddress:         peerAddr,
		PeerPort:            peerPort,
		Passive:             *passive,
		Multihop:            uint8(*multihop),
		MD5Key:              *md5,
		HoldTime:            *holdTime,
		ConnectRetry:        *connectRetry,
		Families:            families,
		RouteRefresh:        *routeRefresh,
		GracefulRestart:     *gracefulRestart,
		GracefulRestartTime: *gracefulRestartTime,
	}

	if *apiCommand != "" {
		n.APICommand = strings.Fields(*apiCommand)
		n.APIRespawn = *apiRespawn
	}

	return n, *listen, config.FromEnv()
}

// parsePeerAddress accepts either a bare address or an address:port pair,
// the way the teacher's parseCommandLineArguments bracketed a bare IPv6
// literal before handing it to net.JoinHostPort; port 0 here means "use
// Neighbor.Port()'s default of 179".
func parsePeerAddress(s string) (netip.Addr, int) {
	if host, portStr, err := net.SplitHostPort(s); err == nil {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Fatal(err)
		}
		addr, err := netip.ParseAddr(host)
		if err != nil {
			log.Fatal(err)
		}
		return addr, port
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		log.Fatal(err)
	}
	return addr, 0
}
