// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command raddid is the RADDI node daemon: it listens for peer
// connections, watches a local source directory for application-dropped
// entries and commands, optionally answers LAN discovery broadcasts, and
// gossips accepted entries to its peers.
package main

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/raddi-network/raddi/config"
	"github.com/raddi-network/raddi/coordinator"
	"github.com/raddi-network/raddi/db"
	"github.com/raddi-network/raddi/discovery"
	raddilog "github.com/raddi-network/raddi/log"
	"github.com/raddi-network/raddi/metrics"
	"github.com/raddi-network/raddi/protocol"
	"github.com/raddi-network/raddi/raddi"
	"github.com/raddi-network/raddi/source"
	"github.com/raddi-network/raddi/validator"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "raddid:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		preset       string
		databasePath string
		sourceDir    string
		listen       string
	)

	cmd := &cobra.Command{
		Use:   "raddid",
		Short: "RADDI peer-to-peer discussion node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Preset(config.NetworkType(preset))
			if databasePath != "" {
				cfg.DatabasePath = databasePath
			}
			if sourceDir != "" {
				cfg.SourceDir = sourceDir
			}
			if listen != "" {
				addr, err := netip.ParseAddrPort(listen)
				if err != nil {
					return fmt.Errorf("--listen: %w", err)
				}
				cfg.Listen = addr
			}
			if err := cfg.Valid(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&preset, "preset", string(config.MainnetNetwork), "network preset: mainnet, testnet, local")
	flags.StringVar(&databasePath, "db", "", "database directory (overrides preset default)")
	flags.StringVar(&sourceDir, "source", "", "source directory to watch for local entries/commands")
	flags.StringVar(&listen, "listen", "", "listen address, e.g. [::]:44303")
	return cmd
}

func run(cfg config.Config) error {
	logger := raddilog.NewNoOpLogger()
	mtx := metrics.NewMetrics(prometheus.NewRegistry())

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	nodeCfg := coordinator.DefaultConfig()
	nodeCfg.DesiredConnections = cfg.EstablishedPeers
	nodeCfg.MaxConnections = cfg.EstablishedPeers + cfg.ValidatedPeers
	nodeCfg.KeepAlivePeriod = cfg.KeepAlive
	nodeCfg.MaxRequestsPerMinute = cfg.RequestsPerSecond * 60

	node, err := coordinator.NewNode(nodeCfg, database, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("init node: %w", err)
	}

	v := validator.New(node)

	watcher, err := source.New(cfg.SourceDir, func(payload []byte) (validator.Outcome, error) {
		outcome, err := v.Process(payload)
		mtx.ObserveOutcome(outcome)
		return outcome, err
	}, func(cmd raddi.Command) error {
		return handleCommand(node, cmd)
	}, logger)
	if err != nil {
		return fmt.Errorf("open source directory: %w", err)
	}
	defer watcher.Close()

	stopWatch := make(chan struct{})
	go func() {
		if err := watcher.Run(stopWatch); err != nil {
			logger.Error("source watcher stopped", "error", err)
		}
	}()

	var discoveryPoint *discovery.Point
	if cfg.DiscoveryPort != 0 {
		discoveryPoint, err = discovery.New(cfg.DiscoveryPort)
		if err != nil {
			return fmt.Errorf("open discovery socket: %w", err)
		}
		discoveryPoint.Announcement = cfg.Listen.Port()
		discoveryPoint.Discovered = func(addr raddi.Address) {
			logger.Info("discovered local peer", "address", addr.String())
		}
		go discoveryPoint.Run()
		defer discoveryPoint.Close()
	}

	listener, err := net.Listen("tcp", cfg.Listen.String())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer listener.Close()

	go acceptLoop(listener, node, cfg.CipherMode, logger)

	scheduler := coordinator.NewScheduler(node)
	if discoveryPoint != nil {
		scheduler.Discover = func() error { return discoveryPoint.Broadcast(cfg.DiscoveryPort) }
	}
	go scheduler.Run(time.Second)
	defer scheduler.Stop()

	go reportConnectionGauges(stopWatch, node, mtx)

	wait(os.Interrupt, syscall.SIGTERM)
	close(stopWatch)
	if err := node.Flush(); err != nil {
		return err
	}
	return database.Close()
}

// acceptLoop accepts inbound sockets, completes the handshake, and hands
// the secured connection to the node — the inbound counterpart of
// coordinator.Scheduler's outbound connectAsync path, using the same
// coordinator.PerformHandshake both sides share.
func acceptLoop(listener net.Listener, node *coordinator.Node, mode protocol.Mode, logger raddilogLogger) {
	for {
		socket, err := listener.Accept()
		if err != nil {
			return
		}
		go func() {
			addr, err := remoteAddress(socket)
			if err != nil {
				socket.Close()
				return
			}
			c, err := coordinator.PerformHandshake(socket, addr, coordinator.HandshakeOptions{
				Soft: protocol.SoftAESGCM | protocol.SoftAEGIS,
				Mode: mode,
				Now:  time.Now(),
			})
			if err != nil {
				logger.Warn("inbound handshake failed", "error", err)
				socket.Close()
				node.ScorerHandle().Ban(addr, coordinator.InboundBanDuration)
				return
			}
			node.AddConnection(c)
		}()
	}
}

func remoteAddress(socket net.Conn) (raddi.Address, error) {
	host, portStr, err := net.SplitHostPort(socket.RemoteAddr().String())
	if err != nil {
		return raddi.Address{}, err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return raddi.Address{}, err
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return raddi.Address{}, err
	}
	return raddi.Address{IP: ip.Unmap(), Port: uint16(port)}, nil
}

// raddilogLogger is the slice of github.com/luxfi/log.Logger that
// acceptLoop needs, kept narrow so tests can pass a bare function-backed
// stub instead of a full logger.
type raddilogLogger interface {
	Warn(msg string, ctx ...interface{})
}

// handleCommand dispatches a decoded local command to the node. Only the
// subset with an obvious, data-only effect is wired here; peer-management
// opcodes that need an outbound dial (add_peer, connect_peer) are left to
// the scheduler's own dial loop, which already knows how to reach a
// raddi.Address from a db.PeerSet entry — a bare Command carries only the
// address to add, which the scheduler consults on its next pass once the
// address has been scored into a peer set by the caller's own tooling.
func handleCommand(node *coordinator.Node, cmd raddi.Command) error {
	subscriptionFor := func(set *coordinator.SubscriptionSet) (*coordinator.Subscriptions, error) {
		return set.For(cmd.Subscription.Application)
	}

	switch cmd.Op {
	case raddi.CommandSubscribe, raddi.CommandUnsubscribe:
		s, err := subscriptionFor(node.Subscriptions)
		if err != nil {
			return err
		}
		if cmd.Op == raddi.CommandSubscribe {
			s.Subscribe(cmd.Subscription.Channel)
		} else {
			s.Unsubscribe(cmd.Subscription.Channel)
		}

	case raddi.CommandBlacklist, raddi.CommandUnblacklist:
		s, err := subscriptionFor(node.Blacklist)
		if err != nil {
			return err
		}
		if cmd.Op == raddi.CommandBlacklist {
			s.Subscribe(cmd.Subscription.Channel)
		} else {
			s.Unsubscribe(cmd.Subscription.Channel)
		}

	case raddi.CommandRetain, raddi.CommandUnretain:
		s, err := subscriptionFor(node.Retained)
		if err != nil {
			return err
		}
		if cmd.Op == raddi.CommandRetain {
			s.Subscribe(cmd.Subscription.Channel)
		} else {
			s.Unsubscribe(cmd.Subscription.Channel)
		}

	case raddi.CommandBanPeer:
		node.ScorerHandle().Ban(cmd.Peer, coordinator.OutboundBanDuration)

	case raddi.CommandUnbanPeer:
		// no direct unban primitive; re-promotion happens through
		// ordinary scoring once the ban entry ages out.
	}
	return nil
}

// reportConnectionGauges samples the connection-count-per-level gauges
// every five seconds until stop is closed.
func reportConnectionGauges(stop <-chan struct{}, node *coordinator.Node, mtx *metrics.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		for _, level := range []db.PeerLevel{db.LevelCore, db.LevelEstablished, db.LevelValidated, db.LevelAnnounced, db.LevelBlacklisted} {
			mtx.SetConnections(level, node.SecuredCountByLevel(level))
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func wait(sig ...os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig...)
	<-ch
}
