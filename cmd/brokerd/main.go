// Command brokerd runs the AMQP 1.0 broker core: an accept loop that
// hands each socket to the protocol-header negotiator and a pair of
// reader/writer tasks, a single dispatch task that demuxes frames off
// the shared bus, and an admin HTTP surface for health and metrics.
//
// Grounded on original_source/src/main.rs's accept-loop-plus-pubsub-task
// shape and packetd-packetd/cmd/agent.go's config-load-then-serve
// bootstrap, adapted to a single-command daemon (no cobra subcommand
// tree: brokerd has nothing to subcommand) with stdlib flag for its one
// configuration-path argument.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"github.com/amqp-broker/brokerd/internal/admin"
	"github.com/amqp-broker/brokerd/internal/broker"
	"github.com/amqp-broker/brokerd/internal/config"
	"github.com/amqp-broker/brokerd/internal/log"
	"github.com/amqp-broker/brokerd/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "Path to a brokerd YAML config file (defaults built in if omitted)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log.SetOptions(log.Options{
		Stdout:     cfg.Log.Stdout,
		Level:      cfg.Log.Level,
		Filename:   cfg.Log.Filename,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		MaxBackups: cfg.Log.MaxBackups,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := broker.NewFrameBus(cfg.Listener.FrameQueueDepth)
	registry := broker.NewRegistry()
	fanout := broker.NewFanoutRegistry()
	dispatcher := broker.NewDispatcher(bus, registry, broker.ComposeHooks(broker.EchoHook{}, fanout))

	adminSrv := admin.New(cfg.Admin, bus)
	if adminSrv != nil {
		go func() {
			if err := adminSrv.ListenAndServe(); err != nil {
				log.Error("admin server stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("dispatcher stopped", zap.Error(err))
		}
	}()

	listener, err := net.Listen("tcp", cfg.Listener.Address)
	if err != nil {
		log.Error("failed to bind listener", zap.Error(err))
		os.Exit(1)
	}
	log.Info("brokerd listening", zap.String("address", cfg.Listener.Address))

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	acceptLoop(ctx, listener, cfg, bus, registry)
}

func acceptLoop(ctx context.Context, listener net.Listener, cfg config.BrokerConfig, bus *broker.FrameBus, registry *broker.Registry) {
	var nextID uint64
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("accept failed", zap.Error(err))
			continue
		}
		metrics.ConnectionsAccepted.Inc()
		metrics.ConnectionsActive.Inc()

		id := strconv.FormatUint(atomic.AddUint64(&nextID, 1), 10)
		go handleConnection(ctx, id, conn, cfg, bus, registry)
	}
}

func handleConnection(ctx context.Context, id string, conn net.Conn, cfg config.BrokerConfig, bus *broker.FrameBus, registry *broker.Registry) {
	defer metrics.ConnectionsActive.Dec()

	brokerConn := broker.NewConnection(id, "brokerd-"+id, bus)
	brokerConn.LocalMaxFrameSize = cfg.Listener.MaxFrameSize
	brokerConn.LocalChannelMax = cfg.Listener.ChannelMax
	registry.Put(brokerConn)
	defer registry.Remove(id)

	writerQ := bus.RegisterOutbound(id, 0, cfg.Listener.FrameQueueDepth)
	wg, err := broker.StartConnection(ctx, id, conn, bus, broker.NewQueueReader(writerQ.Pop))
	if err != nil {
		log.Warn("connection negotiation failed", zap.String("conn", id), zap.Error(err))
		return
	}
	log.Info("connection accepted", zap.String("conn", id), zap.String("remote", conn.RemoteAddr().String()))
	wg.Wait()
	bus.UnregisterConnection(id)
	log.Info("connection closed", zap.String("conn", id))
}
