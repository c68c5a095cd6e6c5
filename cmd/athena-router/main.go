// athena-router — userspace IPv4 software router with ARP resolution and
// optional NAT.
package main

import (
	"context"
	"flag"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/athena-dhcpd/athena-router/internal/arpcache"
	"github.com/athena-dhcpd/athena-router/internal/config"
	"github.com/athena-dhcpd/athena-router/internal/logging"
	"github.com/athena-dhcpd/athena-router/internal/metrics"
	"github.com/athena-dhcpd/athena-router/internal/nat"
	"github.com/athena-dhcpd/athena-router/internal/router"
	"github.com/athena-dhcpd/athena-router/internal/transport"
)

func main() {
	configPath := flag.String("config", "/etc/athena-router/config.toml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Server.LogLevel, os.Stdout)
	logger.Info("athena-router starting",
		"config", *configPath,
		"nat", cfg.Server.EnableNAT,
		"inside", cfg.Server.InsideInterface,
		"outside", cfg.Server.OutsideInterface)

	ifaces, err := cfg.BuildInterfaces()
	if err != nil {
		logger.Error("failed to build interface set", "error", err)
		os.Exit(1)
	}
	routes := cfg.BuildRoutes()

	arpCache := arpcache.New(arpcache.Config{
		Capacity:   cfg.NAT.ARPCacheSize,
		Timeout:    cfg.NAT.ARPCacheTimeoutDuration(),
		MaxRetries: cfg.NAT.ARPMaxRetries,
	})
	logger.Debug("arp cache contents", "entries", arpCache.Dump())

	var natTable *nat.Table
	if cfg.Server.EnableNAT {
		outsideIf, ok := ifaces.Get(cfg.Server.OutsideInterface)
		if !ok {
			logger.Error("outside_interface not found among configured interfaces", "interface", cfg.Server.OutsideInterface)
			os.Exit(1)
		}
		natTable = nat.New(nat.Config{
			ExternalIP:            outsideIf.IP,
			ICMPTimeout:           cfg.NAT.ICMPTimeoutDuration(),
			TCPEstablishedTimeout: cfg.NAT.TCPEstablishedTimeoutDuration(),
			TCPTransitoryTimeout:  cfg.NAT.TCPTransitoryTimeoutDuration(),
		})
	}

	pcapTransport, err := transport.OpenPcapTransport(cfg.Devices(), logger)
	if err != nil {
		logger.Error("failed to open capture handles", "error", err)
		os.Exit(1)
	}
	defer pcapTransport.Close()

	r := router.New(router.Config{
		Interfaces:       ifaces,
		Routes:           routes,
		ARP:              arpCache,
		NAT:              natTable,
		EnableNAT:        cfg.Server.EnableNAT,
		InsideInterface:  cfg.Server.InsideInterface,
		OutsideInterface: cfg.Server.OutsideInterface,
		Transport:        pcapTransport,
		Logger:           logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	arpSweeper := arpcache.NewSweeper(arpCache, ifaces, pcapTransport, logger)
	arpSweeper.Start(ctx)

	if natTable != nil {
		natSweeper := nat.NewSweeper(natTable)
		natSweeper.Start(ctx)
	}

	metrics.ServerStartTime.SetToCurrentTime()
	metrics.ServerInfo.WithLabelValues(fmt.Sprintf("%v", cfg.Server.EnableNAT)).Set(1)

	mux := nethttp.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &nethttp.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}
	go func() {
		logger.Info("metrics server listening", "addr", cfg.Server.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	go func() {
		handle := func(iface string, frame []byte) { r.HandleFrame(iface, frame) }
		if err := pcapTransport.Listen(ctx, handle); err != nil && ctx.Err() == nil {
			logger.Error("transport listen failed", "error", err)
		}
	}()

	logger.Info("athena-router ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown error", "error", err)
	}

	logger.Info("athena-router stopped")
}
