package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dohiam/BLE-protocols/internal/addrbook"
	"github.com/dohiam/BLE-protocols/internal/api"
	"github.com/dohiam/BLE-protocols/internal/clock"
	"github.com/dohiam/BLE-protocols/internal/config"
	"github.com/dohiam/BLE-protocols/internal/dispatcher"
	"github.com/dohiam/BLE-protocols/internal/examples"
	"github.com/dohiam/BLE-protocols/internal/hcisetup"
	"github.com/dohiam/BLE-protocols/internal/metrics"
	"github.com/dohiam/BLE-protocols/internal/production"
	"github.com/dohiam/BLE-protocols/internal/ruleset"
)

// loggingTransport stands in for a real BlueNRG SPI/UART link: no
// hardware is available in this demo host, so bring-up just logs what
// it would have written.
type loggingTransport struct {
	logger *slog.Logger
}

func (t *loggingTransport) Init() error {
	t.logger.Info("transport init")
	return nil
}

func (t *loggingTransport) Reset() error {
	t.logger.Info("transport reset")
	return nil
}

func (t *loggingTransport) WritePublicAddr(addr hcisetup.MACAddr) error {
	t.logger.Info("transport write public address", "addr", addr)
	return nil
}

// loggingController stands in for the aci_gap_*/aci_gatt_* calls a real
// controller driver would make.
type loggingController struct {
	logger *slog.Logger
}

func (c *loggingController) StartGeneralDiscovery() bool {
	c.logger.Info("controller: start general discovery")
	return true
}

func (c *loggingController) CreateConnection(addr addrbook.Addr) bool {
	c.logger.Info("controller: create connection", "addr", addr)
	return true
}

func (c *loggingController) Terminate(connHandle uint16) bool {
	c.logger.Info("controller: terminate connection", "handle", connHandle)
	return true
}

func (c *loggingController) DiscoverPrimaryServices(connHandle uint16) bool {
	c.logger.Info("controller: discover primary services", "handle", connHandle)
	return true
}

func (c *loggingController) DiscoverCharacteristics(connHandle, startHandle, endHandle uint16) bool {
	c.logger.Info("controller: discover characteristics", "handle", connHandle, "start", startHandle, "end", endHandle)
	return true
}

func main() {
	addr := flag.String("addr", ":8080", "admin HTTP listen address")
	cfgPath := flag.String("config", "configs/bledemo.yaml", "path to device config YAML")
	protoName := flag.String("protocol", "bring-up", "demo protocol to install at startup: bring-up|discovery|chain")
	scanMs := flag.Uint64("scan-ms", 5000, "discovery scan duration in milliseconds, used when -protocol=discovery or -protocol=chain")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath, logger)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Current().Config
	slog.Info("config loaded", "version", cfg.Version, "roster_size", len(loader.Current().RosterNames))

	// ── Rule store, production, engine, dispatcher ──────────────────
	store := ruleset.New(cfg.Engine.RuleCapacity)
	sink := metrics.New(nil)
	store.OnCapacityExceeded(sink.RuleDropped)

	prod := &production.Production{}
	clk := clock.NewSystem()
	eng := production.New(store, prod, clk, sink, logger)
	d := dispatcher.New(eng, sink, logger)

	transport := &loggingTransport{logger: logger}
	setup := hcisetup.New(transport, logger)
	ctrl := &loggingController{logger: logger}

	// ── Event funnel ─────────────────────────────────────────────────
	// Built before installing any protocol: chain mode below needs the
	// funnel's drain goroutine to advance its stepper, since that
	// goroutine is the only one allowed to touch Dispatcher/Engine/Store
	// state alongside OnEvent.
	funnel := api.NewEventFunnel(d, 256, sink, logger)
	defer funnel.Stop()

	switch *protoName {
	case "discovery":
		book := addrbook.New()
		d.SetCurrentProtocol(examples.NewDiscoveryProtocol(ctrl, book, *scanMs, clk))
	case "bring-up":
		d.SetCurrentProtocol(examples.NewHCIBringUpProtocol(setup))
	case "chain":
		// Bring the transport up, then run a timed discovery scan once
		// bring-up finishes, without coupling the two into one Protocol.
		// The stepper's Run touches the same Dispatcher state OnEvent
		// does, so every tick is submitted through the funnel's RunTask
		// rather than called from this ticker goroutine directly — the
		// funnel's drain goroutine is the sole writer.
		book := addrbook.New()
		chain := examples.NewProtocolChainStepper(d,
			examples.NewHCIBringUpProtocol(setup),
			examples.NewDiscoveryProtocol(ctrl, book, *scanMs, clk),
		)
		ticker := time.NewTicker(50 * time.Millisecond)
		go func() {
			defer ticker.Stop()
			for range ticker.C {
				done := make(chan bool, 1)
				if !funnel.RunTask(func() { chain.Run(); done <- chain.Done() }) {
					continue
				}
				if <-done {
					return
				}
			}
		}()
	default:
		slog.Error("unknown -protocol value", "protocol", *protoName)
		os.Exit(1)
	}

	// ── Hot-reload watcher ───────────────────────────────────────────
	loader.OnChange(func(res *config.Resolved) {
		slog.Info("config reloaded", "roster_size", len(res.RosterNames), "catalog_size", len(res.CatalogNames))
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	handler := api.New(d, loader, funnel, logger)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr, "protocol", *protoName)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	d.ClearCurrentProtocol()
	slog.Info("goodbye")
}
