// Command engine is the composition root: it wires every singleton
// (persistence, order store, circuit breakers, gateway, quote provider,
// position monitor, connection monitor, reconciliation, event publisher)
// and starts the long-running loops, in cmd/main.go bootstrap
// idiom (godotenv.Load, zerolog ConsoleWriter, ASCII status banner,
// signal-driven graceful shutdown).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/execore/internal/breaker"
	brokerpkg "github.com/web3guy0/execore/internal/broker"
	"github.com/web3guy0/execore/internal/config"
	"github.com/web3guy0/execore/internal/connmon"
	"github.com/web3guy0/execore/internal/dashboard"
	"github.com/web3guy0/execore/internal/events"
	"github.com/web3guy0/execore/internal/gateway"
	"github.com/web3guy0/execore/internal/monitor"
	"github.com/web3guy0/execore/internal/orderstore"
	"github.com/web3guy0/execore/internal/persistence"
	"github.com/web3guy0/execore/internal/quotes"
	"github.com/web3guy0/execore/internal/reconcile"
)

const VERSION = "v1.0"

func main() {
	// ═══════════════════════════════════════════════════════════════════════════════
	// BOOTSTRAP
	// ═══════════════════════════════════════════════════════════════════════════════

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	} else {
		log.Info().Msg("✅ .env file loaded successfully")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Msg("═══════════════════════════════════════════════════════════════")
	log.Info().Msgf("         EXECORE %s - EXECUTION ENGINE", VERSION)
	log.Info().Msg("═══════════════════════════════════════════════════════════════")

	log.Debug().
		Str("ENGINE_ENV", cfg.Env).
		Str("PERSISTENCE_DRIVER", cfg.Persistence.Driver).
		Bool("TELEGRAM_ENABLED", cfg.Telegram.Enabled).
		Msg("📋 configuration loaded")

	// ═══════════════════════════════════════════════════════════════════════════════
	// LAYER 1: PERSISTENCE
	// ═══════════════════════════════════════════════════════════════════════════════

	store, err := persistence.Open(persistence.Driver(cfg.Persistence.Driver), cfg.Persistence.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open persistence store")
	}
	log.Info().Msg("✅ persistence layer initialized")

	orderIndex := orderstore.New(store)

	recs, err := store.LoadActiveOrders()
	if err != nil {
		log.Error().Err(err).Msg("failed to load active orders on startup")
	}
	for _, rec := range recs {
		orderIndex.Insert(persistence.Rehydrate(rec))
	}
	if len(recs) > 0 {
		log.Warn().Int("count", len(recs)).Msg("⚠️ rehydrated active orders from previous session")
	}

	// ═══════════════════════════════════════════════════════════════════════════════
	// LAYER 2: BROKER & CIRCUIT BREAKERS
	// ═══════════════════════════════════════════════════════════════════════════════

	breakers := breaker.NewManager(cfg.Breaker["alpaca"])
	brokerBreaker := breakers.GetOrCreate("alpaca")
	stopsBreaker := breaker.New("stops-monitor", cfg.Breaker["stops-monitor"])

	brk := brokerpkg.NewPaper(nil)
	log.Info().Str("broker", brk.BrokerName()).Msg("✅ broker adapter initialized (paper)")

	// ═══════════════════════════════════════════════════════════════════════════════
	// LAYER 3: QUOTES
	// ═══════════════════════════════════════════════════════════════════════════════

	streamer := quotes.NewStreamer(cfg.StreamerURL)
	restFeed := quotes.NewRESTFeed(cfg.RESTFeedBaseURL, nil)
	log.Info().Msg("✅ quote provider + REST fallback initialized")

	// ═══════════════════════════════════════════════════════════════════════════════
	// LAYER 4: POSITION MONITOR (stop/target enforcement)
	// ═══════════════════════════════════════════════════════════════════════════════

	enforcer := monitor.NewEnforcer(cfg.Monitor, streamer, restFeed, brk, stopsBreaker)
	log.Info().Msg("✅ position monitor initialized")

	// ═══════════════════════════════════════════════════════════════════════════════
	// LAYER 5: EXECUTION GATEWAY
	// ═══════════════════════════════════════════════════════════════════════════════

	gw := gateway.New(brk, orderIndex, brokerBreaker, enforcer, nil)
	log.Info().Msg("✅ execution gateway initialized")

	// ═══════════════════════════════════════════════════════════════════════════════
	// LAYER 6: CONNECTION MONITOR & RECONCILIATION
	// ═══════════════════════════════════════════════════════════════════════════════

	connMonitor := connmon.New(cfg.Connmon, brk, orderIndex)
	reconciler := reconcile.New(brk, orderIndex)
	log.Info().Msg("✅ connection monitor + reconciler initialized")

	// ═══════════════════════════════════════════════════════════════════════════════
	// LAYER 7: NOTIFICATIONS
	// ═══════════════════════════════════════════════════════════════════════════════

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Telegram.Enabled {
		tg, err := events.NewTelegram()
		if err != nil {
			log.Warn().Err(err).Msg("telegram unavailable, falling back to no-op publisher")
		} else {
			publisher = tg
			log.Info().Msg("✅ telegram publisher initialized")
		}
	}

	// ═══════════════════════════════════════════════════════════════════════════════
	// START
	// ═══════════════════════════════════════════════════════════════════════════════

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enforcer.Start(ctx)
	go streamer.Run(ctx)
	go connMonitor.Run(ctx)
	go forwardExitResults(ctx, enforcer, publisher)
	go forwardMassCancels(ctx, connMonitor, publisher)

	term := dashboard.NewTerminal(orderIndex, breakers, cfg.Env, brk.BrokerName(), streamer.IsConnected)
	go term.Run(ctx, 30*time.Second)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				result := reconciler.Run(ctx)
				if result.Mismatches > 0 {
					log.Warn().Int("mismatches", result.Mismatches).Int("reconciled", result.Reconciled).Msg("🔍 periodic reconciliation found mismatches")
				}
			}
		}
	}()

	log.Info().Msg("")
	log.Info().Msg("╔═══════════════════════════════════════════════════════════════╗")
	log.Info().Msgf("║        EXECORE %s - EXECUTION ENGINE                         ║", VERSION)
	log.Info().Msg("╠═══════════════════════════════════════════════════════════════╣")
	log.Info().Msgf("║  Env:         %-45s ║", cfg.Env)
	log.Info().Msgf("║  Broker:      %-45s ║", brk.BrokerName())
	log.Info().Msg("║                                                               ║")
	log.Info().Msg("║  ┌─────────────────────────────────────────────────────────┐  ║")
	log.Info().Msg("║  │  ARCHITECTURE                                           │  ║")
	log.Info().Msg("║  │  ✓ Execution Gateway (single write/cancel path)         │  ║")
	log.Info().Msg("║  │  ✓ Position Monitor  (stop/target enforcement)          │  ║")
	log.Info().Msg("║  │  ✓ Connection Monitor (heartbeat + mass cancel)         │  ║")
	log.Info().Msg("║  │  ✓ Reconciliation    (broker-vs-local merge)            │  ║")
	log.Info().Msg("║  │  ✓ Circuit Breakers  (three-state, per-service)         │  ║")
	log.Info().Msg("║  └─────────────────────────────────────────────────────────┘  ║")
	log.Info().Msg("╚═══════════════════════════════════════════════════════════════╝")
	log.Info().Msg("")
	log.Info().Msg("🚀 running...")

	// ═══════════════════════════════════════════════════════════════════════════════
	// GRACEFUL SHUTDOWN
	// ═══════════════════════════════════════════════════════════════════════════════

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Warn().Msg("🛑 shutdown signal received...")
	cancel()
	streamer.Close()

	log.Info().Msg("👋 goodbye!")
}

func forwardExitResults(ctx context.Context, e *monitor.Enforcer, pub events.Publisher) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-e.ExitResults():
			pub.PublishExitResult(r)
		}
	}
}

func forwardMassCancels(ctx context.Context, m *connmon.Monitor, pub events.Publisher) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-m.Results():
			pub.PublishMassCancel(r)
		}
	}
}
