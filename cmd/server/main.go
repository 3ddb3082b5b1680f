package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aimee/backend/internal/ai"
	"github.com/aimee/backend/internal/alert"
	"github.com/aimee/backend/internal/allocation"
	"github.com/aimee/backend/internal/approval"
	"github.com/aimee/backend/internal/config"
	"github.com/aimee/backend/internal/conversation"
	"github.com/aimee/backend/internal/db"
	httpapi "github.com/aimee/backend/internal/http"
	"github.com/aimee/backend/internal/http/handlers"
	"github.com/aimee/backend/internal/inventory"
	"github.com/aimee/backend/internal/metrics"
	"github.com/aimee/backend/internal/proposal"
	"github.com/aimee/backend/internal/recommend"
	"github.com/aimee/backend/internal/service"
)

var defaultLocations = []string{"Sapporo", "Sendai", "Shinagawa", "Osaka", "Fukuoka"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := log.Level(level).With().Str("service", "aimee-backend").Logger()

	ctx := context.Background()

	var (
		source service.InventorySource = service.EmptyInventory{}
		sink   approval.HistorySink    = approval.NopSink{}
		pinger handlers.Pinger
	)
	locations := defaultLocations
	if cfg.DatabaseURL != "" {
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect db")
		}
		defer store.Close()
		source, sink, pinger = store, store, store

		lctx, cancel := context.WithTimeout(ctx, cfg.InventoryTimeout)
		if locs, err := store.Locations(lctx); err == nil && len(locs) > 0 {
			locations = nil
			for _, l := range locs {
				locations = append(locations, l.Name)
			}
		}
		cancel()
	} else {
		logger.Warn().Msg("DATABASE_URL not set, running with an empty inventory")
	}

	var convStore conversation.Store = conversation.NewMemoryStore()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		convStore = conversation.NewRedisStore(client)
		logger.Info().Msg("conversation memory backed by redis")
	}

	var interpreter ai.Interpreter
	if cfg.OllamaURL == "" {
		interpreter = ai.NewMockInterpreter(locations)
		logger.Info().Msg("using mock interpreter")
	} else {
		interpreter = ai.NewHTTPInterpreter(cfg.OllamaURL, cfg.IntentModel, cfg.MainModel, logger)
	}

	var recommender recommend.Recommender = recommend.Noop{}
	if cfg.RecommenderURL != "" {
		recommender = recommend.NewHTTPRecommender(cfg.RecommenderURL, cfg.Collection, cfg.RecommenderTimeout)
	}

	alerts, err := alert.NewEngine(cfg.AlertRulesPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.AlertRulesPath).Msg("failed to load alert rules")
	}

	workflow := approval.NewWorkflow(approval.NewMemoryStore(), sink, approval.TTLs{Sync: cfg.ApprovalSyncTTL, Chat: cfg.ApprovalChatTTL}, logger)
	workflow.AuditTimeout = cfg.AuditTimeout

	limits := allocation.Limits{MaxShortages: cfg.AllocMaxShortages, MaxChanges: cfg.AllocMaxChanges, MaxPerPair: cfg.AllocMaxPerPair}
	thresholds := inventory.DefaultThresholds()
	thresholds.SurplusFloor = cfg.GapSurplusFloor
	thresholds.SurplusTrigger = cfg.GapSurplusTrigger
	thresholds.ForcedNeed = cfg.GapForcedNeed

	advisor := &service.Advisor{
		Interpreter: interpreter,
		Recommender: recommender,
		Inventory:   source,
		Matcher:     allocation.NewMatcher(limits, allocation.NewRandomSelector(cfg.SelectorSeed), cfg.PrimaryBusinessCategory, config.List(cfg.ProactiveProcessOrder)),
		Synthesizer: proposal.NewSynthesizer(),
		Approvals:   workflow,
		Memory:      conversation.NewMemory(convStore, cfg.SessionMaxTurns, cfg.SessionMaxAge),
		Alerts:      alerts,
		Thresholds:  thresholds,
		Timeouts: service.Timeouts{
			Interpreter: cfg.InterpreterTimeout,
			Recommender: cfg.RecommenderTimeout,
			Inventory:   cfg.InventoryTimeout,
		},
		CapabilityProcesses: config.List(cfg.CapabilityProcesses),
		RAGTopK:             cfg.RAGTopK,
		Logger:              logger,
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		logger.Fatal().Err(err).Msg("failed to register metrics")
	}

	router := httpapi.Router(cfg, advisor, pinger, reg, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
