// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"chainscreen/internal/audit"
	"chainscreen/internal/decisionlog"
	"chainscreen/internal/jurisdiction"
	"chainscreen/internal/liststore"
	"chainscreen/internal/matcher"
	"chainscreen/internal/platform/config"
	"chainscreen/internal/platform/httpserver"
	"chainscreen/internal/platform/logger"
	"chainscreen/internal/platform/metrics"
	platformredis "chainscreen/internal/platform/redis"
	"chainscreen/internal/policy"
	"chainscreen/internal/scoring"
	"chainscreen/internal/screening"
	httptransport "chainscreen/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	m := metrics.New()
	lists := liststore.New(liststore.WithLogger(log))
	jurisdictions := jurisdiction.NewTable()

	var screenMatcher matcher.Matcher = matcher.New(
		matcher.WithLogger(log),
		matcher.WithMetrics(m),
	)

	redisClient, err := platformredis.New(cfg.Redis())
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		screenMatcher = matcher.NewCached(screenMatcher, matcher.NewRedisKV(redisClient.Client),
			matcher.WithCacheLogger(log),
			matcher.WithCacheMetrics(m),
		)
		defer redisClient.Close()
	}

	scorer, err := scoring.NewEngine(scoring.NewRegistry(), jurisdictions, screenMatcher,
		scoring.WithLogger(log),
	)
	if err != nil {
		log.Error("building scoring engine", "error", err)
		os.Exit(1)
	}

	policyCfg := policy.DefaultConfig()
	if cfg.PolicyFile != "" {
		policyCfg, err = policy.LoadConfigFile(cfg.PolicyFile)
		if err != nil {
			log.Error("loading policy file", "error", err)
			os.Exit(1)
		}
	}
	policyEngine, err := policy.NewEngine(policyCfg, jurisdictions, policy.WithLogger(log))
	if err != nil {
		log.Error("building policy engine", "error", err)
		os.Exit(1)
	}

	var decisionLog decisionlog.Store = decisionlog.NewMemoryStore()
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("opening postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pg := decisionlog.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			log.Error("migrating decision log", "error", err)
			os.Exit(1)
		}
		decisionLog = pg
	} else {
		log.Warn("no postgres DSN configured, decision log is in-memory")
	}

	var sink audit.Sink = audit.NewMemorySink()
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(ctx, cfg.KafkaBrokers, cfg.KafkaTopic,
			audit.WithKafkaLogger(log),
		)
		if err != nil {
			log.Error("connecting to kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
	}
	publisher := audit.NewPublisher(sink)

	service, err := screening.New(lists, screenMatcher, scorer, policyEngine, decisionLog,
		screening.WithLogger(log),
		screening.WithMetrics(m),
		screening.WithAuditPublisher(publisher),
		screening.WithBatchWorkers(cfg.BatchWorkers),
	)
	if err != nil {
		log.Error("building screening service", "error", err)
		os.Exit(1)
	}

	handlerOpts := []httptransport.HandlerOption{
		httptransport.WithLogger(log),
	}
	if db != nil {
		handlerOpts = append(handlerOpts, httptransport.WithHealthCheck("postgres", db.PingContext))
	}
	if redisClient != nil {
		handlerOpts = append(handlerOpts, httptransport.WithHealthCheck("redis", redisClient.Health))
	}
	handler := httptransport.NewHandler(service, jurisdictions, handlerOpts...)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	go func() {
		log.Info("starting chainscreen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("chainscreen stopped")
}
