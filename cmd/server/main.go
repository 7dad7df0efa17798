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
	"golang.org/x/sync/errgroup"

	"sigil/internal/audit"
	brandmetrics "sigil/internal/brand/metrics"
	brandservice "sigil/internal/brand/service"
	brandstore "sigil/internal/brand/store"
	certmetrics "sigil/internal/certificate/metrics"
	certservice "sigil/internal/certificate/service"
	certstore "sigil/internal/certificate/store"
	"sigil/internal/jwtauth"
	"sigil/internal/platform/config"
	"sigil/internal/platform/httpserver"
	"sigil/internal/platform/logger"
	platformredis "sigil/internal/platform/redis"
	httptransport "sigil/internal/transport/http"
	"sigil/internal/verification"
	"sigil/internal/verification/adapters"
	"sigil/internal/verification/cache"
	verifymetrics "sigil/internal/verification/metrics"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	var (
		registryStore brandservice.RegistryStore
		certStore     certservice.Store
		auditStore    audit.Store
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Error("failed to reach postgres", "error", err)
			os.Exit(1)
		}
		registryStore = brandstore.NewPostgres(db)
		certStore = certstore.NewPostgres(db)
		auditStore = audit.NewPostgresStore(db)
		log.Info("using postgres ledger storage")
	} else {
		registryStore = brandstore.NewInMemory()
		certStore = certstore.NewInMemory()
		auditStore = audit.NewInMemoryStore()
		log.Info("using in-memory ledger storage")
	}

	auditTrail := audit.NewPublisher(auditStore)

	registry := brandservice.NewRegistryService(registryStore,
		brandservice.WithLogger(log),
		brandservice.WithMetrics(brandmetrics.New()),
		brandservice.WithAuditPublisher(auditTrail),
	)
	certificates := certservice.NewCertificateService(certStore, registry,
		certservice.WithLogger(log),
		certservice.WithMetrics(certmetrics.New()),
		certservice.WithAuditPublisher(auditTrail),
	)

	engineOpts := []verification.EngineOption{
		verification.WithLogger(log),
		verification.WithMetrics(verifymetrics.New()),
		verification.WithAuditPublisher(auditTrail),
	}
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		engineOpts = append(engineOpts,
			verification.WithFactsCache(cache.NewRedisCache(redisClient.Client, cfg.Redis.CacheTTL)))
		log.Info("facts cache enabled", "ttl", cfg.Redis.CacheTTL.String())
	}

	certAdapter := adapters.NewCertificateAdapter(certificates)
	verifier := verification.NewEngine(certAdapter, certAdapter, engineOpts...)

	tokens := jwtauth.NewService(cfg.JWTSigningKey, "sigil")

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:       log,
		Registry:     registry,
		Certificates: certificates,
		Verifier:     verifier,
		Tokens:       tokens,
		Validator:    tokens,
		Audit:        auditTrail,
	})

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting sigil", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
