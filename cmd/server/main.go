// Command server runs the life-certificate attestation service. Every
// external system is optional: without Postgres, Redis, Kafka, or MinIO the
// service falls back to in-memory stores, which is how development and most
// tests run it.
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

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"lifecert/internal/application"
	apphandler "lifecert/internal/application/handler"
	"lifecert/internal/application/service"
	"lifecert/internal/audit"
	"lifecert/internal/docstore"
	"lifecert/internal/identity"
	"lifecert/internal/mailer"
	"lifecert/internal/notification"
	"lifecert/internal/platform/config"
	"lifecert/internal/platform/httpserver"
	"lifecert/internal/platform/logger"
	"lifecert/internal/platform/metrics"
	"lifecert/internal/platform/middleware"
	redisplatform "lifecert/internal/platform/redis"
	"lifecert/internal/user"
	userhandler "lifecert/internal/user/handler"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("ping postgres", "error", err)
			os.Exit(1)
		}
	}

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	var rdb *goredis.Client
	if redisClient != nil {
		rdb = redisClient.Client
		defer redisClient.Close()
	}

	// Stores: durable when Postgres is configured, in-memory otherwise.
	var appStore application.Store
	var auditStore audit.Store
	var userStore user.Store
	if db != nil {
		pgApps := application.NewPostgres(db, rdb, log)
		pgAudit := audit.NewPostgres(db)
		pgUsers := user.NewPostgres(db)
		for name, ensure := range map[string]func(context.Context) error{
			"applications": pgApps.EnsureSchema,
			"audit":        pgAudit.EnsureSchema,
			"users":        pgUsers.EnsureSchema,
		} {
			if err := ensure(ctx); err != nil {
				log.Error("ensure schema", "table", name, "error", err)
				os.Exit(1)
			}
		}
		appStore, auditStore, userStore = pgApps, pgAudit, pgUsers
	} else {
		log.Warn("no postgres configured, using in-memory stores")
		appStore = application.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		userStore = user.NewInMemoryStore()
	}

	sink := audit.NewSink(log, audit.WithDroppedCounter(m.AuditEventsDropped))
	auditWorker := audit.NewWorker(auditStore, sink.Inbox(), log)

	var publisher *audit.Publisher
	if db != nil && len(cfg.KafkaBrokers) > 0 {
		publisher, err = audit.NewPublisher(db, cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("init audit publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		if err := publisher.EnsureTopic(ctx); err != nil {
			log.Error("ensure audit topic", "error", err)
			os.Exit(1)
		}
	}

	dispatcher := notification.NewDispatcher(log)
	engine := service.New(appStore, sink, dispatcher, m, log)
	userSvc := user.NewService(userStore, sink, log)
	gmail := mailer.NewGmail(log)
	verifier := identity.NewVerifier(cfg.JWTSigningKey)

	var docs *docstore.Storage
	if cfg.Minio.Endpoint != "" {
		docs, err = docstore.New(cfg.Minio)
		if err != nil {
			log.Error("init object storage", "error", err)
			os.Exit(1)
		}
		if err := docs.EnsureBucket(ctx); err != nil {
			log.Error("ensure document bucket", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("no object storage configured, document uploads disabled")
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(identity.RequireAuth(verifier, log))
		apphandler.New(engine, gmail, sink, cfg.SparshEmail, log).Register(r)
		userhandler.New(userSvc, sink, log).Register(r)
		if docs != nil {
			docstore.NewHandler(docs).Register(r)
		}
	})

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return auditWorker.Run(groupCtx)
	})
	if publisher != nil {
		group.Go(func() error {
			return publisher.Run(groupCtx)
		})
	}
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
