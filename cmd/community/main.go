package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/totegamma/concrnt-community/internal/config"
	"github.com/totegamma/concrnt-community/internal/domain"
	"github.com/totegamma/concrnt-community/internal/infra/database"
	"github.com/totegamma/concrnt-community/internal/infra/repository"
	"github.com/totegamma/concrnt-community/internal/present/rest"
	restmw "github.com/totegamma/concrnt-community/internal/present/rest/middleware"
	"github.com/totegamma/concrnt-community/internal/registry"
	"github.com/totegamma/concrnt-community/internal/service"
	"github.com/totegamma/concrnt-community/internal/telemetry"
	"github.com/totegamma/concrnt-community/internal/usecase"
	"github.com/totegamma/concrnt-community/policy"
)

const serviceName = "concrnt-community"

func main() {
	path := os.Getenv("CONCRNT_CONFIG")
	if path == "" {
		path = "/etc/concrnt/config/config.yaml"
	}

	conf, err := config.Load(path)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", path), slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.SetDefault(telemetry.NewLogger(os.Stdout, conf.Server.LogLevel, conf.Server.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf); err != nil {
		slog.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, conf config.Config) error {
	nodeConfig := domain.Config{
		FQDN:       conf.NodeInfo.FQDN,
		PrivateKey: conf.NodeInfo.PrivateKey,
		Layer:      conf.NodeInfo.Layer,
		CSID:       conf.NodeInfo.CSID,
	}

	traceEndpoint := ""
	if conf.Server.EnableTrace {
		traceEndpoint = conf.Server.TraceEndpoint
	}
	shutdownTracing, err := telemetry.SetupTracing(ctx, serviceName, traceEndpoint)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	db, err := database.Open(conf.Server.PostgresDsn)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	var opts []registry.Option
	if conf.Server.PolicyFile != "" {
		doc, err := policy.Load(conf.Server.PolicyFile)
		if err != nil {
			return err
		}
		opts = append(opts, registry.WithAuthorizer(policy.NewAuthorizer(doc)))
		slog.Info("council policy loaded", slog.String("policy", doc.Name))
	}

	metrics := telemetry.NewMetrics()
	repo := repository.NewCommunityRepository(db)

	var publisher usecase.SignalPublisher
	var realtime rest.RealtimeSource
	if conf.Server.RedisAddr != "" {
		rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
		signalService := service.NewSignalService(rdb)
		publisher = signalService
		realtime = signalService
	} else {
		slog.Warn("redisAddr not set, events are only recorded in history")
	}

	communityUsecase := usecase.NewCommunityUsecase(registry.New(opts...), repo, publisher, metrics)
	if err := communityUsecase.Restore(ctx); err != nil {
		return err
	}

	var store service.IdempotencyStore
	if conf.Server.MemcachedAddr != "" {
		store = service.NewMemcacheIdempotencyStore(database.NewMemcached(conf.Server.MemcachedAddr))
	} else {
		store = service.NewMemoryIdempotencyStore(conf.Server.IdempotencyTTL)
	}

	authMiddleware := restmw.NewAuthMiddleware(service.NewAuthService(nodeConfig))
	idempotencyMiddleware := restmw.NewIdempotencyMiddleware(store, conf.Server.IdempotencyTTL)

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware(serviceName))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(authMiddleware.IdentifyIdentity)

	handler := rest.NewHandler(nodeConfig, communityUsecase, realtime, metrics.Handler())
	handler.RegisterRoutes(e, idempotencyMiddleware.Replay)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", slog.String("error", err.Error()))
		}
	}()

	slog.Info("listening", slog.String("addr", conf.Server.ListenAddr), slog.String("fqdn", nodeConfig.FQDN))
	if err := e.Start(conf.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
