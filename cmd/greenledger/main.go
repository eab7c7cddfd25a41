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

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/totegamma/greenledger/internal/config"
	"github.com/totegamma/greenledger/internal/domain"
	"github.com/totegamma/greenledger/internal/infra/clock"
	"github.com/totegamma/greenledger/internal/infra/database"
	"github.com/totegamma/greenledger/internal/infra/event"
	"github.com/totegamma/greenledger/internal/infra/kv/memcached"
	"github.com/totegamma/greenledger/internal/infra/kv/memory"
	kvpostgres "github.com/totegamma/greenledger/internal/infra/kv/postgres"
	kvredis "github.com/totegamma/greenledger/internal/infra/kv/redis"
	"github.com/totegamma/greenledger/internal/metrics"
	"github.com/totegamma/greenledger/internal/present/rest"
	authmiddleware "github.com/totegamma/greenledger/internal/present/rest/middleware"
	"github.com/totegamma/greenledger/internal/service"
	"github.com/totegamma/greenledger/internal/usecase"
	"github.com/totegamma/greenledger/policy"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	path := os.Getenv("GREENLEDGER_CONFIG")
	if path == "" {
		path = "/etc/greenledger/config.yaml"
	}

	conf, err := config.Load(path)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", path), slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf); err != nil {
		slog.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, conf config.Config) error {
	if conf.Server.EnableTrace {
		shutdown, err := setupTraceProvider(ctx, conf.Server.TraceEndpoint, conf.NodeInfo.FQDN)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	var rdb *redis.Client
	if conf.Server.RedisAddr != "" {
		client, err := database.NewRedis(ctx, conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		rdb = client
	}

	var db *gorm.DB
	if conf.Server.StoreBackend == config.BackendPostgres {
		gdb, err := database.NewPostgres(conf.Server.PostgresDsn)
		if err != nil {
			return err
		}
		if err := database.MigratePostgres(gdb); err != nil {
			return err
		}
		db = gdb
	}

	newStore := func(dataset string) usecase.Store {
		var store usecase.Store
		switch conf.Server.StoreBackend {
		case config.BackendRedis:
			store = kvredis.New(rdb, dataset)
		case config.BackendPostgres:
			store = kvpostgres.New(db, dataset)
		default:
			store = memory.New()
		}
		if conf.Server.MemcachedAddr != "" {
			store = memcached.New(store, database.NewMemcached(conf.Server.MemcachedAddr), dataset)
		}
		return store
	}

	sinks := event.Multi{
		event.NewLogSink(slog.Default()),
		metrics.New(prometheus.DefaultRegisterer),
	}

	var signalService *service.SignalService
	if rdb != nil {
		signalService = service.NewSignalService(rdb)
		sinks = append(sinks, signalService)
	}

	if len(conf.Server.KafkaBrokers) > 0 {
		kafka, err := event.NewKafkaClient(ctx, conf.Server.KafkaBrokers, conf.Server.KafkaTopic)
		if err != nil {
			return err
		}
		defer kafka.Close()
		sinks = append(sinks, event.NewKafkaSink(kafka, conf.Server.KafkaTopic))
	}

	lifetime := conf.Lifetime()
	certificates := usecase.NewRegistryUsecase[domain.TreeCertificate](
		domain.CertificateRegistry, newStore(domain.CertificateRegistry), clock.System{}, sinks, lifetime,
	)
	artpieces := usecase.NewRegistryUsecase[domain.ArtPiece](
		domain.ArtPieceRegistry, newStore(domain.ArtPieceRegistry), clock.System{}, sinks, lifetime,
	)

	doc := service.DefaultPolicy()
	if conf.Registry.PolicyPath != "" {
		loaded, err := service.LoadPolicy(conf.Registry.PolicyPath)
		if err != nil {
			return err
		}
		doc = loaded
	}
	if _, ok := doc.Versions[policy.Version]; !ok {
		slog.Warn("policy document has no supported version; privileged actions will be refused", slog.String("version", policy.Version))
	}

	domainConf := conf.Domain()
	access := service.NewAccessService(doc, domainConf)
	auth := authmiddleware.NewAuthMiddleware(service.NewAuthService(domainConf), domainConf)

	e := echo.New()
	e.HideBanner = true
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("greenledger"))
	}
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(auth.IdentifyIdentity)

	rest.NewHandler(domainConf, certificates, artpieces, access, signalService, rest.Options{
		RequireOwnerAddress: conf.Registry.RequireOwnerAddress,
	}).RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", slog.String("addr", conf.Server.Listen), slog.String("backend", conf.Server.StoreBackend))
		if err := e.Start(conf.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func setupTraceProvider(ctx context.Context, endpoint string, serviceName string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", "greenledger"),
		attribute.String("service.instance.id", serviceName),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1))),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
