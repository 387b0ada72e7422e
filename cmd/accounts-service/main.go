package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/accounts-service/internal/cache"
	"github.com/pribylovaa/accounts-service/internal/config"
	"github.com/pribylovaa/accounts-service/internal/metrics"
	"github.com/pribylovaa/accounts-service/internal/pkg/redact"
	"github.com/pribylovaa/accounts-service/internal/security/password"
	"github.com/pribylovaa/accounts-service/internal/service"
	"github.com/pribylovaa/accounts-service/internal/storage"
	"github.com/pribylovaa/accounts-service/internal/storage/memory"
	"github.com/pribylovaa/accounts-service/internal/storage/postgres"
	"github.com/pribylovaa/accounts-service/internal/tokens"
	grpcserver "github.com/pribylovaa/accounts-service/internal/transport/grpc"
	httpserver "github.com/pribylovaa/accounts-service/internal/transport/http"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// readinessPeriod - период проверки базы для health/readiness.
const readinessPeriod = 5 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting application", "env", cfg.Env)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}

	log.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	str, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer str.Close()

	hasher, err := password.New(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	srvc := service.New(str, tokens.NewManager(cfg.Auth), hasher)

	if cfg.Redis.RedisURL != "" {
		rctx, rcancel := context.WithTimeout(ctx, 5*time.Second)
		dl, err := cache.NewRedisDenylist(rctx, cfg.Redis.RedisURL, cfg.Redis.Prefix)
		rcancel()
		if err != nil {
			return err
		}
		defer dl.Close()

		srvc.SetDenylist(dl)
		log.Info("redis_connected")
	}

	// Фоновые записи refresh-токенов дожидаемся до закрытия хранилища.
	defer srvc.Wait()

	if cfg.Bootstrap.Enabled() {
		created, err := srvc.EnsureAdmin(ctx, service.AdminSeed{
			Email:    cfg.Bootstrap.AdminEmail,
			Password: cfg.Bootstrap.AdminPassword,
			FullName: cfg.Bootstrap.AdminFullName,
		})
		if err != nil {
			return err
		}
		log.Info("bootstrap_admin",
			slog.String("email", redact.Email(cfg.Bootstrap.AdminEmail)),
			slog.Bool("created", created),
		)
	}
	log.Info("service_initialized")

	// gRPC: health + reflection (local/dev) + метрики.
	grpcSrv := grpcserver.NewServer(grpcserver.Options{
		Logger:     log,
		Timeout:    cfg.Timeouts.Request,
		Reflection: cfg.Env == envLocal || cfg.Env == envDev,
		Metrics:    true,
	})

	grpcLis, err := net.Listen("tcp", cfg.GRPC.Addr())
	if err != nil {
		return err
	}

	// Публичный REST.
	apiSrv := &http.Server{
		Addr: cfg.HTTP.Addr(),
		Handler: httpserver.NewRouter(srvc, httpserver.Options{
			Logger:         log,
			Timeout:        cfg.Timeouts.Request,
			BasePath:       cfg.HTTP.BasePath,
			Cookie:         cfg.Cookie,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			Metrics:        metrics.NewHTTP(prometheus.DefaultRegisterer),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Служебный HTTP: livez/healthz/metrics.
	opsSrv := &http.Server{
		Addr:              cfg.Ops.Addr(),
		Handler:           opsMux(grpcSrv),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 3)

	go func() {
		if err := grpcSrv.Serve(grpcLis); err != nil {
			serveErrCh <- err
		}
	}()
	for _, s := range []*http.Server{apiSrv, opsSrv} {
		go func(s *http.Server) {
			log.Info("http_listen_start", slog.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErrCh <- err
			}
		}(s)
	}

	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	go grpcSrv.WatchReadiness(watchCtx, str, readinessPeriod)

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		log.Error("serve_failed", slog.String("err", serveErr.Error()))
	}

	watchCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer shutdownCancel()

	grpcSrv.Stop(shutdownCtx)
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_failed", slog.String("err", err.Error()))
	}
	_ = opsSrv.Shutdown(shutdownCtx)

	return serveErr
}

// openStorage выбирает хранилище: PostgreSQL по DATABASE_URL,
// иначе in-memory (Validate разрешает это только в env=local).
func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	if cfg.DB.DatabaseURL == "" {
		log.Warn("storage_in_memory", slog.String("env", cfg.Env))
		return memory.New(), nil
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()

	str, err := postgres.New(dbCtx, cfg.DB.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.Info("postgres_connected")

	return str, nil
}

func opsMux(grpcSrv *grpcserver.Server) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if grpcSrv.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}
