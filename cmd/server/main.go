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

	"github.com/AntonTsoy/auth-service/internal/auth"
	"github.com/AntonTsoy/auth-service/internal/db"
	"github.com/AntonTsoy/auth-service/internal/email"
	"github.com/AntonTsoy/auth-service/internal/logging"
	"github.com/AntonTsoy/auth-service/internal/metrics"
	"github.com/AntonTsoy/auth-service/internal/server"
	"github.com/AntonTsoy/auth-service/internal/token"
	"github.com/AntonTsoy/auth-service/internal/user"
	"github.com/AntonTsoy/auth-service/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logging.NewLogger(cfg.LogLevel, cfg.IsProduction())
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := db.NewPostgresDB(ctx, cfg.DatabaseURL, cfg.DBOpTimeout)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := db.Migrate(ctx, pg); err != nil {
		return err
	}

	ledger, closeLedger, err := db.NewLedger(ctx, cfg, pg)
	if err != nil {
		return err
	}
	defer closeLedger()

	codec, err := token.NewCodec(token.CodecConfig{
		AccessSecret:  []byte(cfg.AccessSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	users := user.NewUserRepository(pg, cfg.DBOpTimeout)
	service := auth.NewService(users, codec, ledger,
		auth.WithLogger(log),
		auth.WithMetrics(m),
		auth.WithBcryptCost(cfg.BcryptCost),
		auth.WithNotifier(email.NewLogSender(log, 5*time.Second)),
	)
	guard := auth.NewGuard(codec, users)
	authHandler := auth.NewAuthHandler(service, guard, auth.CookieConfig{
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSite,
		MaxAge:   cfg.RefreshTTL,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(server.Deps{
		Auth:    authHandler,
		Log:     log,
		Debug:   cfg.Env == config.EnvDevelopment,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	go token.NewReaper(ledger, cfg.ReaperInterval, log, m).Run(ctx)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr, "env", cfg.Env, "ledger", cfg.LedgerBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
