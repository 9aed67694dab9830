// Package main runs the FoodApp web server: the landing and dashboard pages
// served against a Manifest backend.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/foodapp/internal/backend"
	"github.com/R3E-Network/foodapp/internal/config"
	"github.com/R3E-Network/foodapp/internal/logging"
	"github.com/R3E-Network/foodapp/internal/manifest"
	"github.com/R3E-Network/foodapp/internal/metrics"
	"github.com/R3E-Network/foodapp/internal/middleware"
	"github.com/R3E-Network/foodapp/internal/probe"
	"github.com/R3E-Network/foodapp/internal/sessionstore"
	"github.com/R3E-Network/foodapp/internal/web"
)

const limiterIdle = 30 * time.Minute

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logging.New("foodapp", "info").WithError(err).Fatal("invalid configuration")
	}
	logger := logging.New("foodapp", cfg.LogLevel)
	m := metrics.New()

	client, err := manifest.NewClient(manifest.Config{
		BaseURL:  cfg.BackendURL,
		AppID:    cfg.AppID,
		Timeout:  cfg.RequestTimeout,
		Observer: m.RecordRemoteCall,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create backend client")
	}

	scheduler := cron.New()

	store, closeStore := openStore(ctx, cfg, logger, scheduler)
	defer closeStore()

	prober := probe.New(client, probe.Config{
		Attempts:   cfg.ProbeAttempts,
		Backoff:    cfg.ProbeBackoff,
		Path:       cfg.ProbePath,
		BackendURL: cfg.BackendURL,
		AppID:      cfg.AppID,
	}, logger, m)
	// Diagnostic only; handlers never wait for it.
	go prober.Run(ctx)
	if err := prober.Schedule(scheduler, cfg.ProbeSchedule, cfg.RequestTimeout); err != nil {
		logger.WithError(err).Fatal("invalid probe schedule")
	}

	limiter := middleware.NewRateLimiter(float64(cfg.AuthRateLimit), cfg.AuthRateBurst, logger)
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, func() {
		if n := limiter.Cleanup(limiterIdle); n > 0 {
			logger.WithField("removed", n).Debug("pruned idle rate limiters")
		}
	}); err != nil {
		logger.WithError(err).Fatal("invalid sweep schedule")
	}

	srv, err := web.NewServer(web.Options{
		Client: client,
		Names: backend.Names{
			UserEntity:  cfg.UserEntity,
			Restaurants: cfg.RestaurantCollection,
		},
		Store:              store,
		Prober:             prober,
		Logger:             logger,
		Metrics:            m,
		SessionSecret:      cfg.SessionSecret,
		SessionTTL:         cfg.SessionTTL,
		SecureCookies:      cfg.SecureCookies,
		AdminURL:           cfg.AdminURL(),
		MaxUploadBytes:     cfg.MaxUploadBytes,
		BootstrapTimeout:   cfg.RequestTimeout,
		AuthLimiter:        limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create web server")
	}

	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ServerTimeout(),
		WriteTimeout:      cfg.ServerTimeout(),
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).WithField("backend_url", cfg.BackendURL).Info("foodapp listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("shutdown error")
	}
	logger.Info("foodapp stopped")
}

// openStore picks Redis when configured, otherwise an in-process store swept
// on the sweep schedule.
func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger, scheduler *cron.Cron) (sessionstore.Store, func()) {
	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rs, err := sessionstore.NewRedis(pingCtx, sessionstore.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to redis")
		}
		logger.WithField("addr", cfg.RedisAddr).Info("using redis session store")
		return rs, func() {
			if err := rs.Close(); err != nil {
				logger.WithError(err).Warn("failed to close redis")
			}
		}
	}

	mem := sessionstore.NewMemory()
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, func() {
		if n := mem.Sweep(); n > 0 {
			logger.WithField("removed", n).Debug("swept expired sessions")
		}
	}); err != nil {
		logger.WithError(err).Fatal("invalid sweep schedule")
	}
	logger.Info("using in-memory session store")
	return mem, func() {}
}
