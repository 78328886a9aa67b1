package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clientpulse/clientpulse/server/internal/aggregate"
	"github.com/clientpulse/clientpulse/server/internal/alerts"
	"github.com/clientpulse/clientpulse/server/internal/api"
	"github.com/clientpulse/clientpulse/server/internal/auth"
	"github.com/clientpulse/clientpulse/server/internal/compute"
	"github.com/clientpulse/clientpulse/server/internal/config"
	"github.com/clientpulse/clientpulse/server/internal/engine"
	"github.com/clientpulse/clientpulse/server/internal/prober"
	"github.com/clientpulse/clientpulse/server/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("clientpulse-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"storage", cfg.Storage.Backend,
		"sink", cfg.Alerts.Sink.Type,
		"clients", len(cfg.Clients),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, cfg); err != nil {
		slog.Error("clientpulse-server failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, cfg *config.Config) error {
	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	cooldown, closeCooldown, err := openCooldown(ctx, cfg.Alerts)
	if err != nil {
		return err
	}
	defer closeCooldown()

	pub, err := openPublisher(cfg.Alerts.Sink)
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			slog.Warn("alert publisher close failed", "err", err)
		}
	}()

	fanout := aggregate.NewFanout(cfg.Probe.MaxInFlight, cfg.Probe.PerClientFanout,
		cfg.Probe.RatePerSecond, cfg.Probe.Burst)
	eng := engine.New(st, prober.New(cfg.Probe), fanout, engine.Options{
		ROI: compute.Assumptions{
			MinutesPerAutomation: cfg.ROI.MinutesPerAutomation,
			HourlyRate:           cfg.ROI.HourlyRate,
		},
		Cooldown:       cooldown,
		CooldownWindow: cfg.Alerts.Cooldown,
		Publisher:      pub,
	})

	seedClients(ctx, eng, cfg.Clients)

	// Reload re-registers the seed list; listeners and backends keep the
	// settings they started with.
	go func() {
		err := config.Watch(ctx, configPath, func(next *config.Config) {
			seedClients(ctx, eng, next.Clients)
		})
		if err != nil {
			slog.Warn("config watcher stopped", "err", err)
		}
	}()

	go eng.Poller(cfg.Alerts.PollInterval).Run(ctx)

	authMW := auth.APIKey(cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key())
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           api.New(eng, authMW),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	slog.Info("clientpulse-server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Backend {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.DSN(), cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		slog.Info("postgres store ready", "max_conns", cfg.MaxConns)
		return pg, nil
	default:
		mem := store.NewMemoryStore(cfg.Retention)
		go mem.Run(ctx)
		slog.Info("memory store ready", "retention", cfg.Retention)
		return mem, nil
	}
}

func openCooldown(ctx context.Context, cfg config.AlertsConfig) (alerts.Cooldown, func(), error) {
	if cfg.CooldownBackend != "redis" {
		return alerts.NewMemoryCooldown(), func() {}, nil
	}
	rc, err := alerts.NewRedisCooldown(ctx, cfg.Redis.Addr, cfg.Redis.Password(), cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("redis cooldown ready", "addr", cfg.Redis.Addr)
	return rc, func() {
		if err := rc.Close(); err != nil {
			slog.Warn("redis close failed", "err", err)
		}
	}, nil
}

func openPublisher(cfg config.SinkConfig) (alerts.Publisher, error) {
	switch cfg.Type {
	case "nats":
		return alerts.NewNATSPublisher(cfg.URL, cfg.Subject)
	case "kafka":
		return alerts.NewKafkaPublisher(cfg.Brokers, cfg.Topic), nil
	case "webhook":
		return alerts.NewWebhookPublisher(cfg.WebhookURL(), cfg.Format), nil
	default:
		return alerts.LogPublisher{}, nil
	}
}

// seedClients registers every configured client. One failing client is
// logged and does not stop the others.
func seedClients(ctx context.Context, eng *engine.Engine, clients []config.ClientConfig) {
	for _, cc := range clients {
		res, err := eng.RegisterClient(ctx, cc.ToClient())
		if err != nil {
			slog.Warn("client registration failed", "client", cc.ID, "err", err)
			continue
		}
		slog.Info("client registered",
			"client", cc.ID, "status", res.OverallStatus, "systems", res.Summary.TotalSystems)
	}
}
