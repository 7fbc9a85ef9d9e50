package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"netpulse/internal/config"
	"netpulse/internal/handler"
	"netpulse/internal/hub"
	"netpulse/internal/loader"
	"netpulse/internal/monitor"
	"netpulse/internal/probe"
	"netpulse/internal/relay"
	"netpulse/internal/repository/sqlite"
	"netpulse/internal/service"
	"netpulse/internal/topology"
	"netpulse/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "Config file path (default: search standard locations)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	seedPath := flag.String("seed", "", "Seed file path (overrides config)")
	kafkaBrokers := flag.String("kafka-brokers", "", "Comma-separated Kafka brokers (overrides config)")
	writeConfig := flag.String("write-config", "", "Write the effective config to this path and exit")
	flag.Parse()

	cfg, foundAt, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "netpulse: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *seedPath != "" {
		cfg.Seed.Path = *seedPath
	}
	if brokers := relay.ParseBrokers(*kafkaBrokers); len(brokers) > 0 {
		cfg.Kafka.Brokers = brokers
	}

	if *writeConfig != "" {
		if err := cfg.Save(*writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "netpulse: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("config written to %s\n", *writeConfig)
		return
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "netpulse: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if foundAt != "" {
		logger.Info("config loaded", zap.String("path", foundAt))
	}
	logger.Info("starting netpulse", zap.String("summary", cfg.Summary()))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()
	logger.Info("database opened", zap.String("path", cfg.Database.Path))

	store, err := topology.Open(ctx, repo, logger)
	if err != nil {
		return fmt.Errorf("load topology: %w", err)
	}

	broadcaster := hub.New(cfg.Broadcast.Buffer, logger)
	defer broadcaster.Close()

	svc := service.NewMutationService(store, broadcaster, logger)

	if cfg.Seed.Path != "" {
		applySeed(ctx, svc, cfg.Seed.Path, logger)
		if cfg.Seed.Watch {
			w := watcher.New(cfg.Seed.Path, func(ctx context.Context) {
				applySeed(ctx, svc, cfg.Seed.Path, logger)
			}, logger)
			go func() {
				if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("seed watcher stopped", zap.Error(err))
				}
			}()
		}
	}

	executor := probe.NewExecutor(newProber(ctx, cfg, logger), cfg.Probe.Timeout.Duration(), cfg.Probe.MaxParallel, logger)
	scheduler := monitor.New(store, executor, broadcaster, cfg.Monitor.Interval.Duration(), logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.Kafka.Enabled() {
		writer := relay.NewWriter(relay.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		r := relay.New(writer, logger)
		defer r.Close()

		sub := broadcaster.Subscribe()
		defer sub.Close()
		go r.Run(ctx, sub.Events())
		logger.Info("kafka relay enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	networkHandler := handler.NewNetworkHandler(svc, logger)
	networkHandler.SetSweeper(scheduler)

	mux := http.NewServeMux()
	networkHandler.Register(mux)
	mux.Handle("GET /events", broadcaster)
	mux.Handle("GET /metrics", promhttp.Handler())

	httpLogger := logger.Named("http")
	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: handler.Chain(mux,
			handler.Recover(httpLogger),
			handler.CORS,
			handler.Logger(httpLogger),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	// SSE streams only end when their subscriptions close
	broadcaster.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}
	return nil
}

func newProber(ctx context.Context, cfg *config.Config, logger *zap.Logger) probe.Prober {
	if cfg.Probe.Method == config.ProbeNmap {
		p := probe.NewNmapProber(logger)
		if p.Available(ctx) {
			logger.Info("using nmap ping scan")
			return p
		}
		logger.Warn("nmap not available, falling back to tcp probes")
	}
	return probe.NewTCPProber(cfg.Probe.Ports, cfg.Probe.Timeout.Duration())
}

func applySeed(ctx context.Context, svc *service.MutationService, path string, logger *zap.Logger) {
	seed, err := loader.LoadFile(path)
	if err != nil {
		logger.Warn("failed to load seed", zap.String("path", path), zap.Error(err))
		return
	}

	res, err := loader.Apply(ctx, svc, seed)
	if err != nil {
		logger.Error("failed to apply seed", zap.String("path", path), zap.Error(err))
		return
	}
	logger.Info("seed applied",
		zap.String("path", path),
		zap.Int("created", res.Created),
		zap.Int("existing", res.Existing),
		zap.Strings("skipped", res.Skipped))
}
