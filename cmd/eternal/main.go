// Eternal is the archive-first answer service.
//
// The server answers prompts from its integrity-checked archive when it
// can, and otherwise fans the prompt out to the fetch swarm, gates the
// results, synthesizes an answer and archives it.
//
// Configuration is read from ~/.config/eternal/config.yaml (or -config)
// and ETERNAL_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	eternal
//
//	# Configure via environment
//	ETERNAL_SERVER__PORT=8080 ETERNAL_ARCHIVE__BACKEND=redis eternal
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/eternal/internal/archive"
	"github.com/fyrsmithlabs/eternal/internal/config"
	"github.com/fyrsmithlabs/eternal/internal/enrich"
	"github.com/fyrsmithlabs/eternal/internal/factfinder"
	"github.com/fyrsmithlabs/eternal/internal/gatekeeper"
	httpserver "github.com/fyrsmithlabs/eternal/internal/http"
	"github.com/fyrsmithlabs/eternal/internal/logging"
	"github.com/fyrsmithlabs/eternal/internal/orchestrator"
	"github.com/fyrsmithlabs/eternal/internal/secrets"
	"github.com/fyrsmithlabs/eternal/internal/swarm"
	"github.com/fyrsmithlabs/eternal/internal/synthesis"
	"github.com/fyrsmithlabs/eternal/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  eternal [-config path]   Start the server\n")
			fmt.Fprintf(os.Stderr, "  eternal version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("eternal by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run loads configuration, wires the application and serves until ctx is
// cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging, tel.IsEnabled())
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting eternal",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("archive_backend", cfg.Archive.Backend),
		zap.String("swarm_source", cfg.Swarm.Source),
		zap.Bool("telemetry", tel.IsEnabled()))

	a, err := newApp(ctx, cfg, logger, tel)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case err := <-errCh:
		_ = a.runtime.Close(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := a.runtime.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("runtime close: %w", err))
	}
	return errors.Join(errs...)
}

// app holds the wired application.
type app struct {
	store   *archive.Store
	runtime *orchestrator.Runtime
	server  *httpserver.Server
}

// newApp builds every component from cfg. The runtime owns the store and
// the telemetry shutdown from here on.
func newApp(ctx context.Context, cfg *config.Config, logger *logging.Logger, tel *telemetry.Telemetry) (*app, error) {
	store, err := newStore(ctx, cfg, logger, tel)
	if err != nil {
		return nil, err
	}

	web, err := swarm.NewWebSource(swarm.WebConfig{
		SearchEndpoint: cfg.Swarm.SearchEndpoint,
		UserAgent:      cfg.Swarm.UserAgent,
		Timeout:        cfg.Swarm.FetchTimeout.Duration(),
		RateLimit:      cfg.Swarm.RateLimit,
		CacheTTL:       cfg.Swarm.CacheTTL.Duration(),
		Logger:         logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create web source: %w", err)
	}
	simulated := swarm.NewSimulatedSource(cfg.Swarm.SimulatedLatency.Duration())

	var def, alt swarm.Source = simulated, web
	if cfg.Swarm.Source == config.SourceWeb {
		def, alt = web, simulated
	}
	dispatcher := swarm.NewDispatcher(def,
		swarm.WithSource(alt),
		swarm.WithMaxParallel(cfg.Swarm.MaxConcurrency),
		swarm.WithLogger(logger),
		swarm.WithTracer(tel.Tracer("eternal/swarm")))

	var redactor *secrets.Redactor
	if !cfg.Gatekeeper.SkipSecretRedaction {
		if redactor, err = secrets.New(secrets.DefaultConfig()); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to create secret redactor: %w", err)
		}
	}
	gate := gatekeeper.New(gatekeeper.Config{
		SentrySignatures:    cfg.Gatekeeper.SentrySignatures,
		InterrogatorMarkers: cfg.Gatekeeper.InterrogatorMarkers,
		Redactor:            redactor,
	}, gatekeeper.WithLogger(logger), gatekeeper.WithTracer(tel.Tracer("eternal/gatekeeper")))

	enricher := &enrich.Enricher{
		Images: enrich.NewPexelsFinder(enrich.PexelsConfig{
			APIKey:   cfg.Enrich.PexelsAPIKey.Value(),
			Endpoint: cfg.Enrich.PexelsEndpoint,
			Timeout:  cfg.Enrich.Timeout.Duration(),
			CacheTTL: cfg.Enrich.CacheTTL.Duration(),
			Logger:   logger,
		}),
	}

	researcher := factfinder.New(
		factfinder.SourceSearcher{Source: web},
		factfinder.NewWikipedia(cfg.FactFinder.WikipediaEndpoint, cfg.Swarm.UserAgent, cfg.FactFinder.Timeout.Duration()),
		factfinder.WithLogger(logger),
		factfinder.WithTracer(tel.Tracer("eternal/factfinder")))

	synthCfg := synthesis.Config{
		Endpoint:   cfg.Synthesis.Endpoint,
		Model:      cfg.Synthesis.Model,
		APIKey:     cfg.Synthesis.APIKey.Value(),
		Timeout:    cfg.Synthesis.Timeout.Duration(),
		MaxRetries: cfg.Synthesis.MaxRetries,
		RateLimit:  cfg.Synthesis.RateLimit,
	}

	rt, err := orchestrator.NewRuntime(ctx, orchestrator.Deps{
		Archive:    store,
		Dispatcher: dispatcher,
		Gatekeeper: gate,
		NewSynthesizer: func() (synthesis.Synthesizer, error) {
			return synthesis.NewClient(synthCfg)
		},
		Enricher:   enricher,
		Researcher: researcher,
		Shutdown:   []func(context.Context) error{tel.Shutdown},
		Logger:     logger,
		Tracer:     tel.Tracer("eternal/orchestrator"),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	srv, err := httpserver.NewServer(rt, store, logger, &httpserver.Config{
		Port:      cfg.Server.Port,
		StaticDir: cfg.Enrich.StaticDir,
	})
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to create http server: %w", err)
	}

	return &app{store: store, runtime: rt, server: srv}, nil
}

func newStore(ctx context.Context, cfg *config.Config, logger *logging.Logger, tel *telemetry.Telemetry) (*archive.Store, error) {
	opts := []archive.Option{
		archive.WithLogger(logger),
		archive.WithTracer(tel.Tracer("eternal/archive")),
	}
	switch cfg.Archive.Backend {
	case config.BackendRedis:
		store, err := archive.NewRedisStore(ctx, &redis.Options{
			Addr:     cfg.Archive.Redis.Addr,
			Password: cfg.Archive.Redis.Password.Value(),
			DB:       cfg.Archive.Redis.DB,
		}, cfg.Archive.Redis.Key, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis archive at %s: %w", cfg.Archive.Redis.Addr, err)
		}
		logger.Info(ctx, "archive opened", zap.String("backend", "redis"), zap.String("addr", cfg.Archive.Redis.Addr))
		return store, nil
	default:
		store, err := archive.NewFileStore(cfg.Archive.Path, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open archive at %s: %w", cfg.Archive.Path, err)
		}
		logger.Info(ctx, "archive opened", zap.String("backend", "file"), zap.String("path", cfg.Archive.Path))
		return store, nil
	}
}
