package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"inferd/internal/common/fsutil"
	"inferd/internal/config"
	"inferd/internal/httpapi"
	"inferd/internal/manager"
	"inferd/internal/registry"
)

// defaultConfigPath is tried when --config is not given.
const defaultConfigPath = "~/.config/inferd/config.yaml"

type serveOptions struct {
	configPath  string
	addr        string
	maxSessions int
	corsOrigins string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Example: "  inferd serve --config ./inferd.yaml\n" +
			"  INFERD_ADDR=:9000 inferd serve --config ./inferd.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			// Flags win over the file; the file wins over nothing.
			lvl, format := root.logLevel, root.logFormat
			if lvl == "" {
				lvl = cfg.Log.Level
			}
			if format == "" {
				format = cfg.Log.Format
			}
			setupLogging(lvl, format)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, nil)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", envOr("INFERD_CONFIG", ""), "Config file (.yaml, .json or .toml)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address, e.g. :8080 (overrides config)")
	cmd.Flags().IntVar(&opts.maxSessions, "max-sessions", 0, "Maximum concurrent sessions (overrides config)")
	cmd.Flags().StringVar(&opts.corsOrigins, "cors-origins", "", "Comma-separated CORS origins; enables CORS (overrides config)")
	return cmd
}

// loadConfig reads the config file, overlays the environment and flags, then
// fills defaults and validates.
func loadConfig(opts *serveOptions) (config.Config, error) {
	path := opts.configPath
	if path == "" {
		if p, err := fsutil.ExpandHome(defaultConfigPath); err == nil && fsutil.PathExists(p) {
			path = p
		}
	}
	if path == "" {
		return config.Config{}, fmt.Errorf("no config file: pass --config or create %s", defaultConfigPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("apply environment: %w", err)
	}
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.maxSessions != 0 {
		cfg.MaxSessions = opts.maxSessions
	}
	if origins := splitCSV(opts.corsOrigins); len(origins) > 0 {
		cfg.CORS.Enabled = true
		cfg.CORS.AllowedOrigins = origins
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// serve runs the server until ctx is canceled. When ready is non-nil it
// receives the bound listener address once the server accepts connections.
func serve(ctx context.Context, cfg config.Config, ready chan<- string) error {
	reg, err := registry.FromConfig(cfg.Models, cfg.DefaultModel)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	mcfg := manager.ManagerConfig{
		Models:        reg,
		MaxSessions:   cfg.MaxSessions,
		SessionTTL:    cfg.SessionTTL.Duration,
		SweepInterval: cfg.SweepInterval.Duration,
		StepTokens:    cfg.StepTokens,
	}
	if cfg.Events.RedisAddr != "" {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pub, err := manager.NewRedisPublisher(pctx, manager.RedisPublisherConfig{
			Addr:   cfg.Events.RedisAddr,
			Stream: cfg.Events.Stream,
			MaxLen: cfg.Events.MaxLen,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("events publisher: %w", err)
		}
		defer pub.Close()
		mcfg.Publisher = pub
		log.Info().Str("addr", cfg.Events.RedisAddr).Str("stream", cfg.Events.Stream).Msg("publishing session events")
	}
	mgr := manager.NewWithConfig(mcfg)

	for _, ms := range mgr.SanityCheck(ctx).Models {
		if !ms.Reachable {
			log.Warn().Str("model", ms.Key).Str("error", ms.Error).Msg("model backend unreachable")
		}
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(log.Logger)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetStepTimeout(cfg.StepTimeout.Duration)
	httpapi.SetPingInterval(cfg.WSPingInterval.Duration)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Int("models", reg.Len()).Int("max_sessions", cfg.MaxSessions).Msg("inferd listening")
		if ready != nil {
			ready <- ln.Addr().String()
		}
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return mgr.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		// Hijacked WebSocket connections are not tracked by Shutdown;
		// canceling the base context ends their in-flight steps.
		cancelBase()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown")
		}
		return nil
	})
	err = g.Wait()
	log.Info().Msg("inferd stopped")
	return err
}
