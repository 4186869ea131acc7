package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"clover/internal/config"
	"clover/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	corsOrigins     string
	generateTimeout int64
}

func newServeCmd(g *globalOptions) *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve the HTTP API",
		Example: "  clover serve --models-dir ~/models/llm --model qwen2.5-0.5b-instruct-q4_k_m.gguf",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g.flags.CORSOrigins = splitCSV(o.corsOrigins)
			cfg, err := resolveConfig(g.configPath, cmd.Flags(), g.flags)
			if err != nil {
				return err
			}
			log := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, o, log)
		},
	}
	addSessionFlags(cmd, &g.flags)
	f := cmd.Flags()
	defAddr := config.DefaultAddr
	if v := os.Getenv("CLOVER_ADDR"); v != "" {
		defAddr = v
	}
	f.StringVar(&g.flags.Addr, "addr", defAddr, "HTTP listen address, e.g. :8080")
	f.Int64Var(&g.flags.MaxBodyBytes, "max-body-bytes", config.DefaultMaxBodyBytes, "Maximum JSON request body size")
	f.BoolVar(&g.flags.CORSEnabled, "cors-enabled", false, "Enable CORS")
	f.StringVar(&o.corsOrigins, "cors-origins", "", "Comma-separated allowed origins (default * when CORS is enabled)")
	f.Int64Var(&o.generateTimeout, "generate-timeout", 0, "Per-request generation timeout in seconds (0 disables)")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, o *serveOptions, log zerolog.Logger) error {
	st, err := buildStack(cfg, nil, log, nil)
	if err != nil {
		return err
	}
	if cfg.ModelPath != "" {
		resp, err := st.svc.Load(ctx, loadRequestFor(cfg.ModelPath))
		if err != nil {
			// Keep serving; /load can still bring a model in.
			log.Error().Err(err).Str("model", cfg.ModelPath).Msg("startup model load failed")
		} else {
			log.Info().Str("architecture", resp.Architecture).Str("path", resp.Path).Msg("startup model loaded")
		}
	}

	httpLog := log.With().Str("component", "http").Logger()
	httpapi.SetLogger(httpLog)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetGenerateTimeoutSeconds(o.generateTimeout)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(st.svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Msg("clover listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = st.Close(context.Background())
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	st.svc.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return st.Close(shutdownCtx)
}
