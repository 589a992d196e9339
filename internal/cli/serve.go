package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/trackfinder/internal/adapters/rest"
)

func newServeCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the track lookup API. Artifacts are loaded on the first request,
or before listening when server.warm_on_start is set. A failed warm-up is
logged and retried by the next request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				g.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, g)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides server.addr)")
	return cmd
}

// runServe blocks until ctx is canceled or the listener fails.
func runServe(ctx context.Context, g *globals) error {
	cfg, log := g.cfg, g.logger

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("serve: close", "error", err)
		}
	}()

	if cfg.Server.WarmOnStart {
		if err := a.svc.Warm(ctx); err != nil {
			log.Warn("serve: warm-up failed", "error", err)
		} else {
			log.Info("serve: artifacts loaded")
		}
	}

	handler := rest.NewHandler(a.svc, a.opener(cfg.Server.ServeArtifacts), rest.Options{
		RateLimit:     cfg.Server.RateLimit,
		Burst:         cfg.Server.RateBurst,
		AllowedOrigin: cfg.Server.AllowedOrigin,
	}, log)

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()
	log.Info("serve: listening", "addr", ln.Addr().String())

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		log.Info("serve: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("serve: shutdown: %w", err)
		}
		return <-serverErr
	}
}
