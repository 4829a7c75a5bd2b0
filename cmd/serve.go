package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/drivetune/internal/server"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 5 * time.Second

// Serve runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if host := cmd.String("host"); host != "" {
		r.config.Server.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		r.config.Server.Port = port
	}

	handler, err := r.handler(ctx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := r.config.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("starting server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	r.writePlain("→ Listening on http://%s\n", addr)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	r.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// handler wires the API and auth endpoints behind the middleware stack.
func (r *Runner) handler(ctx context.Context) (http.Handler, error) {
	pipe, err := r.pipeline(ctx)
	if err != nil {
		return nil, err
	}
	lyricsSrc, err := r.lyricsService()
	if err != nil {
		return nil, err
	}

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger), server.Recover(r.logger), server.CORS())

	api := server.NewAPI(server.APIDeps{
		Resolver: pipe.resolver,
		Streamer: pipe.proxy,
		Files:    r.fileStore(),
		Lyrics:   lyricsSrc,
		Logger:   r.logger,
	})
	api.Register(router)

	callback := server.CallbackPath(r.config.Credentials.Google.RedirectURI)
	router.Handler(server.NewAuthHandler(r.credentials(), callback, r.logger))

	return router, nil
}
