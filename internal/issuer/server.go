// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package issuer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"

	"github.com/sponsorkit/sponsorkit/internal/resolver"
	"github.com/sponsorkit/sponsorkit/internal/skm"
)

// Options configures the issuer server.
type Options struct {
	Port    int
	Timeout time.Duration

	// Account is the sponsorable login this issuer signs for.
	Account string

	// Window caps the validity of issued manifests.
	Window time.Duration
}

// StartServer runs the issuer HTTP server until the context is
// cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, manifest *skm.SponsorableManifest, opts Options, log logr.Logger) error {
	if !manifest.CanSign() {
		return skm.ErrPrivateKeyRequired
	}

	metrics := NewMetrics()
	mux := http.NewServeMux()

	graphFor := func(req *http.Request, token string) (Graph, error) {
		return resolver.NewGitHubGraph(req.Context(), token), nil
	}

	router := NewRouter(mux, manifest, opts.Account, opts.Window, graphFor, metrics, log)
	router.RegisterRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      router.RegisterMiddleware(),
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
		IdleTimeout:  opts.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting issuer server", "port", opts.Port, "account", opts.Account)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutdown signal received, gracefully stopping issuer server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error(err, "error during graceful shutdown")
		return err
	}

	log.Info("issuer server stopped")
	return nil
}
