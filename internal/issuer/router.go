// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

// Package issuer implements the HTTP service that publishes a
// sponsorable manifest and signs sponsor manifests on demand for
// authenticated GitHub users.
package issuer

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-logr/logr"

	"github.com/sponsorkit/sponsorkit/internal/resolver"
	"github.com/sponsorkit/sponsorkit/internal/skm"
)

// Graph is the slice of the GitHub graph the issuer consults when
// signing a manifest on behalf of the calling user.
type Graph interface {
	resolver.Graph

	// AuthenticatedLogin returns the login the bearer token
	// authenticates as.
	AuthenticatedLogin(ctx context.Context) (string, error)
}

// GraphFactory builds a graph client acting as the bearer of the given
// token.
type GraphFactory func(r *http.Request, token string) (Graph, error)

// Router provides the issuer HTTP handlers.
type Router struct {
	mux      *http.ServeMux
	manifest *skm.SponsorableManifest
	account  string
	window   time.Duration
	graphFor GraphFactory
	metrics  *Metrics
	log      logr.Logger
}

// NewRouter creates a router for a signing-capable manifest. The
// account is the sponsorable login the issuer signs for, and window
// caps the validity of issued manifests.
func NewRouter(mux *http.ServeMux, manifest *skm.SponsorableManifest, account string,
	window time.Duration, graphFor GraphFactory, metrics *Metrics, log logr.Logger) *Router {
	return &Router{
		mux:      mux,
		manifest: manifest,
		account:  account,
		window:   window,
		graphFor: graphFor,
		metrics:  metrics,
		log:      log,
	}
}

// RegisterRoutes registers the issuer endpoints on the mux.
func (r *Router) RegisterRoutes() {
	r.mux.HandleFunc("GET /jwt", r.ManifestHandler)
	r.mux.HandleFunc("GET /jwk", r.KeyHandler)
	r.mux.HandleFunc("GET /me", r.SignHandler)
	r.mux.HandleFunc("DELETE /me", r.RemoveHandler)
	r.mux.HandleFunc("GET /healthz", r.HealthHandler)
	r.mux.Handle("GET /metrics", r.metrics.Handler())
}

// RegisterMiddleware wraps the mux with the logging middleware.
func (r *Router) RegisterMiddleware() http.Handler {
	return LoggingMiddleware(r.log, r.metrics, r.mux)
}

// ManifestHandler serves the current public sponsorable manifest as a
// token.
func (r *Router) ManifestHandler(w http.ResponseWriter, req *http.Request) {
	token, err := r.manifest.ToToken()
	if err != nil {
		r.log.Error(err, "failed to serialize manifest")
		http.Error(w, "failed to serialize manifest", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", string(skm.ContentTypeToken))
	_, _ = w.Write([]byte(token))
}

// KeyHandler serves the verification key as a JSON Web Key Set.
func (r *Router) KeyHandler(w http.ResponseWriter, req *http.Request) {
	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{r.manifest.JWK()}}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(set); err != nil {
		r.log.Error(err, "failed to encode key set")
	}
}

// SignHandler resolves the caller's sponsorship and returns a freshly
// signed sponsor manifest, or 404 when the caller is not a sponsor.
func (r *Router) SignHandler(w http.ResponseWriter, req *http.Request) {
	token := bearerToken(req)
	if token == "" {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}

	graph, err := r.graphFor(req, token)
	if err != nil {
		r.log.Error(err, "failed to build graph client")
		http.Error(w, "failed to reach backend", http.StatusBadGateway)
		return
	}

	ctx := req.Context()
	login, err := graph.AuthenticatedLogin(ctx)
	if err != nil {
		http.Error(w, "invalid bearer token", http.StatusUnauthorized)
		return
	}

	start := time.Now()
	types, err := resolver.New(graph).Resolve(ctx, login, r.account)
	if err != nil {
		r.log.Error(err, "failed to resolve sponsorship", "login", login)
		http.Error(w, "failed to resolve sponsorship", http.StatusBadGateway)
		return
	}
	r.metrics.ResolveSeconds.Observe(time.Since(start).Seconds())

	if !types.IsSponsor() {
		http.Error(w, "not sponsoring", http.StatusNotFound)
		return
	}

	emails, err := graph.ListVerifiedEmails(ctx)
	if err != nil {
		r.log.Error(err, "failed to list verified emails", "login", login)
		http.Error(w, "failed to resolve sponsorship", http.StatusBadGateway)
		return
	}

	claims, err := skm.NewSponsorClaims(
		r.manifest.Issuer, login, r.manifest.ClientID,
		r.manifest.Audience, types, emails,
		skm.ExpiresAt(time.Now(), r.window),
	)
	if err != nil {
		r.log.Error(err, "failed to build claims", "login", login)
		http.Error(w, "failed to build manifest", http.StatusInternalServerError)
		return
	}

	signed, err := skm.SignSponsorManifest(claims, r.manifest.PrivateKey())
	if err != nil {
		r.log.Error(err, "failed to sign manifest", "login", login)
		http.Error(w, "failed to sign manifest", http.StatusInternalServerError)
		return
	}

	r.metrics.IssuedTotal.WithLabelValues(types.Primary().String()).Inc()
	r.log.Info("manifest issued", "login", login, "roles", types.String())

	w.Header().Set("Content-Type", string(skm.ContentTypeToken))
	_, _ = w.Write([]byte(signed))
}

// RemoveHandler acknowledges a sponsor removal request. No server-side
// state is persisted per user beyond event logs, so there is nothing
// to delete.
func (r *Router) RemoveHandler(w http.ResponseWriter, req *http.Request) {
	r.metrics.RemovalsTotal.Inc()
	r.log.Info("removal acknowledged")
	w.WriteHeader(http.StatusNoContent)
}

// HealthHandler reports liveness.
func (r *Router) HealthHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(req *http.Request) string {
	auth := req.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
