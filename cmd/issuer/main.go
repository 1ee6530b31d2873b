// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/zapr"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sponsorkit/sponsorkit/internal/issuer"
	"github.com/sponsorkit/sponsorkit/internal/skm"
)

func main() {
	var (
		port           int
		timeout        time.Duration
		account        string
		issuerURL      string
		audience       []string
		clientID       string
		window         time.Duration
		privateKeyPath string
		devel          bool
	)

	flag.IntVar(&port, "port", 8080, "The port to bind the HTTP server to.")
	flag.DurationVar(&timeout, "timeout", time.Minute, "The read, write and shutdown timeout of the HTTP server.")
	flag.StringVar(&account, "account", os.Getenv("ISSUER_ACCOUNT"), "The sponsorable account the issuer signs for.")
	flag.StringVar(&issuerURL, "issuer", os.Getenv("ISSUER_URL"), "The public URL of this issuer.")
	flag.StringSliceVar(&audience, "audience", nil, "Accepted sponsorship platform URI, can be repeated.")
	flag.StringVar(&clientID, "client-id", os.Getenv("ISSUER_CLIENT_ID"), "OAuth client ID of the sponsorable's GitHub App.")
	flag.DurationVar(&window, "window", 30*24*time.Hour, "Maximum validity of issued sponsor manifests.")
	flag.StringVar(&privateKeyPath, "private-key-set", os.Getenv("ISSUER_PRIVATE_KEY_SET"), "Path to the private key set in JWKS format.")
	flag.BoolVar(&devel, "devel", false, "Use the development logger config.")
	flag.Parse()

	zapCfg := zap.NewProductionConfig()
	if devel {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapLog, err := zapCfg.Build()
	if err != nil {
		os.Exit(1)
	}
	log := zapr.NewLogger(zapLog).WithName("issuer")

	if account == "" || clientID == "" || len(audience) == 0 || privateKeyPath == "" {
		log.Info("missing required flags: --account, --client-id, --audience and --private-key-set must be set")
		os.Exit(1)
	}

	data, err := os.ReadFile(privateKeyPath)
	if err != nil {
		log.Error(err, "failed to read private key set")
		os.Exit(1)
	}
	privateKey, err := skm.RSAPrivateKeyFromSet(data)
	if err != nil {
		log.Error(err, "failed to parse private key set")
		os.Exit(1)
	}

	manifest, err := skm.SponsorableManifestWithKey(issuerURL, audience, clientID, privateKey)
	if err != nil {
		log.Error(err, "failed to build manifest")
		os.Exit(1)
	}
	if err := manifest.Validate(account); err != nil {
		log.Error(err, "manifest audience does not match the account")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := issuer.Options{
		Port:    port,
		Timeout: timeout,
		Account: account,
		Window:  window,
	}
	if err := issuer.StartServer(ctx, manifest, opts, log); err != nil {
		log.Error(err, "issuer server failed")
		os.Exit(1)
	}
}
