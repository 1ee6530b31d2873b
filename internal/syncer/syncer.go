// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

// Package syncer orchestrates the client-side sponsorship sync:
// discover sponsorable accounts, fetch their public manifests,
// authenticate, request signed sponsor manifests from the issuer,
// validate and persist them.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/sponsorkit/sponsorkit/internal/authflow"
	"github.com/sponsorkit/sponsorkit/internal/skm"
)

// Outcome classifies the result of syncing one sponsorable account.
type Outcome int

const (
	// OutcomeSynced means a signed manifest was validated and persisted.
	OutcomeSynced Outcome = iota

	// OutcomeNotSupported means the account publishes no manifest.
	OutcomeNotSupported

	// OutcomeAccountMismatch means the published manifest's audience
	// does not match the account, indicating misconfiguration or
	// spoofing.
	OutcomeAccountMismatch

	// OutcomeMissingCredentials means no usable token was available and
	// interaction was not permitted or was declined.
	OutcomeMissingCredentials

	// OutcomeNotSponsoring means the issuer confirmed the authenticated
	// user does not sponsor the account.
	OutcomeNotSponsoring

	// OutcomeSyncFailure covers any other network or protocol error.
	OutcomeSyncFailure
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSynced:
		return "synced"
	case OutcomeNotSupported:
		return "not supported"
	case OutcomeAccountMismatch:
		return "account mismatch"
	case OutcomeMissingCredentials:
		return "missing credentials"
	case OutcomeNotSponsoring:
		return "not sponsoring"
	default:
		return "sync failure"
	}
}

// Result is the outcome of syncing one sponsorable account.
type Result struct {
	Account string
	Outcome Outcome
	Status  skm.ManifestStatus
	Types   skm.SponsorTypes
	Err     error
}

// AuthenticateFunc acquires a validated session for the given OAuth
// client ID.
type AuthenticateFunc func(ctx context.Context, clientID string, interactive bool) (*authflow.Session, error)

// Syncer runs the sync protocol against one or more sponsorable
// accounts. Distinct accounts sync in parallel; the interactive
// authentication path is serialized by the device flow itself.
type Syncer struct {
	Store        *ManifestStore
	Authenticate AuthenticateFunc

	// Interactive permits the device flow when no cached credential
	// works.
	Interactive bool

	// Concurrency bounds parallel account syncs, defaults to 4.
	Concurrency int

	Log logr.Logger

	// FetchManifest and FetchSigned are replaced in tests.
	FetchManifest func(ctx context.Context, account string) (*skm.SponsorableManifest, error)
	FetchSigned   func(ctx context.Context, issuer, bearer string) (string, error)
}

// New creates a syncer over the given store and authenticator.
func New(store *ManifestStore, authenticate AuthenticateFunc) *Syncer {
	return &Syncer{
		Store:        store,
		Authenticate: authenticate,
		Log:          logr.Discard(),
		FetchManifest: func(ctx context.Context, account string) (*skm.SponsorableManifest, error) {
			return skm.FetchSponsorableManifest(ctx, account)
		},
		FetchSigned: fetchSignedManifest,
	}
}

// fetchSignedManifest requests a freshly signed sponsor manifest from
// the issuer's /me endpoint.
func fetchSignedManifest(ctx context.Context, issuer, bearer string) (string, error) {
	url := strings.TrimSuffix(issuer, "/") + "/me"
	body, err := skm.Fetch(ctx, url,
		skm.FetchOpt.WithContentType(skm.ContentTypeToken),
		skm.FetchOpt.WithBearerToken(bearer))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// SyncAll syncs the given accounts in parallel and returns one result
// per account, in input order.
func (s *Syncer) SyncAll(ctx context.Context, accounts []string) []Result {
	results := make([]Result, len(accounts))

	g, ctx := errgroup.WithContext(ctx)
	limit := s.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	for i, account := range accounts {
		g.Go(func() error {
			results[i] = s.Sync(ctx, account)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Sync runs the sync protocol for a single sponsorable account. The
// manifest file is written only after full signature validation, a
// failed sync never leaves partial state behind.
func (s *Syncer) Sync(ctx context.Context, account string) Result {
	res := Result{Account: account}

	manifest, err := s.FetchManifest(ctx, account)
	if err != nil {
		if errors.Is(err, skm.ErrNotFound) {
			res.Outcome = OutcomeNotSupported
			return res
		}
		res.Outcome = OutcomeSyncFailure
		res.Err = fmt.Errorf("failed to fetch manifest for %s: %w", account, err)
		return res
	}

	if err := manifest.Validate(account); err != nil {
		res.Outcome = OutcomeAccountMismatch
		res.Err = err
		return res
	}

	session, err := s.Authenticate(ctx, manifest.ClientID, s.Interactive)
	if err != nil {
		if errors.Is(err, authflow.ErrMissingCredentials) ||
			errors.Is(err, authflow.ErrAccessDenied) {
			res.Outcome = OutcomeMissingCredentials
			res.Err = err
			return res
		}
		res.Outcome = OutcomeSyncFailure
		res.Err = err
		return res
	}

	token, err := s.FetchSigned(ctx, manifest.Issuer, session.Token)
	if err != nil {
		if errors.Is(err, skm.ErrNotFound) {
			res.Outcome = OutcomeNotSponsoring
			return res
		}
		res.Outcome = OutcomeSyncFailure
		res.Err = fmt.Errorf("failed to fetch signed manifest for %s: %w", account, err)
		return res
	}

	// The only trusted verification key is the one embedded in the
	// published sponsorable manifest.
	status, claims := skm.ValidateSponsorManifest(token, manifest.PublicKey, true)
	res.Status = status
	if claims != nil {
		res.Types = claims.SponsorTypes()
	}
	if status != skm.StatusValid {
		res.Outcome = OutcomeSyncFailure
		res.Err = fmt.Errorf("issuer returned a manifest with status %s", status)
		return res
	}

	if err := s.Store.Save(account, token); err != nil {
		res.Outcome = OutcomeSyncFailure
		res.Err = err
		return res
	}

	s.Log.V(1).Info("manifest synced", "account", account, "roles", res.Types.String())
	res.Outcome = OutcomeSynced
	return res
}
