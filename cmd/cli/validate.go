// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sponsorkit/sponsorkit/internal/skm"
)

var validateCmd = &cobra.Command{
	Use:   "validate [SPONSORABLE]...",
	Short: "Re-verify the persisted sponsor manifests",
	Long: `Validate checks the signature and expiry of the locally persisted
sponsor manifests against the public keys currently published by the
sponsorable accounts. With no arguments, all stored manifests are checked.`,
	RunE: validateCmdRun,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateCmdRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	store, err := newManifestStore()
	if err != nil {
		return err
	}

	accounts := args
	if len(accounts) == 0 {
		accounts, err = store.List()
		if err != nil {
			return err
		}
	}
	if len(accounts) == 0 {
		return fmt.Errorf("no manifests stored, run sync first")
	}

	failed := false
	for _, account := range accounts {
		status, claims, err := validateStored(ctx, store, account)
		if err != nil {
			rootCmd.PrintErrf("✗ %s: %v\n", account, err)
			failed = true
			continue
		}
		if status != skm.StatusValid {
			rootCmd.PrintErrf("✗ %s: manifest is %s\n", account, status)
			failed = true
			continue
		}
		rootCmd.Printf("✔ %s: valid manifest for %s with roles %s\n",
			account, claims.Subject, claims.SponsorTypes().String())
	}

	if failed {
		return exitWith(exitGenericError, fmt.Errorf("validation finished with failures"))
	}
	return nil
}

// validateStored checks one persisted manifest against the public key
// currently published by the sponsorable account.
func validateStored(ctx context.Context, store manifestLoader, account string) (skm.ManifestStatus, *skm.SponsorClaims, error) {
	token, err := store.Load(account)
	if err != nil {
		return skm.StatusUnknown, nil, err
	}

	manifest, err := skm.FetchSponsorableManifest(ctx, account)
	if err != nil {
		return skm.StatusUnknown, nil, err
	}
	if err := manifest.Validate(account); err != nil {
		return skm.StatusUnknown, nil, err
	}

	status, claims := skm.ValidateSponsorManifest(token, manifest.PublicKey, true)
	return status, claims, nil
}

// manifestLoader is the slice of the manifest store used by read-only
// commands.
type manifestLoader interface {
	Load(account string) (string, error)
}
