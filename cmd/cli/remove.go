// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sponsorkit/sponsorkit/internal/authflow"
	"github.com/sponsorkit/sponsorkit/internal/skm"
	"github.com/sponsorkit/sponsorkit/internal/syncer"
)

var removeCmd = &cobra.Command{
	Use:   "remove [SPONSORABLE]...",
	Short: "Delete persisted sponsor manifests",
	Long: `Remove deletes the locally persisted sponsor manifests and notifies
the issuers on a best-effort basis. A failed notification never blocks
the local removal.`,
	RunE: removeCmdRun,
}

type removeFlags struct {
	all bool
}

var removeArgs removeFlags

func init() {
	removeCmd.Flags().BoolVar(&removeArgs.all, "all", false,
		"remove the manifests of all sponsorable accounts")
	rootCmd.AddCommand(removeCmd)
}

func removeCmdRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	store, err := newManifestStore()
	if err != nil {
		return err
	}

	accounts := args
	if removeArgs.all {
		accounts, err = store.List()
		if err != nil {
			return err
		}
	}
	if len(accounts) == 0 {
		return fmt.Errorf("specify the sponsorable accounts or use --all")
	}

	for _, account := range accounts {
		notifyIssuer(ctx, store, account)

		if err := store.Remove(account); err != nil {
			return err
		}
		rootCmd.Printf("✔ %s: manifest removed\n", account)
	}
	return nil
}

// notifyIssuer sends a best-effort DELETE /me to the issuer of the
// stored manifest before it is deleted locally.
func notifyIssuer(ctx context.Context, store *syncer.ManifestStore, account string) {
	token, err := store.Load(account)
	if err != nil {
		return
	}
	// The issuer and client ID come from the decoded claims, signature
	// verification is not needed to route the notification.
	_, claims := skm.ValidateSponsorManifest(token, nil, false)
	if claims == nil || claims.Issuer == "" {
		return
	}

	auth, err := newAuthenticator(claims.ClientID)
	if err != nil {
		return
	}
	session, err := auth.Authenticate(ctx, false)
	if err != nil {
		return
	}

	url := strings.TrimSuffix(claims.Issuer, "/") + "/me"
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+session.Token)
	if resp, err := http.DefaultClient.Do(req); err == nil {
		_ = resp.Body.Close()
	}

	// Drop the cached credential alongside the manifest.
	if auth.Store != nil {
		_ = auth.Store.Delete(authflow.DefaultHost, claims.ClientID)
	}
}
