// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sponsorkit/sponsorkit/internal/authflow"
	"github.com/sponsorkit/sponsorkit/internal/resolver"
	"github.com/sponsorkit/sponsorkit/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync [SPONSORABLE]...",
	Short: "Fetch and persist signed sponsor manifests",
	Long: `Sync runs the sponsorship protocol for the given sponsorable accounts.
With no arguments, candidate accounts are discovered from the sponsorships,
organizations and contributions of the authenticated user.`,
	Example: `  # Sync a single sponsorable account
  sponsorkit sync acme

  # Discover and sync all candidate accounts
  sponsorkit sync
`,
	RunE: syncCmdRun,
}

type syncFlags struct {
	interactive bool
}

var syncArgs syncFlags

func init() {
	syncCmd.Flags().BoolVar(&syncArgs.interactive, "interactive", true,
		"allow interactive device flow authentication when no cached credential works")
	rootCmd.AddCommand(syncCmd)
}

func syncCmdRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	store, err := newManifestStore()
	if err != nil {
		return err
	}

	accounts := args
	if len(accounts) == 0 {
		accounts, err = discoverAccounts(ctx)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			rootCmd.Println("✔ no sponsorable accounts discovered")
			return nil
		}
	}

	s := syncer.New(store, func(ctx context.Context, clientID string, interactive bool) (*authflow.Session, error) {
		auth, err := newAuthenticator(clientID)
		if err != nil {
			return nil, err
		}
		return auth.Authenticate(ctx, interactive)
	})
	s.Interactive = syncArgs.interactive

	results := s.SyncAll(ctx, accounts)

	worst := exitOK
	for _, res := range results {
		switch res.Outcome {
		case syncer.OutcomeSynced:
			rootCmd.Printf("✔ %s: synced as %s\n", res.Account, res.Types.String())
		case syncer.OutcomeNotSupported:
			rootCmd.Printf("► %s: does not support the protocol\n", res.Account)
		case syncer.OutcomeNotSponsoring:
			rootCmd.Printf("► %s: not sponsoring\n", res.Account)
		default:
			rootCmd.PrintErrf("✗ %s: %s", res.Account, res.Outcome.String())
			if res.Err != nil {
				rootCmd.PrintErrf(" (%v)", res.Err)
			}
			rootCmd.PrintErrln()
		}
		if code := outcomeExitCode(res.Outcome); code > worst {
			worst = code
		}
	}

	if worst != exitOK {
		return exitWith(worst, fmt.Errorf("sync finished with failures"))
	}
	return nil
}

// discoverAccounts enumerates candidate sponsorables for the
// authenticated user. Discovery needs an ambient credential, it never
// starts a device flow by itself.
func discoverAccounts(ctx context.Context) ([]string, error) {
	env := authflow.HostEnvironment{}
	token := env.CachedToken(authflow.DefaultHost)
	if token == "" {
		return nil, exitWith(exitMissingCredentials,
			fmt.Errorf("no cached credentials for discovery, pass the sponsorable accounts explicitly"))
	}

	graph := resolver.NewGitHubGraph(ctx, token)
	login, err := graph.AuthenticatedLogin(ctx)
	if err != nil {
		return nil, err
	}

	return syncer.NewDiscoverer(graph).Discover(ctx, login)
}
