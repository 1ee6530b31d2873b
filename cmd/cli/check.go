// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sponsorkit/sponsorkit/internal/authflow"
	"github.com/sponsorkit/sponsorkit/internal/skm"
)

var checkCmd = &cobra.Command{
	Use:   "check [EMAIL] [SPONSORABLE]",
	Short: "Check sponsorship of an email against the published digest list",
	Long: `Check computes the digest of the email bound to the sponsorable's
public key and looks it up in the digest list published next to the
manifest. No issuer round trip is involved, only CDN reads.`,
	Example: `  # Check whether the email belongs to a sponsor of acme
  sponsorkit check alice@corp.example acme

  # Check the email configured in the global git config
  sponsorkit check acme
`,
	Args: cobra.RangeArgs(1, 2),
	RunE: checkCmdRun,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func checkCmdRun(cmd *cobra.Command, args []string) error {
	var email, account string
	if len(args) == 2 {
		email, account = args[0], args[1]
	} else {
		account = args[0]
		email = authflow.HostEnvironment{}.ConfiguredEmail()
		if email == "" {
			return fmt.Errorf("no email configured in the global git config, pass it explicitly")
		}
	}

	ctx, cancel := commandContext()
	defer cancel()

	manifest, err := skm.FetchSponsorableManifest(ctx, account)
	if err != nil {
		if errors.Is(err, skm.ErrNotFound) {
			return exitWith(exitNotSupported,
				fmt.Errorf("%s does not support the protocol", account))
		}
		return err
	}
	if err := manifest.Validate(account); err != nil {
		return exitWith(exitAccountMismatch, err)
	}

	digest, err := skm.EmailHash(email, account, manifest.PublicKey)
	if err != nil {
		return err
	}

	body, err := skm.Fetch(ctx, skm.HashListURL(account))
	if err != nil {
		if errors.Is(err, skm.ErrNotFound) {
			return exitWith(exitNotSponsoring,
				fmt.Errorf("%s publishes no digest list", account))
		}
		return err
	}

	for _, line := range strings.Split(string(body), "\n") {
		if strings.TrimSpace(line) == digest {
			rootCmd.Printf("✔ %s is sponsoring %s\n", email, account)
			return nil
		}
	}

	return exitWith(exitNotSponsoring, fmt.Errorf("%s is not sponsoring %s", email, account))
}
