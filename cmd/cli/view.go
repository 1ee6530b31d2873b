// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var viewCmd = &cobra.Command{
	Use:   "view [SPONSORABLE]...",
	Short: "Display the persisted sponsor manifests",
	RunE:  viewCmdRun,
}

func init() {
	rootCmd.AddCommand(viewCmd)
}

func viewCmdRun(cmd *cobra.Command, args []string) error {
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
		rootCmd.Println("no manifests stored, run sync first")
		return nil
	}

	table := tablewriter.NewWriter(rootCmd.OutOrStdout())
	table.SetHeader([]string{"Sponsorable", "Status", "Sponsor", "Roles", "Expires"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, account := range accounts {
		status, claims, err := validateStored(ctx, store, account)
		if err != nil {
			table.Append([]string{account, "error", "", "", ""})
			continue
		}

		sponsor, roles, expires := "", "", ""
		if claims != nil {
			sponsor = claims.Subject
			roles = claims.SponsorTypes().String()
			expires = time.Unix(claims.Expiry, 0).UTC().Format(time.RFC3339)
		}
		table.Append([]string{account, status.String(), sponsor, roles, expires})
	}
	table.Render()

	return nil
}
