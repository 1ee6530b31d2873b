// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/sponsorkit/sponsorkit/internal/skm"
)

var initCmd = &cobra.Command{
	Use:   "init [ISSUER]",
	Short: "Generate a sponsorable manifest with a fresh RSA signing key pair",
	Example: `  # Generate the manifest and key sets in the current directory
  sponsorkit init https://sponsorlink.acme.dev \
    --audience https://github.com/sponsors/acme \
    --client-id Iv1.f00dc0ffee123456
`,
	Args: cobra.ExactArgs(1),
	RunE: initCmdRun,
}

type initFlags struct {
	audience  []string
	clientID  string
	outputDir string
}

var initArgs initFlags

func init() {
	initCmd.Flags().StringSliceVar(&initArgs.audience, "audience", nil,
		"accepted sponsorship platform URI, can be repeated (at least one is required)")
	initCmd.Flags().StringVar(&initArgs.clientID, "client-id", "",
		"OAuth client ID of the sponsorable's GitHub App")
	initCmd.Flags().StringVarP(&initArgs.outputDir, "output-dir", "o", ".",
		"path to output directory (defaults to current directory)")
	rootCmd.AddCommand(initCmd)
}

func initCmdRun(cmd *cobra.Command, args []string) error {
	issuer := args[0]

	if err := isDir(initArgs.outputDir); err != nil {
		return err
	}

	manifest, err := skm.NewSponsorableManifest(issuer, initArgs.audience, initArgs.clientID)
	if err != nil {
		return err
	}

	token, err := manifest.ToToken()
	if err != nil {
		return err
	}

	publicKeySet, privateKeySet, err := manifest.KeySets()
	if err != nil {
		return err
	}

	manifestPath := path.Join(initArgs.outputDir, skm.WellKnownPath)
	privateKeySetPath := path.Join(initArgs.outputDir, "sponsorlink-private.jwks")
	publicKeySetPath := path.Join(initArgs.outputDir, "sponsorlink-public.jwks")

	if err := privateKeySet.WriteFile(privateKeySetPath); err != nil {
		return fmt.Errorf("failed to write private key set: %w", err)
	}
	if err := publicKeySet.WriteFile(publicKeySetPath); err != nil {
		return fmt.Errorf("failed to write public key set: %w", err)
	}
	if err := os.WriteFile(manifestPath, []byte(token), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	rootCmd.Printf("✔ private key set written to: %s\n", privateKeySetPath)
	rootCmd.Printf("✔ public key set written to: %s\n", publicKeySetPath)
	rootCmd.Printf("✔ manifest written to: %s\n", manifestPath)
	rootCmd.Println("  publish the manifest in the community health repository to enable syncing")

	return nil
}

// isDir checks that the path exists and is a directory.
func isDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
