// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sponsorkit/sponsorkit/internal/authflow"
	"github.com/sponsorkit/sponsorkit/internal/syncer"
)

var VERSION = "0.0.0-dev.0"

var rootCmd = &cobra.Command{
	Use:               "sponsorkit",
	Version:           VERSION,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	Long: `Command line tool for the sponsorship trust protocol.
Publishes sponsorable manifests, syncs signed sponsor manifests
from issuers and verifies them locally.`,
}

type rootFlags struct {
	timeout time.Duration
}

var rootArgs = rootFlags{
	timeout: time.Minute,
}

// Exit codes let scripts discriminate "not sponsoring" from
// infrastructure errors.
const (
	exitOK                 = 0
	exitGenericError       = 1
	exitNotSponsoring      = 2
	exitNotSupported       = 3
	exitMissingCredentials = 4
	exitSyncFailure        = 5
	exitAccountMismatch    = 6
)

// codedError carries a process exit code alongside the error.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &codedError{code: code, err: err}
}

// outcomeExitCode maps a sync outcome to the process exit code.
func outcomeExitCode(outcome syncer.Outcome) int {
	switch outcome {
	case syncer.OutcomeSynced:
		return exitOK
	case syncer.OutcomeNotSponsoring:
		return exitNotSponsoring
	case syncer.OutcomeNotSupported:
		return exitNotSupported
	case syncer.OutcomeMissingCredentials:
		return exitMissingCredentials
	case syncer.OutcomeAccountMismatch:
		return exitAccountMismatch
	default:
		return exitSyncFailure
	}
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", rootArgs.timeout,
		"The length of time to wait before giving up on the current operation.")
	rootCmd.SetOut(os.Stdout)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrf("✗ %v\n", err)
		var coded *codedError
		if errors.As(err, &coded) {
			os.Exit(coded.code)
		}
		os.Exit(exitGenericError)
	}
}

// commandContext returns the timeout-bounded context for a command run.
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), rootArgs.timeout)
}

// newManifestStore opens the per-user manifest store.
func newManifestStore() (*syncer.ManifestStore, error) {
	return syncer.NewManifestStore()
}

// newAuthenticator wires the credential store and local environment
// for the given OAuth client ID.
func newAuthenticator(clientID string) (*authflow.Authenticator, error) {
	store, err := authflow.NewStore()
	if err != nil {
		return nil, err
	}
	return &authflow.Authenticator{
		ClientID: clientID,
		Store:    store,
		Env:      authflow.HostEnvironment{},
		Flow: &authflow.DeviceFlow{
			ClientID: clientID,
			Scopes:   []string{"read:user", "user:email", "read:org"},
			Prompt: func(userCode, verificationURI string) {
				rootCmd.Printf("! open %s and enter the code %s\n", verificationURI, userCode)
			},
		},
	}, nil
}
