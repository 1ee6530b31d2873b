// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package authflow

import (
	gogitconfig "github.com/go-git/go-git/v5/config"

	ghauth "github.com/cli/go-gh/v2/pkg/auth"
)

// LocalEnvironment exposes ambient identity and credentials found on
// the developer machine.
type LocalEnvironment interface {
	// ConfiguredEmail returns the email from the global git config, or
	// an empty string when none is set.
	ConfiguredEmail() string

	// CachedToken returns a token for the host from the gh CLI cache
	// or the standard environment variables, or an empty string.
	CachedToken(host string) string
}

// HostEnvironment reads the real local environment.
type HostEnvironment struct{}

func (HostEnvironment) ConfiguredEmail() string {
	cfg, err := gogitconfig.LoadConfig(gogitconfig.GlobalScope)
	if err != nil {
		return ""
	}
	return cfg.User.Email
}

func (HostEnvironment) CachedToken(host string) string {
	token, _ := ghauth.TokenForHost(host)
	return token
}
