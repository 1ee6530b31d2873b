// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

// Package authflow acquires and caches GitHub credentials for the
// sponsor-side tooling. It implements the OAuth device authorization
// grant, a file-based credential store keyed by host and client ID,
// and discovery of ambient credentials from the local environment
// (the gh CLI token cache and the configured git identity).
package authflow
