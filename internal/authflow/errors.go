// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package authflow

import "errors"

var (
	// ErrMissingCredentials is returned when no usable credential is
	// available and interactive authentication is not permitted.
	ErrMissingCredentials = errors.New("no credentials available")

	// ErrAccessDenied is returned when the user rejects the device
	// authorization request.
	ErrAccessDenied = errors.New("authorization request denied")

	// ErrFlowTimeout is returned when the device flow gives up before
	// the user completes the authorization.
	ErrFlowTimeout = errors.New("device authorization timed out")
)
