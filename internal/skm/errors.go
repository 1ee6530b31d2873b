// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package skm

import (
	"errors"
	"fmt"
)

// ErrParseToken is returned when a token cannot be parsed.
var ErrParseToken = errors.New("failed to parse signed token")

// ErrParseClaims is returned when claims cannot be extracted from the token.
var ErrParseClaims = errors.New("failed to parse claims")

// ErrPublicKeyRequired is returned when a public key is required but not provided.
var ErrPublicKeyRequired = errors.New("public key is required")

// ErrPrivateKeyRequired is returned when a private key is required but not provided.
var ErrPrivateKeyRequired = errors.New("private key is required")

// ErrClaimIssuerEmpty is returned when the issuer claim is empty.
var ErrClaimIssuerEmpty = errors.New("issuer (iss) cannot be empty")

// ErrClaimAudienceEmpty is returned when the audience claim is empty.
var ErrClaimAudienceEmpty = errors.New("audience (aud) cannot be empty")

// ErrClaimSubjectEmpty is returned when the subject claim is empty.
var ErrClaimSubjectEmpty = errors.New("subject (sub) cannot be empty")

// ErrClaimClientIDMissing is returned when the client_id claim is missing.
var ErrClaimClientIDMissing = errors.New("client_id claim is missing")

// ErrClaimPublicKeyMissing is returned when the pub claim is missing.
var ErrClaimPublicKeyMissing = errors.New("pub claim is missing")

// ErrClaimJWKMissing is returned when the sub_jwk claim is missing.
var ErrClaimJWKMissing = errors.New("sub_jwk claim is missing")

// ErrClaimExpiryZero is returned when the expiry claim is zero.
var ErrClaimExpiryZero = errors.New("expiry (exp) cannot be zero")

// ErrAccountMismatch is returned when no audience URI matches the
// sponsorable account name.
var ErrAccountMismatch = errors.New("no audience matches the sponsorable account")

// ErrNotFound is returned when a remote document does not exist.
var ErrNotFound = errors.New("document not found")

// InvalidManifestError wraps an error with the "invalid manifest" prefix.
func InvalidManifestError(err error) error {
	return fmt.Errorf("invalid manifest: %w", err)
}
