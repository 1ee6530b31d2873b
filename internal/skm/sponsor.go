// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package skm

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// StringList is a claim value that may be encoded as a single JSON
// string or as an array of strings.
type StringList []string

// UnmarshalJSON accepts both a string and an array of strings.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = StringList{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// SponsorClaims is the typed claims bundle of a signed sponsor manifest,
// following RFC 7519 with protocol-specific custom claims.
// RFC7519: https://datatracker.ietf.org/doc/rfc7519
type SponsorClaims struct {
	// ID is the unique identifier UUID v6 for the manifest
	// (RFC 7519 JTI claim).
	// +required
	ID string `json:"jti"`

	// Issuer is the identifier of the service that signed the manifest
	// (RFC 7519 ISS claim).
	// +required
	Issuer string `json:"iss"`

	// Subject is the sponsor's stable account identifier
	// (RFC 7519 SUB claim).
	// +required
	Subject string `json:"sub"`

	// Audience is the intended audience for the manifest
	// (RFC 7519 AUD claim).
	// +required
	Audience StringList `json:"aud"`

	// Expiry is the expiration time in Unix timestamp format
	// (RFC 7519 EXP claim).
	// +required
	Expiry int64 `json:"exp"`

	// IssuedAt is the time the manifest was signed in Unix timestamp format
	// (RFC 7519 IAT claim).
	// +required
	IssuedAt int64 `json:"iat"`

	// ClientID is the OAuth client ID of the sponsorable's GitHub App.
	// +required
	ClientID string `json:"client_id"`

	// Roles holds zero or more sponsorship roles from the closed set
	// {team, org, user, contrib}. A manifest with no role is not a sponsor.
	// +optional
	Roles StringList `json:"role,omitempty"`

	// Emails holds zero or more verified emails of the sponsor,
	// used for out-of-band matching.
	// +optional
	Emails StringList `json:"email,omitempty"`
}

// GetExpirationTime implements the jwt.Claims interface.
func (c SponsorClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.Expiry == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.Expiry, 0)), nil
}

// GetIssuedAt implements the jwt.Claims interface.
func (c SponsorClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	if c.IssuedAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

// GetNotBefore implements the jwt.Claims interface.
func (c SponsorClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements the jwt.Claims interface.
func (c SponsorClaims) GetIssuer() (string, error) {
	return c.Issuer, nil
}

// GetSubject implements the jwt.Claims interface.
func (c SponsorClaims) GetSubject() (string, error) {
	return c.Subject, nil
}

// GetAudience implements the jwt.Claims interface.
func (c SponsorClaims) GetAudience() (jwt.ClaimStrings, error) {
	return jwt.ClaimStrings(c.Audience), nil
}

// NewSponsorClaims creates the claims bundle for a fresh sponsor manifest.
// It generates a unique, chronologically sortable ID using UUID v6.
func NewSponsorClaims(issuer, subject, clientID string, audience []string, types SponsorTypes, emails []string, expiry time.Time) (*SponsorClaims, error) {
	if issuer == "" {
		return nil, InvalidManifestError(ErrClaimIssuerEmpty)
	}
	if subject == "" {
		return nil, InvalidManifestError(ErrClaimSubjectEmpty)
	}
	if len(audience) == 0 {
		return nil, InvalidManifestError(ErrClaimAudienceEmpty)
	}
	if expiry.IsZero() {
		return nil, InvalidManifestError(ErrClaimExpiryZero)
	}

	jti, err := uuid.NewV6()
	if err != nil {
		return nil, fmt.Errorf("failed to generate manifest ID: %w", err)
	}

	return &SponsorClaims{
		ID:       jti.String(),
		Issuer:   issuer,
		Subject:  subject,
		Audience: audience,
		Expiry:   expiry.Unix(),
		IssuedAt: time.Now().Unix(),
		ClientID: clientID,
		Roles:    StringList(types.Roles()),
		Emails:   emails,
	}, nil
}

// SponsorTypes returns the bitset for the role claims.
func (c *SponsorClaims) SponsorTypes() SponsorTypes {
	return SponsorTypesFromRoles(c.Roles)
}

// IsSponsor reports whether the manifest grants any sponsorship role.
// A manifest with no role claim is not a sponsor.
func (c *SponsorClaims) IsSponsor() bool {
	return c.SponsorTypes().IsSponsor()
}

// IsExpired checks if the manifest has expired based on the current time.
// It allows for a leeway period to account for clock skew.
func (c *SponsorClaims) IsExpired(leeway time.Duration) bool {
	return time.Now().Add(-leeway).After(time.Unix(c.Expiry, 0))
}

// ExpiresAt returns the expiration timestamp for a manifest issued now.
// The policy is end of the current monthly sponsorship period, but never
// past the issuer's configured validity window.
func ExpiresAt(now time.Time, window time.Duration) time.Time {
	rollover := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	if limit := now.Add(window); rollover.After(limit) {
		return limit
	}
	return rollover
}

// SignSponsorManifest produces a signed JWT from the claims using the
// issuer's private key. The returned token carries the KID header set
// to the key's ID.
func SignSponsorManifest(claims *SponsorClaims, privateKey *RSAPrivateKey) (string, error) {
	if privateKey == nil || privateKey.Key == nil {
		return "", ErrPrivateKeyRequired
	}
	if claims.Expiry == 0 {
		return "", InvalidManifestError(ErrClaimExpiryZero)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = privateKey.KeyID

	signed, err := token.SignedString(privateKey.Key)
	if err != nil {
		return "", fmt.Errorf("failed to sign sponsor manifest: %w", err)
	}
	return signed, nil
}

// ValidateSponsorManifest verifies the token signature with the given
// public key and returns the manifest status together with the decoded
// claims. The signature is verified first. On signature failure the
// status is StatusInvalid with best-effort decoded claims, useful for
// diagnostics even when untrusted. On success, expiration is checked
// only when requireNotExpired is set: a valid-but-expired manifest
// yields StatusExpired with the decoded claims so a consumer can tell
// how it would have qualified even though the grant lapsed.
func ValidateSponsorManifest(token string, publicKey *rsa.PublicKey, requireNotExpired bool) (ManifestStatus, *SponsorClaims) {
	if publicKey == nil {
		return StatusInvalid, decodeUnverified(token)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := &SponsorClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return StatusUnknown, nil
		}
		return StatusInvalid, decodeUnverified(token)
	}
	if !parsed.Valid {
		return StatusInvalid, decodeUnverified(token)
	}

	if requireNotExpired && claims.IsExpired(0) {
		return StatusExpired, claims
	}

	return StatusValid, claims
}

// decodeUnverified decodes claims without signature verification,
// returning nil when the token is structurally invalid.
func decodeUnverified(token string) *SponsorClaims {
	claims := &SponsorClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}
