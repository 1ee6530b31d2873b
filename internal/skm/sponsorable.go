// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package skm

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SponsorableManifest is the public, self-describing manifest published
// by a sponsorable account. It tells consumers how to reach the issuer,
// which audiences are accepted, which OAuth app to authenticate against
// and which public key verifies sponsor manifests.
//
// A manifest created with NewSponsorableManifest holds the private key
// in memory and is signing-capable. The private key is never serialized,
// the emitted claims are always derived from the public half only.
type SponsorableManifest struct {
	// Issuer is the absolute URI of the signing and verification service.
	Issuer string

	// Audience holds one or more absolute URIs identifying the accepted
	// sponsorship platforms. At least one audience path segment must
	// equal the sponsorable account name.
	Audience []string

	// ClientID is the OAuth client ID of the sponsorable's GitHub App.
	ClientID string

	// PublicKey verifies sponsor manifests issued under this sponsorable.
	PublicKey *rsa.PublicKey

	// KeyID is the identifier of the verification key.
	KeyID string

	privateKey *rsa.PrivateKey
}

// NewSponsorableManifest generates a fresh RSA-3072 key pair and wraps it
// in a signing-capable manifest for the given issuer, audiences and
// OAuth client ID.
func NewSponsorableManifest(issuer string, audience []string, clientID string) (*SponsorableManifest, error) {
	if issuer == "" {
		return nil, InvalidManifestError(ErrClaimIssuerEmpty)
	}
	if len(audience) == 0 {
		return nil, InvalidManifestError(ErrClaimAudienceEmpty)
	}
	if clientID == "" {
		return nil, InvalidManifestError(ErrClaimClientIDMissing)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	kid, err := uuid.NewV6()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key ID: %w", err)
	}

	return &SponsorableManifest{
		Issuer:     issuer,
		Audience:   audience,
		ClientID:   clientID,
		PublicKey:  &privateKey.PublicKey,
		KeyID:      kid.String(),
		privateKey: privateKey,
	}, nil
}

// SponsorableManifestWithKey wraps an existing signing key in a
// signing-capable manifest. Used by the issuer service to load its
// key set from disk at startup.
func SponsorableManifestWithKey(issuer string, audience []string, clientID string, key *RSAPrivateKey) (*SponsorableManifest, error) {
	if key == nil || key.Key == nil {
		return nil, ErrPrivateKeyRequired
	}

	m := &SponsorableManifest{
		Issuer:     issuer,
		Audience:   audience,
		ClientID:   clientID,
		PublicKey:  &key.Key.PublicKey,
		KeyID:      key.KeyID,
		privateKey: key.Key,
	}
	if m.Issuer == "" {
		m.Issuer = key.Issuer
	}
	return m, nil
}

// CanSign reports whether the manifest holds a private key.
func (m *SponsorableManifest) CanSign() bool {
	return m.privateKey != nil
}

// PrivateKey returns the signing key envelope, or nil for a
// public-only manifest.
func (m *SponsorableManifest) PrivateKey() *RSAPrivateKey {
	if m.privateKey == nil {
		return nil
	}
	return &RSAPrivateKey{
		Key:    m.privateKey,
		KeyID:  m.KeyID,
		Issuer: m.Issuer,
	}
}

// KeySets returns the public and private JWK sets for the manifest key.
// It fails for public-only manifests.
func (m *SponsorableManifest) KeySets() (*RSAKeySet, *RSAKeySet, error) {
	if m.privateKey == nil {
		return nil, nil, ErrPrivateKeyRequired
	}

	publicKeySet := NewPublicKeySet()
	if err := publicKeySet.AddPublicKey(m.PublicKey, m.KeyID); err != nil {
		return nil, nil, err
	}

	privateKeySet := NewPrivateKeySet(m.Issuer)
	if err := privateKeySet.AddPrivateKey(m.privateKey, m.KeyID); err != nil {
		return nil, nil, err
	}

	return publicKeySet, privateKeySet, nil
}

// JWK returns the verification public key as a JSON Web Key.
func (m *SponsorableManifest) JWK() jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       m.PublicKey,
		KeyID:     m.KeyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}
}

// ToToken serializes the manifest claims into a token. Signing is
// automatic when the manifest holds a private key, otherwise an unsigned
// token is emitted. The public key claims are always derived from the
// public parameters only.
func (m *SponsorableManifest) ToToken() (string, error) {
	if m.PublicKey == nil {
		return "", ErrPublicKeyRequired
	}

	pubDER, err := x509.MarshalPKIXPublicKey(m.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	jwkData, err := json.Marshal(m.JWK())
	if err != nil {
		return "", fmt.Errorf("failed to marshal JWK: %w", err)
	}

	claims := jwt.MapClaims{
		"iss":       m.Issuer,
		"aud":       m.Audience,
		"client_id": m.ClientID,
		"pub":       base64.StdEncoding.EncodeToString(pubDER),
		// The JWK is carried as a JSON-string-typed claim, not nested JSON.
		"sub_jwk": string(jwkData),
	}

	if m.privateKey == nil {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
		return token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = m.KeyID
	signed, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign manifest: %w", err)
	}
	return signed, nil
}

// SponsorableManifestFromToken parses a public manifest token without
// requiring a verified signature. The sponsorable manifest is
// self-describing and fetched over a trusted channel, integrity rests on
// transport trust. It fails by naming the first missing required claim.
func SponsorableManifestFromToken(token string) (*SponsorableManifest, error) {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrParseClaims
	}

	clientID, _ := claims["client_id"].(string)
	if clientID == "" {
		return nil, InvalidManifestError(ErrClaimClientIDMissing)
	}

	pubClaim, _ := claims["pub"].(string)
	if pubClaim == "" {
		return nil, InvalidManifestError(ErrClaimPublicKeyMissing)
	}

	jwkClaim, _ := claims["sub_jwk"].(string)
	if jwkClaim == "" {
		return nil, InvalidManifestError(ErrClaimJWKMissing)
	}

	pubDER, err := base64.StdEncoding.DecodeString(pubClaim)
	if err != nil {
		return nil, InvalidManifestError(fmt.Errorf("pub claim is not base64: %w", err))
	}
	parsedKey, err := x509.ParsePKIXPublicKey(pubDER)
	if err != nil {
		return nil, InvalidManifestError(fmt.Errorf("pub claim is not a DER public key: %w", err))
	}
	publicKey, ok := parsedKey.(*rsa.PublicKey)
	if !ok {
		return nil, InvalidManifestError(fmt.Errorf("pub claim is not an RSA public key"))
	}

	var jwk jose.JSONWebKey
	if err := json.Unmarshal([]byte(jwkClaim), &jwk); err != nil {
		return nil, InvalidManifestError(fmt.Errorf("sub_jwk claim is not a JWK: %w", err))
	}

	issuer, _ := claims["iss"].(string)

	return &SponsorableManifest{
		Issuer:    issuer,
		Audience:  audienceClaim(claims["aud"]),
		ClientID:  clientID,
		PublicKey: publicKey,
		KeyID:     jwk.KeyID,
	}, nil
}

// Validate checks the audience invariant: at least one audience URI's
// last path segment must equal the sponsorable account name.
// A mismatch indicates misconfiguration or a spoofing attempt.
func (m *SponsorableManifest) Validate(account string) error {
	for _, aud := range m.Audience {
		u, err := url.Parse(aud)
		if err != nil {
			continue
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segments) > 0 && strings.EqualFold(segments[len(segments)-1], account) {
			return nil
		}
	}
	return fmt.Errorf("%w: account %s", ErrAccountMismatch, account)
}

// audienceClaim normalizes the aud claim, which may be a single
// string or an array of strings.
func audienceClaim(v any) []string {
	switch aud := v.(type) {
	case string:
		if aud == "" {
			return nil
		}
		return []string{aud}
	case []any:
		out := make([]string, 0, len(aud))
		for _, item := range aud {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return aud
	}
	return nil
}
