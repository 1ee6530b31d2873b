// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package skm

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
)

// EmailHash returns the URL-safe digest published for offline sponsor
// checks. The digest binds the sponsor email and the sponsorable account
// to the sponsorable's public key, so a published blob reveals nothing
// beyond membership.
func EmailHash(email, account string, publicKey *rsa.PublicKey) (string, error) {
	if publicKey == nil {
		return "", ErrPublicKeyRequired
	}

	pubDER, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	h := sha256.New()
	h.Write(pubDER)
	h.Write([]byte(strings.ToLower(strings.TrimSpace(email))))
	h.Write([]byte(strings.ToLower(account)))

	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}
