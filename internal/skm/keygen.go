// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package skm

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/google/uuid"
)

// rsaKeyBits is the modulus size for generated signing keys.
// 3072 bits provides 128-bit equivalent strength per NIST SP 800-57.
const rsaKeyBits = 3072

// NewSigningKeySet generates a new RSA-3072 key pair and returns
// a public RSAKeySet and a private RSAKeySet with the given issuer.
// The key ID is generated using a UUID v6.
func NewSigningKeySet(issuer string) (publicKeySet *RSAKeySet, privateKeySet *RSAKeySet, err error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	kid, err := uuid.NewV6()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key ID: %w", err)
	}

	publicKeySet = NewPublicKeySet()
	err = publicKeySet.AddPublicKey(&privateKey.PublicKey, kid.String())
	if err != nil {
		return nil, nil, err
	}

	privateKeySet = NewPrivateKeySet(issuer)
	err = privateKeySet.AddPrivateKey(privateKey, kid.String())
	if err != nil {
		return nil, nil, err
	}
	return
}
