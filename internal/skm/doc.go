// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

// Package skm (Sponsorship Key Management) provides the cryptographic
// primitives and manifest codecs for the sponsorship trust protocol.
//
// The skm package is built on industry-standard cryptographic primitives:
//
//   - RSA-3072 digital signatures (RS256) compliant with FIPS 186-5
//   - SHA-256 hashing for offline sponsor email checks
//   - JSON Web Key (JWK) format for interoperable key distribution
//   - JSON Web Token (JWT) format following RFC 7519 for standardized claims
//   - UUID v6 for unique, chronologically sortable token identifiers
//
// Two manifest kinds are supported:
//
//   - The sponsorable manifest: a public, self-describing token published
//     by a sponsorable account. It carries the issuer URL, the accepted
//     audiences, the OAuth client ID and the verification public key, both
//     as a raw base64 claim and as a JWK claim.
//   - The sponsor manifest: a short-lived signed claims bundle attesting
//     that a given account is sponsoring the sponsorable, and why.
//
// The package also provides fetching of published sponsorable manifests
// from their well-known location with retries and HTTPS enforcement.
//
// The skm package is designed to serve both the sponsor command-line
// interface and the issuer service, enabling verifiable sponsorship
// attestation without sharing private data beyond the signed claims.
package skm
