// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package skm

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// WellKnownPath is the fixed relative path of the published sponsorable
// manifest inside the account's community health repository.
const WellKnownPath = "sponsorlink.jwt"

// ContentType represents the accepted content types of Fetch requests.
type ContentType string

const (
	// ContentTypeKeySet represents the JSON Web Key Set content type.
	// Suitable for fetching jose.JSONWebKeySet documents with RSA keys.
	ContentTypeKeySet ContentType = "application/jwks"

	// ContentTypeToken represents the JSON Web Token content type.
	// Suitable for fetching RS256 signed manifest tokens.
	ContentTypeToken ContentType = "application/jwt"
)

// fetchOptions holds the internal configuration for the Fetch function.
type fetchOptions struct {
	retries            int
	allowLocalhost     bool
	userAgent          string
	insecureSkipVerify bool
	contentType        ContentType
	bearerToken        string
}

// FetchOption configures a Fetch operation.
type FetchOption func(*fetchOptions)

// FetchOpt contains options for the Fetch function.
var FetchOpt fetchOptionBuilder

// fetchOptionBuilder is the internal builder for FetchOption functions.
type fetchOptionBuilder struct{}

// WithContentType sets the expected Content-Type header for HTTP requests.
func (fetchOptionBuilder) WithContentType(contentType ContentType) FetchOption {
	return func(opts *fetchOptions) {
		opts.contentType = contentType
	}
}

// WithRetries sets the number of retries for HTTP requests.
func (fetchOptionBuilder) WithRetries(retries int) FetchOption {
	return func(opts *fetchOptions) {
		opts.retries = retries
	}
}

// WithLocalhost allows HTTP connections to localhost addresses.
func (fetchOptionBuilder) WithLocalhost(allow bool) FetchOption {
	return func(opts *fetchOptions) {
		opts.allowLocalhost = allow
	}
}

// WithUserAgent sets the User-Agent header for HTTP requests.
func (fetchOptionBuilder) WithUserAgent(userAgent string) FetchOption {
	return func(opts *fetchOptions) {
		opts.userAgent = userAgent
	}
}

// WithInsecureSkipVerify skips TLS certificate verification (for testing).
func (fetchOptionBuilder) WithInsecureSkipVerify(skip bool) FetchOption {
	return func(opts *fetchOptions) {
		opts.insecureSkipVerify = skip
	}
}

// WithBearerToken sets the Authorization header for HTTP requests.
func (fetchOptionBuilder) WithBearerToken(token string) FetchOption {
	return func(opts *fetchOptions) {
		opts.bearerToken = token
	}
}

// Fetch performs an HTTP GET request to the specified URL.
// It enforces HTTPS unless connecting to localhost and allows
// various options to customize the request behavior.
// A 404 response is reported as ErrNotFound so callers can
// distinguish absence from transport failures.
func Fetch(ctx context.Context, rawURL string, opts ...FetchOption) ([]byte, error) {
	// Configure default options.
	options := &fetchOptions{
		retries:        2,
		userAgent:      "sponsorkit/1.0",
		allowLocalhost: true,
	}

	// Apply user-provided options.
	for _, opt := range opts {
		opt(options)
	}

	// Parse and validate the URL.
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	// Check if the hostname is localhost or equivalent.
	isLocalhost := strings.EqualFold(parsedURL.Hostname(), "localhost") ||
		parsedURL.Hostname() == "127.0.0.1" ||
		parsedURL.Hostname() == "::1"

	// Enforce HTTPS unless connecting to localhost and allowed.
	if !strings.EqualFold(parsedURL.Scheme, "https") && (!isLocalhost || !options.allowLocalhost) {
		return nil, errors.New("HTTPS scheme is required")
	}

	// Set up the retryable HTTP client.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = options.retries
	retryClient.RetryWaitMin = 2 * time.Second
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil
	if options.insecureSkipVerify {
		retryClient.HTTPClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	// Create the HTTP request with timeout context.
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", options.userAgent)
	if options.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+options.bearerToken)
	}

	// Set the Accept header based on the content type.
	switch options.contentType {
	case ContentTypeKeySet:
		req.Header.Set("Accept", fmt.Sprintf("application/json, %s", options.contentType))
	case ContentTypeToken:
		req.Header.Set("Accept", string(options.contentType))
	}

	// Perform the HTTP GET request.
	resp, err := retryClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Check for successful response.
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed with status: %d", resp.StatusCode)
	}

	// Read the response body.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Ensure the body is not empty.
	if len(body) == 0 {
		return nil, errors.New("response body is empty")
	}

	// Basic response body validation based on accepted content type.
	switch options.contentType {
	case ContentTypeKeySet:
		if !json.Valid(body) {
			return nil, errors.New("invalid JWKS response")
		}
	case ContentTypeToken:
		if strings.Count(string(body), ".") != 2 {
			return nil, errors.New("invalid JWT response")
		}
	}

	return body, nil
}

// ManifestURL returns the well-known URL of a sponsorable account's
// published manifest: raw content of the community health repository
// on the default branch.
func ManifestURL(account string) string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/.github/HEAD/%s", account, WellKnownPath)
}

// HashListPath is the fixed relative path of the published sponsor
// email digest list, used for offline sponsor checks.
const HashListPath = "sponsorlink.sha"

// HashListURL returns the well-known URL of a sponsorable account's
// published email digest list.
func HashListURL(account string) string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/.github/HEAD/%s", account, HashListPath)
}

// FetchSponsorableManifest retrieves and parses the public manifest of
// the given sponsorable account from its well-known location.
// It returns ErrNotFound when the account does not publish a manifest,
// which means the account does not support the protocol.
func FetchSponsorableManifest(ctx context.Context, account string, opts ...FetchOption) (*SponsorableManifest, error) {
	opts = append([]FetchOption{FetchOpt.WithContentType(ContentTypeToken)}, opts...)
	body, err := Fetch(ctx, ManifestURL(account), opts...)
	if err != nil {
		return nil, err
	}

	return SponsorableManifestFromToken(strings.TrimSpace(string(body)))
}
