// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package authflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultDeviceCodeURL = "https://github.com/login/device/code"
	defaultTokenURL      = "https://github.com/login/oauth/access_token"

	// slowDownIncrement is added to the polling interval on every
	// slow_down response, per RFC 8628 section 3.5.
	slowDownIncrement = 5 * time.Second
)

// deviceFlowMu serializes device authorizations across the process so
// that concurrent callers never prompt the user twice.
var deviceFlowMu sync.Mutex

// DeviceCode is the server response to a device authorization request.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// PromptFunc presents the user code and verification URI to the user.
type PromptFunc func(userCode, verificationURI string)

// DeviceFlow runs the OAuth device authorization grant against GitHub.
type DeviceFlow struct {
	ClientID string
	Scopes   []string

	// Prompt is invoked once per device code with the code the user
	// must enter. When nil the flow fails instead of prompting.
	Prompt PromptFunc

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// DeviceCodeURL and TokenURL default to the github.com endpoints.
	DeviceCodeURL string
	TokenURL      string

	// now is stubbed in tests.
	now func() time.Time
}

// Authorize runs the device flow to completion and returns the access
// token. Expired device codes are replaced transparently; the user is
// re-prompted with the fresh code. Only one device flow runs at a time
// per process.
func (f *DeviceFlow) Authorize(ctx context.Context) (string, error) {
	deviceFlowMu.Lock()
	defer deviceFlowMu.Unlock()

	if f.Prompt == nil {
		return "", ErrMissingCredentials
	}

	for {
		code, err := f.requestDeviceCode(ctx)
		if err != nil {
			return "", err
		}
		f.Prompt(code.UserCode, code.VerificationURI)

		token, retry, err := f.pollToken(ctx, code)
		if err != nil {
			return "", err
		}
		if retry {
			// The device code expired before the user completed the
			// authorization, start over with a fresh one.
			continue
		}
		return token, nil
	}
}

func (f *DeviceFlow) requestDeviceCode(ctx context.Context) (*DeviceCode, error) {
	form := url.Values{
		"client_id": {f.ClientID},
		"scope":     {strings.Join(f.Scopes, " ")},
	}

	var code DeviceCode
	if err := f.postForm(ctx, f.deviceCodeURL(), form, &code); err != nil {
		return nil, fmt.Errorf("device code request failed: %w", err)
	}
	if code.DeviceCode == "" {
		return nil, fmt.Errorf("device code request returned an empty code")
	}
	if code.Interval <= 0 {
		code.Interval = 5
	}
	return &code, nil
}

// pollToken polls the token endpoint until the grant completes, the
// device code expires (retry=true), or a terminal error occurs.
func (f *DeviceFlow) pollToken(ctx context.Context, code *DeviceCode) (token string, retry bool, err error) {
	interval := time.Duration(code.Interval) * time.Second
	deadline := f.clock()().Add(time.Duration(code.ExpiresIn) * time.Second)

	form := url.Values{
		"client_id":   {f.ClientID},
		"device_code": {code.DeviceCode},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
	}

	for {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(interval):
		}

		var result struct {
			AccessToken string `json:"access_token"`
			Error       string `json:"error"`
		}
		if err := f.postForm(ctx, f.tokenURL(), form, &result); err != nil {
			return "", false, fmt.Errorf("token request failed: %w", err)
		}

		switch result.Error {
		case "":
			if result.AccessToken == "" {
				return "", false, fmt.Errorf("token response missing access token")
			}
			return result.AccessToken, false, nil
		case "authorization_pending":
			// Keep waiting.
		case "slow_down":
			interval += slowDownIncrement
		case "expired_token":
			return "", true, nil
		case "access_denied":
			return "", false, ErrAccessDenied
		default:
			return "", false, fmt.Errorf("device flow failed: %s", result.Error)
		}

		if f.clock()().After(deadline) {
			return "", false, ErrFlowTimeout
		}
	}
}

func (f *DeviceFlow) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

func (f *DeviceFlow) deviceCodeURL() string {
	if f.DeviceCodeURL != "" {
		return f.DeviceCodeURL
	}
	return defaultDeviceCodeURL
}

func (f *DeviceFlow) tokenURL() string {
	if f.TokenURL != "" {
		return f.TokenURL
	}
	return defaultTokenURL
}

func (f *DeviceFlow) clock() func() time.Time {
	if f.now != nil {
		return f.now
	}
	return time.Now
}
