// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package authflow

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

// fakeAuthServer scripts the device code and token endpoints. Token
// responses are consumed in order; the last one repeats.
type fakeAuthServer struct {
	srv *httptest.Server

	codeRequests   atomic.Int64
	tokenResponses []map[string]any
	tokenIndex     atomic.Int64
	interval       int
	expiresIn      int
}

func newFakeAuthServer(t *testing.T, responses ...map[string]any) *fakeAuthServer {
	f := &fakeAuthServer{
		tokenResponses: responses,
		interval:       1,
		expiresIn:      900,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/login/device/code", func(w http.ResponseWriter, r *http.Request) {
		f.codeRequests.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"device_code":      "dev-code",
			"user_code":        "ABCD-1234",
			"verification_uri": "https://github.com/login/device",
			"expires_in":       f.expiresIn,
			"interval":         f.interval,
		})
	})
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		i := int(f.tokenIndex.Add(1)) - 1
		if i >= len(f.tokenResponses) {
			i = len(f.tokenResponses) - 1
		}
		_ = json.NewEncoder(w).Encode(f.tokenResponses[i])
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAuthServer) flow(prompt PromptFunc) *DeviceFlow {
	return &DeviceFlow{
		ClientID:      "Iv1.f00dc0ffee123456",
		Scopes:        []string{"read:user", "user:email", "read:org"},
		Prompt:        prompt,
		DeviceCodeURL: f.srv.URL + "/login/device/code",
		TokenURL:      f.srv.URL + "/login/oauth/access_token",
	}
}

func TestDeviceFlow_Authorize(t *testing.T) {

	t.Run("returns token after pending polls", func(t *testing.T) {
		g := NewWithT(t)
		ctx := t.Context()

		srv := newFakeAuthServer(t,
			map[string]any{"error": "authorization_pending"},
			map[string]any{"error": "authorization_pending"},
			map[string]any{"access_token": "gho_fresh"},
		)

		var promptedCode string
		token, err := srv.flow(func(code, uri string) { promptedCode = code }).Authorize(ctx)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(token).To(Equal("gho_fresh"))
		g.Expect(promptedCode).To(Equal("ABCD-1234"))
		g.Expect(srv.tokenIndex.Load()).To(Equal(int64(3)))
	})

	t.Run("slow_down grows the polling interval", func(t *testing.T) {
		g := NewWithT(t)
		ctx := t.Context()

		srv := newFakeAuthServer(t,
			map[string]any{"error": "slow_down"},
			map[string]any{"access_token": "gho_fresh"},
		)

		flow := srv.flow(func(code, uri string) {})
		start := time.Now()
		token, err := flow.Authorize(ctx)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(token).To(Equal("gho_fresh"))
		// The second poll must wait the increased interval.
		g.Expect(time.Since(start)).To(BeNumerically(">=", slowDownIncrement))
	})

	t.Run("expired_token restarts with a fresh device code", func(t *testing.T) {
		g := NewWithT(t)
		ctx := t.Context()

		srv := newFakeAuthServer(t,
			map[string]any{"error": "expired_token"},
			map[string]any{"access_token": "gho_fresh"},
		)

		prompts := 0
		token, err := srv.flow(func(code, uri string) { prompts++ }).Authorize(ctx)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(token).To(Equal("gho_fresh"))
		g.Expect(prompts).To(Equal(2))
		g.Expect(srv.codeRequests.Load()).To(Equal(int64(2)))
	})

	t.Run("access_denied is terminal", func(t *testing.T) {
		g := NewWithT(t)
		ctx := t.Context()

		srv := newFakeAuthServer(t, map[string]any{"error": "access_denied"})

		_, err := srv.flow(func(code, uri string) {}).Authorize(ctx)
		g.Expect(errors.Is(err, ErrAccessDenied)).To(BeTrue())
	})

	t.Run("gives up when the device code expires without renewal", func(t *testing.T) {
		g := NewWithT(t)
		ctx := t.Context()

		srv := newFakeAuthServer(t, map[string]any{"error": "authorization_pending"})
		srv.expiresIn = 0

		flow := srv.flow(func(code, uri string) {})
		base := time.Now()
		calls := 0
		flow.now = func() time.Time {
			calls++
			return base.Add(time.Duration(calls) * time.Minute)
		}

		_, err := flow.Authorize(ctx)
		g.Expect(errors.Is(err, ErrFlowTimeout)).To(BeTrue())
	})

	t.Run("fails without a prompt", func(t *testing.T) {
		g := NewWithT(t)
		ctx := t.Context()

		srv := newFakeAuthServer(t, map[string]any{"access_token": "gho_fresh"})
		flow := srv.flow(nil)

		_, err := flow.Authorize(ctx)
		g.Expect(errors.Is(err, ErrMissingCredentials)).To(BeTrue())
	})
}
