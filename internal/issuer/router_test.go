// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package issuer

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/gomega"

	"github.com/sponsorkit/sponsorkit/internal/resolver"
	"github.com/sponsorkit/sponsorkit/internal/skm"
)

const (
	testIssuer   = "https://sponsorlink.acme.dev"
	testAccount  = "acme"
	testClientID = "Iv1.f00dc0ffee123456"
)

// fakeGraph answers for a single login with fixed sponsorship data.
type fakeGraph struct {
	login       string
	loginErr    error
	userSponsor bool
	contributor bool
	emails      []string
}

func (f *fakeGraph) AuthenticatedLogin(_ context.Context) (string, error) {
	return f.login, f.loginErr
}

func (f *fakeGraph) IsTeamMember(_ context.Context, account, login string) (bool, error) {
	return false, nil
}

func (f *fakeGraph) IsSponsoring(_ context.Context, sponsor, account string) (bool, error) {
	return f.userSponsor && sponsor == f.login, nil
}

func (f *fakeGraph) ListOrganizations(_ context.Context, login string) ([]string, error) {
	return nil, nil
}

func (f *fakeGraph) HasContributed(_ context.Context, login, account string) (bool, error) {
	return f.contributor, nil
}

func (f *fakeGraph) ListVerifiedEmails(_ context.Context) ([]string, error) {
	return f.emails, nil
}

func (f *fakeGraph) ListSponsorOrganizations(_ context.Context, account string) ([]resolver.Organization, error) {
	return nil, nil
}

func testServer(t *testing.T, graph *fakeGraph) (*httptest.Server, *skm.SponsorableManifest) {
	t.Helper()
	g := NewWithT(t)

	// 2048 bits to keep the suite fast, the production key size is
	// enforced by the generator.
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	g.Expect(err).ToNot(HaveOccurred())

	manifest, err := skm.SponsorableManifestWithKey(
		testIssuer,
		[]string{"https://github.com/sponsors/" + testAccount},
		testClientID,
		&skm.RSAPrivateKey{Key: key, KeyID: "kid-1", Issuer: testIssuer},
	)
	g.Expect(err).ToNot(HaveOccurred())

	mux := http.NewServeMux()
	router := NewRouter(mux, manifest, testAccount, 30*24*time.Hour,
		func(_ *http.Request, token string) (Graph, error) {
			if token == "gho_broken" {
				return nil, errors.New("backend unreachable")
			}
			return graph, nil
		},
		NewMetrics(), logr.Discard())
	router.RegisterRoutes()

	srv := httptest.NewServer(router.RegisterMiddleware())
	t.Cleanup(srv.Close)
	return srv, manifest
}

func get(t *testing.T, url, bearer string) (*http.Response, string) {
	t.Helper()
	g := NewWithT(t)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	g.Expect(err).ToNot(HaveOccurred())
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Accept", string(skm.ContentTypeToken))

	resp, err := http.DefaultClient.Do(req)
	g.Expect(err).ToNot(HaveOccurred())
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	g.Expect(err).ToNot(HaveOccurred())
	return resp, string(body)
}

func TestRouter_ManifestHandler(t *testing.T) {
	g := NewWithT(t)

	srv, manifest := testServer(t, &fakeGraph{})

	resp, body := get(t, srv.URL+"/jwt", "")
	g.Expect(resp.StatusCode).To(Equal(http.StatusOK))
	g.Expect(resp.Header.Get("Content-Type")).To(Equal(string(skm.ContentTypeToken)))

	parsed, err := skm.SponsorableManifestFromToken(body)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(parsed.Issuer).To(Equal(testIssuer))
	g.Expect(parsed.ClientID).To(Equal(testClientID))
	g.Expect(parsed.PublicKey.Equal(manifest.PublicKey)).To(BeTrue())
}

func TestRouter_KeyHandler(t *testing.T) {
	g := NewWithT(t)

	srv, manifest := testServer(t, &fakeGraph{})

	resp, body := get(t, srv.URL+"/jwk", "")
	g.Expect(resp.StatusCode).To(Equal(http.StatusOK))

	var set struct {
		Keys []json.RawMessage `json:"keys"`
	}
	g.Expect(json.Unmarshal([]byte(body), &set)).To(Succeed())
	g.Expect(set.Keys).To(HaveLen(1))
	g.Expect(string(set.Keys[0])).To(ContainSubstring(manifest.KeyID))
}

func TestRouter_SignHandler(t *testing.T) {
	t.Run("signs for a sponsor", func(t *testing.T) {
		g := NewWithT(t)

		graph := &fakeGraph{
			login:       "alice",
			userSponsor: true,
			contributor: true,
			emails:      []string{"alice@corp.example"},
		}
		srv, manifest := testServer(t, graph)

		resp, body := get(t, srv.URL+"/me", "gho_valid")
		g.Expect(resp.StatusCode).To(Equal(http.StatusOK))

		status, claims := skm.ValidateSponsorManifest(body, manifest.PublicKey, true)
		g.Expect(status).To(Equal(skm.StatusValid))
		g.Expect(claims.Subject).To(Equal("alice"))
		g.Expect(claims.SponsorTypes()).To(Equal(skm.SponsorUser | skm.SponsorContributor))
		g.Expect(claims.IsSponsor()).To(BeTrue())
		g.Expect([]string(claims.Emails)).To(Equal([]string{"alice@corp.example"}))
	})

	t.Run("404 for a non-sponsor", func(t *testing.T) {
		g := NewWithT(t)

		srv, _ := testServer(t, &fakeGraph{login: "mallory"})

		resp, _ := get(t, srv.URL+"/me", "gho_valid")
		g.Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})

	t.Run("401 without a bearer token", func(t *testing.T) {
		g := NewWithT(t)

		srv, _ := testServer(t, &fakeGraph{login: "alice"})

		resp, _ := get(t, srv.URL+"/me", "")
		g.Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
	})

	t.Run("401 for an invalid token", func(t *testing.T) {
		g := NewWithT(t)

		srv, _ := testServer(t, &fakeGraph{loginErr: errors.New("401 bad credentials")})

		resp, _ := get(t, srv.URL+"/me", "gho_revoked")
		g.Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
	})

	t.Run("502 when the backend is unreachable", func(t *testing.T) {
		g := NewWithT(t)

		srv, _ := testServer(t, &fakeGraph{login: "alice"})

		resp, _ := get(t, srv.URL+"/me", "gho_broken")
		g.Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
	})
}

func TestRouter_RemoveHandler(t *testing.T) {
	g := NewWithT(t)

	srv, _ := testServer(t, &fakeGraph{})

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/me", nil)
	g.Expect(err).ToNot(HaveOccurred())

	resp, err := http.DefaultClient.Do(req)
	g.Expect(err).ToNot(HaveOccurred())
	defer resp.Body.Close()
	g.Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
}

func TestRouter_HealthHandler(t *testing.T) {
	g := NewWithT(t)

	srv, _ := testServer(t, &fakeGraph{})

	resp, body := get(t, srv.URL+"/healthz", "")
	g.Expect(resp.StatusCode).To(Equal(http.StatusOK))
	g.Expect(body).To(Equal("ok"))
}
