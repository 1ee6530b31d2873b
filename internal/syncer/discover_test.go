// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package syncer

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/gomega"
)

type fakeDiscoveryClient struct {
	sponsored    []string
	orgs         []string
	orgSponsored map[string][]string
	repos        []string

	failSponsored error
}

func (f *fakeDiscoveryClient) ListSponsoredAccounts(_ context.Context) ([]string, error) {
	return f.sponsored, f.failSponsored
}

func (f *fakeDiscoveryClient) ListOrganizations(_ context.Context, login string) ([]string, error) {
	return f.orgs, nil
}

func (f *fakeDiscoveryClient) ListAccountsSponsoredBy(_ context.Context, org string) ([]string, error) {
	return f.orgSponsored[org], nil
}

func (f *fakeDiscoveryClient) ListContributedRepos(_ context.Context) ([]string, error) {
	return f.repos, nil
}

func TestDiscoverer_Discover(t *testing.T) {
	ctx := context.Background()

	t.Run("merges and deduplicates all sources", func(t *testing.T) {
		g := NewWithT(t)

		client := &fakeDiscoveryClient{
			sponsored:    []string{"acme", "zeta"},
			orgs:         []string{"corp"},
			orgSponsored: map[string][]string{"corp": {"acme", "beta"}},
			repos:        []string{"upstream/lib", "other/tool"},
		}
		d := NewDiscoverer(client)
		d.Funding = func(_ context.Context, slug string) ([]string, error) {
			if slug == "upstream/lib" {
				return []string{"Gamma"}, nil
			}
			return nil, nil
		}

		accounts, err := d.Discover(ctx, "alice")
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(accounts).To(Equal([]string{"acme", "beta", "gamma", "zeta"}))
	})

	t.Run("propagates source errors", func(t *testing.T) {
		g := NewWithT(t)

		client := &fakeDiscoveryClient{failSponsored: errors.New("rate limited")}
		d := NewDiscoverer(client)

		_, err := d.Discover(ctx, "alice")
		g.Expect(err).To(HaveOccurred())
	})
}

func TestParseFunding(t *testing.T) {
	t.Run("single account", func(t *testing.T) {
		g := NewWithT(t)

		accounts, err := parseFunding([]byte("github: acme\n"))
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(accounts).To(Equal([]string{"acme"}))
	})

	t.Run("account list", func(t *testing.T) {
		g := NewWithT(t)

		accounts, err := parseFunding([]byte("github: [acme, beta]\npatreon: someone\n"))
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(accounts).To(Equal([]string{"acme", "beta"}))
	})

	t.Run("no github entry", func(t *testing.T) {
		g := NewWithT(t)

		accounts, err := parseFunding([]byte("patreon: someone\n"))
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(accounts).To(BeEmpty())
	})

	t.Run("invalid document", func(t *testing.T) {
		g := NewWithT(t)

		_, err := parseFunding([]byte("github: [unclosed\n"))
		g.Expect(err).To(HaveOccurred())
	})
}

func TestFundingURL(t *testing.T) {
	g := NewWithT(t)

	g.Expect(fundingURL("acme/widgets")).
		To(Equal("https://raw.githubusercontent.com/acme/widgets/HEAD/.github/FUNDING.yml"))
}
