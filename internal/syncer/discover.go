// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package syncer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sponsorkit/sponsorkit/internal/skm"
)

// DiscoveryClient exposes the slice of the GitHub graph used to
// enumerate candidate sponsorable accounts.
type DiscoveryClient interface {
	// ListSponsoredAccounts returns the accounts the authenticated user
	// sponsors directly.
	ListSponsoredAccounts(ctx context.Context) ([]string, error)

	// ListOrganizations returns the organizations the user belongs to.
	ListOrganizations(ctx context.Context, login string) ([]string, error)

	// ListAccountsSponsoredBy returns the accounts sponsored by the
	// given organization.
	ListAccountsSponsoredBy(ctx context.Context, org string) ([]string, error)

	// ListContributedRepos returns owner/name slugs of repositories the
	// user has committed to.
	ListContributedRepos(ctx context.Context) ([]string, error)
}

// Discoverer enumerates candidate sponsorable accounts.
type Discoverer struct {
	Client DiscoveryClient

	// Funding resolves the sponsorable accounts declared by a
	// repository's funding file, replaced in tests.
	Funding func(ctx context.Context, slug string) ([]string, error)
}

// NewDiscoverer creates a discoverer over the given graph client.
func NewDiscoverer(client DiscoveryClient, opts ...skm.FetchOption) *Discoverer {
	return &Discoverer{
		Client: client,
		Funding: func(ctx context.Context, slug string) ([]string, error) {
			return FundingAccounts(ctx, slug, opts...)
		},
	}
}

// Discover enumerates candidate sponsorable accounts for the login
// from three sources: accounts the user sponsors directly, accounts
// sponsored by the user's organizations, and accounts declared in the
// funding files of repositories the user contributed to. The result is
// deduplicated and sorted.
func (d *Discoverer) Discover(ctx context.Context, login string) ([]string, error) {
	client := d.Client
	seen := make(map[string]struct{})
	add := func(accounts ...string) {
		for _, a := range accounts {
			a = strings.ToLower(strings.TrimSpace(a))
			if a != "" {
				seen[a] = struct{}{}
			}
		}
	}

	direct, err := client.ListSponsoredAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sponsored accounts: %w", err)
	}
	add(direct...)

	orgs, err := client.ListOrganizations(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	for _, org := range orgs {
		accounts, err := client.ListAccountsSponsoredBy(ctx, org)
		if err != nil {
			return nil, fmt.Errorf("failed to list accounts sponsored by %s: %w", org, err)
		}
		add(accounts...)
	}

	repos, err := client.ListContributedRepos(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributed repositories: %w", err)
	}
	for _, slug := range repos {
		accounts, err := d.Funding(ctx, slug)
		if err != nil {
			return nil, fmt.Errorf("failed to read funding declaration of %s: %w", slug, err)
		}
		add(accounts...)
	}

	candidates := make([]string, 0, len(seen))
	for account := range seen {
		candidates = append(candidates, account)
	}
	sort.Strings(candidates)
	return candidates, nil
}
