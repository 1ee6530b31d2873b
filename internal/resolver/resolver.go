// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

// Package resolver computes the composite sponsorship classification of
// an authenticated account against a sponsorable manifest, by querying
// the sponsorship-relevant slice of the GitHub graph.
package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sponsorkit/sponsorkit/internal/skm"
)

// Organization describes an organization that sponsors an account,
// together with the web domains it is known by.
type Organization struct {
	Login   string
	Domains []string
}

// Graph provides read access to the sponsorship-relevant data of the
// authenticated account. Any error from the underlying data source is
// a hard failure: callers must be able to distinguish a confirmed
// non-sponsor from an undetermined status.
type Graph interface {
	// IsTeamMember reports whether the login is the sponsorable account
	// itself or a member of its organization.
	IsTeamMember(ctx context.Context, account, login string) (bool, error)

	// IsSponsoring reports whether the given sponsor account directly
	// sponsors the sponsorable account.
	IsSponsoring(ctx context.Context, sponsor, account string) (bool, error)

	// ListOrganizations returns the logins of the organizations the
	// given user belongs to.
	ListOrganizations(ctx context.Context, login string) ([]string, error)

	// HasContributed reports whether the login has committed to a
	// repository owned by the sponsorable account.
	HasContributed(ctx context.Context, login, account string) (bool, error)

	// ListVerifiedEmails returns the verified email addresses of the
	// authenticated user.
	ListVerifiedEmails(ctx context.Context) ([]string, error)

	// ListSponsorOrganizations returns the organizations that sponsor
	// the given account.
	ListSponsorOrganizations(ctx context.Context, account string) ([]Organization, error)
}

// Resolver computes SponsorTypes bitsets from graph data.
type Resolver struct {
	graph Graph
}

// New creates a resolver over the given graph.
func New(graph Graph) *Resolver {
	return &Resolver{graph: graph}
}

// Resolve computes the sponsorship classification of the login against
// the sponsorable account as the union of the independent checks.
// Checks run from cheapest to most expensive, and the verified email
// domain cross-reference is only attempted when every other check came
// up empty. Evaluation order never changes the resulting bitset.
// Any graph error is propagated, never folded into "not a sponsor".
func (r *Resolver) Resolve(ctx context.Context, login, account string) (skm.SponsorTypes, error) {
	st := skm.SponsorNone

	team, err := r.graph.IsTeamMember(ctx, account, login)
	if err != nil {
		return skm.SponsorNone, fmt.Errorf("team membership check failed: %w", err)
	}
	if team {
		st |= skm.SponsorTeam
	}

	user, err := r.graph.IsSponsoring(ctx, login, account)
	if err != nil {
		return skm.SponsorNone, fmt.Errorf("direct sponsorship check failed: %w", err)
	}
	if user {
		st |= skm.SponsorUser
	}

	contrib, err := r.graph.HasContributed(ctx, login, account)
	if err != nil {
		return skm.SponsorNone, fmt.Errorf("contribution check failed: %w", err)
	}
	if contrib {
		st |= skm.SponsorContributor
	}

	org, err := r.resolveOrganization(ctx, login, account)
	if err != nil {
		return skm.SponsorNone, err
	}
	if org {
		st |= skm.SponsorOrganization
	}

	// Cross-referencing verified email domains against sponsoring
	// organizations takes multiple rate-limited calls, attempt it only
	// when nothing else classified the login.
	if st == skm.SponsorNone {
		domainMatch, err := r.resolveEmailDomain(ctx, account)
		if err != nil {
			return skm.SponsorNone, err
		}
		if domainMatch {
			st |= skm.SponsorOrganization
		}
	}

	return st, nil
}

// resolveOrganization reports whether the login belongs to an
// organization that directly sponsors the account. The membership list
// is walked until the first sponsoring organization.
func (r *Resolver) resolveOrganization(ctx context.Context, login, account string) (bool, error) {
	orgs, err := r.graph.ListOrganizations(ctx, login)
	if err != nil {
		return false, fmt.Errorf("organization listing failed: %w", err)
	}

	for _, org := range orgs {
		sponsoring, err := r.graph.IsSponsoring(ctx, org, account)
		if err != nil {
			return false, fmt.Errorf("organization sponsorship check failed: %w", err)
		}
		if sponsoring {
			return true, nil
		}
	}
	return false, nil
}

// resolveEmailDomain reports whether one of the authenticated user's
// verified email domains matches a domain of an organization that
// sponsors the account. This covers a sponsor using an unaffiliated
// personal account whose email matches a sponsoring employer.
func (r *Resolver) resolveEmailDomain(ctx context.Context, account string) (bool, error) {
	emails, err := r.graph.ListVerifiedEmails(ctx)
	if err != nil {
		return false, fmt.Errorf("verified email listing failed: %w", err)
	}
	if len(emails) == 0 {
		return false, nil
	}

	sponsorOrgs, err := r.graph.ListSponsorOrganizations(ctx, account)
	if err != nil {
		return false, fmt.Errorf("sponsor organization listing failed: %w", err)
	}

	for _, email := range emails {
		domain := emailDomain(email)
		if domain == "" {
			continue
		}
		for _, org := range sponsorOrgs {
			for _, orgDomain := range org.Domains {
				if strings.EqualFold(domain, orgDomain) {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

// emailDomain extracts the domain part of an email address.
func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}

// DomainOf extracts the registrable host of a website URL, used to
// derive organization domains.
func DomainOf(website string) string {
	u, err := url.Parse(website)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
