// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/sponsorkit/sponsorkit/internal/skm"
)

const (
	testAccount = "acme"
	testLogin   = "alice"
)

// fakeGraph drives the resolver from fixed answers and records which
// checks were consulted.
type fakeGraph struct {
	teamMember   bool
	userSponsor  bool
	contributor  bool
	orgs         []string
	sponsoringBy map[string]bool
	emails       []string
	sponsorOrgs  []Organization

	failTeam    error
	failSponsor error
	failOrgs    error
	failEmails  error

	emailCalls int
}

func (f *fakeGraph) IsTeamMember(_ context.Context, account, login string) (bool, error) {
	return f.teamMember, f.failTeam
}

func (f *fakeGraph) IsSponsoring(_ context.Context, sponsor, account string) (bool, error) {
	if f.failSponsor != nil {
		return false, f.failSponsor
	}
	if sponsor == testLogin {
		return f.userSponsor, nil
	}
	return f.sponsoringBy[sponsor], nil
}

func (f *fakeGraph) ListOrganizations(_ context.Context, login string) ([]string, error) {
	return f.orgs, f.failOrgs
}

func (f *fakeGraph) HasContributed(_ context.Context, login, account string) (bool, error) {
	return f.contributor, nil
}

func (f *fakeGraph) ListVerifiedEmails(_ context.Context) ([]string, error) {
	f.emailCalls++
	return f.emails, f.failEmails
}

func (f *fakeGraph) ListSponsorOrganizations(_ context.Context, account string) ([]Organization, error) {
	return f.sponsorOrgs, nil
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	// The resulting bitset is the union of the independent checks, for
	// every combination of their outcomes.
	for i := 0; i < 16; i++ {
		team := i&1 != 0
		user := i&2 != 0
		org := i&4 != 0
		contrib := i&8 != 0

		t.Run(fmt.Sprintf("union of team=%v user=%v org=%v contrib=%v", team, user, org, contrib), func(t *testing.T) {
			g := NewWithT(t)

			graph := &fakeGraph{
				teamMember:   team,
				userSponsor:  user,
				contributor:  contrib,
				orgs:         []string{"corp"},
				sponsoringBy: map[string]bool{"corp": org},
			}

			want := skm.SponsorNone
			if team {
				want |= skm.SponsorTeam
			}
			if user {
				want |= skm.SponsorUser
			}
			if org {
				want |= skm.SponsorOrganization
			}
			if contrib {
				want |= skm.SponsorContributor
			}

			st, err := New(graph).Resolve(ctx, testLogin, testAccount)
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(st).To(Equal(want))
		})
	}

	t.Run("skips email domain check when already classified", func(t *testing.T) {
		g := NewWithT(t)

		graph := &fakeGraph{
			contributor: true,
			emails:      []string{"alice@corp.example"},
			sponsorOrgs: []Organization{{Login: "corp", Domains: []string{"corp.example"}}},
		}

		st, err := New(graph).Resolve(ctx, testLogin, testAccount)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(st).To(Equal(skm.SponsorContributor))
		g.Expect(graph.emailCalls).To(BeZero())
	})

	t.Run("matches verified email domain as last resort", func(t *testing.T) {
		g := NewWithT(t)

		graph := &fakeGraph{
			emails:      []string{"alice@Corp.Example"},
			sponsorOrgs: []Organization{{Login: "corp", Domains: []string{"corp.example"}}},
		}

		st, err := New(graph).Resolve(ctx, testLogin, testAccount)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(st).To(Equal(skm.SponsorOrganization))
		g.Expect(graph.emailCalls).To(Equal(1))
	})

	t.Run("returns none when nothing matches", func(t *testing.T) {
		g := NewWithT(t)

		graph := &fakeGraph{
			orgs:   []string{"corp"},
			emails: []string{"alice@personal.example"},
		}

		st, err := New(graph).Resolve(ctx, testLogin, testAccount)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(st).To(Equal(skm.SponsorNone))
		g.Expect(st.IsSponsor()).To(BeFalse())
	})

	t.Run("propagates graph errors", func(t *testing.T) {
		g := NewWithT(t)
		boom := errors.New("rate limited")

		for _, graph := range []*fakeGraph{
			{failTeam: boom},
			{failSponsor: boom},
			{failOrgs: boom},
			{failEmails: boom},
		} {
			st, err := New(graph).Resolve(ctx, testLogin, testAccount)
			g.Expect(err).To(HaveOccurred())
			g.Expect(errors.Is(err, boom)).To(BeTrue())
			g.Expect(st).To(Equal(skm.SponsorNone))
		}
	})

	t.Run("walks organizations until first sponsoring one", func(t *testing.T) {
		g := NewWithT(t)

		graph := &fakeGraph{
			orgs:         []string{"first", "second", "third"},
			sponsoringBy: map[string]bool{"second": true},
		}

		st, err := New(graph).Resolve(ctx, testLogin, testAccount)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(st).To(Equal(skm.SponsorOrganization))
	})
}

func TestDomainOf(t *testing.T) {
	g := NewWithT(t)

	g.Expect(DomainOf("https://www.corp.example/about")).To(Equal("corp.example"))
	g.Expect(DomainOf("https://Corp.Example")).To(Equal("corp.example"))
	g.Expect(DomainOf("not a url")).To(BeEmpty())
	g.Expect(DomainOf("")).To(BeEmpty())
}
