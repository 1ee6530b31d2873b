// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package skm

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestSponsorTypesFromRoles(t *testing.T) {
	g := NewWithT(t)

	g.Expect(SponsorTypesFromRoles(nil)).To(Equal(SponsorNone))
	g.Expect(SponsorTypesFromRoles([]string{"user"})).To(Equal(SponsorUser))
	g.Expect(SponsorTypesFromRoles([]string{"USER", "Contrib"})).To(Equal(SponsorUser | SponsorContributor))
	g.Expect(SponsorTypesFromRoles([]string{"team", "org", "user", "contrib"})).
		To(Equal(SponsorTeam | SponsorOrganization | SponsorUser | SponsorContributor))
	g.Expect(SponsorTypesFromRoles([]string{"unknown-role"})).To(Equal(SponsorNone))
}

func TestSponsorTypes_Roles(t *testing.T) {
	g := NewWithT(t)

	g.Expect(SponsorNone.Roles()).To(BeEmpty())
	g.Expect((SponsorUser | SponsorContributor).Roles()).To(ConsistOf("user", "contrib"))

	// Role round-trip is stable for every combination.
	for st := SponsorTypes(0); st < 16; st++ {
		g.Expect(SponsorTypesFromRoles(st.Roles())).To(Equal(st))
	}
}

func TestSponsorTypes_Primary(t *testing.T) {
	g := NewWithT(t)

	// Direct personal sponsorship outranks organization membership.
	g.Expect((SponsorUser | SponsorOrganization).Primary()).To(Equal(SponsorUser))
	g.Expect((SponsorOrganization | SponsorContributor).Primary()).To(Equal(SponsorOrganization))
	g.Expect((SponsorTeam | SponsorContributor).Primary()).To(Equal(SponsorTeam))
	g.Expect(SponsorContributor.Primary()).To(Equal(SponsorContributor))
	g.Expect(SponsorNone.Primary()).To(Equal(SponsorNone))
}

func TestSponsorTypes_String(t *testing.T) {
	g := NewWithT(t)

	g.Expect(SponsorNone.String()).To(Equal("none"))
	g.Expect((SponsorUser | SponsorContributor).String()).To(Equal("user|contrib"))
	g.Expect((SponsorTeam | SponsorOrganization).String()).To(Equal("team|org"))
}

func TestManifestStatus_String(t *testing.T) {
	g := NewWithT(t)

	g.Expect(StatusUnknown.String()).To(Equal("unknown"))
	g.Expect(StatusValid.String()).To(Equal("valid"))
	g.Expect(StatusExpired.String()).To(Equal("expired"))
	g.Expect(StatusInvalid.String()).To(Equal("invalid"))
}
