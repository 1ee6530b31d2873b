// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package skm

import "strings"

// ManifestStatus is the lifecycle outcome of validating a sponsor manifest.
type ManifestStatus int

const (
	// StatusUnknown means the token could not be parsed at all.
	// It is the only status for which decoded claims are unavailable.
	StatusUnknown ManifestStatus = iota

	// StatusValid means the signature verified and the claims are usable.
	StatusValid

	// StatusExpired means the signature verified but the token is past
	// its expiration time. Decoded claims are still available.
	StatusExpired

	// StatusInvalid means the signature or a required claim failed
	// verification. Best-effort decoded claims may still be available
	// for diagnostics.
	StatusInvalid
)

// String returns the lowercase name of the status.
func (s ManifestStatus) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// SponsorTypes is a bitset of the independent ways an account
// can qualify as a sponsor.
type SponsorTypes int

const (
	// SponsorNone means the account holds no sponsorship classification.
	SponsorNone SponsorTypes = 0

	// SponsorContributor means the account has committed to a repository
	// owned by the sponsorable.
	SponsorContributor SponsorTypes = 1 << (iota - 1)

	// SponsorOrganization means the account belongs to an organization
	// that sponsors the sponsorable.
	SponsorOrganization

	// SponsorUser means the account directly sponsors the sponsorable.
	SponsorUser

	// SponsorTeam means the account is the sponsorable itself or a
	// member of its organization.
	SponsorTeam
)

// roleNames maps each flag to its role claim value.
var roleNames = []struct {
	flag SponsorTypes
	role string
}{
	{SponsorTeam, "team"},
	{SponsorOrganization, "org"},
	{SponsorUser, "user"},
	{SponsorContributor, "contrib"},
}

// SponsorTypesFromRoles converts role claim values to a SponsorTypes bitset.
// Unrecognized roles are ignored.
func SponsorTypesFromRoles(roles []string) SponsorTypes {
	var st SponsorTypes
	for _, role := range roles {
		for _, rn := range roleNames {
			if strings.EqualFold(role, rn.role) {
				st |= rn.flag
			}
		}
	}
	return st
}

// Roles returns the role claim values for the flags set in the bitset.
func (st SponsorTypes) Roles() []string {
	var roles []string
	for _, rn := range roleNames {
		if st&rn.flag != 0 {
			roles = append(roles, rn.role)
		}
	}
	return roles
}

// Has reports whether all flags in t are set.
func (st SponsorTypes) Has(t SponsorTypes) bool {
	return st&t == t
}

// IsSponsor reports whether any classification is set.
func (st SponsorTypes) IsSponsor() bool {
	return st != SponsorNone
}

// Primary returns the single label used for direct-sponsorship attribution.
// A direct personal sponsorship outranks one inherited through an
// organization. Contributor and team are informational overlays and are
// only reported when no direct channel applies.
func (st SponsorTypes) Primary() SponsorTypes {
	switch {
	case st.Has(SponsorUser):
		return SponsorUser
	case st.Has(SponsorOrganization):
		return SponsorOrganization
	case st.Has(SponsorTeam):
		return SponsorTeam
	case st.Has(SponsorContributor):
		return SponsorContributor
	default:
		return SponsorNone
	}
}

// String returns the pipe-joined role names, or "none".
func (st SponsorTypes) String() string {
	roles := st.Roles()
	if len(roles) == 0 {
		return "none"
	}
	return strings.Join(roles, "|")
}
