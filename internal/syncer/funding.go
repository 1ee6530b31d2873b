// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sponsorkit/sponsorkit/internal/skm"
)

// fundingPath is the well-known location of the funding declaration
// inside a repository.
const fundingPath = ".github/FUNDING.yml"

// fundingFile is the subset of the funding declaration that names
// GitHub sponsorable accounts. The github entry accepts a single login
// or a list.
type fundingFile struct {
	GitHub fundingAccounts `yaml:"github"`
}

type fundingAccounts []string

func (f *fundingAccounts) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		if single != "" {
			*f = fundingAccounts{single}
		}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*f = fundingAccounts(list)
		return nil
	default:
		return fmt.Errorf("unexpected funding declaration node kind %d", value.Kind)
	}
}

// parseFunding extracts the GitHub sponsorable accounts from a funding
// declaration document.
func parseFunding(data []byte) ([]string, error) {
	var file fundingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse funding declaration: %w", err)
	}
	return file.GitHub, nil
}

// fundingURL returns the raw content URL of the funding declaration
// for the given repository slug on its default branch.
func fundingURL(slug string) string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/HEAD/%s", slug, fundingPath)
}

// FundingAccounts fetches and parses the funding declaration of the
// repository, falling back to the owner's community health repository
// when the repository itself declares none. Absence at both levels is
// reported as an empty list, not an error.
func FundingAccounts(ctx context.Context, slug string, opts ...skm.FetchOption) ([]string, error) {
	accounts, err := fetchFunding(ctx, fundingURL(slug), opts...)
	if err != nil {
		return nil, err
	}
	if len(accounts) > 0 {
		return accounts, nil
	}

	owner, _, found := strings.Cut(slug, "/")
	if !found || owner == "" {
		return nil, nil
	}
	return fetchFunding(ctx, fundingURL(owner+"/.github"), opts...)
}

func fetchFunding(ctx context.Context, url string, opts ...skm.FetchOption) ([]string, error) {
	body, err := skm.Fetch(ctx, url, opts...)
	if err != nil {
		if errors.Is(err, skm.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return parseFunding(body)
}
