// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v81/github"
	"golang.org/x/oauth2"
)

// GitHubGraph implements Graph on top of the GitHub REST and GraphQL
// APIs, acting on behalf of the authenticated sponsor.
type GitHubGraph struct {
	client *github.Client

	// maxRepos bounds the contribution scan across the sponsorable
	// account's repositories.
	maxRepos int
}

// NewGitHubGraph creates a graph client authenticated with the given
// OAuth token.
func NewGitHubGraph(ctx context.Context, token string) *GitHubGraph {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	))
	return &GitHubGraph{
		client:   github.NewClient(httpClient),
		maxRepos: 100,
	}
}

// NewGitHubGraphWithClient creates a graph over an existing client,
// used by the issuer service and by tests.
func NewGitHubGraphWithClient(client *github.Client) *GitHubGraph {
	return &GitHubGraph{client: client, maxRepos: 100}
}

// AuthenticatedLogin returns the login of the user the client is
// authenticated as.
func (gh *GitHubGraph) AuthenticatedLogin(ctx context.Context) (string, error) {
	user, _, err := gh.client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to fetch authenticated user: %w", err)
	}
	return user.GetLogin(), nil
}

// IsTeamMember reports whether the login is the account itself or a
// member of the account's organization.
func (gh *GitHubGraph) IsTeamMember(ctx context.Context, account, login string) (bool, error) {
	if strings.EqualFold(account, login) {
		return true, nil
	}

	member, resp, err := gh.client.Organizations.IsMember(ctx, account, login)
	if err != nil {
		// A 404 means the account is a user, not an organization.
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to check membership of %s in %s: %w", login, account, err)
	}
	return member, nil
}

// IsSponsoring reports whether the sponsor account directly sponsors
// the sponsorable account.
func (gh *GitHubGraph) IsSponsoring(ctx context.Context, sponsor, account string) (bool, error) {
	// The query is anchored on the sponsored account: isSponsoredBy
	// reports whether the node is sponsored by the given login.
	const query = `query($account: String!, $sponsor: String!) {
  repositoryOwner(login: $account) {
    ... on User { sponsored: isSponsoredBy(accountLogin: $sponsor) }
    ... on Organization { sponsored: isSponsoredBy(accountLogin: $sponsor) }
  }
}`
	var result struct {
		Data struct {
			RepositoryOwner struct {
				Sponsored bool `json:"sponsored"`
			} `json:"repositoryOwner"`
		} `json:"data"`
	}
	if err := gh.graphql(ctx, query, map[string]any{
		"account": account,
		"sponsor": sponsor,
	}, &result); err != nil {
		return false, fmt.Errorf("failed to query sponsorship of %s by %s: %w", account, sponsor, err)
	}
	return result.Data.RepositoryOwner.Sponsored, nil
}

// ListOrganizations returns the logins of the organizations the user
// belongs to.
func (gh *GitHubGraph) ListOrganizations(ctx context.Context, login string) ([]string, error) {
	var logins []string
	opts := &github.ListOptions{PerPage: 100}
	for {
		orgs, resp, err := gh.client.Organizations.List(ctx, login, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list organizations of %s: %w", login, err)
		}
		for _, org := range orgs {
			logins = append(logins, org.GetLogin())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return logins, nil
}

// HasContributed reports whether the login appears as a contributor to
// one of the account's repositories. The scan is bounded to the most
// recently updated repositories.
func (gh *GitHubGraph) HasContributed(ctx context.Context, login, account string) (bool, error) {
	repoOpts := &github.RepositoryListByUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	scanned := 0
	for {
		repos, resp, err := gh.client.Repositories.ListByUser(ctx, account, repoOpts)
		if err != nil {
			return false, fmt.Errorf("failed to list repositories of %s: %w", account, err)
		}
		for _, repo := range repos {
			if repo.GetFork() {
				continue
			}
			found, err := gh.isContributor(ctx, login, account, repo.GetName())
			if err != nil {
				return false, err
			}
			if found {
				return true, nil
			}
			scanned++
			if scanned >= gh.maxRepos {
				return false, nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		repoOpts.Page = resp.NextPage
	}
	return false, nil
}

func (gh *GitHubGraph) isContributor(ctx context.Context, login, owner, repo string) (bool, error) {
	opts := &github.ListContributorsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	contributors, resp, err := gh.client.Repositories.ListContributors(ctx, owner, repo, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to list contributors of %s/%s: %w", owner, repo, err)
	}
	for _, c := range contributors {
		if strings.EqualFold(c.GetLogin(), login) {
			return true, nil
		}
	}
	return false, nil
}

// ListVerifiedEmails returns the verified email addresses of the
// authenticated user.
func (gh *GitHubGraph) ListVerifiedEmails(ctx context.Context) ([]string, error) {
	var emails []string
	opts := &github.ListOptions{PerPage: 100}
	for {
		list, resp, err := gh.client.Users.ListEmails(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list emails: %w", err)
		}
		for _, e := range list {
			if e.GetVerified() {
				emails = append(emails, e.GetEmail())
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return emails, nil
}

// ListSponsorOrganizations returns the organizations that sponsor the
// account, with domains derived from their website URLs.
func (gh *GitHubGraph) ListSponsorOrganizations(ctx context.Context, account string) ([]Organization, error) {
	const query = `query($account: String!, $cursor: String) {
  repositoryOwner(login: $account) {
    ... on Sponsorable {
      sponsors(first: 100, after: $cursor) {
        pageInfo { hasNextPage endCursor }
        nodes {
          ... on Organization { login websiteUrl }
        }
      }
    }
  }
}`
	var orgs []Organization
	var cursor any
	for {
		var result struct {
			Data struct {
				RepositoryOwner struct {
					Sponsors struct {
						PageInfo struct {
							HasNextPage bool   `json:"hasNextPage"`
							EndCursor   string `json:"endCursor"`
						} `json:"pageInfo"`
						Nodes []struct {
							Login      string `json:"login"`
							WebsiteURL string `json:"websiteUrl"`
						} `json:"nodes"`
					} `json:"sponsors"`
				} `json:"repositoryOwner"`
			} `json:"data"`
		}
		if err := gh.graphql(ctx, query, map[string]any{
			"account": account,
			"cursor":  cursor,
		}, &result); err != nil {
			return nil, fmt.Errorf("failed to list sponsors of %s: %w", account, err)
		}
		for _, node := range result.Data.RepositoryOwner.Sponsors.Nodes {
			if node.Login == "" {
				continue
			}
			org := Organization{Login: node.Login}
			if domain := DomainOf(node.WebsiteURL); domain != "" {
				org.Domains = []string{domain}
			}
			orgs = append(orgs, org)
		}
		if !result.Data.RepositoryOwner.Sponsors.PageInfo.HasNextPage {
			break
		}
		cursor = result.Data.RepositoryOwner.Sponsors.PageInfo.EndCursor
	}
	return orgs, nil
}

// ListSponsoredAccounts returns the accounts the authenticated user
// sponsors directly.
func (gh *GitHubGraph) ListSponsoredAccounts(ctx context.Context) ([]string, error) {
	const query = `query($cursor: String) {
  viewer {
    sponsoring(first: 100, after: $cursor) {
      pageInfo { hasNextPage endCursor }
      nodes {
        ... on User { login }
        ... on Organization { login }
      }
    }
  }
}`
	var accounts []string
	var cursor any
	for {
		var result struct {
			Data struct {
				Viewer struct {
					Sponsoring struct {
						PageInfo struct {
							HasNextPage bool   `json:"hasNextPage"`
							EndCursor   string `json:"endCursor"`
						} `json:"pageInfo"`
						Nodes []struct {
							Login string `json:"login"`
						} `json:"nodes"`
					} `json:"sponsoring"`
				} `json:"viewer"`
			} `json:"data"`
		}
		if err := gh.graphql(ctx, query, map[string]any{"cursor": cursor}, &result); err != nil {
			return nil, fmt.Errorf("failed to list sponsored accounts: %w", err)
		}
		for _, node := range result.Data.Viewer.Sponsoring.Nodes {
			if node.Login != "" {
				accounts = append(accounts, node.Login)
			}
		}
		if !result.Data.Viewer.Sponsoring.PageInfo.HasNextPage {
			break
		}
		cursor = result.Data.Viewer.Sponsoring.PageInfo.EndCursor
	}
	return accounts, nil
}

// ListAccountsSponsoredBy returns the accounts the given organization
// sponsors directly.
func (gh *GitHubGraph) ListAccountsSponsoredBy(ctx context.Context, org string) ([]string, error) {
	const query = `query($org: String!, $cursor: String) {
  organization(login: $org) {
    sponsoring(first: 100, after: $cursor) {
      pageInfo { hasNextPage endCursor }
      nodes {
        ... on User { login }
        ... on Organization { login }
      }
    }
  }
}`
	var accounts []string
	var cursor any
	for {
		var result struct {
			Data struct {
				Organization struct {
					Sponsoring struct {
						PageInfo struct {
							HasNextPage bool   `json:"hasNextPage"`
							EndCursor   string `json:"endCursor"`
						} `json:"pageInfo"`
						Nodes []struct {
							Login string `json:"login"`
						} `json:"nodes"`
					} `json:"sponsoring"`
				} `json:"organization"`
			} `json:"data"`
		}
		if err := gh.graphql(ctx, query, map[string]any{"org": org, "cursor": cursor}, &result); err != nil {
			return nil, fmt.Errorf("failed to list accounts sponsored by %s: %w", org, err)
		}
		for _, node := range result.Data.Organization.Sponsoring.Nodes {
			if node.Login != "" {
				accounts = append(accounts, node.Login)
			}
		}
		if !result.Data.Organization.Sponsoring.PageInfo.HasNextPage {
			break
		}
		cursor = result.Data.Organization.Sponsoring.PageInfo.EndCursor
	}
	return accounts, nil
}

// ListContributedRepos returns the owner/name slugs of the repositories
// the authenticated user has committed to.
func (gh *GitHubGraph) ListContributedRepos(ctx context.Context) ([]string, error) {
	const query = `query($cursor: String) {
  viewer {
    repositoriesContributedTo(first: 100, after: $cursor, contributionTypes: [COMMIT], includeUserRepositories: false) {
      pageInfo { hasNextPage endCursor }
      nodes { nameWithOwner }
    }
  }
}`
	var repos []string
	var cursor any
	for {
		var result struct {
			Data struct {
				Viewer struct {
					RepositoriesContributedTo struct {
						PageInfo struct {
							HasNextPage bool   `json:"hasNextPage"`
							EndCursor   string `json:"endCursor"`
						} `json:"pageInfo"`
						Nodes []struct {
							NameWithOwner string `json:"nameWithOwner"`
						} `json:"nodes"`
					} `json:"repositoriesContributedTo"`
				} `json:"viewer"`
			} `json:"data"`
		}
		if err := gh.graphql(ctx, query, map[string]any{"cursor": cursor}, &result); err != nil {
			return nil, fmt.Errorf("failed to list contributed repositories: %w", err)
		}
		for _, node := range result.Data.Viewer.RepositoriesContributedTo.Nodes {
			if node.NameWithOwner != "" {
				repos = append(repos, node.NameWithOwner)
			}
		}
		if !result.Data.Viewer.RepositoriesContributedTo.PageInfo.HasNextPage {
			break
		}
		cursor = result.Data.Viewer.RepositoriesContributedTo.PageInfo.EndCursor
	}
	return repos, nil
}

// graphql posts a GraphQL query through the REST client so that
// authentication, rate limiting and retries are shared with the REST
// calls. Query-level failures arrive as 200 responses carrying an
// errors array and must be surfaced as errors, never as zero values.
func (gh *GitHubGraph) graphql(ctx context.Context, query string, variables map[string]any, out any) error {
	req, err := gh.client.NewRequest(http.MethodPost, "graphql", map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return err
	}

	var body bytes.Buffer
	resp, err := gh.client.Do(ctx, req, &body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql query returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Errors []struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body.Bytes(), &envelope); err != nil {
		return fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		e := envelope.Errors[0]
		return fmt.Errorf("graphql query failed: %s: %s", e.Type, e.Message)
	}

	return json.Unmarshal(body.Bytes(), out)
}
