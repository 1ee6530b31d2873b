// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package authflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-github/v81/github"
	"golang.org/x/oauth2"
)

// DefaultHost is the GitHub host credentials are acquired for.
const DefaultHost = "github.com"

// Session is an authenticated GitHub identity.
type Session struct {
	Login string
	Token string
}

// ValidateFunc checks a token against the API and returns the login it
// authenticates as.
type ValidateFunc func(ctx context.Context, token string) (string, error)

// Authenticator resolves a usable GitHub session, preferring cached
// credentials, then the ambient environment, and finally the device
// flow when interaction is allowed. Every candidate token is validated
// against the API before use, and stale stored tokens are evicted.
type Authenticator struct {
	Host     string
	ClientID string

	Store *Store
	Env   LocalEnvironment
	Flow  *DeviceFlow

	// Validate defaults to a GET /user call.
	Validate ValidateFunc
}

// Authenticate returns a validated session. When interactive is false
// and no stored or ambient credential works, ErrMissingCredentials is
// returned without prompting.
func (a *Authenticator) Authenticate(ctx context.Context, interactive bool) (*Session, error) {
	host := a.Host
	if host == "" {
		host = DefaultHost
	}
	validate := a.Validate
	if validate == nil {
		validate = validateToken
	}

	if a.Store != nil {
		token, err := a.Store.Get(host, a.ClientID)
		if err != nil && !errors.Is(err, ErrMissingCredentials) {
			return nil, err
		}
		if token != "" {
			login, err := validate(ctx, token)
			if err == nil {
				return &Session{Login: login, Token: token}, nil
			}
			// Evict the stale token so the next run does not retry it.
			if err := a.Store.Delete(host, a.ClientID); err != nil {
				return nil, err
			}
		}
	}

	if a.Env != nil {
		if token := a.Env.CachedToken(host); token != "" {
			login, err := validate(ctx, token)
			if err == nil {
				return &Session{Login: login, Token: token}, nil
			}
		}
	}

	if !interactive {
		return nil, ErrMissingCredentials
	}
	if a.Flow == nil {
		return nil, ErrMissingCredentials
	}

	token, err := a.Flow.Authorize(ctx)
	if err != nil {
		return nil, err
	}
	login, err := validate(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("token issued by device flow failed validation: %w", err)
	}
	if a.Store != nil {
		if err := a.Store.Set(host, a.ClientID, token); err != nil {
			return nil, err
		}
	}
	return &Session{Login: login, Token: token}, nil
}

// validateToken confirms the token with a GET /user call.
func validateToken(ctx context.Context, token string) (string, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	))
	user, _, err := github.NewClient(httpClient).Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	return user.GetLogin(), nil
}
