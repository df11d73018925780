// Package github builds authenticated clients for the GitHub API, for
// consumers that react to feed events by calling back into the provider.
package github

import (
	"context"
	"errors"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://api.github.com"

// Client is the official GitHub SDK client.
type Client = gh.Client

// NewTokenClient creates a GitHub SDK client authenticated with a personal
// access or installation token. A non-default baseURL targets a GitHub
// Enterprise instance.
func NewTokenClient(ctx context.Context, token, baseURL string) (*Client, error) {
	if token == "" {
		return nil, errors.New("github token is required")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL != "" && baseURL != defaultBaseURL {
		return gh.NewEnterpriseClient(baseURL, baseURL, httpClient)
	}
	return gh.NewClient(httpClient), nil
}
