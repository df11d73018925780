// Package scm builds provider API clients from the configured static
// tokens, for consumers that react to feed events by calling back into
// the provider that produced them.
package scm

import (
	"context"
	"errors"
	"fmt"

	"gitfeed/internal"
	"gitfeed/pkg/providers/bitbucket"
	"gitfeed/pkg/providers/github"
	"gitfeed/pkg/providers/gitlab"
)

// SCMClient is a provider-specific API client.
// Use type assertions to access the provider client you need.
type SCMClient interface{}

// Factory builds SCM clients from per-provider settings.
type Factory struct {
	cfg internal.ProvidersConfig
}

// NewFactory creates a new Factory.
func NewFactory(cfg internal.ProvidersConfig) *Factory {
	return &Factory{cfg: cfg}
}

// NewClient creates a client for the named provider.
func (f *Factory) NewClient(ctx context.Context, provider string) (SCMClient, error) {
	switch provider {
	case "github":
		pc := f.cfg.GitHub
		if err := requireToken(provider, pc); err != nil {
			return nil, err
		}
		return github.NewTokenClient(ctx, pc.Token, pc.BaseURL)
	case "gitlab":
		pc := f.cfg.GitLab
		if err := requireToken(provider, pc); err != nil {
			return nil, err
		}
		return gitlab.NewTokenClient(pc.Token, pc.BaseURL)
	case "bitbucket":
		pc := f.cfg.Bitbucket
		if err := requireToken(provider, pc); err != nil {
			return nil, err
		}
		return bitbucket.NewTokenClient(pc.Token, pc.BaseURL)
	default:
		return nil, errors.New("unsupported provider for scm client")
	}
}

func requireToken(provider string, pc internal.ProviderConfig) error {
	if pc.Token == "" {
		return fmt.Errorf("no token configured for provider %s", provider)
	}
	return nil
}
