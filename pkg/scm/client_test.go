package scm

import (
	"context"
	"testing"

	"gitfeed/internal"
)

func TestFactoryRequiresToken(t *testing.T) {
	f := NewFactory(internal.ProvidersConfig{})
	for _, provider := range []string{"github", "gitlab", "bitbucket"} {
		if _, err := f.NewClient(context.Background(), provider); err == nil {
			t.Fatalf("expected an error for %s without a token", provider)
		}
	}
}

func TestFactoryUnsupportedProvider(t *testing.T) {
	f := NewFactory(internal.ProvidersConfig{})
	if _, err := f.NewClient(context.Background(), "gitea"); err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
}

func TestFactoryBuildsClients(t *testing.T) {
	cfg := internal.ProvidersConfig{
		GitHub:    internal.ProviderConfig{Token: "gh-token"},
		GitLab:    internal.ProviderConfig{Token: "gl-token"},
		Bitbucket: internal.ProviderConfig{Token: "bb-token"},
	}
	f := NewFactory(cfg)

	for _, provider := range []string{"github", "gitlab", "bitbucket"} {
		client, err := f.NewClient(context.Background(), provider)
		if err != nil {
			t.Fatalf("%s client: %v", provider, err)
		}
		if client == nil {
			t.Fatalf("%s client is nil", provider)
		}
	}
}
