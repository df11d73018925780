package worker

import (
	"context"
	"errors"

	"gitfeed/internal"
	"gitfeed/pkg/scm"
)

// SCMClientProvider builds provider API clients for events from the
// statically configured tokens.
type SCMClientProvider struct {
	factory *scm.Factory
}

// NewSCMClientProvider creates a provider backed by the per-provider settings.
func NewSCMClientProvider(cfg internal.ProvidersConfig) *SCMClientProvider {
	return &SCMClientProvider{factory: scm.NewFactory(cfg)}
}

// NewSCMClientProviderWithFactory creates a provider with a custom factory.
func NewSCMClientProviderWithFactory(factory *scm.Factory) *SCMClientProvider {
	return &SCMClientProvider{factory: factory}
}

// Client builds a provider-specific SCM client for the given event.
func (p *SCMClientProvider) Client(ctx context.Context, evt *Event) (interface{}, error) {
	if p == nil || p.factory == nil {
		return nil, errors.New("scm client provider is not configured")
	}
	if evt == nil {
		return nil, errors.New("event is required")
	}
	return p.factory.NewClient(ctx, evt.Provider)
}
