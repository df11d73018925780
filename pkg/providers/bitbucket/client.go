// Package bitbucket builds authenticated clients for the Bitbucket API.
package bitbucket

import (
	"errors"
	"os"
	"strings"

	bb "github.com/ktrysmt/go-bitbucket"
)

// Client is the Bitbucket SDK client.
type Client = bb.Client

// NewTokenClient returns a Bitbucket SDK client using an OAuth bearer token.
// The SDK reads its base URL from the environment, so a custom baseURL is
// exported there before construction.
func NewTokenClient(token, baseURL string) (*Client, error) {
	if token == "" {
		return nil, errors.New("bitbucket token is required")
	}
	if base := strings.TrimRight(strings.TrimSpace(baseURL), "/"); base != "" {
		_ = os.Setenv("BITBUCKET_API_BASE_URL", base)
	}
	return bb.NewOAuthbearerToken(token), nil
}
