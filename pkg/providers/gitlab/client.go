// Package gitlab builds authenticated clients for the GitLab API.
package gitlab

import (
	"errors"

	gl "github.com/xanzy/go-gitlab"
)

// Client is the GitLab SDK client.
type Client = gl.Client

// NewTokenClient creates a GitLab SDK client authenticated with a personal
// access token. An empty baseURL targets gitlab.com.
func NewTokenClient(token, baseURL string) (*Client, error) {
	if token == "" {
		return nil, errors.New("gitlab token is required")
	}
	opts := make([]gl.ClientOptionFunc, 0, 1)
	if baseURL != "" {
		opts = append(opts, gl.WithBaseURL(baseURL))
	}
	return gl.NewClient(token, opts...)
}
