package scm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gitfeed/internal"
)

// HookSpec identifies one repository webhook to manage. Owner and Repo
// address github and bitbucket repositories; RepoID addresses gitlab
// projects, either numeric or "group/project". URL is the delivery
// endpoint the provider should call.
type HookSpec struct {
	Provider string `json:"provider"`
	Owner    string `json:"owner,omitempty"`
	Repo     string `json:"repo,omitempty"`
	RepoID   string `json:"repo_id,omitempty"`
	URL      string `json:"url"`
}

// HookManager registers and removes repository webhooks through the
// provider REST APIs, authenticated with the configured static tokens.
// Both operations are idempotent on the hook URL: ensuring a hook that
// already exists, or removing one that does not, is a no-op. Hooks are
// registered for the events the feed normalizes: pushes and pull
// requests. When a provider secret is configured it is attached to the
// created hook so deliveries pass verification.
type HookManager struct {
	cfg    internal.ProvidersConfig
	client *http.Client
}

// NewHookManager creates a HookManager over the provider settings.
func NewHookManager(cfg internal.ProvidersConfig) *HookManager {
	return &HookManager{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// EnsureHook makes sure a webhook pointing at spec.URL exists on the
// repository and returns the provider's identifier for it.
func (m *HookManager) EnsureHook(ctx context.Context, spec HookSpec) (string, error) {
	pc, err := m.providerConfig(spec.Provider)
	if err != nil {
		return "", err
	}
	if spec.URL == "" {
		return "", errors.New("hook url is required")
	}
	switch spec.Provider {
	case "github":
		return m.ensureGitHubHook(ctx, pc, spec)
	case "gitlab":
		return m.ensureGitLabHook(ctx, pc, spec)
	case "bitbucket":
		return m.ensureBitbucketHook(ctx, pc, spec)
	}
	return "", fmt.Errorf("unsupported provider: %s", spec.Provider)
}

// RemoveHook deletes the webhook pointing at spec.URL if the repository
// has one.
func (m *HookManager) RemoveHook(ctx context.Context, spec HookSpec) error {
	pc, err := m.providerConfig(spec.Provider)
	if err != nil {
		return err
	}
	if spec.URL == "" {
		return errors.New("hook url is required")
	}
	switch spec.Provider {
	case "github":
		return m.removeGitHubHook(ctx, pc, spec)
	case "gitlab":
		return m.removeGitLabHook(ctx, pc, spec)
	case "bitbucket":
		return m.removeBitbucketHook(ctx, pc, spec)
	}
	return fmt.Errorf("unsupported provider: %s", spec.Provider)
}

func (m *HookManager) providerConfig(provider string) (internal.ProviderConfig, error) {
	var pc internal.ProviderConfig
	switch provider {
	case "github":
		pc = m.cfg.GitHub
	case "gitlab":
		pc = m.cfg.GitLab
	case "bitbucket":
		pc = m.cfg.Bitbucket
	default:
		return pc, fmt.Errorf("unsupported provider: %s", provider)
	}
	if err := requireToken(provider, pc); err != nil {
		return pc, err
	}
	return pc, nil
}

func (m *HookManager) ensureGitHubHook(ctx context.Context, pc internal.ProviderConfig, spec HookSpec) (string, error) {
	hooksURL, err := githubHooksURL(pc.BaseURL, spec)
	if err != nil {
		return "", err
	}
	id, err := m.githubHookID(ctx, hooksURL, pc.Token, spec.URL)
	if err != nil {
		return "", err
	}
	if id != 0 {
		return strconv.FormatInt(id, 10), nil
	}
	config := map[string]interface{}{
		"url":          spec.URL,
		"content_type": "json",
	}
	if pc.Secret != "" {
		config["secret"] = pc.Secret
	}
	body := map[string]interface{}{
		"name":   "web",
		"active": true,
		"events": []string{"push", "pull_request"},
		"config": config,
	}
	var created struct {
		ID int64 `json:"id"`
	}
	if err := m.doJSON(ctx, http.MethodPost, hooksURL, pc.Token, body, &created); err != nil {
		return "", fmt.Errorf("github hook create failed: %w", err)
	}
	return strconv.FormatInt(created.ID, 10), nil
}

func (m *HookManager) removeGitHubHook(ctx context.Context, pc internal.ProviderConfig, spec HookSpec) error {
	hooksURL, err := githubHooksURL(pc.BaseURL, spec)
	if err != nil {
		return err
	}
	id, err := m.githubHookID(ctx, hooksURL, pc.Token, spec.URL)
	if err != nil {
		return err
	}
	if id == 0 {
		return nil
	}
	deleteURL := fmt.Sprintf("%s/%d", hooksURL, id)
	if err := m.doJSON(ctx, http.MethodDelete, deleteURL, pc.Token, nil, nil); err != nil {
		return fmt.Errorf("github hook delete failed: %w", err)
	}
	return nil
}

func (m *HookManager) githubHookID(ctx context.Context, hooksURL, token, targetURL string) (int64, error) {
	var hooks []struct {
		ID     int64 `json:"id"`
		Config struct {
			URL string `json:"url"`
		} `json:"config"`
	}
	if err := m.doJSON(ctx, http.MethodGet, hooksURL, token, nil, &hooks); err != nil {
		return 0, fmt.Errorf("github hook list failed: %w", err)
	}
	for _, hook := range hooks {
		if hook.Config.URL == targetURL {
			return hook.ID, nil
		}
	}
	return 0, nil
}

func githubHooksURL(base string, spec HookSpec) (string, error) {
	if spec.Owner == "" || spec.Repo == "" {
		return "", errors.New("github owner/repo missing")
	}
	baseURL := strings.TrimRight(base, "/")
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return fmt.Sprintf("%s/repos/%s/%s/hooks", baseURL, url.PathEscape(spec.Owner), url.PathEscape(spec.Repo)), nil
}

func (m *HookManager) ensureGitLabHook(ctx context.Context, pc internal.ProviderConfig, spec HookSpec) (string, error) {
	hooksURL, err := gitlabHooksURL(pc.BaseURL, spec)
	if err != nil {
		return "", err
	}
	id, err := m.gitlabHookID(ctx, hooksURL, pc.Token, spec.URL)
	if err != nil {
		return "", err
	}
	if id != 0 {
		return strconv.FormatInt(id, 10), nil
	}
	body := map[string]interface{}{
		"url":                     spec.URL,
		"push_events":             true,
		"merge_requests_events":   true,
		"enable_ssl_verification": true,
	}
	if pc.Secret != "" {
		body["token"] = pc.Secret
	}
	var created struct {
		ID int64 `json:"id"`
	}
	if err := m.doJSON(ctx, http.MethodPost, hooksURL, pc.Token, body, &created); err != nil {
		return "", fmt.Errorf("gitlab hook create failed: %w", err)
	}
	return strconv.FormatInt(created.ID, 10), nil
}

func (m *HookManager) removeGitLabHook(ctx context.Context, pc internal.ProviderConfig, spec HookSpec) error {
	hooksURL, err := gitlabHooksURL(pc.BaseURL, spec)
	if err != nil {
		return err
	}
	id, err := m.gitlabHookID(ctx, hooksURL, pc.Token, spec.URL)
	if err != nil {
		return err
	}
	if id == 0 {
		return nil
	}
	deleteURL := fmt.Sprintf("%s/%d", hooksURL, id)
	if err := m.doJSON(ctx, http.MethodDelete, deleteURL, pc.Token, nil, nil); err != nil {
		return fmt.Errorf("gitlab hook delete failed: %w", err)
	}
	return nil
}

func (m *HookManager) gitlabHookID(ctx context.Context, hooksURL, token, targetURL string) (int64, error) {
	var hooks []struct {
		ID  int64  `json:"id"`
		URL string `json:"url"`
	}
	if err := m.doJSON(ctx, http.MethodGet, hooksURL, token, nil, &hooks); err != nil {
		return 0, fmt.Errorf("gitlab hook list failed: %w", err)
	}
	for _, hook := range hooks {
		if hook.URL == targetURL {
			return hook.ID, nil
		}
	}
	return 0, nil
}

func gitlabHooksURL(base string, spec HookSpec) (string, error) {
	if spec.RepoID == "" {
		return "", errors.New("gitlab repo_id missing")
	}
	baseURL := strings.TrimRight(base, "/")
	if baseURL == "" {
		baseURL = "https://gitlab.com/api/v4"
	}
	return fmt.Sprintf("%s/projects/%s/hooks", baseURL, url.PathEscape(spec.RepoID)), nil
}

func (m *HookManager) ensureBitbucketHook(ctx context.Context, pc internal.ProviderConfig, spec HookSpec) (string, error) {
	hooksURL, err := bitbucketHooksURL(pc.BaseURL, spec)
	if err != nil {
		return "", err
	}
	uuid, err := m.bitbucketHookID(ctx, hooksURL, pc.Token, spec.URL)
	if err != nil {
		return "", err
	}
	if uuid != "" {
		return uuid, nil
	}
	body := map[string]interface{}{
		"description": "gitfeed",
		"url":         spec.URL,
		"active":      true,
		"events": []string{
			"repo:push",
			"pullrequest:created",
			"pullrequest:updated",
			"pullrequest:fulfilled",
		},
	}
	var created struct {
		UUID string `json:"uuid"`
	}
	if err := m.doJSON(ctx, http.MethodPost, hooksURL, pc.Token, body, &created); err != nil {
		return "", fmt.Errorf("bitbucket hook create failed: %w", err)
	}
	return created.UUID, nil
}

func (m *HookManager) removeBitbucketHook(ctx context.Context, pc internal.ProviderConfig, spec HookSpec) error {
	hooksURL, err := bitbucketHooksURL(pc.BaseURL, spec)
	if err != nil {
		return err
	}
	uuid, err := m.bitbucketHookID(ctx, hooksURL, pc.Token, spec.URL)
	if err != nil {
		return err
	}
	if uuid == "" {
		return nil
	}
	deleteURL := fmt.Sprintf("%s/%s", hooksURL, uuid)
	if err := m.doJSON(ctx, http.MethodDelete, deleteURL, pc.Token, nil, nil); err != nil {
		return fmt.Errorf("bitbucket hook delete failed: %w", err)
	}
	return nil
}

func (m *HookManager) bitbucketHookID(ctx context.Context, hooksURL, token, targetURL string) (string, error) {
	var payload struct {
		Values []struct {
			UUID string `json:"uuid"`
			URL  string `json:"url"`
		} `json:"values"`
	}
	if err := m.doJSON(ctx, http.MethodGet, hooksURL, token, nil, &payload); err != nil {
		return "", fmt.Errorf("bitbucket hook list failed: %w", err)
	}
	for _, hook := range payload.Values {
		if hook.URL == targetURL {
			return hook.UUID, nil
		}
	}
	return "", nil
}

func bitbucketHooksURL(base string, spec HookSpec) (string, error) {
	if spec.Owner == "" || spec.Repo == "" {
		return "", errors.New("bitbucket owner/repo missing")
	}
	baseURL := strings.TrimRight(base, "/")
	if baseURL == "" {
		baseURL = "https://api.bitbucket.org/2.0"
	}
	return fmt.Sprintf("%s/repositories/%s/%s/hooks", baseURL, url.PathEscape(spec.Owner), url.PathEscape(spec.Repo)), nil
}

// doJSON performs one authenticated API call, decoding the response into
// out when it is non-nil. Non-2xx responses become errors carrying the
// status and a truncated body.
func (m *HookManager) doJSON(ctx context.Context, method, endpoint, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s body=%s", resp.Status, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
