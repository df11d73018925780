package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoadConfigDefaults tests that the default values are applied correctly when loading a config.
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Providers.GitHub.Path != "/webhooks/github" {
		t.Fatalf("expected default github path, got %q", cfg.Providers.GitHub.Path)
	}
	if cfg.Providers.GitLab.Path != "/webhooks/gitlab" {
		t.Fatalf("expected default gitlab path, got %q", cfg.Providers.GitLab.Path)
	}
	if cfg.Providers.Bitbucket.Path != "/webhooks/bitbucket" {
		t.Fatalf("expected default bitbucket path, got %q", cfg.Providers.Bitbucket.Path)
	}
	if cfg.Feed.RecentLimit != 10 {
		t.Fatalf("expected default recent limit 10, got %d", cfg.Feed.RecentLimit)
	}
	if cfg.Feed.EventsPath != "/events" {
		t.Fatalf("expected default events path, got %q", cfg.Feed.EventsPath)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("expected default storage driver memory, got %q", cfg.Storage.Driver)
	}
	if cfg.Storage.Table != "events" {
		t.Fatalf("expected default storage table events, got %q", cfg.Storage.Table)
	}
	if cfg.Watermill.Driver != "gochannel" {
		t.Fatalf("expected default watermill driver, got %q", cfg.Watermill.Driver)
	}
	if cfg.Watermill.DefaultTopic != "feed.events" {
		t.Fatalf("expected default topic feed.events, got %q", cfg.Watermill.DefaultTopic)
	}
	if cfg.Watermill.GoChannel.OutputChannelBuffer != 64 {
		t.Fatalf("expected default gochannel output buffer, got %d", cfg.Watermill.GoChannel.OutputChannelBuffer)
	}
	if cfg.Watermill.PublishRetry.Attempts != 3 || cfg.Watermill.PublishRetry.DelayMS != 500 {
		t.Fatalf("expected default publish retry, got %+v", cfg.Watermill.PublishRetry)
	}
}

// TestLoadConfigExpandsEnv tests that environment variables in the file are expanded.
func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("GITFEED_TEST_SECRET", "hunter2")

	content := "providers:\n  github:\n    enabled: true\n    secret: ${GITFEED_TEST_SECRET}\n"
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Providers.GitHub.Secret != "hunter2" {
		t.Fatalf("expected expanded secret, got %q", cfg.Providers.GitHub.Secret)
	}
}

// TestLoadConfigInvalidRule tests that loading a config with an invalid rule returns an error.
func TestLoadConfigInvalidRule(t *testing.T) {
	content := "rules:\n  - when: action == \"opened\"\n"
	if _, err := LoadConfig(writeConfig(t, content)); err == nil {
		t.Fatalf("expected error for missing emit")
	}
}

// TestLoadConfigTrimsFields tests that the fields in a rule are trimmed correctly.
func TestLoadConfigTrimsFields(t *testing.T) {
	content := "rules:\n  - when: \"  action == \\\"opened\\\"  \"\n    emit: \"  pr.opened.ready  \"\n"
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Rules[0].When != "action == \"opened\"" {
		t.Fatalf("expected trimmed when, got %q", cfg.Rules[0].When)
	}
	if len(cfg.Rules[0].Emit) != 1 || cfg.Rules[0].Emit[0] != "pr.opened.ready" {
		t.Fatalf("expected trimmed emit, got %v", cfg.Rules[0].Emit)
	}
}

// TestLoadConfigEmitList tests that emit accepts both a scalar and a list.
func TestLoadConfigEmitList(t *testing.T) {
	content := "rules:\n" +
		"  - when: event == 'push'\n" +
		"    emit: push.events\n" +
		"  - when: event == 'pull_request'\n" +
		"    emit:\n" +
		"      - pr.events\n" +
		"      - audit.events\n"
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(cfg.Rules))
	}
	if len(cfg.Rules[0].Emit) != 1 || cfg.Rules[0].Emit[0] != "push.events" {
		t.Fatalf("unexpected scalar emit: %v", cfg.Rules[0].Emit)
	}
	if len(cfg.Rules[1].Emit) != 2 || cfg.Rules[1].Emit[1] != "audit.events" {
		t.Fatalf("unexpected list emit: %v", cfg.Rules[1].Emit)
	}
}

// TestLoadRulesConfig tests loading only the rules section of a file.
func TestLoadRulesConfig(t *testing.T) {
	content := "rules_strict: true\nrules:\n  - when: event == 'push'\n    emit: push.events\n"
	cfg, err := LoadRulesConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("load rules config: %v", err)
	}
	if !cfg.Strict {
		t.Fatal("expected strict to be set")
	}
	if len(cfg.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(cfg.Rules))
	}
}
