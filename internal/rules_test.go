package internal

import (
	"bytes"
	"log"
	"testing"

	"gitfeed/pkg/feed"
)

func newTestEngine(t *testing.T, cfg RulesConfig) *RuleEngine {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = log.New(&bytes.Buffer{}, "", 0)
	}
	engine, err := NewRuleEngine(cfg)
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}
	return engine
}

func evaluate(t *testing.T, engine *RuleEngine, event *Event) []Match {
	t.Helper()
	matches, err := engine.Evaluate(event)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return matches
}

// TestRuleEngineEvaluate tests that the rule engine correctly evaluates a simple rule.
func TestRuleEngineEvaluate(t *testing.T) {
	engine := newTestEngine(t, RulesConfig{
		Rules: []Rule{
			{When: "action == \"opened\"", Emit: EmitList{"pr.opened"}},
			{When: "action == \"closed\" && merged == true", Emit: EmitList{"pr.merged"}},
		},
	})

	event := &Event{
		Provider:   "github",
		Name:       "pull_request",
		RawPayload: []byte(`{"action":"opened","merged":false}`),
	}

	matches := evaluate(t, engine, event)
	if len(matches) != 1 {
		t.Fatalf("expected 1 topic, got %d", len(matches))
	}
	if matches[0].Topic != "pr.opened" {
		t.Fatalf("expected topic pr.opened, got %q", matches[0].Topic)
	}
}

// TestRuleEngineEvaluateMissingField tests that a rule over an absent field
// does not match and does not fail.
func TestRuleEngineEvaluateMissingField(t *testing.T) {
	engine := newTestEngine(t, RulesConfig{
		Rules: []Rule{
			{When: "missing == true", Emit: EmitList{"never"}},
		},
	})

	event := &Event{
		Provider:   "github",
		Name:       "push",
		RawPayload: []byte(`{}`),
	}

	matches := evaluate(t, engine, event)
	if len(matches) != 0 {
		t.Fatalf("expected no topics, got %d", len(matches))
	}
}

// TestRuleEngineWithDrivers tests that driver restrictions are carried on matches.
func TestRuleEngineWithDrivers(t *testing.T) {
	engine := newTestEngine(t, RulesConfig{
		Rules: []Rule{
			{When: "action == \"opened\"", Emit: EmitList{"pr.opened"}, Drivers: []string{"amqp", "http"}},
		},
	})

	event := &Event{
		Provider:   "github",
		Name:       "pull_request",
		RawPayload: []byte(`{"action":"opened"}`),
	}

	matches := evaluate(t, engine, event)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if len(matches[0].Drivers) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(matches[0].Drivers))
	}
}

// TestRuleEngineJSONPathDot tests a "$." path with dot notation.
func TestRuleEngineJSONPathDot(t *testing.T) {
	engine := newTestEngine(t, RulesConfig{
		Rules: []Rule{
			{When: "$.pull_request.draft == false", Emit: EmitList{"pr.opened"}},
		},
	})

	event := &Event{
		Provider:   "github",
		Name:       "pull_request",
		RawPayload: []byte(`{"pull_request":{"draft":false}}`),
	}

	matches := evaluate(t, engine, event)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
}

// TestRuleEngineJSONPathIndex tests a "$." path with an array index.
func TestRuleEngineJSONPathIndex(t *testing.T) {
	engine := newTestEngine(t, RulesConfig{
		Rules: []Rule{
			{When: "$.commits[0].distinct == true", Emit: EmitList{"push.distinct"}},
		},
	})

	event := &Event{
		Provider:   "github",
		Name:       "push",
		RawPayload: []byte(`{"commits":[{"distinct":true},{"distinct":false}]}`),
	}

	matches := evaluate(t, engine, event)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
}

// TestRuleEngineBarePaths tests bare dotted and indexed paths.
func TestRuleEngineBarePaths(t *testing.T) {
	engine := newTestEngine(t, RulesConfig{
		Rules: []Rule{
			{When: "action == \"opened\" && pull_request.draft == false", Emit: EmitList{"pr.opened"}},
			{When: "commits[0].distinct == true", Emit: EmitList{"push.distinct"}},
		},
	})

	event := &Event{
		Provider:   "github",
		Name:       "pull_request",
		RawPayload: []byte(`{"action":"opened","pull_request":{"draft":false},"commits":[{"distinct":true}]}`),
	}

	matches := evaluate(t, engine, event)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
}

// TestRuleEngineEnvelopeFields tests that rules can reference provider and event.
func TestRuleEngineEnvelopeFields(t *testing.T) {
	engine := newTestEngine(t, RulesConfig{
		Rules: []Rule{
			{When: "provider == 'github' && event == 'push'", Emit: EmitList{"github.push"}},
			{When: "provider == 'gitlab'", Emit: EmitList{"never"}},
		},
	})

	event := &Event{
		Provider:   "github",
		Name:       "push",
		RawPayload: []byte(`{"ref":"refs/heads/main"}`),
	}

	matches := evaluate(t, engine, event)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Topic != "github.push" {
		t.Fatalf("expected topic github.push, got %q", matches[0].Topic)
	}
}

// TestRuleEngineEmitList tests that one matching rule fans out to every emit topic.
func TestRuleEngineEmitList(t *testing.T) {
	engine := newTestEngine(t, RulesConfig{
		Rules: []Rule{
			{When: "event == 'push'", Emit: EmitList{"audit.push", "notify.push"}},
		},
	})

	event := &Event{
		Provider:   "github",
		Name:       "push",
		RawPayload: []byte(`{}`),
	}

	matches := evaluate(t, engine, event)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Topic != "audit.push" || matches[1].Topic != "notify.push" {
		t.Fatalf("unexpected topics: %q, %q", matches[0].Topic, matches[1].Topic)
	}
}

// TestRuleEngineFunctions tests the contains, like, prefix and suffix helpers.
func TestRuleEngineFunctions(t *testing.T) {
	engine := newTestEngine(t, RulesConfig{
		Rules: []Rule{
			{When: `contains(labels, "bug")`, Emit: EmitList{"label.bug"}},
			{When: `like(ref, "refs/heads/%")`, Emit: EmitList{"branch.push"}},
			{When: `prefix(ref, "refs/tags/")`, Emit: EmitList{"never"}},
			{When: `suffix(ref, "/main")`, Emit: EmitList{"main.push"}},
		},
	})

	event := &Event{
		Provider:   "github",
		Name:       "push",
		RawPayload: []byte(`{"labels":["bug","ui"],"ref":"refs/heads/main"}`),
	}

	matches := evaluate(t, engine, event)
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
}

// TestRuleEngineRecordFields tests that normalized deliveries expose the
// canonical record under the "record" prefix.
func TestRuleEngineRecordFields(t *testing.T) {
	engine := newTestEngine(t, RulesConfig{
		Rules: []Rule{
			{When: "record.action == 'MERGE'", Emit: EmitList{"feed.merges"}},
			{When: "record.to_branch == 'main' && event == 'push'", Emit: EmitList{"never"}},
		},
	})

	event := &Event{
		Provider:  "github",
		Name:      "pull_request",
		RequestID: "42",
		Record: &feed.Record{
			RequestID: "42",
			Author:    "octocat",
			Action:    feed.ActionMerge,
			ToBranch:  "main",
		},
		RawPayload: []byte(`{"action":"closed"}`),
	}

	matches := evaluate(t, engine, event)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Topic != "feed.merges" {
		t.Fatalf("expected topic feed.merges, got %q", matches[0].Topic)
	}
}

// TestRuleEngineRecordFieldsAbsent tests that record paths resolve to nil
// for deliveries without a normalized record.
func TestRuleEngineRecordFieldsAbsent(t *testing.T) {
	engine := newTestEngine(t, RulesConfig{
		Rules: []Rule{
			{When: "record.action == 'PUSH'", Emit: EmitList{"never"}},
		},
	})

	event := &Event{
		Provider:   "github",
		Name:       "ping",
		RawPayload: []byte(`{"zen":"Design for failure."}`),
	}

	matches := evaluate(t, engine, event)
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %d", len(matches))
	}
}

// TestRuleEngineLiteralWithDots tests that dotted paths inside string
// literals are not rewritten.
func TestRuleEngineLiteralWithDots(t *testing.T) {
	engine := newTestEngine(t, RulesConfig{
		Rules: []Rule{
			{When: "ref == 'refs/heads/release.1'", Emit: EmitList{"release.push"}},
		},
	})

	event := &Event{
		Provider:   "github",
		Name:       "push",
		RawPayload: []byte(`{"ref":"refs/heads/release.1"}`),
	}

	matches := evaluate(t, engine, event)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
}

// TestRuleEngineArrayLength tests the synthesized length key for arrays.
func TestRuleEngineArrayLength(t *testing.T) {
	engine := newTestEngine(t, RulesConfig{
		Rules: []Rule{
			{When: "commits.length > 1", Emit: EmitList{"push.multi"}},
		},
	})

	event := &Event{
		Provider:   "github",
		Name:       "push",
		RawPayload: []byte(`{"commits":[{"id":"a"},{"id":"b"}]}`),
	}

	matches := evaluate(t, engine, event)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
}

// TestRuleEngineStrictTypeError tests that strict mode surfaces evaluation
// failures instead of skipping the rule.
func TestRuleEngineStrictTypeError(t *testing.T) {
	cfg := RulesConfig{
		Rules: []Rule{
			{When: "missing_field > 5", Emit: EmitList{"never"}},
		},
	}
	event := &Event{
		Provider:   "github",
		Name:       "push",
		RawPayload: []byte(`{}`),
	}

	engine := newTestEngine(t, cfg)
	matches := evaluate(t, engine, event)
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %d", len(matches))
	}

	cfg.Strict = true
	strictEngine := newTestEngine(t, cfg)
	if _, err := strictEngine.Evaluate(event); err == nil {
		t.Fatal("expected strict mode to return the evaluation error")
	}
}

// TestRewritePaths tests the path-to-parameter rewriting directly.
func TestRewritePaths(t *testing.T) {
	rewritten, paths := rewritePaths(`a.b == 'c.d' && contains(e, "f") && a.b == true`)

	want := `p0 == 'c.d' && contains(p1, "f") && p0 == true`
	if rewritten != want {
		t.Fatalf("unexpected rewrite: %q", rewritten)
	}
	if paths["p0"] != "a.b" || paths["p1"] != "e" {
		t.Fatalf("unexpected path table: %v", paths)
	}
}
