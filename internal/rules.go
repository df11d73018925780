package internal

import (
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/Knetic/govaluate"
	"github.com/PaesslerAG/jsonpath"
	"gopkg.in/yaml.v3"
)

// Rule routes matching events to one or more topics. When is a boolean
// expression over the delivery: payload fields are addressed by dotted
// paths ("pull_request.user.login", "commits[0].id"), with or without a
// leading "$.", the envelope contributes "provider", "event" and
// "request_id", and normalized deliveries contribute "record.action",
// "record.author" and the other canonical fields.
type Rule struct {
	When    string   `yaml:"when"`
	Emit    EmitList `yaml:"emit"`
	Drivers []string `yaml:"drivers"`
}

// EmitList accepts either a single topic or a list of topics in YAML.
type EmitList []string

func (e *EmitList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*e = EmitList{single}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*e = EmitList(many)
		return nil
	default:
		return fmt.Errorf("emit must be a string or a list of strings")
	}
}

// Match is one publish target a rule resolved to.
type Match struct {
	Topic   string
	Drivers []string
}

type compiledRule struct {
	when    string
	emit    EmitList
	drivers []string
	expr    *govaluate.EvaluableExpression
	paths   map[string]string
}

// RuleEngine evaluates compiled rules against events. In strict mode an
// evaluation failure aborts the delivery; otherwise it is logged and the
// rule is skipped. A missing payload field compares as nil and is not a
// failure in either mode.
type RuleEngine struct {
	rules  []compiledRule
	strict bool
	logger *log.Logger
}

var ruleFunctions = map[string]govaluate.ExpressionFunction{
	"contains": containsFunc,
	"like":     likeFunc,
	"prefix":   stringPairFunc(strings.HasPrefix),
	"suffix":   stringPairFunc(strings.HasSuffix),
}

// containsFunc matches substrings of a string or elements of an array.
func containsFunc(args ...interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("contains expects 2 arguments, got %d", len(args))
	}
	switch haystack := args[0].(type) {
	case string:
		needle, ok := args[1].(string)
		if !ok {
			return false, nil
		}
		return strings.Contains(haystack, needle), nil
	case []interface{}:
		for _, item := range haystack {
			if item == args[1] {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, nil
	}
}

// likeFunc matches a string against a SQL-style pattern where "%"
// stands for any run of characters.
func likeFunc(args ...interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("like expects 2 arguments, got %d", len(args))
	}
	value, ok := args[0].(string)
	if !ok {
		return false, nil
	}
	pattern, ok := args[1].(string)
	if !ok {
		return false, nil
	}
	return likeMatch(value, pattern), nil
}

func likeMatch(value, pattern string) bool {
	parts := strings.Split(pattern, "%")
	if len(parts) == 1 {
		return value == pattern
	}
	if !strings.HasPrefix(value, parts[0]) {
		return false
	}
	value = value[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(value, part)
		if idx < 0 {
			return false
		}
		value = value[idx+len(part):]
	}
	return strings.HasSuffix(value, parts[len(parts)-1])
}

func stringPairFunc(fn func(string, string) bool) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("expected 2 arguments, got %d", len(args))
		}
		left, ok := args[0].(string)
		if !ok {
			return false, nil
		}
		right, ok := args[1].(string)
		if !ok {
			return false, nil
		}
		return fn(left, right), nil
	}
}

func NewRuleEngine(cfg RulesConfig) (*RuleEngine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	rules := make([]compiledRule, 0, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		rewritten, paths := rewritePaths(rule.When)
		expr, err := govaluate.NewEvaluableExpressionWithFunctions(rewritten, ruleFunctions)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rule.When, err)
		}
		rules = append(rules, compiledRule{
			when:    rule.When,
			emit:    rule.Emit,
			drivers: rule.Drivers,
			expr:    expr,
			paths:   paths,
		})
	}

	return &RuleEngine{rules: rules, strict: cfg.Strict, logger: logger}, nil
}

// Evaluate returns the publish targets for the rules that match event.
func (r *RuleEngine) Evaluate(event *Event) ([]Match, error) {
	if r == nil || len(r.rules) == 0 {
		return nil, nil
	}

	root := ruleScope(event)
	flat := Flatten(root)

	var matches []Match
	for i, rule := range r.rules {
		params := make(map[string]interface{}, len(rule.paths))
		for param, path := range rule.paths {
			value, _ := resolvePath(flat, root, path)
			params[param] = value
		}

		result, err := rule.expr.Evaluate(params)
		if err != nil {
			if r.strict {
				return nil, fmt.Errorf("rule %d (%s): %w", i, rule.when, err)
			}
			r.logger.Printf("rule %d (%s) eval failed: %v", i, rule.when, err)
			continue
		}
		matched, ok := result.(bool)
		if !ok {
			if r.strict {
				return nil, fmt.Errorf("rule %d (%s): result is %T, want bool", i, rule.when, result)
			}
			r.logger.Printf("rule %d (%s) returned %T, want bool", i, rule.when, result)
			continue
		}
		if !matched {
			continue
		}
		for _, topic := range rule.emit {
			matches = append(matches, Match{Topic: topic, Drivers: rule.drivers})
		}
	}
	return matches, nil
}

// ruleScope merges the decoded payload with the envelope fields rules
// may reference. A normalized record contributes a "record" submap so
// rules can match on canonical fields regardless of provider.
func ruleScope(event *Event) map[string]interface{} {
	data := event.PayloadMap()
	root := make(map[string]interface{}, len(data)+4)
	for key, value := range data {
		root[key] = value
	}
	root["provider"] = event.Provider
	root["event"] = event.Name
	if event.RequestID != "" {
		root["request_id"] = event.RequestID
	}
	if event.Record != nil {
		root["record"] = map[string]interface{}{
			"request_id":  event.Record.RequestID,
			"author":      event.Record.Author,
			"action":      string(event.Record.Action),
			"from_branch": event.Record.FromBranch,
			"to_branch":   event.Record.ToBranch,
			"timestamp":   event.Record.Timestamp,
		}
	}
	return root
}

// resolvePath resolves a field path against the event scope. Explicit
// "$." paths go through the JSONPath engine; bare dotted paths use the
// flattened view first and fall back to JSONPath.
func resolvePath(flat, root map[string]interface{}, path string) (interface{}, bool) {
	if strings.HasPrefix(path, "$.") {
		if value, err := jsonpath.Get(path, root); err == nil {
			return value, true
		}
		if value, ok := flat[strings.TrimPrefix(path, "$.")]; ok {
			return value, true
		}
		return nil, false
	}
	if value, ok := flat[path]; ok {
		return value, true
	}
	value, err := jsonpath.Get("$."+path, root)
	if err != nil {
		return nil, false
	}
	return value, true
}

// rewritePaths replaces field paths in expr with generated parameter
// names that govaluate can evaluate, returning the rewritten expression
// and the parameter-to-path table. String literals are copied verbatim;
// bare function-call names and expression keywords are left alone.
func rewritePaths(expr string) (string, map[string]string) {
	var out strings.Builder
	paths := make(map[string]string)
	seen := make(map[string]string)

	runes := []rune(expr)
	for i := 0; i < len(runes); {
		ch := runes[i]
		if ch == '\'' || ch == '"' {
			i = copyLiteral(&out, runes, i)
			continue
		}
		if ch == '$' && i+1 < len(runes) && runes[i+1] == '.' {
			start := i
			i += 2
			for i < len(runes) && isPathRune(runes[i]) {
				i++
			}
			out.WriteString(paramFor(string(runes[start:i]), paths, seen))
			continue
		}
		if !isPathStart(ch) {
			out.WriteRune(ch)
			i++
			continue
		}

		start := i
		for i < len(runes) && isPathRune(runes[i]) {
			i++
		}
		token := string(runes[start:i])

		if isKeyword(token) || isCall(token, runes, i) {
			out.WriteString(token)
			continue
		}
		out.WriteString(paramFor(token, paths, seen))
	}
	return out.String(), paths
}

func copyLiteral(out *strings.Builder, runes []rune, i int) int {
	quote := runes[i]
	out.WriteRune(quote)
	i++
	for i < len(runes) {
		out.WriteRune(runes[i])
		if runes[i] == '\\' && i+1 < len(runes) {
			i++
			out.WriteRune(runes[i])
			i++
			continue
		}
		if runes[i] == quote {
			return i + 1
		}
		i++
	}
	return i
}

func isPathStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_'
}

func isPathRune(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) ||
		ch == '_' || ch == '.' || ch == '[' || ch == ']'
}

func isKeyword(token string) bool {
	switch token {
	case "true", "false", "in", "IN":
		return true
	}
	return false
}

// isCall reports whether the token at position i is immediately followed
// by an opening parenthesis, i.e. is a function name rather than a path.
func isCall(token string, runes []rune, i int) bool {
	if strings.ContainsAny(token, ".[") {
		return false
	}
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i < len(runes) && runes[i] == '('
}

func paramFor(path string, paths, seen map[string]string) string {
	if param, ok := seen[path]; ok {
		return param
	}
	param := fmt.Sprintf("p%d", len(seen))
	seen[path] = param
	paths[param] = path
	return param
}
