package policy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Action selects what a matching rule does to the prompt.
type Action string

const (
	ActionBlock  Action = "block"
	ActionRedact Action = "redact"
)

// Rule pairs a case-insensitive substring pattern with an action.
// Replacement is only consulted for redact rules.
type Rule struct {
	Pattern     string `json:"pattern"`
	Action      Action `json:"action"`
	Replacement string `json:"replacement,omitempty"`
}

// Outcome classifies an evaluation result.
type Outcome int

const (
	Allowed Outcome = iota
	Redacted
	Blocked
)

// Decision is the result of evaluating a prompt against the rule set.
// Text carries the forwardable prompt for Allowed and Redacted outcomes;
// Reason is set only when the prompt was blocked.
type Decision struct {
	Outcome Outcome
	Text    string
	Reason  string
}

var ErrNoRules = errors.New("policy rule list is empty")

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

// Engine evaluates prompts against a fixed, ordered rule list.
// The rule list is immutable after construction, so Evaluate is safe
// to call concurrently without synchronization.
type Engine struct {
	rules []compiledRule
}

// NewEngine compiles the rule list in the given order.
func NewEngine(rules []Rule) (*Engine, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}

	compiled := make([]compiledRule, 0, len(rules))
	for i, rule := range rules {
		if strings.TrimSpace(rule.Pattern) == "" {
			return nil, fmt.Errorf("rule %d: pattern is required", i)
		}
		switch rule.Action {
		case ActionBlock, ActionRedact:
		default:
			return nil, fmt.Errorf("rule %d: unknown action %q", i, rule.Action)
		}

		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(rule.Pattern))
		if err != nil {
			return nil, fmt.Errorf("rule %d: compile pattern %q: %w", i, rule.Pattern, err)
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}

	return &Engine{rules: compiled}, nil
}

// Evaluate checks text against the rule set. Block rules are checked
// first, in listed order, against the original text; the first match
// wins. Only if no block rule matches are redact rules applied, in
// listed order, each against the already-redacted text, so replacements
// accumulate over earlier replacements.
func (e *Engine) Evaluate(text string) Decision {
	for _, c := range e.rules {
		if c.rule.Action != ActionBlock {
			continue
		}
		if c.re.MatchString(text) {
			return Decision{
				Outcome: Blocked,
				Reason:  fmt.Sprintf("sensitive content detected in prompt (pattern %q)", c.rule.Pattern),
			}
		}
	}

	redacted := text
	changed := false
	for _, c := range e.rules {
		if c.rule.Action != ActionRedact {
			continue
		}
		next := c.re.ReplaceAllLiteralString(redacted, c.rule.Replacement)
		if next != redacted {
			changed = true
			redacted = next
		}
	}

	if changed {
		return Decision{Outcome: Redacted, Text: redacted}
	}
	return Decision{Outcome: Allowed, Text: text}
}

// Rules returns a copy of the engine's rule list.
func (e *Engine) Rules() []Rule {
	rules := make([]Rule, len(e.rules))
	for i, c := range e.rules {
		rules[i] = c.rule
	}
	return rules
}
