// Package classifier decides whether a post belongs in the feed.
//
// Classification is a pure function of the author label and the post text.
// The policy is an ordered list of rules; the first rule that reaches a
// decision wins and reports why through a Reason.
package classifier

import (
	"fmt"
	"strings"
)

// Reason explains a classification decision.
type Reason string

const (
	ReasonTrustedAuthor       Reason = "trusted_author"
	ReasonNoText              Reason = "no_text"
	ReasonHighConfidence      Reason = "high_confidence"
	ReasonContextOverride     Reason = "context_override"
	ReasonEntityWithContext   Reason = "entity_with_context"
	ReasonEntityNoContext     Reason = "entity_no_context"
	ReasonMultiMedium         Reason = "multi_medium"
	ReasonMediumFalsePositive Reason = "medium_false_positive"
	ReasonNoMatch             Reason = "no_match"
)

// Result is the outcome of classifying a single post.
type Result struct {
	Include      bool
	Reason       Reason
	ContextScore int
}

// Rule is one step of the decision procedure. Apply returns ok=false when the
// rule has no opinion and evaluation should continue with the next rule.
type Rule struct {
	Name  string
	Apply func(e *Evaluation) (res Result, ok bool)
}

// Classifier evaluates posts against a compiled term configuration.
type Classifier struct {
	cfg   *compiled
	rules []Rule
}

// New compiles cfg and returns a Classifier. When no rules are given the
// default ordered policy from DefaultRules is used.
func New(cfg Config, rules ...Rule) (*Classifier, error) {
	c, err := compile(cfg)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	for i, r := range rules {
		if r.Apply == nil {
			return nil, fmt.Errorf("rule %d (%s): apply func is nil", i, r.Name)
		}
	}
	return &Classifier{cfg: c, rules: rules}, nil
}

// MustDefault returns a Classifier built from DefaultConfig. It panics if the
// built-in configuration fails to compile.
func MustDefault() *Classifier {
	c, err := New(DefaultConfig())
	if err != nil {
		panic(fmt.Sprintf("classifier: default config: %v", err))
	}
	return c
}

// TrustedLabel returns the author label that short-circuits classification.
func (c *Classifier) TrustedLabel() string {
	return c.cfg.trustedLabel
}

// Classify runs the rule list against a single post.
func (c *Classifier) Classify(authorLabel, text string) Result {
	e := &Evaluation{
		AuthorLabel: authorLabel,
		Text:        text,
		cfg:         c.cfg,
	}
	for _, r := range c.rules {
		if res, ok := r.Apply(e); ok {
			return res
		}
	}
	return Result{Include: false, Reason: ReasonNoMatch, ContextScore: e.ContextScore()}
}

// Evaluation carries a single post through the rule list. Match sets and the
// context score are computed on first use and cached.
type Evaluation struct {
	AuthorLabel string
	Text        string

	cfg    *compiled
	score  *int
	high   []string
	entity []string
	medium []string
	seen   uint8
}

const (
	seenHigh uint8 = 1 << iota
	seenEntity
	seenMedium
)

// Thresholds returns the tuning parameters in effect.
func (e *Evaluation) Thresholds() Thresholds {
	return e.cfg.thresholds
}

// HasText reports whether the post carries any non-whitespace text.
func (e *Evaluation) HasText() bool {
	return strings.TrimSpace(e.Text) != ""
}

// IsTrustedAuthor reports whether the author label marks the deployment's
// own origin.
func (e *Evaluation) IsTrustedAuthor() bool {
	return e.cfg.trustedLabel != "" && e.AuthorLabel == e.cfg.trustedLabel
}

// HighConfidenceMatches returns the distinct high-confidence terms in the text.
func (e *Evaluation) HighConfidenceMatches() []string {
	if e.seen&seenHigh == 0 {
		e.high = matchTerms(e.cfg.high, e.Text)
		e.seen |= seenHigh
	}
	return e.high
}

// EntityMatches returns the distinct ambiguous entity names in the text.
func (e *Evaluation) EntityMatches() []string {
	if e.seen&seenEntity == 0 {
		e.entity = matchTerms(e.cfg.entities, e.Text)
		e.seen |= seenEntity
	}
	return e.entity
}

// MediumMatches returns the distinct medium-confidence terms in the text.
func (e *Evaluation) MediumMatches() []string {
	if e.seen&seenMedium == 0 {
		e.medium = matchTerms(e.cfg.medium, e.Text)
		e.seen |= seenMedium
	}
	return e.medium
}

// ContextScore returns the weighted tally of positive and negative signals.
func (e *Evaluation) ContextScore() int {
	if e.score == nil {
		s := e.cfg.contextScore(e.Text)
		e.score = &s
	}
	return *e.score
}
