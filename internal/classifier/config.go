package classifier

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Thresholds are the tuning knobs of the decision procedure. The defaults were
// tuned by hand against sampled firehose traffic.
type Thresholds struct {
	// PositiveWeight is added once per distinct positive signal.
	PositiveWeight int `yaml:"positive_weight"`

	// HighConfidenceOverride excludes a high-confidence match whose context
	// score is at or below this value.
	HighConfidenceOverride int `yaml:"high_confidence_override"`

	// EntityMinScore is the lowest context score that lets an entity match in.
	EntityMinScore int `yaml:"entity_min_score"`

	// MediumFloor must be strictly exceeded for a medium-term match to be included.
	MediumFloor int `yaml:"medium_floor"`

	// MinMediumTerms is the number of distinct medium terms required.
	MinMediumTerms int `yaml:"min_medium_terms"`
}

// WeightedPattern is a negative context signal. Weight must be negative.
type WeightedPattern struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Weight  int    `yaml:"weight"`
}

// Config is the data behind a Classifier: labels, thresholds and term lists.
type Config struct {
	// TrustedLabel is the author label that marks the deployment's own users.
	TrustedLabel string `yaml:"trusted_label"`

	Thresholds Thresholds `yaml:"thresholds"`

	HighConfidence  []string          `yaml:"high_confidence"`
	Entities        []string          `yaml:"entities"`
	Medium          []string          `yaml:"medium"`
	PositiveSignals []string          `yaml:"positive_signals"`
	NegativeSignals []WeightedPattern `yaml:"negative_signals"`
}

// DefaultConfig returns the built-in term lists and thresholds.
func DefaultConfig() Config {
	return Config{
		TrustedLabel: DefaultTrustedLabel,
		Thresholds: Thresholds{
			PositiveWeight:         2,
			HighConfidenceOverride: -4,
			EntityMinScore:         0,
			MediumFloor:            -3,
			MinMediumTerms:         2,
		},
		HighConfidence:  clone(defaultHighConfidence),
		Entities:        clone(defaultEntities),
		Medium:          clone(defaultMedium),
		PositiveSignals: clone(defaultPositiveSignals),
		NegativeSignals: append([]WeightedPattern(nil), defaultNegativeSignals...),
	}
}

// LoadConfig reads a YAML file and layers it over DefaultConfig. Lists present
// in the file replace the defaults wholesale; absent keys keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading classifier config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing classifier config: %w", err)
	}
	if _, err := compile(cfg); err != nil {
		return Config{}, fmt.Errorf("validating classifier config: %w", err)
	}
	return cfg, nil
}

type term struct {
	text string
	re   *regexp.Regexp
}

type negative struct {
	name   string
	re     *regexp.Regexp
	weight int
}

type compiled struct {
	trustedLabel string
	thresholds   Thresholds
	high         []term
	entities     []term
	medium       []term
	positive     []term
	negatives    []negative
}

func compile(cfg Config) (*compiled, error) {
	if cfg.Thresholds.MinMediumTerms < 1 {
		return nil, fmt.Errorf("thresholds.min_medium_terms must be at least 1")
	}
	if cfg.Thresholds.PositiveWeight < 0 {
		return nil, fmt.Errorf("thresholds.positive_weight must not be negative")
	}

	c := &compiled{
		trustedLabel: cfg.TrustedLabel,
		thresholds:   cfg.Thresholds,
	}

	var err error
	if c.high, err = compileTerms(cfg.HighConfidence); err != nil {
		return nil, fmt.Errorf("high_confidence: %w", err)
	}
	if c.entities, err = compileTerms(cfg.Entities); err != nil {
		return nil, fmt.Errorf("entities: %w", err)
	}
	if c.medium, err = compileTerms(cfg.Medium); err != nil {
		return nil, fmt.Errorf("medium: %w", err)
	}
	if c.positive, err = compileTerms(cfg.PositiveSignals); err != nil {
		return nil, fmt.Errorf("positive_signals: %w", err)
	}

	for i, p := range cfg.NegativeSignals {
		if p.Weight >= 0 {
			return nil, fmt.Errorf("negative_signals[%d] (%s): weight must be negative, got %d", i, p.Name, p.Weight)
		}
		re, err := regexp.Compile(`(?i)` + p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("negative_signals[%d] (%s): %w", i, p.Name, err)
		}
		c.negatives = append(c.negatives, negative{name: p.Name, re: re, weight: p.Weight})
	}

	return c, nil
}

// compileTerms builds one matcher per distinct case-folded term. A term may
// list inflections separated by "|" ("joint|joints"); they share one matcher
// and count as a single term, reported by the first variant. Boundaries are
// any non-letter, non-digit rune so hashtags and hyphenated phrases match the
// same way plain words do.
func compileTerms(list []string) ([]term, error) {
	seen := make(map[string]struct{}, len(list))
	terms := make([]term, 0, len(list))
	for _, raw := range list {
		var variants []string
		for _, v := range strings.Split(raw, "|") {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			variants = append(variants, regexp.QuoteMeta(v))
		}
		if len(variants) == 0 {
			continue
		}

		text := strings.ToLower(strings.TrimSpace(strings.Split(raw, "|")[0]))
		if text == "" {
			text = variants[0]
		}
		re, err := regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}_])(?:` + strings.Join(variants, "|") + `)(?:$|[^\p{L}\p{N}_])`)
		if err != nil {
			return nil, fmt.Errorf("term %q: %w", raw, err)
		}
		terms = append(terms, term{text: text, re: re})
	}
	return terms, nil
}

// matchTerms returns the distinct terms present in text, in list order.
func matchTerms(terms []term, text string) []string {
	var out []string
	for _, t := range terms {
		if t.re.MatchString(text) {
			out = append(out, t.text)
		}
	}
	return out
}

func (c *compiled) contextScore(text string) int {
	score := len(matchTerms(c.positive, text)) * c.thresholds.PositiveWeight
	for _, n := range c.negatives {
		if n.re.MatchString(text) {
			score += n.weight
		}
	}
	return score
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
