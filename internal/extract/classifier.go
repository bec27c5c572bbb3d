package extract

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abelbrown/intelbrief/internal/model"
)

//go:embed rules.yaml
var rulesYAML []byte

type rulesFile struct {
	Kinds []struct {
		Kind     string   `yaml:"kind"`
		Patterns []string `yaml:"patterns"`
		Tags     []string `yaml:"tags"`
	} `yaml:"kinds"`
	KeywordTags map[string][]string `yaml:"keyword_tags"`
}

// Rule maps one event kind to the patterns that select it.
type Rule struct {
	Kind     model.EventKind
	Patterns []*regexp.Regexp
	Tags     []string
}

// Classifier assigns an event kind to text by first match over an ordered
// rule table. Immutable after construction.
type Classifier struct {
	rules       []Rule
	keywordTags map[string][]string
	tagOrder    []string
}

// NewClassifier returns a classifier over the built-in rule table.
// It panics if the embedded table is malformed.
func NewClassifier() *Classifier {
	c, err := ParseRules(rulesYAML)
	if err != nil {
		panic(fmt.Sprintf("load rules.yaml: %v", err))
	}
	return c
}

// ParseRules builds a classifier from a YAML rule table.
func ParseRules(data []byte) (*Classifier, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(f.Kinds) == 0 {
		return nil, fmt.Errorf("parse rules: no kinds")
	}

	c := &Classifier{keywordTags: f.KeywordTags}
	for _, k := range f.Kinds {
		kind, err := model.ParseEventKind(k.Kind)
		if err != nil {
			return nil, fmt.Errorf("parse rules: %w", err)
		}
		rule := Rule{Kind: kind, Tags: k.Tags}
		for _, p := range k.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("parse rules: kind %s: %w", kind, err)
			}
			rule.Patterns = append(rule.Patterns, re)
		}
		c.rules = append(c.rules, rule)
	}
	for tag := range c.keywordTags {
		c.tagOrder = append(c.tagOrder, tag)
	}
	sort.Strings(c.tagOrder)
	return c, nil
}

// Rules returns the rule table in evaluation order.
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// Classify returns the first kind whose patterns match text.
func (c *Classifier) Classify(text string) (model.EventKind, bool) {
	for _, r := range c.rules {
		for _, re := range r.Patterns {
			if re.MatchString(text) {
				return r.Kind, true
			}
		}
	}
	return "", false
}

// ImpactTags returns the sorted, distinct impact tags for an event of kind
// whose content is text.
func (c *Classifier) ImpactTags(kind model.EventKind, content string) []string {
	seen := make(map[string]bool)
	for _, r := range c.rules {
		if r.Kind == kind {
			for _, t := range r.Tags {
				seen[t] = true
			}
			break
		}
	}

	lower := strings.ToLower(content)
	for _, tag := range c.tagOrder {
		for _, kw := range c.keywordTags[tag] {
			if strings.Contains(lower, kw) {
				seen[tag] = true
				break
			}
		}
	}

	if len(seen) == 0 {
		return nil
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
