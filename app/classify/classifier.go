package classify

import (
	"strings"

	"github.com/samber/lo"
)

const (
	DefaultCategory      = "News feed"
	UnclassifiedCategory = "Unclassified"
)

type Rule struct {
	Name     string
	Keywords []string
}

type Config struct {
	Default      string
	Unclassified string
	Rules        []Rule
}

// Classifier assigns a category by keyword. Rules are tried in declaration
// order and the first rule with a matching keyword wins.
type Classifier struct {
	defaultName  string
	unclassified string
	rules        []Rule
}

func NewClassifier(cfg Config) *Classifier {
	rules := make([]Rule, 0, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		keywords := lo.Uniq(lo.FilterMap(rule.Keywords, func(k string, _ int) (string, bool) {
			k = strings.ToLower(strings.TrimSpace(k))
			return k, k != ""
		}))
		if rule.Name == "" || len(keywords) == 0 {
			continue
		}
		rules = append(rules, Rule{Name: rule.Name, Keywords: keywords})
	}

	c := &Classifier{
		defaultName:  cfg.Default,
		unclassified: cfg.Unclassified,
		rules:        rules,
	}
	if c.defaultName == "" {
		c.defaultName = DefaultCategory
	}
	if c.unclassified == "" {
		c.unclassified = UnclassifiedCategory
	}
	return c
}

// Classify returns the category name for text, or the unclassified bucket.
func (c *Classifier) Classify(text string) string {
	if name, ok := c.Match(text); ok {
		return name
	}
	return c.unclassified
}

func (c *Classifier) Match(text string) (string, bool) {
	text = strings.ToLower(text)
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	for _, rule := range c.rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(text, keyword) {
				return rule.Name, true
			}
		}
	}
	return "", false
}

// Default is the bucket new items land in when no hint is available.
func (c *Classifier) Default() string {
	return c.defaultName
}

func (c *Classifier) Unclassified() string {
	return c.unclassified
}
