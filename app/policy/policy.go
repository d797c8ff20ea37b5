package policy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/izotovlife/izotovlife.ru-sub000/app/classify"
	"github.com/izotovlife/izotovlife.ru-sub000/app/fetcher"
	"github.com/izotovlife/izotovlife.ru-sub000/app/quality"
	"gopkg.in/yaml.v3"
)

//go:embed default_policy.yml
var defaultPolicy []byte

// Policy is the fetch, quality and category configuration shared by all commands.
type Policy struct {
	Fetch      Fetch      `yaml:"fetch"`
	Quality    Quality    `yaml:"quality"`
	Categories Categories `yaml:"categories"`
}

type Fetch struct {
	ConnectTimeout   time.Duration          `yaml:"connect_timeout"`
	ReadTimeout      time.Duration          `yaml:"read_timeout"`
	Retries          *int                   `yaml:"retries"`
	Backoff          time.Duration          `yaml:"backoff"`
	MaxBackoff       time.Duration          `yaml:"max_backoff"`
	ReadTimeoutBonus time.Duration          `yaml:"read_timeout_bonus"`
	MaxBodyBytes     int64                  `yaml:"max_body_bytes"`
	Domains          map[string]FetchDomain `yaml:"domains"`
}

type FetchDomain struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	Retries        *int          `yaml:"retries"`
}

type Quality struct {
	MinChars     *int                   `yaml:"min_chars"`
	MinWords     *int                   `yaml:"min_words"`
	RequireImage bool                   `yaml:"require_image"`
	Placeholder  string                 `yaml:"placeholder"`
	Blocklist    []string               `yaml:"blocklist"`
	Domains      map[string]QualityRule `yaml:"domains"`
}

type QualityRule struct {
	MinChars     *int  `yaml:"min_chars"`
	MinWords     *int  `yaml:"min_words"`
	RequireImage *bool `yaml:"require_image"`
}

type Categories struct {
	Default      string         `yaml:"default"`
	Unclassified string         `yaml:"unclassified"`
	Rules        []CategoryRule `yaml:"rules"`
}

type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Default returns the built-in policy.
func Default() (*Policy, error) {
	return Parse(defaultPolicy)
}

// Load reads the policy file at path, or the built-in policy when path is empty.
func Load(path string) (*Policy, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid policy file %s: %w", path, err)
	}
	return p, nil
}

func Parse(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	p.setDefaults()

	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Policy) setDefaults() {
	if p.Categories.Default == "" {
		p.Categories.Default = classify.DefaultCategory
	}
	if p.Categories.Unclassified == "" {
		p.Categories.Unclassified = classify.UnclassifiedCategory
	}
	if p.Quality.Placeholder == "" {
		p.Quality.Placeholder = quality.DefaultPlaceholder
	}
}

func (p *Policy) validate() error {
	f := p.Fetch
	if f.ConnectTimeout < 0 || f.ReadTimeout < 0 || f.Backoff < 0 || f.MaxBackoff < 0 || f.ReadTimeoutBonus < 0 {
		return fmt.Errorf("fetch durations must be non-negative")
	}
	if f.Retries != nil && *f.Retries < 0 {
		return fmt.Errorf("fetch retries must be non-negative")
	}
	for domain, d := range f.Domains {
		if d.Retries != nil && *d.Retries < 0 {
			return fmt.Errorf("fetch retries for %s must be non-negative", domain)
		}
	}

	q := p.Quality
	if (q.MinChars != nil && *q.MinChars < 0) || (q.MinWords != nil && *q.MinWords < 0) {
		return fmt.Errorf("quality thresholds must be non-negative")
	}

	seen := make(map[string]bool, len(p.Categories.Rules))
	for i, rule := range p.Categories.Rules {
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			return fmt.Errorf("category rule at index %d has no name", i)
		}
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("category %s has no keywords", name)
		}
		if seen[strings.ToLower(name)] {
			return fmt.Errorf("category %s is declared twice", name)
		}
		seen[strings.ToLower(name)] = true
	}
	return nil
}

// FetcherConfig converts the fetch section; unset values keep the fetcher defaults.
func (p *Policy) FetcherConfig(userAgent string) fetcher.Config {
	cfg := fetcher.DefaultConfig()
	f := p.Fetch

	if f.ConnectTimeout > 0 {
		cfg.Default.ConnectTimeout = f.ConnectTimeout
	}
	if f.ReadTimeout > 0 {
		cfg.Default.ReadTimeout = f.ReadTimeout
	}
	if f.Retries != nil {
		cfg.Default.Retries = *f.Retries
	}
	if f.Backoff > 0 {
		cfg.Backoff = f.Backoff
	}
	if f.MaxBackoff > 0 {
		cfg.MaxBackoff = f.MaxBackoff
	}
	if f.ReadTimeoutBonus > 0 {
		cfg.ReadTimeoutBonus = f.ReadTimeoutBonus
	}
	if f.MaxBodyBytes > 0 {
		cfg.MaxBodyBytes = f.MaxBodyBytes
	}

	if len(f.Domains) > 0 {
		domains := make(map[string]fetcher.DomainPolicy, len(f.Domains))
		for domain, d := range f.Domains {
			domains[domain] = fetcher.DomainPolicy{
				ConnectTimeout: d.ConnectTimeout,
				ReadTimeout:    d.ReadTimeout,
				Retries:        d.Retries,
			}
		}
		cfg.Domains = domains
	}

	cfg.UserAgent = userAgent
	return cfg
}

func (p *Policy) GateConfig(allowEmpty bool) quality.Config {
	cfg := quality.DefaultConfig()
	q := p.Quality

	if q.MinChars != nil {
		cfg.MinChars = *q.MinChars
	}
	if q.MinWords != nil {
		cfg.MinWords = *q.MinWords
	}
	cfg.RequireImage = q.RequireImage
	cfg.Placeholder = q.Placeholder
	cfg.Blocklist = q.Blocklist
	cfg.AllowEmpty = allowEmpty

	if len(q.Domains) > 0 {
		domains := make(map[string]quality.DomainRule, len(q.Domains))
		for domain, rule := range q.Domains {
			domains[domain] = quality.DomainRule{
				MinChars:     rule.MinChars,
				MinWords:     rule.MinWords,
				RequireImage: rule.RequireImage,
			}
		}
		cfg.Domains = domains
	}
	return cfg
}

func (p *Policy) ClassifierConfig() classify.Config {
	rules := make([]classify.Rule, 0, len(p.Categories.Rules))
	for _, rule := range p.Categories.Rules {
		rules = append(rules, classify.Rule{Name: strings.TrimSpace(rule.Name), Keywords: rule.Keywords})
	}
	return classify.Config{
		Default:      p.Categories.Default,
		Unclassified: p.Categories.Unclassified,
		Rules:        rules,
	}
}
