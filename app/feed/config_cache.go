package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/izotovlife/izotovlife.ru-sub000/app/links"
)

const DefaultMaxItems = 100

// ConfigCache holds the source definitions read from one YAML file per source.
type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		slog.Warn("Sources directory not found", "dir", cc.sourcesDir)
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		key := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(key)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source configuration loaded", "source", key, "enabled", config.Settings.Enabled, "max_items", config.Settings.MaxItems)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(key string) (*Config, error) {
	configFile := cc.getConfigFilePath(key)
	sourceConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	sourceConfig.Key = key
	if sourceConfig.Name == "" {
		sourceConfig.Name = key
	}

	if err := cc.validateConfig(sourceConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[sourceConfig.Key] = sourceConfig

	return sourceConfig, nil
}

func (cc *ConfigCache) GetConfig(key string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	sourceConfig, ok := cc.cache[key]
	if !ok {
		return nil, fmt.Errorf("source config with key '%s' not found", key)
	}
	return sourceConfig, nil
}

// GetConfigs returns all loaded sources ordered by key.
func (cc *ConfigCache) GetConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configs := make([]*Config, 0, len(cc.cache))
	for _, v := range cc.cache {
		configs = append(configs, v)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Key < configs[j].Key })
	return configs
}

func (cc *ConfigCache) GetEnabledConfigs() []*Config {
	enabled := make([]*Config, 0)
	for _, config := range cc.GetConfigs() {
		if config.Settings.Enabled {
			enabled = append(enabled, config)
		}
	}
	return enabled
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var sourceConfig Config
	if err := yaml.Unmarshal(data, &sourceConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	sourceConfig.URL = strings.TrimSpace(sourceConfig.URL)
	sourceConfig.Slug = strings.TrimSpace(sourceConfig.Slug)
	if sourceConfig.Settings.MaxItems == 0 {
		sourceConfig.Settings.MaxItems = DefaultMaxItems
	}

	return &sourceConfig, nil
}

func (cc *ConfigCache) validateConfig(sourceConfig *Config) error {
	if sourceConfig == nil {
		return fmt.Errorf("sourceConfig is nil")
	}

	requiredFields := map[string]string{
		"source key": sourceConfig.Key,
		"source URL": sourceConfig.URL,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if _, err := links.CanonicalLink(sourceConfig.URL); err != nil {
		return fmt.Errorf("invalid source URL: %w", err)
	}

	if sourceConfig.Settings.MaxItems < 0 {
		return fmt.Errorf("max items must be non-negative")
	}

	for i, filter := range sourceConfig.Filters {
		if !isFilterField(filter.Field) {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(key string) string {
	return filepath.Join(cc.sourcesDir, key+".yml")
}
