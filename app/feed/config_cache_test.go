package feed

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigCacheLoadValidConfig(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "tass.yml", `
name: "ТАСС"
url: "https://tass.ru/rss/v2.xml"
slug: "tass"
category: "Политика"

settings:
  enabled: true
  max_items: 25

filters:
  - field: "title"
    excludes:
      - "реклама"
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 1 {
		t.Errorf("Expected 1 source config, got %d", configCache.GetConfigCount())
	}

	sourceConfig, err := configCache.GetConfig("tass")
	if err != nil {
		t.Fatal(err)
	}

	if sourceConfig.Key != "tass" {
		t.Errorf("Expected key 'tass', got '%s'", sourceConfig.Key)
	}
	if sourceConfig.Name != "ТАСС" {
		t.Errorf("Expected name 'ТАСС', got '%s'", sourceConfig.Name)
	}
	if sourceConfig.URL != "https://tass.ru/rss/v2.xml" {
		t.Errorf("Expected URL 'https://tass.ru/rss/v2.xml', got '%s'", sourceConfig.URL)
	}
	if sourceConfig.Slug != "tass" {
		t.Errorf("Expected slug 'tass', got '%s'", sourceConfig.Slug)
	}
	if sourceConfig.Category != "Политика" {
		t.Errorf("Expected category 'Политика', got '%s'", sourceConfig.Category)
	}
	if sourceConfig.Settings.MaxItems != 25 {
		t.Errorf("Expected max items 25, got %d", sourceConfig.Settings.MaxItems)
	}
	if len(sourceConfig.Filters) != 1 {
		t.Errorf("Expected 1 filter, got %d", len(sourceConfig.Filters))
	}
}

func TestConfigCacheLoadConfigWithDefaults(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "minimal.yml", `
url: "https://example.com/feed.xml"
settings:
  enabled: true
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	sourceConfig, err := configCache.GetConfig("minimal")
	if err != nil {
		t.Fatal(err)
	}

	if sourceConfig.Name != "minimal" {
		t.Errorf("Expected name to default to key, got '%s'", sourceConfig.Name)
	}
	if sourceConfig.Slug != "" {
		t.Errorf("Expected empty slug, got '%s'", sourceConfig.Slug)
	}
	if sourceConfig.Settings.MaxItems != DefaultMaxItems {
		t.Errorf("Expected default max items %d, got %d", DefaultMaxItems, sourceConfig.Settings.MaxItems)
	}
}

func TestConfigCacheInvalidConfig(t *testing.T) {
	tests := map[string]string{
		"missing url": `
settings:
  enabled: true
`,
		"relative url": `
url: "/feed.xml"
`,
		"bad filter field": `
url: "https://example.com/feed.xml"
filters:
  - field: "unknown"
    includes: ["x"]
`,
		"empty filter": `
url: "https://example.com/feed.xml"
filters:
  - field: "title"
`,
		"negative max items": `
url: "https://example.com/feed.xml"
settings:
  max_items: -1
`,
		"broken yaml": `url: [`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			tempDir := t.TempDir()
			writeSource(t, tempDir, "invalid.yml", content)

			if err := NewConfigCache(tempDir).Run(); err == nil {
				t.Error("Expected error for invalid source config")
			}
		})
	}
}

func TestConfigCacheMissingDirectory(t *testing.T) {
	configCache := NewConfigCache(filepath.Join(t.TempDir(), "absent"))
	if err := configCache.Run(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if configCache.GetConfigCount() != 0 {
		t.Errorf("Expected 0 configs, got %d", configCache.GetConfigCount())
	}
}

func TestConfigCacheEnabledConfigsOrdered(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "b.yml", "url: \"https://b.test/rss\"\nsettings:\n  enabled: true\n")
	writeSource(t, tempDir, "a.yml", "url: \"https://a.test/rss\"\nsettings:\n  enabled: true\n")
	writeSource(t, tempDir, "c.yml", "url: \"https://c.test/rss\"\nsettings:\n  enabled: false\n")

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	all := configCache.GetConfigs()
	if len(all) != 3 {
		t.Fatalf("Expected 3 configs, got %d", len(all))
	}

	enabled := configCache.GetEnabledConfigs()
	if len(enabled) != 2 {
		t.Fatalf("Expected 2 enabled configs, got %d", len(enabled))
	}
	if enabled[0].Key != "a" || enabled[1].Key != "b" {
		t.Errorf("Expected configs ordered by key, got '%s', '%s'", enabled[0].Key, enabled[1].Key)
	}
}

func TestConfigCacheGetConfigNotFound(t *testing.T) {
	configCache := NewConfigCache(t.TempDir())
	if _, err := configCache.GetConfig("missing"); err == nil {
		t.Error("Expected error for missing config")
	}
}
