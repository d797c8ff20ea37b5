package cfg

import (
	"cmp"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type serveCmd struct {
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for task endpoints (optional)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background task workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"900" description:"Ingestion interval in seconds"`
}

type ingestCmd struct {
	Only       []string `long:"only" description:"Restrict the run to these source slugs (repeatable or comma separated)"`
	AllowEmpty bool     `long:"allow-empty" description:"Import under-threshold entries with placeholder text instead of skipping them"`
}

type classifyCmd struct {
	Limit int `long:"limit" default:"0" description:"Maximum number of items to classify (0 = all)"`
}

type probeCmd struct {
	Limit          int     `long:"limit" default:"500" description:"Maximum number of items to probe"`
	Workers        int     `long:"workers" default:"16" description:"Number of concurrent probes"`
	TimeoutConnect float64 `long:"timeout-connect" default:"3" description:"Connect timeout in seconds"`
	TimeoutRead    float64 `long:"timeout-read" default:"6" description:"Read timeout in seconds"`
	Output         string  `long:"output" short:"o" description:"CSV report path (stdout when empty)"`
}

type migrateCmd struct{}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/news.db" description:"SQLite database file"`

	// Application configuration
	SourcesDir string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	PolicyFile string `long:"policy-file" env:"POLICY_FILE" description:"Fetch/quality/category policy YAML (built-in defaults when empty)"`
	BaseUrl    string `long:"base-url" env:"BASE_URL" description:"Public base URL used for seo_url (e.g., https://news.example.com)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (compatible; NewsIngest/1.0)" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Europe/Moscow)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogFile   string `long:"log-file" env:"LOG_FILE" description:"Also write logs to this rotating file"`

	Serve    serveCmd    `command:"serve" description:"Run the JSON API and the background scheduler"`
	Ingest   ingestCmd   `command:"ingest" description:"Run one ingestion pass over the active sources"`
	Classify classifyCmd `command:"classify" description:"Re-classify items sitting in the fallback categories"`
	Probe    probeCmd    `command:"probe-images" description:"Probe image URLs in parallel and write a CSV report"`
	Migrate  migrateCmd  `command:"migrate" description:"Apply database migrations"`
}

func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs parses args and the environment. It returns nil, nil when help was requested.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	parser.SubcommandsOptional = true

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	command := CommandServe
	if parser.Active != nil {
		command = parser.Active.Name
	}

	cfg := &Cfg{
		DBPath:     raw.DBPath,
		SourcesDir: raw.SourcesDir,
		PolicyFile: raw.PolicyFile,
		BaseUrl:    strings.TrimRight(raw.BaseUrl, "/"),
		UserAgent:  raw.UserAgent,
		Timezone:   raw.Timezone,
		Debug:      raw.Debug,
		LogFile:    raw.LogFile,
		Version:    GetVersion(),
		Command:    command,
		Serve: ServeOptions{
			Port:              raw.Serve.Port,
			APIAccessKey:      raw.Serve.APIAccessKey,
			WorkerCount:       max(raw.Serve.WorkerCount, 1),
			SchedulerInterval: time.Duration(raw.Serve.SchedulerInterval) * time.Second,
		},
		Ingest: IngestOptions{
			Only:       splitList(raw.Ingest.Only),
			AllowEmpty: raw.Ingest.AllowEmpty,
		},
		Classify: ClassifyOptions{
			Limit: raw.Classify.Limit,
		},
		Probe: ProbeOptions{
			Limit:          raw.Probe.Limit,
			Workers:        max(raw.Probe.Workers, 1),
			TimeoutConnect: seconds(raw.Probe.TimeoutConnect),
			TimeoutRead:    seconds(raw.Probe.TimeoutRead),
			Output:         raw.Probe.Output,
		},
	}

	if cfg.Serve.SchedulerInterval <= 0 {
		cfg.Serve.SchedulerInterval = 900 * time.Second
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}

func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
