package cfg

import "time"

const (
	CommandServe    = "serve"
	CommandIngest   = "ingest"
	CommandClassify = "classify"
	CommandProbe    = "probe-images"
	CommandMigrate  = "migrate"
)

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	SourcesDir string
	PolicyFile string
	BaseUrl    string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	LogFile   string
	Version   string

	// Selected command and its options
	Command  string
	Serve    ServeOptions
	Ingest   IngestOptions
	Classify ClassifyOptions
	Probe    ProbeOptions
}

type ServeOptions struct {
	Port              string
	APIAccessKey      string
	WorkerCount       int
	SchedulerInterval time.Duration
}

type IngestOptions struct {
	Only       []string
	AllowEmpty bool
}

type ClassifyOptions struct {
	Limit int
}

type ProbeOptions struct {
	Limit          int
	Workers        int
	TimeoutConnect time.Duration
	TimeoutRead    time.Duration
	Output         string
}
