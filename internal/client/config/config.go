package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the DULO client.
//
// Durations are time.Duration values; JSON files spell them as strings
// ("4m") or integer nanoseconds.
type Config struct {
	// ServerBaseURL is the backend root, e.g. https://api.dulo.example.
	ServerBaseURL string
	// RequestTimeout bounds every single HTTP exchange, refresh included.
	RequestTimeout time.Duration
	// RefreshThreshold is the token age after which requests refresh
	// proactively. Tokens live five minutes; the default leaves one spare.
	RefreshThreshold time.Duration
	// RefreshCheckInterval is the period of the background refresher.
	RefreshCheckInterval time.Duration
	// PollInterval is the delay between job status polls.
	PollInterval time.Duration

	DownloadDir  string
	DatabasePath string
	LogFile      string
	LogLevel     string

	// S3Bucket enables the S3 output sink when non-empty.
	S3Bucket string
	S3Region string
	// S3Endpoint points the sink at an S3-compatible server such as MinIO.
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8000"
	c.RequestTimeout = 30 * time.Second
	c.RefreshThreshold = 4 * time.Minute
	c.RefreshCheckInterval = 2 * time.Minute
	c.PollInterval = 2 * time.Second
	c.DownloadDir = "downloads"
	c.DatabasePath = "dulo.db"
	c.LogFile = "dulo.log"
	c.LogLevel = "info"
	c.S3Region = "us-east-1"
}

// LoadConfig builds a Config from defaults, then the environment (a .env
// file is honoured), then the JSON file named by -c/-config, then flags.
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg, os.Args[1:])
	parseFlags(cfg, os.Args[1:])
	return cfg
}
