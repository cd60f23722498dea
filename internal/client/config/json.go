package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/dulo/internal/flagx"
	"github.com/dmitrijs2005/dulo/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent or
// empty fields leave the corresponding Config value untouched.
type JsonConfig struct {
	ServerBaseURL        string         `json:"server_base_url"`
	RequestTimeout       timex.Duration `json:"request_timeout"`
	RefreshThreshold     timex.Duration `json:"refresh_threshold"`
	RefreshCheckInterval timex.Duration `json:"refresh_check_interval"`
	PollInterval         timex.Duration `json:"poll_interval"`
	DownloadDir          string         `json:"download_dir"`
	DatabasePath         string         `json:"database_path"`
	LogFile              string         `json:"log_file"`
	LogLevel             string         `json:"log_level"`
	S3Bucket             string         `json:"s3_bucket"`
	S3Region             string         `json:"s3_region"`
	S3Endpoint           string         `json:"s3_endpoint"`
}

// parseJson overlays cfg with the JSON file named by -c or -config in args.
// No flag means no change. Read or decode errors panic.
func parseJson(cfg *Config, args []string) {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	overlayString(&cfg.ServerBaseURL, jc.ServerBaseURL)
	overlayDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	overlayDuration(&cfg.RefreshThreshold, jc.RefreshThreshold)
	overlayDuration(&cfg.RefreshCheckInterval, jc.RefreshCheckInterval)
	overlayDuration(&cfg.PollInterval, jc.PollInterval)
	overlayString(&cfg.DownloadDir, jc.DownloadDir)
	overlayString(&cfg.DatabasePath, jc.DatabasePath)
	overlayString(&cfg.LogFile, jc.LogFile)
	overlayString(&cfg.LogLevel, jc.LogLevel)
	overlayString(&cfg.S3Bucket, jc.S3Bucket)
	overlayString(&cfg.S3Region, jc.S3Region)
	overlayString(&cfg.S3Endpoint, jc.S3Endpoint)
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overlayDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration > 0 {
		*dst = v.Duration
	}
}
