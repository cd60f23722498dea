package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names. The AWS keys are only read from the
// environment so they never end up in a JSON file.
const (
	EnvServerBaseURL        = "DULO_SERVER_BASE_URL"
	EnvRequestTimeout       = "DULO_REQUEST_TIMEOUT"
	EnvRefreshThreshold     = "DULO_REFRESH_THRESHOLD"
	EnvRefreshCheckInterval = "DULO_REFRESH_CHECK_INTERVAL"
	EnvPollInterval         = "DULO_POLL_INTERVAL"
	EnvDownloadDir          = "DULO_DOWNLOAD_DIR"
	EnvDatabasePath         = "DULO_DATABASE_PATH"
	EnvLogFile              = "DULO_LOG_FILE"
	EnvLogLevel             = "DULO_LOG_LEVEL"
	EnvS3Bucket             = "DULO_S3_BUCKET"
	EnvS3Region             = "DULO_S3_REGION"
	EnvS3Endpoint           = "DULO_S3_ENDPOINT"
	EnvAWSAccessKey         = "AWS_ACCESS_KEY"
	EnvAWSSecretKey         = "AWS_SECRET_KEY"
)

// parseEnv overlays cfg with DULO_* variables. A .env file in the working
// directory is loaded first if present; real environment variables win over
// it. Malformed durations panic, like the other loaders; non-positive ones
// are ignored so the previous value stays.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	setString(&cfg.ServerBaseURL, EnvServerBaseURL)
	setDuration(&cfg.RequestTimeout, EnvRequestTimeout)
	setDuration(&cfg.RefreshThreshold, EnvRefreshThreshold)
	setDuration(&cfg.RefreshCheckInterval, EnvRefreshCheckInterval)
	setDuration(&cfg.PollInterval, EnvPollInterval)
	setString(&cfg.DownloadDir, EnvDownloadDir)
	setString(&cfg.DatabasePath, EnvDatabasePath)
	setString(&cfg.LogFile, EnvLogFile)
	setString(&cfg.LogLevel, EnvLogLevel)
	setString(&cfg.S3Bucket, EnvS3Bucket)
	setString(&cfg.S3Region, EnvS3Region)
	setString(&cfg.S3Endpoint, EnvS3Endpoint)
	setString(&cfg.S3AccessKey, EnvAWSAccessKey)
	setString(&cfg.S3SecretKey, EnvAWSSecretKey)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	if d > 0 {
		*dst = d
	}
}
