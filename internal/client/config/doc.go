// Package config loads runtime configuration for the DULO client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment: DULO_* variables, optionally from a .env file.
//  3. Optional JSON file selected via -c or -config.
//  4. Command-line flags, which override everything before them.
//
// Supported flags
//
//	-a string   backend base URL
//	-i int      token refresh check interval (seconds)
//	-d string   download directory
//	-db string  local database path
//
// # JSON schema
//
//	{
//	  "server_base_url": "https://api.dulo.example",
//	  "request_timeout": "30s",
//	  "refresh_threshold": "4m",
//	  "refresh_check_interval": "2m",
//	  "poll_interval": "2s",
//	  "download_dir": "downloads",
//	  "database_path": "dulo.db",
//	  "log_file": "dulo.log",
//	  "log_level": "info",
//	  "s3_bucket": "",
//	  "s3_region": "us-east-1"
//	}
//
// AWS credentials for the S3 sink are read from AWS_ACCESS_KEY and
// AWS_SECRET_KEY only; without them the default AWS credential chain
// applies.
package config
