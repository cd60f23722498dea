package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/dulo/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   backend base URL
//	-i int      background token refresh check interval (seconds)
//	-d string   download directory
//	-db string  local database path
//
// Only these flags are considered; everything else in args is ignored.
// -i overrides the interval only when given with a positive value.
// A malformed value panics.
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-i", "-d", "-db"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "backend base URL")
	checkInterval := fs.Int("i", 0, "token refresh check interval (in seconds)")
	fs.StringVar(&cfg.DownloadDir, "d", cfg.DownloadDir, "download directory")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "local database path")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "i" && *checkInterval > 0 {
			cfg.RefreshCheckInterval = time.Duration(*checkInterval) * time.Second
		}
	})
}
