// Command aircheckd runs the airplay detection daemon in the foreground.
// It is the systemd-friendly alternative to `aircheck daemon start`.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"aircheck/internal/config"
	"aircheck/internal/daemonrun"
)

func main() {
	var configPath string
	var logLevel string
	flag.StringVar(&configPath, "config", "", "configuration file path")
	flag.StringVar(&logLevel, "log-level", "", "override configured log level (debug, info, warn, error)")
	flag.Parse()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	level := logLevel
	if level == "" {
		level = cfg.Logging.Level
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: level}); err != nil {
		fmt.Fprintf(os.Stderr, "aircheckd: %v\n", err)
		os.Exit(1)
	}
}
