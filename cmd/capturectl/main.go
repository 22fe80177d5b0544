package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/voibo/desktop-audio-capture/internal/config"
	"github.com/voibo/desktop-audio-capture/internal/logging"
)

var (
	version = "0.1.0"
	cfgFile string
	logFile string
)

var rootCmd = &cobra.Command{
	Use:   "capturectl",
	Short: "Desktop audio and screen capture",
	Long:  `capturectl records desktop audio (loopback or microphone) and screen frames through the platform capture engine`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("capturectl v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is capture.yaml in the config dir)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log to this file instead of stdout, with size-based rotation")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(recordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads and validates the file/env config. Validation
// problems are logged, not fatal.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Validate()
	return cfg, nil
}

func setupLogging() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var out io.Writer
	if path := resolveLogPath(logFile, cfg.LogFile); path != "" {
		rw, err := logging.NewRotatingWriter(path, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = rw
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, out)
	return nil
}

// resolveLogPath picks the log destination: the --log-file flag wins,
// then the config file's log_file, then stdout (empty).
func resolveLogPath(flagPath, cfgPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return cfgPath
}
