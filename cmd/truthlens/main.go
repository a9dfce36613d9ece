package main

import (
	"fmt"
	"os"

	"truthlens-api/config"
	"truthlens-api/logging"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "truthlens",
		Short:         "TruthLens fact-checking service and tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCMD(), checkCMD(), getCMD())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	config.LoadEnvFiles(".env", ".env.local")
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// cliLogger stays quiet unless --verbose is set, so stdout carries only JSON.
func cliLogger(verbose bool) logging.Logger {
	if !verbose {
		return logging.NewDiscardLogger()
	}
	logger := logging.NewLoggerWithService("truthlens-cli")
	logger.SetOutput(os.Stderr)
	return logger
}
