package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"truthlens-api/logging"
	"truthlens-api/server"
	"truthlens-api/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func serveCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := logging.NewLoggerWithService("truthlens-api")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := server.New(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Run(ctx)
		},
	}
}

func checkCMD() *cobra.Command {
	var (
		rawURL  string
		save    bool
		verbose bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "check [text]",
		Short: "Fact-check a text or URL and print the verdict as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := cliLogger(verbose)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			in := services.AnalysisInput{URL: rawURL}
			if len(args) == 1 {
				in.Text = args[0]
			}

			metrics := services.NewMetrics(prometheus.NewRegistry())
			if !save {
				analyzer := server.NewAnalyzer(cfg, nil, logger, metrics)
				res, err := analyzer.Evaluate(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res.Record)
			}

			kv, err := services.NewKVStore(cfg.Redis, logger)
			if err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			defer kv.Close()

			store := services.NewPredictionStore(kv, logger)
			analyzer := server.NewAnalyzer(cfg, store, logger, metrics)
			res, err := analyzer.Analyze(ctx, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res.Record)
		},
	}
	cmd.Flags().StringVar(&rawURL, "url", "", "article URL to analyse when no text is given")
	cmd.Flags().BoolVar(&save, "save", false, "store the result in Redis")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress to stderr")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall analysis timeout")
	return cmd
}

func getCMD() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a stored prediction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := cliLogger(verbose)

			kv, err := services.NewKVStore(cfg.Redis, logger)
			if err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			defer kv.Close()

			rec, err := services.NewPredictionStore(kv, logger).Get(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
