package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rushteam/scorekit/config"
	"github.com/rushteam/scorekit/feature"
	"github.com/rushteam/scorekit/ingest"
	"github.com/rushteam/scorekit/server"
	"github.com/rushteam/scorekit/store"
)

var version = "dev"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           "scorekit",
		Short:         "Participant score inference service",
		Long:          `scorekit encodes participant records with the trained lookup tables and scores them with a regression model.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP scoring service",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	predictCmd = &cobra.Command{
		Use:   "predict [file]",
		Short: "Score a CSV/XLS/XLSX file and print the response JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runPredict,
	}
	featuresCmd = &cobra.Command{
		Use:   "features",
		Short: "Print the feature schema and lookup table summary",
		Args:  cobra.NoArgs,
		RunE:  runFeatures,
	}
	lookupCmd = &cobra.Command{
		Use:   "lookup",
		Short: "Manage lookup tables",
	}
	lookupPublishCmd = &cobra.Command{
		Use:   "publish [file]",
		Short: "Publish lookup tables (embedded when no file is given) to Redis",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLookupPublish,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	lookupCmd.AddCommand(lookupPublishCmd)
	rootCmd.AddCommand(serveCmd, predictCmd, featuresCmd, lookupCmd, versionCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	collector, err := newCollector(cfg.Audit, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.Warn("audit collector close", "error", err)
		}
	}()

	srv := server.New(a.pipeline,
		server.WithMetrics(a.metrics),
		server.WithCollector(collector),
		server.WithLogger(logger),
		server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		server.WithMaxUploadMB(cfg.Server.MaxUploadMB),
	)
	return srv.Run(ctx, cfg.Server.Addr)
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := buildApp(ctx, cfg, newLogger(cfg.Log.Level))
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	table, err := ingest.ReadTable(filepath.Base(args[0]), f)
	if err != nil {
		return err
	}
	resp, err := a.pipeline.Run(ctx, table)
	if err != nil {
		return err
	}
	return printJSON(cmd, resp)
}

func runFeatures(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := buildApp(cmd.Context(), cfg, newLogger(cfg.Log.Level))
	if err != nil {
		return err
	}
	defer a.Close()
	return printJSON(cmd, server.DescribeFeatures(a.pipeline))
}

func runLookupPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tables, err := feature.DefaultLookupTables()
	if len(args) == 1 {
		tables, err = feature.LoadLookupTables(args[0])
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	rs, err := store.NewRedisStore(ctx, cfg.Lookup.Redis.Addr, cfg.Lookup.Redis.Password, cfg.Lookup.Redis.DB)
	if err != nil {
		return err
	}
	defer rs.Close()

	keys := feature.DefaultLookupKeys(cfg.Lookup.Redis.KeyPrefix)
	if err := feature.NewStoreLookupProvider(rs, keys).Publish(ctx, tables); err != nil {
		return err
	}
	regencies, provinces := tables.Sizes()
	fmt.Fprintf(cmd.OutOrStdout(), "published lookup tables %s (%d regencies, %d provinces) to %s\n",
		tables.Version(), regencies, provinces, keys.Meta)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
