package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apollostatus/apollostatus/api"
	"github.com/apollostatus/apollostatus/config"
	"github.com/apollostatus/apollostatus/kv"
	"github.com/apollostatus/apollostatus/uptime"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "apollostatus",
		Short:         "Status monitor for the site, trackers and IRC",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file (YAML)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the checker and serve readings over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	check := &cobra.Command{
		Use:   "check",
		Short: "Run a single tick and print the resulting readings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, configPath)
		},
	}
	components := &cobra.Command{
		Use:   "components",
		Short: "Print the configured components",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(afero.NewOsFs(), configPath)
			if err != nil {
				return err
			}
			return printJSON(cmd, cfg.UptimeComponents())
		},
	}

	root.AddCommand(serve, check, components)
	root.RunE = serve.RunE
	return root
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(afero.NewOsFs(), configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	checker, store, err := buildChecker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger := checker.Logger()
	logger.Info("Loaded components", zap.Int("count", len(cfg.Components)), zap.String("config", configPath))

	if err := checker.Start(); err != nil {
		return fmt.Errorf("start checker: %w", err)
	}
	defer checker.Stop()

	srv := api.New(cfg.Listen, cfg.SiteName, checker, logger)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Server shutdown", zap.Error(err))
		}
	}()

	logger.Info("ApolloStatus running", zap.String("addr", cfg.Listen), zap.Duration("interval", cfg.Interval))
	if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runCheck(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(afero.NewOsFs(), configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	checker, store, err := buildChecker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	defer checker.Stop()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	checker.Tick(ctx)
	readings, err := checker.Readings(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, readings)
}

func buildChecker(cfg config.Config) (*uptime.Checker, uptime.Store, error) {
	var store uptime.Store = uptime.NewMemoryStore()
	if cfg.Store.Path != "" {
		bs, err := kv.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("initialise storage: %w", err)
		}
		store = bs
	}

	opts := []uptime.Option{
		uptime.WithStore(store),
		uptime.WithProber(uptime.NewNetProber(cfg.InsecureTLS, cfg.PrivilegedICMP)),
		uptime.WithInterval(cfg.Interval),
		uptime.WithLogLevel(cfg.LogLevel()),
		uptime.WithInternalLogs(cfg.Log.Internal),
		uptime.WithLogRetention(cfg.HistoryRetention),
		uptime.LogConsole(cfg.Log.Console),
		uptime.WithLogRotation(cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays, cfg.Log.Compress),
	}
	if cfg.Log.File != "" {
		opts = append(opts, uptime.LogFile(cfg.Log.File))
	}

	checker, err := uptime.New(cfg.UptimeComponents(), opts...)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("configure checker: %w", err)
	}
	return checker, store, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
