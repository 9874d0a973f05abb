// Package main runs the production workflow server and its maintenance
// commands.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	serveradapter "github.com/iurijampa/STAMPBLUE-sub002/internal/adapters/server"
	"github.com/iurijampa/STAMPBLUE-sub002/internal/adapters/storage/sqlite"
	"github.com/iurijampa/STAMPBLUE-sub002/internal/app"
	"github.com/iurijampa/STAMPBLUE-sub002/internal/cache"
	"github.com/iurijampa/STAMPBLUE-sub002/internal/config"
	"github.com/iurijampa/STAMPBLUE-sub002/internal/domain"
	"github.com/iurijampa/STAMPBLUE-sub002/internal/platform"
)

// version stores a package-level helper value.
var version = "dev"

// rootOptions carries the persistent flag state shared by every subcommand.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// main handles main.
func main() {
	_ = godotenv.Load()
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the CLI tree: serve, paths, backup.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("STAMPBLUE_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultAppName := "stampblue"
	if envApp := strings.TrimSpace(os.Getenv("STAMPBLUE_APP_NAME")); envApp != "" {
		defaultAppName = envApp
	}

	root := &cobra.Command{
		Use:           "stampblue",
		Short:         "Production ticket workflow server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config TOML")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	root.PersistentFlags().StringVar(&opts.appName, "app", defaultAppName, "application name for config/data path resolution")
	root.PersistentFlags().BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(newServeCmd(opts, stderr))
	root.AddCommand(newPathsCmd(opts))
	root.AddCommand(newBackupCmd(opts, stderr))
	return root
}

// newPathsCmd prints the resolved per-user paths.
func newPathsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{
				AppName: opts.appName,
				DevMode: opts.devMode,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "backup_dir: %s\n", paths.BackupDir)
			return nil
		},
	}
}

// newServeCmd runs the HTTP server until interrupted.
func newServeCmd(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, paths, logger, err := loadRuntime(opts, stderr)
			if err != nil {
				return err
			}
			if strings.TrimSpace(httpBind) != "" {
				cfg.Server.Bind = httpBind
			}

			seq, err := domain.NewSequence(cfg.Workflow.Departments)
			if err != nil {
				return fmt.Errorf("build department sequence: %w", err)
			}

			logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
			repo, err := sqlite.Open(cfg.Database.Path)
			if err != nil {
				logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
				return fmt.Errorf("open sqlite repository: %w", err)
			}
			defer func() {
				if closeErr := repo.Close(); closeErr != nil {
					logger.Warn("sqlite close failed", "db_path", cfg.Database.Path, "err", closeErr)
				}
			}()

			engine := app.NewEngine(repo, repo, cache.New(time.Now), seq, uuid.NewString, time.Now, app.TTLConfig{
				DepartmentList:    cfg.Cache.TTL(cfg.Cache.DepartmentListMS),
				DepartmentHistory: cfg.Cache.TTL(cfg.Cache.DepartmentHistoryMS),
				Notifications:     cfg.Cache.TTL(cfg.Cache.NotificationsMS),
				Stats:             cfg.Cache.TTL(cfg.Cache.StatsMS),
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Backup.Enabled {
				backupDir := strings.TrimSpace(cfg.Backup.Dir)
				if backupDir == "" {
					backupDir = paths.BackupDir
				}
				interval := time.Duration(cfg.Backup.IntervalMinutes) * time.Minute
				go runBackupLoop(ctx, repo, logger, backupDir, interval)
				logger.Info("periodic backups enabled", "dir", backupDir, "interval", interval)
			}

			logger.Info("serving workflow api", "bind", cfg.Server.Bind, "departments", strings.Join(cfg.Workflow.Departments, ","))
			return serveradapter.Run(ctx, serveradapter.Config{
				HTTPBind:       cfg.Server.Bind,
				APIEndpoint:    apiEndpoint,
				AllowedOrigins: cfg.Server.AllowedOrigins,
			}, engine)
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (overrides config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "/api/v1", "HTTP API base endpoint")
	return cmd
}

// newBackupCmd takes one on-demand snapshot of the database.
func newBackupCmd(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a consistent database snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, paths, logger, err := loadRuntime(opts, stderr)
			if err != nil {
				return err
			}
			repo, err := sqlite.Open(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open sqlite repository: %w", err)
			}
			defer func() {
				_ = repo.Close()
			}()

			dir := strings.TrimSpace(outDir)
			if dir == "" {
				dir = strings.TrimSpace(cfg.Backup.Dir)
			}
			if dir == "" {
				dir = paths.BackupDir
			}
			dest := backupPath(dir, opts.appName, time.Now().UTC())
			if err := repo.Backup(cmd.Context(), dest); err != nil {
				logger.Error("backup failed", "dest", dest, "err", err)
				return err
			}
			logger.Info("backup complete", "dest", dest)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "backup output directory (overrides config)")
	return cmd
}

// loadRuntime resolves paths, loads config with flag/env overrides, and
// builds the runtime logger.
func loadRuntime(opts *rootOptions, stderr io.Writer) (config.Config, platform.Paths, *charmLog.Logger, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
	if err != nil {
		return config.Config{}, platform.Paths{}, nil, err
	}

	configPath := strings.TrimSpace(opts.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("STAMPBLUE_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("STAMPBLUE_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return config.Config{}, platform.Paths{}, nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	level := charmLog.InfoLevel
	if opts.devMode {
		level = charmLog.DebugLevel
	}
	logger := charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          opts.appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	})
	charmLog.SetDefault(logger)

	logger.Info("configuration loaded", "config_path", configPath, "db_path", cfg.Database.Path, "dev_mode", opts.devMode)
	return cfg, paths, logger, nil
}

// runBackupLoop snapshots the database on a fixed interval until the
// context is canceled.
func runBackupLoop(ctx context.Context, repo *sqlite.Repository, logger *charmLog.Logger, dir string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dest := backupPath(dir, "stampblue", now.UTC())
			if err := repo.Backup(ctx, dest); err != nil {
				logger.Error("periodic backup failed", "dest", dest, "err", err)
				continue
			}
			logger.Info("periodic backup complete", "dest", dest)
		}
	}
}

// backupPath builds one timestamped snapshot file name.
func backupPath(dir, appName string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.db", appName, now.Format("20060102-150405")))
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
