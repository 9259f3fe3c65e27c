package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/gosink/gosink/internal/config"
	"github.com/gosink/gosink/internal/sync"
	"github.com/spf13/cobra"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	// Sync flags, applied over the config file when set
	source       string
	target       string
	moveFolders  bool
	syncFiles    bool
	deleteExtras bool
	keepVersions bool
	checksum     bool
	dryRun       bool
	verbose      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gosink",
	Short: "One-way, non-destructive folder synchronization",
	Long: `gosink mirrors a target folder toward the state of a source folder without
ever deleting data: renamed or moved folders are detected and moved in place,
and everything that would be deleted or overwritten is relocated into a
per-run lost-and-found folder inside the target instead.

The source folder is never modified. Every action of a run is recorded in a
timestamped log file placed in the target folder.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a one-time sync from source to target",
	Long: `Sync scans both folder trees, moves matching renamed folders into place,
quarantines entries missing from the source, and copies new or changed files
over. Each pass can be toggled individually; flags override the corresponding
config file settings.`,
	RunE: runSync,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gosink %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional, flags work without one)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Sync command flags
	syncCmd.Flags().StringVar(&source, "source", "", "source folder (read-only side)")
	syncCmd.Flags().StringVar(&target, "target", "", "target folder to bring in sync with source")
	syncCmd.Flags().BoolVar(&moveFolders, "move-folders", false, "detect renamed/moved folders and move them in place")
	syncCmd.Flags().BoolVar(&syncFiles, "sync-files", false, "copy new and changed files from source to target")
	syncCmd.Flags().BoolVar(&deleteExtras, "delete", false, "quarantine target entries that are missing from source")
	syncCmd.Flags().BoolVar(&keepVersions, "keep-versions", false, "quarantine the old version of changed files before overwriting")
	syncCmd.Flags().BoolVar(&checksum, "checksum", true, "compare file content by MD5 when size and mtime are inconclusive")
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log what would be done without changing anything")
	syncCmd.Flags().BoolVar(&verbose, "verbose", false, "echo the run log to stdout")

	// Add commands
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(versionCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(cmd, logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine := sync.NewEngine(cfg, osfs.New(cfg.Source), osfs.New(cfg.Target), logger)

	if err := engine.Run(ctx); err != nil {
		logger.Error("sync failed", "error", err)
		return err
	}

	return nil
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// loadConfig builds the effective run configuration: the config file when
// given, defaults otherwise, with explicitly set flags layered on top.
// Validation runs only after the overrides are applied.
func loadConfig(cmd *cobra.Command, logger *slog.Logger) (*config.Config, error) {
	var cfg *config.Config
	if cfgFile != "" {
		logger.Info("loading configuration", "path", cfgFile)
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Source = source
	}
	if flags.Changed("target") {
		cfg.Target = target
	}
	if flags.Changed("move-folders") {
		cfg.MoveFolders = moveFolders
	}
	if flags.Changed("sync-files") {
		cfg.SyncFiles = syncFiles
	}
	if flags.Changed("delete") {
		cfg.Delete = deleteExtras
	}
	if flags.Changed("keep-versions") {
		cfg.KeepVersions = keepVersions
	}
	if flags.Changed("checksum") {
		cfg.Checksum = checksum
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = dryRun
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"source", cfg.Source,
		"target", cfg.Target,
		"move_folders", cfg.MoveFolders,
		"sync_files", cfg.SyncFiles,
		"delete", cfg.Delete,
		"dry_run", cfg.DryRun)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
