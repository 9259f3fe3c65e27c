package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestSetupLogger(t *testing.T) {
	// Save original globals.
	origLevel := logLevel
	origFormat := logFormat
	t.Cleanup(func() {
		logLevel = origLevel
		logFormat = origFormat
	})

	for _, tc := range []struct {
		name      string
		logLevel  string
		logFormat string
	}{
		{name: "debug/text", logLevel: "debug", logFormat: "text"},
		{name: "info/json", logLevel: "info", logFormat: "json"},
		{name: "warn/text", logLevel: "warn", logFormat: "text"},
		{name: "error/text", logLevel: "error", logFormat: "text"},
		{name: "unknown/text", logLevel: "unknown", logFormat: "text"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			logLevel = tc.logLevel
			logFormat = tc.logFormat

			logger := setupLogger()
			if logger == nil {
				t.Fatal("setupLogger returned nil")
			}
		})
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoadConfig_WithExplicitPath(t *testing.T) {
	origCfgFile := cfgFile
	t.Cleanup(func() { cfgFile = origCfgFile })

	tmpDir := t.TempDir()
	sourceDir := filepath.Join(tmpDir, "source")
	targetDir := filepath.Join(tmpDir, "target")
	for _, dir := range []string{sourceDir, targetDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	configContent := []byte(`source: "` + sourceDir + `"
target: "` + targetDir + `"
move_folders: true
sync_files: true
delete: false
`)
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, configContent, 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfgFile = cfgPath

	cfg, err := loadConfig(syncCmd, testLogger())
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.Source != sourceDir || cfg.Target != targetDir {
		t.Errorf("paths = %q/%q, want %q/%q", cfg.Source, cfg.Target, sourceDir, targetDir)
	}
	if !cfg.MoveFolders || !cfg.SyncFiles || cfg.Delete {
		t.Error("toggles not taken from config file")
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	origCfgFile := cfgFile
	t.Cleanup(func() {
		cfgFile = origCfgFile
		_ = syncCmd.Flags().Set("delete", "false")
		syncCmd.Flags().Lookup("delete").Changed = false
	})

	tmpDir := t.TempDir()
	sourceDir := filepath.Join(tmpDir, "source")
	targetDir := filepath.Join(tmpDir, "target")
	for _, dir := range []string{sourceDir, targetDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	configContent := []byte(`source: "` + sourceDir + `"
target: "` + targetDir + `"
delete: false
`)
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, configContent, 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfgFile = cfgPath
	if err := syncCmd.Flags().Set("delete", "true"); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(syncCmd, testLogger())
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if !cfg.Delete {
		t.Error("explicit --delete flag should override the config file")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	origCfgFile := cfgFile
	t.Cleanup(func() { cfgFile = origCfgFile })

	cfgFile = filepath.Join(t.TempDir(), "nonexistent.yaml")

	_, err := loadConfig(syncCmd, testLogger())
	if err == nil {
		t.Fatal("expected error for missing config file, got nil")
	}
}

func TestLoadConfig_NoFileNoPaths(t *testing.T) {
	origCfgFile := cfgFile
	t.Cleanup(func() { cfgFile = origCfgFile })

	cfgFile = ""

	_, err := loadConfig(syncCmd, testLogger())
	// Validation fails because no source/target are configured.
	if err == nil {
		t.Fatal("expected validation error without source and target, got nil")
	}
}

func TestSetupSignalHandler(t *testing.T) {
	ctx, cancel := setupSignalHandler()
	if ctx == nil {
		t.Fatal("setupSignalHandler returned nil context")
	}

	cancel()

	<-ctx.Done()
	if err := ctx.Err(); err == nil {
		t.Fatal("expected context error after cancel, got nil")
	}
}

func TestVersionCmd(t *testing.T) {
	// versionCmd.Run simply prints version info; should not panic.
	versionCmd.Run(versionCmd, []string{})
}
