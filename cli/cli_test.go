package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spindrift-labs/statserve/config"
)

func TestLoadResolverFlagOverrides(t *testing.T) {
	cmd := NewServeCmd()
	if err := cmd.Flags().Set("port", "9999"); err != nil {
		t.Fatalf("set port: %v", err)
	}
	if err := cmd.Flags().Set("debug", "true"); err != nil {
		t.Fatalf("set debug: %v", err)
	}

	resolver, err := loadResolver(cmd)
	if err != nil {
		t.Fatalf("loadResolver: %v", err)
	}
	if got := resolver.GetInt("network.port", 0); got != 9999 {
		t.Fatalf("network.port = %d, want 9999", got)
	}
	if !resolver.GetBool("debug.enabled", false) {
		t.Fatal("debug.enabled = false, want flag override")
	}
	// Untouched flags leave defaults alone.
	if got := resolver.GetString("network.host", ""); got != "0.0.0.0" {
		t.Fatalf("network.host = %q", got)
	}
}

func TestLoadResolverConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "statserve.yaml")
	content := "network:\n  port: 9001\nlogging:\n  level: DEBUG\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := NewServeCmd()
	if err := cmd.Flags().Set("config", path); err != nil {
		t.Fatalf("set config: %v", err)
	}
	resolver, err := loadResolver(cmd)
	if err != nil {
		t.Fatalf("loadResolver: %v", err)
	}
	if got := resolver.GetInt("network.port", 0); got != 9001 {
		t.Fatalf("network.port = %d, want 9001", got)
	}
}

func TestLoadResolverMissingConfigFile(t *testing.T) {
	cmd := NewServeCmd()
	if err := cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("set config: %v", err)
	}
	_, err := loadResolver(cmd)
	exitErr, ok := err.(*ExitError)
	if !ok {
		t.Fatalf("err = %v, want *ExitError", err)
	}
	if exitErr.Code != exitConfig {
		t.Fatalf("code = %d, want %d", exitErr.Code, exitConfig)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	resolver := config.New()
	resolver.SetOverride("logging.level", "ERROR")
	logger := newLogger(resolver)
	if logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("WARN enabled at ERROR level")
	}
	if !logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("ERROR disabled at ERROR level")
	}

	// debug.enabled wins over the configured level.
	resolver.SetOverride("debug.enabled", true)
	logger = newLogger(resolver)
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("DEBUG disabled with debug.enabled")
	}
}

func TestToolsCommandListsBuiltins(t *testing.T) {
	cmd := NewToolsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("tools: %v", err)
	}
	listing := out.String()
	for _, name := range []string{"describe", "correlate", "service_info"} {
		if !strings.Contains(listing, name) {
			t.Fatalf("listing missing %q:\n%s", name, listing)
		}
	}
	// No market.base_url configured, so market tools stay hidden.
	if strings.Contains(listing, "stock_info") {
		t.Fatalf("listing includes market tools without configuration:\n%s", listing)
	}
}

func TestExitError(t *testing.T) {
	err := exitError(exitRuntime, "boom: %d", 7)
	if err.Code != exitRuntime || err.Error() != "boom: 7" {
		t.Fatalf("err = %+v", err)
	}
}
