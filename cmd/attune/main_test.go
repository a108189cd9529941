package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"attune/internal/config"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.SettingsDir = filepath.Join(base, "settings")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Logging.Format = "json"

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	if _, err := runCommand(t, "config", "init", "--path", target); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("config not written: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite must fail")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init with --overwrite: %v", err)
	}
}

func TestSourcesAddListRemove(t *testing.T) {
	cfgPath := writeTestConfig(t)
	root := t.TempDir()

	out, err := runCommand(t, "--config", cfgPath, "sources", "add", root,
		"--mode", "fill-empty")
	if err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}

	out, err = runCommand(t, "--config", cfgPath, "sources", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, root) || !strings.Contains(out, "fill-empty") {
		t.Fatalf("list output missing entry: %s", out)
	}

	out, err = runCommand(t, "--config", cfgPath, "sources", "remove", root)
	if err != nil {
		t.Fatalf("remove: %v\n%s", err, out)
	}

	out, err = runCommand(t, "--config", cfgPath, "sources", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, root) {
		t.Fatalf("removed entry still listed: %s", out)
	}
}

func TestSourcesAddRejectsBadMode(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := runCommand(t, "--config", cfgPath, "sources", "add", t.TempDir(),
		"--mode", "sometimes"); err == nil {
		t.Fatal("invalid mode must be rejected")
	}
}

func TestScanWithNoSources(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := runCommand(t, "--config", cfgPath, "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "No watched directories") {
		t.Fatalf("expected no-sources notice, got: %s", out)
	}
}

func TestScanAndItems(t *testing.T) {
	cfgPath := writeTestConfig(t)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "song.mp3"),
		[]byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 0}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if out, err := runCommand(t, "--config", cfgPath, "sources", "add", root); err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}
	if out, err := runCommand(t, "--config", cfgPath, "scan"); err != nil {
		t.Fatalf("scan: %v\n%s", err, out)
	}

	out, err := runCommand(t, "--config", cfgPath, "items")
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if !strings.Contains(out, "song.mp3") {
		t.Fatalf("scanned file missing from items: %s", out)
	}
}
