package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/yuanying/zinespread/internal/config"
	"github.com/yuanying/zinespread/internal/document"
	"github.com/yuanying/zinespread/internal/layout"
	"github.com/yuanying/zinespread/internal/spread"
	"github.com/yuanying/zinespread/internal/viewer"
)

// subcommand returns the named child of a fresh root with flagArgs parsed.
func subcommand(t *testing.T, name string, flagArgs ...string) *cobra.Command {
	t.Helper()
	root := newRootCmd()
	cmd, _, err := root.Find([]string{name})
	if err != nil {
		t.Fatalf("Find(%q) error = %v", name, err)
	}
	if err := cmd.ParseFlags(flagArgs); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	return cmd
}

// execute runs the CLI in a temporary working directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func readCLIOptionsForTest(t *testing.T, flagArgs ...string) error {
	t.Helper()
	t.Chdir(t.TempDir())
	cmd := newRootCmd()
	if err := cmd.ParseFlags(flagArgs); err != nil {
		return err
	}
	_, err := readCLIOptions(cmd)
	return err
}

func TestReadCLIOptions_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	opts, err := readCLIOptions(newRootCmd())
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}
	if opts.Config != config.Defaults() {
		t.Fatalf("Config = %+v, want defaults", opts.Config)
	}
	if opts.Logger == nil {
		t.Fatal("Logger is nil, want non-nil")
	}
	if !opts.Logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("Logger should be enabled at INFO level by default")
	}
	if opts.Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("Logger should not be enabled at DEBUG level by default")
	}
}

func TestReadCLIOptions_Verbose(t *testing.T) {
	t.Chdir(t.TempDir())
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--log-level", "warn", "--verbose"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	opts, err := readCLIOptions(cmd)
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}
	// --verbose overrides log-level to debug
	if !opts.Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("Logger should be enabled at DEBUG level when --verbose is set")
	}
}

func TestReadCLIOptions_ConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.WriteFile("custom.yaml", []byte("preview:\n  mode: flat\nlogging:\n  level: error\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--config", "custom.yaml"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	opts, err := readCLIOptions(cmd)
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}
	if opts.Config.Preview.Mode != layout.Flat {
		t.Fatalf("Preview.Mode = %v, want flat", opts.Config.Preview.Mode)
	}
	if opts.Logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("Logger should only be enabled at ERROR level")
	}
}

func TestReadCLIOptions_LogFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cmd := newRootCmd()
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	if err := cmd.ParseFlags([]string{"--log-file", "zine.log"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	opts, err := readCLIOptions(cmd)
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}
	opts.Logger.Info("hello file")
	if err := opts.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "zine.log"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "hello file") || !strings.Contains(stderr.String(), "hello file") {
		t.Fatalf("log line missing: file %q, stderr %q", data, stderr.String())
	}
}

func TestReadCLIOptions_InvalidLogLevel(t *testing.T) {
	err := readCLIOptionsForTest(t, "--log-level", "trace")
	if err == nil || !strings.Contains(err.Error(), "--log-level") {
		t.Fatalf("expected log-level validation error, got %v", err)
	}
}

func TestReadCLIOptions_InvalidLogFormat(t *testing.T) {
	err := readCLIOptionsForTest(t, "--log-format", "yaml")
	if err == nil || !strings.Contains(err.Error(), "--log-format") {
		t.Fatalf("expected log-format validation error, got %v", err)
	}
}

func TestReadCLIOptions_MissingConfig(t *testing.T) {
	err := readCLIOptionsForTest(t, "--config", "absent.yaml")
	if err == nil {
		t.Fatal("expected error for a missing config file")
	}
}

func TestBuildLogger_FormatNormalization(t *testing.T) {
	var buf bytes.Buffer
	logger := buildLogger(&buf, "info", "JSON")
	logger.Info("test message")
	// JSON format should produce JSON output (starts with '{')
	output := buf.String()
	if len(output) == 0 || output[0] != '{' {
		t.Fatalf("expected JSON output for format 'JSON', got: %s", output)
	}
}

func TestReadServeOptions(t *testing.T) {
	cmd := subcommand(t, "serve", "--addr", ":7000", "--mode", "flat", "--margin", "4", "--duration", "300ms")
	cfg := config.Defaults()
	so, err := readServeOptions(cmd, []string{"zine.html"}, &cfg)
	if err != nil {
		t.Fatalf("readServeOptions() error = %v", err)
	}
	if so.Addr != ":7000" || so.InputPath != "zine.html" {
		t.Fatalf("serveOptions = %+v", so)
	}
	if cfg.Preview.Mode != layout.Flat || cfg.Preview.Margin != 4 {
		t.Fatalf("Preview = %+v", cfg.Preview)
	}
	if cfg.Animation.Duration.Milliseconds() != 300 {
		t.Fatalf("Animation.Duration = %v, want 300ms", cfg.Animation.Duration)
	}
}

func TestReadServeOptions_Invalid(t *testing.T) {
	tests := []struct {
		flag  string
		value string
	}{
		{"--mode", "sideways"},
		{"--margin", "-1"},
		{"--duration", "0s"},
		{"--addr", ""},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			cmd := subcommand(t, "serve", tt.flag, tt.value)
			cfg := config.Defaults()
			_, err := readServeOptions(cmd, nil, &cfg)
			if err == nil || !strings.Contains(err.Error(), tt.flag) {
				t.Fatalf("expected %s validation error, got %v", tt.flag, err)
			}
		})
	}
}

func TestReadExportOptions_Defaults(t *testing.T) {
	cmd := subcommand(t, "export")
	cfg := config.Defaults()
	eo, err := readExportOptions(cmd, []string{"./zines/issue1.html"}, &cfg)
	if err != nil {
		t.Fatalf("readExportOptions() error = %v", err)
	}
	if eo.OutputPath != "zines/issue1.viewer.html" && eo.OutputPath != "./zines/issue1.viewer.html" {
		t.Fatalf("OutputPath = %q", eo.OutputPath)
	}
	if eo.Spread != 0 || eo.InlineImages {
		t.Fatalf("exportOptions = %+v", eo)
	}
}

func TestReadExportOptions_Invalid(t *testing.T) {
	tests := []struct {
		flag  string
		value string
	}{
		{"--spread", "-1"},
		{"--max-image-width", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			cmd := subcommand(t, "export", tt.flag, tt.value)
			cfg := config.Defaults()
			_, err := readExportOptions(cmd, []string{"zine.html"}, &cfg)
			if err == nil || !strings.Contains(err.Error(), tt.flag) {
				t.Fatalf("expected %s validation error, got %v", tt.flag, err)
			}
		})
	}
}

func TestInitExportImpose(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if _, err := execute(t, "init", "zine.html"); err != nil {
		t.Fatalf("init error = %v", err)
	}
	data, err := os.ReadFile("zine.html")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != document.Boilerplate(spread.Reference()) {
		t.Fatal("init did not write the template")
	}
	if _, err := execute(t, "init", "zine.html"); err == nil {
		t.Fatal("init overwrote an existing file without --force")
	}

	if _, err := execute(t, "export", "zine.html", "--spread", "2"); err != nil {
		t.Fatalf("export error = %v", err)
	}
	out, err := os.ReadFile("zine.viewer.html")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(out), `id="`+viewer.DataID+`"`) || !strings.Contains(string(out), "Pages 3-4") {
		t.Fatal("export is missing its data block or label")
	}

	if _, err := execute(t, "impose", "zine.html", "-o", "print/guide.pdf"); err != nil {
		t.Fatalf("impose error = %v", err)
	}
	pdf, err := os.ReadFile(filepath.Join("print", "guide.pdf"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatal("impose did not write a PDF")
	}
}

func TestInitFromMarkdown(t *testing.T) {
	t.Chdir(t.TempDir())
	md := "# Night Walks\n\nCover words.\n\n---\n\nFirst page.\n"
	if err := os.WriteFile("notes.md", []byte(md), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := execute(t, "init", "zine.html", "--markdown", "notes.md"); err != nil {
		t.Fatalf("init error = %v", err)
	}
	data, err := os.ReadFile("zine.html")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "<title>Night Walks</title>") || !strings.Contains(string(data), "First page.") {
		t.Fatalf("document does not carry the markdown:\n%s", data)
	}
}

func TestConfigCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	out, err := execute(t, "config")
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	if !strings.Contains(out, "mode: book") || !strings.Contains(out, "unit: in") {
		t.Fatalf("config output:\n%s", out)
	}

	if _, err := execute(t, "config", "--write", "zinespread.yaml"); err != nil {
		t.Fatalf("config --write error = %v", err)
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != config.Defaults() {
		t.Fatalf("written config = %+v, want defaults", cfg)
	}
}
