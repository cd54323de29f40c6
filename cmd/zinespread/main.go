package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/yuanying/zinespread/internal/config"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

type cliOptions struct {
	Config config.Config
	Logger *slog.Logger

	logFile *lumberjack.Logger
}

func (o *cliOptions) Close() error {
	if o.logFile == nil {
		return nil
	}
	return o.logFile.Close()
}

// app carries what the root command resolved to its subcommands.
type app struct {
	opts cliOptions
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "zinespread",
		Short: "Lay out, preview and export eight page mini zines",
		Long: `zinespread arranges an authored HTML zine into reading spreads.

It serves a live preview with page-turn animation, exports a standalone
viewer file, and prints the folding guide for the single-sheet booklet.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			a.opts = opts
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.opts.Close()
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "Config file (default: "+config.DefaultPath+" if present)")
	pf.String("log-level", defaultLogLevel, "Log level: debug|info|warn|error")
	pf.String("log-format", defaultLogFormat, "Log format: text|json")
	pf.String("log-file", "", "Also write logs to this file, rotated")
	pf.BoolP("verbose", "v", false, "Shorthand for --log-level debug")

	cmd.AddCommand(
		newServeCmd(a),
		newExportCmd(a),
		newImposeCmd(a),
		newInitCmd(a),
		newConfigCmd(a),
	)
	return cmd
}

// readCLIOptions loads the config file and layers the explicitly set logging
// flags over it.
func readCLIOptions(cmd *cobra.Command) (cliOptions, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cliOptions{}, err
	}

	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		v = strings.ToLower(strings.TrimSpace(v))
		if !isValidLogLevel(v) {
			return cliOptions{}, fmt.Errorf("invalid --log-level %q: must be one of debug|info|warn|error", v)
		}
		cfg.Logging.Level = v
	}
	if flags.Changed("log-format") {
		v, _ := flags.GetString("log-format")
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "text" && v != "json" {
			return cliOptions{}, fmt.Errorf("invalid --log-format %q: must be text or json", v)
		}
		cfg.Logging.Format = v
	}
	if flags.Changed("log-file") {
		cfg.Logging.File, _ = flags.GetString("log-file")
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}

	opts := cliOptions{Config: cfg}
	var w io.Writer = cmd.ErrOrStderr()
	if cfg.Logging.File != "" {
		opts.logFile = &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		w = io.MultiWriter(w, opts.logFile)
	}
	opts.Logger = buildLogger(w, cfg.Logging.Level, cfg.Logging.Format)
	return opts, nil
}

func isValidLogLevel(v string) bool {
	switch v {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
