package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yuanying/zinespread/internal/config"
	"github.com/yuanying/zinespread/internal/document"
	"github.com/yuanying/zinespread/internal/imposition"
	"github.com/yuanying/zinespread/internal/layout"
	"github.com/yuanying/zinespread/internal/preview"
	"github.com/yuanying/zinespread/internal/spread"
	"github.com/yuanying/zinespread/internal/styles"
	"github.com/yuanying/zinespread/internal/viewer"
)

func previewConfig(cfg config.Config, logger *slog.Logger) preview.Config {
	return preview.Config{
		Model:       spread.Reference(),
		Sheet:       cfg.Sheet(),
		Mode:        cfg.Preview.Mode,
		Margin:      cfg.Preview.Margin,
		SettleDelay: cfg.Preview.SettleDelay,
		Duration:    cfg.Animation.Duration,
		Logger:      logger,
	}
}

func viewerOptions(cfg config.Config, inline bool, logger *slog.Logger) viewer.Options {
	opts := viewer.Options{
		NavHeight:    cfg.Viewer.NavHeight,
		Margin:       cfg.Preview.Margin,
		CurveSamples: cfg.Viewer.CurveSamples,
		Duration:     cfg.Animation.Duration,
		Logger:       logger,
	}
	if inline {
		opts.Images = viewer.NewImageInliner(viewer.ImageOptions{
			MaxWidth: cfg.Viewer.MaxImageWidth,
			Logger:   logger,
		})
	}
	return opts
}

// serve

type serveOptions struct {
	InputPath string
	Addr      string
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [document.html]",
		Short: "Serve a live preview of a zine",
		Long: `serve opens the document in a preview session and serves it over HTTP.
Without a document the session starts from an empty eight page template.
Saving from the preview writes back to the document file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			so, err := readServeOptions(cmd, args, &a.opts.Config)
			if err != nil {
				return err
			}
			return runServe(cmd, a.opts, so)
		},
	}
	f := cmd.Flags()
	f.String("addr", "", "Listen address (default from config)")
	f.String("mode", "", "Initial layout mode: flat|book")
	f.Float64("margin", 0, "Margin kept around the scaled spread, in CSS pixels")
	f.Duration("duration", 0, "Page turn duration")
	return cmd
}

// readServeOptions validates the serve flags and layers the ones set over cfg.
func readServeOptions(cmd *cobra.Command, args []string, cfg *config.Config) (serveOptions, error) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Preview.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("mode") {
		v, _ := flags.GetString("mode")
		m, err := layout.ParseMode(v)
		if err != nil {
			return serveOptions{}, fmt.Errorf("invalid --mode: %w", err)
		}
		cfg.Preview.Mode = m
	}
	if flags.Changed("margin") {
		v, _ := flags.GetFloat64("margin")
		if v < 0 {
			return serveOptions{}, fmt.Errorf("invalid --margin %v: must be >= 0", v)
		}
		cfg.Preview.Margin = v
	}
	if flags.Changed("duration") {
		v, _ := flags.GetDuration("duration")
		if v <= 0 {
			return serveOptions{}, fmt.Errorf("invalid --duration %v: must be positive", v)
		}
		cfg.Animation.Duration = v
	}
	if cfg.Preview.Addr == "" {
		return serveOptions{}, errors.New("invalid --addr: must not be empty")
	}

	so := serveOptions{Addr: cfg.Preview.Addr}
	if len(args) == 1 {
		so.InputPath = args[0]
	}
	return so, nil
}

func runServe(cmd *cobra.Command, opts cliOptions, so serveOptions) error {
	cfg, logger := opts.Config, opts.Logger
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := spread.Reference()
	d := document.New(document.Boilerplate(model), "")
	if so.InputPath != "" {
		loaded, err := document.Load(so.InputPath)
		if err != nil {
			return err
		}
		d = loaded
	}

	m := preview.NewManager(ctx, previewConfig(cfg, logger), cfg.Preview.SessionTTL)
	s, err := m.Pin(d)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	srv := preview.NewServer(m, preview.ServerOptions{
		RateLimit: cfg.Preview.RateLimit,
		Viewer:    viewerOptions(cfg, cfg.Viewer.InlineImages, logger),
		Logger:    logger,
	})
	logger.Info("preview ready", "url", "http://"+so.Addr+"/", "session", s.ID(), "mode", cfg.Preview.Mode)
	return srv.ListenAndServe(ctx, so.Addr)
}

// export

type exportOptions struct {
	viewer.ExportOptions
	InlineImages bool
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <document.html>",
		Short: "Write a standalone page-turn viewer for a zine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eo, err := readExportOptions(cmd, args, &a.opts.Config)
			if err != nil {
				return err
			}
			cfg, logger := a.opts.Config, a.opts.Logger

			model := spread.Reference()
			sheet := cfg.Sheet()
			engine := layout.New(model, layout.Options{
				PageWidth: cfg.Geometry.PageWidth,
				Unit:      cfg.Geometry.Unit,
				Logger:    logger,
			})
			gen := viewer.NewGenerator(engine, styles.New(model, sheet), viewerOptions(cfg, eo.InlineImages, logger))

			logger.Info("exporting", "input", eo.InputPath, "output", eo.OutputPath, "spread", eo.Spread)
			if err := viewer.NewPipeline(gen, eo.ExportOptions).Export(); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			logger.Info("done", "output", eo.OutputPath)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringP("output", "o", "", "Output file path (default: input with .viewer.html extension)")
	f.Int("spread", 0, "Spread the viewer opens at")
	f.Bool("inline-images", false, "Embed local images as data URIs")
	f.Int("max-image-width", 0, "Maximum width of inlined images in pixels (default from config)")
	return cmd
}

func readExportOptions(cmd *cobra.Command, args []string, cfg *config.Config) (exportOptions, error) {
	flags := cmd.Flags()
	eo := exportOptions{InlineImages: cfg.Viewer.InlineImages}
	eo.InputPath = args[0]
	eo.OutputPath, _ = flags.GetString("output")
	if eo.OutputPath == "" {
		eo.OutputPath = viewer.DefaultOutputPath(eo.InputPath)
	}

	eo.Spread, _ = flags.GetInt("spread")
	if eo.Spread < 0 {
		return exportOptions{}, fmt.Errorf("invalid --spread %d: must be >= 0", eo.Spread)
	}
	if flags.Changed("inline-images") {
		eo.InlineImages, _ = flags.GetBool("inline-images")
	}
	if flags.Changed("max-image-width") {
		w, _ := flags.GetInt("max-image-width")
		if w <= 0 {
			return exportOptions{}, fmt.Errorf("invalid --max-image-width %d: must be > 0", w)
		}
		cfg.Viewer.MaxImageWidth = w
	}
	return eo, nil
}

// impose

func newImposeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "impose [document.html]",
		Short: "Write the printable folding guide as PDF",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := a.opts.Config, a.opts.Logger
			output, _ := cmd.Flags().GetString("output")
			title, _ := cmd.Flags().GetString("title")

			if len(args) == 1 && !cmd.Flags().Changed("title") {
				d, err := document.Load(args[0])
				if err != nil {
					return err
				}
				dom, err := d.Parse()
				if err != nil {
					return err
				}
				if t := document.Title(dom); t != "" {
					title = t
				}
			}

			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := cfg.Sheet().WritePDF(f, imposition.PDFOptions{Title: title}); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			logger.Info("folding guide written", "output", output)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "folding-guide.pdf", "Output PDF path")
	cmd.Flags().String("title", "Folding guide", "Title printed above the sheet")
	return cmd
}

// init

func newInitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <document.html>",
		Short: "Create a new zine document",
		Long: `init writes an eight page zine template. With --markdown the pages are
filled from a markdown file, one page per section separated by ---.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.opts.Logger
			path := args[0]
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			model := spread.Reference()
			source := document.Boilerplate(model)
			if md, _ := cmd.Flags().GetString("markdown"); md != "" {
				data, err := os.ReadFile(md)
				if err != nil {
					return fmt.Errorf("failed to read markdown: %w", err)
				}
				res, err := document.FromMarkdown(data, model)
				switch {
				case errors.Is(err, document.ErrTooManySections):
					logger.Warn("markdown has more sections than pages", "dropped", res.Overflow)
				case err != nil:
					return fmt.Errorf("failed to convert markdown: %w", err)
				}
				source = res.Source
			}

			if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
				return fmt.Errorf("failed to write document: %w", err)
			}
			logger.Info("document created", "path", path)
			return nil
		},
	}
	cmd.Flags().String("markdown", "", "Fill the pages from this markdown file")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

// config

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.opts.Config
			if path, _ := cmd.Flags().GetString("write"); path != "" {
				if err := config.Save(path, cfg); err != nil {
					return err
				}
				a.opts.Logger.Info("config written", "path", path)
				return nil
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().String("write", "", "Write the configuration to this file instead of printing it")
	return cmd
}
