package viewer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuanying/zinespread/internal/document"
)

// ExportOptions holds options for the export pipeline.
type ExportOptions struct {
	InputPath  string
	OutputPath string
	// Spread is the spread the export opens at.
	Spread int
}

// Pipeline reads an authored document and writes its standalone export.
type Pipeline struct {
	Options   ExportOptions
	Generator *Generator
}

// NewPipeline creates a new export pipeline.
func NewPipeline(g *Generator, opts ExportOptions) *Pipeline {
	return &Pipeline{Options: opts, Generator: g}
}

// DefaultOutputPath derives the export path from the input path.
func DefaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".viewer.html"
}

// Export executes the pipeline.
func (p *Pipeline) Export() error {
	d, err := document.Load(p.Options.InputPath)
	if err != nil {
		return err
	}

	out, err := p.Generator.Generate(d, p.Options.Spread)
	if err != nil {
		return fmt.Errorf("failed to generate export: %w", err)
	}

	output := p.Options.OutputPath
	if output == "" {
		output = DefaultOutputPath(p.Options.InputPath)
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(output, []byte(out), 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
