package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/binder/internal/calllog"
	"github.com/jackzampolin/binder/internal/config"
	"github.com/jackzampolin/binder/internal/corpus"
	"github.com/jackzampolin/binder/internal/emit"
	"github.com/jackzampolin/binder/internal/home"
	"github.com/jackzampolin/binder/internal/oracle"
	"github.com/jackzampolin/binder/internal/pipeline"
)

var (
	splitPages       string
	splitOutput      string
	splitFormat      string
	splitModel       string
	splitAPIURL      string
	splitAPIKey      string
	splitBatchSize   int
	splitMaxIter     int
	splitMaxParallel int
	splitNoVision    bool
)

var splitCmd = &cobra.Command{
	Use:   "split <book.pdf|pages.json|pages-dir>",
	Short: "Split a minute book into labeled sections",
	Long: `Split classifies every page of a minute book and writes the
resulting section table as JSON.

The input is either the scanned PDF itself (with --pages naming the OCR
text sidecar), a JSON array of page texts, or a directory of per-page
.txt files. When the PDF is available, pages whose text is too degraded
to classify are retried from rendered page images.

The run summary is printed to stdout; oracle call logs and a copy of
the output are kept under the home directory for later inspection.

Examples:
  binder split book.pdf --pages pages.json
  binder split pages.json -o sections.json
  binder split pages/ --model gpt-4o --no-vision
  binder split pages.json --api-url https://gateway.example.com --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := emit.ParseFormat(splitFormat)
		if err != nil {
			return err
		}

		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := applySplitFlags(mgr.Get())

		pages, err := loadInput(ctx, args[0])
		if err != nil {
			return err
		}

		client, err := newOracleClient(cfg)
		if err != nil {
			return err
		}

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		runID := uuid.New().String()
		rec, err := calllog.NewRecorder(h.CallLogPath(runID), runID)
		if err != nil {
			return err
		}
		defer rec.Close()

		doc, summary, err := pipeline.New(client, pages, cfg.ToPipelineConfig(), rec).Run(ctx)
		if err != nil {
			return err
		}

		if err := emit.WriteFile(splitOutput, doc, pages.Len()); err != nil {
			return err
		}
		archiveRun(h, runID, doc, summary, pages.Len())

		return emit.Fprint(os.Stdout, format, summary)
	},
}

// loadInput builds the corpus from the positional argument. A PDF argument
// needs the --pages sidecar for page text; the PDF itself then backs the
// vision fallback.
func loadInput(ctx context.Context, arg string) (*corpus.Corpus, error) {
	if strings.EqualFold(filepath.Ext(arg), ".pdf") {
		if splitPages == "" {
			return nil, fmt.Errorf("a PDF input needs --pages with the OCR text for each page")
		}
		pages, err := corpus.Load(ctx, splitPages)
		if err != nil {
			return nil, err
		}
		if err := pages.AttachPDF(arg); err != nil {
			return nil, err
		}
		return pages, nil
	}
	if splitPages != "" {
		return nil, fmt.Errorf("--pages only applies when the input is a PDF")
	}
	return corpus.Load(ctx, arg)
}

// applySplitFlags overlays command line flags on the loaded config.
func applySplitFlags(cfg *config.Config) *config.Config {
	if splitModel != "" {
		cfg.Oracle.Model = splitModel
	}
	if splitAPIURL != "" {
		cfg.Oracle.APIURL = splitAPIURL
	}
	if splitAPIKey != "" {
		cfg.Oracle.APIKey = splitAPIKey
	}
	if splitBatchSize > 0 {
		cfg.Split.BatchSize = splitBatchSize
	}
	if splitMaxIter > 0 {
		cfg.Resolver.MaxIterations = splitMaxIter
	}
	if splitMaxParallel > 0 {
		cfg.Oracle.MaxParallel = splitMaxParallel
	}
	if splitNoVision {
		cfg.Vision.Enabled = false
	}
	return cfg
}

// newOracleClient builds the classification client named by the config.
func newOracleClient(cfg *config.Config) (oracle.Client, error) {
	switch cfg.Oracle.Kind {
	case "http":
		return oracle.NewHTTPClient(cfg.ToHTTPConfig()), nil
	case "openai":
		return oracle.NewOpenAIClient(cfg.ToOpenAIConfig()), nil
	default:
		return nil, fmt.Errorf("unknown oracle kind %q (expected http or openai)", cfg.Oracle.Kind)
	}
}

// archiveRun keeps a copy of the run outputs under the home directory.
// Failures here are logged, never fatal.
func archiveRun(h *home.Dir, runID string, doc emit.Document, summary pipeline.Summary, pageCount int) {
	if err := h.EnsureRunDir(runID); err != nil {
		slog.Warn("could not create run directory", "run_id", runID, "error", err)
		return
	}
	if err := emit.WriteFile(h.SectionsPath(runID), doc, pageCount); err != nil {
		slog.Warn("could not archive section document", "run_id", runID, "error", err)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err == nil {
		err = os.WriteFile(h.SummaryPath(runID), data, 0o644)
	}
	if err != nil {
		slog.Warn("could not archive run summary", "run_id", runID, "error", err)
	}
}

func init() {
	splitCmd.Flags().StringVar(&splitPages, "pages", "", "OCR text sidecar (JSON array or directory) when the input is a PDF")
	splitCmd.Flags().StringVarP(&splitOutput, "output", "o", "sections.json", "Path for the section document")
	splitCmd.Flags().StringVar(&splitFormat, "format", "yaml", "Run summary format: yaml or json")
	splitCmd.Flags().StringVar(&splitModel, "model", "", "Override the oracle model")
	splitCmd.Flags().StringVar(&splitAPIURL, "api-url", "", "Override the oracle endpoint")
	splitCmd.Flags().StringVar(&splitAPIKey, "api-key", "", "Override the oracle API key")
	splitCmd.Flags().IntVar(&splitBatchSize, "batch-size", 0, "Pages per classification batch")
	splitCmd.Flags().IntVar(&splitMaxIter, "max-iterations", 0, "Cap on boundary re-query passes")
	splitCmd.Flags().IntVar(&splitMaxParallel, "max-parallel", 0, "Concurrent oracle calls")
	splitCmd.Flags().BoolVar(&splitNoVision, "no-vision", false, "Disable the page-image fallback")

	rootCmd.AddCommand(splitCmd)
}
