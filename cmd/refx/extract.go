package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/matsen/refextract/internal/config"
	"github.com/matsen/refextract/internal/document"
	"github.com/matsen/refextract/internal/extract"
	"github.com/matsen/refextract/internal/fetch"
	"github.com/matsen/refextract/internal/reference"
	"github.com/matsen/refextract/internal/storage"
	"github.com/spf13/cobra"
)

var (
	extractHTML           bool
	extractPDF            bool
	extractForceFallbacks bool
	extractNoFallbacks    bool
	extractSave           bool
	extractJSONL          string
	extractJSONLAppend    bool
)

func init() {
	extractCmd.Flags().BoolVar(&extractHTML, "html", false, "Treat the source as HTML regardless of its extension or content")
	extractCmd.Flags().BoolVar(&extractPDF, "pdf", false, "Treat the source as PDF regardless of its extension or content")
	extractCmd.Flags().BoolVar(&extractForceFallbacks, "force-fallbacks", false, "Run the fallback strategies even when enough citations were found")
	extractCmd.Flags().BoolVar(&extractNoFallbacks, "no-fallbacks", false, "Disable all fallback strategies")
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "Save the outcome to the local store")
	extractCmd.Flags().StringVar(&extractJSONL, "jsonl", "", "Also write the citations to this JSONL file")
	extractCmd.Flags().BoolVar(&extractJSONLAppend, "append", false, "Append to the --jsonl file, skipping citations already in it")
	extractCmd.MarkFlagsMutuallyExclusive("html", "pdf")
	extractCmd.MarkFlagsMutuallyExclusive("force-fallbacks", "no-fallbacks")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <path|url>",
	Short: "Extract the references of a PDF or HTML document",
	Long: `Extract the bibliography of a local file or a URL.

The document kind is taken from the file extension or the response
Content-Type, falling back to sniffing for the PDF signature. Use --pdf or
--html to override.

The outcome always lists the citations found and any diagnostics. A source
that cannot be read still produces an (empty) outcome and exit code 3.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

// source is the raw input to one extraction.
type source struct {
	Name        string
	Data        []byte
	Kind        document.Kind
	ContentType string
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	src, err := loadSource(cmd.Context(), cfg, args[0], forcedKind())
	if err != nil {
		// Report in outcome form so callers always get the same shape.
		out := reference.NewOutcome(args[0])
		out.AddError(sourceErrorMessage(err))
		writeOutcome(0, out)
		os.Exit(ExitDataError)
	}

	ecfg := cfg.Extraction
	ecfg.Logger = slog.Default()
	if extractNoFallbacks {
		ecfg.Fallback.Enabled = false
	}
	var opts []extract.Option
	if extractForceFallbacks {
		opts = append(opts, extract.WithForceFallbacks())
	}

	out, err := runExtraction(extract.New(ecfg, opts...), src)
	if err != nil {
		if out == nil {
			exitWithError(ExitError, "%v", err)
		}
		writeOutcome(0, out)
		if errors.Is(err, extract.ErrSourceUnreadable) {
			os.Exit(ExitDataError)
		}
		os.Exit(ExitError)
	}

	switch {
	case extractJSONL != "" && extractJSONLAppend:
		added, err := appendJSONL(extractJSONL, out.Citations)
		if err != nil {
			exitWithError(ExitError, "appending to %s: %v", extractJSONL, err)
		}
		slog.Debug("appended citations", "path", extractJSONL, "added", added, "skipped", len(out.Citations)-added)
	case extractJSONL != "":
		if err := storage.WriteAll(extractJSONL, out.Citations); err != nil {
			exitWithError(ExitError, "writing %s: %v", extractJSONL, err)
		}
	case extractJSONLAppend:
		exitWithError(ExitError, "--append requires --jsonl")
	}

	var id int64
	if extractSave {
		db := mustOpenDatabase(cfg)
		defer db.Close()
		id, err = db.SaveOutcome(out, storage.Digest(src.Data))
		if err != nil {
			exitWithError(ExitError, "saving outcome: %v", err)
		}
	}

	writeOutcome(id, out)
	return nil
}

// sourceErrorMessage adds a hint for the fetch failures a user can act on.
func sourceErrorMessage(err error) string {
	switch {
	case fetch.IsNotFound(err):
		return err.Error() + " (check the URL)"
	case fetch.IsRateLimited(err):
		return err.Error() + " (retry later or lower request_rate)"
	}
	return err.Error()
}

// appendJSONL appends the citations whose raw text is not already in the
// JSONL file at path and returns how many were written.
func appendJSONL(path string, cs []reference.Citation) (int, error) {
	existing, err := storage.ReadAll(path)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[strings.TrimSpace(c.RawText)] = true
	}

	added := 0
	for _, c := range cs {
		key := strings.TrimSpace(c.RawText)
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := storage.Append(path, c); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func forcedKind() document.Kind {
	switch {
	case extractPDF:
		return document.KindPDF
	case extractHTML:
		return document.KindHTML
	}
	return ""
}

// loadSource reads a local file or fetches a URL. A non-empty force
// overrides kind detection.
func loadSource(ctx context.Context, cfg *config.Config, name string, force document.Kind) (*source, error) {
	var src *source
	if fetch.IsURL(name) {
		client := fetch.NewClient(
			fetch.WithRate(cfg.RequestRate),
			fetch.WithUserAgent(cfg.UserAgent),
			fetch.WithMaxBodySize(cfg.MaxBodySize),
		)
		page, err := client.Get(ctx, name)
		if err != nil {
			return nil, &extract.SourceError{Source: name, Err: err}
		}
		src = &source{Name: name, Data: page.Body, Kind: page.Kind, ContentType: page.ContentType}
	} else {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, &extract.SourceError{Source: name, Err: err}
		}
		src = &source{Name: name, Data: data, Kind: detectFileKind(name, data)}
	}
	if force != "" {
		src.Kind = force
	}
	return src, nil
}

// detectFileKind uses the extension when it is conclusive and sniffs the
// content otherwise.
func detectFileKind(path string, data []byte) document.Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return document.KindPDF
	case ".html", ".htm", ".xhtml":
		return document.KindHTML
	}
	return fetch.DetectKind("", data)
}

func runExtraction(e *extract.Extractor, src *source) (*reference.Outcome, error) {
	switch src.Kind {
	case document.KindPDF:
		return e.ExtractPDFBytes(src.Data, src.Name)
	case document.KindHTML:
		return e.ExtractHTMLTyped(src.Name, bytes.NewReader(src.Data), src.ContentType)
	}
	return nil, fmt.Errorf("unsupported document kind %q", src.Kind)
}

func writeOutcome(id int64, out *reference.Outcome) {
	if out == nil {
		return
	}
	if humanOutput {
		printOutcomeHuman(id, out)
		return
	}
	outputJSON(ExtractResponse{ID: id, Outcome: out})
}
