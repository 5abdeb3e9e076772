package main

import (
	"errors"
	"os"
	"strings"

	"github.com/matsen/refextract/internal/export"
	"github.com/matsen/refextract/internal/reference"
	"github.com/matsen/refextract/internal/storage"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportAppend string
)

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "bibtex", "Output format: bibtex or jsonl")
	exportCmd.Flags().StringVar(&exportAppend, "append", "", "Append BibTeX entries to this .bib file, skipping keys and DOIs already present")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export the citations of a saved extraction",
	Long: `Export the citations of a saved extraction as BibTeX or JSONL.

With --append the BibTeX entries are added to an existing .bib file.
Entries whose DOI or citation key is already in the file are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

// AppendResponse reports the result of export --append.
type AppendResponse struct {
	Path    string `json:"path"`
	Added   int    `json:"added"`
	Skipped int    `json:"skipped"`
}

func runExport(cmd *cobra.Command, args []string) error {
	id := mustParseID(args[0])
	if exportFormat != "bibtex" && exportFormat != "jsonl" {
		exitWithError(ExitError, "unknown format %q (want bibtex or jsonl)", exportFormat)
	}
	if exportAppend != "" && exportFormat != "bibtex" {
		exitWithError(ExitError, "--append requires --format bibtex")
	}

	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	if _, err := db.GetOutcome(id); err != nil {
		if errors.Is(err, storage.ErrOutcomeNotFound) {
			exitWithError(ExitDataError, "outcome %d not found", id)
		}
		exitWithError(ExitError, "loading outcome: %v", err)
	}
	cs, err := db.GetCitations(id)
	if err != nil {
		exitWithError(ExitError, "loading citations: %v", err)
	}

	if exportAppend != "" {
		resp, err := appendBibTeX(exportAppend, cs)
		if err != nil {
			exitWithError(ExitError, "appending to %s: %v", exportAppend, err)
		}
		if humanOutput {
			outputHuman("Appended %d entries to %s (%d already present)\n", resp.Added, resp.Path, resp.Skipped)
			return nil
		}
		return outputJSON(resp)
	}

	if exportFormat == "jsonl" {
		return storage.Encode(os.Stdout, cs)
	}
	outputHuman("%s", export.ToBibTeXList(cs))
	return nil
}

// appendBibTeX adds the citations missing from the .bib file at path.
func appendBibTeX(path string, cs []reference.Citation) (*AppendResponse, error) {
	idx, err := export.ParseBibTeXFile(path)
	if err != nil {
		return nil, err
	}

	resp := &AppendResponse{Path: path}
	var entries []string
	for _, c := range cs {
		key := export.CitationKey(c)
		if idx.HasEntry(key, c.DOI) {
			resp.Skipped++
			continue
		}
		idx.Add(key, c.DOI)
		entries = append(entries, export.ToBibTeX(c, key))
	}
	if len(entries) == 0 {
		return resp, nil
	}
	if err := export.AppendToBibFile(path, strings.Join(entries, "\n")); err != nil {
		return nil, err
	}
	resp.Added = len(entries)
	return resp, nil
}
