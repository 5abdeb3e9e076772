package main

import (
	"strings"

	"github.com/matsen/refextract/internal/storage"
	"github.com/spf13/cobra"
)

var searchLimit int

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", DefaultListLimit, "Maximum number of results")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over saved citations",
	Long: `Search the raw text, titles, authors and venues of every saved citation.

Plain words are matched as FTS5 terms; queries with punctuation are matched
as a phrase.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

// SearchResponse is the JSON body of the search command.
type SearchResponse struct {
	Query string              `json:"query"`
	Hits  []storage.SearchHit `json:"hits"`
	Count int                 `json:"count"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	hits, err := db.Search(query, searchLimit)
	if err != nil {
		exitWithError(ExitError, "searching: %v", err)
	}
	if hits == nil {
		hits = []storage.SearchHit{}
	}

	if humanOutput {
		if len(hits) == 0 {
			outputHuman("No citations found for %q\n", query)
			return nil
		}
		outputHuman("Found %d citations:\n\n", len(hits))
		for _, h := range hits {
			outputHuman("  [%d] %s\n", h.OutcomeID, citationLine(h.Citation))
			outputHuman("       from %s\n", h.Source)
		}
		return nil
	}
	return outputJSON(SearchResponse{Query: query, Hits: hits, Count: len(hits)})
}
