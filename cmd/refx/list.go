package main

import (
	"errors"
	"strconv"
	"strings"

	"github.com/matsen/refextract/internal/storage"
	"github.com/spf13/cobra"
)

var listLimit int

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", DefaultListLimit, "Maximum number of outcomes (0 for all)")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved extractions, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved extraction with its citations",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

// ListResponse is the JSON body of the list command.
type ListResponse struct {
	Outcomes []storage.OutcomeSummary `json:"outcomes"`
	Count    int                      `json:"count"`
	Total    int                      `json:"total"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	outcomes, err := db.ListOutcomes(listLimit)
	if err != nil {
		exitWithError(ExitError, "listing outcomes: %v", err)
	}
	if outcomes == nil {
		outcomes = []storage.OutcomeSummary{}
	}
	total, err := db.Count()
	if err != nil {
		exitWithError(ExitError, "counting outcomes: %v", err)
	}

	if humanOutput {
		if len(outcomes) == 0 {
			outputHuman("No saved extractions\n")
			return nil
		}
		for _, o := range outcomes {
			outputHuman("%4d  %s  %3d citations  %s\n", o.ID, o.ExtractedAt.Local().Format("2006-01-02 15:04"), o.Total, o.Source)
			if len(o.Errors) > 0 {
				outputHuman("      %s\n", strings.Join(o.Errors, "; "))
			}
		}
		if total > len(outcomes) {
			outputHuman("(showing %d of %d; use --limit 0 for all)\n", len(outcomes), total)
		}
		return nil
	}
	return outputJSON(ListResponse{Outcomes: outcomes, Count: len(outcomes), Total: total})
}

func runShow(cmd *cobra.Command, args []string) error {
	id := mustParseID(args[0])

	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	out, err := db.LoadOutcome(id)
	if err != nil {
		if errors.Is(err, storage.ErrOutcomeNotFound) {
			exitWithError(ExitDataError, "outcome %d not found", id)
		}
		exitWithError(ExitError, "loading outcome: %v", err)
	}

	writeOutcome(id, out)
	return nil
}

// mustParseID parses a positive outcome id, exits on error.
func mustParseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		exitWithError(ExitError, "invalid outcome id %q", s)
	}
	return id
}
