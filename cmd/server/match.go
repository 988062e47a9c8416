package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/GomuGomuu/ope-ope/internal/card"
)

var matchTopN int

var matchCmd = &cobra.Command{
	Use:   "match [record.json]",
	Short: "Rank catalog cards against an extracted record read from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := readRecord(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.load(cmd.Context(), false); err != nil {
			return err
		}

		topN := matchTopN
		if topN == 0 {
			topN = a.matcher.DefaultTopN()
		}
		results, err := a.matcher.FindClosestCards(cmd.Context(), rec, topN)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"possible_cards": results})
	},
}

func init() {
	matchCmd.Flags().IntVarP(&matchTopN, "top-n", "n", 0, "number of results (default from config)")
}

// readRecord decodes an ExtractedRecord from the file named in args, or from stdin.
func readRecord(stdin io.Reader, args []string) (card.ExtractedRecord, error) {
	var rec card.ExtractedRecord
	r := stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return rec, fmt.Errorf("open record: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return rec, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
