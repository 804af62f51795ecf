package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"cv-rag-platform/internal/fingerprint"

	"github.com/spf13/cobra"
)

type fingerprintRow struct {
	File        string `json:"file"`
	ContentHash string `json:"content_hash"`
	DisplayName string `json:"display_name"`
	Size        int64  `json:"size"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func newFingerprintCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "fingerprint <file>...",
		Short: "Print content hash and display name, flagging duplicates among the files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := fingerprintFiles(args)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tHASH\tDISPLAY NAME\tSIZE\tDUPLICATE OF")
			for _, r := range rows {
				dup := "-"
				if r.DuplicateOf != "" {
					dup = fmt.Sprintf("%s (%s)", r.DuplicateOf, r.Reason)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.File, r.ContentHash, r.DisplayName, r.Size, dup)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// fingerprintFiles checks each file against the ones before it, in
// argument order, the same way uploads are checked against stored CVs.
func fingerprintFiles(paths []string) ([]fingerprintRow, error) {
	idx := fingerprint.NewIndex(nil)
	rows := make([]fingerprintRow, 0, len(paths))

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		hash, size, err := fingerprint.ComputeFingerprintReader(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		fp := fingerprint.Fingerprint{ContentHash: hash, DisplayName: fingerprint.NormalizeDisplayName(path)}
		row := fingerprintRow{File: path, ContentHash: fp.ContentHash, DisplayName: fp.DisplayName, Size: size}
		if match, dup := idx.Lookup(fp); dup {
			row.DuplicateOf = match.Record.ID
			row.Reason = string(match.Reason)
		} else {
			idx.Add(fingerprint.Record{ID: path, ContentHash: fp.ContentHash, DisplayName: fp.DisplayName})
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <name>...",
		Short: "Print the display name each file name normalizes to",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, fingerprint.NormalizeDisplayName(name))
			}
		},
	}
}
