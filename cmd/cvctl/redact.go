package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"cv-rag-platform/internal/redact"

	"github.com/spf13/cobra"
)

func newRedactCmd() *cobra.Command {
	var (
		rulesFile string
		stats     bool
		listRules bool
	)

	cmd := &cobra.Command{
		Use:   "redact [file]",
		Short: "Redact a text file, or stdin when no file or - is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := redact.New(redact.WithRuleFile(rulesFile))
			if err != nil {
				return err
			}

			if listRules {
				for i, rule := range r.Rules() {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", i+1, rule.Name, rule.Placeholder, rule.Pattern)
				}
				return nil
			}

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			text, err := io.ReadAll(in)
			if err != nil {
				return err
			}

			out, counts := r.RedactWithStats(string(text))
			fmt.Fprint(cmd.OutOrStdout(), out)

			if stats {
				keys := make([]string, 0, len(counts))
				for k := range counts {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s\t%d\n", k, counts[k])
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesFile, "rules", os.Getenv("REDACTION_RULES_FILE"), "YAML file with extra rules")
	cmd.Flags().BoolVar(&stats, "stats", false, "print replacement counts to stderr")
	cmd.Flags().BoolVar(&listRules, "list-rules", false, "print the active rules and exit")
	return cmd
}
