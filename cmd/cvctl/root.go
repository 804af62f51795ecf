package main

import (
	"log/slog"

	"cv-rag-platform/internal/logger"

	"github.com/spf13/cobra"
)

var verbose bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cvctl",
		Short: "Inspect CV fingerprints, redaction and the stored corpus",
		Long: `cvctl runs the ingestion building blocks locally.

It computes the fingerprint and display name an upload would get, shows
what the redactor would replace, reports chunk coverage per stored CV and
issues service tokens for the /cvs API.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Logs go to stderr so command output stays pipeable.
			logger.Logger = logger.New(cmd.ErrOrStderr(), verbose)
			slog.SetDefault(logger.Logger)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newFingerprintCmd(),
		newNormalizeCmd(),
		newRedactCmd(),
		newInspectCmd(),
		newTokenCmd(),
	)
	return root
}
