package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"cv-rag-platform/internal/config"
	"cv-rag-platform/models"
	"cv-rag-platform/services"

	"github.com/spf13/cobra"
)

type inspectRow struct {
	ID         string
	FileName   string
	Status     string
	Fragments  int
	Chunks     int
	WithVector int
}

// Healthy means a completed CV has a vector for every fragment, or the CV
// is not completed yet.
func (r inspectRow) Healthy() bool {
	if r.Status != models.StatusCompleted {
		return true
	}
	return r.WithVector >= r.Fragments && r.Chunks == r.WithVector
}

func newInspectCmd() *cobra.Command {
	var onlyProblems bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Group stored chunks by CV and report missing vectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client, err := config.ConnectMongoDB(cfg)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			store := services.NewCVStore(client.Database(cfg.DBName))
			stats, err := store.ChunkStats(ctx)
			if err != nil {
				return err
			}
			var cvs []models.CV
			if err := store.All(ctx, func(cv models.CV) error {
				cvs = append(cvs, cv)
				return nil
			}); err != nil {
				return err
			}

			return writeInspectReport(cmd.OutOrStdout(), buildInspectRows(cvs, stats), onlyProblems)
		},
	}
	cmd.Flags().BoolVar(&onlyProblems, "problems", false, "only list CVs with missing or orphaned chunks")
	return cmd
}

// buildInspectRows joins CVs with their chunk stats. Chunks whose CV no
// longer exists are reported with status "orphaned".
func buildInspectRows(cvs []models.CV, stats []models.ChunkStats) []inspectRow {
	byCV := make(map[string]models.ChunkStats, len(stats))
	for _, s := range stats {
		byCV[s.CVID] = s
	}

	rows := make([]inspectRow, 0, len(cvs))
	for _, cv := range cvs {
		s := byCV[cv.ID]
		delete(byCV, cv.ID)
		rows = append(rows, inspectRow{
			ID:         cv.ID,
			FileName:   cv.FileName,
			Status:     cv.EmbeddingStatus,
			Fragments:  cv.FragmentCount,
			Chunks:     s.Chunks,
			WithVector: s.WithVector,
		})
	}
	for _, s := range stats {
		if _, orphan := byCV[s.CVID]; orphan {
			rows = append(rows, inspectRow{ID: s.CVID, Status: "orphaned", Chunks: s.Chunks, WithVector: s.WithVector})
		}
	}
	return rows
}

func writeInspectReport(w io.Writer, rows []inspectRow, onlyProblems bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tSTATUS\tFRAGMENTS\tCHUNKS\tVECTORS\tOK")

	problems := 0
	for _, r := range rows {
		ok := r.Healthy() && r.Status != "orphaned"
		if !ok {
			problems++
		}
		if onlyProblems && ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%t\n", r.ID, r.FileName, r.Status, r.Fragments, r.Chunks, r.WithVector, ok)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d CVs, %d with problems\n", len(rows), problems)
	return err
}
