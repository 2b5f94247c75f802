package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/arborist/internal/errors"
	"github.com/ggonzalez94/arborist/internal/journal"
)

func (s *runtimeState) newHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently submitted transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !s.settings.JournalEnabled {
				return clierr.New(clierr.KindUsage, "journal is disabled")
			}
			j, err := journal.Open(s.settings.JournalPath, s.settings.JournalLockPath)
			if err != nil {
				return clierr.Wrap(clierr.KindInternal, "open journal", err)
			}
			s.journal = j

			entries, err := j.Recent(limit)
			if err != nil {
				return clierr.Wrap(clierr.KindInternal, "read journal", err)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(out, "No submissions recorded yet.")
				return nil
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %-13s %-9s %s",
					e.CreatedAt.Format(time.RFC3339), e.Command, e.Status, e.Signature)
				if e.Detail != "" {
					line += "  (" + e.Detail + ")"
				}
				_, _ = fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to list")
	return cmd
}
