package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"patchwatch/internal/history"
)

const archiveColumnWidth = 48

func (a *app) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List updates applied on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := history.Open(a.settings.Paths.HistoryDB)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			p := newPalette(a.stdout)
			if len(records) == 0 {
				fmt.Fprintln(a.stdout, p.dim.Render("No updates recorded."))
				return nil
			}

			fmt.Fprintln(a.stdout, p.title.Render("Applied updates"))
			for _, rec := range records {
				fmt.Fprintf(a.stdout, "%s  %s %s %s  %s\n",
					p.dim.Render(rec.AppliedAt.Local().Format(time.DateTime)),
					p.value.Render(rec.FromVersion),
					p.dim.Render("->"),
					p.ok.Render(rec.ToVersion),
					p.dim.Render(ansi.Truncate(rec.ArchiveURL, archiveColumnWidth, "...")),
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries (0 for all)")
	return cmd
}
