package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mediashelf/internal/registry"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var auditLimit int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the library and its recent audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withLibrary(cmd.Context(), func(_ *registry.Registry, lib *registry.Library) error {
				st := lib.Store.Stats()
				fmt.Fprintf(out, "Library: %s\n", lib.Root)
				fmt.Fprint(out, renderTable(
					[]string{"Media", "Trashed", "Tags", "Tag Groups", "Folders"},
					[][]string{{
						strconv.Itoa(st.Media),
						strconv.Itoa(st.Trashed),
						strconv.Itoa(st.Tags),
						strconv.Itoa(st.Groups),
						strconv.Itoa(st.Folders),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
				))

				if auditLimit <= 0 {
					return nil
				}
				entries := lib.Store.AuditLogs(auditLimit)
				if len(entries) == 0 {
					fmt.Fprintln(out, "Audit log is empty.")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						e.Timestamp.Local().Format("2006-01-02 15:04:05"),
						e.UserNickname,
						string(e.Action),
						e.TargetName,
					})
				}
				fmt.Fprint(out, renderTable([]string{"Time", "User", "Action", "Target"}, rows, nil))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&auditLimit, "audit", 10, "Number of recent audit entries to show (0 hides them)")
	return cmd
}
