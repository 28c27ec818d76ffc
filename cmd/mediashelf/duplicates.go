package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mediashelf/internal/models"
	"mediashelf/internal/registry"
)

func newDuplicatesCommand(ctx *commandContext) *cobra.Command {
	var (
		criteria string
		strict   bool
	)

	cmd := &cobra.Command{
		Use:   "duplicates [path...]",
		Short: "List duplicate media, or check files against the library before import",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withLibrary(cmd.Context(), func(_ *registry.Registry, lib *registry.Library) error {
				if len(args) > 0 {
					matches := lib.Store.CheckDuplicates(args, strict)
					if len(matches) == 0 {
						fmt.Fprintln(out, "No duplicates found.")
						return nil
					}
					rows := make([][]string, 0, len(matches))
					for _, m := range matches {
						rows = append(rows, []string{m.SourcePath, strconv.FormatInt(m.Existing.ID, 10), m.Existing.FileName, formatBytes(m.Existing.FileSize)})
					}
					fmt.Fprint(out, renderTable(
						[]string{"File", "Existing ID", "Existing Name", "Size"},
						rows,
						[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight},
					))
					return nil
				}

				c, err := models.ParseDuplicateCriteria(criteria)
				if err != nil {
					return err
				}
				groups, err := lib.Store.FindLibraryDuplicates(c)
				if err != nil {
					return err
				}
				if len(groups) == 0 {
					fmt.Fprintln(out, "No duplicates found.")
					return nil
				}
				var rows [][]string
				for i, group := range groups {
					for _, m := range group {
						rows = append(rows, []string{
							strconv.Itoa(i + 1),
							strconv.FormatInt(m.ID, 10),
							m.FileName,
							formatBytes(m.FileSize),
							formatDuration(m.Duration),
						})
					}
				}
				fmt.Fprint(out, renderTable(
					[]string{"Group", "ID", "Name", "Size", "Duration"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignRight},
				))
				fmt.Fprintf(out, "%d duplicate group(s)\n", len(groups))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&criteria, "criteria", "name,size", "Comma list of name, size, duration, modified")
	cmd.Flags().BoolVar(&strict, "strict", false, "Also require matching file names when checking paths")
	return cmd
}
