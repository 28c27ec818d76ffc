package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"mediashelf/internal/importer"
	"mediashelf/internal/media"
	"mediashelf/internal/models"
	"mediashelf/internal/registry"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var (
		move            bool
		checkDuplicates bool
		noColor         bool
		quiet           bool
	)

	cmd := &cobra.Command{
		Use:   "import <path>...",
		Short: "Import media files or directories into the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			paths, err := expandImportPaths(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No supported media files found.")
				return nil
			}

			out := cmd.OutOrStdout()
			opts := importer.Options{
				CheckDuplicates: checkDuplicates,
				ExtractColor:    cfg.Import.ExtractColor && !noColor,
				DeleteSource:    move,
			}
			if !quiet {
				opts.Progress = progressPrinter(out)
			}

			return ctx.withLibrary(cmd.Context(), func(_ *registry.Registry, lib *registry.Library) error {
				imported, err := lib.Importer.Import(cmd.Context(), paths, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Imported %d of %d file(s) into %s\n", len(imported), len(paths), lib.Root)
				if len(imported) > 0 {
					fmt.Fprint(out, renderMediaTable(imported))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&move, "move", false, "Move files into the library instead of copying")
	cmd.Flags().BoolVar(&checkDuplicates, "check-duplicates", false, "Skip files already in the library")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Skip dominant color extraction")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print per-file progress")
	return cmd
}

// expandImportPaths walks directories for supported media and keeps explicit
// files as given so the pipeline can report unsupported ones.
func expandImportPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && media.Supported(d.Name()) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

func progressPrinter(out io.Writer) func(importer.Progress) {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd())
	}
	return func(p importer.Progress) {
		line := fmt.Sprintf("[%d/%d] %-10s %3.0f%% %s", p.Index+1, p.Total, p.Stage, p.Percent, filepath.Base(p.File))
		switch {
		case tty && p.Stage != importer.StageDone:
			fmt.Fprintf(out, "\r\033[K%s", line)
		case tty:
			fmt.Fprintf(out, "\r\033[K%s\n", line)
		case p.Stage == importer.StageDone:
			fmt.Fprintln(out, line)
		}
	}
}

func renderMediaTable(files []*models.MediaFile) string {
	rows := make([][]string, 0, len(files))
	for _, m := range files {
		rows = append(rows, []string{
			strconv.FormatInt(m.ID, 10),
			m.Title,
			string(m.FileType),
			formatBytes(m.FileSize),
			formatDuration(m.Duration),
		})
	}
	return renderTable(
		[]string{"ID", "Title", "Type", "Size", "Duration"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
	)
}
