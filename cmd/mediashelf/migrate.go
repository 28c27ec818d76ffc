package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mediashelf/internal/library"
	"mediashelf/internal/registry"
	"mediashelf/internal/storage"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Split a legacy single-document library into the per-media layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Library.Path == "" {
				return errors.New("no library configured; pass --library or set library.path")
			}
			codec, err := storage.CodecFor(cfg.Library.DocumentFormat)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !library.NeedsMigration(storage.NewLayout(cfg.Library.Path, codec)) {
				fmt.Fprintln(out, "Library is up to date.")
				return nil
			}
			if check {
				fmt.Fprintln(out, "Library needs migration.")
				return nil
			}

			// Load migrates before reading the split documents
			return ctx.withLibrary(cmd.Context(), func(_ *registry.Registry, lib *registry.Library) error {
				st := lib.Store.Stats()
				fmt.Fprintf(out, "Migrated %s: %d media, %d tags, %d folders\n", lib.Root, st.Media+st.Trashed, st.Tags, st.Folders)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Only report whether migration is needed")
	return cmd
}
