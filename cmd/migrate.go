package main

import (
	"fmt"

	"github.com/okian/painpoint/internal/adapters/repository"
	"github.com/okian/painpoint/pkg/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := repository.Open(ctx, cfg.Store.Driver, cfg.Store.DSN,
			repository.WithLogger(logger.Named("store")))
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.Store.Driver)
		return nil
	},
}
