package main

import (
	"github.com/spf13/cobra"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/repository"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := repository.Migrate(cmd.Context(), a.pool); err != nil {
				return err
			}
			a.logger.Info("schema up to date")
			return nil
		},
	}
}
