package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire CREATED transactions past their deadline and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.service.Expire(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep failed after %d transactions: %w", n, err)
			}
			a.logger.Info("sweep finished", zap.Int("expired", n))
			return nil
		},
	}
}
