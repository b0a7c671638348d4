package main

import (
	"fmt"

	service "github.com/okian/painpoint/internal/app"
	"github.com/okian/painpoint/pkg/logger"
	"github.com/spf13/cobra"
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Rescore every stored opportunity with the current scoring config",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		svc := service.New(
			service.WithConfig(cfg),
			service.WithLogger(logger.Get()),
			service.WithScheduler(false),
		)
		if err := svc.Start(ctx); err != nil {
			return err
		}
		defer svc.Stop()

		res, err := svc.Rescore(ctx, cliCaller)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rescored %d opportunities: %d changed, %d validated\n",
			res.Total, res.Changed, res.Validated)
		return nil
	},
}
