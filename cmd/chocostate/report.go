package main

import (
	"context"

	"github.com/felixgeelhaar/chocostate/internal/adapters/reportfile"
	"github.com/felixgeelhaar/chocostate/internal/render"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Show a saved reconciliation report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dto, err := reportfile.NewYAMLRepository().Load(context.Background(), args[0])
		if err != nil {
			return err
		}
		render.Report(cmd.OutOrStdout(), dto, renderOptions())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
