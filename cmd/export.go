package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/civicworks/permit-cli/internal/export"
)

var exportOutputPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the project hierarchy to a spreadsheet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newPortalService()
		if err != nil {
			return err
		}

		tree, err := svc.FetchProjectHierarchy(cmd.Context())
		if err != nil {
			return err
		}

		if err := export.WriteHierarchy(exportOutputPath, tree); err != nil {
			return err
		}

		fmt.Printf("Exported %d projects to %s\n", len(tree), exportOutputPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutputPath, "out", "projects.xlsx", "Output spreadsheet path")
	rootCmd.AddCommand(exportCmd)
}
