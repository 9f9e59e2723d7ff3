package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/civicworks/permit-cli/internal/screening"
)

var screenCmd = &cobra.Command{
	Use:   "screen <form.yaml>",
	Short: "Run geospatial screening for a project area",
	Long: "Screens the form's location against NEPAssist and IPaC and prints " +
		"the narrative summary. Each service settles independently; one failing " +
		"never hides the other's findings.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ff, err := readFormFile(args[0])
		if err != nil {
			return err
		}

		results := newScreeningRunner().Run(cmd.Context(), screeningArea(&ff.Project))

		fmt.Println(screening.Narrative(results))
		for _, msg := range results.Messages {
			fmt.Println(msg)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(screenCmd)
}
