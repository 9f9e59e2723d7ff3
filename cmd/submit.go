package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicworks/permit-cli/internal/screening"
)

var submitScreen bool

var submitCmd = &cobra.Command{
	Use:   "submit <form.yaml>",
	Short: "Submit pre-screening decision payloads",
	Long: "Builds one decision payload per pre-screening element from the saved " +
		"form, upserts them against the project's process instance, and records " +
		"the completion event when every element carries content.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ff, err := readFormFile(args[0])
		if err != nil {
			return err
		}

		svc, err := newPortalService()
		if err != nil {
			return err
		}

		geo := screening.NewResults()
		if submitScreen {
			geo = newScreeningRunner().Run(ctx, screeningArea(&ff.Project))
			for _, msg := range geo.Messages {
				zap.L().Warn("screening", zap.String("message", msg))
			}
		}

		eval, err := svc.SubmitDecisionPayloads(ctx, &ff.Project, geo, ff.Checklist)
		if err != nil {
			return err
		}

		fmt.Printf("Submitted %d payloads, %d completed\n", eval.Total, len(eval.CompletedTitles))
		if eval.IsComplete {
			fmt.Println("Pre-screening is complete.")
		} else if len(eval.CompletedTitles) > 0 {
			fmt.Printf("Completed elements: %s\n", strings.Join(eval.CompletedTitles, ", "))
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().BoolVar(&submitScreen, "screen", false, "Run geospatial screening before submitting")
	rootCmd.AddCommand(submitCmd)
}
