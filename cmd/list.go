package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var listEvents bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List portal projects and their processes",
	Long: "Fetches every project this portal has written, with nested process " +
		"instances and event timelines, newest first.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newPortalService()
		if err != nil {
			return err
		}

		tree, err := svc.FetchProjectHierarchy(cmd.Context())
		if err != nil {
			return err
		}

		if len(tree) == 0 {
			fmt.Println("No projects found.")
			return nil
		}

		for _, project := range tree {
			title := "(untitled)"
			if project.Row.Title != nil {
				title = *project.Row.Title
			}
			fmt.Printf("%s  #%s  updated %s\n", title, formatID(project.Row.ID), formatTime(project.Row.LastUpdated))
			for _, proc := range project.Processes {
				fmt.Printf("  %s  [%s]  %d events\n", proc.Instance.Description, proc.Status, len(proc.Events))
				if !listEvents {
					continue
				}
				for _, ev := range proc.Events {
					fmt.Printf("    %s  %s\n", formatTime(ev.LastUpdated), ev.Type)
				}
			}
		}
		return nil
	},
}

func formatID(id *int64) string {
	if id == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *id)
}

func formatTime(ts *time.Time) string {
	if ts == nil {
		return "never"
	}
	return ts.Format(time.RFC3339)
}

func init() {
	listCmd.Flags().BoolVar(&listEvents, "events", false, "Show the event timeline under each process")
	rootCmd.AddCommand(listCmd)
}
