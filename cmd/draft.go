package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/screening"
	"github.com/civicworks/permit-cli/internal/store"
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Manage local intake drafts",
	Long: "Drafts live in a local store so a project can be assembled before " +
		"anything is written to the backend. Sync pushes a draft as a project " +
		"snapshot and records the assigned id.",
}

var draftNewCmd = &cobra.Command{
	Use:   "new <form.yaml>",
	Short: "Create a draft from a form file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ff, err := readFormFile(args[0])
		if err != nil {
			return err
		}

		s, err := openDraftStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		draft, err := s.CreateDraft(ctx, model.Draft{
			Form:      ff.Project,
			Checklist: ff.Checklist,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Created draft %s (%s)\n", draft.ID, draft.Form.Title)
		return nil
	},
}

var draftListSynced string

var draftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored drafts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openDraftStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		filter := store.DraftFilter{}
		switch draftListSynced {
		case "":
		case "yes":
			v := true
			filter.Synced = &v
		case "no":
			v := false
			filter.Synced = &v
		default:
			return fmt.Errorf("--synced must be yes or no, got %q", draftListSynced)
		}

		drafts, err := s.ListDrafts(ctx, filter)
		if err != nil {
			return err
		}

		if len(drafts) == 0 {
			fmt.Println("No drafts found.")
			return nil
		}
		for _, d := range drafts {
			state := "draft"
			if d.Synced() {
				state = fmt.Sprintf("synced to project %d", *d.SyncedProjectID)
			}
			fmt.Printf("%s  %s  %s  updated %s\n", d.ID, d.Form.Title, state, d.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var draftShowCmd = &cobra.Command{
	Use:   "show <draft-id>",
	Short: "Print a stored draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openDraftStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		draft, err := s.GetDraft(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(draft)
	},
}

var draftDeleteCmd = &cobra.Command{
	Use:   "delete <draft-id>",
	Short: "Delete a stored draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openDraftStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.DeleteDraft(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted draft %s\n", args[0])
		return nil
	},
}

var draftSyncCmd = &cobra.Command{
	Use:   "sync <draft-id>",
	Short: "Push a draft to the backend as a project snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openDraftStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		draft, err := s.GetDraft(ctx, args[0])
		if err != nil {
			return err
		}

		svc, err := newPortalService()
		if err != nil {
			return err
		}

		geo := screening.NewResults()
		if draft.Geo != nil {
			geo = *draft.Geo
		}

		if err := svc.SaveProjectSnapshot(ctx, &draft.Form, geo, nil); err != nil {
			return err
		}

		projectID, err := draft.Form.NumericID()
		if err != nil {
			return err
		}
		if err := s.MarkDraftSynced(ctx, draft.ID, projectID); err != nil {
			return err
		}
		if err := s.UpdateDraft(ctx, *draft); err != nil {
			return err
		}

		fmt.Printf("Synced draft %s to project %d\n", draft.ID, projectID)
		return nil
	},
}

func init() {
	draftListCmd.Flags().StringVar(&draftListSynced, "synced", "", "Filter by sync state: yes or no")
	draftCmd.AddCommand(draftNewCmd, draftListCmd, draftShowCmd, draftDeleteCmd, draftSyncCmd)
	rootCmd.AddCommand(draftCmd)
}
