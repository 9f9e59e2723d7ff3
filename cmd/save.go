package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicworks/permit-cli/internal/gis"
	"github.com/civicworks/permit-cli/internal/screening"
)

var (
	saveGeometryPath string
	saveScreen       bool
)

var saveCmd = &cobra.Command{
	Use:   "save <form.yaml>",
	Short: "Save a project snapshot to the permitting backend",
	Long: "Reads the intake form from a YAML file, persists the project row, " +
		"ensures its pre-screening process instance, and records the intake event. " +
		"Assigned project ids are written back into the form file.",
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

		var upload *gis.Container
		if saveGeometryPath != "" {
			container, err := gis.ConvertUpload(saveGeometryPath)
			if err != nil {
				return fmt.Errorf("convert geometry upload: %w", err)
			}
			upload = &container
			if ff.Project.LocationGeometry == "" && len(container.Geometry) > 0 {
				ff.Project.LocationGeometry = string(container.Geometry)
			}
		}

		geo := screening.NewResults()
		if saveScreen {
			geo = newScreeningRunner().Run(ctx, screeningArea(&ff.Project))
			for _, msg := range geo.Messages {
				zap.L().Warn("screening", zap.String("message", msg))
			}
		}

		if err := svc.SaveProjectSnapshot(ctx, &ff.Project, geo, upload); err != nil {
			return err
		}

		if err := writeFormFile(args[0], ff); err != nil {
			return err
		}

		fmt.Printf("Saved project %s (%s)\n", ff.Project.ID, ff.Project.Title)
		return nil
	},
}

// writeFormFile rewrites the form file in place so the server-assigned id
// survives for later submit and load runs.
func writeFormFile(path string, ff *FormFile) error {
	data, err := encodeFormFile(ff)
	if err != nil {
		return err
	}
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func init() {
	saveCmd.Flags().StringVar(&saveGeometryPath, "geometry", "", "Path to a shapefile or GeoJSON file to attach as the project footprint")
	saveCmd.Flags().BoolVar(&saveScreen, "screen", false, "Run geospatial screening before saving")
	rootCmd.AddCommand(saveCmd)
}
