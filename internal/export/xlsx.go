// Package export renders the project hierarchy to spreadsheet files for
// sharing outside the portal.
package export

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/civicworks/permit-cli/internal/portal"
)

var projectHeader = []string{
	"Project ID", "Title", "Lead Agency", "Sponsor", "Sector", "Status", "Last Updated",
}

var timelineHeader = []string{
	"Project ID", "Process", "Entry", "Last Updated",
}

// WriteHierarchy writes the project tree to an xlsx workbook with a
// Projects overview sheet and a Timeline sheet of per-process entries.
func WriteHierarchy(path string, tree []portal.ProjectNode) error {
	f := xlsx.NewFile()

	projects, err := f.AddSheet("Projects")
	if err != nil {
		return eris.Wrap(err, "export: add projects sheet")
	}
	addRow(projects, projectHeader...)
	for _, node := range tree {
		addRow(projects,
			formatID(node.Row.ID),
			deref(node.Row.Title),
			deref(node.Row.LeadAgency),
			deref(node.Row.Sponsor),
			deref(node.Row.Sector),
			projectStatus(node),
			formatTime(node.Row.LastUpdated),
		)
	}

	timeline, err := f.AddSheet("Timeline")
	if err != nil {
		return eris.Wrap(err, "export: add timeline sheet")
	}
	addRow(timeline, timelineHeader...)
	for _, node := range tree {
		for _, proc := range node.Processes {
			for _, ev := range proc.Events {
				addRow(timeline,
					formatID(node.Row.ID),
					proc.Instance.Description,
					ev.Type,
					formatTime(ev.LastUpdated),
				)
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// projectStatus folds the per-process statuses into one display value,
// taking the status of the most recently updated process.
func projectStatus(node portal.ProjectNode) string {
	if len(node.Processes) == 0 {
		return ""
	}
	return string(node.Processes[0].Status)
}

func formatID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func formatTime(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
