package screening

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/civicworks/permit-cli/pkg/ipac"
	"github.com/civicworks/permit-cli/pkg/nepassist"
)

// SummarizeNEPAssist renders a NEPAssist report into a short human-readable
// summary. Malformed raw data yields an empty summary, never an error;
// historical rows may hold responses from older service versions.
func SummarizeNEPAssist(raw json.RawMessage) string {
	var report nepassist.ReportResponse
	if err := json.Unmarshal(raw, &report); err != nil || len(report.Layers) == 0 {
		return ""
	}

	var hits []string
	clean := 0
	for _, layer := range report.Layers {
		if layer.Layer == "" {
			continue
		}
		if layer.Count > 0 {
			hits = append(hits, fmt.Sprintf("%s: %d", layer.Layer, layer.Count))
		} else {
			clean++
		}
	}
	if len(hits) == 0 {
		if clean == 0 {
			return ""
		}
		return fmt.Sprintf("No environmental features flagged across %d layers.", clean)
	}
	return fmt.Sprintf("Flagged layers: %s. %d additional layers clear.", strings.Join(hits, "; "), clean)
}

// SummarizeIPaC renders an IPaC resources response into a short summary.
// Malformed raw data yields an empty summary.
func SummarizeIPaC(raw json.RawMessage) string {
	var resp ipac.ResourcesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ""
	}

	res := resp.Resources
	var parts []string
	if n := len(res.PopulationsBySpecies); n > 0 {
		parts = append(parts, fmt.Sprintf("%d listed species", n))
	}
	if n := len(res.CriticalHabitats); n > 0 {
		parts = append(parts, fmt.Sprintf("%d critical habitats", n))
	}
	if n := len(res.MigratoryBirds); n > 0 {
		parts = append(parts, fmt.Sprintf("%d migratory birds of concern", n))
	}
	if n := len(res.Refuges); n > 0 {
		parts = append(parts, fmt.Sprintf("%d refuges", n))
	}
	if n := len(res.Wetlands); n > 0 {
		parts = append(parts, fmt.Sprintf("%d wetland classes", n))
	}
	if len(parts) == 0 {
		return ""
	}
	return "IPaC resources in project area: " + strings.Join(parts, ", ") + "."
}

// Entry is the structured per-service line used in resource-notes payloads.
type Entry struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Entries returns one Entry per service, in fixed nepassist-then-ipac order.
func Entries(r Results) []Entry {
	return []Entry{
		{
			Service: ServiceNEPAssist,
			Status:  string(r.NEPAssist.Status),
			Summary: r.NEPAssist.Summary,
			Error:   r.NEPAssist.Error,
		},
		{
			Service: ServiceIPaC,
			Status:  string(r.IPaC.Status),
			Summary: r.IPaC.Summary,
			Error:   r.IPaC.Error,
		},
	}
}

// Narrative renders both services into the multi-paragraph text embedded in
// resource-notes payloads.
func Narrative(r Results) string {
	var paras []string
	paras = append(paras, serviceParagraph("NEPAssist", r.NEPAssist))
	paras = append(paras, serviceParagraph("IPaC", r.IPaC))
	if r.LastRunAt != nil {
		paras = append(paras, "Screening last run "+r.LastRunAt.UTC().Format("2006-01-02 15:04 UTC")+".")
	}
	return strings.Join(paras, "\n\n")
}

func serviceParagraph(name string, s ServiceState) string {
	switch s.Status {
	case StatusSuccess:
		if s.Summary != "" {
			return name + ": " + s.Summary
		}
		return name + ": screening completed with no summary available."
	case StatusError:
		if s.Error != "" {
			return name + ": screening failed (" + s.Error + ")."
		}
		return name + ": screening failed."
	case StatusLoading:
		return name + ": screening in progress."
	default:
		return name + ": screening not run."
	}
}
