package screening

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/civicworks/permit-cli/pkg/ipac"
	"github.com/civicworks/permit-cli/pkg/nepassist"
)

// Area is the project footprint both services are screened against.
type Area struct {
	Latitude    float64
	Longitude   float64
	Geometry    json.RawMessage
	BufferMiles float64
}

// Runner dispatches both screening services for a project area.
type Runner struct {
	nepassist nepassist.Client
	ipac      ipac.Client
}

// NewRunner creates a Runner over the two service clients.
func NewRunner(nc nepassist.Client, ic ipac.Client) *Runner {
	return &Runner{nepassist: nc, ipac: ic}
}

// Run screens the area against both services concurrently. Each service
// settles independently: one failing never discards or masks the other's
// result, so the caller always gets a complete Results with per-service
// success or error states.
func (r *Runner) Run(ctx context.Context, area Area) Results {
	now := time.Now().UTC()
	results := Results{
		NEPAssist: ServiceState{Status: StatusLoading},
		IPaC:      ServiceState{Status: StatusLoading},
		LastRunAt: &now,
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		results.NEPAssist = r.runNEPAssist(ctx, area, now)
	}()
	go func() {
		defer wg.Done()
		results.IPaC = r.runIPaC(ctx, area, now)
	}()
	wg.Wait()

	if results.NEPAssist.Status == StatusError {
		results.Messages = append(results.Messages, "NEPAssist screening failed: "+results.NEPAssist.Error)
	}
	if results.IPaC.Status == StatusError {
		results.Messages = append(results.Messages, "IPaC screening failed: "+results.IPaC.Error)
	}
	return results
}

func (r *Runner) runNEPAssist(ctx context.Context, area Area, ranAt time.Time) ServiceState {
	resp, err := r.nepassist.Report(ctx, nepassist.ReportRequest{
		Latitude:    area.Latitude,
		Longitude:   area.Longitude,
		Geometry:    area.Geometry,
		BufferMiles: area.BufferMiles,
	})
	meta := &Meta{RanAt: &ranAt, Endpoint: ServiceNEPAssist}
	if err != nil {
		zap.L().Warn("screening: nepassist failed", zap.Error(err))
		return ServiceState{Status: StatusError, Error: err.Error(), Meta: meta}
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return ServiceState{Status: StatusError, Error: err.Error(), Meta: meta}
	}
	return ServiceState{
		Status:  StatusSuccess,
		Raw:     raw,
		Summary: SummarizeNEPAssist(raw),
		Meta:    meta,
	}
}

func (r *Runner) runIPaC(ctx context.Context, area Area, ranAt time.Time) ServiceState {
	loc := area.Geometry
	if len(loc) == 0 {
		point, err := json.Marshal(map[string]any{
			"type":        "Point",
			"coordinates": []float64{area.Longitude, area.Latitude},
		})
		if err != nil {
			return ServiceState{Status: StatusError, Error: err.Error()}
		}
		loc = point
	}

	resp, err := r.ipac.Resources(ctx, ipac.ResourcesRequest{Location: loc})
	meta := &Meta{RanAt: &ranAt, Endpoint: ServiceIPaC}
	if err != nil {
		zap.L().Warn("screening: ipac failed", zap.Error(err))
		return ServiceState{Status: StatusError, Error: err.Error(), Meta: meta}
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return ServiceState{Status: StatusError, Error: err.Error(), Meta: meta}
	}
	return ServiceState{
		Status:  StatusSuccess,
		Raw:     raw,
		Summary: SummarizeIPaC(raw),
		Meta:    meta,
	}
}
