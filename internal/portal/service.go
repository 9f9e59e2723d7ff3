// Package portal orchestrates the dependent writes behind each portal
// action: project snapshot saves, pre-screening submissions, and project
// loads. It sequences project row, process instance, decision payload and
// case event mutations through the REST gateway, and assembles the project
// hierarchy for listing views.
package portal

import (
	"context"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civicworks/permit-cli/internal/gis"
	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/payload"
	"github.com/civicworks/permit-cli/internal/record"
	"github.com/civicworks/permit-cli/internal/screening"
	"github.com/civicworks/permit-cli/pkg/postgrest"
)

// Backend table names, PostgREST route segments under /rest/v1.
const (
	tableProject         = "project"
	tableProcessInstance = "process_instance"
	tablePayload         = "process_decision_payload"
	tableCaseEvent       = "case_event"
	tableDecisionElement = "decision_element"
	tableGISData         = "gis_data"
)

// Service sequences portal mutations against the REST backend. All writes
// are tagged with the portal's data source system and scoped to it on read.
type Service struct {
	rest         postgrest.Client
	processModel int64
	now          func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithProcessModel overrides the pre-screening process model id.
func WithProcessModel(id int64) ServiceOption {
	return func(s *Service) {
		s.processModel = id
	}
}

// WithClock overrides the timestamp source. Used by tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a portal service over the given REST client.
func NewService(rest postgrest.Client, opts ...ServiceOption) *Service {
	s := &Service{
		rest:         rest,
		processModel: model.PreScreeningProcessModelID,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveProjectSnapshot upserts the project row, assigns the server-side id
// back onto the form, guarantees a process instance exists, records a
// "Project initiated" event, and reconciles the GIS side record. Repeated
// saves deliberately append a fresh "Project initiated" event each time;
// only the pre-screening events are deduplicated by type.
func (s *Service) SaveProjectSnapshot(ctx context.Context, form *model.ProjectForm, geo screening.Results, upload *gis.Container) error {
	row := record.BuildProjectRow(form, geo, s.now())

	var saved []model.ProjectRow
	if err := s.rest.Upsert(ctx, tableProject, "id", []model.ProjectRow{row}, &saved); err != nil {
		return eris.Wrap(err, "portal: save project row")
	}

	projectID, err := s.savedProjectID(form, saved)
	if err != nil {
		return err
	}
	form.ID = strconv.FormatInt(projectID, 10)

	inst, err := s.EnsureProcessInstance(ctx, projectID, form.Title)
	if err != nil {
		return err
	}

	if err := s.appendCaseEvent(ctx, *inst.ID, model.EventProjectInitiated, model.JSONMap{
		"projectId": projectID,
		"title":     form.Title,
	}); err != nil {
		return err
	}

	return s.reconcileGISData(ctx, projectID, upload)
}

// savedProjectID prefers the id from the upsert representation, falling
// back to the form's own id for backends that omit representations.
func (s *Service) savedProjectID(form *model.ProjectForm, saved []model.ProjectRow) (int64, error) {
	if len(saved) > 0 && saved[0].ID != nil {
		return *saved[0].ID, nil
	}
	id, err := form.NumericID()
	if err != nil {
		return 0, eris.Wrap(err, "portal: backend returned no project representation")
	}
	zap.L().Debug("portal: upsert returned no representation, keeping form id",
		zap.Int64("projectId", id),
	)
	return id, nil
}

// EnsureProcessInstance finds the most recently updated pre-screening
// instance for the project, creating one when none exists. Repeated saves
// of the same project reuse the existing instance.
func (s *Service) EnsureProcessInstance(ctx context.Context, projectID int64, title string) (model.ProcessInstance, error) {
	q := postgrest.Query{
		Filters: []postgrest.Filter{
			postgrest.Eq("parent_project_id", projectID),
			postgrest.Eq("process_model", s.processModel),
			postgrest.Eq("data_source_system", model.DataSourceSystem),
		},
		Order: []postgrest.Order{
			{Column: "last_updated", Desc: true, NullsLast: true},
			{Column: "id", Desc: true},
		},
		Limit: 1,
	}

	var existing []model.ProcessInstance
	if err := s.rest.Select(ctx, tableProcessInstance, q, &existing); err != nil {
		return model.ProcessInstance{}, eris.Wrap(err, "portal: look up process instance")
	}
	if len(existing) > 0 && existing[0].ID != nil {
		return existing[0], nil
	}

	ts := s.now().UTC()
	inst := model.ProcessInstance{
		ParentProjectID:    projectID,
		Description:        model.ProcessDescription(title),
		ProcessModel:       s.processModel,
		DataSourceSystem:   model.DataSourceSystem,
		LastUpdated:        &ts,
		RetrievedTimestamp: &ts,
	}

	var created []model.ProcessInstance
	if err := s.rest.Insert(ctx, tableProcessInstance, []model.ProcessInstance{inst}, &created); err != nil {
		return model.ProcessInstance{}, eris.Wrap(err, "portal: create process instance")
	}
	if len(created) == 0 || created[0].ID == nil {
		return model.ProcessInstance{}, eris.New("portal: backend returned no process instance representation")
	}
	return created[0], nil
}

// SubmitDecisionPayloads builds and upserts one decision payload per
// element, evaluates completeness, and ensures the pre-screening events
// exist. The "Pre-screening complete" event is only created when every
// element produced meaningful content, and an existing event of either
// type is left untouched so timestamps reflect first occurrence.
func (s *Service) SubmitDecisionPayloads(ctx context.Context, form *model.ProjectForm, geo screening.Results, checklist []model.ChecklistItem) (payload.Evaluation, error) {
	projectID, err := form.NumericID()
	if err != nil {
		return payload.Evaluation{}, err
	}

	inst, err := s.EnsureProcessInstance(ctx, projectID, form.Title)
	if err != nil {
		return payload.Evaluation{}, err
	}

	elements, err := s.DecisionElements(ctx)
	if err != nil {
		// The builders fall back to title-tagged payloads when the catalog
		// is unavailable, so a lookup failure does not abort the batch.
		zap.L().Warn("portal: decision element catalog unavailable", zap.Error(err))
		elements = nil
	}

	records := payload.BuildRecords(*inst.ID, s.now(), catalogByTitle(elements), payload.Context{
		Row:       record.BuildProjectRow(form, geo, s.now()),
		Geo:       geo,
		Checklist: checklist,
		Form:      *form,
	})
	for _, rec := range records {
		if err := s.upsertPayload(ctx, rec.Payload); err != nil {
			return payload.Evaluation{}, eris.Wrapf(err, "portal: submit payload %q", rec.Title)
		}
	}

	eval := payload.Evaluate(records)

	if err := s.ensureCaseEvent(ctx, *inst.ID, model.EventPreScreeningInitiated, model.JSONMap{
		"projectId": projectID,
	}); err != nil {
		return eval, err
	}
	if eval.IsComplete {
		if err := s.ensureCaseEvent(ctx, *inst.ID, model.EventPreScreeningComplete, model.JSONMap{
			"projectId": projectID,
			"completed": eval.CompletedTitles,
		}); err != nil {
			return eval, err
		}
	}
	return eval, nil
}

// upsertPayload writes one payload row, keyed by (process,
// process_decision_element). Backends lacking the matching unique
// constraint reject the upsert; those are detected and retried as a
// delete-then-insert.
func (s *Service) upsertPayload(ctx context.Context, row model.DecisionPayload) error {
	err := s.rest.Upsert(ctx, tablePayload, "process,process_decision_element", []model.DecisionPayload{row}, nil)
	if err == nil {
		return nil
	}
	if !postgrest.IsMissingConflictConstraint(err) {
		return err
	}

	zap.L().Warn("portal: payload upsert unsupported by backend, falling back to delete and insert",
		zap.Int64("process", row.Process),
	)
	if row.ProcessDecisionElement != nil {
		q := postgrest.Query{Filters: []postgrest.Filter{
			postgrest.Eq("process", row.Process),
			postgrest.Eq("process_decision_element", *row.ProcessDecisionElement),
		}}
		if err := s.rest.Delete(ctx, tablePayload, q); err != nil {
			return eris.Wrap(err, "delete before reinsert")
		}
	}
	return s.rest.Insert(ctx, tablePayload, []model.DecisionPayload{row}, nil)
}

// DecisionElements fetches the server-side element catalog for the
// configured process model.
func (s *Service) DecisionElements(ctx context.Context) ([]model.DecisionElement, error) {
	q := postgrest.Query{
		Select: "id,title",
		Filters: []postgrest.Filter{
			postgrest.Eq("process_model", s.processModel),
		},
	}
	var elements []model.DecisionElement
	if err := s.rest.Select(ctx, tableDecisionElement, q, &elements); err != nil {
		return nil, eris.Wrap(err, "portal: fetch decision elements")
	}
	return elements, nil
}

func catalogByTitle(elements []model.DecisionElement) map[string]model.DecisionElement {
	catalog := make(map[string]model.DecisionElement, len(elements))
	for _, el := range elements {
		catalog[el.Title] = el
	}
	return catalog
}

func titleByElementID(elements []model.DecisionElement) map[int64]string {
	titles := make(map[int64]string, len(elements))
	for _, el := range elements {
		titles[el.ID] = el.Title
	}
	return titles
}

// reconcileGISData upserts the GIS side record when an upload is present
// and removes any stale record when it is not.
func (s *Service) reconcileGISData(ctx context.Context, projectID int64, upload *gis.Container) error {
	byProject := postgrest.Query{Filters: []postgrest.Filter{
		postgrest.Eq("parent_project_id", projectID),
		postgrest.Eq("data_source_system", model.DataSourceSystem),
	}}

	if upload == nil {
		if err := s.rest.Delete(ctx, tableGISData, byProject); err != nil {
			return eris.Wrap(err, "portal: remove gis record")
		}
		return nil
	}

	data, err := upload.Marshal()
	if err != nil {
		return err
	}
	ts := s.now().UTC()
	row := model.GISDataRow{
		ParentProjectID:    projectID,
		Data:               data,
		DataSourceSystem:   model.DataSourceSystem,
		LastUpdated:        &ts,
		RetrievedTimestamp: &ts,
	}

	var existing []model.GISDataRow
	if err := s.rest.Select(ctx, tableGISData, byProject, &existing); err != nil {
		return eris.Wrap(err, "portal: look up gis record")
	}
	if len(existing) > 0 {
		if err := s.rest.Update(ctx, tableGISData, byProject, row, nil); err != nil {
			return eris.Wrap(err, "portal: update gis record")
		}
		return nil
	}
	if err := s.rest.Insert(ctx, tableGISData, []model.GISDataRow{row}, nil); err != nil {
		return eris.Wrap(err, "portal: create gis record")
	}
	return nil
}

// LoadedProject is the reconstructed portal state for one project.
type LoadedProject struct {
	Form      model.ProjectForm
	Geo       screening.Results
	Checklist []model.ChecklistItem
	Upload    gis.Container
	Status    model.ProcessStatus
}

// LoadProject rebuilds form, screening and checklist state from the stored
// rows: the project row first, then each stored decision payload replayed
// in element order on top of it. Malformed stored data degrades to absent
// fields rather than failing the load.
func (s *Service) LoadProject(ctx context.Context, projectID int64) (LoadedProject, error) {
	q := postgrest.Query{
		Filters: []postgrest.Filter{
			postgrest.Eq("id", projectID),
			postgrest.Eq("data_source_system", model.DataSourceSystem),
		},
		Limit: 1,
	}
	var rows []model.ProjectRow
	if err := s.rest.Select(ctx, tableProject, q, &rows); err != nil {
		return LoadedProject{}, eris.Wrap(err, "portal: fetch project")
	}
	if len(rows) == 0 {
		return LoadedProject{}, eris.Errorf("portal: project %d not found", projectID)
	}

	loaded := LoadedProject{
		Geo:    screening.NewResults(),
		Status: model.ProcessStatusCaution,
	}
	record.ApplyRowToForm(&rows[0], &loaded.Form, &loaded.Geo)

	if err := s.replayPayloads(ctx, projectID, &loaded); err != nil {
		return LoadedProject{}, err
	}
	s.loadGISData(ctx, projectID, &loaded)
	return loaded, nil
}

// replayPayloads layers the stored decision payloads for the project's
// current process instance back onto the loaded state and derives the
// display status from its case events.
func (s *Service) replayPayloads(ctx context.Context, projectID int64, loaded *LoadedProject) error {
	instQ := postgrest.Query{
		Filters: []postgrest.Filter{
			postgrest.Eq("parent_project_id", projectID),
			postgrest.Eq("process_model", s.processModel),
			postgrest.Eq("data_source_system", model.DataSourceSystem),
		},
		Order: []postgrest.Order{
			{Column: "last_updated", Desc: true, NullsLast: true},
			{Column: "id", Desc: true},
		},
		Limit: 1,
	}
	var instances []model.ProcessInstance
	if err := s.rest.Select(ctx, tableProcessInstance, instQ, &instances); err != nil {
		return eris.Wrap(err, "portal: fetch process instance")
	}
	if len(instances) == 0 || instances[0].ID == nil {
		return nil
	}
	processID := *instances[0].ID

	var stored []model.DecisionPayload
	payloadQ := postgrest.Query{Filters: []postgrest.Filter{
		postgrest.Eq("process", processID),
		postgrest.Eq("data_source_system", model.DataSourceSystem),
	}}
	if err := s.rest.Select(ctx, tablePayload, payloadQ, &stored); err != nil {
		return eris.Wrap(err, "portal: fetch decision payloads")
	}

	elements, err := s.DecisionElements(ctx)
	if err != nil {
		zap.L().Warn("portal: decision element catalog unavailable on load", zap.Error(err))
	}
	titles := titleByElementID(elements)

	byTitle := map[string]map[string]any{}
	for _, p := range stored {
		title := payloadTitle(p, titles)
		if title == "" {
			continue
		}
		byTitle[title] = map[string]any(p.EvaluationData)
	}
	for _, key := range model.ElementOrder {
		if data, ok := byTitle[key.Title()]; ok {
			payload.ApplyToState(key.Title(), data, &loaded.Form, &loaded.Geo, &loaded.Checklist)
		}
	}

	var events []model.CaseEvent
	eventQ := postgrest.Query{Filters: []postgrest.Filter{
		postgrest.Eq("parent_process_id", processID),
		postgrest.Eq("data_source_system", model.DataSourceSystem),
	}}
	if err := s.rest.Select(ctx, tableCaseEvent, eventQ, &events); err != nil {
		return eris.Wrap(err, "portal: fetch case events")
	}
	loaded.Status = DeriveProcessStatus(events, s.now())
	return nil
}

// payloadTitle resolves the element title for a stored payload: through the
// catalog when the payload is linked to an element id, else via the title
// the builder embedded as its synthetic id.
func payloadTitle(p model.DecisionPayload, titles map[int64]string) string {
	if p.ProcessDecisionElement != nil {
		if title, ok := titles[*p.ProcessDecisionElement]; ok {
			return title
		}
	}
	if synthetic, ok := p.EvaluationData["id"].(string); ok {
		return synthetic
	}
	return ""
}

// loadGISData restores the uploaded-geometry container. A missing or
// malformed side record leaves the loaded state untouched.
func (s *Service) loadGISData(ctx context.Context, projectID int64, loaded *LoadedProject) {
	q := postgrest.Query{
		Filters: []postgrest.Filter{
			postgrest.Eq("parent_project_id", projectID),
			postgrest.Eq("data_source_system", model.DataSourceSystem),
		},
		Limit: 1,
	}
	var rows []model.GISDataRow
	if err := s.rest.Select(ctx, tableGISData, q, &rows); err != nil {
		zap.L().Debug("portal: gis record unavailable", zap.Error(err))
		return
	}
	if len(rows) == 0 {
		return
	}
	loaded.Upload = gis.Parse(rows[0].Data)
	if loaded.Form.LocationGeometry == "" && len(loaded.Upload.Geometry) > 0 {
		loaded.Form.LocationGeometry = string(loaded.Upload.Geometry)
	}
}
