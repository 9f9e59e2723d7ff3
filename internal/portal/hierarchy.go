package portal

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/pkg/postgrest"
)

// ProjectNode is one project with its nested processes, for listing views.
type ProjectNode struct {
	Row       model.ProjectRow
	Processes []ProcessNode
}

// ProcessNode is one process instance with its merged event timeline.
// Events includes both true case events and one synthesized entry per
// decision payload, so overviews show submissions interleaved with
// milestones. Synthetic entries carry decreasing negative ids.
type ProcessNode struct {
	Instance model.ProcessInstance
	Status   model.ProcessStatus
	Events   []model.CaseEvent
}

// FetchProjectHierarchy bulk-fetches every row this portal has written and
// assembles the project tree. The five table scans run concurrently; each
// level of the result is sorted by last updated descending, nulls last.
func (s *Service) FetchProjectHierarchy(ctx context.Context) ([]ProjectNode, error) {
	var (
		projects  []model.ProjectRow
		instances []model.ProcessInstance
		events    []model.CaseEvent
		payloads  []model.DecisionPayload
		elements  []model.DecisionElement
	)

	ownRows := postgrest.Query{Filters: []postgrest.Filter{
		postgrest.Eq("data_source_system", model.DataSourceSystem),
	}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.rest.Select(gctx, tableProject, ownRows, &projects)
	})
	g.Go(func() error {
		q := postgrest.Query{Filters: []postgrest.Filter{
			postgrest.Eq("data_source_system", model.DataSourceSystem),
			postgrest.Eq("process_model", s.processModel),
		}}
		return s.rest.Select(gctx, tableProcessInstance, q, &instances)
	})
	g.Go(func() error {
		return s.rest.Select(gctx, tableCaseEvent, ownRows, &events)
	})
	g.Go(func() error {
		return s.rest.Select(gctx, tablePayload, ownRows, &payloads)
	})
	g.Go(func() error {
		var err error
		elements, err = s.DecisionElements(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	eventsByProcess := map[int64][]model.CaseEvent{}
	for _, ev := range events {
		eventsByProcess[ev.ParentProcessID] = append(eventsByProcess[ev.ParentProcessID], ev)
	}

	now := s.now()
	titles := titleByElementID(elements)
	syntheticByProcess := synthesizePayloadEvents(payloads, titles)

	nodesByProject := map[int64][]ProcessNode{}
	for _, inst := range instances {
		if inst.ID == nil {
			continue
		}
		real := eventsByProcess[*inst.ID]
		merged := append(append([]model.CaseEvent{}, real...), syntheticByProcess[*inst.ID]...)
		sortByLastUpdated(merged, func(ev model.CaseEvent) *time.Time { return ev.LastUpdated })

		nodesByProject[inst.ParentProjectID] = append(nodesByProject[inst.ParentProjectID], ProcessNode{
			Instance: inst,
			Status:   DeriveProcessStatus(real, now),
			Events:   merged,
		})
	}

	tree := make([]ProjectNode, 0, len(projects))
	for _, row := range projects {
		node := ProjectNode{Row: row}
		if row.ID != nil {
			node.Processes = nodesByProject[*row.ID]
			sortByLastUpdated(node.Processes, func(p ProcessNode) *time.Time { return p.Instance.LastUpdated })
		}
		tree = append(tree, node)
	}
	sortByLastUpdated(tree, func(p ProjectNode) *time.Time { return p.Row.LastUpdated })
	return tree, nil
}

// synthesizePayloadEvents shapes each decision payload as a case event so
// listings can interleave them with the real timeline. Ids start at -1 and
// decrease, never colliding with server-assigned event ids.
func synthesizePayloadEvents(payloads []model.DecisionPayload, titles map[int64]string) map[int64][]model.CaseEvent {
	byProcess := map[int64][]model.CaseEvent{}
	nextID := int64(-1)
	for _, p := range payloads {
		title := payloadTitle(p, titles)
		if title == "" {
			title = "Decision payload"
		}
		id := nextID
		nextID--
		byProcess[p.Process] = append(byProcess[p.Process], model.CaseEvent{
			ID:                 &id,
			ParentProcessID:    p.Process,
			Type:               title,
			Other:              p.EvaluationData,
			DataSourceSystem:   p.DataSourceSystem,
			LastUpdated:        p.LastUpdated,
			RetrievedTimestamp: p.RetrievedTimestamp,
		})
	}
	return byProcess
}

// sortByLastUpdated orders newest first, with rows lacking a timestamp at
// the end. The sort is stable so equal timestamps keep fetch order.
func sortByLastUpdated[T any](items []T, ts func(T) *time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := ts(items[i]), ts(items[j])
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
