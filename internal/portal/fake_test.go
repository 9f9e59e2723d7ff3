package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/civicworks/permit-cli/pkg/postgrest"
)

// fakeREST is an in-memory postgrest.Client backed by per-table row maps.
// It implements the slice of PostgREST behavior the portal relies on:
// eq filters, ordering, limits, merge-duplicate upserts and representation
// bodies.
type fakeREST struct {
	mu     sync.Mutex
	tables map[string][]map[string]any
	nextID map[string]int64

	// missingConstraint makes payload upserts fail the way PostgREST does
	// when the table lacks the conflict-target unique constraint.
	missingConstraint bool
	// failSelect lists tables whose reads should error.
	failSelect map[string]bool
}

func newFakeREST() *fakeREST {
	return &fakeREST{
		tables:     map[string][]map[string]any{},
		nextID:     map[string]int64{},
		failSelect: map[string]bool{},
	}
}

func (f *fakeREST) rows(table string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any{}, f.tables[table]...)
}

func (f *fakeREST) seed(table string, rows ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table] = append(f.tables[table], rows...)
}

func (f *fakeREST) Select(ctx context.Context, table string, q postgrest.Query, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSelect[table] {
		return &postgrest.APIError{StatusCode: http.StatusServiceUnavailable, Detail: "unavailable"}
	}

	var matched []map[string]any
	for _, row := range f.tables[table] {
		if matchesFilters(row, q.Filters) {
			matched = append(matched, row)
		}
	}
	sortRows(matched, q.Order)
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return writeRows(matched, out)
}

func (f *fakeREST) Insert(ctx context.Context, table string, body any, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows, err := decodeRows(body)
	if err != nil {
		return err
	}
	for _, row := range rows {
		f.assignID(table, row)
		f.tables[table] = append(f.tables[table], row)
	}
	return writeRows(rows, out)
}

func (f *fakeREST) Upsert(ctx context.Context, table string, onConflict string, body any, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.missingConstraint && table == tablePayload {
		return &postgrest.APIError{
			StatusCode: http.StatusBadRequest,
			Detail:     "constraint missing",
			Body:       `{"message":"there is no unique or exclusion constraint matching the ON CONFLICT specification"}`,
		}
	}

	keys := strings.Split(onConflict, ",")
	rows, err := decodeRows(body)
	if err != nil {
		return err
	}
	var result []map[string]any
	for _, row := range rows {
		idx := f.findByKeys(table, keys, row)
		if idx >= 0 {
			row["id"] = f.tables[table][idx]["id"]
			f.tables[table][idx] = row
		} else {
			f.assignID(table, row)
			f.tables[table] = append(f.tables[table], row)
		}
		result = append(result, row)
	}
	return writeRows(result, out)
}

func (f *fakeREST) Update(ctx context.Context, table string, q postgrest.Query, body any, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	patches, err := decodeRows(body)
	if err != nil {
		return err
	}
	var patched []map[string]any
	for i, row := range f.tables[table] {
		if !matchesFilters(row, q.Filters) {
			continue
		}
		for _, patch := range patches {
			for k, v := range patch {
				row[k] = v
			}
		}
		f.tables[table][i] = row
		patched = append(patched, row)
	}
	return writeRows(patched, out)
}

func (f *fakeREST) Delete(ctx context.Context, table string, q postgrest.Query) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var kept []map[string]any
	for _, row := range f.tables[table] {
		if !matchesFilters(row, q.Filters) {
			kept = append(kept, row)
		}
	}
	f.tables[table] = kept
	return nil
}

func (f *fakeREST) assignID(table string, row map[string]any) {
	if _, ok := row["id"]; ok {
		return
	}
	f.nextID[table]++
	row["id"] = f.nextID[table]
}

func (f *fakeREST) findByKeys(table string, keys []string, row map[string]any) int {
	for i, existing := range f.tables[table] {
		match := true
		for _, key := range keys {
			v, ok := row[key]
			if !ok || fmt.Sprint(existing[key]) != fmt.Sprint(v) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func matchesFilters(row map[string]any, filters []postgrest.Filter) bool {
	for _, f := range filters {
		if f.Op != "eq" {
			return false
		}
		if fmt.Sprint(row[f.Column]) != f.Value {
			return false
		}
	}
	return true
}

func sortRows(rows []map[string]any, order []postgrest.Order) {
	if len(order) == 0 {
		return
	}
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rowLess(rows[j], rows[j-1], order); j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

func rowLess(a, b map[string]any, order []postgrest.Order) bool {
	for _, o := range order {
		av, bv := a[o.Column], b[o.Column]
		if av == nil && bv == nil {
			continue
		}
		if av == nil {
			return !o.NullsLast && !o.Desc
		}
		if bv == nil {
			return o.NullsLast || o.Desc
		}
		as, bs := fmt.Sprint(av), fmt.Sprint(bv)
		if as == bs {
			continue
		}
		if o.Desc {
			return as > bs
		}
		return as < bs
	}
	return false
}

func decodeRows(body any) ([]map[string]any, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := json.Unmarshal(buf, &rows); err == nil {
		return rows, nil
	}
	var single map[string]any
	if err := json.Unmarshal(buf, &single); err != nil {
		return nil, err
	}
	return []map[string]any{single}, nil
}

func writeRows(rows []map[string]any, out any) error {
	if out == nil {
		return nil
	}
	buf, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}
