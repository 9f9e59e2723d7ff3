package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/portal"
	"github.com/civicworks/permit-cli/internal/screening"
	"github.com/civicworks/permit-cli/internal/store"
	"github.com/civicworks/permit-cli/pkg/ipac"
	"github.com/civicworks/permit-cli/pkg/nepassist"
	"github.com/civicworks/permit-cli/pkg/postgrest"
)

// FormFile is the YAML document the save and submit commands read. It pairs
// the intake form with its permitting checklist so a whole project fits in
// one file.
type FormFile struct {
	Project   model.ProjectForm     `yaml:"project"`
	Checklist []model.ChecklistItem `yaml:"checklist"`
}

func readFormFile(path string) (*FormFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read form file %s", path)
	}
	var ff FormFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, eris.Wrapf(err, "parse form file %s", path)
	}
	return &ff, nil
}

func encodeFormFile(ff *FormFile) ([]byte, error) {
	data, err := yaml.Marshal(ff)
	if err != nil {
		return nil, eris.Wrap(err, "encode form file")
	}
	return data, nil
}

func newPortalService() (*portal.Service, error) {
	if err := cfg.Validate("remote"); err != nil {
		return nil, err
	}
	rest, err := postgrest.NewClient(cfg.Backend.URL, cfg.Backend.AnonKey)
	if err != nil {
		return nil, eris.Wrap(err, "create backend client")
	}
	return portal.NewService(rest), nil
}

func newScreeningRunner() *screening.Runner {
	nc := nepassist.NewClient(nepassist.WithBaseURL(cfg.NEPAssist.BaseURL))
	ic := ipac.NewClient(ipac.WithBaseURL(cfg.IPaC.BaseURL))
	return screening.NewRunner(nc, ic)
}

// screeningArea derives the screened footprint from the form: the drawn or
// uploaded geometry when present, otherwise the point coordinates.
func screeningArea(form *model.ProjectForm) screening.Area {
	area := screening.Area{BufferMiles: cfg.Screening.BufferMiles}
	if form.LocationLat != nil {
		area.Latitude = *form.LocationLat
	}
	if form.LocationLon != nil {
		area.Longitude = *form.LocationLon
	}
	if form.LocationGeometry != "" && json.Valid([]byte(form.LocationGeometry)) {
		area.Geometry = json.RawMessage(form.LocationGeometry)
	}
	return area
}

func openDraftStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("draft"); err != nil {
		return nil, err
	}
	switch cfg.Drafts.Driver {
	case "sqlite":
		s, err := store.NewSQLite(cfg.Drafts.Path)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case "postgres":
		poolCfg := &store.PoolConfig{
			MaxConns: cfg.Drafts.Pool.MaxConns,
			MinConns: cfg.Drafts.Pool.MinConns,
		}
		s, err := store.NewPostgres(ctx, cfg.Drafts.DatabaseURL, poolCfg)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("unsupported drafts driver %q", cfg.Drafts.Driver)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
