package main

import (
	"fmt"

	"github.com/arstage/arstage/internal/config"
	"github.com/arstage/arstage/internal/data"
	"github.com/arstage/arstage/internal/host/sim"
	"github.com/arstage/arstage/internal/milestone"
)

// tables are the YAML inputs a stage is built from.
type tables struct {
	manifest   *data.Manifest
	tracks     []data.TrackSpec
	milestones []milestone.Milestone
	scenario   *sim.Scenario // nil without a scenario file
}

func loadTables(cfg *config.Config) (*tables, error) {
	t := &tables{}
	var err error
	if t.manifest, err = data.LoadManifest(cfg.Assets.Manifest); err != nil {
		return nil, err
	}
	if t.tracks, err = data.LoadTrackTable(cfg.Animation.TracksFile); err != nil {
		return nil, err
	}
	if t.milestones, err = data.LoadMilestoneTable(cfg.Milestones.File); err != nil {
		return nil, err
	}
	if cfg.Scenario.File != "" {
		if t.scenario, err = sim.LoadScenario(cfg.Scenario.File); err != nil {
			return nil, err
		}
	}
	if err := t.check(cfg); err != nil {
		return nil, err
	}
	return t, nil
}

// check cross-references the tables: every template a session can use must
// be in the manifest.
func (t *tables) check(cfg *config.Config) error {
	if p := cfg.Placement.Template; p != "" {
		if _, ok := t.manifest.Get(p); !ok {
			return fmt.Errorf("placement template %q not in manifest", p)
		}
	}
	for _, tr := range t.tracks {
		if _, ok := t.manifest.Get(tr.Template); !ok {
			return fmt.Errorf("track %q: template %q not in manifest", tr.ID, tr.Template)
		}
	}
	return nil
}
