package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arstage/arstage/internal/milestone"
)

type milestoneEntry struct {
	Trigger string `yaml:"trigger"`
	Track   string `yaml:"track"`
	Action  string `yaml:"action"`
}

// LoadMilestoneTable loads milestones.yaml: a list of trigger/action pairs,
// the trigger optionally scoped to a track.
func LoadMilestoneTable(path string) ([]milestone.Milestone, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read milestone table: %w", err)
	}
	var entries []milestoneEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse milestone table: %w", err)
	}
	out := make([]milestone.Milestone, 0, len(entries))
	for i, e := range entries {
		tr, err := milestone.ParseTrigger(e.Trigger)
		if err != nil {
			return nil, fmt.Errorf("milestone %d: %w", i, err)
		}
		if e.Track != "" {
			tr.Scope = e.Track
		}
		if milestone.Normalize(e.Action) == "" {
			return nil, fmt.Errorf("milestone %d: empty action", i)
		}
		out = append(out, milestone.Milestone{Trigger: tr, Action: e.Action})
	}
	return out, nil
}
