package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PauseSpec declares a tick-count pause gate on a track.
type PauseSpec struct {
	AtTick        uint64 `yaml:"at_tick"`
	Action        string `yaml:"action"`         // milestone action fired on pause
	ResumeCommand string `yaml:"resume_command"` // defaults to "resume-<track id>"
}

// TrackSpec declares an anchored, animated entity.
type TrackSpec struct {
	ID              string     `yaml:"id"`
	Template        string     `yaml:"template"`
	Position        []float64  `yaml:"position"`
	Scale           float64    `yaml:"scale"`
	TimeScale       float64    `yaml:"time_scale"`
	Loop            string     `yaml:"loop"` // "once" or "repeat"
	Clamp           *bool      `yaml:"clamp"`
	StartDelayTicks uint64     `yaml:"start_delay_ticks"`
	Pause           *PauseSpec `yaml:"pause"`
}

// Clamped reports whether a once-track holds its last pose (default true).
func (s *TrackSpec) Clamped() bool { return s.Clamp == nil || *s.Clamp }

// LoadTrackTable loads tracks.yaml.
func LoadTrackTable(path string) ([]TrackSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read track table: %w", err)
	}
	var specs []TrackSpec
	if err := yaml.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("parse track table: %w", err)
	}
	if err := ValidateTracks(specs); err != nil {
		return nil, fmt.Errorf("track table %s: %w", path, err)
	}
	return specs, nil
}

// ValidateTracks checks specs and fills defaults in place.
func ValidateTracks(specs []TrackSpec) error {
	seen := make(map[string]bool, len(specs))
	for i := range specs {
		s := &specs[i]
		if s.ID == "" {
			return fmt.Errorf("track %d: empty id", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("track %q declared twice", s.ID)
		}
		seen[s.ID] = true
		if s.Template == "" {
			return fmt.Errorf("track %q: empty template", s.ID)
		}
		switch s.Loop {
		case "":
			s.Loop = "once"
		case "once", "repeat":
		default:
			return fmt.Errorf("track %q: unknown loop %q", s.ID, s.Loop)
		}
		if len(s.Position) != 0 && len(s.Position) != 3 {
			return fmt.Errorf("track %q: position needs 3 coordinates", s.ID)
		}
		if s.Scale < 0 || s.TimeScale < 0 {
			return fmt.Errorf("track %q: negative scale", s.ID)
		}
		if p := s.Pause; p != nil {
			if p.AtTick == 0 {
				return fmt.Errorf("track %q: pause.at_tick must be positive", s.ID)
			}
			if p.ResumeCommand == "" {
				p.ResumeCommand = "resume-" + s.ID
			}
		}
	}
	return nil
}
