package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arstage/arstage/internal/geom"
	"github.com/arstage/arstage/internal/host"
)

// Scenario is a scripted sequence of host frames and user input.
type Scenario struct {
	Features     []string `yaml:"features"`
	ResolveAfter int      `yaml:"resolve_after_frames"`
	Loop         bool     `yaml:"loop"`
	Steps        []Step   `yaml:"steps"`
}

// Step describes one frame, optionally repeated.
type Step struct {
	Hits       [][]float64 `yaml:"hits"`
	Select     bool        `yaml:"select"`
	Command    string      `yaml:"command"`
	EndSession bool        `yaml:"end_session"`
	NoFrame    bool        `yaml:"no_frame"`
	Repeat     int         `yaml:"repeat"`
}

// LoadScenario reads a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	for i, st := range sc.Steps {
		if st.Repeat < 0 {
			return nil, fmt.Errorf("scenario step %d: negative repeat", i)
		}
		for _, h := range st.Hits {
			if len(h) != 3 {
				return nil, fmt.Errorf("scenario step %d: hit needs 3 coordinates, got %d", i, len(h))
			}
		}
	}
	return &sc, nil
}

// HostFeatures converts the scenario feature list.
func (sc *Scenario) HostFeatures() []host.Feature {
	return host.Features(sc.Features...)
}

// FrameCount is the number of frames one pass of the scenario produces.
func (sc *Scenario) FrameCount() int {
	n := 0
	for _, st := range sc.Steps {
		n += st.count()
	}
	return n
}

func (st Step) count() int {
	if st.Repeat <= 0 {
		return 1
	}
	return st.Repeat
}

// Frame builds the host frame for this step, or nil for NoFrame.
func (st Step) Frame() host.Frame {
	if st.NoFrame {
		return nil
	}
	f := &Frame{Hits: make([]geom.Transform, 0, len(st.Hits))}
	for _, h := range st.Hits {
		f.Hits = append(f.Hits, geom.Pose(geom.V(h[0], h[1], h[2])))
	}
	return f
}

// Player walks a scenario one frame at a time. Select, Command and
// EndSession fire only on the first frame of a repeated step.
type Player struct {
	sc   *Scenario
	step int
	rep  int
}

func NewPlayer(sc *Scenario) *Player { return &Player{sc: sc} }

// Next returns the next step and whether its one-shot input should fire.
// ok is false once a non-looping scenario is exhausted.
func (p *Player) Next() (st Step, first bool, ok bool) {
	if p.step >= len(p.sc.Steps) {
		if !p.sc.Loop || len(p.sc.Steps) == 0 {
			return Step{}, false, false
		}
		p.step, p.rep = 0, 0
	}
	st = p.sc.Steps[p.step]
	first = p.rep == 0
	p.rep++
	if p.rep >= st.count() {
		p.step++
		p.rep = 0
	}
	return st, first, true
}
