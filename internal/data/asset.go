package data

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/arstage/arstage/internal/core/future"
	"github.com/arstage/arstage/internal/geom"
)

// ErrTemplateUnavailable wraps every template load failure. Placement and
// track binding treat it as "not loaded yet", never as fatal.
var ErrTemplateUnavailable = errors.New("template unavailable")

// Clip is one animation clip of a template.
type Clip struct {
	Name     string  `yaml:"name"`
	Duration float64 `yaml:"duration"` // seconds
}

// AssetSpec describes one loadable asset in the manifest.
type AssetSpec struct {
	Path     string    `yaml:"path"` // identifier used by config and tracks
	File     string    `yaml:"file"` // relative to the asset root; defaults to Path
	Scale    float64   `yaml:"scale"`
	Position []float64 `yaml:"position"`
	Clips    []Clip    `yaml:"clips"`
	Digest   string    `yaml:"digest"` // optional blake2b-256 hex of the file
}

// Manifest lists every asset the stage may load.
type Manifest struct {
	Assets []AssetSpec `yaml:"assets"`
	byPath map[string]*AssetSpec
}

// LoadManifest loads and validates assets.yaml.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read asset manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse asset manifest: %w", err)
	}
	if err := m.index(); err != nil {
		return nil, fmt.Errorf("asset manifest %s: %w", path, err)
	}
	return &m, nil
}

// NewManifest builds a manifest from specs, validating them.
func NewManifest(specs ...AssetSpec) (*Manifest, error) {
	m := &Manifest{Assets: specs}
	if err := m.index(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) index() error {
	m.byPath = make(map[string]*AssetSpec, len(m.Assets))
	for i := range m.Assets {
		a := &m.Assets[i]
		if a.Path == "" {
			return fmt.Errorf("asset %d: empty path", i)
		}
		if _, dup := m.byPath[a.Path]; dup {
			return fmt.Errorf("asset %q declared twice", a.Path)
		}
		if a.Scale == 0 {
			a.Scale = 1
		}
		if a.Scale < 0 {
			return fmt.Errorf("asset %q: negative scale", a.Path)
		}
		if len(a.Position) != 0 && len(a.Position) != 3 {
			return fmt.Errorf("asset %q: position needs 3 coordinates", a.Path)
		}
		for _, c := range a.Clips {
			if c.Duration <= 0 {
				return fmt.Errorf("asset %q clip %q: duration must be positive", a.Path, c.Name)
			}
		}
		m.byPath[a.Path] = a
	}
	return nil
}

// Get returns the spec for path.
func (m *Manifest) Get(path string) (*AssetSpec, bool) {
	a, ok := m.byPath[path]
	return a, ok
}

// Count returns the number of assets.
func (m *Manifest) Count() int { return len(m.Assets) }

// Template is the immutable prototype produced by loading an asset. It is
// shared read-only; placements take a Clone.
type Template struct {
	path  string
	clips []Clip
	base  geom.Transform
}

// NewTemplate builds a template directly, bypassing the manifest.
func NewTemplate(path string, base geom.Transform, clips ...Clip) *Template {
	return &Template{path: path, base: base, clips: append([]Clip(nil), clips...)}
}

func templateFromSpec(a *AssetSpec) *Template {
	base := geom.Transform{Rotation: geom.Identity, Scale: geom.V(a.Scale, a.Scale, a.Scale)}
	if len(a.Position) == 3 {
		base.Position = geom.V(a.Position[0], a.Position[1], a.Position[2])
	}
	return NewTemplate(a.Path, base, a.Clips...)
}

func (t *Template) Path() string         { return t.path }
func (t *Template) Base() geom.Transform { return t.base }

// Clips returns a copy of the clip list.
func (t *Template) Clips() []Clip { return append([]Clip(nil), t.clips...) }

// Duration is the longest clip duration.
func (t *Template) Duration() float64 {
	d := 0.0
	for _, c := range t.clips {
		if c.Duration > d {
			d = c.Duration
		}
	}
	return d
}

// Clone returns an independent deep copy.
func (t *Template) Clone() *Template {
	return NewTemplate(t.path, t.base, t.clips...)
}

// Loader is the asset-loading collaborator.
type Loader interface {
	LoadTemplate(path string) *future.Future[*Template]
}

// FileLoader loads templates described by a manifest. With a non-empty root
// the asset file must exist and match its digest; decoding the model itself
// belongs to the rendering side.
type FileLoader struct {
	manifest *Manifest
	root     string
}

func NewFileLoader(m *Manifest, root string) *FileLoader {
	return &FileLoader{manifest: m, root: root}
}

// LoadTemplate starts an asynchronous load.
func (l *FileLoader) LoadTemplate(path string) *future.Future[*Template] {
	spec, ok := l.manifest.Get(path)
	if !ok {
		return future.Failed[*Template](fmt.Errorf("%w: %q not in manifest", ErrTemplateUnavailable, path))
	}
	f := future.New[*Template]()
	go func() {
		if err := l.verify(spec); err != nil {
			f.Fail(fmt.Errorf("%w: %v", ErrTemplateUnavailable, err))
			return
		}
		f.Resolve(templateFromSpec(spec))
	}()
	return f
}

func (l *FileLoader) verify(a *AssetSpec) error {
	if l.root == "" {
		return nil
	}
	file := a.File
	if file == "" {
		file = strings.TrimPrefix(a.Path, "/")
	}
	raw, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(file)))
	if err != nil {
		return err
	}
	if a.Digest == "" {
		return nil
	}
	sum := blake2b.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); !strings.EqualFold(got, a.Digest) {
		return fmt.Errorf("digest mismatch for %s: got %s", file, got)
	}
	return nil
}

// Digest returns the blake2b-256 hex digest of raw, the format AssetSpec
// expects.
func Digest(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// StaticLoader serves prebuilt templates synchronously.
type StaticLoader map[string]*Template

func (s StaticLoader) LoadTemplate(path string) *future.Future[*Template] {
	if t, ok := s[path]; ok {
		return future.Ready(t)
	}
	return future.Failed[*Template](fmt.Errorf("%w: %q", ErrTemplateUnavailable, path))
}
