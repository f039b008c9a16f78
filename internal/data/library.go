package data

import (
	"sort"

	"go.uber.org/zap"

	"github.com/arstage/arstage/internal/core/future"
)

type libEntry struct {
	f        *future.Future[*Template]
	reported bool
}

// Library caches one load per asset path and answers non-blocking lookups
// from the tick goroutine.
type Library struct {
	loader  Loader
	entries map[string]*libEntry
	log     *zap.Logger
}

func NewLibrary(loader Loader, log *zap.Logger) *Library {
	return &Library{loader: loader, entries: make(map[string]*libEntry), log: log}
}

// Request starts loading path if it has not been requested yet.
func (l *Library) Request(path string) {
	if path == "" {
		return
	}
	if _, ok := l.entries[path]; ok {
		return
	}
	l.entries[path] = &libEntry{f: l.loader.LoadTemplate(path)}
}

// Lookup returns the loaded template for path. It never blocks: a template
// still loading, or one that failed, reports false. Failures are logged once.
func (l *Library) Lookup(path string) (*Template, bool) {
	if path == "" {
		return nil, false
	}
	l.Request(path)
	e := l.entries[path]
	t, st, err := e.f.Poll()
	switch st {
	case future.Resolved:
		return t, true
	case future.Invalid:
		if !e.reported {
			e.reported = true
			l.log.Warn("template unavailable", zap.String("path", path), zap.Error(err))
		}
	}
	return nil, false
}

// State reports the load state of path; Idle if never requested.
func (l *Library) State(path string) future.State {
	e, ok := l.entries[path]
	if !ok {
		return future.Idle
	}
	_, st, _ := e.f.Poll()
	return st
}

// Paths lists requested asset paths, sorted.
func (l *Library) Paths() []string {
	out := make([]string, 0, len(l.entries))
	for p := range l.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
