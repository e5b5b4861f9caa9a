package hook

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ManifestFile is the manifest name looked up in each hook directory.
const ManifestFile = "hook.json"

// ErrHookNotFound is returned when a requested hook cannot be found.
var ErrHookNotFound = errors.New("hook not found")

// Result is the outcome of running one hook.
type Result struct {
	Hook     string
	Response *Response
	Err      error
}

// Manager discovers hooks and dispatches events to them.
type Manager struct {
	dir      string
	executor *Executor
	hooks    map[string]*Hook
	mu       sync.RWMutex
}

// NewManager creates a Manager for the hooks under dir.
func NewManager(dir string, executor *Executor) *Manager {
	if executor == nil {
		executor = NewExecutor(0)
	}
	return &Manager{
		dir:      dir,
		executor: executor,
		hooks:    make(map[string]*Hook),
	}
}

// Discover scans the hook directory. Each subdirectory with a readable
// hook.json becomes a hook; anything else is skipped.
func (m *Manager) Discover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = make(map[string]*Hook)

	info, err := os.Stat(m.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		hookPath := filepath.Join(m.dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(hookPath, ManifestFile))
		if err != nil {
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			log.Printf("Skipping hook %s: invalid %s: %v", entry.Name(), ManifestFile, err)
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			log.Printf("Skipping hook %s: name and executable are required", entry.Name())
			continue
		}

		m.hooks[manifest.Name] = &Hook{
			Manifest:   manifest,
			Path:       hookPath,
			Executable: filepath.Join(hookPath, manifest.Executable),
		}
	}

	return nil
}

// Get returns a hook by name.
func (m *Manager) Get(name string) (*Hook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hooks[name]
	if !ok {
		return nil, ErrHookNotFound
	}
	return h, nil
}

// List returns all discovered hooks sorted by name.
func (m *Manager) List() []*Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hooks := make([]*Hook, 0, len(m.hooks))
	for _, h := range m.hooks {
		hooks = append(hooks, h)
	}
	sort.Slice(hooks, func(i, j int) bool {
		return hooks[i].Manifest.Name < hooks[j].Manifest.Name
	})
	return hooks
}

// Dir returns the hook directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// Dispatch runs every hook subscribed to ev.Outcome, one after another in
// name order, and returns their results.
func (m *Manager) Dispatch(ctx context.Context, ev *Event) []Result {
	var results []Result
	for _, h := range m.List() {
		if !h.Subscribed(ev.Outcome) {
			continue
		}

		resp, err := m.executor.Execute(ctx, h, ev)
		switch {
		case err != nil:
			log.Printf("Hook %s failed: %v", h.Manifest.Name, err)
		case !resp.Success:
			log.Printf("Hook %s reported an error: %s", h.Manifest.Name, resp.Error)
		}
		results = append(results, Result{Hook: h.Manifest.Name, Response: resp, Err: err})
	}
	return results
}
