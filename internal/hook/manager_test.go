package hook

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManager_Discover(t *testing.T) {
	dir := t.TempDir()
	writeHook(t, dir, "door-relay", "exit 0\n", "recognized")
	writeHook(t, dir, "logger", "exit 0\n", AllEvents)

	// Directories without a manifest and loose files are ignored.
	os.MkdirAll(filepath.Join(dir, "empty"), 0755)
	os.WriteFile(filepath.Join(dir, "README"), []byte("hooks"), 0644)

	m := NewManager(dir, nil)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	hooks := m.List()
	if len(hooks) != 2 {
		t.Fatalf("expected 2 hooks, got %d", len(hooks))
	}
	if hooks[0].Manifest.Name != "door-relay" || hooks[1].Manifest.Name != "logger" {
		t.Errorf("hooks not sorted by name: %s, %s", hooks[0].Manifest.Name, hooks[1].Manifest.Name)
	}
	if hooks[0].Executable != filepath.Join(dir, "door-relay", "run.sh") {
		t.Errorf("unexpected executable path %q", hooks[0].Executable)
	}
}

func TestManager_Discover_InvalidManifest(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad")
	os.MkdirAll(bad, 0755)
	os.WriteFile(filepath.Join(bad, ManifestFile), []byte("{not json"), 0644)

	nameless := filepath.Join(dir, "nameless")
	os.MkdirAll(nameless, 0755)
	os.WriteFile(filepath.Join(nameless, ManifestFile), []byte(`{"executable":"run.sh"}`), 0644)

	m := NewManager(dir, nil)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(m.List()) != 0 {
		t.Errorf("invalid manifests should be skipped, got %d hooks", len(m.List()))
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "missing"), nil)
	if err := m.Discover(); err != nil {
		t.Errorf("Discover() on missing dir should not fail: %v", err)
	}
	if len(m.List()) != 0 {
		t.Error("expected no hooks")
	}
}

func TestManager_Get(t *testing.T) {
	dir := t.TempDir()
	writeHook(t, dir, "door-relay", "exit 0\n", "recognized")

	m := NewManager(dir, nil)
	m.Discover()

	h, err := m.Get("door-relay")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !h.Subscribed("recognized") || h.Subscribed("unknown") {
		t.Errorf("unexpected subscriptions: %v", h.Manifest.Events)
	}

	if _, err := m.Get("missing"); err != ErrHookNotFound {
		t.Errorf("expected ErrHookNotFound, got %v", err)
	}
	if m.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", m.Dir(), dir)
	}
}

func TestManager_DispatchFiltersByOutcome(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	marker := filepath.Join(t.TempDir(), "calls")
	script := "cat > /dev/null\nbasename \"$PWD\" >> '" + marker + "'\necho '{\"success\":true}'\n"

	writeHook(t, dir, "door-relay", script, "recognized")
	writeHook(t, dir, "alarm", script, "unknown")
	writeHook(t, dir, "logger", script, AllEvents)

	m := NewManager(dir, NewExecutor(5*time.Second))
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	results := m.Dispatch(context.Background(), &Event{Kind: "recognize", Outcome: "recognized", FaceID: 3})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != nil || r.Response == nil || !r.Response.Success {
			t.Errorf("hook %s: unexpected result %+v", r.Hook, r)
		}
	}
	if results[0].Hook != "door-relay" || results[1].Hook != "logger" {
		t.Errorf("unexpected hooks run: %s, %s", results[0].Hook, results[1].Hook)
	}

	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("failed to read marker: %v", err)
	}
	if string(data) != "door-relay\nlogger\n" {
		t.Errorf("unexpected hook calls %q", data)
	}
}

func TestManager_DispatchReportsFailures(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	writeHook(t, dir, "broken", "exit 3\n", AllEvents)

	m := NewManager(dir, NewExecutor(5*time.Second))
	m.Discover()

	results := m.Dispatch(context.Background(), &Event{Outcome: "duplicate"})
	if len(results) != 1 || results[0].Err == nil {
		t.Errorf("expected one failed result, got %+v", results)
	}
}
