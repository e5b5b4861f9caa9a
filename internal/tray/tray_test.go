package tray

import "testing"

func TestTray_Toggle(t *testing.T) {
	tr := New(false)

	var got []bool
	tr.OnToggle(func(enabled bool) {
		got = append(got, enabled)
	})

	tr.handleToggle()
	tr.handleToggle()

	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("toggle callbacks = %v, want [true false]", got)
	}
	if tr.IsEnabled() {
		t.Error("expected disabled after two toggles")
	}
}

func TestTray_Callbacks(t *testing.T) {
	tr := New(true)

	calls := 0
	tr.OnEnroll(func() { calls++ })
	tr.call(func() func() { return tr.onEnroll })
	tr.call(func() func() { return tr.onRecognize })

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestTray_LastBeforeRun(t *testing.T) {
	tr := New(true)
	tr.SetStatus("ready, 2 faces")
	tr.SetLast("You are number 2")

	if tr.Last() != "You are number 2" {
		t.Errorf("Last() = %q", tr.Last())
	}
	if lastTitle("") != "Last: none" || statusTitle("") != "Status: starting" {
		t.Error("unexpected placeholder titles")
	}
	if toggleTitle(true) == toggleTitle(false) {
		t.Error("toggle titles should differ")
	}
}
