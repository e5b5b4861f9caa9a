// Package tray provides the system tray menu of the face gate.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray is the system tray menu. Its actions are wired with the On*
// setters before Run.
type Tray struct {
	onEnroll    func()
	onRecognize func()
	onToggle    func(enabled bool)
	onClear     func()
	onDashboard func()
	onQuit      func()
	enabled     bool
	status      string
	last        string
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
	menuToggle *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a new Tray with automatic recognition set to enabled.
func New(enabled bool) *Tray {
	return &Tray{enabled: enabled}
}

// OnEnroll sets the callback for the Enroll menu item.
func (t *Tray) OnEnroll(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnroll = fn
}

// OnRecognize sets the callback for the Recognize menu item.
func (t *Tray) OnRecognize(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecognize = fn
}

// OnToggle sets the callback called when automatic recognition is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnClear sets the callback for the Clear faces menu item.
func (t *Tray) OnClear(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClear = fn
}

// OnDashboard sets the callback for the Open dashboard menu item.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("FaceGate")
	systray.SetTooltip("FaceGate face recognition")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(statusTitle(t.status), "System status")
	t.menuStatus.Disable()
	t.menuLast = systray.AddMenuItem(lastTitle(t.last), "Last result")
	t.menuLast.Disable()
	systray.AddSeparator()

	menuEnroll := systray.AddMenuItem("Enroll", "Enroll the face in front of the camera")
	menuRecognize := systray.AddMenuItem("Recognize", "Recognize the face in front of the camera")
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle automatic recognition")
	t.mu.Unlock()
	systray.AddSeparator()

	menuClear := systray.AddMenuItem("Clear faces", "Remove every enrolled face")
	menuDashboard := systray.AddMenuItem("Open dashboard...", "Open the dashboard in the browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit FaceGate")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-menuEnroll.ClickedCh:
				t.call(func() func() { return t.onEnroll })
			case <-menuRecognize.ClickedCh:
				t.call(func() func() { return t.onRecognize })
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuClear.ClickedCh:
				t.call(func() func() { return t.onClear })
			case <-menuDashboard.ClickedCh:
				t.call(func() func() { return t.onDashboard })
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// call runs the callback picked under the read lock.
func (t *Tray) call(pick func() func()) {
	t.mu.RLock()
	callback := pick()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.call(func() func() { return t.onQuit })
	systray.Quit()
}

// SetStatus updates the status line.
func (t *Tray) SetStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = status
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(statusTitle(status))
	}
}

// SetLast updates the last result line.
func (t *Tray) SetLast(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = message
	if t.menuLast != nil {
		t.menuLast.SetTitle(lastTitle(message))
	}
}

// Last returns the last result line.
func (t *Tray) Last() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// IsEnabled reports whether automatic recognition is enabled.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Auto-recognize"
	}
	return "○ Auto-recognize"
}

func statusTitle(status string) string {
	if status == "" {
		return "Status: starting"
	}
	return "Status: " + status
}

func lastTitle(message string) string {
	if message == "" {
		return "Last: none"
	}
	return "Last: " + message
}
