// Package hook runs external programs when facegate reaches a decision,
// such as opening a door for a recognized face.
package hook

import (
	"encoding/json"
	"time"
)

// AllEvents subscribes a hook to every outcome.
const AllEvents = "*"

// Manifest describes a hook. It is read from hook.json in the hook's
// directory.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Event is the decision sent to a hook on stdin.
type Event struct {
	Kind       string          `json:"kind"`
	Outcome    string          `json:"outcome"`
	FaceID     int64           `json:"face_id"`
	Similarity float64         `json:"similarity"`
	Message    string          `json:"message"`
	Time       time.Time       `json:"time"`
	Config     json.RawMessage `json:"config,omitempty"`
}

// Response is what a hook writes to stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Subscribed reports whether the hook wants events with outcome.
func (h *Hook) Subscribed(outcome string) bool {
	for _, e := range h.Manifest.Events {
		if e == AllEvents || e == outcome {
			return true
		}
	}
	return false
}
