// Package main provides a door relay hook.
// It pulses a GPIO value file (sysfs) when a face is recognized.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ayusman/facegate/internal/hook"
)

// RelayConfig is the hook's configuration from hook.json.
type RelayConfig struct {
	ValuePath string `json:"value_path"`
	PulseMs   int    `json:"pulse_ms"`
	ActiveLow bool   `json:"active_low"`
}

func main() {
	var ev hook.Event
	if err := json.NewDecoder(os.Stdin).Decode(&ev); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode event: %v", err))
		return
	}

	if ev.Outcome != "recognized" {
		writeResponse(map[string]any{"skipped": ev.Outcome})
		return
	}

	cfg, err := parseConfig(ev.Config)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if err := pulse(cfg); err != nil {
		writeErrorResponse(fmt.Sprintf("relay pulse failed: %v", err))
		return
	}

	writeResponse(map[string]any{"face_id": ev.FaceID, "pulse_ms": cfg.PulseMs})
}

// parseConfig validates the relay settings.
func parseConfig(raw json.RawMessage) (RelayConfig, error) {
	cfg := RelayConfig{PulseMs: 1500}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if cfg.ValuePath == "" {
		return cfg, errors.New("value_path is required")
	}
	if cfg.PulseMs <= 0 {
		return cfg, fmt.Errorf("pulse_ms must be positive, got %d", cfg.PulseMs)
	}
	return cfg, nil
}

// pulse drives the line active for the pulse duration, then releases it.
func pulse(cfg RelayConfig) error {
	on, off := "1", "0"
	if cfg.ActiveLow {
		on, off = off, on
	}

	if err := os.WriteFile(cfg.ValuePath, []byte(on), 0644); err != nil {
		return err
	}
	time.Sleep(time.Duration(cfg.PulseMs) * time.Millisecond)
	return os.WriteFile(cfg.ValuePath, []byte(off), 0644)
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(hook.Response{Success: false, Error: errMsg})
}

// writeResponse writes a success response with data to stdout.
func writeResponse(data any) {
	raw, _ := json.Marshal(data)
	json.NewEncoder(os.Stdout).Encode(hook.Response{Success: true, Data: raw})
}
