package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		want    RelayConfig
	}{
		{"defaults pulse", `{"value_path":"/tmp/v"}`, false, RelayConfig{ValuePath: "/tmp/v", PulseMs: 1500}},
		{"active low", `{"value_path":"/tmp/v","pulse_ms":10,"active_low":true}`, false, RelayConfig{ValuePath: "/tmp/v", PulseMs: 10, ActiveLow: true}},
		{"missing path", `{"pulse_ms":10}`, true, RelayConfig{}},
		{"bad pulse", `{"value_path":"/tmp/v","pulse_ms":-1}`, true, RelayConfig{}},
		{"invalid json", `{`, true, RelayConfig{}},
		{"empty", ``, true, RelayConfig{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseConfig(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPulse(t *testing.T) {
	for _, activeLow := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "value")
		if err := pulse(RelayConfig{ValuePath: path, PulseMs: 1, ActiveLow: activeLow}); err != nil {
			t.Fatalf("pulse() error = %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read value file: %v", err)
		}
		want := "0"
		if activeLow {
			want = "1"
		}
		if string(data) != want {
			t.Errorf("activeLow=%v: line left at %q, want %q", activeLow, data, want)
		}
	}
}

func TestPulse_MissingLine(t *testing.T) {
	err := pulse(RelayConfig{ValuePath: filepath.Join(t.TempDir(), "no", "such", "gpio"), PulseMs: 1})
	if err == nil {
		t.Error("expected error for missing GPIO line")
	}
}
