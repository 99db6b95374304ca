package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	cmd := newConfigInitCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample config: %v", err)
	}
	if !strings.Contains(string(data), "[acoustid]") {
		t.Fatalf("sample config missing acoustid section:\n%s", data)
	}

	cmd = newConfigInitCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestParseStationID(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"7", 7, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseStationID(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseStationID(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseStationID(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseStationID(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestFormatAirtime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{45, "0m45s"},
		{185, "3m05s"},
		{3600, "1h00m"},
		{7530, "2h05m"},
	}
	for _, tt := range tests {
		if got := formatAirtime(tt.seconds); got != tt.want {
			t.Errorf("formatAirtime(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Name"},
		[][]string{{"1", "KEXP"}, {"2"}},
		[]columnAlignment{alignRight, alignLeft},
	)
	if !strings.Contains(out, "KEXP") {
		t.Fatalf("table missing row content:\n%s", out)
	}
	if !strings.Contains(out, "ID") || !strings.Contains(out, "Name") {
		t.Fatalf("table missing headers:\n%s", out)
	}
}
