package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "DEBUG", want: slog.LevelDebug},
		{in: " warning ", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfigureWriterHonoursEnv(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Setenv(EnvLevel, "debug")
	t.Setenv(EnvFormat, "json")

	var buf bytes.Buffer
	if err := ConfigureWriter(&buf, LevelWarn); err != nil {
		t.Fatalf("ConfigureWriter() error = %v", err)
	}
	slog.Debug("Created namespace.", "namespace", "Counter")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line %q is not JSON: %v", buf.String(), err)
	}
	if entry["namespace"] != "Counter" {
		t.Fatalf("namespace attr = %v, want Counter", entry["namespace"])
	}
}

func TestConfigureWriterRejectsUnknownFormat(t *testing.T) {
	t.Setenv(EnvLevel, "")
	t.Setenv(EnvFormat, "xml")
	err := ConfigureWriter(&bytes.Buffer{}, LevelInfo)
	if err == nil || !strings.Contains(err.Error(), "xml") {
		t.Fatalf("ConfigureWriter() error = %v, want invalid format", err)
	}
}
