package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromConfigWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "travelbook.log")

	logger, closer, err := FromConfig(OutputConfig{Level: "debug", Format: "json", File: path}, ComponentStorage)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	logger.Debug("Trip created", FieldTripID, int64(7))
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	if record["msg"] != "Trip created" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record[FieldComponent] != ComponentStorage {
		t.Errorf("component = %v", record[FieldComponent])
	}
	if record[FieldTripID] != float64(7) {
		t.Errorf("trip_id = %v", record[FieldTripID])
	}
}

func TestFromConfigRejectsUnknownFormat(t *testing.T) {
	if _, _, err := FromConfig(OutputConfig{Format: "xml"}, ComponentApp); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if _, _, err := FromConfig(OutputConfig{Level: "loud"}, ComponentApp); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Component: ComponentRelay,
		Handler:   slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})

	logger.WarnContext(context.Background(), "Publish failed", FieldTable, "expenses")
	out := buf.String()
	if !strings.Contains(out, "component=relay") || !strings.Contains(out, "table=expenses") {
		t.Fatalf("unexpected output %q", out)
	}

	buf.Reset()
	logger.WithComponent(ComponentWorker).Info("started")
	if !strings.Contains(buf.String(), "component=worker") {
		t.Fatalf("WithComponent not applied: %q", buf.String())
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Component: ComponentCLI,
		Handler:   slog.NewTextHandler(&buf, nil),
	})
	ctx := NewContext(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Fatal("FromContext did not return the stored logger")
	}

	For(ctx, ComponentStorage).InfoContext(ctx, "Trip created")
	if !strings.Contains(buf.String(), "component=storage") {
		t.Fatalf("For did not tag the component: %q", buf.String())
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	FromContext(context.Background()).Info("started")
	if !strings.Contains(buf.String(), "component=app") {
		t.Fatalf("fallback logger output %q", buf.String())
	}
}

func TestLogFields(t *testing.T) {
	fields := NewFields().
		WithChange("trips", "create", 3).
		WithOperation(OpSync).
		WithError(errors.New("boom")).
		WithError(nil)

	if len(fields) != 4 {
		t.Fatalf("expected 4 fields, got %d: %v", len(fields), fields)
	}
	if fields[FieldError] != "boom" || fields[FieldOperation] != OpSync {
		t.Errorf("unexpected fields %v", fields)
	}
	if got := len(fields.ToSlice()); got != 8 {
		t.Errorf("ToSlice length = %d, want 8", got)
	}
}
