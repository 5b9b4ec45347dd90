package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/jwebster45206/quest-engine/internal/config"
)

func TestSetup_ProductionUsesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := setup(&config.Config{Environment: "production", LogLevel: slog.LevelInfo}, &buf)

	WithSession(log, "s-1", 4).Info("turn processed")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("production log is not JSON: %v (%s)", err, buf.String())
	}
	if line["session_id"] != "s-1" {
		t.Errorf("session_id = %v, want s-1", line["session_id"])
	}
	if line["turn"] != float64(4) {
		t.Errorf("turn = %v, want 4", line["turn"])
	}
}

func TestSetup_DevelopmentUsesText(t *testing.T) {
	var buf bytes.Buffer
	log := setup(&config.Config{Environment: "development", LogLevel: slog.LevelWarn}, &buf)

	log.Info("hidden")
	WithError(log, errors.New("boom")).Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line logged at warn level: %s", out)
	}
	if !strings.Contains(out, "error=boom") {
		t.Errorf("text log missing error attr: %s", out)
	}
}
