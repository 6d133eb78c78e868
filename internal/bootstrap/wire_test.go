package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"lingua/internal/domain"
)

func TestBuildSuccess(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("LINGUA_CONFIG_FILE", "")
	t.Setenv("LINGUA_METRICS_ADDR", "")

	services, err := Build(context.Background(), noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Engine == nil {
		t.Fatal("expected engine")
	}
	if services.Bridge == nil || services.Scenes == nil {
		t.Fatal("expected bridge and scene generator")
	}
	if services.Logger == nil {
		t.Fatal("expected logger")
	}
}

func TestBuildFailsWithoutAPIKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("LINGUA_CONFIG_FILE", "")

	if _, err := Build(context.Background(), noopEventSink{}); err == nil {
		t.Fatal("expected build error without api key")
	}
}

func TestBuildFailsOnMissingConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("LINGUA_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Build(context.Background(), noopEventSink{}); err == nil {
		t.Fatal("expected build error due to missing config file")
	}
}

type noopEventSink struct{}

func (noopEventSink) SessionStateChanged(_ domain.SessionState, _ domain.SessionStateReason) {}
func (noopEventSink) LiveUtterance(_ domain.Speaker, _ string)                               {}
func (noopEventSink) TurnCommitted(_ domain.TranscriptTurn)                                  {}
func (noopEventSink) TurnTranslated(_ int, _ string)                                         {}
func (noopEventSink) AudioLevel(_ float64)                                                   {}
func (noopEventSink) SessionError(_ domain.ErrorCode, _ string)                              {}
