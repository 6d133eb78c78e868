package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"lingua/internal/domain"
	"lingua/internal/ports"
)

func TestFFMPEGCaptureOpenReadAndStop(t *testing.T) {
	t.Parallel()

	// Four f32le samples of 1.0, then hold the stream open.
	script := writeScript(t, "capture.sh",
		"#!/usr/bin/env bash\nprintf '\\x00\\x00\\x80\\x3f\\x00\\x00\\x80\\x3f\\x00\\x00\\x80\\x3f\\x00\\x00\\x80\\x3f'\nsleep 2\n")
	capture := NewFFMPEGCapture(script)

	session, err := capture.Open(context.Background(), ports.CaptureConfig{FrameSize: 4})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	select {
	case frame := <-session.Frames():
		if len(frame.Samples) != 4 {
			t.Fatalf("unexpected frame size: %d", len(frame.Samples))
		}
		for i, sample := range frame.Samples {
			if sample != 1.0 {
				t.Fatalf("sample %d = %v, want 1.0", i, sample)
			}
		}
		if frame.RMS < 0.99 || frame.RMS > 1.01 {
			t.Fatalf("unexpected RMS: %v", frame.RMS)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	select {
	case _, ok := <-session.Frames():
		if ok {
			t.Fatal("expected frames channel to close after stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frames channel did not close after stop")
	}
}

func TestFFMPEGCaptureOpenEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'boom' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Open(ctx, ports.CaptureConfig{})
	if err == nil {
		t.Fatal("expected early exit error")
	}
	if !errors.Is(err, domain.ErrDeviceUnavailable) {
		t.Fatalf("unexpected error class: %v", err)
	}
}

func TestFFMPEGCaptureClassifiesPermissionDenied(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "denied.sh", "#!/usr/bin/env bash\necho 'Permission denied' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Open(ctx, ports.CaptureConfig{})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("unexpected error class: %v", err)
	}
}

func TestFFMPEGCaptureStopIsIdempotent(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "hold.sh", "#!/usr/bin/env bash\nsleep 2\n")
	capture := NewFFMPEGCapture(script)

	session, err := capture.Open(context.Background(), ports.CaptureConfig{})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("first stop failed: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
}

func TestClassifyCaptureFailure(t *testing.T) {
	t.Parallel()

	if got := classifyCaptureFailure("device busy"); !errors.Is(got, domain.ErrDeviceUnavailable) {
		t.Fatalf("unexpected class: %v", got)
	}
	if got := classifyCaptureFailure("pulse: Access denied"); !errors.Is(got, domain.ErrPermissionDenied) {
		t.Fatalf("unexpected class: %v", got)
	}
}

func TestNormalizeStopErrExitErrorIsIgnored(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-lc", "exit 1").Run()
	if err == nil {
		t.Fatal("expected command to fail")
	}
	if got := normalizeStopErr(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
