package ports

import (
	"context"

	"lingua/internal/domain"
)

// CaptureConfig describes how the microphone should be captured.
type CaptureConfig struct {
	SampleRate  int
	FrameSize   int
	Command     string
	InputFormat string
	InputDevice string
}

// CaptureFrame is one fixed-size frame of mono float PCM plus its
// root-mean-square amplitude for UI level metering.
type CaptureFrame struct {
	Samples []float32
	RMS     float64
}

// CaptureSession is a live microphone capture session. Frames are pushed
// continuously by the producer until Stop; the channel closes when capture
// ends for any reason.
type CaptureSession interface {
	Frames() <-chan CaptureFrame
	Stop() error
}

// AudioCapture opens microphone capture sessions.
type AudioCapture interface {
	Open(ctx context.Context, cfg CaptureConfig) (CaptureSession, error)
}

// LiveConfig describes a duplex conversation stream.
type LiveConfig struct {
	Voice             string
	SystemInstruction string
	InputSampleRate   int
	TranscribeInput   bool
	TranscribeOutput  bool
}

// LiveSession is an active duplex stream to the voice service. SendAudio
// accepts raw 16-bit little-endian PCM; frames are transmitted in call order.
type LiveSession interface {
	SendAudio(pcm []byte) error
	Events() <-chan domain.ServerMessage
	CloseSend() error
	Wait() error
	Close() error
}

// LiveProvider opens duplex conversation streams. Connect returns only after
// the service acknowledges the stream setup.
type LiveProvider interface {
	Connect(ctx context.Context, cfg LiveConfig) (LiveSession, error)
}

// PlaybackScheduler schedules decoded PCM for gapless playback and supports
// immediate full stop for barge-in.
type PlaybackScheduler interface {
	Schedule(samples []float32, rate float64)
	StopAll()
}

// TextGenerator is the one-shot text generation capability shared by
// translation and phrasing suggestions.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator renders a scene image from a descriptive prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink emits engine state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	LiveUtterance(speaker domain.Speaker, text string)
	TurnCommitted(turn domain.TranscriptTurn)
	TurnTranslated(sequence int, translated string)
	AudioLevel(rms float64)
	SessionError(code domain.ErrorCode, detail string)
}
