package session

import (
	"strings"

	"lingua/internal/ports"
)

// activeSession bundles the resources of one live conversation. The utterance
// buffers are touched only by the engine's run loop, so they need no locking.
type activeSession struct {
	id     string
	cfg    Config
	cancel func()

	capture ports.CaptureSession
	stream  ports.LiveSession

	transcript *TranscriptLog
	userBuf    strings.Builder
	agentBuf   strings.Builder

	pumpDone chan struct{}
	loopDone chan struct{}
}
