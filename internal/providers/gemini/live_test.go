package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lingua/internal/ports"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	cfg := normalize(Config{})
	if cfg.APIBaseURL != defaultAPIBaseURL {
		t.Fatalf("unexpected base url: %q", cfg.APIBaseURL)
	}
	if cfg.LiveModel != defaultLiveModel {
		t.Fatalf("unexpected live model: %q", cfg.LiveModel)
	}
	if cfg.TextModel != defaultTextModel {
		t.Fatalf("unexpected text model: %q", cfg.TextModel)
	}
}

func TestBuildLiveURL(t *testing.T) {
	t.Parallel()

	url, err := buildLiveURL(Config{APIBaseURL: "https://generativelanguage.googleapis.com", APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, "wss://generativelanguage.googleapis.com/ws/") {
		t.Fatalf("unexpected ws url: %s", url)
	}
	if !strings.Contains(url, "BidiGenerateContent") {
		t.Fatalf("expected bidi path in url: %s", url)
	}
	if !strings.Contains(url, "key=k") {
		t.Fatalf("expected api key in url: %s", url)
	}
}

func TestBuildLiveURLLocalBase(t *testing.T) {
	t.Parallel()

	url, err := buildLiveURL(Config{APIBaseURL: "http://localhost:9090/", APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, "ws://localhost:9090/ws/") {
		t.Fatalf("unexpected ws url: %s", url)
	}
}

func TestBuildSetup(t *testing.T) {
	t.Parallel()

	setup := buildSetup("models/test-live", ports.LiveConfig{
		Voice:             "Kore",
		SystemInstruction: "You are a partner.",
		TranscribeInput:   true,
		TranscribeOutput:  true,
	})

	payload, err := json.Marshal(setup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := string(payload)
	for _, want := range []string{
		`"model":"models/test-live"`,
		`"responseModalities":["AUDIO"]`,
		`"voiceName":"Kore"`,
		`"text":"You are a partner."`,
		`"inputAudioTranscription":{}`,
		`"outputAudioTranscription":{}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("setup payload missing %s: %s", want, body)
		}
	}
}

func TestBuildSetupDefaultVoice(t *testing.T) {
	t.Parallel()

	setup := buildSetup("m", ports.LiveConfig{})
	if got := setup.Setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName; got != "Puck" {
		t.Fatalf("unexpected default voice: %q", got)
	}
	if setup.Setup.SystemInstruction != nil {
		t.Fatal("expected no system instruction when unset")
	}
}

func TestDecodeServerMessageCombinedFields(t *testing.T) {
	t.Parallel()

	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	raw := []byte(`{"serverContent":{` +
		`"inputTranscription":{"text":"hola"},` +
		`"outputTranscription":{"text":"buenos"},` +
		`"turnComplete":true,` +
		`"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm","data":"` +
		base64.StdEncoding.EncodeToString(pcm) + `"}}]}}}`)

	message, ok, err := decodeServerMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected actionable message")
	}
	if message.UserText != "hola" || message.AgentText != "buenos" {
		t.Fatalf("unexpected transcription fields: %+v", message)
	}
	if !message.TurnComplete {
		t.Fatal("expected turn complete")
	}
	if string(message.Audio) != string(pcm) {
		t.Fatalf("unexpected audio payload: %v", message.Audio)
	}
}

func TestDecodeServerMessageConcatenatesAudioParts(t *testing.T) {
	t.Parallel()

	first := base64.StdEncoding.EncodeToString([]byte{0x01, 0x02})
	second := base64.StdEncoding.EncodeToString([]byte{0x03, 0x04})
	raw := []byte(`{"serverContent":{"modelTurn":{"parts":[` +
		`{"inlineData":{"data":"` + first + `"}},` +
		`{"text":"ignored"},` +
		`{"inlineData":{"data":"` + second + `"}}]}}}`)

	message, ok, err := decodeServerMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected actionable message")
	}
	if string(message.Audio) != string([]byte{0x01, 0x02, 0x03, 0x04}) {
		t.Fatalf("audio parts not concatenated in order: %v", message.Audio)
	}
}

func TestDecodeServerMessageInterrupted(t *testing.T) {
	t.Parallel()

	message, ok, err := decodeServerMessage([]byte(`{"serverContent":{"interrupted":true}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || !message.Interrupted {
		t.Fatalf("expected interruption signal, got ok=%v message=%+v", ok, message)
	}
}

func TestDecodeServerMessageSetupComplete(t *testing.T) {
	t.Parallel()

	_, ok, err := decodeServerMessage([]byte(`{"setupComplete":{}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("setup ack should not be actionable")
	}
}

func TestDecodeServerMessageBadAudio(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"data":"!!!"}}]}}}`)
	if _, _, err := decodeServerMessage(raw); err == nil {
		t.Fatal("expected base64 decode error")
	}
}

func TestProviderConnectRequiresAPIKey(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{APIKey: ""})
	if _, err := p.Connect(context.Background(), ports.LiveConfig{}); err == nil {
		t.Fatal("expected missing key error")
	}
}

func TestLiveSessionSendAudioClosed(t *testing.T) {
	t.Parallel()

	s := &liveSession{frames: make(chan []byte), sendDone: make(chan struct{}), done: make(chan struct{})}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SendAudio([]byte("x")); err == nil {
		t.Fatal("expected closed error")
	}
}

func TestLiveSessionCloseSendIsIdempotent(t *testing.T) {
	t.Parallel()

	s := &liveSession{frames: make(chan []byte, 1), sendDone: make(chan struct{})}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected second error: %v", err)
	}
}

func TestLiveSessionCloseSendUnblocksParkedSender(t *testing.T) {
	t.Parallel()

	// An unbuffered frames channel with no write loop parks the sender mid-send,
	// the worst case for a concurrent CloseSend.
	s := &liveSession{
		frames:   make(chan []byte),
		sendDone: make(chan struct{}),
		done:     make(chan struct{}),
	}

	result := make(chan error, 1)
	go func() { result <- s.SendAudio([]byte{0x01, 0x02}) }()

	// Give the sender time to pass any fast path and block on the channel.
	time.Sleep(20 * time.Millisecond)
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case err := <-result:
		if err == nil {
			t.Fatal("expected closed error from parked sender")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sender still parked after CloseSend")
	}
}

func TestLiveSessionWriteLoopExitsOnCloseSend(t *testing.T) {
	t.Parallel()

	s := &liveSession{
		frames:   make(chan []byte),
		sendDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)

	exited := make(chan struct{})
	go func() {
		s.writeLoop()
		close(exited)
	}()

	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("write loop did not exit after CloseSend")
	}
}

func TestLiveSessionSetErrIgnoresCloseErrors(t *testing.T) {
	t.Parallel()

	s := &liveSession{}
	s.setErr(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"})
	if s.waitErr() != nil {
		t.Fatal("expected close error to be ignored")
	}

	s.setErr(errors.New("boom"))
	if s.waitErr() == nil || s.waitErr().Error() != "boom" {
		t.Fatal("expected non-close error to be captured")
	}
}

func TestLiveSessionSetErrFirstWins(t *testing.T) {
	t.Parallel()

	s := &liveSession{}
	s.setErr(errors.New("first"))
	s.setErr(errors.New("second"))
	if s.waitErr() == nil || s.waitErr().Error() != "first" {
		t.Fatal("expected first error to win")
	}
}
