package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lingua/internal/audio"
	"lingua/internal/domain"
	"lingua/internal/metrics"
	"lingua/internal/ports"
)

const (
	minPlaybackRate = 0.5
	maxPlaybackRate = 2.0

	defaultTranslationTimeout = 15 * time.Second
)

// Config describes one conversation session. Languages and mode are fixed for
// the session's lifetime; only the playback rate is mutable after start.
type Config struct {
	Mode               domain.SessionMode
	TargetLanguage     string
	NativeLanguage     string
	Voice              string
	LearningPurpose    string
	PlaybackRate       float64
	TranslationTimeout time.Duration
}

// Engine orchestrates the duplex conversation: it opens the live stream and
// the microphone together, pumps captured frames out in order, and drives all
// inbound message handling from a single run loop so transcript and playback
// state stay consistent without locking.
type Engine struct {
	capture    ports.AudioCapture
	provider   ports.LiveProvider
	scheduler  ports.PlaybackScheduler
	bridge     *TranslationBridge
	events     ports.EventSink
	metrics    *metrics.Metrics
	log        *zap.Logger
	captureCfg ports.CaptureConfig

	rateBits atomic.Uint64

	mu             sync.Mutex
	state          domain.SessionState
	connectCancel  context.CancelFunc
	current        *activeSession
	lastTranscript *TranscriptLog
}

func NewEngine(
	capture ports.AudioCapture,
	provider ports.LiveProvider,
	scheduler ports.PlaybackScheduler,
	bridge *TranslationBridge,
	events ports.EventSink,
	m *metrics.Metrics,
	log *zap.Logger,
	captureCfg ports.CaptureConfig,
) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if captureCfg.SampleRate <= 0 {
		captureCfg.SampleRate = 16000
	}
	if captureCfg.FrameSize <= 0 {
		captureCfg.FrameSize = 4096
	}
	e := &Engine{
		capture:    capture,
		provider:   provider,
		scheduler:  scheduler,
		bridge:     bridge,
		events:     events,
		metrics:    m,
		log:        log,
		captureCfg: captureCfg,
		state:      domain.SessionStateIdle,
	}
	e.rateBits.Store(math.Float64bits(1.0))
	return e
}

// Start opens the live stream and the microphone and begins the duplex
// session. It fails with ErrSessionActive unless the engine is idle (or a
// previous session has fully closed or failed).
func (e *Engine) Start(ctx context.Context, cfg Config) error {
	if strings.TrimSpace(cfg.TargetLanguage) == "" || strings.TrimSpace(cfg.NativeLanguage) == "" {
		return errors.New("target and native languages are required")
	}
	if cfg.Mode == "" {
		cfg.Mode = domain.ModeConversation
	}
	if cfg.TranslationTimeout <= 0 {
		cfg.TranslationTimeout = defaultTranslationTimeout
	}
	if cfg.PlaybackRate > 0 {
		e.SetPlaybackRate(cfg.PlaybackRate)
	}

	sessionCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	switch e.state {
	case domain.SessionStateIdle, domain.SessionStateClosed, domain.SessionStateError:
	default:
		e.mu.Unlock()
		cancel()
		return domain.ErrSessionActive
	}
	e.state = domain.SessionStateConnecting
	e.connectCancel = cancel
	e.mu.Unlock()
	e.events.SessionStateChanged(domain.SessionStateConnecting, domain.SessionReasonConnectRequested)

	stream, err := e.provider.Connect(sessionCtx, ports.LiveConfig{
		Voice:             cfg.Voice,
		SystemInstruction: composeInstruction(cfg),
		InputSampleRate:   e.captureCfg.SampleRate,
		TranscribeInput:   true,
		TranscribeOutput:  true,
	})
	if err != nil {
		cancel()
		return e.failConnect(fmt.Errorf("%w: %v", domain.ErrTransportOpenFailed, err), domain.ErrorCodeTransportOpen)
	}

	capSess, err := e.capture.Open(sessionCtx, e.captureCfg)
	if err != nil {
		_ = stream.Close()
		cancel()
		code := domain.ErrorCodeDevice
		if errors.Is(err, domain.ErrPermissionDenied) {
			code = domain.ErrorCodePermission
		}
		return e.failConnect(err, code)
	}

	active := &activeSession{
		id:         uuid.NewString(),
		cfg:        cfg,
		cancel:     cancel,
		capture:    capSess,
		stream:     stream,
		transcript: NewTranscriptLog(),
		pumpDone:   make(chan struct{}),
		loopDone:   make(chan struct{}),
	}

	e.mu.Lock()
	if e.state != domain.SessionStateConnecting {
		// Stop raced the connect; release everything we just acquired.
		e.mu.Unlock()
		_ = capSess.Stop()
		_ = stream.Close()
		cancel()
		return nil
	}
	if sessionCtx.Err() != nil {
		// Stop cancelled the connect after the transport opened.
		e.state = domain.SessionStateClosed
		e.connectCancel = nil
		e.mu.Unlock()
		_ = capSess.Stop()
		_ = stream.Close()
		cancel()
		e.events.SessionStateChanged(domain.SessionStateClosed, domain.SessionReasonConnectCancelled)
		return nil
	}
	e.state = domain.SessionStateActive
	e.connectCancel = nil
	e.current = active
	e.lastTranscript = active.transcript
	e.mu.Unlock()

	e.metrics.SessionsStarted.Inc()
	e.metrics.SessionActive.Set(1)
	e.events.SessionStateChanged(domain.SessionStateActive, domain.SessionReasonTransportOpen)
	e.log.Info("conversation session started",
		zap.String("session", active.id),
		zap.String("mode", string(cfg.Mode)),
		zap.String("target", cfg.TargetLanguage),
		zap.String("native", cfg.NativeLanguage),
	)

	go e.pumpFrames(active)
	go e.runLoop(active)
	return nil
}

func (e *Engine) failConnect(err error, code domain.ErrorCode) error {
	cancelled := errors.Is(err, context.Canceled)

	e.mu.Lock()
	if cancelled {
		e.state = domain.SessionStateClosed
	} else {
		e.state = domain.SessionStateError
	}
	e.connectCancel = nil
	e.mu.Unlock()

	if cancelled {
		e.events.SessionStateChanged(domain.SessionStateClosed, domain.SessionReasonConnectCancelled)
		return nil
	}
	e.log.Error("conversation connect failed", zap.Error(err))
	e.events.SessionError(code, err.Error())
	e.events.SessionStateChanged(domain.SessionStateError, domain.SessionReasonConnectFailed)
	return err
}

// Stop ends the session. It is idempotent and safe to call from any state,
// including while a connect is still in flight.
func (e *Engine) Stop() error {
	e.mu.Lock()
	switch e.state {
	case domain.SessionStateConnecting:
		if e.connectCancel != nil {
			e.connectCancel()
		}
		e.mu.Unlock()
		return nil
	case domain.SessionStateActive:
		active := e.current
		e.state = domain.SessionStateClosing
		e.mu.Unlock()

		e.events.SessionStateChanged(domain.SessionStateClosing, domain.SessionReasonUserStop)
		e.teardown(active)

		e.mu.Lock()
		e.state = domain.SessionStateClosed
		if e.current == active {
			e.current = nil
		}
		e.mu.Unlock()

		e.metrics.SessionActive.Set(0)
		e.events.SessionStateChanged(domain.SessionStateClosed, domain.SessionReasonSessionClosed)
		e.log.Info("conversation session stopped", zap.String("session", active.id))
		return nil
	default:
		e.mu.Unlock()
		return nil
	}
}

// teardown releases session resources in dependency order: the capture device
// first so no new outbound frames are produced, then the send side of the
// stream, then playback is silenced rather than drained.
func (e *Engine) teardown(a *activeSession) {
	_ = a.capture.Stop()
	<-a.pumpDone
	_ = a.stream.CloseSend()
	e.scheduler.StopAll()
	_ = a.stream.Close()
	<-a.loopDone
	a.cancel()
}

// pumpFrames transmits captured frames in order. A single goroutine with one
// in-flight send preserves capture order on the wire; frames queue behind the
// previous send and are never dropped or reordered.
func (e *Engine) pumpFrames(a *activeSession) {
	defer close(a.pumpDone)

	sendFailed := false
	for frame := range a.capture.Frames() {
		e.events.AudioLevel(frame.RMS)
		if sendFailed {
			continue
		}
		if err := a.stream.SendAudio(audio.EncodePCM16(frame.Samples)); err != nil {
			// Keep draining so capture shutdown is never blocked on us.
			sendFailed = true
			e.log.Warn("audio frame send failed", zap.String("session", a.id), zap.Error(err))
			continue
		}
		e.metrics.FramesSent.Inc()
	}
	e.events.AudioLevel(0)
}

func (e *Engine) runLoop(a *activeSession) {
	for msg := range a.stream.Events() {
		e.handleMessage(a, msg)
	}
	close(a.loopDone)
	e.handleTransportEnd(a)
}

// handleMessage processes the fields of one push message in a fixed order:
// transcription text, turn completion, audio, interruption. Fields may arrive
// combined or separately; handling is idempotent per field.
func (e *Engine) handleMessage(a *activeSession, msg domain.ServerMessage) {
	e.metrics.MessagesReceived.Inc()

	if msg.UserText != "" {
		a.userBuf.WriteString(msg.UserText)
		e.events.LiveUtterance(domain.SpeakerUser, a.userBuf.String())
	}
	if msg.AgentText != "" {
		a.agentBuf.WriteString(msg.AgentText)
		e.events.LiveUtterance(domain.SpeakerAgent, a.agentBuf.String())
	}
	if msg.TurnComplete {
		e.completeTurn(a, domain.SpeakerUser, &a.userBuf)
		e.completeTurn(a, domain.SpeakerAgent, &a.agentBuf)
	}
	if len(msg.Audio) > 0 {
		e.scheduler.Schedule(audio.DecodePCM16(msg.Audio), e.PlaybackRate())
		e.metrics.BuffersScheduled.Inc()
	}
	if msg.Interrupted {
		e.scheduler.StopAll()
		e.metrics.Interruptions.Inc()
	}
}

// completeTurn snapshots a non-empty live utterance buffer into the
// transcript and kicks off its translation. The snapshot is taken before the
// asynchronous translate call, and the translation addresses the turn by
// sequence index, so rapid back-to-back turn completions cannot cross wires.
func (e *Engine) completeTurn(a *activeSession, speaker domain.Speaker, buf *strings.Builder) {
	text := strings.TrimSpace(buf.String())
	buf.Reset()
	if text == "" {
		return
	}

	turn := a.transcript.Append(speaker, text)
	e.metrics.TurnsCompleted.Inc()
	e.events.LiveUtterance(speaker, "")
	e.events.TurnCommitted(turn)

	go e.translateTurn(a, turn)
}

// translateTurn runs on its own context so a translation outstanding at
// session stop may still resolve and land on its turn.
func (e *Engine) translateTurn(a *activeSession, turn domain.TranscriptTurn) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.TranslationTimeout)
	defer cancel()

	translated, err := e.bridge.Translate(ctx, turn.OriginalText, a.cfg.TargetLanguage, a.cfg.NativeLanguage)
	if err != nil {
		e.metrics.TranslationFailures.Inc()
		e.log.Warn("turn translation failed",
			zap.String("session", a.id),
			zap.Int("sequence", turn.Sequence),
			zap.Error(err),
		)
		return
	}
	if translated == "" {
		return
	}
	if a.transcript.SetTranslation(turn.Sequence, translated) {
		e.events.TurnTranslated(turn.Sequence, translated)
	}
}

// handleTransportEnd runs after the inbound event channel closes. A close
// while the session is still active is a mid-session transport failure and
// forces the same teardown as an explicit stop, surfaced as an error.
func (e *Engine) handleTransportEnd(a *activeSession) {
	err := a.stream.Wait()

	e.mu.Lock()
	if e.state != domain.SessionStateActive || e.current != a {
		e.mu.Unlock()
		return
	}
	e.state = domain.SessionStateClosing
	e.mu.Unlock()

	detail := "live transport closed unexpectedly"
	if err != nil {
		detail = err.Error()
	}
	e.metrics.TransportErrors.Inc()
	e.log.Error("conversation transport failed", zap.String("session", a.id), zap.String("detail", detail))
	e.events.SessionError(domain.ErrorCodeTransport, detail)

	_ = a.capture.Stop()
	<-a.pumpDone
	e.scheduler.StopAll()
	_ = a.stream.Close()
	a.cancel()

	e.mu.Lock()
	e.state = domain.SessionStateError
	if e.current == a {
		e.current = nil
	}
	e.mu.Unlock()

	e.metrics.SessionActive.Set(0)
	e.events.SessionStateChanged(domain.SessionStateError, domain.SessionReasonTransportFailed)
}

// SetPlaybackRate adjusts the playback speed multiplier, clamped to
// [0.5, 2.0]. It may be changed at any time and applies to buffers scheduled
// after the call.
func (e *Engine) SetPlaybackRate(rate float64) {
	if rate < minPlaybackRate {
		rate = minPlaybackRate
	} else if rate > maxPlaybackRate {
		rate = maxPlaybackRate
	}
	e.rateBits.Store(math.Float64bits(rate))
}

// PlaybackRate returns the current playback speed multiplier.
func (e *Engine) PlaybackRate() float64 {
	return math.Float64frombits(e.rateBits.Load())
}

// Status returns the current engine status.
func (e *Engine) Status() domain.Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := domain.Status{
		State:  e.state,
		Active: e.state == domain.SessionStateActive,
	}
	if e.current != nil {
		status.Mode = e.current.cfg.Mode
		status.TargetLanguage = e.current.cfg.TargetLanguage
		status.NativeLanguage = e.current.cfg.NativeLanguage
	}
	if e.lastTranscript != nil {
		status.TurnCount = e.lastTranscript.Len()
	}
	return status
}

// Transcript returns the committed history of the current session, or of the
// most recent one if no session is active.
func (e *Engine) Transcript() []domain.TranscriptTurn {
	e.mu.Lock()
	log := e.lastTranscript
	e.mu.Unlock()

	if log == nil {
		return nil
	}
	return log.Turns()
}

func composeInstruction(cfg Config) string {
	focus := "Casual conversation."
	if cfg.Mode == domain.ModeVerbalization {
		focus = "Discuss the cultural image visible on the screen. Help the user describe what they see."
	}
	purpose := cfg.LearningPurpose
	if strings.TrimSpace(purpose) == "" {
		purpose = "general conversation practice"
	}
	return fmt.Sprintf(
		"You are Carlos, a friendly language partner. You are talking to an intermediate learner. "+
			"Target language: %s. Native language: %s. Current Learning Focus/Purpose: %s. Mode: %s "+
			"Always encourage the user and provide helpful corrections in %s if they get stuck.",
		cfg.TargetLanguage, cfg.NativeLanguage, purpose, focus, cfg.NativeLanguage,
	)
}
