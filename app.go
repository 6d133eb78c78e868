package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"lingua/internal/bootstrap"
	"lingua/internal/config"
	"lingua/internal/domain"
	"lingua/internal/ports"
	"lingua/internal/session"
)

const (
	eventSession     = "lingua:session"
	eventLive        = "lingua:live"
	eventTurn        = "lingua:turn"
	eventTranslation = "lingua:translation"
	eventLevel       = "lingua:level"
	eventError       = "lingua:error"

	assistTimeout = 20 * time.Second
	sceneTimeout  = 45 * time.Second
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	engine    *session.Engine
	bridge    *session.TranslationBridge
	scenes    *session.SceneGenerator
	clipboard ports.Clipboard
	cfg       config.Config
	bootErr   error

	prefMu         sync.Mutex
	targetLanguage string
	nativeLanguage string
	purpose        string
}

func NewApp() *App {
	return &App{clipboard: &wailsClipboard{}}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.engine = services.Engine
	a.bridge = services.Bridge
	a.scenes = services.Scenes
	a.targetLanguage = a.cfg.Session.TargetLanguage
	a.nativeLanguage = a.cfg.Session.NativeLanguage
	a.purpose = a.cfg.Session.LearningPurpose
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonStartup)
}

// StartConversation opens the live session in the given mode. Mode is either
// "conversation" or "verbalization"; anything else falls back to conversation.
func (a *App) StartConversation(mode string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}

	target, native, purpose := a.languagePrefs()
	sessionMode := domain.ModeConversation
	if mode == string(domain.ModeVerbalization) {
		sessionMode = domain.ModeVerbalization
	}

	err := a.engine.Start(a.ctx, session.Config{
		Mode:               sessionMode,
		TargetLanguage:     target,
		NativeLanguage:     native,
		Voice:              a.cfg.Session.Voice,
		LearningPurpose:    purpose,
		PlaybackRate:       a.cfg.Session.PlaybackRate,
		TranslationTimeout: a.cfg.Session.TranslationTimeout,
	})
	if err != nil {
		return domain.Status{}, err
	}
	return a.engine.Status(), nil
}

// StopConversation ends the live session.
func (a *App) StopConversation() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.engine.Stop()
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.engine == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.engine.Status()
}

// GetTranscript returns the committed conversation history.
func (a *App) GetTranscript() []domain.TranscriptTurn {
	if a.engine == nil {
		return nil
	}
	return a.engine.Transcript()
}

// SetPlaybackRate adjusts the agent playback speed and returns the applied
// value after clamping.
func (a *App) SetPlaybackRate(rate float64) (float64, error) {
	if err := a.requireReady(); err != nil {
		return 0, err
	}
	a.engine.SetPlaybackRate(rate)
	return a.engine.PlaybackRate(), nil
}

// SetLanguages changes the language pair for future sessions. It is rejected
// while a session is active.
func (a *App) SetLanguages(target string, native string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if strings.TrimSpace(target) == "" || strings.TrimSpace(native) == "" {
		return errors.New("target and native languages are required")
	}
	status := a.engine.Status()
	if status.State == domain.SessionStateActive || status.State == domain.SessionStateConnecting {
		return domain.ErrSessionActive
	}

	a.prefMu.Lock()
	a.targetLanguage = strings.TrimSpace(target)
	a.nativeLanguage = strings.TrimSpace(native)
	a.prefMu.Unlock()
	return nil
}

// SetLearningPurpose changes the learning focus used for future sessions and
// scene generation.
func (a *App) SetLearningPurpose(purpose string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.prefMu.Lock()
	a.purpose = strings.TrimSpace(purpose)
	a.prefMu.Unlock()
	return nil
}

// SuggestPhrasing turns a native-language thought into a target-language
// phrasing the user can say next.
func (a *App) SuggestPhrasing(text string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	target, native, _ := a.languagePrefs()

	ctx, cancel := context.WithTimeout(a.ctx, assistTimeout)
	defer cancel()
	suggestion, err := a.bridge.SuggestPhrasing(ctx, text, native, target)
	if err != nil {
		a.SessionError(domain.ErrorCodeTranslation, err.Error())
		return "", err
	}
	return suggestion, nil
}

// GenerateScene produces a cultural scene image for verbalization mode,
// returned base64-encoded for direct use in an image element. Calling it
// again regenerates a fresh scene.
func (a *App) GenerateScene() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	target, _, purpose := a.languagePrefs()

	ctx, cancel := context.WithTimeout(a.ctx, sceneTimeout)
	defer cancel()
	img, err := a.scenes.Generate(ctx, target, purpose)
	if err != nil {
		a.SessionError(domain.ErrorCodeGeneration, err.Error())
		return "", err
	}
	return base64.StdEncoding.EncodeToString(img), nil
}

// ExportTranscript copies the formatted conversation history to the clipboard.
func (a *App) ExportTranscript() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	turns := a.engine.Transcript()
	if len(turns) == 0 {
		return errors.New("no transcript to export")
	}

	if err := a.clipboard.SetText(a.ctx, formatTranscript(turns)); err != nil {
		a.SessionError(domain.ErrorCodeExport, err.Error())
		return fmt.Errorf("clipboard write failed: %w", err)
	}
	return nil
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	target, native, _ := a.languagePrefs()

	return map[string]string{
		"provider":         "Gemini",
		"liveModel":        a.cfg.Gemini.LiveModel,
		"textModel":        a.cfg.Gemini.TextModel,
		"targetLanguage":   target,
		"nativeLanguage":   native,
		"voice":            a.cfg.Session.Voice,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
	}
}

func (a *App) languagePrefs() (target string, native string, purpose string) {
	a.prefMu.Lock()
	defer a.prefMu.Unlock()
	return a.targetLanguage, a.nativeLanguage, a.purpose
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.engine == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func formatTranscript(turns []domain.TranscriptTurn) string {
	var b strings.Builder
	for _, turn := range turns {
		b.WriteString(string(turn.Speaker))
		b.WriteString(": ")
		b.WriteString(turn.OriginalText)
		b.WriteString("\n")
		if turn.TranslatedText != "" {
			b.WriteString("    (")
			b.WriteString(turn.TranslatedText)
			b.WriteString(")\n")
		}
	}
	return b.String()
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// LiveUtterance emits in-progress utterance text for one speaker. Empty text
// clears the speaker's live line after its turn commits.
func (a *App) LiveUtterance(speaker domain.Speaker, text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventLive, map[string]string{
		"speaker": string(speaker),
		"text":    text,
	})
}

// TurnCommitted emits a newly committed transcript turn.
func (a *App) TurnCommitted(turn domain.TranscriptTurn) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTurn, turn)
}

// TurnTranslated emits the translation for a committed turn.
func (a *App) TurnTranslated(sequence int, translated string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTranslation, map[string]any{
		"sequence":   sequence,
		"translated": translated,
	})
}

// AudioLevel emits the microphone level for the UI meter.
func (a *App) AudioLevel(rms float64) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventLevel, map[string]float64{"rms": rms})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonStartup:
		return "Ready"
	case domain.SessionReasonConnectRequested:
		return "Connecting..."
	case domain.SessionReasonTransportOpen:
		return "Conversation started"
	case domain.SessionReasonUserStop:
		return "Ending conversation..."
	case domain.SessionReasonSessionClosed:
		return "Conversation ended"
	case domain.SessionReasonConnectCancelled:
		return "Connection cancelled"
	case domain.SessionReasonConnectFailed:
		return "Could not start conversation"
	case domain.SessionReasonTransportFailed:
		return "Conversation connection lost"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodePermission:
		return "Microphone access denied"
	case domain.ErrorCodeDevice:
		return "Microphone unavailable"
	case domain.ErrorCodeTransportOpen:
		return "Could not connect to the conversation service"
	case domain.ErrorCodeTransport:
		return "Conversation connection lost"
	case domain.ErrorCodeTranslation:
		return "Translation unavailable"
	case domain.ErrorCodeGeneration:
		return "Scene generation failed"
	case domain.ErrorCodeExport:
		return "Clipboard write failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
