package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lingua/internal/domain"
	"lingua/internal/ports"
)

// Config controls the Gemini connection settings shared by the live stream
// and the one-shot generation calls.
type Config struct {
	APIKey     string
	APIBaseURL string
	LiveModel  string
	TextModel  string
	ImageModel string
}

const (
	defaultAPIBaseURL = "https://generativelanguage.googleapis.com"
	defaultLiveModel  = "models/gemini-2.5-flash-native-audio-preview-09-2025"
	defaultTextModel  = "gemini-2.5-flash"
	defaultImageModel = "gemini-2.5-flash-image"

	bidiPath = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	setupTimeout = 15 * time.Second
)

func normalize(cfg Config) Config {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.LiveModel == "" {
		cfg.LiveModel = defaultLiveModel
	}
	if cfg.TextModel == "" {
		cfg.TextModel = defaultTextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = defaultImageModel
	}
	return cfg
}

// Provider implements ports.LiveProvider over the Gemini Live websocket.
type Provider struct {
	cfg Config
}

func NewProvider(cfg Config) *Provider {
	return &Provider{cfg: normalize(cfg)}
}

func (p *Provider) Connect(ctx context.Context, cfg ports.LiveConfig) (ports.LiveSession, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is not configured")
	}

	wsURL, err := buildLiveURL(p.cfg)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Gemini live websocket: %w", err)
	}

	if err := p.handshake(conn, cfg); err != nil {
		_ = conn.Close()
		return nil, err
	}

	session := &liveSession{
		conn:      conn,
		inputRate: cfg.InputSampleRate,
		events:    make(chan domain.ServerMessage, 64),
		frames:    make(chan []byte, 32),
		sendDone:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = session.Close()
	}()

	return session, nil
}

// handshake sends the session setup and synchronously waits for the service
// acknowledgement. The session is not usable until the ack arrives, so a
// failure here surfaces as a connect error rather than a mid-session one.
func (p *Provider) handshake(conn *websocket.Conn, cfg ports.LiveConfig) error {
	setup := buildSetup(p.cfg.LiveModel, cfg)
	payload, err := json.Marshal(setup)
	if err != nil {
		return fmt.Errorf("failed to encode session setup: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to send session setup: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(setupTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read session setup ack: %w", err)
	}
	var envelope serverEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("unexpected session setup response: %w", err)
	}
	if envelope.SetupComplete == nil {
		return errors.New("gemini live session setup was not acknowledged")
	}
	return nil
}

type liveSession struct {
	conn      *websocket.Conn
	inputRate int

	events chan domain.ServerMessage
	frames chan []byte

	// sendDone signals CloseSend; frames itself is never closed, so a sender
	// parked on it can never hit a closed channel.
	sendDone chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
}

func (s *liveSession) SendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	copied := append([]byte(nil), pcm...)
	select {
	case s.frames <- copied:
		return nil
	case <-s.sendDone:
		return errors.New("audio stream is already closed")
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	}
}

func (s *liveSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		close(s.sendDone)
	})
	return nil
}

func (s *liveSession) Events() <-chan domain.ServerMessage {
	return s.events
}

func (s *liveSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *liveSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *liveSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *liveSession) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *liveSession) writeLoop() {
	defer s.wg.Done()

	for {
		var frame []byte
		select {
		case <-s.sendDone:
			return
		case frame = <-s.frames:
		}

		payload, err := json.Marshal(realtimeEnvelope{
			RealtimeInput: realtimeInput{
				MediaChunks: []mediaChunk{{
					Data:     base64.StdEncoding.EncodeToString(frame),
					MIMEType: fmt.Sprintf("audio/pcm;rate=%d", s.inputRate),
				}},
			},
		})
		if err != nil {
			s.setErr(fmt.Errorf("failed to encode audio frame: %w", err))
			return
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.setErr(fmt.Errorf("failed to send audio frame: %w", err))
			return
		}
	}
}

func (s *liveSession) readLoop() {
	defer s.wg.Done()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read server message: %w", err))
			return
		}

		message, ok, err := decodeServerMessage(raw)
		if err != nil {
			s.setErr(err)
			return
		}
		if !ok {
			continue
		}
		s.emit(message)
	}
}

// emit delivers in order and never drops: field ordering inside a message and
// message ordering across the stream both carry meaning downstream.
func (s *liveSession) emit(message domain.ServerMessage) {
	select {
	case s.events <- message:
	case <-s.done:
	}
}

// decodeServerMessage flattens one websocket payload into a ServerMessage.
// Audio parts within a message are concatenated in part order. The boolean
// reports whether the payload carried anything for the session to act on.
func decodeServerMessage(raw []byte) (domain.ServerMessage, bool, error) {
	var envelope serverEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return domain.ServerMessage{}, false, fmt.Errorf("failed to decode server message: %w", err)
	}

	content := envelope.ServerContent
	if content == nil {
		return domain.ServerMessage{}, false, nil
	}

	message := domain.ServerMessage{
		TurnComplete: content.TurnComplete,
		Interrupted:  content.Interrupted,
	}
	if content.InputTranscription != nil {
		message.UserText = content.InputTranscription.Text
	}
	if content.OutputTranscription != nil {
		message.AgentText = content.OutputTranscription.Text
	}
	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return domain.ServerMessage{}, false, fmt.Errorf("failed to decode audio payload: %w", err)
			}
			message.Audio = append(message.Audio, pcm...)
		}
	}

	empty := message.UserText == "" && message.AgentText == "" &&
		!message.TurnComplete && len(message.Audio) == 0 && !message.Interrupted
	return message, !empty, nil
}

func buildLiveURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = defaultAPIBaseURL
	}
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	liveURL, err := url.Parse(base + bidiPath)
	if err != nil {
		return "", fmt.Errorf("invalid Gemini API base URL: %w", err)
	}
	query := liveURL.Query()
	query.Set("key", cfg.APIKey)
	liveURL.RawQuery = query.Encode()
	return liveURL.String(), nil
}

func buildSetup(model string, cfg ports.LiveConfig) setupEnvelope {
	voice := cfg.Voice
	if voice == "" {
		voice = "Puck"
	}

	setup := setupPayload{
		Model: model,
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoice{VoiceName: voice},
				},
			},
		},
	}
	if cfg.SystemInstruction != "" {
		setup.SystemInstruction = &contentPayload{
			Parts: []textPart{{Text: cfg.SystemInstruction}},
		}
	}
	if cfg.TranscribeInput {
		setup.InputAudioTranscription = &struct{}{}
	}
	if cfg.TranscribeOutput {
		setup.OutputAudioTranscription = &struct{}{}
	}
	return setupEnvelope{Setup: setup}
}

type setupEnvelope struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generationConfig"`
	SystemInstruction        *contentPayload  `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}        `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}        `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoice `json:"prebuiltVoiceConfig"`
}

type prebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type contentPayload struct {
	Parts []textPart `json:"parts"`
}

type textPart struct {
	Text string `json:"text"`
}

type realtimeEnvelope struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

type serverEnvelope struct {
	SetupComplete *struct{}      `json:"setupComplete"`
	ServerContent *serverContent `json:"serverContent"`
}

type serverContent struct {
	ModelTurn           *modelTurn     `json:"modelTurn"`
	InputTranscription  *transcription `json:"inputTranscription"`
	OutputTranscription *transcription `json:"outputTranscription"`
	TurnComplete        bool           `json:"turnComplete"`
	Interrupted         bool           `json:"interrupted"`
}

type modelTurn struct {
	Parts []contentPart `json:"parts"`
}

type contentPart struct {
	InlineData *inlineData `json:"inlineData"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type transcription struct {
	Text string `json:"text"`
}
