package domain

// SessionState models the live conversation lifecycle.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateConnecting SessionState = "connecting"
	SessionStateActive     SessionState = "active"
	SessionStateClosing    SessionState = "closing"
	SessionStateClosed     SessionState = "closed"
	SessionStateError      SessionState = "error"
)

// SessionMode selects the conversation style for a session.
type SessionMode string

const (
	ModeConversation  SessionMode = "conversation"
	ModeVerbalization SessionMode = "verbalization"
)

// Speaker identifies who produced a transcript turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonStartup          SessionStateReason = "startup"
	SessionReasonConnectRequested SessionStateReason = "connect_requested"
	SessionReasonTransportOpen    SessionStateReason = "transport_open"
	SessionReasonUserStop         SessionStateReason = "user_stop"
	SessionReasonSessionClosed    SessionStateReason = "session_closed"
	SessionReasonConnectCancelled SessionStateReason = "connect_cancelled"
	SessionReasonConnectFailed    SessionStateReason = "connect_failed"
	SessionReasonTransportFailed  SessionStateReason = "transport_failed"
)

// ErrorCode identifies non-fatal and fatal engine errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodePermission    ErrorCode = "permission_denied"
	ErrorCodeDevice        ErrorCode = "device_unavailable"
	ErrorCodeTransportOpen ErrorCode = "transport_open_failed"
	ErrorCodeTransport     ErrorCode = "transport_error"
	ErrorCodeTranslation   ErrorCode = "translation_unavailable"
	ErrorCodeGeneration    ErrorCode = "generation_failed"
	ErrorCodeExport        ErrorCode = "export_failed"
)

// TranscriptTurn is one committed line of conversation history. OriginalText
// is in the session's target language; TranslatedText is filled in
// asynchronously and stays empty when translation fails.
type TranscriptTurn struct {
	Sequence       int     `json:"sequence"`
	Speaker        Speaker `json:"speaker"`
	OriginalText   string  `json:"originalText"`
	TranslatedText string  `json:"translatedText"`
}

// ServerMessage is one decoded push message from the live service. Any subset
// of fields may be present in a single message.
type ServerMessage struct {
	UserText     string
	AgentText    string
	TurnComplete bool
	Audio        []byte // 16-bit little-endian PCM at the output sample rate
	Interrupted  bool
}

// Status summarizes the current engine status.
type Status struct {
	State          SessionState `json:"state"`
	Active         bool         `json:"active"`
	Mode           SessionMode  `json:"mode,omitempty"`
	TargetLanguage string       `json:"targetLanguage,omitempty"`
	NativeLanguage string       `json:"nativeLanguage,omitempty"`
	TurnCount      int          `json:"turnCount"`
	Message        string       `json:"message,omitempty"`
}
