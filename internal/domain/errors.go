package domain

import "errors"

var (
	// ErrSessionActive is returned when Start is called outside the idle state.
	ErrSessionActive = errors.New("conversation session already active")

	// ErrPermissionDenied indicates the platform refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrDeviceUnavailable indicates the capture device could not be opened.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrTransportOpenFailed indicates the live connection could not be established.
	ErrTransportOpenFailed = errors.New("live transport open failed")

	// ErrTranslationUnavailable indicates a turn translation could not be produced.
	// Callers must treat this as non-fatal and leave the translation empty.
	ErrTranslationUnavailable = errors.New("translation unavailable")

	// ErrGenerationFailed indicates a scene image could not be generated.
	ErrGenerationFailed = errors.New("scene generation failed")
)
