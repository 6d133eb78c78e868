package session

import (
	"sync"

	"lingua/internal/domain"
)

// TranscriptLog is the ordered, append-only conversation history for one
// session. Turns are immutable once appended except for the translation,
// which transitions once from empty to populated. Translations address turns
// by sequence index, so a late-arriving translation can never land on a
// different turn.
type TranscriptLog struct {
	mu    sync.Mutex
	turns []domain.TranscriptTurn
}

func NewTranscriptLog() *TranscriptLog {
	return &TranscriptLog{}
}

// Append commits a turn and assigns it the next sequence index.
func (l *TranscriptLog) Append(speaker domain.Speaker, text string) domain.TranscriptTurn {
	l.mu.Lock()
	defer l.mu.Unlock()

	turn := domain.TranscriptTurn{
		Sequence:     len(l.turns),
		Speaker:      speaker,
		OriginalText: text,
	}
	l.turns = append(l.turns, turn)
	return turn
}

// SetTranslation fills in the translation for the turn with the given
// sequence index. It reports whether the write was applied; an unknown index
// or an already-translated turn is a no-op.
func (l *TranscriptLog) SetTranslation(sequence int, translated string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if sequence < 0 || sequence >= len(l.turns) {
		return false
	}
	if l.turns[sequence].TranslatedText != "" {
		return false
	}
	l.turns[sequence].TranslatedText = translated
	return true
}

// Turns returns a copy of the committed history in order.
func (l *TranscriptLog) Turns() []domain.TranscriptTurn {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.TranscriptTurn, len(l.turns))
	copy(out, l.turns)
	return out
}

func (l *TranscriptLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}
