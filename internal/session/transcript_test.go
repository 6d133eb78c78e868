package session

import (
	"sync"
	"testing"

	"lingua/internal/domain"
)

func TestTranscriptAppendAssignsSequence(t *testing.T) {
	t.Parallel()
	log := NewTranscriptLog()

	first := log.Append(domain.SpeakerUser, "Hola")
	second := log.Append(domain.SpeakerAgent, "Buenos dias")
	if first.Sequence != 0 || second.Sequence != 1 {
		t.Fatalf("sequences = %d, %d; want 0, 1", first.Sequence, second.Sequence)
	}
	if log.Len() != 2 {
		t.Fatalf("Len = %d, want 2", log.Len())
	}
}

func TestTranscriptSetTranslation(t *testing.T) {
	t.Parallel()
	log := NewTranscriptLog()
	log.Append(domain.SpeakerAgent, "Hola amigo")

	if !log.SetTranslation(0, "Hello friend") {
		t.Fatal("first SetTranslation rejected")
	}
	if log.SetTranslation(0, "Howdy friend") {
		t.Fatal("second SetTranslation overwrote an existing translation")
	}
	if got := log.Turns()[0].TranslatedText; got != "Hello friend" {
		t.Fatalf("translation = %q, want first writer to win", got)
	}
}

func TestTranscriptSetTranslationUnknownSequence(t *testing.T) {
	t.Parallel()
	log := NewTranscriptLog()
	log.Append(domain.SpeakerUser, "Hola")

	if log.SetTranslation(-1, "x") {
		t.Fatal("negative sequence accepted")
	}
	if log.SetTranslation(1, "x") {
		t.Fatal("out-of-range sequence accepted")
	}
}

func TestTranscriptLateTranslationLandsOnItsTurn(t *testing.T) {
	t.Parallel()
	log := NewTranscriptLog()

	slow := log.Append(domain.SpeakerAgent, "primero")
	fast := log.Append(domain.SpeakerAgent, "segundo")

	// The second turn's translation resolves before the first's.
	log.SetTranslation(fast.Sequence, "second")
	log.SetTranslation(slow.Sequence, "first")

	turns := log.Turns()
	if turns[0].TranslatedText != "first" || turns[1].TranslatedText != "second" {
		t.Fatalf("translations crossed wires: %+v", turns)
	}
}

func TestTranscriptTurnsReturnsCopy(t *testing.T) {
	t.Parallel()
	log := NewTranscriptLog()
	log.Append(domain.SpeakerUser, "Hola")

	turns := log.Turns()
	turns[0].OriginalText = "mutated"
	if got := log.Turns()[0].OriginalText; got != "Hola" {
		t.Fatalf("internal state mutated through Turns copy: %q", got)
	}
}

func TestTranscriptConcurrentAccess(t *testing.T) {
	t.Parallel()
	log := NewTranscriptLog()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				turn := log.Append(domain.SpeakerUser, "texto")
				log.SetTranslation(turn.Sequence, "text")
				log.Turns()
			}
		}()
	}
	wg.Wait()

	if got := log.Len(); got != 400 {
		t.Fatalf("Len = %d, want 400", got)
	}
}
