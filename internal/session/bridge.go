package session

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"lingua/internal/domain"
	"lingua/internal/ports"
)

// TranslationBridge produces reverse translations of completed turns and
// on-demand phrasing suggestions. Both calls share the same underlying text
// generation capability; failures are non-fatal to the session.
type TranslationBridge struct {
	gen ports.TextGenerator
	log *zap.Logger
}

func NewTranslationBridge(gen ports.TextGenerator, log *zap.Logger) *TranslationBridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &TranslationBridge{gen: gen, log: log}
}

// Translate converts text between languages. Empty input translates to empty
// output without a service call.
func (b *TranslationBridge) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	prompt := fmt.Sprintf(
		"You are an expert linguist. Translate the following %s text to %s. Reply with the translation only, no commentary. Text: %q",
		sourceLang, targetLang, text,
	)
	out, err := b.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTranslationUnavailable, err)
	}
	return strings.TrimSpace(out), nil
}

// SuggestPhrasing turns a native-language thought into a target-language
// phrasing the learner can say. Used by the assist panel, independent of the
// turn pipeline.
func (b *TranslationBridge) SuggestPhrasing(ctx context.Context, text, nativeLang, targetLang string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	prompt := fmt.Sprintf(
		"A language learner wants to express the following %s thought in %s during a spoken conversation: %q. Reply with one natural %s phrasing only.",
		nativeLang, targetLang, text, targetLang,
	)
	out, err := b.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTranslationUnavailable, err)
	}
	return strings.TrimSpace(out), nil
}
