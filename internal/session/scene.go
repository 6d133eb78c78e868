package session

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"lingua/internal/domain"
	"lingua/internal/ports"
)

// SceneGenerator renders the cultural context image shown in verbalization
// mode. It is a plain request/response collaborator; retries are always
// user-initiated regenerations.
type SceneGenerator struct {
	images ports.ImageGenerator
	log    *zap.Logger
}

func NewSceneGenerator(images ports.ImageGenerator, log *zap.Logger) *SceneGenerator {
	if log == nil {
		log = zap.NewNop()
	}
	return &SceneGenerator{images: images, log: log}
}

// Generate produces a scene image for the given target language and learning
// purpose.
func (g *SceneGenerator) Generate(ctx context.Context, targetLanguage, purpose string) ([]byte, error) {
	if strings.TrimSpace(purpose) == "" {
		purpose = "general conversation practice"
	}
	prompt := fmt.Sprintf(
		"A detailed cultural scene from a country where %s is spoken, representing the context of %s. High quality.",
		targetLanguage, purpose,
	)

	img, err := g.images.GenerateImage(ctx, prompt)
	if err != nil {
		g.log.Warn("scene generation failed", zap.String("language", targetLanguage), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return img, nil
}
