package service

import (
	"context"
	"fmt"

	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/rs/zerolog/log"

	"github.com/hearthd/hearth/pkg/backend"
)

// CognitiveTask runs a one-shot prompt with optional image attachments
// and an optional model override. The agent is ephemeral: no session,
// no tools, nothing cached or persisted.
func (s *Service) CognitiveTask(ctx context.Context, prompt, modelID string, imagePaths, imageURLs []string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}

	blocks, err := s.loadImages(ctx, imagePaths, imageURLs)
	if err != nil {
		return "", err
	}

	a, err := s.cache.BuildEphemeral(ctx, modelID)
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("model", a.ModelID()).
		Int("images", len(blocks)).
		Msg("Running cognitive task")

	reply, err := a.Invoke(ctx, prompt, blocks)
	if err != nil {
		return "", backend.WrapProviderError(err)
	}
	return reply, nil
}

func (s *Service) loadImages(ctx context.Context, paths, urls []string) ([]bedrocktypes.ContentBlock, error) {
	if len(paths) == 0 && len(urls) == 0 {
		return nil, nil
	}
	if s.vision == nil {
		return nil, fmt.Errorf("image attachments are not configured")
	}
	return s.vision.LoadAll(ctx, paths, urls)
}
