package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hearthd/hearth/pkg/backend"
	"github.com/hearthd/hearth/pkg/taskqueue"
)

// Result is the outcome of one conversation turn. ConversationID is
// always populated, including on failure, so callers can retry against
// the same conversation.
type Result struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id"`
}

// Process handles one conversation turn, minting a conversation id when
// the caller did not supply one.
func (s *Service) Process(ctx context.Context, prompt, userID, conversationID string) (Result, error) {
	if conversationID == "" {
		conversationID = uuid.NewString()
		log.Debug().Str("conversation_id", conversationID).Msg("Minted conversation id")
	}

	text, err := s.Generate(ctx, prompt, userID, conversationID)
	result := Result{Text: text, ConversationID: conversationID}
	if err != nil {
		return Result{ConversationID: conversationID}, err
	}
	return result, nil
}

// Generate produces a reply for the prompt. A present conversation id
// selects the session-backed agent for the effective user; an absent
// one selects the process-wide ephemeral agent. Session-backed calls
// with active memory are serialized per user on the queue.
func (s *Service) Generate(ctx context.Context, prompt, userID, conversationID string) (string, error) {
	if conversationID == "" {
		return s.generateEphemeral(ctx, prompt)
	}

	effectiveUser := userID
	if effectiveUser == "" {
		effectiveUser = DefaultUserID
	}

	if s.memoryEnabled && s.queue != nil {
		lane := taskqueue.UserLane(effectiveUser)
		result, err := s.queue.EnqueueWithContext(ctx, lane, func(taskCtx context.Context) (interface{}, error) {
			return s.generateForUser(taskCtx, prompt, effectiveUser)
		})
		if err != nil {
			return "", err
		}
		return result.(string), nil
	}
	return s.generateForUser(ctx, prompt, effectiveUser)
}

// generateForUser runs one session-backed turn with the corrupt
// transcript recovery: the specific backend validation failure for
// broken role alternation forces a rebuild from persisted state and
// exactly one retry. Any second failure is final.
func (s *Service) generateForUser(ctx context.Context, prompt, userID string) (string, error) {
	a, err := s.cache.GetOrBuild(ctx, userID)
	if err != nil {
		return "", err
	}

	reply, err := a.Invoke(ctx, prompt, nil)
	if err == nil {
		return reply, nil
	}
	if !backend.IsCorruptTranscript(err) {
		return "", backend.WrapProviderError(err)
	}

	log.Warn().Err(err).Str("user_id", userID).
		Msg("Backend rejected transcript as corrupt, rebuilding agent and retrying once")

	rebuilt, rebuildErr := s.cache.ForceRebuild(ctx, userID)
	if rebuildErr != nil {
		return "", fmt.Errorf("failed to rebuild agent after corrupt transcript: %w", rebuildErr)
	}

	reply, retryErr := rebuilt.Invoke(ctx, prompt, nil)
	if retryErr != nil {
		return "", backend.WrapProviderError(retryErr)
	}
	return reply, nil
}

func (s *Service) generateEphemeral(ctx context.Context, prompt string) (string, error) {
	s.ephemeralOnce.Do(func() {
		s.ephemeral, s.ephemeralErr = s.cache.BuildEphemeral(ctx, "")
	})
	if s.ephemeralErr != nil {
		return "", s.ephemeralErr
	}

	reply, err := s.ephemeral.Invoke(ctx, prompt, nil)
	if err != nil {
		return "", backend.WrapProviderError(err)
	}
	return reply, nil
}
