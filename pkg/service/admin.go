package service

import (
	"github.com/rs/zerolog/log"

	"github.com/hearthd/hearth/pkg/agent"
)

// ClearConversationCache is retained for compatibility with callers
// that cache per conversation. Agents are keyed by user, so there is
// nothing to evict.
func (s *Service) ClearConversationCache(conversationID string) {
	log.Debug().Str("conversation_id", conversationID).
		Msg("Conversation cache clear requested; agents are cached per user, nothing to do")
}

// ClearUserCache evicts the user's agent and session handle. Persisted
// transcripts and memory records are untouched.
func (s *Service) ClearUserCache(userID string) {
	s.cache.ClearUser(userID)
}

// ClearAllCaches evicts every cached agent and session handle.
func (s *Service) ClearAllCaches() {
	s.cache.ClearAll()
}

// MemoryStats reports memory and cache state as seen by callerUserID.
func (s *Service) MemoryStats(callerUserID string) agent.Stats {
	if callerUserID == "" {
		callerUserID = DefaultUserID
	}
	return s.cache.Stats(callerUserID)
}
