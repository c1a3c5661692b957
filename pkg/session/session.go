package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/hearthd/hearth/internal/observability"
	"github.com/hearthd/hearth/pkg/backend"
)

// Turn is one persisted transcript entry. Only plain text survives the
// round trip; tool traffic and images are deliberately not persisted.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a user's durable transcript. The full history loads at
// construction and appends go straight to disk, so the in-memory view
// and the file never diverge.
type Session struct {
	userID string
	path   string
	turns  []Turn
	mu     sync.Mutex
}

func newSession(userID, path string) (*Session, error) {
	s := &Session{userID: userID, path: path}
	start := time.Now()
	if err := s.load(); err != nil {
		return nil, err
	}
	observability.RecordSessionLoad(time.Since(start))
	return s, nil
}

func (s *Session) load() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var turn Turn
		if err := json.Unmarshal([]byte(raw), &turn); err != nil {
			// A torn write at the tail is survivable; skip the line.
			log.Warn().Err(err).Str("user_id", s.userID).Int("line", line).Msg("Skipping malformed transcript line")
			continue
		}
		s.turns = append(s.turns, turn)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read session file: %w", err)
	}

	log.Debug().Str("user_id", s.userID).Int("turns", len(s.turns)).Msg("Session transcript loaded")
	return nil
}

// UserID returns the owning user id.
func (s *Session) UserID() string {
	return s.userID
}

// Len returns the number of persisted turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Append persists a turn and adds it to the in-memory view. The write
// is flushed to stable storage before returning.
func (s *Session) Append(role, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn := Turn{Role: role, Text: text, Timestamp: time.Now().UTC()}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to encode transcript turn: %w", err)
	}

	start := time.Now()
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open session file for append: %w", err)
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		file.Close()
		return fmt.Errorf("failed to append transcript turn: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync session file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}
	observability.RecordSessionSave(time.Since(start))

	s.turns = append(s.turns, turn)
	return nil
}

// Turns returns a copy of the persisted turns.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Messages converts the transcript to model messages, keeping at most
// the last windowSize turns. windowSize <= 0 means no limit.
func (s *Session) Messages(windowSize int) []bedrocktypes.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.turns
	if windowSize > 0 && len(turns) > windowSize {
		turns = turns[len(turns)-windowSize:]
	}

	messages := make([]bedrocktypes.Message, 0, len(turns))
	for _, turn := range turns {
		block := backend.TextBlock(turn.Text)
		if turn.Role == "assistant" {
			messages = append(messages, backend.AssistantMessage(block))
		} else {
			messages = append(messages, backend.UserMessage(block))
		}
	}
	return messages
}

// sanitizeID maps a user id to a safe file name.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" || name == "." || name == ".." {
		name = "_"
	}
	return name
}

func transcriptPath(dir, userID string) string {
	return filepath.Join(dir, sanitizeID(userID)+".jsonl")
}
