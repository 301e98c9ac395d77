package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/types"
)

const oracleSystemPrompt = `You are the "Oracle" of this specific software project.
You have read the codebase files provided below.
Answer the user's questions strictly based on these files.

Style:
- Be concise and technical.
- If asked for code, provide it.
- If asked "How do I run this?", look for scripts/Makefiles.
- If the answer is not in the files, say "Data not found in source files."

PROJECT FILES CONTEXT:
`

// sessionIdleTTL is how long an untouched session survives before lazy
// eviction. One session per open editing view is the expected lifetime.
const sessionIdleTTL = time.Hour

type OracleService interface {
	// CreateSession captures the context window once; files uploaded later
	// never appear in it. Start a new session to pick them up.
	CreateSession(files []FileContext) *OracleSession
	GetSession(id uuid.UUID) (*OracleSession, bool)
	EndSession(id uuid.UUID)
}

type oracleService struct {
	log           *logger.Logger
	client        GeminiClient
	maxInputChars int

	mu       sync.Mutex
	sessions map[uuid.UUID]*OracleSession
}

func NewOracleService(baseLog *logger.Logger, client GeminiClient, maxInputChars int) OracleService {
	if maxInputChars <= 0 {
		maxInputChars = 600000
	}
	return &oracleService{
		log:           baseLog.With("service", "OracleService"),
		client:        client,
		maxInputChars: maxInputChars,
		sessions:      map[uuid.UUID]*OracleSession{},
	}
}

func (s *oracleService) CreateSession(files []FileContext) *OracleSession {
	session := &OracleSession{
		ID:            uuid.New(),
		client:        s.client,
		log:           s.log,
		context:       BuildFileContext(files),
		maxInputChars: s.maxInputChars,
	}
	session.lastUsed.Store(time.Now().UnixNano())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictIdleLocked()
	s.sessions[session.ID] = session
	s.log.Info("Created oracle session", "session_id", session.ID, "file_count", len(files), "context_chars", len(session.context))
	return session
}

func (s *oracleService) GetSession(id uuid.UUID) (*OracleSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *oracleService) EndSession(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *oracleService) evictIdleLocked() {
	cutoff := time.Now().Add(-sessionIdleTTL)
	for id, session := range s.sessions {
		if session.LastUsed().Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}

// OracleSession layers an append-only conversation over a context window
// that is fixed for the session's lifetime.
type OracleSession struct {
	ID uuid.UUID

	client        GeminiClient
	log           *logger.Logger
	context       string
	maxInputChars int

	// Unix nanos, kept atomic so the registry can read it for eviction
	// without waiting on a turn in flight.
	lastUsed atomic.Int64

	mu      sync.Mutex
	history []types.ChatMessage
}

// History returns a copy of the conversation so far.
func (s *OracleSession) History() []types.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

func (s *OracleSession) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Send appends the user turn, replays the whole history plus the fixed
// context to the capability, and appends the reply. The mutex serializes
// turns: a second Send issued before the first resolves queues behind it,
// so history order is strictly FIFO.
func (s *OracleSession) Send(ctx context.Context, message string) (string, error) {
	s.lastUsed.Store(time.Now().UnixNano())
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.context)+s.historySizeLocked()+len(message) > s.maxInputChars {
		return "", ErrContextTooLarge
	}

	prior := s.history
	s.history = append(s.history, types.ChatMessage{
		Role:      types.ChatRoleUser,
		Content:   message,
		Timestamp: time.Now(),
	})

	reply, err := s.client.Chat(ctx, oracleSystemPrompt+s.context, prior, message)
	if err != nil {
		if IsPayloadTooLarge(err) {
			// The capability refused the size; roll back the user turn so
			// the session is exactly as it was.
			s.history = prior
			return "", ErrContextTooLarge
		}
		// The user turn stays so the same message can be retried; no model
		// turn is appended.
		return "", &ChatError{Reason: "capability call failed", Err: err}
	}
	if reply == "" {
		return "", &ChatError{Reason: "empty reply"}
	}

	s.history = append(s.history, types.ChatMessage{
		Role:      types.ChatRoleModel,
		Content:   reply,
		Timestamp: time.Now(),
	})
	return reply, nil
}

func (s *OracleSession) historySizeLocked() int {
	total := 0
	for _, msg := range s.history {
		total += len(msg.Content)
	}
	return total
}
