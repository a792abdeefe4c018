package dialogue

import (
	"context"
	"errors"
)

// Message roles as stored in the conversation log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one entry of a session's conversation log.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrStoreUnavailable distinguishes an unreachable backing store from an
// empty session. Implementations wrap it with %w.
var ErrStoreUnavailable = errors.New("session store unavailable")

// Store is the persistence port the pipeline needs: bounded history,
// per-session state and per-session provider credentials.
type Store interface {
	AppendMessage(ctx context.Context, sessionID string, msg Message) error
	History(ctx context.Context, sessionID string) ([]Message, error)
	TrimHistory(ctx context.Context, sessionID string, maxMessages int) error

	// GetState returns (nil, nil) when the session has no stored state yet.
	GetState(ctx context.Context, sessionID string) (*SessionState, error)
	PutState(ctx context.Context, sessionID string, state *SessionState) error

	GetCredential(ctx context.Context, sessionID, provider string) (string, error)
	PutCredential(ctx context.Context, sessionID, provider, apiKey string) error

	ClearSession(ctx context.Context, sessionID string) error
}
