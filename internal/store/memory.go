package store

import (
	"context"
	"sync"

	"soulchat-backend/internal/dialogue"
)

// MemoryStore is the in-process Store used for tests and single-node runs.
type MemoryStore struct {
	mu       sync.RWMutex
	history  map[string][]dialogue.Message
	states   map[string]*dialogue.SessionState
	creds    map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		history: make(map[string][]dialogue.Message),
		states:  make(map[string]*dialogue.SessionState),
		creds:   make(map[string]map[string]string),
	}
}

func (m *MemoryStore) AppendMessage(_ context.Context, sessionID string, msg dialogue.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[sessionID] = append(m.history[sessionID], msg)
	return nil
}

func (m *MemoryStore) History(_ context.Context, sessionID string) ([]dialogue.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.history[sessionID]
	out := make([]dialogue.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *MemoryStore) TrimHistory(_ context.Context, sessionID string, maxMessages int) error {
	if maxMessages <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.history[sessionID]
	if len(msgs) > maxMessages {
		m.history[sessionID] = append([]dialogue.Message(nil), msgs[len(msgs)-maxMessages:]...)
	}
	return nil
}

func (m *MemoryStore) GetState(_ context.Context, sessionID string) (*dialogue.SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[sessionID]
	if !ok {
		return nil, nil
	}
	return st.Clone(), nil
}

func (m *MemoryStore) PutState(_ context.Context, sessionID string, state *dialogue.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[sessionID] = state.Clone()
	return nil
}

func (m *MemoryStore) GetCredential(_ context.Context, sessionID, provider string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds[sessionID][provider], nil
}

func (m *MemoryStore) PutCredential(_ context.Context, sessionID, provider, apiKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds[sessionID] == nil {
		m.creds[sessionID] = make(map[string]string)
	}
	m.creds[sessionID][provider] = apiKey
	return nil
}

func (m *MemoryStore) ClearSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, sessionID)
	delete(m.states, sessionID)
	delete(m.creds, sessionID)
	return nil
}
