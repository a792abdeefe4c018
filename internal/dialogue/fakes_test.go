package dialogue

import (
	"context"
	"sync"

	"soulchat-backend/internal/llm"
)

// fakeStore is an in-memory Store with per-method error injection.
type fakeStore struct {
	mu      sync.Mutex
	history map[string][]Message
	states  map[string]*SessionState
	creds   map[string]map[string]string

	historyErr error
	appendErr  error
	stateErr   error
	putErr     error
	credErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		history: map[string][]Message{},
		states:  map[string]*SessionState{},
		creds:   map[string]map[string]string{},
	}
}

func (f *fakeStore) AppendMessage(_ context.Context, sessionID string, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.history[sessionID] = append(f.history[sessionID], msg)
	return nil
}

func (f *fakeStore) History(_ context.Context, sessionID string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return append([]Message(nil), f.history[sessionID]...), nil
}

func (f *fakeStore) TrimHistory(_ context.Context, sessionID string, maxMessages int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := len(f.history[sessionID]); maxMessages > 0 && n > maxMessages {
		f.history[sessionID] = append([]Message(nil), f.history[sessionID][n-maxMessages:]...)
	}
	return nil
}

func (f *fakeStore) GetState(_ context.Context, sessionID string) (*SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	s, ok := f.states[sessionID]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (f *fakeStore) PutState(_ context.Context, sessionID string, state *SessionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.states[sessionID] = state.Clone()
	return nil
}

func (f *fakeStore) GetCredential(_ context.Context, sessionID, provider string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.credErr != nil {
		return "", f.credErr
	}
	return f.creds[sessionID][provider], nil
}

func (f *fakeStore) PutCredential(_ context.Context, sessionID, provider, apiKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.creds[sessionID] == nil {
		f.creds[sessionID] = map[string]string{}
	}
	f.creds[sessionID][provider] = apiKey
	return nil
}

func (f *fakeStore) ClearSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.history, sessionID)
	delete(f.states, sessionID)
	delete(f.creds, sessionID)
	return nil
}

// fakeClient records the last request and returns a canned reply or error.
type fakeClient struct {
	mu    sync.Mutex
	reply string
	err   error
	last  llm.Request
	calls int
}

func (f *fakeClient) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeClient) lastRequest() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func testPrompt() *PromptSpec {
	spec := &PromptSpec{System: "你是一位心理咨询助手。"}
	spec.Style.Temperature = 0.7
	spec.Style.MaxTokens = 1500
	return spec
}
