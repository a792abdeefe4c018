package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"soulchat-backend/internal/llm"
)

// ErrEmptyHistory reports that there is nothing to summarize.
var ErrEmptyHistory = errors.New("conversation history is empty")

// historySlot is the insertion point in the summary prompt template.
const historySlot = "{conversation_history}"

// Summarizer turns a session's stored history into a short report via the
// configured summary provider and model.
type Summarizer struct {
	gen      *Generator
	store    Store
	provider string
	model    string
	template string
}

func NewSummarizer(gen *Generator, store Store, provider, model, template string) *Summarizer {
	return &Summarizer{gen: gen, store: store, provider: provider, model: model, template: template}
}

// Summarize loads the session history, renders the summary prompt and runs
// a single-message completion against the summary provider.
func (s *Summarizer) Summarize(ctx context.Context, sessionID string, tempKeys map[string]string) (string, error) {
	history, err := s.store.History(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", ErrEmptyHistory
	}

	prompt := strings.Replace(s.template, historySlot, formatHistory(history), 1)
	messages := []llm.Message{{Role: RoleUser, Content: prompt}}

	text, _, err := s.gen.CompleteMessages(ctx, sessionID, s.provider, s.model, messages, tempKeys)
	if err != nil {
		return "", err
	}
	return text, nil
}

// formatHistory renders "role: content" lines; oversized system messages
// are truncated so the summary prompt stays compact.
func formatHistory(history []Message) string {
	var b strings.Builder
	for _, m := range history {
		role := m.Role
		switch m.Role {
		case RoleUser:
			role = "用户"
		case RoleAssistant:
			role = "AI助手"
		}
		content := m.Content
		if m.Role == RoleSystem && len([]rune(content)) > 500 {
			content = string([]rune(content)[:500]) + "... (内容过长已截断)"
		}
		fmt.Fprintf(&b, "%s: %s\n---\n", role, content)
	}
	return strings.TrimSpace(b.String())
}
