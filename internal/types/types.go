package types

import "soulchat-backend/internal/dialogue"

// ChatRequest submits one user turn for asynchronous processing.
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	// APIKeys are per-request ephemeral provider credentials.
	APIKeys map[string]string `json:"apiKeys,omitempty"`
}

// SubmitResponse acknowledges an accepted job.
type SubmitResponse struct {
	SessionID string `json:"sessionId"`
	JobID     string `json:"jobId"`
}

// JobResultResponse is the poll view of a submitted job.
type JobResultResponse struct {
	JobID  string `json:"jobId"`
	State  string `json:"state"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HistoryResponse lists a session's conversation log.
type HistoryResponse struct {
	SessionID string             `json:"sessionId"`
	Messages  []dialogue.Message `json:"messages"`
}

// CredentialRequest stores a per-session provider credential.
type CredentialRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
}

// ProviderSummary describes one configured provider for the client UI.
type ProviderSummary struct {
	Name          string   `json:"name"`
	Models        []string `json:"models"`
	KeyRequired   bool     `json:"keyRequired"`
	KeyConfigured bool     `json:"keyConfigured"`
}

// ProvidersResponse lists the configured providers and defaults.
type ProvidersResponse struct {
	Providers       []ProviderSummary `json:"providers"`
	DefaultProvider string            `json:"defaultProvider"`
	DefaultModel    string            `json:"defaultModel"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
