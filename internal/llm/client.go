package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Message is one entry of a completion request's message list.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one completion invocation. The caller has already resolved the
// credential and the provider endpoint; timeouts arrive through the context.
type Request struct {
	Provider    string
	BaseURL     string
	Model       string
	Messages    []Message
	APIKey      string
	Temperature float32
	MaxTokens   int
}

// Client is the external completion capability.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Providers understood by HTTPClient. "deepseek" and "openai" speak the
// OpenAI chat-completions dialect; "local" speaks the Ollama /api/chat one.
const (
	ProviderLocal    = "local"
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
)

// HTTPClient dispatches a Request to the concrete provider protocol and
// classifies every failure into an *Error.
type HTTPClient struct {
	httpc *http.Client
}

func NewHTTPClient() *HTTPClient {
	return &HTTPClient{httpc: &http.Client{}}
}

func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	switch req.Provider {
	case ProviderDeepSeek, ProviderOpenAI:
		return c.completeOpenAI(ctx, req)
	case ProviderLocal:
		return c.completeOllama(ctx, req)
	default:
		return "", &Error{Kind: KindUnsupportedProvider, Err: fmt.Errorf("provider %q", req.Provider)}
	}
}

func (c *HTTPClient) completeOpenAI(ctx context.Context, req Request) (string, error) {
	cfg := openai.DefaultConfig(req.APIKey)
	if req.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(req.BaseURL, "/")
	}
	cfg.HTTPClient = c.httpc
	client := openai.NewClientWithConfig(cfg)

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindEmptyResponse}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &Error{Kind: KindEmptyResponse}
	}
	return content, nil
}

// ollamaResponse covers the /api/chat reply shapes seen in the wild.
type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Response string `json:"response"`
	Choices  []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *HTTPClient) completeOllama(ctx context.Context, req Request) (string, error) {
	payload := map[string]any{
		"model":    req.Model,
		"messages": req.Messages,
		"stream":   false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Kind: KindNetworkError, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindNetworkError, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return "", &Error{Kind: KindHTTPError, Status: resp.StatusCode, Err: errors.New(string(snippet))}
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &Error{Kind: KindNetworkError, Err: err}
	}

	content := strings.TrimSpace(out.Message.Content)
	if content == "" {
		content = strings.TrimSpace(out.Response)
	}
	if content == "" && len(out.Choices) > 0 {
		content = strings.TrimSpace(out.Choices[0].Message.Content)
	}
	if content == "" {
		return "", &Error{Kind: KindEmptyResponse}
	}
	return content, nil
}

// classify maps transport-level failures onto the fixed error taxonomy.
func classify(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Kind: KindHTTPError, Status: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode > 0 {
			return &Error{Kind: KindHTTPError, Status: reqErr.HTTPStatusCode, Err: err}
		}
		return &Error{Kind: KindNetworkError, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindNetworkError, Err: err}
}
