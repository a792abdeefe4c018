package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"soulchat-backend/internal/llm"
	"soulchat-backend/internal/logger"
)

// ErrCannotBuildRequest reports that no valid alternating message list could
// be assembled for the provider (no user turn to anchor the request on).
var ErrCannotBuildRequest = errors.New("cannot build completion request")

// ProviderInfo is a provider entry as the requester needs it.
type ProviderInfo struct {
	Name        string
	URL         string
	Models      []string
	KeyRequired bool
	APIKey      string
}

// Generator is the completion requester: it assembles the provider request
// from the prompt spec and the stored history, resolves credentials and
// invokes the completion client with the configured timeout.
type Generator struct {
	client          llm.Client
	providers       map[string]ProviderInfo
	defaultProvider string
	defaultModel    string
	prompt          *PromptSpec
	store           Store
	timeout         time.Duration
	log             *logger.Logger
}

func NewGenerator(client llm.Client, providers map[string]ProviderInfo,
	defaultProvider, defaultModel string, prompt *PromptSpec,
	store Store, timeout time.Duration, log *logger.Logger) *Generator {
	return &Generator{
		client:          client,
		providers:       providers,
		defaultProvider: defaultProvider,
		defaultModel:    defaultModel,
		prompt:          prompt,
		store:           store,
		timeout:         timeout,
		log:             log,
	}
}

// Generate runs one turn's completion. The stored history already contains
// the just-appended user turn. The returned model string is
// "provider/model" for diagnostics.
func (g *Generator) Generate(ctx context.Context, sessionID string, history []Message,
	provider, model string, tempKeys map[string]string) (string, string, error) {

	messages, err := g.buildMessages(history)
	if err != nil {
		return "", "", err
	}
	return g.CompleteMessages(ctx, sessionID, provider, model, messages, tempKeys)
}

// CompleteMessages resolves the provider, model and credential, then invokes
// the completion capability. Shared by the turn pipeline and the summarizer.
func (g *Generator) CompleteMessages(ctx context.Context, sessionID, provider, model string,
	messages []llm.Message, tempKeys map[string]string) (string, string, error) {

	info, modelName, err := g.resolveProvider(provider, model)
	if err != nil {
		return "", "", err
	}
	used := info.Name + "/" + modelName

	apiKey, kerr := g.resolveCredential(ctx, sessionID, info, tempKeys)
	if kerr != nil {
		return "", used, kerr
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.client.Complete(cctx, llm.Request{
		Provider:    info.Name,
		BaseURL:     info.URL,
		Model:       modelName,
		Messages:    messages,
		APIKey:      apiKey,
		Temperature: g.prompt.Style.Temperature,
		MaxTokens:   g.prompt.Style.MaxTokens,
	})
	g.log.Debug("completion finished", "model", used, "elapsed", time.Since(start), "ok", err == nil)
	if err != nil {
		return "", used, err
	}
	return text, used, nil
}

// resolveProvider mirrors the selection rules of the configuration layer:
// an unknown selection falls back to the default provider; a model not in
// the provider's list falls back to its first model.
func (g *Generator) resolveProvider(provider, model string) (ProviderInfo, string, error) {
	name := provider
	if _, ok := g.providers[name]; !ok || name == "" {
		name = g.defaultProvider
	}
	info, ok := g.providers[name]
	if !ok {
		return ProviderInfo{}, "", &llm.Error{Kind: llm.KindUnsupportedProvider, Err: fmt.Errorf("provider %q", provider)}
	}
	info.Name = name

	modelName := ""
	for _, m := range info.Models {
		if m == model {
			modelName = m
			break
		}
	}
	if modelName == "" && len(info.Models) > 0 {
		modelName = info.Models[0]
	}
	if modelName == "" && name == g.defaultProvider {
		modelName = g.defaultModel
	}
	if modelName == "" || info.URL == "" {
		return ProviderInfo{}, "", &llm.Error{Kind: llm.KindUnsupportedProvider, Err: fmt.Errorf("provider %q has no usable model or URL", name)}
	}
	return info, modelName, nil
}

// resolveCredential applies the priority ladder: per-request ephemeral key,
// then per-session stored key, then the globally configured one. A provider
// that requires a key and resolves none fails before any network call.
func (g *Generator) resolveCredential(ctx context.Context, sessionID string,
	info ProviderInfo, tempKeys map[string]string) (string, error) {

	if k := strings.TrimSpace(tempKeys[info.Name]); k != "" {
		return k, nil
	}
	if g.store != nil && sessionID != "" {
		if k, err := g.store.GetCredential(ctx, sessionID, info.Name); err == nil && strings.TrimSpace(k) != "" {
			return k, nil
		}
	}
	if info.APIKey != "" {
		return info.APIKey, nil
	}
	if info.KeyRequired {
		return "", &llm.Error{Kind: llm.KindCredentialMissing, Err: fmt.Errorf("provider %q", info.Name)}
	}
	return "", nil
}

// buildMessages assembles [system, history...] keeping only non-empty
// user/assistant entries, enforces strict role alternation and guarantees
// the list ends on a user turn.
func (g *Generator) buildMessages(history []Message) ([]llm.Message, error) {
	messages := []llm.Message{{Role: RoleSystem, Content: g.prompt.System}}
	for _, m := range history {
		if (m.Role == RoleUser || m.Role == RoleAssistant) && strings.TrimSpace(m.Content) != "" {
			messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
		}
	}

	final := alternatingMessages(messages)
	if len(final) >= 2 && final[len(final)-1].Role == RoleUser {
		return final, nil
	}

	// Salvage: system plus the most recent user turn.
	for i := len(messages) - 1; i >= 1; i-- {
		if messages[i].Role == RoleUser {
			return []llm.Message{messages[0], messages[i]}, nil
		}
	}
	return nil, ErrCannotBuildRequest
}

// alternatingMessages drops any message repeating the previous kept role and
// a trailing assistant turn. The leading system message is kept as-is.
func alternatingMessages(messages []llm.Message) []llm.Message {
	if len(messages) <= 1 {
		return messages
	}
	out := messages[:1:1]
	lastRole := ""
	for _, m := range messages[1:] {
		if m.Role == lastRole {
			continue
		}
		out = append(out, m)
		lastRole = m.Role
	}
	if len(out) > 1 && out[len(out)-1].Role == RoleAssistant {
		out = out[:len(out)-1]
	}
	return out
}
