package dialogue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soulchat-backend/internal/llm"
	"soulchat-backend/internal/logger"
)

func testProviders() map[string]ProviderInfo {
	return map[string]ProviderInfo{
		"local": {
			URL:    "http://localhost:11434/api/chat",
			Models: []string{"qwen2:latest", "llama3"},
		},
		"deepseek": {
			URL:         "https://api.deepseek.com/v1",
			Models:      []string{"deepseek-chat"},
			KeyRequired: true,
		},
	}
}

func newTestGenerator(client llm.Client, store Store) *Generator {
	return NewGenerator(client, testProviders(), "local", "qwen2:latest",
		testPrompt(), store, 5*time.Second, logger.NewNop())
}

func TestGenerateBuildsAlternatingMessages(t *testing.T) {
	client := &fakeClient{reply: "好的"}
	gen := newTestGenerator(client, newFakeStore())

	history := []Message{
		{Role: RoleUser, Content: "第一句"},
		{Role: RoleUser, Content: "第二句"},
		{Role: RoleAssistant, Content: "回复一"},
		{Role: RoleAssistant, Content: "回复二"},
		{Role: RoleUser, Content: "第三句"},
	}
	_, used, err := gen.Generate(context.Background(), "s1", history, "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "local/qwen2:latest", used)

	msgs := client.lastRequest().Messages
	require.NotEmpty(t, msgs)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	for i := 2; i < len(msgs); i++ {
		assert.NotEqual(t, msgs[i-1].Role, msgs[i].Role, "consecutive same role at %d", i)
	}
	assert.Equal(t, RoleUser, msgs[len(msgs)-1].Role)
	assert.Equal(t, "第三句", msgs[len(msgs)-1].Content)
}

func TestGenerateDropsTrailingAssistantTurn(t *testing.T) {
	client := &fakeClient{reply: "好的"}
	gen := newTestGenerator(client, newFakeStore())

	history := []Message{
		{Role: RoleAssistant, Content: "之前的回复"},
		{Role: RoleUser, Content: "现在的问题"},
		{Role: RoleAssistant, Content: "悬空回复"},
	}
	_, _, err := gen.Generate(context.Background(), "s1", history, "", "", nil)
	require.NoError(t, err)

	msgs := client.lastRequest().Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleUser, msgs[len(msgs)-1].Role)
}

func TestGenerateNoUserTurnFails(t *testing.T) {
	client := &fakeClient{reply: "好的"}
	gen := newTestGenerator(client, newFakeStore())

	history := []Message{{Role: RoleAssistant, Content: "只有回复"}}
	_, _, err := gen.Generate(context.Background(), "s1", history, "", "", nil)
	require.ErrorIs(t, err, ErrCannotBuildRequest)
	assert.Zero(t, client.calls)
}

func TestGenerateSkipsEmptyMessages(t *testing.T) {
	client := &fakeClient{reply: "好的"}
	gen := newTestGenerator(client, newFakeStore())

	history := []Message{
		{Role: RoleUser, Content: "   "},
		{Role: RoleUser, Content: "有内容"},
	}
	_, _, err := gen.Generate(context.Background(), "s1", history, "", "", nil)
	require.NoError(t, err)

	msgs := client.lastRequest().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "有内容", msgs[1].Content)
}

func TestGenerateUnknownProviderFallsBackToDefault(t *testing.T) {
	client := &fakeClient{reply: "好的"}
	gen := newTestGenerator(client, newFakeStore())

	history := []Message{{Role: RoleUser, Content: "你好"}}
	_, used, err := gen.Generate(context.Background(), "s1", history, "nope", "also-nope", nil)
	require.NoError(t, err)
	assert.Equal(t, "local/qwen2:latest", used)
}

func TestGenerateModelFallsBackToFirstListed(t *testing.T) {
	client := &fakeClient{reply: "好的"}
	store := newFakeStore()
	require.NoError(t, store.PutCredential(context.Background(), "s1", "deepseek", "sk-stored"))
	gen := newTestGenerator(client, store)

	history := []Message{{Role: RoleUser, Content: "你好"}}
	_, used, err := gen.Generate(context.Background(), "s1", history, "deepseek", "gpt-9", nil)
	require.NoError(t, err)
	assert.Equal(t, "deepseek/deepseek-chat", used)
}

func TestGenerateCredentialPriority(t *testing.T) {
	t.Run("ephemeral beats stored", func(t *testing.T) {
		client := &fakeClient{reply: "好的"}
		store := newFakeStore()
		require.NoError(t, store.PutCredential(context.Background(), "s1", "deepseek", "sk-stored"))
		gen := newTestGenerator(client, store)

		history := []Message{{Role: RoleUser, Content: "你好"}}
		_, _, err := gen.Generate(context.Background(), "s1", history, "deepseek", "",
			map[string]string{"deepseek": "sk-temp"})
		require.NoError(t, err)
		assert.Equal(t, "sk-temp", client.lastRequest().APIKey)
	})

	t.Run("stored beats global", func(t *testing.T) {
		client := &fakeClient{reply: "好的"}
		store := newFakeStore()
		require.NoError(t, store.PutCredential(context.Background(), "s1", "deepseek", "sk-stored"))

		providers := testProviders()
		info := providers["deepseek"]
		info.APIKey = "sk-global"
		providers["deepseek"] = info
		gen := NewGenerator(client, providers, "local", "qwen2:latest",
			testPrompt(), store, 5*time.Second, logger.NewNop())

		history := []Message{{Role: RoleUser, Content: "你好"}}
		_, _, err := gen.Generate(context.Background(), "s1", history, "deepseek", "", nil)
		require.NoError(t, err)
		assert.Equal(t, "sk-stored", client.lastRequest().APIKey)
	})

	t.Run("global used last", func(t *testing.T) {
		client := &fakeClient{reply: "好的"}
		providers := testProviders()
		info := providers["deepseek"]
		info.APIKey = "sk-global"
		providers["deepseek"] = info
		gen := NewGenerator(client, providers, "local", "qwen2:latest",
			testPrompt(), newFakeStore(), 5*time.Second, logger.NewNop())

		history := []Message{{Role: RoleUser, Content: "你好"}}
		_, _, err := gen.Generate(context.Background(), "s1", history, "deepseek", "", nil)
		require.NoError(t, err)
		assert.Equal(t, "sk-global", client.lastRequest().APIKey)
	})
}

func TestGenerateMissingCredentialFailsBeforeCall(t *testing.T) {
	client := &fakeClient{reply: "好的"}
	gen := newTestGenerator(client, newFakeStore())

	history := []Message{{Role: RoleUser, Content: "你好"}}
	_, used, err := gen.Generate(context.Background(), "s1", history, "deepseek", "", nil)
	require.Error(t, err)
	assert.Equal(t, "deepseek/deepseek-chat", used)

	var lerr *llm.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, llm.KindCredentialMissing, lerr.Kind)
	assert.Zero(t, client.calls)
}

func TestGeneratePassesStyleSettings(t *testing.T) {
	client := &fakeClient{reply: "好的"}
	gen := newTestGenerator(client, newFakeStore())

	history := []Message{{Role: RoleUser, Content: "你好"}}
	_, _, err := gen.Generate(context.Background(), "s1", history, "", "", nil)
	require.NoError(t, err)

	req := client.lastRequest()
	assert.Equal(t, float32(0.7), req.Temperature)
	assert.Equal(t, 1500, req.MaxTokens)
	assert.Equal(t, "http://localhost:11434/api/chat", req.BaseURL)
}
