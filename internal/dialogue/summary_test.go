package dialogue

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const summaryTemplate = "请总结以下对话：\n{conversation_history}"

func TestSummarizeRendersHistoryIntoPrompt(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	require.NoError(t, store.AppendMessage(ctx, "s1", Message{Role: RoleUser, Content: "我最近睡不好"}))
	require.NoError(t, store.AppendMessage(ctx, "s1", Message{Role: RoleAssistant, Content: "可以说说具体情况吗？"}))

	client := &fakeClient{reply: "用户存在睡眠问题。"}
	gen := newTestGenerator(client, store)
	s := NewSummarizer(gen, store, "local", "qwen2:latest", summaryTemplate)

	got, err := s.Summarize(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, "用户存在睡眠问题。", got)

	msgs := client.lastRequest().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleUser, msgs[0].Role)
	prompt := msgs[0].Content
	assert.Contains(t, prompt, "用户: 我最近睡不好")
	assert.Contains(t, prompt, "AI助手: 可以说说具体情况吗？")
	assert.NotContains(t, prompt, "{conversation_history}")
}

func TestSummarizeEmptyHistory(t *testing.T) {
	store := newFakeStore()
	gen := newTestGenerator(&fakeClient{reply: "不会被调用"}, store)
	s := NewSummarizer(gen, store, "local", "qwen2:latest", summaryTemplate)

	_, err := s.Summarize(context.Background(), "s1", nil)
	require.ErrorIs(t, err, ErrEmptyHistory)
}

func TestSummarizeStoreFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.historyErr = ErrStoreUnavailable
	gen := newTestGenerator(&fakeClient{reply: "不会被调用"}, store)
	s := NewSummarizer(gen, store, "local", "qwen2:latest", summaryTemplate)

	_, err := s.Summarize(context.Background(), "s1", nil)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestFormatHistoryTruncatesLongSystemMessages(t *testing.T) {
	long := strings.Repeat("长", 600)
	out := formatHistory([]Message{
		{Role: RoleSystem, Content: long},
		{Role: RoleUser, Content: "你好"},
	})
	assert.Contains(t, out, "内容过长已截断")
	assert.Less(t, len(out), len(long))
}
