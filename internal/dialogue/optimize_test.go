package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptimizeExtractsReasoningBlock(t *testing.T) {
	raw := "<think>用户情绪低落，先共情。</think>听起来你最近很辛苦。"
	res := Optimize(raw, false)
	assert.Equal(t, "听起来你最近很辛苦。", res.Response)
	assert.Equal(t, "用户情绪低落，先共情。", res.Reasoning)
}

func TestOptimizeStripsResponseMarkers(t *testing.T) {
	raw := "<response>你可以先试着深呼吸。</response>"
	res := Optimize(raw, false)
	assert.Equal(t, "你可以先试着深呼吸。", res.Response)
	assert.Empty(t, res.Reasoning)
}

func TestOptimizeHTMLLineBreaks(t *testing.T) {
	res := Optimize("第一行\n第二行", true)
	assert.Equal(t, "第一行<br>第二行", res.Response)

	plain := Optimize("第一行\n第二行", false)
	assert.Equal(t, "第一行\n第二行", plain.Response)
}

func TestOptimizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"<think>推理内容</think><response>正文\n第二段</response>",
		"普通回复，无标记。",
		"",
		"只有推理<think>abc</think>",
	}
	for _, in := range inputs {
		first := Optimize(in, true)
		second := Optimize(first.Response, true)
		assert.Equal(t, first.Response, second.Response, "input %q", in)
		assert.Empty(t, second.Reasoning, "input %q", in)
	}
}

func TestOptimizeEmptyFallsBack(t *testing.T) {
	res := Optimize("   ", true)
	assert.Equal(t, fallbackReply, res.Response)

	// Reasoning alone suppresses the fallback.
	res = Optimize("<think>只有想法</think>", false)
	assert.Empty(t, res.Response)
	assert.Equal(t, "只有想法", res.Reasoning)
}

func TestOptimizeExtractsAtMostOneBlock(t *testing.T) {
	raw := "<think>一</think>正文<think>二</think>尾巴"
	res := Optimize(raw, false)
	assert.Equal(t, "一", res.Reasoning)
	assert.Contains(t, res.Response, "正文")
	assert.Contains(t, res.Response, "尾巴")
}
