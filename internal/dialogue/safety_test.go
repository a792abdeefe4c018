package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHotline = "- 希望24热线：400-161-9995"

func TestSafetyGateDetectsCrisisPhrases(t *testing.T) {
	gate := NewSafetyGate(testHotline)

	for _, input := range []string{
		"我真的不想活了",
		"最近总觉得活不下去",
		"我想自杀",
		"救命，我快撑不住了",
		"活着没意思",
	} {
		res := gate.Check(input)
		require.True(t, res.Crisis, "expected crisis for %q", input)
		assert.NotEmpty(t, res.Keyword)
		assert.Contains(t, res.Response, testHotline)
		assert.Contains(t, res.Response, "安全警示")
	}
}

func TestSafetyGatePassesOrdinaryInput(t *testing.T) {
	gate := NewSafetyGate(testHotline)

	for _, input := range []string{
		"今天天气不错",
		"我最近工作压力有点大",
		"",
	} {
		res := gate.Check(input)
		assert.False(t, res.Crisis, "unexpected crisis for %q", input)
		assert.Empty(t, res.Response)
	}
}

func TestSafetyGateResponseIsFixed(t *testing.T) {
	gate := NewSafetyGate(testHotline)

	first := gate.Check("我想自杀")
	second := gate.Check("不想活，一切都绝望了")
	require.True(t, first.Crisis)
	require.True(t, second.Crisis)
	assert.Equal(t, first.Response, second.Response)
}
