package dialogue

import (
	"fmt"
	"strings"
)

// crisisPhrases is the fixed set of phrases that preempts the whole turn.
var crisisPhrases = []string{
	"自杀", "想死", "活不下去", "活不了", "不想活", "没意思", "解脱", "结束生命",
	"自残", "割腕", "伤害自己", "了断", "自我了断", "报复社会", "伤害别人",
	"杀了他", "弄死他", "同归于尽", "绝望", "没希望了", "崩溃", "无法承受",
	"救命", "紧急", "帮帮我",
}

const crisisResponseTemplate = `⚠️ **安全警示**：我注意到您提到了可能与伤害自己或他人相关的想法或内容。我现在非常担心您的安全。

作为一个AI助手，我无法提供实时的紧急救助，但请知道您不是一个人在面对这些困难。**您的安全是最重要的。**

**如果您正处于危机中或需要立即获得支持，请务必联系专业的危机干预资源。** 以下是一些您可以联系的途径：
%s

**请不要独自承受，立刻寻求帮助。** 如果您身边有信任的家人、朋友或专业人士（如医生、老师），也请告诉他们您现在的情况。他们会支持您的。`

// SafetyResult reports a crisis gate scan. It never carries an error:
// the worst case is a pass-through with Crisis=false.
type SafetyResult struct {
	Crisis   bool
	Response string
	Keyword  string
}

// SafetyGate scans raw user input for crisis signals before any other stage.
type SafetyGate struct {
	matcher  *phraseMatcher
	response string
}

// NewSafetyGate builds a gate whose canned response interpolates the
// configured hotline contact information.
func NewSafetyGate(hotlineInfo string) *SafetyGate {
	return &SafetyGate{
		matcher:  newPhraseMatcher(crisisPhrases),
		response: strings.TrimSpace(fmt.Sprintf(crisisResponseTemplate, hotlineInfo)),
	}
}

// Check scans the raw input. On a match the returned response is fixed and
// non-negotiable; the matched phrase is reported for logging only.
func (g *SafetyGate) Check(text string) SafetyResult {
	if kw, ok := g.matcher.Match(text); ok {
		return SafetyResult{Crisis: true, Response: g.response, Keyword: kw}
	}
	return SafetyResult{}
}
