package dialogue

import "regexp"

// Ordered intent patterns; the first hit wins.
var userTypePatterns = []struct {
	utype   UserType
	matcher *phraseMatcher
}{
	{UserTypeExploratory, newPhraseMatcher([]string{
		"我想了解", "是什么", "为什么", "心理学", "知识", "概念", "区别是",
	})},
	{UserTypeSeekingSolutions, newPhraseMatcher([]string{
		"怎么办", "如何解决", "怎样才能", "给我建议", "需要方法", "有办法吗",
	})},
	{UserTypeTesting, newPhraseMatcher([]string{
		"你觉得我", "你认为", "测试一下", "你是谁", "你能做什么", "你的能力",
	})},
}

// Cognitive-distortion keyword families. Multi-label: every family with at
// least one hit is reported.
var distortionFamilies = []struct {
	name     string
	matcher  *phraseMatcher
	patterns []*regexp.Regexp
}{
	{name: "非黑即白", matcher: newPhraseMatcher([]string{
		"必须", "应该", "一定", "要么", "不是...就是", "永远", "从不",
	})},
	{name: "过度概括", matcher: newPhraseMatcher([]string{
		"总是", "老是", "每次都", "所有人都", "谁都", "从来没",
	})},
	{name: "灾难化", matcher: newPhraseMatcher([]string{
		"完蛋了", "没救了", "太可怕了", "世界末日", "受不了",
	})},
	{name: "读心术", matcher: newPhraseMatcher([]string{
		"他肯定觉得", "我知道他想", "他们一定认为",
	})},
	{name: "标签化", matcher: newPhraseMatcher([]string{
		"他是个坏人", "废物", "蠢货",
	}), patterns: []*regexp.Regexp{
		regexp.MustCompile(`我就是个(.*?)者`),
	}},
	{name: "忽略积极面", matcher: newPhraseMatcher([]string{
		"只是运气", "这不算什么", "侥幸",
	})},
	{name: "情绪推理", patterns: []*regexp.Regexp{
		regexp.MustCompile(`我感觉.*所以`),
	}},
}

// IntentResult is the intent classifier's output; the stage always succeeds.
type IntentResult struct {
	UserType    UserType
	Distortions []string
}

// AnalyzeIntent classifies the dialogue intent of the normalized text and
// independently scans for cognitive distortions. When no intent pattern
// matches, the fallback is venting regardless of the emotion signal.
func AnalyzeIntent(text string, _ EmotionType) IntentResult {
	res := IntentResult{UserType: UserTypeVenting}
	for _, p := range userTypePatterns {
		if _, ok := p.matcher.Match(text); ok {
			res.UserType = p.utype
			break
		}
	}

	for _, fam := range distortionFamilies {
		hit := false
		if fam.matcher != nil {
			_, hit = fam.matcher.Match(text)
		}
		if !hit {
			for _, re := range fam.patterns {
				if re.MatchString(text) {
					hit = true
					break
				}
			}
		}
		if hit {
			res.Distortions = append(res.Distortions, fam.name)
		}
	}
	return res
}
