package dialogue

import (
	"math"
	"strings"
)

// Category keyword tables. Crisis-echo keywords overlap the safety gate's
// list on purpose: they only mark the emotional state, they never re-trigger
// the gate.
var emotionLexicon = []struct {
	emotion EmotionType
	matcher *phraseMatcher
}{
	{EmotionPositive, newPhraseMatcher([]string{
		"开心", "高兴", "满意", "喜欢", "棒", "不错", "有希望", "放松", "平静", "自豪", "感恩", "安心",
	})},
	{EmotionNegative, newPhraseMatcher([]string{
		// depression
		"抑郁", "低落", "难过", "悲伤", "沮丧", "没意思", "无助", "空虚", "无价值", "自责", "疲惫", "兴趣丧失",
		// anxiety
		"焦虑", "担心", "害怕", "紧张", "恐惧", "恐慌", "不安", "心慌", "坐立不安", "烦躁", "压力大", "强迫",
		// anger
		"生气", "愤怒", "火大", "气死了", "不满", "怨恨", "敌意", "挫败",
		// other
		"讨厌", "烦", "痛苦", "后悔", "内疚", "羞耻", "丢脸", "尴尬", "孤独", "失望",
	})},
	{EmotionAmbivalent, newPhraseMatcher([]string{
		"又爱又恨", "纠结", "矛盾", "说不清", "喜忧参半", "复杂",
	})},
}

var crisisEchoMatcher = newPhraseMatcher([]string{
	"绝望", "想死", "活不下去", "崩溃", "无法承受",
})

// EmotionResult is the classifier's output; the stage always succeeds.
type EmotionResult struct {
	Emotion   EmotionType
	Intensity float64
	Keywords  []string
}

// AnalyzeEmotion scores the normalized text against the category tables.
// Crisis-echo keywords win immediately with intensity 1.0. Otherwise the
// category with the most matches wins at 0.6 + 0.1*matches (capped at 1.0);
// a simultaneous positive and negative hit overrides to ambivalent at
// max(0.7, computed). No match at all yields unknown at 0.5.
func AnalyzeEmotion(text string) EmotionResult {
	if hits := crisisEchoMatcher.FindAll(text); len(hits) > 0 {
		return EmotionResult{Emotion: EmotionCrisis, Intensity: 1.0, Keywords: hits}
	}

	primary := EmotionUnknown
	intensity := 0.5
	var keywords []string
	counts := map[EmotionType]int{}

	for _, cat := range emotionLexicon {
		hits := cat.matcher.FindAll(text)
		if len(hits) == 0 {
			continue
		}
		counts[cat.emotion] = len(hits)
		keywords = append(keywords, hits...)
		if score := math.Min(1.0, 0.6+0.1*float64(len(hits))); score > intensity {
			intensity = score
			primary = cat.emotion
		}
	}

	if counts[EmotionPositive] > 0 && counts[EmotionNegative] > 0 {
		primary = EmotionAmbivalent
		intensity = math.Max(0.7, intensity)
	}

	// Punctuation heuristics on the raw-ish text.
	if strings.ContainsAny(text, "!！") {
		intensity = math.Min(1.0, intensity+0.1)
	}
	if strings.Contains(text, "...") || strings.Contains(text, "。。。") || strings.Contains(text, "…") {
		intensity = math.Max(0.3, intensity-0.1)
	}

	return EmotionResult{
		Emotion:   primary,
		Intensity: round2(intensity),
		Keywords:  keywords,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
