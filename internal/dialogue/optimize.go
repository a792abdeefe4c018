package dialogue

import (
	"regexp"
	"strings"
)

// fallbackReply is substituted when both the visible text and the reasoning
// side channel come out empty.
const fallbackReply = "抱歉，未能生成有效回复。"

var (
	reasoningRe     = regexp.MustCompile(`(?s)<think>(.*?)</think>`)
	responseStartRe = regexp.MustCompile(`(?i)^\s*<response>`)
	responseEndRe   = regexp.MustCompile(`(?i)</response>\s*$`)
)

// OptimizeResult is the formatted reply plus the extracted reasoning block.
type OptimizeResult struct {
	Response  string
	Reasoning string
}

// Optimize extracts at most one delimited reasoning block, strips the
// response start/end markers and normalizes line breaks. When htmlBreaks is
// set, internal newlines become literal <br> for HTML rendering. The stage
// never fails, and running it twice is a no-op.
func Optimize(raw string, htmlBreaks bool) OptimizeResult {
	text := strings.TrimSpace(raw)

	var reasoning string
	if loc := reasoningRe.FindStringSubmatchIndex(text); loc != nil {
		reasoning = strings.TrimSpace(text[loc[2]:loc[3]])
		text = strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
	}

	text = responseStartRe.ReplaceAllString(text, "")
	text = responseEndRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if htmlBreaks {
		text = strings.ReplaceAll(text, "\n", "<br>")
	}

	if text == "" && reasoning == "" {
		text = fallbackReply
	}
	return OptimizeResult{Response: text, Reasoning: reasoning}
}
