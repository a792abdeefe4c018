package dialogue

import (
	"regexp"
	"strings"
)

// phraseMatcher matches a fixed phrase list against lowercased text.
// Latin-only phrases get word-boundary matching; CJK phrases use plain
// containment since \b is meaningless between Han characters.
type phraseMatcher struct {
	entries []phraseEntry
}

type phraseEntry struct {
	phrase string
	re     *regexp.Regexp // nil for containment matching
}

func newPhraseMatcher(phrases []string) *phraseMatcher {
	m := &phraseMatcher{entries: make([]phraseEntry, 0, len(phrases))}
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		e := phraseEntry{phrase: p}
		if isASCIIWord(p) {
			e.re = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p) + `\b`)
		}
		m.entries = append(m.entries, e)
	}
	return m
}

// Match returns the first matching phrase.
func (m *phraseMatcher) Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, e := range m.entries {
		if e.matches(lower) {
			return e.phrase, true
		}
	}
	return "", false
}

// FindAll returns every phrase present in the text, in lexicon order.
func (m *phraseMatcher) FindAll(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, e := range m.entries {
		if e.matches(lower) {
			out = append(out, e.phrase)
		}
	}
	return out
}

// Count returns the number of distinct phrases present.
func (m *phraseMatcher) Count(text string) int {
	return len(m.FindAll(text))
}

func (e phraseEntry) matches(lower string) bool {
	if e.re != nil {
		return e.re.MatchString(lower)
	}
	return strings.Contains(lower, e.phrase)
}

func isASCIIWord(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '\'', r == '-':
		default:
			return false
		}
	}
	return len(s) > 0
}
