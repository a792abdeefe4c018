package dialogue

import (
	"regexp"
	"strings"
	"sync"

	"github.com/go-ego/gse"
)

// PreprocessResult carries the cleaned text plus its segmentation.
type PreprocessResult struct {
	Cleaned  string
	Tokens   []string
	Keywords []string
}

// nonWord strips everything outside letters, digits and whitespace
// (Han ideographs are letters under \p{L}).
var nonWord = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

var stopwords = map[string]struct{}{
	"的": {}, "了": {}, "和": {}, "是": {}, "我": {},
}

var (
	segOnce sync.Once
	seg     gse.Segmenter
	segErr  error
)

func segmenter() (*gse.Segmenter, error) {
	segOnce.Do(func() {
		segErr = seg.LoadDict()
	})
	if segErr != nil {
		return nil, segErr
	}
	return &seg, nil
}

// Preprocess cleans and tokenizes raw input. A tokenizer failure is
// non-fatal for the pipeline: the cleaned text is still returned and the
// caller falls back to treating it as a single token.
func Preprocess(text string) (PreprocessResult, error) {
	cleaned := strings.TrimSpace(strings.ToLower(nonWord.ReplaceAllString(text, "")))
	res := PreprocessResult{Cleaned: cleaned}
	if cleaned == "" {
		return res, nil
	}

	s, err := segmenter()
	if err != nil {
		res.Tokens = []string{cleaned}
		res.Keywords = []string{cleaned}
		return res, err
	}

	res.Tokens = s.Cut(cleaned, true)
	res.Keywords = filterKeywords(res.Tokens)
	return res, nil
}

func filterKeywords(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, stop := stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}
