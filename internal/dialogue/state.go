package dialogue

import "encoding/json"

// UserType identifies the user's dialogue intent or situation for a turn.
type UserType string

const (
	UserTypeExploratory      UserType = "exploratory"
	UserTypeVenting          UserType = "venting"
	UserTypeSeekingSolutions UserType = "seeking_solutions"
	UserTypeTesting          UserType = "testing"
	UserTypeCrisis           UserType = "crisis"
	UserTypeUnknown          UserType = "unknown"
)

// ParseUserType maps a persisted string to a UserType. Anything unrecognized
// collapses to unknown instead of failing the load.
func ParseUserType(s string) UserType {
	switch UserType(s) {
	case UserTypeExploratory, UserTypeVenting, UserTypeSeekingSolutions,
		UserTypeTesting, UserTypeCrisis, UserTypeUnknown:
		return UserType(s)
	}
	return UserTypeUnknown
}

func (t *UserType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*t = UserTypeUnknown
		return nil
	}
	*t = ParseUserType(s)
	return nil
}

// EmotionType identifies the user's primary emotional tone.
type EmotionType string

const (
	EmotionPositive   EmotionType = "positive"
	EmotionNegative   EmotionType = "negative"
	EmotionNeutral    EmotionType = "neutral"
	EmotionAmbivalent EmotionType = "ambivalent"
	EmotionCrisis     EmotionType = "crisis"
	EmotionUnknown    EmotionType = "unknown"
)

func ParseEmotionType(s string) EmotionType {
	switch EmotionType(s) {
	case EmotionPositive, EmotionNegative, EmotionNeutral,
		EmotionAmbivalent, EmotionCrisis, EmotionUnknown:
		return EmotionType(s)
	}
	return EmotionUnknown
}

func (t *EmotionType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*t = EmotionUnknown
		return nil
	}
	*t = ParseEmotionType(s)
	return nil
}

// maxDetectedKeywords caps the accumulated keyword set; the oldest entries
// are dropped once the cap is reached.
const maxDetectedKeywords = 256

// SessionState is the per-session record merged and re-persisted every turn.
type SessionState struct {
	UserType             UserType    `json:"user_type"`
	UserEmotion          EmotionType `json:"user_emotion"`
	EmotionIntensity     float64     `json:"emotion_intensity"`
	DetectedKeywords     []string    `json:"detected_keywords"`
	CognitiveDistortions []string    `json:"cognitive_distortions"`
	IsCrisis             bool        `json:"is_crisis"`
	TurnCount            int         `json:"turn_count"`
	DialogueGoals        []string    `json:"dialogue_goals"`
}

// NewSessionState returns the defaults used on first reference to a session.
func NewSessionState() *SessionState {
	return &SessionState{
		UserType:         UserTypeUnknown,
		UserEmotion:      EmotionUnknown,
		EmotionIntensity: 0.5,
	}
}

// AddKeywords accumulates new keyword hits, deduplicated, preserving
// insertion order, bounded by maxDetectedKeywords (oldest dropped first).
func (s *SessionState) AddKeywords(keywords []string) {
	if len(keywords) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(s.DetectedKeywords)+len(keywords))
	for _, k := range s.DetectedKeywords {
		seen[k] = struct{}{}
	}
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		s.DetectedKeywords = append(s.DetectedKeywords, k)
	}
	if n := len(s.DetectedKeywords); n > maxDetectedKeywords {
		s.DetectedKeywords = append([]string(nil), s.DetectedKeywords[n-maxDetectedKeywords:]...)
	}
}

// Clone returns a deep copy safe to hand out in results.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return NewSessionState()
	}
	out := *s
	out.DetectedKeywords = append([]string(nil), s.DetectedKeywords...)
	out.CognitiveDistortions = append([]string(nil), s.CognitiveDistortions...)
	out.DialogueGoals = append([]string(nil), s.DialogueGoals...)
	return &out
}
