package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"soulchat-backend/internal/llm"
	"soulchat-backend/internal/logger"
)

// Stage names the orchestrator's states. Crisis is terminal and reachable
// only from Start; Failed is terminal and reachable from HistoryLoaded or
// CompletionRequested.
type Stage string

const (
	StageStart               Stage = "start"
	StageSafetyChecked       Stage = "safety_checked"
	StageNormalized          Stage = "normalized"
	StageEmotionScored       Stage = "emotion_scored"
	StageIntentScored        Stage = "intent_scored"
	StageHistoryLoaded       Stage = "history_loaded"
	StageCompletionRequested Stage = "completion_requested"
	StageOptimized           Stage = "optimized"
	StagePersisted           Stage = "persisted"
	StageDone                Stage = "done"
	StageCrisis              Stage = "crisis"
	StageFailed              Stage = "failed"
)

// genericFallback is the safe reply for hard failures past the safety gate.
const genericFallback = "抱歉，处理时遇到问题，请稍后再试。"

// ErrValidation reports empty/missing turn input; nothing is mutated.
var ErrValidation = errors.New("invalid turn input")

// TurnInput is one submitted user turn.
type TurnInput struct {
	SessionID string
	Text      string
	Provider  string
	Model     string
	// TempKeys are per-request ephemeral credentials keyed by provider name.
	TempKeys map[string]string
}

// TurnResult is the orchestrator's output for one turn. Diagnostics are
// per-stage observability notes, never used for control flow.
type TurnResult struct {
	Success     bool              `json:"success"`
	Response    string            `json:"response"`
	State       *SessionState     `json:"state"`
	Diagnostics map[string]string `json:"diagnostics"`
	Stage       Stage             `json:"stage"`
	ErrorKind   string            `json:"error_kind,omitempty"`
}

// Pipeline composes the stages into one turn and owns the short-circuit and
// soft-failure policy.
type Pipeline struct {
	store       Store
	gate        *SafetyGate
	gen         *Generator
	maxMessages int
	htmlBreaks  bool
	log         *logger.Logger
}

func NewPipeline(store Store, gate *SafetyGate, gen *Generator,
	maxHistoryTurns int, htmlBreaks bool, log *logger.Logger) *Pipeline {
	// Load the segmentation dictionary now rather than letting the first
	// user turn absorb the multi-second cost.
	if _, err := segmenter(); err != nil {
		log.Warn("segmenter unavailable, normalization degraded", "error", err)
	}
	return &Pipeline{
		store:       store,
		gate:        gate,
		gen:         gen,
		maxMessages: maxHistoryTurns * 2,
		htmlBreaks:  htmlBreaks,
		log:         log,
	}
}

// ProcessTurn runs the whole state machine for one user turn. The returned
// error is non-nil only for validation failures that prevent the turn from
// beginning; every other failure mode yields a Success=false result.
func (p *Pipeline) ProcessTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrValidation)
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("%w: empty user text", ErrValidation)
	}

	log := p.log.With("session_id", in.SessionID)
	diags := map[string]string{}

	state := p.loadState(ctx, in.SessionID, log)

	// Start → Crisis | SafetyChecked
	if safe := p.gate.Check(in.Text); safe.Crisis {
		log.Warn("crisis keyword detected", "keyword", safe.Keyword)
		diags["safety"] = "crisis keyword detected: " + safe.Keyword
		state.IsCrisis = true
		state.UserType = UserTypeCrisis
		p.saveState(ctx, in.SessionID, state, log)
		return &TurnResult{
			Success:     false,
			Response:    safe.Response,
			State:       state.Clone(),
			Diagnostics: diags,
			Stage:       StageCrisis,
			ErrorKind:   "crisis_detected",
		}, nil
	}
	diags["safety"] = "passed"
	if state.IsCrisis {
		state.IsCrisis = false
		log.Info("leaving crisis state")
	}

	// SafetyChecked → Normalized (tokenizer failure is non-fatal)
	pre, perr := Preprocess(in.Text)
	cleaned := pre.Cleaned
	if cleaned == "" {
		cleaned = in.Text
	}
	if perr != nil {
		log.Warn("preprocess degraded", "error", perr)
		diags["preprocess"] = "tokenizer unavailable, raw text used"
	} else {
		diags["preprocess"] = fmt.Sprintf("%d tokens", len(pre.Tokens))
	}

	// Normalized → EmotionScored. The raw text goes in so the punctuation
	// heuristics can see marks the normalizer strips.
	emo := AnalyzeEmotion(in.Text)
	diags["emotion"] = fmt.Sprintf("%s (intensity %.2f)", emo.Emotion, emo.Intensity)
	state.UserEmotion = emo.Emotion
	state.EmotionIntensity = emo.Intensity
	state.AddKeywords(emo.Keywords)

	// EmotionScored → IntentScored
	intent := AnalyzeIntent(cleaned, state.UserEmotion)
	diags["intent"] = fmt.Sprintf("%s, distortions: %s", intent.UserType, joinOrNone(intent.Distortions))
	state.UserType = intent.UserType
	state.CognitiveDistortions = intent.Distortions

	// IntentScored → HistoryLoaded | Failed
	history, err := p.store.History(ctx, in.SessionID)
	if err != nil {
		log.Error("history load failed", "error", err)
		diags["context"] = "history unavailable"
		return p.failedResult(state, diags, "storage_unavailable"), nil
	}
	userMsg := Message{Role: RoleUser, Content: in.Text}
	if err := p.appendTrimmed(ctx, in.SessionID, userMsg); err != nil {
		log.Error("user message append failed", "error", err)
		diags["context"] = "history append failed"
		return p.failedResult(state, diags, "storage_unavailable"), nil
	}
	history = append(history, userMsg)
	diags["context"] = fmt.Sprintf("%d history messages", len(history))

	// HistoryLoaded → CompletionRequested | Failed
	raw, modelUsed, err := p.gen.Generate(ctx, in.SessionID, history, in.Provider, in.Model, in.TempKeys)
	diags["model"] = modelUsed
	if err != nil {
		kind := classifyGenerateError(err)
		log.Error("completion failed", "kind", kind, "error", err)
		diags["generate"] = string(kind)
		// Emotion/intent were computed before the network call; keep them.
		p.saveState(ctx, in.SessionID, state, log)
		return p.failedResult(state, diags, kind), nil
	}
	diags["generate"] = "ok"

	// CompletionRequested → Optimized
	opt := Optimize(raw, p.htmlBreaks)
	diags["optimize"] = "done"
	if opt.Reasoning != "" {
		diags["reasoning"] = opt.Reasoning
	}

	// Optimized → Persisted → Done
	state.TurnCount++
	p.saveState(ctx, in.SessionID, state, log)

	plain := strings.TrimSpace(strings.ReplaceAll(opt.Response, "<br>", "\n"))
	if plain != "" {
		if err := p.appendTrimmed(ctx, in.SessionID, Message{Role: RoleAssistant, Content: plain}); err != nil {
			log.Error("assistant message append failed", "error", err)
			diags["persist"] = "assistant message not saved"
		}
	}

	diags["report"] = fmt.Sprintf("turn %d, type %s, emotion %s",
		state.TurnCount, state.UserType, state.UserEmotion)
	return &TurnResult{
		Success:     true,
		Response:    opt.Response,
		State:       state.Clone(),
		Diagnostics: diags,
		Stage:       StageDone,
	}, nil
}

func (p *Pipeline) failedResult(state *SessionState, diags map[string]string, kind string) *TurnResult {
	return &TurnResult{
		Success:     false,
		Response:    genericFallback,
		State:       state.Clone(),
		Diagnostics: diags,
		Stage:       StageFailed,
		ErrorKind:   kind,
	}
}

// loadState returns the stored state or fresh defaults. A load failure is
// absorbed: the turn proceeds with whatever snapshot could be read.
func (p *Pipeline) loadState(ctx context.Context, sessionID string, log *logger.Logger) *SessionState {
	state, err := p.store.GetState(ctx, sessionID)
	if err != nil {
		log.Warn("state load failed, using defaults", "error", err)
		return NewSessionState()
	}
	if state == nil {
		return NewSessionState()
	}
	return state
}

func (p *Pipeline) saveState(ctx context.Context, sessionID string, state *SessionState, log *logger.Logger) {
	if err := p.store.PutState(ctx, sessionID, state); err != nil {
		log.Error("state save failed", "error", err)
	}
}

// appendTrimmed appends one message and re-applies the hard history cap.
func (p *Pipeline) appendTrimmed(ctx context.Context, sessionID string, msg Message) error {
	if err := p.store.AppendMessage(ctx, sessionID, msg); err != nil {
		return err
	}
	return p.store.TrimHistory(ctx, sessionID, p.maxMessages)
}

func classifyGenerateError(err error) string {
	var lerr *llm.Error
	if errors.As(err, &lerr) {
		if lerr.Kind == llm.KindHTTPError {
			return fmt.Sprintf("%s_%d", lerr.Kind, lerr.Status)
		}
		return string(lerr.Kind)
	}
	if errors.Is(err, ErrCannotBuildRequest) {
		return "request_build_error"
	}
	return "internal_error"
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
