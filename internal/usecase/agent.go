package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"prospect-sim/internal/domain"
	"prospect-sim/internal/objection"
	"prospect-sim/internal/taxonomy"
)

const (
	defaultGenerationTimeout = 8 * time.Second
	defaultHistoryWindow     = 10
	defaultMaxMessageLen     = 600

	// deadlineMargin is kept back from a caller deadline so the fallback
	// reply and the write that follows still fit.
	deadlineMargin = 250 * time.Millisecond
)

// SignalScope selects which text buying signals are detected in.
type SignalScope string

const (
	// SignalScopeRep scans only the rep's new message.
	SignalScopeRep SignalScope = "rep"
	// SignalScopeExchange also scans the prospect's most recent turn.
	SignalScopeExchange SignalScope = "exchange"
)

// ParseSignalScope defaults to SignalScopeRep.
func ParseSignalScope(s string) SignalScope {
	if SignalScope(strings.ToLower(strings.TrimSpace(s))) == SignalScopeExchange {
		return SignalScopeExchange
	}
	return SignalScopeRep
}

// ReplySource tells whether a reply came from a provider or a template.
type ReplySource string

const (
	SourceGenerated ReplySource = "generated"
	SourceFallback  ReplySource = "fallback"
)

// Tone is how the prospect's reply lands for the rep.
type Tone string

const (
	TonePositive  Tone = "positive"
	ToneNeutral   Tone = "neutral"
	ToneSkeptical Tone = "skeptical"
	ToneNegative  Tone = "negative"
)

// NextAction is where the conversation is heading after the reply.
type NextAction string

const (
	NextActionContinue  NextAction = "continue"
	NextActionObjection NextAction = "objection"
	NextActionInterest  NextAction = "interest"
	NextActionClose     NextAction = "close"
)

// ClassifyReply derives the reply tone and next action from the turn's
// objection state and buying signals. It never looks at reply text, so
// generated and templated replies classify the same way.
func ClassifyReply(state objection.State, signals []taxonomy.SignalTag) (Tone, NextAction) {
	if state.ObjectionRaised {
		if objection.Bucket(state.PushbackLevel) == objection.BucketHigh {
			return ToneNegative, NextActionObjection
		}
		return ToneSkeptical, NextActionObjection
	}
	for _, s := range signals {
		if s == taxonomy.SignalNextStepRequest {
			return TonePositive, NextActionClose
		}
	}
	if len(signals) > 0 {
		return TonePositive, NextActionInterest
	}
	return ToneNeutral, NextActionContinue
}

// Reply is the outcome of the generation step.
type Reply struct {
	Text   string
	Source ReplySource
}

// ConversationContext is everything the agent needs about the session. The
// agent never mutates it.
type ConversationContext struct {
	Persona             *domain.ProspectPersona
	ConversationHistory []domain.ConversationMessage
	Difficulty          domain.Difficulty
	Personality         domain.Personality
	SalesMethodology    domain.SalesMethodology
}

type ConversationResponse struct {
	Message        string               `json:"message"`
	ObjectionState objection.State      `json:"objectionState"`
	BuyingSignals  []taxonomy.SignalTag `json:"buyingSignals"`
	Concerns       []string             `json:"concerns"`
	NextQuestion   string               `json:"nextQuestion,omitempty"`
	Tone           Tone                 `json:"tone"`
	NextAction     NextAction           `json:"nextAction"`
	Source         ReplySource          `json:"source"`
}

// Agent plays the prospect for one turn at a time. It holds no session state
// and is safe for concurrent use.
type Agent struct {
	generator     TextGenerator
	logger        *slog.Logger
	timeout       time.Duration
	historyWindow int
	maxMessageLen int
	signalScope   SignalScope
}

type AgentOption func(*Agent)

func WithGenerationTimeout(d time.Duration) AgentOption {
	return func(a *Agent) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithHistoryWindow(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.historyWindow = n
		}
	}
}

func WithMaxMessageLength(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxMessageLen = n
		}
	}
}

func WithSignalScope(s SignalScope) AgentOption {
	return func(a *Agent) {
		a.signalScope = ParseSignalScope(string(s))
	}
}

func WithLogger(l *slog.Logger) AgentOption {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAgent(generator TextGenerator, opts ...AgentOption) (*Agent, error) {
	if generator == nil {
		return nil, errors.New("usecase: text generator must not be nil")
	}
	a := &Agent{
		generator:     generator,
		logger:        slog.Default(),
		timeout:       defaultGenerationTimeout,
		historyWindow: defaultHistoryWindow,
		maxMessageLen: defaultMaxMessageLen,
		signalScope:   SignalScopeRep,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// GenerateResponse validates input, recomputes objection state from the full
// history, detects buying signals and produces the prospect's reply. Provider
// failures and caller deadlines degrade to a templated reply; only invalid
// input and caller cancellation return errors.
func (a *Agent) GenerateResponse(ctx context.Context, repMessage string, cc ConversationContext) (ConversationResponse, error) {
	msg := strings.TrimSpace(repMessage)
	if msg == "" {
		return ConversationResponse{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(msg) > a.maxMessageLen {
		return ConversationResponse{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	if cc.Persona == nil {
		return ConversationResponse{}, newError(ErrorInvalidInput, "missing_persona", nil)
	}

	difficulty := cc.Difficulty.Normalize()
	personality := cc.Personality.Normalize()

	state := objection.Compute(cc.ConversationHistory, msg, difficulty)
	signals := a.detectSignals(cc.ConversationHistory, msg)
	directive := NewStanceDirective(cc.Persona, difficulty, personality, state)
	directive.TriggerKeyword = taxonomy.Classify(msg).Keyword

	reply, err := a.reply(ctx, directive, cc.ConversationHistory, msg)
	if err != nil {
		return ConversationResponse{}, err
	}
	tone, next := ClassifyReply(state, signals)

	return ConversationResponse{
		Message:        reply.Text,
		ObjectionState: state,
		BuyingSignals:  signals,
		Concerns:       append([]string{}, cc.Persona.Concerns...),
		NextQuestion:   nextQuestion(cc.SalesMethodology),
		Tone:           tone,
		NextAction:     next,
		Source:         reply.Source,
	}, nil
}

func (a *Agent) detectSignals(history []domain.ConversationMessage, msg string) []taxonomy.SignalTag {
	signals := taxonomy.DetectBuyingSignals(msg)
	if a.signalScope != SignalScopeExchange {
		return signals
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.SpeakerProspect {
			return taxonomy.MergeSignals(signals, taxonomy.DetectBuyingSignals(history[i].Message))
		}
	}
	return signals
}

type generation struct {
	text string
	err  error
}

// reply runs the provider under a bounded timeout, capped by the caller's
// deadline less deadlineMargin. The provider call runs in its own goroutine so
// a provider that ignores cancellation cannot hold the turn past the deadline.
// Only caller cancellation is returned as an error; a caller deadline falls
// back like any other timeout.
func (a *Agent) reply(ctx context.Context, d StanceDirective, history []domain.ConversationMessage, msg string) (Reply, error) {
	var res generation
	if budget := a.budget(ctx); budget > 0 {
		res = a.generate(ctx, budget, buildPromptMessages(d, history, a.historyWindow, msg))
	} else {
		res.err = context.DeadlineExceeded
	}

	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		return Reply{}, err
	}

	var reason string
	switch {
	case errors.Is(res.err, context.DeadlineExceeded):
		reason = "timeout"
	case res.err != nil:
		reason = "provider_error"
	case strings.TrimSpace(res.text) == "":
		reason = "empty_output"
	default:
		return Reply{Text: strings.TrimSpace(res.text), Source: SourceGenerated}, nil
	}

	attrs := []any{
		"reason", reason,
		"objection_type", string(d.ObjectionType),
		"pushback", d.PushbackLevel,
	}
	if d.TriggerKeyword != "" {
		attrs = append(attrs, "keyword", d.TriggerKeyword)
	}
	if res.err != nil {
		attrs = append(attrs, "error", res.err)
	}
	a.logger.Warn("using fallback reply", attrs...)
	return Reply{Text: fallbackReply(d, repTurns(history)), Source: SourceFallback}, nil
}

// budget is the generation timeout, shortened to fit the caller's deadline.
func (a *Agent) budget(ctx context.Context) time.Duration {
	budget := a.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline) - deadlineMargin; left < budget {
			budget = left
		}
	}
	return budget
}

func (a *Agent) generate(ctx context.Context, budget time.Duration, messages []domain.ChatMessage) generation {
	genCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan generation, 1)
	go func() {
		text, err := a.generator.Generate(genCtx, messages)
		done <- generation{text: text, err: err}
	}()

	select {
	case res := <-done:
		return res
	case <-genCtx.Done():
		return generation{err: genCtx.Err()}
	}
}

func repTurns(history []domain.ConversationMessage) int {
	n := 0
	for _, m := range history {
		if m.Role == domain.SpeakerRep {
			n++
		}
	}
	return n
}
