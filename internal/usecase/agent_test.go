package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"prospect-sim/internal/domain"
	"prospect-sim/internal/objection"
	"prospect-sim/internal/taxonomy"
)

type fakeGenerator struct {
	mu       sync.Mutex
	text     string
	err      error
	calls    int
	captured []domain.ChatMessage
}

func (f *fakeGenerator) Generate(_ context.Context, msgs []domain.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.captured = msgs
	return f.text, f.err
}

// blockingGenerator waits until its context ends.
type blockingGenerator struct {
	started chan struct{}
}

func (b *blockingGenerator) Generate(ctx context.Context, _ []domain.ChatMessage) (string, error) {
	if b.started != nil {
		close(b.started)
	}
	<-ctx.Done()
	return "", ctx.Err()
}

func testPersona() *domain.ProspectPersona {
	return &domain.ProspectPersona{
		ID:         "persona-1",
		Role:       domain.RoleCTO,
		Title:      "Chief Technology Officer",
		Company:    "Acme",
		Concerns:   []string{"Vendor lock-in", "Total cost of ownership"},
		Priorities: []string{"Engineering velocity"},
		Tone:       "guarded and questioning",
		Skepticism: "skeptical of vendor claims",
	}
}

func technicalPersona() *domain.ProspectPersona {
	p := testPersona()
	p.CommunicationStyle.UsesTechnicalTerms = true
	return p
}

func newTestAgent(t *testing.T, gen TextGenerator, opts ...AgentOption) *Agent {
	t.Helper()
	a, err := NewAgent(gen, opts...)
	require.NoError(t, err)
	return a
}

func rep(msg string) domain.ConversationMessage {
	return domain.ConversationMessage{Role: domain.SpeakerRep, Message: msg}
}

func prospect(msg string) domain.ConversationMessage {
	return domain.ConversationMessage{Role: domain.SpeakerProspect, Message: msg}
}

func requireCode(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, code, ucErr.Code)
	require.Equal(t, reason, ucErr.Reason)
}

func TestNewAgent_NilGenerator(t *testing.T) {
	_, err := NewAgent(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestGenerateResponse_Validation(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	a := newTestAgent(t, gen, WithMaxMessageLength(20))

	_, err := a.GenerateResponse(context.Background(), "   ", ConversationContext{Persona: testPersona()})
	requireCode(t, err, ErrorInvalidInput, "empty_message")

	_, err = a.GenerateResponse(context.Background(), strings.Repeat("a", 21), ConversationContext{Persona: testPersona()})
	requireCode(t, err, ErrorInvalidInput, "message_too_long")

	_, err = a.GenerateResponse(context.Background(), "hello", ConversationContext{})
	requireCode(t, err, ErrorInvalidInput, "missing_persona")

	require.Zero(t, gen.calls)
}

func TestGenerateResponse_PriceObjectionDetected(t *testing.T) {
	a := newTestAgent(t, &fakeGenerator{text: "That sounds steep."})
	resp, err := a.GenerateResponse(context.Background(), "Our pricing starts at $50 per seat.", ConversationContext{
		Persona:    testPersona(),
		Difficulty: domain.DifficultyMedium,
	})
	require.NoError(t, err)
	require.True(t, resp.ObjectionState.ObjectionRaised)
	require.Equal(t, taxonomy.CategoryPrice, resp.ObjectionState.ObjectionType)
	require.Equal(t, 1, resp.ObjectionState.TimesRaised)
	require.Equal(t, "That sounds steep.", resp.Message)
	require.Equal(t, SourceGenerated, resp.Source)
}

func TestGenerateResponse_BuyingSignalAfterPriceQuestion(t *testing.T) {
	a := newTestAgent(t, &fakeGenerator{text: "Hmm."})
	resp, err := a.GenerateResponse(context.Background(), "Our pricing is $50 per seat.", ConversationContext{
		Persona:             testPersona(),
		ConversationHistory: []domain.ConversationMessage{prospect("How much does it cost?")},
	})
	require.NoError(t, err)
	require.Contains(t, resp.BuyingSignals, taxonomy.SignalPriceInquiry)
}

func TestGenerateResponse_NoRollOverOnRepeatedPrice(t *testing.T) {
	a := newTestAgent(t, &fakeGenerator{err: errors.New("provider down")})
	cc := ConversationContext{
		Persona:     testPersona(),
		Difficulty:  domain.DifficultyExpert,
		Personality: domain.PersonalityHostile,
	}

	first, err := a.GenerateResponse(context.Background(), "Our pricing starts at $50 per seat.", cc)
	require.NoError(t, err)
	require.Equal(t, 1, first.ObjectionState.TimesRaised)

	cc.ConversationHistory = []domain.ConversationMessage{
		rep("Our pricing starts at $50 per seat."),
		prospect(first.Message),
	}
	second, err := a.GenerateResponse(context.Background(), "But think about the ROI you'll get.", cc)
	require.NoError(t, err)
	require.True(t, second.ObjectionState.ObjectionRaised)
	require.Equal(t, taxonomy.CategoryPrice, second.ObjectionState.ObjectionType)
	require.Greater(t, second.ObjectionState.TimesRaised, 0)
	require.Greater(t, second.ObjectionState.PushbackLevel, 0.5)
	require.GreaterOrEqual(t, second.ObjectionState.PushbackLevel, first.ObjectionState.PushbackLevel)
	require.True(t, strings.HasPrefix(second.Message, "Look, "), second.Message)
}

func TestGenerateResponse_GracefulNeutralInput(t *testing.T) {
	for name, gen := range map[string]*fakeGenerator{
		"generated": {text: "Okay, go on."},
		"fallback":  {err: errors.New("boom")},
	} {
		t.Run(name, func(t *testing.T) {
			a := newTestAgent(t, gen)
			resp, err := a.GenerateResponse(context.Background(), "Hello, I wanted to introduce you to our product.", ConversationContext{
				Persona: testPersona(),
			})
			require.NoError(t, err)
			require.False(t, resp.ObjectionState.ObjectionRaised)
			require.Zero(t, resp.ObjectionState.PushbackLevel)
			require.NotNil(t, resp.BuyingSignals)
			require.Empty(t, resp.BuyingSignals)
			require.NotEmpty(t, resp.Message)
		})
	}
}

func TestGenerateResponse_FallbackOnProviderFailure(t *testing.T) {
	cases := map[string]*fakeGenerator{
		"error": {err: errors.New("503 from upstream")},
		"empty": {text: "   "},
	}
	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			a := newTestAgent(t, gen)
			cc := ConversationContext{
				Persona:     testPersona(),
				Difficulty:  domain.DifficultyHard,
				Personality: domain.PersonalityProfessional,
			}
			resp, err := a.GenerateResponse(context.Background(), "We can deliver this next quarter.", cc)
			require.NoError(t, err)
			require.Equal(t, SourceFallback, resp.Source)

			state := objection.Compute(nil, "We can deliver this next quarter.", domain.DifficultyHard)
			want := fallbackReply(NewStanceDirective(cc.Persona, cc.Difficulty, cc.Personality, state), 0)
			require.Equal(t, want, resp.Message)
			require.Equal(t, taxonomy.CategoryTiming, resp.ObjectionState.ObjectionType)
		})
	}
}

func TestGenerateResponse_TimeoutFallsBackWithoutLeaking(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := newTestAgent(t, &blockingGenerator{}, WithGenerationTimeout(20*time.Millisecond))
	start := time.Now()
	resp, err := a.GenerateResponse(context.Background(), "Is this secure?", ConversationContext{Persona: testPersona()})
	require.NoError(t, err)
	require.Equal(t, SourceFallback, resp.Source)
	require.NotEmpty(t, resp.Message)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestGenerateResponse_CallerCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	gen := &blockingGenerator{started: make(chan struct{})}
	a := newTestAgent(t, gen, WithGenerationTimeout(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-gen.started
		cancel()
	}()
	_, err := a.GenerateResponse(ctx, "What does it cost?", ConversationContext{Persona: testPersona()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerateResponse_CallerDeadlineFallsBack(t *testing.T) {
	defer goleak.VerifyNone(t)

	gen := &blockingGenerator{}
	a := newTestAgent(t, gen, WithGenerationTimeout(8*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	resp, err := a.GenerateResponse(ctx, "What does it cost?", ConversationContext{Persona: testPersona()})
	require.NoError(t, err)
	require.Equal(t, SourceFallback, resp.Source)
	require.NotEmpty(t, resp.Message)
	require.Equal(t, taxonomy.CategoryPrice, resp.ObjectionState.ObjectionType)
}

func TestGenerateResponse_GenerationCappedByCallerDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)

	gen := &blockingGenerator{started: make(chan struct{})}
	a := newTestAgent(t, gen, WithGenerationTimeout(8*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	resp, err := a.GenerateResponse(ctx, "Is this secure?", ConversationContext{Persona: testPersona()})
	require.NoError(t, err)
	require.Equal(t, SourceFallback, resp.Source)
	require.NoError(t, ctx.Err(), "reply should leave time before the caller deadline")
	<-gen.started
}

func TestGenerateResponse_FallbackLogsTriggerKeyword(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	a := newTestAgent(t, &fakeGenerator{err: errors.New("down")}, WithLogger(logger))

	_, err := a.GenerateResponse(context.Background(), "Honestly this is too expensive for us.", ConversationContext{Persona: testPersona()})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "using fallback reply")
	require.Contains(t, buf.String(), "keyword=expensive")
	require.Contains(t, buf.String(), "objection_type=price")
}

func TestGenerateResponse_ToneAndNextAction(t *testing.T) {
	a := newTestAgent(t, &fakeGenerator{text: "Noted."})
	cases := []struct {
		name   string
		cc     ConversationContext
		msg    string
		tone   Tone
		action NextAction
	}{
		{"neutral", ConversationContext{Persona: testPersona()}, "Hello, I wanted to introduce our product.", ToneNeutral, NextActionContinue},
		{"objection", ConversationContext{Persona: testPersona(), Difficulty: domain.DifficultyEasy}, "Our pricing starts at $50 per seat.", ToneSkeptical, NextActionObjection},
		{"hard objection", ConversationContext{Persona: testPersona(), Difficulty: domain.DifficultyExpert}, "Our pricing starts at $50 per seat.", ToneNegative, NextActionObjection},
		{"close", ConversationContext{Persona: testPersona()}, "Can we schedule a demo next week?", TonePositive, NextActionClose},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := a.GenerateResponse(context.Background(), tc.msg, tc.cc)
			require.NoError(t, err)
			require.Equal(t, tc.tone, resp.Tone)
			require.Equal(t, tc.action, resp.NextAction)
		})
	}
}

func TestClassifyReply(t *testing.T) {
	tone, next := ClassifyReply(objection.State{ObjectionRaised: true, PushbackLevel: 0.9}, nil)
	require.Equal(t, ToneNegative, tone)
	require.Equal(t, NextActionObjection, next)

	tone, next = ClassifyReply(objection.State{ObjectionRaised: true, PushbackLevel: 0.5}, []taxonomy.SignalTag{taxonomy.SignalNextStepRequest})
	require.Equal(t, ToneSkeptical, tone)
	require.Equal(t, NextActionObjection, next)

	tone, next = ClassifyReply(objection.State{}, []taxonomy.SignalTag{taxonomy.SignalPriceInquiry, taxonomy.SignalNextStepRequest})
	require.Equal(t, TonePositive, tone)
	require.Equal(t, NextActionClose, next)

	tone, next = ClassifyReply(objection.State{}, []taxonomy.SignalTag{taxonomy.SignalFeatureInterest})
	require.Equal(t, TonePositive, tone)
	require.Equal(t, NextActionInterest, next)

	tone, next = ClassifyReply(objection.State{}, nil)
	require.Equal(t, ToneNeutral, tone)
	require.Equal(t, NextActionContinue, next)
}

func TestGenerateResponse_PromptCarriesStanceAndWindow(t *testing.T) {
	gen := &fakeGenerator{text: "Sure."}
	a := newTestAgent(t, gen, WithHistoryWindow(2))

	history := []domain.ConversationMessage{
		rep("first"), prospect("second"), rep("third"), prospect("fourth"),
	}
	_, err := a.GenerateResponse(context.Background(), "Our pricing is flexible.", ConversationContext{
		Persona:             testPersona(),
		ConversationHistory: history,
		Difficulty:          domain.DifficultyHard,
		Personality:         domain.PersonalitySkeptical,
	})
	require.NoError(t, err)

	msgs := gen.captured
	require.Len(t, msgs, 4)
	require.Equal(t, domain.ChatRoleSystem, msgs[0].Role)
	require.Contains(t, msgs[0].Content, "Open objection: price")
	require.Contains(t, msgs[0].Content, "Personality: skeptical")
	require.Contains(t, msgs[0].Content, "Chief Technology Officer at Acme")
	require.Equal(t, domain.ChatMessage{Role: domain.ChatRoleUser, Content: "third"}, msgs[1])
	require.Equal(t, domain.ChatMessage{Role: domain.ChatRoleAssistant, Content: "fourth"}, msgs[2])
	require.Equal(t, domain.ChatMessage{Role: domain.ChatRoleUser, Content: "Our pricing is flexible."}, msgs[3])
}

func TestGenerateResponse_DoesNotMutateContext(t *testing.T) {
	a := newTestAgent(t, &fakeGenerator{text: "Fine."})
	history := []domain.ConversationMessage{rep("Our price is fair."), prospect("Is it?")}
	snapshot := append([]domain.ConversationMessage(nil), history...)
	p := testPersona()

	resp, err := a.GenerateResponse(context.Background(), "It really is.", ConversationContext{Persona: p, ConversationHistory: history})
	require.NoError(t, err)
	require.Equal(t, snapshot, history)

	resp.Concerns[0] = "changed"
	require.Equal(t, "Vendor lock-in", p.Concerns[0])
}

func TestGenerateResponse_ConcernsAndNextQuestion(t *testing.T) {
	a := newTestAgent(t, &fakeGenerator{text: "Go on."})
	resp, err := a.GenerateResponse(context.Background(), "We help teams ship faster.", ConversationContext{
		Persona:          testPersona(),
		SalesMethodology: domain.MethodologySPIN,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Vendor lock-in", "Total cost of ownership"}, resp.Concerns)
	require.Equal(t, "What's the impact of this problem on your team?", resp.NextQuestion)

	resp, err = a.GenerateResponse(context.Background(), "We help teams ship faster.", ConversationContext{Persona: testPersona()})
	require.NoError(t, err)
	require.Empty(t, resp.NextQuestion)
}

func TestGenerateResponse_SignalScope(t *testing.T) {
	history := []domain.ConversationMessage{prospect("Could we set up a demo?")}
	cc := ConversationContext{Persona: testPersona(), ConversationHistory: history}

	repOnly := newTestAgent(t, &fakeGenerator{text: "ok"})
	resp, err := repOnly.GenerateResponse(context.Background(), "Happy to show you how it works.", cc)
	require.NoError(t, err)
	require.NotContains(t, resp.BuyingSignals, taxonomy.SignalNextStepRequest)

	exchange := newTestAgent(t, &fakeGenerator{text: "ok"}, WithSignalScope(SignalScopeExchange))
	resp, err = exchange.GenerateResponse(context.Background(), "Happy to show you how it works.", cc)
	require.NoError(t, err)
	require.Contains(t, resp.BuyingSignals, taxonomy.SignalNextStepRequest)
}

func TestGenerateResponse_UnknownSettingsDefault(t *testing.T) {
	a := newTestAgent(t, &fakeGenerator{err: errors.New("down")})
	cc := ConversationContext{Persona: testPersona(), Difficulty: "nightmare", Personality: "sarcastic"}
	resp, err := a.GenerateResponse(context.Background(), "Our price is $10.", cc)
	require.NoError(t, err)
	require.InDelta(t, objection.Baseline(domain.DifficultyMedium), resp.ObjectionState.PushbackLevel, 1e-9)
}

func TestGenerateResponse_ConcurrentCalls(t *testing.T) {
	a := newTestAgent(t, &fakeGenerator{text: "Sure."})
	var wg sync.WaitGroup
	errs := make([]error, 32)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = a.GenerateResponse(context.Background(), "What's the cost?", ConversationContext{
				Persona:    testPersona(),
				Difficulty: domain.Difficulties[i%len(domain.Difficulties)],
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestParseSignalScope(t *testing.T) {
	require.Equal(t, SignalScopeExchange, ParseSignalScope(" Exchange "))
	require.Equal(t, SignalScopeRep, ParseSignalScope(""))
	require.Equal(t, SignalScopeRep, ParseSignalScope("everything"))
}
