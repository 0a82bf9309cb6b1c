package objection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"prospect-sim/internal/domain"
	"prospect-sim/internal/taxonomy"
)

const priceMessage = "Our pricing starts at $50 per seat."

func rep(msg string) domain.ConversationMessage {
	return domain.ConversationMessage{Role: domain.SpeakerRep, Message: msg, Timestamp: time.Unix(0, 0)}
}

func prospect(msg string) domain.ConversationMessage {
	return domain.ConversationMessage{Role: domain.SpeakerProspect, Message: msg, Timestamp: time.Unix(0, 0)}
}

func TestCompute_NoObjectionOnFirstTurn(t *testing.T) {
	s := Compute(nil, "Hello, nice to meet you.", domain.DifficultyExpert)
	require.Equal(t, State{}, s)
}

func TestCompute_PriceObjection(t *testing.T) {
	s := Compute(nil, priceMessage, domain.DifficultyHard)
	require.True(t, s.ObjectionRaised)
	require.Equal(t, taxonomy.CategoryPrice, s.ObjectionType)
	require.Equal(t, 1, s.TimesRaised)
	require.InDelta(t, Baseline(domain.DifficultyHard), s.PushbackLevel, 1e-9)
}

func TestCompute_CountsPriorRepTurnsOfSameCategory(t *testing.T) {
	history := []domain.ConversationMessage{
		rep(priceMessage),
		prospect("That is more than we pay today, the price is a problem."),
		rep("We can talk about timing next quarter."),
		prospect("Maybe."),
		rep("The cost includes onboarding."),
		prospect("Still expensive."),
	}
	s := Compute(history, "Let me revisit the pricing.", domain.DifficultyMedium)
	require.Equal(t, taxonomy.CategoryPrice, s.ObjectionType)
	// Prospect turns never count, only rep turns.
	require.Equal(t, 3, s.TimesRaised)
	require.InDelta(t, PushbackLevel(domain.DifficultyMedium, 3), s.PushbackLevel, 1e-9)
}

func TestCompute_OpenObjectionCarriesOver(t *testing.T) {
	history := []domain.ConversationMessage{
		rep(priceMessage),
		prospect("That's a lot."),
	}
	s := Compute(history, "Fair enough, let me explain a bit more.", domain.DifficultyExpert)
	require.True(t, s.ObjectionRaised)
	require.Equal(t, taxonomy.CategoryPrice, s.ObjectionType)
	require.Equal(t, 1, s.TimesRaised)
}

func TestCompute_ObjectionClosesWhenLatestRepTurnIsNeutral(t *testing.T) {
	history := []domain.ConversationMessage{
		rep(priceMessage),
		prospect("That's a lot."),
		rep("Tell me about your team."),
		prospect("We have twelve engineers."),
	}
	s := Compute(history, "Great, thanks for sharing.", domain.DifficultyExpert)
	require.Equal(t, State{}, s)
}

func TestCompute_NoRollOver(t *testing.T) {
	first := Compute(nil, priceMessage, domain.DifficultyExpert)
	history := []domain.ConversationMessage{rep(priceMessage), prospect("Too expensive.")}
	second := Compute(history, "But think about the ROI you'll get.", domain.DifficultyExpert)

	require.Greater(t, second.TimesRaised, 0)
	require.Greater(t, second.PushbackLevel, 0.5)
	require.GreaterOrEqual(t, second.PushbackLevel, first.PushbackLevel)
}

func TestCompute_MonotonicInOccurrences(t *testing.T) {
	for _, d := range domain.Difficulties {
		var history []domain.ConversationMessage
		prev := 0.0
		for n := 1; n <= 12; n++ {
			s := Compute(history, priceMessage, d)
			require.Equal(t, n, s.TimesRaised)
			require.GreaterOrEqual(t, s.PushbackLevel, prev, "difficulty=%s n=%d", d, n)
			require.LessOrEqual(t, s.PushbackLevel, 1.0)
			prev = s.PushbackLevel
			history = append(history, rep(priceMessage), prospect("No."))
		}
	}
}

func TestCompute_MonotonicInDifficulty(t *testing.T) {
	for n := 1; n <= 10; n++ {
		prev := 0.0
		for _, d := range domain.Difficulties {
			level := PushbackLevel(d, n)
			require.GreaterOrEqual(t, level, prev, "difficulty=%s n=%d", d, n)
			prev = level
		}
	}
	require.Greater(t, PushbackLevel(domain.DifficultyHard, 1), PushbackLevel(domain.DifficultyEasy, 1))
}

func TestCompute_UnknownDifficultyUsesMedium(t *testing.T) {
	s := Compute(nil, priceMessage, domain.Difficulty("impossible"))
	require.InDelta(t, Baseline(domain.DifficultyMedium), s.PushbackLevel, 1e-9)
}

func TestCompute_DoesNotMutateHistory(t *testing.T) {
	history := []domain.ConversationMessage{rep(priceMessage), prospect("No.")}
	snapshot := append([]domain.ConversationMessage(nil), history...)
	_ = Compute(history, priceMessage, domain.DifficultyHard)
	require.Equal(t, snapshot, history)
}

func TestPushbackLevel_ZeroOccurrences(t *testing.T) {
	require.Zero(t, PushbackLevel(domain.DifficultyExpert, 0))
}

func TestBucket(t *testing.T) {
	require.Equal(t, BucketNone, Bucket(0))
	require.Equal(t, BucketLow, Bucket(0.2))
	require.Equal(t, BucketMedium, Bucket(0.55))
	require.Equal(t, BucketHigh, Bucket(0.7))
	require.Equal(t, BucketHigh, Bucket(1))
}
