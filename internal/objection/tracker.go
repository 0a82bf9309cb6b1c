// Package objection derives per-conversation objection state from the full
// conversation history. State is never stored; every call recomputes it.
package objection

import (
	"prospect-sim/internal/domain"
	"prospect-sim/internal/taxonomy"
)

// State is a read-only snapshot of how hard the prospect is pushing back.
type State struct {
	ObjectionRaised bool              `json:"objectionRaised" dynamodbav:"objectionRaised"`
	ObjectionType   taxonomy.Category `json:"objectionType" dynamodbav:"objectionType,omitempty"`
	PushbackLevel   float64           `json:"pushbackLevel" dynamodbav:"pushbackLevel"`
	TimesRaised     int               `json:"timesRaised" dynamodbav:"timesRaised"`
}

type tierCurve struct {
	baseline float64
	step     float64
}

// Both columns increase with difficulty so pushback is ordered by tier for any
// fixed number of occurrences.
var curves = map[domain.Difficulty]tierCurve{
	domain.DifficultyEasy:   {baseline: 0.20, step: 0.10},
	domain.DifficultyMedium: {baseline: 0.35, step: 0.12},
	domain.DifficultyHard:   {baseline: 0.55, step: 0.15},
	domain.DifficultyExpert: {baseline: 0.70, step: 0.15},
}

// Baseline is the pushback applied the first time an objection comes up.
func Baseline(d domain.Difficulty) float64 {
	return curves[d.Normalize()].baseline
}

// EscalationStep is the extra pushback per repeat of the same objection.
func EscalationStep(d domain.Difficulty) float64 {
	return curves[d.Normalize()].step
}

// PushbackLevel returns the clamped pushback for an objection raised
// timesRaised times. Zero occurrences mean no pushback.
func PushbackLevel(d domain.Difficulty, timesRaised int) float64 {
	if timesRaised <= 0 {
		return 0
	}
	return clamp01(Baseline(d) + EscalationStep(d)*float64(timesRaised-1))
}

// Compute classifies newMessage, counts prior rep turns that raised the same
// objection, and scales pushback by difficulty. When newMessage raises nothing
// the objection from the most recent rep turn stays open.
func Compute(history []domain.ConversationMessage, newMessage string, difficulty domain.Difficulty) State {
	category, current := taxonomy.ClassifyObjection(newMessage)
	if !current {
		category = openCategory(history)
		if category == taxonomy.CategoryNone {
			return State{}
		}
	}

	times := countRaised(history, category)
	if current {
		times++
	}
	if times < 1 {
		times = 1
	}

	return State{
		ObjectionRaised: true,
		ObjectionType:   category,
		PushbackLevel:   PushbackLevel(difficulty, times),
		TimesRaised:     times,
	}
}

// openCategory returns the objection raised by the latest rep turn, if any.
func openCategory(history []domain.ConversationMessage) taxonomy.Category {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != domain.SpeakerRep {
			continue
		}
		c, _ := taxonomy.ClassifyObjection(history[i].Message)
		return c
	}
	return taxonomy.CategoryNone
}

func countRaised(history []domain.ConversationMessage, category taxonomy.Category) int {
	n := 0
	for _, m := range history {
		if m.Role != domain.SpeakerRep {
			continue
		}
		if c, ok := taxonomy.ClassifyObjection(m.Message); ok && c == category {
			n++
		}
	}
	return n
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// PushbackBucket groups pushback levels for template selection.
type PushbackBucket string

const (
	BucketNone   PushbackBucket = "none"
	BucketLow    PushbackBucket = "low"
	BucketMedium PushbackBucket = "medium"
	BucketHigh   PushbackBucket = "high"
)

// Bucket maps a pushback level onto a coarse bucket.
func Bucket(level float64) PushbackBucket {
	switch {
	case level <= 0:
		return BucketNone
	case level < 0.4:
		return BucketLow
	case level < 0.7:
		return BucketMedium
	default:
		return BucketHigh
	}
}
