package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"prospect-sim/internal/domain"
)

type namedGenerator struct {
	fakeGenerator
	name string
}

func (n *namedGenerator) Name() string { return n.name }

type statusErr struct{ code int }

func (e statusErr) Error() string       { return "upstream status" }
func (e statusErr) HTTPStatusCode() int { return e.code }

var hello = []domain.ChatMessage{{Role: domain.ChatRoleUser, Content: "hello"}}

func TestProviderChain_PrefersFirst(t *testing.T) {
	primary := &namedGenerator{name: "anthropic", fakeGenerator: fakeGenerator{text: "from claude"}}
	secondary := &namedGenerator{name: "openai", fakeGenerator: fakeGenerator{text: "from openai"}}

	text, err := NewProviderChain(nil, primary, secondary).Generate(context.Background(), hello)
	require.NoError(t, err)
	require.Equal(t, "from claude", text)
	require.Zero(t, secondary.calls)
}

func TestProviderChain_FallsThroughOnErrorOrEmpty(t *testing.T) {
	failing := &namedGenerator{name: "anthropic", fakeGenerator: fakeGenerator{err: statusErr{code: 529}}}
	empty := &namedGenerator{name: "blank", fakeGenerator: fakeGenerator{text: " "}}
	working := &namedGenerator{name: "openai", fakeGenerator: fakeGenerator{text: "from openai"}}

	text, err := NewProviderChain(nil, failing, nil, empty, working).Generate(context.Background(), hello)
	require.NoError(t, err)
	require.Equal(t, "from openai", text)
	require.Equal(t, 1, failing.calls)
	require.Equal(t, 1, empty.calls)
}

func TestProviderChain_AllFail(t *testing.T) {
	a := &namedGenerator{name: "anthropic", fakeGenerator: fakeGenerator{err: errors.New("overloaded")}}
	b := &namedGenerator{name: "openai", fakeGenerator: fakeGenerator{err: errors.New("rate limited")}}

	_, err := NewProviderChain(nil, a, b).Generate(context.Background(), hello)
	require.Error(t, err)
	require.Contains(t, err.Error(), "anthropic: overloaded")
	require.Contains(t, err.Error(), "openai: rate limited")
}

func TestProviderChain_Empty(t *testing.T) {
	chain := NewProviderChain(nil)
	require.Zero(t, chain.Len())
	_, err := chain.Generate(context.Background(), hello)
	require.ErrorIs(t, err, errNoProviders)
}

func TestProviderChain_StopsWhenContextDone(t *testing.T) {
	gen := &fakeGenerator{text: "never"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewProviderChain(nil, gen).Generate(ctx, hello)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, gen.calls)
}

func TestProviderChain_HangingProviderLeavesTimeForNext(t *testing.T) {
	hanging := &blockingGenerator{}
	working := &namedGenerator{name: "openai", fakeGenerator: fakeGenerator{text: "from openai"}}

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	start := time.Now()
	text, err := NewProviderChain(nil, hanging, working).Generate(ctx, hello)
	require.NoError(t, err)
	require.Equal(t, "from openai", text)
	require.Equal(t, 1, working.calls)
	require.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestProviderChain_LastProviderGetsRemainingTime(t *testing.T) {
	gen := &deadlineRecorder{}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_, err := NewProviderChain(nil, gen).Generate(ctx, hello)
	require.NoError(t, err)
	want, _ := ctx.Deadline()
	require.Equal(t, want, gen.deadline)
}

type deadlineRecorder struct {
	deadline time.Time
}

func (d *deadlineRecorder) Generate(ctx context.Context, _ []domain.ChatMessage) (string, error) {
	d.deadline, _ = ctx.Deadline()
	return "ok", nil
}

func TestUpstreamStatusCode(t *testing.T) {
	code, ok := upstreamStatusCode(errors.Join(errors.New("wrapped"), statusErr{code: 429}))
	require.True(t, ok)
	require.Equal(t, 429, code)

	_, ok = upstreamStatusCode(errors.New("plain"))
	require.False(t, ok)
}
