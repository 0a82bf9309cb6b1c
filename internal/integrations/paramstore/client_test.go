package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error
}

func (f *fakeAPI) GetParameter(_ context.Context, _ *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr(`{"k":"v"}`),
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, `{"k":"v"}`, v)
}

func TestGetParameter_HappyPath_SecureString(t *testing.T) {
	typeStr := "SecureString"
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr(`{"k":"v"}`), Type: types.ParameterType(typeStr),
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, `{"k":"v"}`, v)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: nil}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("boom")}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	api := &fakeAPI{}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

type countingGetter struct {
	vals  []string
	errs  []error
	calls int
}

func (g *countingGetter) GetParameter(_ context.Context, _ string) (string, error) {
	i := g.calls
	g.calls++
	var err error
	if i < len(g.errs) {
		err = g.errs[i]
	}
	if err != nil {
		return "", err
	}
	return g.vals[min(i, len(g.vals)-1)], nil
}

func TestTokenSource_CachesFirstSuccess(t *testing.T) {
	g := &countingGetter{vals: []string{`{"token":"sk-123"}`}}
	src, err := NewTokenSource(g, "/prospect-sim/anthropic-token")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		tok, err := src.Token(context.Background())
		require.NoError(t, err)
		require.Equal(t, "sk-123", tok)
	}
	require.Equal(t, 1, g.calls, "SSM must only be called once after a successful fetch")
}

func TestTokenSource_RetriesAfterFailure(t *testing.T) {
	g := &countingGetter{errs: []error{errors.New("throttled")}, vals: []string{"", `{"token":"sk-456"}`}}
	src, err := NewTokenSource(g, "/prospect-sim/open-ai-token")
	require.NoError(t, err)

	_, err = src.Token(context.Background())
	require.ErrorContains(t, err, "throttled")

	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-456", tok)
	require.Equal(t, 2, g.calls)
}

func TestTokenSource_RejectsBadPayloads(t *testing.T) {
	for name, raw := range map[string]string{
		"malformed":     `{"broken`,
		"missing token": `{"other":"value"}`,
		"blank token":   `{"token":"  "}`,
	} {
		t.Run(name, func(t *testing.T) {
			src, err := NewTokenSource(&countingGetter{vals: []string{raw}}, "/p")
			require.NoError(t, err)
			_, err = src.Token(context.Background())
			require.Error(t, err)
		})
	}
}

func TestNewTokenSource_Validates(t *testing.T) {
	_, err := NewTokenSource(nil, "/p")
	require.Error(t, err)
	_, err = NewTokenSource(&countingGetter{}, " ")
	require.Error(t, err)
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken(" sk-env ").Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-env", tok)

	_, err = StaticToken("").Token(context.Background())
	require.Error(t, err)
}
