package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"prospect-sim/internal/domain"
)

const (
	defaultModel       = "claude-haiku-4-5-20251001"
	defaultMaxTokens   = 300
	defaultTemperature = 0.8
	defaultMaxRetries  = 1

	// openingTurn stands in for the rep when a transcript starts with the
	// prospect, since the Messages API requires a leading user turn.
	openingTurn = "(The call has just connected.)"
)

// TokenSource supplies the API key. paramstore.TokenSource and
// paramstore.StaticToken satisfy it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	Err        error
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("anthropic: unexpected status %d", e.StatusCode)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Err
}

// Client generates prospect replies through the Claude Messages API.
type Client struct {
	tokens      TokenSource
	baseURL     string
	model       string
	maxTokens   int64
	temperature float64
	maxRetries  int
	httpClient  *http.Client

	mu       sync.Mutex
	api      *sdk.Client
	apiToken string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

func WithMaxTokens(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithMaxRetries sets SDK-level retries. Zero disables them.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

func NewClient(tokens TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("anthropic: token source must not be nil")
	}
	c := &Client{
		tokens:      tokens,
		model:       defaultModel,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
		maxRetries:  defaultMaxRetries,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string {
	return "anthropic"
}

func (c *Client) resolveAPI(ctx context.Context) (*sdk.Client, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("anthropic: resolve api key: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil && c.apiToken == token {
		return c.api, nil
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(token),
		option.WithMaxRetries(c.maxRetries),
	}
	if c.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	if c.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(c.httpClient))
	}
	api := sdk.NewClient(reqOpts...)
	c.api = &api
	c.apiToken = token
	return c.api, nil
}

// Generate returns the assistant text for messages. System messages are
// lifted into the request's system prompt.
func (c *Client) Generate(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	system, turns := splitMessages(messages)
	if len(turns) == 0 {
		return "", errors.New("anthropic: messages must contain at least one conversational turn")
	}
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: sdk.Float(c.temperature),
		Messages:    turns,
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	msg, err := api.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", classify(err))
	}
	text := extractText(msg)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("anthropic: no text in response")
	}
	return text, nil
}

// splitMessages separates system content and folds consecutive same-role
// turns together so the sequence strictly alternates starting with a user turn.
func splitMessages(messages []domain.ChatMessage) (string, []sdk.MessageParam) {
	var system []string
	type turn struct {
		assistant bool
		parts     []string
	}
	var turns []turn
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if m.Role == domain.ChatRoleSystem {
			system = append(system, content)
			continue
		}
		assistant := m.Role == domain.ChatRoleAssistant
		if len(turns) == 0 && assistant {
			turns = append(turns, turn{parts: []string{openingTurn}})
		}
		if n := len(turns); n > 0 && turns[n-1].assistant == assistant {
			turns[n-1].parts = append(turns[n-1].parts, content)
			continue
		}
		turns = append(turns, turn{assistant: assistant, parts: []string{content}})
	}

	out := make([]sdk.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := sdk.NewTextBlock(strings.Join(t.parts, "\n\n"))
		if t.assistant {
			out = append(out, sdk.NewAssistantMessage(block))
		} else {
			out = append(out, sdk.NewUserMessage(block))
		}
	}
	return strings.Join(system, "\n\n"), out
}

func extractText(msg *sdk.Message) string {
	if msg == nil {
		return ""
	}
	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(sdk.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "")
}

func classify(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		return &HTTPStatusError{StatusCode: apiErr.StatusCode, Err: err}
	}
	return err
}
