package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"prospect-sim/handler"
	"prospect-sim/internal/integrations/anthropic"
	"prospect-sim/internal/integrations/openai"
	"prospect-sim/internal/integrations/paramstore"
	"prospect-sim/internal/persona"
	"prospect-sim/internal/repository"
	"prospect-sim/internal/usecase"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := strings.TrimRight(mustEnv("PARAM_PREFIX"), "/")
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 600)
	historyWindow := envInt("PROMPT_HISTORY_WINDOW", 10)
	generationTimeout := time.Duration(envInt("GENERATION_TIMEOUT_MS", 8000)) * time.Millisecond
	signalScope := usecase.ParseSignalScope(envString("SIGNAL_SCOPE", string(usecase.SignalScopeRep)))
	providerOrder := envList("LLM_PROVIDERS", "anthropic,openai")

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	stateClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable)
	if err != nil {
		slog.Error("failed to create state client", "err", err)
		os.Exit(1)
	}

	var providers []usecase.TextGenerator
	for _, name := range providerOrder {
		p, err := newProvider(ssmClient, paramPrefix, name)
		if err != nil {
			slog.Error("failed to create text provider", "provider", name, "err", err)
			os.Exit(1)
		}
		if p == nil {
			slog.Warn("unknown text provider ignored", "provider", name)
			continue
		}
		providers = append(providers, p)
	}
	chain := usecase.NewProviderChain(logger, providers...)
	if chain.Len() == 0 {
		slog.Warn("no text providers configured, every reply will use templates")
	}

	// ---- Use cases ----
	agent, err := usecase.NewAgent(chain,
		usecase.WithGenerationTimeout(generationTimeout),
		usecase.WithHistoryWindow(historyWindow),
		usecase.WithMaxMessageLength(maxMessageLen),
		usecase.WithSignalScope(signalScope),
		usecase.WithLogger(logger),
	)
	if err != nil {
		slog.Error("failed to create conversation agent", "err", err)
		os.Exit(1)
	}
	personas := persona.NewGenerator()
	sessions, err := usecase.NewSessionService(personas, agent, stateClient, logger)
	if err != nil {
		slog.Error("failed to create session service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(personas, agent, sessions)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

// newProvider returns nil for names it does not recognise.
func newProvider(g paramstore.Getter, prefix, name string) (usecase.TextGenerator, error) {
	switch name {
	case "anthropic":
		tokens, err := paramstore.NewTokenSource(g, prefix+"/anthropic-token")
		if err != nil {
			return nil, err
		}
		var opts []anthropic.Option
		if m := os.Getenv("ANTHROPIC_MODEL"); m != "" {
			opts = append(opts, anthropic.WithModel(m))
		}
		if t, ok := envFloat("ANTHROPIC_TEMPERATURE"); ok {
			opts = append(opts, anthropic.WithTemperature(t))
		}
		c, err := anthropic.NewClient(tokens, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai":
		tokens, err := paramstore.NewTokenSource(g, prefix+"/open-ai-token")
		if err != nil {
			return nil, err
		}
		var opts []openai.Option
		if m := os.Getenv("OPENAI_MODEL"); m != "" {
			opts = append(opts, openai.WithModel(m))
		}
		if u := os.Getenv("OPENAI_BASE_URL"); u != "" {
			opts = append(opts, openai.WithBaseURL(u))
		}
		if t, ok := envFloat("OPENAI_TEMPERATURE"); ok {
			opts = append(opts, openai.WithTemperature(float32(t)))
		}
		c, err := openai.NewClient(tokens, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, nil
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// envFloat reports false when key is unset or not a number in [0, 2].
func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 2 {
		slog.Warn("ignoring invalid environment variable", "key", key, "value", v)
		return 0, false
	}
	return f, true
}

func envList(key, def string) []string {
	var out []string
	for _, part := range strings.Split(envString(key, def), ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
