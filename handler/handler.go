package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"prospect-sim/internal/domain"
	"prospect-sim/internal/objection"
	"prospect-sim/internal/persona"
	"prospect-sim/internal/taxonomy"
	"prospect-sim/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type PersonaGenerator interface {
	Generate(intel *domain.CompanyIntelligence, cfg persona.Config) domain.ProspectPersona
}

type Responder interface {
	GenerateResponse(ctx context.Context, repMessage string, cc usecase.ConversationContext) (usecase.ConversationResponse, error)
}

type SessionUseCase interface {
	Start(ctx context.Context, in usecase.StartInput) (domain.Session, error)
	Reply(ctx context.Context, in usecase.ReplyInput) (usecase.ReplyOutput, error)
}

// Handler adapts API Gateway proxy events to the persona, conversation and
// session use cases.
type Handler struct {
	personas PersonaGenerator
	agent    Responder
	sessions SessionUseCase
	logger   *slog.Logger
}

func NewHandler(personas PersonaGenerator, agent Responder, sessions SessionUseCase) (*Handler, error) {
	if personas == nil {
		return nil, errors.New("handler: persona generator must not be nil")
	}
	if agent == nil {
		return nil, errors.New("handler: responder must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("handler: session use case must not be nil")
	}
	return &Handler{personas: personas, agent: agent, sessions: sessions, logger: slog.Default()}, nil
}

type personaConfig struct {
	Difficulty  string `json:"difficulty"`
	Personality string `json:"personality"`
	Role        string `json:"role"`
}

type personaRequest struct {
	Intelligence *domain.CompanyIntelligence `json:"intelligence"`
	Config       personaConfig               `json:"config"`
}

type conversationContext struct {
	Persona             *domain.ProspectPersona      `json:"persona"`
	ConversationHistory []domain.ConversationMessage `json:"conversationHistory"`
	Difficulty          string                       `json:"difficulty"`
	Personality         string                       `json:"personality"`
	SalesMethodology    string                       `json:"salesMethodology"`
}

type respondRequest struct {
	RepMessage string              `json:"repMessage"`
	Context    conversationContext `json:"context"`
}

type startSessionRequest struct {
	Intelligence     *domain.CompanyIntelligence `json:"intelligence"`
	Difficulty       string                      `json:"difficulty"`
	Personality      string                      `json:"personality"`
	Role             string                      `json:"role"`
	SalesMethodology string                      `json:"salesMethodology"`
}

type sessionResponse struct {
	SessionID        string                 `json:"sessionId"`
	Persona          domain.ProspectPersona `json:"persona"`
	Difficulty       domain.Difficulty      `json:"difficulty"`
	Personality      domain.Personality     `json:"personality"`
	SalesMethodology string                 `json:"salesMethodology,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
}

type replyRequest struct {
	Message string `json:"message"`
}

type replyResponse struct {
	SessionID      string               `json:"sessionId"`
	Turn           int                  `json:"turn"`
	Message        string               `json:"message"`
	ObjectionState objection.State      `json:"objectionState"`
	BuyingSignals  []taxonomy.SignalTag `json:"buyingSignals"`
	Concerns       []string             `json:"concerns"`
	NextQuestion   string               `json:"nextQuestion,omitempty"`
	Tone           usecase.Tone         `json:"tone"`
	NextAction     usecase.NextAction   `json:"nextAction"`
	Source         usecase.ReplySource  `json:"source"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Handle routes:
//
//	POST /personas
//	POST /conversations/respond
//	POST /sessions
//	POST /sessions/{id}/messages
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With("correlation_id", correlationID)
	start := time.Now()

	status, body := h.route(ctx, logger, event)
	logger.Info("request handled",
		"method", event.HTTPMethod,
		"path", event.Path,
		"status", status,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return respond(status, correlationID, body), nil
}

func (h *Handler) route(ctx context.Context, logger *slog.Logger, event events.APIGatewayProxyRequest) (int, any) {
	segments := strings.Split(strings.Trim(event.Path, "/"), "/")
	post := strings.EqualFold(event.HTTPMethod, http.MethodPost)

	switch {
	case post && len(segments) == 1 && segments[0] == "personas":
		return h.generatePersona(event.Body)
	case post && len(segments) == 2 && segments[0] == "conversations" && segments[1] == "respond":
		return h.respond(ctx, logger, event.Body)
	case post && len(segments) == 1 && segments[0] == "sessions":
		return h.startSession(ctx, logger, event.Body)
	case post && len(segments) == 3 && segments[0] == "sessions" && segments[2] == "messages":
		id := segments[1]
		if v := event.PathParameters["id"]; v != "" {
			id = v
		}
		return h.reply(ctx, logger, id, event.Body)
	}
	return http.StatusNotFound, errorResponse{Error: string(usecase.ErrorNotFound), Reason: "route_not_found"}
}

func (h *Handler) generatePersona(body string) (int, any) {
	var req personaRequest
	if !decode(body, &req) {
		return invalidBody()
	}
	p := h.personas.Generate(req.Intelligence, persona.Config{
		Difficulty:  domain.ParseDifficulty(req.Config.Difficulty),
		Personality: domain.ParsePersonality(req.Config.Personality),
		Role:        domain.ParseRole(req.Config.Role),
	})
	return http.StatusOK, p
}

func (h *Handler) respond(ctx context.Context, logger *slog.Logger, body string) (int, any) {
	var req respondRequest
	if !decode(body, &req) {
		return invalidBody()
	}
	out, err := h.agent.GenerateResponse(ctx, req.RepMessage, usecase.ConversationContext{
		Persona:             req.Context.Persona,
		ConversationHistory: req.Context.ConversationHistory,
		Difficulty:          domain.ParseDifficulty(req.Context.Difficulty),
		Personality:         domain.ParsePersonality(req.Context.Personality),
		SalesMethodology:    domain.ParseSalesMethodology(req.Context.SalesMethodology),
	})
	if err != nil {
		return mapError(logger, err)
	}
	return http.StatusOK, out
}

func (h *Handler) startSession(ctx context.Context, logger *slog.Logger, body string) (int, any) {
	var req startSessionRequest
	if !decode(body, &req) {
		return invalidBody()
	}
	s, err := h.sessions.Start(ctx, usecase.StartInput{
		Intelligence:     req.Intelligence,
		Difficulty:       domain.ParseDifficulty(req.Difficulty),
		Personality:      domain.ParsePersonality(req.Personality),
		Role:             domain.ParseRole(req.Role),
		SalesMethodology: domain.ParseSalesMethodology(req.SalesMethodology),
	})
	if err != nil {
		return mapError(logger, err)
	}
	return http.StatusCreated, sessionResponse{
		SessionID:        s.ID,
		Persona:          s.Persona,
		Difficulty:       s.Difficulty,
		Personality:      s.Personality,
		SalesMethodology: string(s.SalesMethodology),
		CreatedAt:        s.CreatedAt,
	}
}

func (h *Handler) reply(ctx context.Context, logger *slog.Logger, sessionID, body string) (int, any) {
	var req replyRequest
	if !decode(body, &req) {
		return invalidBody()
	}
	out, err := h.sessions.Reply(ctx, usecase.ReplyInput{SessionID: sessionID, Message: req.Message})
	if err != nil {
		return mapError(logger, err)
	}
	r := out.Response
	return http.StatusOK, replyResponse{
		SessionID:      out.SessionID,
		Turn:           out.Turn,
		Message:        r.Message,
		ObjectionState: r.ObjectionState,
		BuyingSignals:  r.BuyingSignals,
		Concerns:       r.Concerns,
		NextQuestion:   r.NextQuestion,
		Tone:           r.Tone,
		NextAction:     r.NextAction,
		Source:         r.Source,
	}
}

func decode(body string, v any) bool {
	if strings.TrimSpace(body) == "" {
		return false
	}
	return json.Unmarshal([]byte(body), v) == nil
}

func invalidBody() (int, any) {
	return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_body"}
}

// mapError converts use case errors to a status and a client-safe body.
func mapError(logger *slog.Logger, err error) (int, any) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		logger.Error("unexpected error", "error", err)
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}

	status := http.StatusInternalServerError
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorNotFound:
		status = http.StatusNotFound
	case usecase.ErrorConflict:
		status = http.StatusConflict
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", string(ucErr.Code), "reason", ucErr.Reason, "error", ucErr.Err)
	} else {
		logger.Warn("request rejected", "code", string(ucErr.Code), "reason", ucErr.Reason)
	}
	return status, errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
}

func respond(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	payload, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		payload = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(payload),
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
