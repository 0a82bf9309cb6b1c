package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"prospect-sim/internal/domain"
	"prospect-sim/internal/persona"
	"prospect-sim/internal/repository"
)

type PersonaGenerator interface {
	Generate(intel *domain.CompanyIntelligence, cfg persona.Config) domain.ProspectPersona
}

type Responder interface {
	GenerateResponse(ctx context.Context, repMessage string, cc ConversationContext) (ConversationResponse, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, s domain.Session) error
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	GetHistory(ctx context.Context, sessionID string) ([]domain.ConversationMessage, error)
	SaveExchange(ctx context.Context, ex repository.Exchange) error
}

// SessionService owns persistence around the stateless agent: it stores the
// persona once per session and appends each exchange with its analytics.
type SessionService struct {
	personas PersonaGenerator
	agent    Responder
	store    SessionStore
	logger   *slog.Logger
	now      func() time.Time
}

type StartInput struct {
	Intelligence     *domain.CompanyIntelligence
	Difficulty       domain.Difficulty
	Personality      domain.Personality
	Role             domain.Role
	SalesMethodology domain.SalesMethodology
}

type ReplyInput struct {
	SessionID string
	Message   string
}

type ReplyOutput struct {
	SessionID string
	Turn      int
	Response  ConversationResponse
}

func NewSessionService(personas PersonaGenerator, agent Responder, store SessionStore, logger *slog.Logger) (*SessionService, error) {
	if personas == nil {
		return nil, errors.New("usecase: persona generator must not be nil")
	}
	if agent == nil {
		return nil, errors.New("usecase: responder must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		personas: personas,
		agent:    agent,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start generates the session persona and persists a new session.
func (s *SessionService) Start(ctx context.Context, in StartInput) (domain.Session, error) {
	difficulty := in.Difficulty.Normalize()
	personality := in.Personality.Normalize()
	p := s.personas.Generate(in.Intelligence, persona.Config{
		Difficulty:  difficulty,
		Personality: personality,
		Role:        in.Role,
	})

	now := s.now().UTC()
	session := domain.Session{
		ID:               newUUID(),
		Persona:          p,
		Difficulty:       difficulty,
		Personality:      personality,
		SalesMethodology: domain.ParseSalesMethodology(string(in.SalesMethodology)),
		CreatedAt:        now,
		LastActivity:     now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return domain.Session{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}
	s.logger.Info("session started",
		"session_id", session.ID,
		"difficulty", string(difficulty),
		"personality", string(personality),
		"role", string(p.Role),
		"generation_method", p.Metadata.GenerationMethod,
	)
	return session, nil
}

// Reply runs one turn of a stored session and persists both messages.
func (s *SessionService) Reply(ctx context.Context, in ReplyInput) (ReplyOutput, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return ReplyOutput{}, newError(ErrorInvalidInput, "missing_session_id", nil)
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return ReplyOutput{}, newError(ErrorNotFound, "session_not_found", err)
	}
	if err != nil {
		return ReplyOutput{}, newError(ErrorInternal, "dynamodb_session_error", err)
	}
	history, err := s.store.GetHistory(ctx, sessionID)
	if err != nil {
		return ReplyOutput{}, newError(ErrorInternal, "dynamodb_history_error", err)
	}

	repAt := s.now().UTC()
	resp, err := s.agent.GenerateResponse(ctx, in.Message, ConversationContext{
		Persona:             &session.Persona,
		ConversationHistory: history,
		Difficulty:          session.Difficulty,
		Personality:         session.Personality,
		SalesMethodology:    session.SalesMethodology,
	})
	if err != nil {
		return ReplyOutput{}, err
	}

	turn := session.Turns + 1
	ex := repository.Exchange{
		SessionID: sessionID,
		Turn:      turn,
		Rep: domain.ConversationMessage{
			Role:      domain.SpeakerRep,
			Message:   strings.TrimSpace(in.Message),
			Timestamp: repAt,
		},
		Prospect: domain.ConversationMessage{
			Role:      domain.SpeakerProspect,
			Message:   resp.Message,
			Timestamp: s.now().UTC(),
		},
		Objection:     resp.ObjectionState,
		BuyingSignals: resp.BuyingSignals,
		Source:        string(resp.Source),
		Tone:          string(resp.Tone),
		NextAction:    string(resp.NextAction),
		ExpiresAt:     session.ExpiresAt,
	}
	err = s.store.SaveExchange(ctx, ex)
	if errors.Is(err, repository.ErrConcurrentUpdate) {
		return ReplyOutput{}, newError(ErrorConflict, "session_conflict", err)
	}
	if err != nil {
		return ReplyOutput{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}

	s.logger.Info("session turn saved",
		"session_id", sessionID,
		"turn", turn,
		"objection_type", string(resp.ObjectionState.ObjectionType),
		"pushback", resp.ObjectionState.PushbackLevel,
		"tone", string(resp.Tone),
		"next_action", string(resp.NextAction),
		"source", string(resp.Source),
	)
	return ReplyOutput{SessionID: sessionID, Turn: turn, Response: resp}, nil
}

var newUUID = func() string {
	return uuid.NewString()
}
