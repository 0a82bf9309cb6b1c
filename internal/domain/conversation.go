package domain

import "time"

// Speaker identifies who sent a conversation message.
type Speaker string

const (
	SpeakerRep      Speaker = "rep"
	SpeakerProspect Speaker = "prospect"
)

// ConversationMessage is a single turn in a practice conversation. History is
// append-only and owned by the caller.
type ConversationMessage struct {
	Role      Speaker   `json:"role" dynamodbav:"role"`
	Message   string    `json:"message" dynamodbav:"message"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// Session is a persisted practice session.
type Session struct {
	ID               string
	Persona          ProspectPersona
	Difficulty       Difficulty
	Personality      Personality
	SalesMethodology SalesMethodology
	Turns            int
	CreatedAt        time.Time
	LastActivity     time.Time
	ExpiresAt        time.Time
}
