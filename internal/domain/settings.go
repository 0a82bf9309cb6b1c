package domain

import "strings"

// Difficulty controls both persona richness and objection resistance.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// Difficulties lists every tier from least to most demanding.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert}

// ParseDifficulty maps free text onto a tier. Unknown values become medium.
func ParseDifficulty(s string) Difficulty {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if d.Valid() {
		return d
	}
	return DifficultyMedium
}

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert:
		return true
	}
	return false
}

// Normalize returns d, or medium when d is not a known tier.
func (d Difficulty) Normalize() Difficulty {
	if d.Valid() {
		return d
	}
	return DifficultyMedium
}

// Personality is the simulated prospect's temperament.
type Personality string

const (
	PersonalityFriendly     Personality = "friendly"
	PersonalityProfessional Personality = "professional"
	PersonalitySkeptical    Personality = "skeptical"
	PersonalityAbrasive     Personality = "abrasive"
	PersonalityHostile      Personality = "hostile"
)

// ParsePersonality maps free text onto a personality. Unknown values become professional.
func ParsePersonality(s string) Personality {
	p := Personality(strings.ToLower(strings.TrimSpace(s)))
	if p.Valid() {
		return p
	}
	return PersonalityProfessional
}

func (p Personality) Valid() bool {
	switch p {
	case PersonalityFriendly, PersonalityProfessional, PersonalitySkeptical, PersonalityAbrasive, PersonalityHostile:
		return true
	}
	return false
}

func (p Personality) Normalize() Personality {
	if p.Valid() {
		return p
	}
	return PersonalityProfessional
}

// Role is the buyer's job function.
type Role string

const (
	RoleCTO                Role = "CTO"
	RoleVPEngineering      Role = "VP Engineering"
	RoleStaffEngineer      Role = "Staff Engineer"
	RoleEngineeringManager Role = "Engineering Manager"
)

// ParseRole matches s case-insensitively against the known roles. It returns
// the empty Role when nothing matches so callers can infer one.
func ParseRole(s string) Role {
	s = strings.TrimSpace(s)
	for _, r := range []Role{RoleCTO, RoleVPEngineering, RoleStaffEngineer, RoleEngineeringManager} {
		if strings.EqualFold(s, string(r)) {
			return r
		}
	}
	return ""
}

// SalesMethodology is the discovery framework the rep is practicing.
type SalesMethodology string

const (
	MethodologyGAP    SalesMethodology = "GAP"
	MethodologySPIN   SalesMethodology = "SPIN"
	MethodologyMEDDIC SalesMethodology = "MEDDIC"
	MethodologyBANT   SalesMethodology = "BANT"
)

// ParseSalesMethodology returns the empty value for anything unrecognised.
func ParseSalesMethodology(s string) SalesMethodology {
	m := SalesMethodology(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MethodologyGAP, MethodologySPIN, MethodologyMEDDIC, MethodologyBANT:
		return m
	}
	return ""
}
