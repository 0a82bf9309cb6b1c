package domain

import "time"

// ProspectPersona is the buyer profile that drives a practice session. It is
// created once per session and treated as read-only afterwards.
type ProspectPersona struct {
	ID                 string             `json:"id" dynamodbav:"id"`
	Role               Role               `json:"role" dynamodbav:"role"`
	Seniority          string             `json:"seniority" dynamodbav:"seniority"`
	Title              string             `json:"title" dynamodbav:"title"`
	Company            string             `json:"company" dynamodbav:"company"`
	TechnicalProfile   TechnicalProfile   `json:"technicalProfile" dynamodbav:"technicalProfile"`
	Concerns           []string           `json:"concerns" dynamodbav:"concerns"`
	Priorities         []string           `json:"priorities" dynamodbav:"priorities"`
	PainPoints         []string           `json:"painPoints" dynamodbav:"painPoints"`
	CommunicationStyle CommunicationStyle `json:"communicationStyle" dynamodbav:"communicationStyle"`
	DecisionFactors    DecisionFactors    `json:"decisionFactors" dynamodbav:"decisionFactors"`
	CurrentSituation   CurrentSituation   `json:"currentSituation" dynamodbav:"currentSituation"`
	Demographics       *Demographics      `json:"demographics,omitempty" dynamodbav:"demographics,omitempty"`
	Professional       *Professional      `json:"professional,omitempty" dynamodbav:"professional,omitempty"`
	Psychological      *Psychological     `json:"psychological,omitempty" dynamodbav:"psychological,omitempty"`
	Behavioral         *Behavioral        `json:"behavioral,omitempty" dynamodbav:"behavioral,omitempty"`
	Social             *Social            `json:"social,omitempty" dynamodbav:"social,omitempty"`
	Skepticism         string             `json:"skepticism" dynamodbav:"skepticism"`
	Tone               string             `json:"tone" dynamodbav:"tone"`
	Narrative          string             `json:"narrative,omitempty" dynamodbav:"narrative,omitempty"`
	Metadata           PersonaMetadata    `json:"metadata" dynamodbav:"metadata"`
	CreatedAt          time.Time          `json:"createdAt" dynamodbav:"createdAt"`
}

type TechnicalProfile struct {
	Expertise              []string `json:"expertise" dynamodbav:"expertise"`
	ArchitectureExperience string   `json:"architectureExperience,omitempty" dynamodbav:"architectureExperience,omitempty"`
	TeamSize               int      `json:"teamSize,omitempty" dynamodbav:"teamSize,omitempty"`
	CodebaseFamiliarity    string   `json:"codebaseFamiliarity,omitempty" dynamodbav:"codebaseFamiliarity,omitempty"`
	Preferences            []string `json:"preferences,omitempty" dynamodbav:"preferences,omitempty"`
}

type CommunicationStyle struct {
	UsesTechnicalTerms        bool   `json:"usesTechnicalTerms" dynamodbav:"usesTechnicalTerms"`
	AsksArchitectureQuestions bool   `json:"asksArchitectureQuestions" dynamodbav:"asksArchitectureQuestions"`
	ReferencesCode            bool   `json:"referencesCode" dynamodbav:"referencesCode"`
	PrefersData               bool   `json:"prefersData" dynamodbav:"prefersData"`
	Directness                string `json:"directness,omitempty" dynamodbav:"directness,omitempty"`
}

// DecisionFactors weights are proportional; callers may assume they sum to
// roughly 1.0.
type DecisionFactors struct {
	Technical float64 `json:"technical" yaml:"technical" dynamodbav:"technical"`
	Business  float64 `json:"business" yaml:"business" dynamodbav:"business"`
	Team      float64 `json:"team" yaml:"team" dynamodbav:"team"`
}

func (f DecisionFactors) IsZero() bool {
	return f.Technical == 0 && f.Business == 0 && f.Team == 0
}

type CurrentSituation struct {
	CurrentSolution string `json:"currentSolution,omitempty" dynamodbav:"currentSolution,omitempty"`
	EvaluationStage string `json:"evaluationStage,omitempty" dynamodbav:"evaluationStage,omitempty"`
	Budget          string `json:"budget,omitempty" dynamodbav:"budget,omitempty"`
	Timeline        string `json:"timeline,omitempty" dynamodbav:"timeline,omitempty"`
}

// The facet groups below are only populated for deep personas.

type Demographics struct {
	Location   string `json:"location" dynamodbav:"location"`
	Background string `json:"background" dynamodbav:"background"`
}

type Professional struct {
	YearsExperience int      `json:"yearsExperience" dynamodbav:"yearsExperience"`
	Skills          []string `json:"skills" dynamodbav:"skills"`
}

type Psychological struct {
	Traits      []string `json:"traits" dynamodbav:"traits"`
	Values      []string `json:"values" dynamodbav:"values"`
	Motivations []string `json:"motivations" dynamodbav:"motivations"`
}

type Behavioral struct {
	DecisionMaking string `json:"decisionMaking" dynamodbav:"decisionMaking"`
	RiskTolerance  string `json:"riskTolerance" dynamodbav:"riskTolerance"`
}

type Social struct {
	Influence string `json:"influence" dynamodbav:"influence"`
	Network   string `json:"network" dynamodbav:"network"`
}

type PersonaMetadata struct {
	GenerationMethod string  `json:"generationMethod" dynamodbav:"generationMethod"`
	AttributeCount   int     `json:"attributeCount" dynamodbav:"attributeCount"`
	NarrativeLength  int     `json:"narrativeLength" dynamodbav:"narrativeLength"`
	Confidence       float64 `json:"confidence" dynamodbav:"confidence"`
	RealismScore     float64 `json:"realismScore" dynamodbav:"realismScore"`
}
