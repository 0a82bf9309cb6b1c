// Package persona synthesizes buyer personas from company intelligence. Richer
// difficulty tiers populate a strict superset of the facets of easier tiers.
package persona

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"prospect-sim/internal/domain"
)

const (
	MethodTemplate    = "template"
	MethodDeepPersona = "deeppersona"

	unknownCompany = "Unknown Company"
)

// Config selects the persona's difficulty, temperament and role. An empty
// Role is inferred from the company.
type Config struct {
	Difficulty  domain.Difficulty
	Personality domain.Personality
	Role        domain.Role
}

type tier struct {
	rank        int
	listCap     int
	realism     float64
	familiarity string
}

var tiers = map[domain.Difficulty]tier{
	domain.DifficultyEasy:   {rank: 0, listCap: 2, realism: 0.55},
	domain.DifficultyMedium: {rank: 1, listCap: 3, realism: 0.65},
	domain.DifficultyHard:   {rank: 2, listCap: 4, realism: 0.75},
	domain.DifficultyExpert: {rank: 3, listCap: 6, realism: 0.85, familiarity: "deep"},
}

// Generator builds personas. It holds no per-call state and is safe for
// concurrent use.
type Generator struct {
	newID func() string
	now   func() time.Time
}

type Option func(*Generator)

func WithIDFunc(f func() string) Option {
	return func(g *Generator) {
		if f != nil {
			g.newID = f
		}
	}
}

func WithClock(f func() time.Time) Option {
	return func(g *Generator) {
		if f != nil {
			g.now = f
		}
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate always returns a usable persona. Nil or nameless intelligence
// produces a fully defaulted persona.
func (g *Generator) Generate(intel *domain.CompanyIntelligence, cfg Config) domain.ProspectPersona {
	difficulty := cfg.Difficulty.Normalize()
	personality := cfg.Personality.Normalize()
	t := tiers[difficulty]

	if intel != nil && strings.TrimSpace(intel.Company.Name) == "" {
		intel = nil
	}

	role := cfg.Role
	if _, ok := roleTemplates[role]; !ok {
		role = inferRole(intel)
	}
	tmpl := roleTemplates[role]

	var insights domain.Insights
	company := unknownCompany
	if intel != nil {
		insights = intel.Insights
		company = strings.TrimSpace(intel.Company.Name)
	}

	p := domain.ProspectPersona{
		ID:        g.newID(),
		Role:      role,
		Seniority: tmpl.seniority,
		Title:     tmpl.title,
		Company:   company,
		Concerns: merge(t.listCap,
			insights.Concerns,
			[]string{personalityConcerns[personality]},
			tmpl.concerns,
		),
		Priorities: merge(t.listCap, insights.Priorities, tmpl.priorities),
		PainPoints: merge(t.listCap, insights.PainPoints, tmpl.painPoints),
		Skepticism: skepticismByDifficulty[difficulty],
		Tone:       describeTone(personality, difficulty, tmpl),
		CreatedAt:  g.now().UTC(),
	}

	if t.rank >= 1 {
		p.TechnicalProfile.Expertise = merge(t.listCap, codebaseExpertise(intel), tmpl.expertise)
		p.TechnicalProfile.CodebaseFamiliarity = tmpl.familiarity
		p.CommunicationStyle.Directness = tmpl.directness
		p.DecisionFactors = decisionFactors(insights, tmpl)
		p.CurrentSituation.EvaluationStage = evaluationStage(insights)
	}
	if t.rank >= 2 {
		p.TechnicalProfile.ArchitectureExperience = architecture(intel)
		p.TechnicalProfile.TeamSize = teamSize(intel)
		p.CommunicationStyle.UsesTechnicalTerms = tmpl.technical
		p.CommunicationStyle.PrefersData = tmpl.prefersData
		p.CommunicationStyle.AsksArchitectureQuestions = tmpl.architectural
		p.CurrentSituation.CurrentSolution = currentSolution(intel, tmpl)
		p.CurrentSituation.Budget = budget(intel)
	}
	if t.rank >= 3 {
		p.TechnicalProfile.CodebaseFamiliarity = t.familiarity
		p.CommunicationStyle = domain.CommunicationStyle{
			UsesTechnicalTerms:        true,
			AsksArchitectureQuestions: true,
			ReferencesCode:            true,
			PrefersData:               true,
			Directness:                tmpl.directness,
		}
		p.CurrentSituation.Timeline = timeline(insights)
		p.TechnicalProfile.Preferences = frameworks(intel)
		addDeepFacets(&p, intel, role, personality, tmpl)
		p.Narrative = narrative(p, personality)
	}

	coverage := intelligenceCoverage(intel)
	p.Metadata = domain.PersonaMetadata{
		GenerationMethod: MethodTemplate,
		AttributeCount:   CountAttributes(p),
		NarrativeLength:  len(p.Narrative),
		Confidence:       round2(0.45 + 0.05*float64(t.rank) + 0.3*coverage),
		RealismScore:     round2(min(t.realism+0.1*coverage, 0.99)),
	}
	if difficulty == domain.DifficultyExpert {
		p.Metadata.GenerationMethod = MethodDeepPersona
	}
	return p
}

// CountAttributes returns the number of populated persona facets.
func CountAttributes(p domain.ProspectPersona) int {
	populated := []bool{
		p.Role != "",
		p.Seniority != "",
		p.Title != "",
		p.Company != "",
		len(p.Concerns) > 0,
		len(p.Priorities) > 0,
		len(p.PainPoints) > 0,
		p.Skepticism != "",
		p.Tone != "",
		len(p.TechnicalProfile.Expertise) > 0,
		p.TechnicalProfile.ArchitectureExperience != "",
		p.TechnicalProfile.TeamSize > 0,
		p.TechnicalProfile.CodebaseFamiliarity != "",
		p.CommunicationStyle.UsesTechnicalTerms,
		p.CommunicationStyle.AsksArchitectureQuestions,
		p.CommunicationStyle.ReferencesCode,
		p.CommunicationStyle.PrefersData,
		p.CommunicationStyle.Directness != "",
		!p.DecisionFactors.IsZero(),
		p.CurrentSituation.CurrentSolution != "",
		p.CurrentSituation.EvaluationStage != "",
		p.CurrentSituation.Budget != "",
		p.CurrentSituation.Timeline != "",
		len(p.TechnicalProfile.Preferences) > 0,
		p.Narrative != "",
	}
	if d := p.Demographics; d != nil {
		populated = append(populated, d.Location != "", d.Background != "")
	}
	if pr := p.Professional; pr != nil {
		populated = append(populated, pr.YearsExperience > 0, len(pr.Skills) > 0)
	}
	if ps := p.Psychological; ps != nil {
		populated = append(populated, len(ps.Traits) > 0, len(ps.Values) > 0, len(ps.Motivations) > 0)
	}
	if b := p.Behavioral; b != nil {
		populated = append(populated, b.DecisionMaking != "", b.RiskTolerance != "")
	}
	if so := p.Social; so != nil {
		populated = append(populated, so.Influence != "", so.Network != "")
	}
	n := 0
	for _, ok := range populated {
		if ok {
			n++
		}
	}
	return n
}

// merge takes values in source order, skipping blanks and case-insensitive
// duplicates, until limit items are collected.
func merge(limit int, sources ...[]string) []string {
	out := make([]string, 0, limit)
	seen := make(map[string]struct{})
	for _, src := range sources {
		for _, v := range src {
			if len(out) == limit {
				return out
			}
			v = strings.TrimSpace(v)
			key := strings.ToLower(v)
			if v == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func describeTone(p domain.Personality, d domain.Difficulty, tmpl roleTemplate) string {
	switch d {
	case domain.DifficultyEasy:
		return string(p)
	case domain.DifficultyExpert:
		return fmt.Sprintf("%s; %s communicator who references their own stack and pushes on specifics",
			toneDescriptions[p], tmpl.directness)
	default:
		return toneDescriptions[p]
	}
}

func codebaseExpertise(intel *domain.CompanyIntelligence) []string {
	if intel == nil || intel.Codebase == nil {
		return nil
	}
	out := append([]string(nil), intel.Codebase.Languages...)
	return append(out, intel.Codebase.Frameworks...)
}

// addDeepFacets fills the demographic, professional, psychological,
// behavioral and social groups of a deep persona.
func addDeepFacets(p *domain.ProspectPersona, intel *domain.CompanyIntelligence, role domain.Role, personality domain.Personality, tmpl roleTemplate) {
	deep := deepTemplates[role]

	location := "Unknown"
	if intel != nil && strings.TrimSpace(intel.Company.Headquarters) != "" {
		location = strings.TrimSpace(intel.Company.Headquarters)
	}
	network := deep.network
	if intel != nil && strings.TrimSpace(intel.Company.Industry) != "" {
		network += " in " + strings.TrimSpace(intel.Company.Industry)
	}
	decisionMaking := "consensus-driven"
	if tmpl.prefersData {
		decisionMaking = "data-driven"
	}

	p.Demographics = &domain.Demographics{Location: location, Background: deep.background}
	p.Professional = &domain.Professional{
		YearsExperience: deep.yearsExperience,
		Skills:          merge(6, languages(intel), tmpl.expertise),
	}
	p.Psychological = &domain.Psychological{
		Traits:      append([]string(nil), traitsByPersonality[personality]...),
		Values:      append([]string(nil), deep.values...),
		Motivations: append([]string(nil), deep.motivations...),
	}
	p.Behavioral = &domain.Behavioral{DecisionMaking: decisionMaking, RiskTolerance: riskTolerance[personality]}
	p.Social = &domain.Social{Influence: deep.influence, Network: network}
}

func languages(intel *domain.CompanyIntelligence) []string {
	if intel == nil || intel.Codebase == nil {
		return nil
	}
	return intel.Codebase.Languages
}

func frameworks(intel *domain.CompanyIntelligence) []string {
	if intel == nil || intel.Codebase == nil {
		return nil
	}
	return merge(6, intel.Codebase.Frameworks)
}

func decisionFactors(in domain.Insights, tmpl roleTemplate) domain.DecisionFactors {
	f := tmpl.factors
	if in.DecisionFactors != nil && !in.DecisionFactors.IsZero() {
		f = *in.DecisionFactors
	}
	sum := f.Technical + f.Business + f.Team
	if sum <= 0 {
		return tmpl.factors
	}
	return domain.DecisionFactors{
		Technical: round2(f.Technical / sum),
		Business:  round2(f.Business / sum),
		Team:      round2(f.Team / sum),
	}
}

func evaluationStage(in domain.Insights) string {
	if len(in.BuyingSignals) > 0 {
		return "evaluating vendors"
	}
	return "researching"
}

func timeline(in domain.Insights) string {
	if len(in.BuyingSignals) > 0 {
		return "this_quarter"
	}
	return "next_two_quarters"
}

func architecture(intel *domain.CompanyIntelligence) string {
	if intel != nil && intel.Codebase != nil && intel.Codebase.ArchitectureType != "" {
		return intel.Codebase.ArchitectureType
	}
	return "microservices"
}

func teamSize(intel *domain.CompanyIntelligence) int {
	if intel != nil {
		if intel.Codebase != nil && intel.Codebase.TotalContributors > 0 {
			return intel.Codebase.TotalContributors
		}
		if intel.Financial != nil && intel.Financial.EstimatedEngineeringHeadcount > 0 {
			return intel.Financial.EstimatedEngineeringHeadcount
		}
	}
	return defaultTeamSize[intel.CompanySize()]
}

func currentSolution(intel *domain.CompanyIntelligence, tmpl roleTemplate) string {
	if intel != nil && intel.Codebase != nil && len(intel.Codebase.Infrastructure) > 0 {
		return "homegrown tooling running on " + intel.Codebase.Infrastructure[0]
	}
	return tmpl.solution
}

func budget(intel *domain.CompanyIntelligence) string {
	if intel != nil && intel.Financial != nil && intel.Financial.RevenueGrowth < 0 {
		return "frozen"
	}
	return budgetBySize[intel.CompanySize()]
}

func narrative(p domain.ProspectPersona, personality domain.Personality) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is the %s (%s) at %s. ", p.Title, p.Role, p.Seniority, p.Company)
	if p.Demographics != nil && p.Professional != nil {
		fmt.Fprintf(&b, "Based in %s, they are a %s with %d years of experience. ",
			p.Demographics.Location, p.Demographics.Background, p.Professional.YearsExperience)
	}
	fmt.Fprintf(&b, "They lead a team of about %d engineers working on %s architecture and know the codebase at a %s level. ",
		p.TechnicalProfile.TeamSize, p.TechnicalProfile.ArchitectureExperience, p.TechnicalProfile.CodebaseFamiliarity)
	if len(p.TechnicalProfile.Expertise) > 0 {
		fmt.Fprintf(&b, "Their expertise covers %s. ", strings.Join(p.TechnicalProfile.Expertise, ", "))
	}
	fmt.Fprintf(&b, "Today the team relies on %s, the budget is %s and they are %s with a %s timeline. ",
		p.CurrentSituation.CurrentSolution, p.CurrentSituation.Budget, p.CurrentSituation.EvaluationStage,
		strings.ReplaceAll(p.CurrentSituation.Timeline, "_", " "))
	fmt.Fprintf(&b, "They care most about %s, worry about %s, and are frustrated by %s. ",
		strings.Join(p.Priorities, "; "), strings.Join(p.Concerns, "; "), strings.Join(p.PainPoints, "; "))
	if ps := p.Psychological; ps != nil {
		fmt.Fprintf(&b, "They value %s and are motivated by %s. ",
			strings.Join(ps.Values, ", "), strings.Join(ps.Motivations, "; "))
	}
	if bh := p.Behavioral; bh != nil {
		fmt.Fprintf(&b, "They make %s decisions with %s risk tolerance", bh.DecisionMaking, bh.RiskTolerance)
		if p.Social != nil {
			fmt.Fprintf(&b, ", act as the %s and lean on %s", p.Social.Influence, p.Social.Network)
		}
		b.WriteString(". ")
	}
	fmt.Fprintf(&b, "In conversation they are %s and come across as %s.", personality, p.Skepticism)
	return b.String()
}

// intelligenceCoverage is the fraction of optional intelligence blocks that
// carry content, in [0,1].
func intelligenceCoverage(intel *domain.CompanyIntelligence) float64 {
	if intel == nil {
		return 0
	}
	blocks := []bool{
		len(intel.Insights.Concerns)+len(intel.Insights.Priorities)+len(intel.Insights.PainPoints) > 0,
		intel.Codebase != nil,
		intel.Financial != nil,
		len(intel.Contacts) > 0,
	}
	n := 0
	for _, ok := range blocks {
		if ok {
			n++
		}
	}
	return float64(n) / float64(len(blocks))
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
