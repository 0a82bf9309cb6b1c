package persona

import (
	"strings"
	"unicode"

	"prospect-sim/internal/domain"
)

type roleTemplate struct {
	title         string
	seniority     string
	concerns      []string
	priorities    []string
	painPoints    []string
	expertise     []string
	directness    string
	technical     bool
	prefersData   bool
	factors       domain.DecisionFactors
	solution      string
	familiarity   string
	architectural bool
}

var roleTemplates = map[domain.Role]roleTemplate{
	domain.RoleCTO: {
		title:     "Chief Technology Officer",
		seniority: "executive",
		concerns: []string{
			"Total cost of ownership",
			"Vendor lock-in",
			"Security and compliance exposure",
			"Scalability of the platform",
		},
		priorities: []string{
			"Engineering velocity",
			"Platform reliability",
			"Hiring and retaining senior talent",
			"Reducing operational cost",
		},
		painPoints: []string{
			"Too much time lost to production incidents",
			"Slow onboarding for new engineers",
			"Tool sprawl across teams",
			"Legacy services nobody wants to touch",
		},
		expertise:     []string{"system architecture", "cloud infrastructure", "technical strategy"},
		directness:    "direct",
		technical:     true,
		prefersData:   true,
		factors:       domain.DecisionFactors{Technical: 0.4, Business: 0.45, Team: 0.15},
		solution:      "a mix of open source tooling and internal scripts",
		familiarity:   "broad",
		architectural: true,
	},
	domain.RoleVPEngineering: {
		title:     "VP of Engineering",
		seniority: "senior leadership",
		concerns: []string{
			"Team adoption and change management",
			"Impact on delivery timelines",
			"Cost per engineer",
			"Integration with the existing workflow",
		},
		priorities: []string{
			"Predictable delivery",
			"Developer productivity",
			"Team retention",
			"Quality metrics the board understands",
		},
		painPoints: []string{
			"Missed sprint commitments",
			"Code review bottlenecks",
			"Inconsistent engineering practices across teams",
			"Limited visibility into engineering metrics",
		},
		expertise:   []string{"engineering management", "delivery process", "org design"},
		directness:  "balanced",
		technical:   true,
		prefersData: true,
		factors:     domain.DecisionFactors{Technical: 0.35, Business: 0.35, Team: 0.3},
		solution:    "dashboards stitched together from the issue tracker and CI",
		familiarity: "working",
	},
	domain.RoleStaffEngineer: {
		title:     "Staff Engineer",
		seniority: "senior individual contributor",
		concerns: []string{
			"Technical depth of the product",
			"Performance overhead",
			"API quality and extensibility",
			"Yet another tool to maintain",
		},
		priorities: []string{
			"Code quality",
			"Architecture consistency",
			"Reducing toil",
			"Mentoring engineers",
		},
		painPoints: []string{
			"Flaky CI pipelines",
			"Growing technical debt",
			"Poor documentation of core services",
			"Hard-to-reproduce production bugs",
		},
		expertise:     []string{"distributed systems", "performance tuning", "code review"},
		directness:    "blunt",
		technical:     true,
		prefersData:   true,
		factors:       domain.DecisionFactors{Technical: 0.7, Business: 0.1, Team: 0.2},
		solution:      "homegrown tooling the team built over the years",
		familiarity:   "deep",
		architectural: true,
	},
	domain.RoleEngineeringManager: {
		title:     "Engineering Manager",
		seniority: "middle management",
		concerns: []string{
			"Learning curve for the team",
			"Disruption to the current sprint",
			"Reporting overhead",
			"Getting budget approved by leadership",
		},
		priorities: []string{
			"Team health",
			"Sprint predictability",
			"Hiring",
			"Clear ownership",
		},
		painPoints: []string{
			"Constant context switching",
			"Too many status meetings",
			"Onboarding takes months",
			"Unclear priorities from leadership",
		},
		expertise:   []string{"agile delivery", "people management", "incident response"},
		directness:  "diplomatic",
		factors:     domain.DecisionFactors{Technical: 0.3, Business: 0.3, Team: 0.4},
		solution:    "spreadsheets and the issue tracker",
		familiarity: "working",
	},
}

// personalityConcerns are placed right after intelligence-derived concerns.
var personalityConcerns = map[domain.Personality]string{
	domain.PersonalityFriendly:     "Making sure the team actually likes the tool",
	domain.PersonalityProfessional: "A clear return on investment",
	domain.PersonalitySkeptical:    "Claims that are not backed by data",
	domain.PersonalityAbrasive:     "Wasting time on another sales pitch",
	domain.PersonalityHostile:      "Getting locked into a bad contract",
}

var toneDescriptions = map[domain.Personality]string{
	domain.PersonalityFriendly:     "warm and conversational",
	domain.PersonalityProfessional: "measured and businesslike",
	domain.PersonalitySkeptical:    "guarded and questioning",
	domain.PersonalityAbrasive:     "curt and impatient",
	domain.PersonalityHostile:      "combative and dismissive",
}

var skepticismByDifficulty = map[domain.Difficulty]string{
	domain.DifficultyEasy:   "open-minded",
	domain.DifficultyMedium: "cautiously interested, wants evidence before committing",
	domain.DifficultyHard:   "skeptical of vendor claims, expects specifics, references and numbers before moving forward",
	domain.DifficultyExpert: "deeply skeptical buyer who has been burned by tools before; challenges every claim, " +
		"asks for proof in their own environment and will not concede an objection without concrete evidence",
}

var defaultTeamSize = map[string]int{
	domain.CompanySizeStartup:    8,
	domain.CompanySizeMidSize:    45,
	domain.CompanySizeEnterprise: 250,
}

var budgetBySize = map[string]string{
	domain.CompanySizeStartup:    "tight",
	domain.CompanySizeMidSize:    "moderate",
	domain.CompanySizeEnterprise: "allocated annually",
}

// inferRole picks a role consistent with the company when none is configured.
func inferRole(intel *domain.CompanyIntelligence) domain.Role {
	if intel == nil {
		return domain.RoleVPEngineering
	}
	for _, c := range intel.Contacts {
		if r := roleFromTitle(c.Title); r != "" {
			return r
		}
	}
	if intel.Codebase != nil && strings.EqualFold(intel.Codebase.Complexity, "high") {
		return domain.RoleStaffEngineer
	}
	switch intel.CompanySize() {
	case domain.CompanySizeMidSize:
		return domain.RoleVPEngineering
	case domain.CompanySizeEnterprise:
		return domain.RoleEngineeringManager
	default:
		return domain.RoleCTO
	}
}

func roleFromTitle(title string) domain.Role {
	t := strings.ToLower(title)
	words := " " + strings.Join(strings.FieldsFunc(t, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ") + " "
	switch {
	case t == "":
		return ""
	case strings.Contains(words, " cto "), strings.Contains(t, "chief technology"):
		return domain.RoleCTO
	case strings.Contains(words, " vp ") && strings.Contains(t, "engineering"),
		strings.Contains(t, "vice president") && strings.Contains(t, "engineering"):
		return domain.RoleVPEngineering
	case strings.Contains(t, "staff"), strings.Contains(t, "principal"):
		return domain.RoleStaffEngineer
	case strings.Contains(t, "engineering manager"):
		return domain.RoleEngineeringManager
	}
	return ""
}

type deepTemplate struct {
	yearsExperience int
	background      string
	values          []string
	motivations     []string
	influence       string
	network         string
}

var deepTemplates = map[domain.Role]deepTemplate{
	domain.RoleCTO: {
		yearsExperience: 18,
		background:      "engineer who grew into executive leadership",
		values:          []string{"Technical excellence", "Long-term maintainability", "Accountability"},
		motivations:     []string{"Scaling the platform without scaling headcount", "Credibility with the board"},
		influence:       "final technical decision maker",
		network:         "peer CTOs and investors",
	},
	domain.RoleVPEngineering: {
		yearsExperience: 15,
		background:      "former engineering manager with a delivery focus",
		values:          []string{"Predictability", "Team health", "Transparency"},
		motivations:     []string{"Hitting roadmap commitments", "Building a team people want to join"},
		influence:       "owns the engineering budget",
		network:         "engineering leaders at similar-stage companies",
	},
	domain.RoleStaffEngineer: {
		yearsExperience: 12,
		background:      "hands-on engineer across several platform rewrites",
		values:          []string{"Simplicity", "Correctness", "Craft"},
		motivations:     []string{"Removing toil for the whole org", "Technical reputation"},
		influence:       "trusted technical voice with veto power in evaluations",
		network:         "open source maintainers and conference speakers",
	},
	domain.RoleEngineeringManager: {
		yearsExperience: 10,
		background:      "team lead promoted from within",
		values:          []string{"Team wellbeing", "Clear ownership", "Fairness"},
		motivations:     []string{"Shielding the team from churn", "Making a case for promotion"},
		influence:       "recommends tools to leadership",
		network:         "internal managers and local meetups",
	},
}

var traitsByPersonality = map[domain.Personality][]string{
	domain.PersonalityFriendly:     {"warm", "collaborative", "curious"},
	domain.PersonalityProfessional: {"measured", "pragmatic", "organized"},
	domain.PersonalitySkeptical:    {"guarded", "analytical", "evidence-driven"},
	domain.PersonalityAbrasive:     {"impatient", "blunt", "time-pressed"},
	domain.PersonalityHostile:      {"confrontational", "distrustful", "dismissive"},
}

var riskTolerance = map[domain.Personality]string{
	domain.PersonalityFriendly:     "moderate",
	domain.PersonalityProfessional: "moderate",
	domain.PersonalitySkeptical:    "low",
	domain.PersonalityAbrasive:     "low",
	domain.PersonalityHostile:      "very low",
}
