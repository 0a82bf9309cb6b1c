package taxonomy

import (
	"strings"
	"unicode/utf8"
)

type keyword struct {
	phrase string
	// wordOnly keywords match on word boundaries; the rest match as raw substrings.
	wordOnly bool
	len      int
}

func keywords(phrases ...string) []keyword {
	out := make([]keyword, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(p)
		wordOnly := true
		for _, r := range p {
			if r != ' ' && !isWordRune(r) {
				wordOnly = false
				break
			}
		}
		out = append(out, keyword{phrase: p, wordOnly: wordOnly, len: utf8.RuneCountInString(p)})
	}
	return out
}

var objectionKeywords = map[Category][]keyword{
	CategoryPrice: keywords(
		"$", "€", "£", "price", "prices", "pricing", "priced", "cost", "costs",
		"expensive", "cheaper", "budget", "budgets", "per seat", "per user",
		"per month", "per year", "license fee", "licensing", "discount", "roi",
		"fee", "fees", "afford", "invoice", "subscription", "spend",
	),
	CategoryCompetitor: keywords(
		"competitor", "competitors", "alternative", "alternatives",
		"we already use", "already using", "we already have", "currently use",
		"switch from", "switching from", "compared to", "versus", "vs",
		"in-house", "build it ourselves", "built in house", "copilot",
		"sourcegraph", "gitlab", "datadog", "snyk", "sonarqube", "salesforce",
		"hubspot",
	),
	CategoryTiming: keywords(
		"timing", "timeline", "not now", "right now", "later", "next quarter",
		"this quarter", "next year", "end of year", "deadline", "too busy",
		"bandwidth", "q1", "q2", "q3", "q4", "rollout", "weeks", "months",
		"wait",
	),
	CategoryTrust: keywords(
		"trust", "guarantee", "guaranteed", "proven", "proof", "case study",
		"case studies", "references", "reference customers", "security",
		"secure", "compliance", "compliant", "soc 2", "soc2", "gdpr", "hipaa",
		"risk", "risky", "track record", "reliability", "uptime", "sla",
		"data privacy", "audit",
	),
	CategoryFeature: keywords(
		"feature", "features", "integration", "integrations", "integrate",
		"integrates", "api", "apis", "support for", "roadmap", "capability",
		"capabilities", "customization", "customize", "plugin", "sso",
		"on-prem", "on premise", "self-hosted", "missing", "doesn't support",
		"limitation", "limitations",
	),
	CategoryAuthority: keywords(
		"decision", "decision maker", "decision-maker", "approve", "approval",
		"approvals", "sign off", "sign-off", "stakeholder", "stakeholders",
		"procurement", "legal", "board", "committee", "cfo", "ceo", "my boss",
		"my manager", "leadership", "buy-in", "buy in",
	),
}

type signalRule struct {
	tag      SignalTag
	keywords []keyword
}

var signalRules = []signalRule{
	{tag: SignalPriceInquiry, keywords: keywords(
		"how much", "pricing", "price", "cost", "quote", "per seat", "plans", "tiers",
	)},
	{tag: SignalTimelineQuestion, keywords: keywords(
		"timeline", "when can", "how long", "how soon", "how quickly",
		"implementation", "onboarding", "go live", "get started", "rollout",
	)},
	{tag: SignalNextStepRequest, keywords: keywords(
		"next step", "next steps", "demo", "trial", "pilot", "proof of concept",
		"poc", "proposal", "contract", "what happens next", "schedule",
		"follow up", "follow-up", "set up a call", "send over",
	)},
	{tag: SignalPositiveSentiment, keywords: keywords(
		"sounds good", "interesting", "impressive", "love", "like that", "great",
		"makes sense", "helpful", "exactly what", "that would help", "promising",
		"excited",
	)},
	{tag: SignalFeatureInterest, keywords: keywords(
		"does it support", "can it", "how does it", "integrate with",
		"works with", "show me", "walk me through",
	)},
}

// Keywords returns the objection keywords registered for c.
func Keywords(c Category) []string {
	kws := objectionKeywords[c]
	out := make([]string, len(kws))
	for i, kw := range kws {
		out[i] = kw.phrase
	}
	return out
}
