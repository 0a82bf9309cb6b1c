package usecase

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"prospect-sim/internal/domain"
	"prospect-sim/internal/objection"
	"prospect-sim/internal/taxonomy"
)

const technicalProbe = " Specifically, how does this handle edge cases in distributed systems?"

// fallbackTemplates are keyed by objection and pushback bucket. Within a cell
// the template rotates with the number of times the objection was raised.
var fallbackTemplates = map[taxonomy.Category]map[objection.PushbackBucket][]string{
	taxonomy.CategoryPrice: {
		objection.BucketLow: {
			"That's interesting. Can you walk me through the pricing structure?",
			"Before we talk numbers, I'd like to understand the value better.",
		},
		objection.BucketMedium: {
			"Let me think about that. What kind of ROI have other companies seen?",
			"That's more than I expected. What exactly is included at that price?",
		},
		objection.BucketHigh: {
			"I appreciate that, but we've looked at similar tools and the ROI doesn't justify that price for us right now.",
			"That's well above what we budgeted. Can you help me understand what justifies that premium?",
			"I'm not sure that price works for us. What flexibility do you actually have?",
		},
	},
	taxonomy.CategoryCompetitor: {
		objection.BucketLow: {
			"We've been looking at a couple of other options too. How are you different?",
		},
		objection.BucketMedium: {
			"Our current vendor does most of this already. Why would we switch?",
			"I've heard similar pitches from your competitors. What's actually unique here?",
		},
		objection.BucketHigh: {
			"I appreciate that, but we already have a tool that covers this and switching is a real cost.",
			"Honestly, the alternatives we use are good enough. Can you help me understand why I'd rip them out?",
		},
	},
	taxonomy.CategoryTiming: {
		objection.BucketLow: {
			"When would be a better time to revisit this?",
			"What's your typical implementation timeline?",
		},
		objection.BucketMedium: {
			"I understand. What would need to change for the timing to work?",
			"We have other priorities right now. Why should this jump the queue?",
		},
		objection.BucketHigh: {
			"We're not in a position to make changes right now. This quarter is already locked in.",
			"The timing isn't there. We're focused on other initiatives and that won't change soon.",
		},
	},
	taxonomy.CategoryTrust: {
		objection.BucketLow: {
			"Who else like us is using this today?",
		},
		objection.BucketMedium: {
			"Those are big claims. Do you have references I could talk to?",
			"How do you handle security reviews and compliance questions?",
		},
		objection.BucketHigh: {
			"I appreciate that, but I've heard promises like this before and they didn't hold up.",
			"I need to see concrete evidence before I believe any of that. Can you help me understand where those numbers come from?",
		},
	},
	taxonomy.CategoryFeature: {
		objection.BucketLow: {
			"Does it integrate with the tools we already use?",
		},
		objection.BucketMedium: {
			"That sounds limited. How would it handle our setup specifically?",
			"What's on the roadmap for the things it can't do yet?",
		},
		objection.BucketHigh: {
			"I appreciate that, but if it can't do what we need today it's a non-starter.",
			"We've been managing fine without this. Can you help me understand what it does that we can't already do?",
		},
	},
	taxonomy.CategoryAuthority: {
		objection.BucketLow: {
			"Who else would be involved in this decision?",
			"What does the approval process usually look like for a tool like this?",
		},
		objection.BucketMedium: {
			"This isn't my decision alone. I'd need to bring it to the team.",
			"I'd have to run this by my manager and finance first.",
		},
		objection.BucketHigh: {
			"I can't commit to anything without several stakeholders signing off.",
			"I appreciate that, but I don't have the authority to move this forward on my own.",
		},
	},
}

var neutralTemplates = []string{
	"That's interesting. Tell me more about how that works.",
	"I see. How does that compare to what we're doing now?",
	"Can you give me an example of how that would work in our environment?",
	"That makes sense. What's the typical implementation process?",
	"I'd like to understand more about that. Can you elaborate?",
}

var neutralPrefixes = map[domain.Personality]string{
	domain.PersonalityFriendly:     "Thanks for sharing that! ",
	domain.PersonalityProfessional: "Understood. ",
	domain.PersonalitySkeptical:    "I'm not sure I follow. ",
	domain.PersonalityAbrasive:     "Get to the point. ",
	domain.PersonalityHostile:      "I don't have much time for this. ",
}

type rewrite struct {
	old, new string
}

var personalityRewrites = map[domain.Personality][]rewrite{
	domain.PersonalityAbrasive: {
		{"I appreciate that, but ", "I'm not sure about that. "},
		{"Can you help me understand", "You need to show me"},
	},
	domain.PersonalityHostile: {
		{"I appreciate that, but ", ""},
		{"Can you help me understand", "You'll need to prove"},
	},
}

// fallbackReply builds the deterministic reply used when no provider
// produced text. turn is the number of prior rep turns and selects the
// neutral template.
func fallbackReply(d StanceDirective, turn int) string {
	var reply string
	if d.Neutral() {
		reply = neutralPrefixes[d.Personality] + pick(neutralTemplates, turn)
	} else {
		reply = objectionReply(d)
	}
	if d.Difficulty == domain.DifficultyExpert && d.Technical {
		reply += technicalProbe
	}
	return reply
}

func objectionReply(d StanceDirective) string {
	byBucket, ok := fallbackTemplates[d.ObjectionType]
	if !ok {
		byBucket = fallbackTemplates[taxonomy.CategoryPrice]
	}
	bucket := d.Bucket
	if bucket == objection.BucketNone {
		bucket = objection.BucketLow
	}
	reply := pick(byBucket[bucket], d.TimesRaised-1)
	if bucket == objection.BucketLow {
		return reply
	}
	return applyPersonality(reply, d.Personality)
}

// applyPersonality sharpens objection replies for abrasive and hostile
// prospects.
func applyPersonality(reply string, p domain.Personality) string {
	for _, rw := range personalityRewrites[p] {
		reply = strings.ReplaceAll(reply, rw.old, rw.new)
	}
	if p == domain.PersonalityHostile {
		reply = "Look, " + lowerFirst(strings.TrimSpace(reply))
	}
	return reply
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	// Keep "I" and acronyms such as "ROI" intact.
	if next, _ := utf8.DecodeRuneInString(s[size:]); r == 'I' && !unicode.IsLetter(next) || unicode.IsUpper(next) {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func pick(options []string, n int) string {
	if len(options) == 0 {
		return ""
	}
	if n < 0 {
		n = 0
	}
	return options[n%len(options)]
}

var nextQuestions = map[domain.SalesMethodology]string{
	domain.MethodologyGAP:    "What's the gap between where you are and where you want to be?",
	domain.MethodologySPIN:   "What's the impact of this problem on your team?",
	domain.MethodologyMEDDIC: "Who is the economic buyer, and what metrics will they use to judge success?",
	domain.MethodologyBANT:   "Is there budget set aside for this, and who signs off on it?",
}

// nextQuestion is the coaching prompt suggested to the rep for the session's
// methodology. Unknown methodologies get none.
func nextQuestion(m domain.SalesMethodology) string {
	return nextQuestions[domain.ParseSalesMethodology(string(m))]
}
