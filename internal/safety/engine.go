// Package safety implements the local content rule engine: ordered pattern
// categories evaluated synchronously with no I/O, cheap enough to run on
// every send.
package safety

import (
	"regexp"
	"strings"
	"unicode"
)

// Category identifies which rule group rejected a text.
type Category string

const (
	CategoryPrivacy   Category = "privacy"
	CategoryOffensive Category = "offensive"
	CategoryIllegal   Category = "illegal"
	CategorySpam      Category = "spam"
	CategoryLowEffort Category = "low_effort"
)

// Result is the outcome of evaluating one text. Reason and Category are set
// only when Safe is false.
type Result struct {
	Safe     bool     `json:"safe"`
	Reason   string   `json:"reason,omitempty"`
	Category Category `json:"category,omitempty"`
}

type rule struct {
	pattern *regexp.Regexp
	reason  string
}

type ruleGroup struct {
	category Category
	rules    []rule
}

// minMeaningfulRunes is the shortest message worth moderating at all;
// anything below is rejected as low-effort before any pattern runs.
const minMeaningfulRunes = 2

// ruleGroups is evaluated in order; the first matching rule in the first
// matching category short-circuits the whole evaluation.
var ruleGroups = []ruleGroup{
	{
		category: CategoryPrivacy,
		rules: []rule{
			{regexp.MustCompile(`\d{8,}`), "Please don't share phone numbers or other long digit sequences that could identify someone."},
			{regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), "Please don't share email addresses here."},
			{regexp.MustCompile(`(?i)\b(my (?:home )?address is|i live at)\b`), "Please don't share home addresses or exact locations."},
		},
	},
	{
		category: CategoryOffensive,
		rules: []rule{
			{regexp.MustCompile(`(?i)\b(idiot|stupid|moron|loser|worthless)\b`), "Insulting language isn't allowed; this is a supportive space."},
			{regexp.MustCompile(`(?i)\b(kill yourself|kys)\b`), "Hostile or harmful language toward others isn't allowed."},
			{regexp.MustCompile(`(?i)\b(f+u+c+k+|s+h+i+t+|bitch|asshole)\b`), "Please keep the language respectful."},
		},
	},
	{
		category: CategoryIllegal,
		rules: []rule{
			{regexp.MustCompile(`(?i)\b(buy|sell|score)\b.{0,24}\b(drugs|meth|heroin|cocaine)\b`), "Discussing the sale of illegal substances isn't allowed."},
			{regexp.MustCompile(`(?i)\b(gun|firearm|weapon)s?\b.{0,24}\b(for sale|buy|sell)\b`), "Discussing weapon sales isn't allowed."},
		},
	},
	{
		category: CategorySpam,
		rules: []rule{
			{regexp.MustCompile(`(?i)https?://\S+`), "Links aren't allowed in messages."},
			{regexp.MustCompile(`(?i)\b(follow me|subscribe|promo code|discount|free money)\b`), "Promotional content isn't allowed here."},
			{regexp.MustCompile(`(.)\1{9,}`), "That looks like repeated filler rather than a message."},
		},
	},
}

// Evaluate checks a text against the ordered rule categories. It is a pure
// function: same text in, same result out, no shared state.
func Evaluate(text string) Result {
	if meaningfulRunes(text) < minMeaningfulRunes {
		return Result{
			Safe:     false,
			Reason:   "Message is too short; please write a little more.",
			Category: CategoryLowEffort,
		}
	}
	for _, group := range ruleGroups {
		for _, r := range group.rules {
			if r.pattern.MatchString(text) {
				return Result{Safe: false, Reason: r.reason, Category: group.category}
			}
		}
	}
	return Result{Safe: true}
}

func meaningfulRunes(text string) int {
	n := 0
	for _, r := range strings.TrimSpace(text) {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
