// Package patterns holds the table of phrasings that mark a form field as an
// open-ended application question.
package patterns

import "regexp"

// Intent groups patterns by what the question is asking for.
type Intent string

const (
	IntentMotivation      Intent = "motivation"
	IntentAboutYourself   Intent = "about_yourself"
	IntentFit             Intent = "fit"
	IntentStrengths       Intent = "strengths_weaknesses"
	IntentGoals           Intent = "goals"
	IntentChallenges      Intent = "challenges"
	IntentAdditionalInfo  Intent = "additional_info"
	IntentCoverLetter     Intent = "cover_letter"
	IntentGeneric         Intent = "generic"
	IntentCommonQuestions Intent = "common_questions"
)

// Entry is a single labelled question pattern.
type Entry struct {
	Intent  Intent
	Pattern *regexp.Regexp
}

func entry(intent Intent, expr string) Entry {
	return Entry{Intent: intent, Pattern: regexp.MustCompile(`(?i)` + expr)}
}

// The generic entries near the end match almost any label mentioning
// "experience" or "question". Length and field-type checks run afterwards.
var entries = []Entry{
	entry(IntentMotivation, `why\s*(do\s*)?you\s*want\s*(to\s*)?(work|join)`),
	entry(IntentMotivation, `why\s*(are\s*)?you\s*(interested|applying)`),
	entry(IntentMotivation, `what\s*attracts\s*you`),
	entry(IntentMotivation, `why\s*this\s*(company|role|position|job)`),
	entry(IntentMotivation, `what\s*excites\s*you\s*about`),
	entry(IntentMotivation, `why\s*do\s*you\s*want\s*to\s*join`),
	entry(IntentMotivation, `motivation`),

	entry(IntentAboutYourself, `tell\s*us\s*(about\s*)?(yourself|why)`),
	entry(IntentAboutYourself, `describe\s*(yourself|your\s*background)`),
	entry(IntentAboutYourself, `introduce\s*yourself`),
	entry(IntentAboutYourself, `walk\s*(us|me)\s*through\s*your`),
	entry(IntentAboutYourself, `tell\s*us\s*about\s*yourself`),
	entry(IntentAboutYourself, `share\s*(something|a bit)\s*about`),

	entry(IntentFit, `what\s*makes\s*you\s*(a\s*good|the\s*right|qualified)`),
	entry(IntentFit, `why\s*should\s*we\s*(hire|choose)`),
	entry(IntentFit, `what\s*(can|will)\s*you\s*bring`),
	entry(IntentFit, `how\s*will\s*you\s*contribute`),
	entry(IntentFit, `why\s*are\s*you\s*a\s*good\s*fit`),

	entry(IntentStrengths, `what\s*are\s*your\s*strengths`),
	entry(IntentStrengths, `greatest\s*strength`),
	entry(IntentStrengths, `what\s*are\s*your\s*weaknesses`),
	entry(IntentStrengths, `area.*(improvement|develop)`),

	entry(IntentGoals, `career\s*goals?`),
	entry(IntentGoals, `where\s*do\s*you\s*see\s*yourself`),
	entry(IntentGoals, `professional\s*goals?`),
	entry(IntentGoals, `long[-\s]term\s*aspirations`),

	entry(IntentChallenges, `(challenge|difficult|obstacle).*(overcome|faced|handled)`),
	entry(IntentChallenges, `tell\s*(us|me)\s*about\s*a\s*time`),
	entry(IntentChallenges, `describe\s*a\s*(situation|project|achievement)`),
	entry(IntentChallenges, `proud(est)?\s*(accomplishment|achievement)`),
	entry(IntentChallenges, `tell\s*us\s*about\s*a\s*success`),

	entry(IntentAdditionalInfo, `additional\s*(information|comments|notes)`),
	entry(IntentAdditionalInfo, `anything\s*else`),
	entry(IntentAdditionalInfo, `is\s*there\s*anything`),

	entry(IntentCoverLetter, `cover\s*letter`),
	entry(IntentCoverLetter, `letter\s*of\s*(motivation|interest)`),

	entry(IntentGeneric, `experience`),
	entry(IntentGeneric, `background`),
	entry(IntentGeneric, `qualifications`),
	entry(IntentGeneric, `essay`),
	entry(IntentGeneric, `question`),

	entry(IntentCommonQuestions, `referred`),
	entry(IntentCommonQuestions, `software\s*(programs|tools|technologies)`),
	entry(IntentCommonQuestions, `list\s*(any|all|the)`),
	entry(IntentCommonQuestions, `describe\s*your`),
	entry(IntentCommonQuestions, `please\s*(list|describe)`),
	entry(IntentCommonQuestions, `tell\s*us\s*more`),
	entry(IntentCommonQuestions, `elaborate`),
	entry(IntentCommonQuestions, `explain\s*(your|how)`),
}

// Entries returns a copy of the pattern table in match order.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Match returns the first entry matching text.
func Match(text string) (Entry, bool) {
	if text == "" {
		return Entry{}, false
	}
	for _, e := range entries {
		if e.Pattern.MatchString(text) {
			return e, true
		}
	}
	return Entry{}, false
}

// MatchesAny reports whether any pattern matches text.
func MatchesAny(text string) bool {
	_, ok := Match(text)
	return ok
}
