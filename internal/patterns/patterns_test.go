package patterns

import "testing"

func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		match  bool
		intent Intent
	}{
		{name: "motivation", input: "Why do you want to work here?", match: true, intent: IntentMotivation},
		{name: "case insensitive", input: "WHY ARE YOU INTERESTED IN THIS ROLE", match: true, intent: IntentMotivation},
		{name: "about yourself", input: "Please introduce yourself", match: true, intent: IntentAboutYourself},
		{name: "fit", input: "What can you bring to the team?", match: true, intent: IntentFit},
		{name: "long term hyphen", input: "Long-term aspirations", match: true, intent: IntentGoals},
		{name: "challenge narrative", input: "Describe a difficult bug you handled", match: true, intent: IntentChallenges},
		{name: "cover letter", input: "Cover Letter", match: true, intent: IntentCoverLetter},
		{name: "generic experience", input: "Years of experience", match: true, intent: IntentGeneric},
		{name: "common referred", input: "Who referred you?", match: true, intent: IntentCommonQuestions},
		{name: "city is not a question", input: "What city do you live in?", match: false},
		{name: "first name", input: "First name", match: false},
		{name: "empty", input: "", match: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := Match(tt.input)
			if ok != tt.match {
				t.Fatalf("expected match=%v for %q, got %v", tt.match, tt.input, ok)
			}
			if ok && got.Intent != tt.intent {
				t.Fatalf("expected intent %q, got %q", tt.intent, got.Intent)
			}
			if MatchesAny(tt.input) != tt.match {
				t.Fatalf("MatchesAny disagrees with Match for %q", tt.input)
			}
		})
	}
}

func TestEntriesIsCopy(t *testing.T) {
	first := Entries()
	first[0] = Entry{}

	if Entries()[0].Pattern == nil {
		t.Fatalf("mutating the returned slice must not change the table")
	}
}
