package scanning

import (
	"testing"
)

func TestLabelFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		expect string
	}{
		{
			name:   "explicit for attribute",
			body:   `<label for="q">Why us?</label><div><input id="q"></div>`,
			expect: "Why us?",
		},
		{
			name:   "wrapping label",
			body:   `<label>Cover letter <textarea id="q"></textarea></label>`,
			expect: "Cover letter",
		},
		{
			name:   "material label in grandparent",
			body:   `<div><label class="MuiFormLabel-root">Your motivation</label><div><input id="q"></div></div>`,
			expect: "Your motivation",
		},
		{
			name:   "form control wrapper",
			body:   `<div class="MuiFormControl-root"><span>Greatest strength</span><div><input id="q"></div></div>`,
			expect: "Greatest strength",
		},
		{
			name:   "preceding sibling",
			body:   `<h4>Career goals</h4><input id="q">`,
			expect: "Career goals",
		},
		{
			name:   "test id is humanized",
			body:   `<input id="q" data-testid="WhyThisRole">`,
			expect: "Why This Role",
		},
		{
			name:   "name with underscores",
			body:   `<input id="q" name="cover_letter_text">`,
			expect: "cover letter text",
		},
		{
			name:   "nothing",
			body:   `<input id="q">`,
			expect: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := parse(t, atsURL, tt.body)
			if got := LabelFor(doc.Doc, doc.First("#q")); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestIsLikelyOpenQuestion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		expect bool
	}{
		{name: "placeholder", body: `<input id="q" placeholder="Tell us about yourself">`, expect: true},
		{name: "data question", body: `<input id="q" data-question="What can you bring?">`, expect: true},
		{name: "surrounding text", body: `<div><p>Is there anything we should know?</p><input id="q"></div>`, expect: true},
		{name: "plain name field", body: `<div><input id="q" name="first_name"></div>`, expect: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := parse(t, atsURL, tt.body)
			field := doc.First("#q")
			if got := IsLikelyOpenQuestion(field, LabelFor(doc.Doc, field)); got != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}
