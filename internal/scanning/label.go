package scanning

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/spigell/apply-copilot/internal/patterns"
)

const (
	maxLabelLength   = 200
	parentTextWindow = 200
)

var (
	frameworkLabelSelectors = []string{
		".MuiFormLabel-root",
		".MuiInputLabel-root",
		".fabric-label",
		`[class*="labelLabel"]`,
		`[class*="Label-root"]`,
		"label",
	}

	capitalLetter = regexp.MustCompile(`([A-Z])`)
)

// LabelFor resolves the human-readable label of a field. Strategies are tried
// in order and the first non-empty result wins; an empty string means nothing
// matched.
func LabelFor(doc *goquery.Document, field *goquery.Selection) string {
	if id := field.AttrOr("id", ""); id != "" && doc != nil {
		label := doc.Find("label[for]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.AttrOr("for", "") == id
		}).First()
		if text := strings.TrimSpace(label.Text()); text != "" {
			return text
		}
	}

	if wrapping := field.ParentsFiltered("label").First(); wrapping.Length() > 0 {
		text := wrapping.Text()
		if own := field.Text(); own != "" {
			text = strings.Replace(text, own, "", 1)
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}

	if parent := field.Parent(); parent.Length() > 0 {
		if text := frameworkLabel(parent); text != "" {
			return text
		}

		if control := parent.Closest(`[class*="FormControl"]`); control.Length() > 0 {
			if text := shortText(control.Find(`[class*="label"], label, span`).First()); text != "" {
				return text
			}
		}

		var found string
		parent.Find("label, span, p, div, strong, b").EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if el.Find("input, textarea").Length() > 0 {
				return true
			}
			if text := shortText(el); text != "" {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	for sib := field.Prev(); sib.Length() > 0; sib = sib.Prev() {
		if text := shortText(sib); text != "" {
			return text
		}
	}

	if aria := strings.TrimSpace(field.AttrOr("aria-label", "")); aria != "" {
		return aria
	}
	if label := strings.TrimSpace(field.AttrOr("data-label", "")); label != "" {
		return label
	}
	if testID := field.AttrOr("data-testid", ""); testID != "" {
		if text := strings.TrimSpace(capitalLetter.ReplaceAllString(testID, " $1")); text != "" {
			return text
		}
	}
	if name := field.AttrOr("name", ""); name != "" {
		return strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	}

	return ""
}

// frameworkLabel looks for component-library label elements next to a field,
// first under its parent and then under its grandparent.
func frameworkLabel(parent *goquery.Selection) string {
	for _, selector := range frameworkLabelSelectors {
		label := parent.Find(selector).First()
		if label.Length() == 0 {
			label = parent.Parent().Find(selector).First()
		}
		if text := shortText(label); text != "" {
			return text
		}
	}
	return ""
}

func shortText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	text := strings.TrimSpace(sel.Text())
	if utf8.RuneCountInString(text) >= maxLabelLength {
		return ""
	}
	return text
}

// IsLikelyOpenQuestion reports whether an input field asks for free-form
// prose, judged from its attributes, its resolved label and the text around it.
func IsLikelyOpenQuestion(field *goquery.Selection, label string) bool {
	direct := strings.ToLower(strings.Join([]string{
		field.AttrOr("name", ""),
		field.AttrOr("id", ""),
		field.AttrOr("placeholder", ""),
		field.AttrOr("aria-label", ""),
		field.AttrOr("data-label", ""),
		field.AttrOr("data-question", ""),
		field.AttrOr("data-testid", ""),
		label,
	}, " "))
	if matchesQuestion(direct) {
		return true
	}

	parent := field.Parent()
	if parent.Length() == 0 {
		return false
	}

	around := []rune(strings.ToLower(parent.Text()))
	if len(around) > parentTextWindow {
		around = around[:parentTextWindow]
	}
	if matchesQuestion(string(around)) {
		return true
	}

	if nearby := parent.Find("label").First(); nearby.Length() > 0 {
		return matchesQuestion(strings.ToLower(strings.TrimSpace(nearby.Text())))
	}

	return false
}

func matchesQuestion(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	return patterns.MatchesAny(text)
}
