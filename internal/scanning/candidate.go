// Package scanning finds form fields that ask open-ended questions and decides
// which of them receive a fill affordance.
package scanning

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	// FieldIDAttr is stamped on every field by the in-page bridge and survives
	// rescans of the same document.
	FieldIDAttr = "data-ai-copilot-id"
	// FieldValueAttr mirrors the live value of a field at snapshot time.
	FieldValueAttr = "data-ai-copilot-value"

	customFieldMarker = "customQuestionAnswers"
	defaultQuestion   = "Open-ended question"
)

// Kind is the element family of a candidate.
type Kind string

const (
	KindTextArea Kind = "textarea"
	KindInput    Kind = "input"
	KindEditable Kind = "editable"
)

const (
	textAreaSelector = `textarea`
	inputSelector    = `input:not([type="hidden"]):not([type="submit"]):not([type="button"]):not([type="checkbox"]):not([type="radio"]):not([type="file"]):not([type="date"]):not([type="email"]):not([type="password"]):not([type="tel"]):not([type="url"]):not([type="number"])`
	editableSelector = `[contenteditable="true"]`
)

// Candidate is a field considered during one scan.
type Candidate struct {
	ID            string
	Kind          Kind
	Sel           *goquery.Selection
	Label         string
	Placeholder   string
	MaxLength     int
	IsCustomField bool
	OpenQuestion  bool
	Value         string
}

// Question is the text sent to the completion endpoint for this field.
func (c *Candidate) Question() string {
	if q := strings.TrimSpace(c.Label); q != "" {
		return q
	}
	if q := strings.TrimSpace(c.Placeholder); q != "" {
		return q
	}
	return defaultQuestion
}

// HasContent reports whether the field already holds non-blank text.
func (c *Candidate) HasContent() bool {
	return strings.TrimSpace(c.Value) != ""
}

// Candidates is the working set a scan filters down.
type Candidates struct {
	Items    []*Candidate
	Rejected []Rejection
}

// Rejection records why a candidate was dropped.
type Rejection struct {
	FieldID string `json:"field_id"`
	Kind    Kind   `json:"kind"`
	Label   string `json:"label,omitempty"`
	Filter  string `json:"filter"`
}

// Len returns the number of remaining candidates.
func (c *Candidates) Len() int {
	return len(c.Items)
}

// Exclude removes candidates for which drop returns true and returns their IDs.
func (c *Candidates) Exclude(filter string, drop func(*Candidate) bool) []string {
	kept := c.Items[:0]
	var excluded []string
	for _, item := range c.Items {
		if drop(item) {
			excluded = append(excluded, item.ID)
			c.Rejected = append(c.Rejected, Rejection{FieldID: item.ID, Kind: item.Kind, Label: item.Label, Filter: filter})
			continue
		}
		kept = append(kept, item)
	}
	c.Items = kept
	return excluded
}

func collect(doc *goquery.Document) *Candidates {
	out := &Candidates{}
	add := func(kind Kind) func(int, *goquery.Selection) {
		return func(_ int, sel *goquery.Selection) {
			out.Items = append(out.Items, newCandidate(doc, sel, kind))
		}
	}

	doc.Find(textAreaSelector).Each(add(KindTextArea))
	doc.Find(inputSelector).Each(add(KindInput))
	doc.Find(editableSelector).Each(add(KindEditable))
	return out
}

func newCandidate(doc *goquery.Document, sel *goquery.Selection, kind Kind) *Candidate {
	c := &Candidate{
		ID:          FieldID(sel),
		Kind:        kind,
		Sel:         sel,
		Label:       LabelFor(doc, sel),
		Placeholder: strings.TrimSpace(sel.AttrOr("placeholder", "")),
		Value:       fieldValue(sel, kind),
	}

	switch kind {
	case KindInput:
		c.MaxLength = maxLength(sel)
		c.IsCustomField = strings.Contains(sel.AttrOr("name", ""), customFieldMarker)
		c.OpenQuestion = IsLikelyOpenQuestion(sel, c.Label)
	case KindEditable:
		c.OpenQuestion = matchesQuestion(strings.ToLower(sel.AttrOr("aria-label", "") + " " + c.Label))
	}

	return c
}

// FieldID returns the identity of a field: the bridge-stamped id when present,
// otherwise its element path from the document root.
func FieldID(sel *goquery.Selection) string {
	if id, ok := sel.Attr(FieldIDAttr); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}

	var parts []string
	for cur := sel.First(); cur.Length() > 0; cur = cur.Parent() {
		node := cur.Get(0)
		if node.Type != html.ElementNode {
			break
		}
		parts = append(parts, fmt.Sprintf("%s:%d", node.Data, cur.Index()))
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

func fieldValue(sel *goquery.Selection, kind Kind) string {
	if v, ok := sel.Attr(FieldValueAttr); ok {
		return v
	}
	switch kind {
	case KindInput:
		return sel.AttrOr("value", "")
	default:
		return sel.Text()
	}
}

func maxLength(sel *goquery.Selection) int {
	raw := strings.TrimSpace(sel.AttrOr("maxlength", ""))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
