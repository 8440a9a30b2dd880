// Package jobinfo extracts a best-effort summary of the job posting shown in
// the current document.
package jobinfo

import (
	"strings"
)

// Info is the extracted job posting summary. Every field is either a trimmed
// non-empty string or empty.
type Info struct {
	Title       string `json:"title,omitempty" mapstructure:"title"`
	Company     string `json:"company,omitempty" mapstructure:"company"`
	Description string `json:"description,omitempty" mapstructure:"description"`
}

// Normalize trims every field so whitespace-only values become empty.
func (i Info) Normalize() Info {
	return Info{
		Title:       strings.TrimSpace(i.Title),
		Company:     strings.TrimSpace(i.Company),
		Description: strings.TrimSpace(i.Description),
	}
}

// IsEmpty reports whether nothing was extracted.
func (i Info) IsEmpty() bool {
	n := i.Normalize()
	return n.Title == "" && n.Company == "" && n.Description == ""
}

// Summary renders the info for terminal display, cutting the description to
// maxDescription runes.
func (i Info) Summary(maxDescription int) string {
	dash := func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	}

	desc := i.Description
	if runes := []rune(desc); maxDescription > 0 && len(runes) > maxDescription {
		desc = string(runes[:maxDescription]) + "..."
	}

	var b strings.Builder
	b.WriteString("Title:       " + dash(i.Title) + "\n")
	b.WriteString("Company:     " + dash(i.Company) + "\n")
	b.WriteString("Description: " + dash(desc))
	return b.String()
}
