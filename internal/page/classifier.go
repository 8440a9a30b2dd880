package page

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var atsDomains = []string{
	"greenhouse.io",
	"lever.co",
	"workday.com",
	"smartrecruiters.com",
	"jobvite.com",
	"taleo.net",
	"icims.com",
	"ashbyhq.com",
	"recruitee.com",
	"jazz.co",
	"hirevue.com",
	"breezyhr.com",
	"comeet.com",
	"hackerrank.com",
	"applytojob.com",
	"joblogic.com",
	"app.bamboohr.com",
	"hire.trabajando.com",
	"jobrx.io",
}

var applicationURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)apply`),
	regexp.MustCompile(`(?i)job`),
	regexp.MustCompile(`(?i)career`),
	regexp.MustCompile(`(?i)position`),
	regexp.MustCompile(`(?i)requisition`),
	regexp.MustCompile(`(?i)hiring`),
}

var formIndicatorSelectors = []string{
	`form[action*="apply"]`,
	`form[action*="submit"]`,
	`[class*="application"]`,
	`[class*="apply"]`,
	`[class*="job-form"]`,
	`[id*="application"]`,
	`[id*="apply"]`,
	`[data-qa*="apply"]`,
	`[data-qa*="application"]`,
}

var (
	formActionPattern = regexp.MustCompile(`(?i)apply|submit|job|career|application`)
	formNamePattern   = regexp.MustCompile(`(?i)apply|job|career|application|application-form`)
)

// ATSDomains returns the applicant tracking system hosts recognised by
// IsKnownApplicantTrackingSite.
func ATSDomains() []string {
	out := make([]string, len(atsDomains))
	copy(out, atsDomains)
	return out
}

// IsKnownApplicantTrackingSite reports whether hostname belongs to a known ATS.
func IsKnownApplicantTrackingSite(hostname string) bool {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if hostname == "" {
		return false
	}
	for _, domain := range atsDomains {
		if strings.Contains(hostname, domain) {
			return true
		}
	}
	return false
}

// IsApplicationPage reports whether doc looks like a job application. Known ATS
// hosts always qualify; other pages need an application-like URL plus either a
// form indicator or at least two text areas.
func IsApplicationPage(doc *Document) bool {
	if doc == nil {
		return false
	}
	if IsKnownApplicantTrackingSite(doc.Hostname()) {
		return true
	}

	href := doc.Href()
	urlMatches := false
	for _, p := range applicationURLPatterns {
		if p.MatchString(href) {
			urlMatches = true
			break
		}
	}
	if !urlMatches {
		return false
	}

	for _, selector := range formIndicatorSelectors {
		if doc.First(selector).Length() > 0 {
			return true
		}
	}

	return doc.Doc.Find("textarea").Length() >= 2
}

// IsLikelyApplicationForm reports whether the form enclosing field looks like
// an application form judging by its action, class or id.
func IsLikelyApplicationForm(field *goquery.Selection) bool {
	if field == nil {
		return false
	}
	form := field.Closest("form")
	if form.Length() == 0 {
		return false
	}

	if formActionPattern.MatchString(form.AttrOr("action", "")) {
		return true
	}

	return formNamePattern.MatchString(form.AttrOr("class", "") + " " + form.AttrOr("id", ""))
}
