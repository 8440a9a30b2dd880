package jobinfo

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/page"
)

// DefaultGenericContainerMinLength is the minimum visible text length for the
// bare section/main/article description containers.
const DefaultGenericContainerMinLength = 200

const (
	maxTitleLength          = 150
	minTitleLength          = 3
	maxCompanyLength        = 60
	maxTitleCompanyLength   = 40
	minDescriptionLength    = 100
	minMetaDescriptionLen   = 50
	boilerplateSearchWindow = 100
)

// Config tunes the extraction thresholds.
type Config struct {
	GenericContainerMinLength int
}

// Sources names the selector that produced each field, empty when the field
// came from a fallback or was not found.
type Sources struct {
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Description string `json:"description,omitempty"`
}

// strategy reads a candidate value from the first element matching selector
// and decides whether it is acceptable.
type strategy struct {
	selector string
	read     func(sel *goquery.Selection) string
	accept   func(text string) bool
}

// Extractor runs the title, company and description cascades.
type Extractor struct {
	logger  *zap.Logger
	title   []strategy
	company []strategy
	desc    []strategy
}

var (
	titleSegmentPattern = regexp.MustCompile(`(?i)^(.+?)(?:\s+[-@|]\s*|\s+at\s+)([A-Z][A-Za-z0-9\s&]+?)(?:\s*[-|]|$)`)
	titleCompanyPattern = regexp.MustCompile(`(?i)(?:\bat\b|@|\|)\s*([A-Z][A-Za-z0-9\s&.]+?)(?:\s*[-|]|$)`)
	capitalizedPattern  = regexp.MustCompile(`^([A-Z][a-z]+[\s\-]?)+$`)
)

var excludedTitleFragments = []string{
	"cookie", "consent", "accept", "reject", "manage",
	"sign in", "signin", "login", "log in", "password",
	"verify", "confirm", "email", "subscribe", "newsletter",
	"notification", "permission", "settings", "preferences",
	"error", "404", "not found", "access denied",
}

var jobTitleKeywords = []string{
	"developer", "engineer", "manager", "analyst", "designer",
	"specialist", "coordinator", "administrator", "consultant",
	"director", "lead", "senior", "junior", "associate",
	"intern", "architect", "technician", "operator", "assistant",
	"executive", "officer", "representative", "agent", "advisor",
	"strategist", "producer", "writer", "editor", "accountant",
	"attorney", "lawyer", "recruiter", "hr ", "human resources",
	"sales", "marketing", "support", "service", "project",
	"program", "product", "data", "security", "devops", "sre",
	"frontend", "backend", "fullstack", "full stack", "software",
	"web", "mobile", "app", "qa", "test", "ux", "ui",
}

var metaCompanyBrands = []string{"linkedin", "indeed", "greenhouse"}

var titleJobBoards = []string{
	"linkedin", "indeed", "glassdoor", "ziprecruiter", "monster",
	"jobboard", "greenhouse", "lever", "workday",
}

var boilerplateMarkers = []string{
	"cookie", "privacy", "terms", "login", "sign in",
	"navigation", "menu", "footer", "header", "copyright",
	"social media", "follow us", "linkedin", "twitter", "facebook",
}

var titleSelectors = []string{
	`[data-qa="job-title"]`,
	`.job-header h1`, `.job-header h2`,
	`.job-details-header h1`, `.job-title-header`,
	`.job-details-module h1`,
	`.posting-headline h2`, `.app-title`, `#job-header h1`,
	`.posting-title`, `.job-header .title`,
	`[data-automation-id="jobPostingHeader"] h1`,
	`.job-card-container h3`,
	`.jobsearch-JobInfoHeader-title`, `.jobsearch-HeaderRow`,
	`.job-title`,
	`.jobtitle`, `.position-title`,
	`.job-name`,
}

var companySelectors = []string{
	`.company-name`, `.employer-name`, `.company`, `.employer`,
	`[data-qa="company-name"]`, `.posting-categories .company`,
	`.job-company`, `[data-company]`,
}

var lateCompanySelectors = []string{
	`.job-header .company`, `.posting-headline .company`,
	`.company-card`,
	`.employer-logo + div`,
	`[data-automation-id="businessTitle"]`,
	`.company-name-header`,
	`.job-details-company-name`,
}

var descriptionSelectors = []string{
	`.job-description`, `.description`, `.job-details`, `.posting-body`,
	`#job-description`, `.content-wrapper`, `.job-detail`,
	`[data-qa="job-description"]`, `.job-description-content`,
	`.job-post`, `#job-content`,
	`.posting-content`,
	`[data-automation-id="jobDescription"]`, `.job-description-container`,
	`.job-description-text`, `.jd-container`,
	`.job-details-module`, `.job-view-controls`,
	`.jobsearch-jobDescriptionText`, `#jobDescriptionText`,
	`.ijijs`,
	`.tbd-body`,
	`.bamboohr-job-description`, `.bamboo-job-description`,
}

var structuralSelectors = []string{`section`, `main`, `article`}

var contentSelectors = []string{`[class*="content"]`, `[class*="body"]`}

// NewExtractor builds an extractor with the selector cascades in precedence
// order.
func NewExtractor(cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	minGeneric := cfg.GenericContainerMinLength
	if minGeneric <= 0 {
		minGeneric = DefaultGenericContainerMinLength
	}

	return &Extractor{
		logger:  logger,
		title:   titleStrategies(),
		company: companyStrategies(),
		desc:    descriptionStrategies(minGeneric),
	}
}

func titleStrategies() []strategy {
	out := make([]strategy, 0, len(titleSelectors)+3)
	for _, sel := range titleSelectors {
		out = append(out, strategy{selector: sel, read: elementText, accept: plainTitle})
	}
	out = append(out,
		strategy{
			selector: `meta[property="og:title"]`,
			read: func(sel *goquery.Selection) string {
				if content := strings.TrimSpace(sel.AttrOr("content", "")); content != "" {
					return content
				}
				return strings.TrimSpace(sel.AttrOr("name", ""))
			},
			accept: func(text string) bool {
				return text != "" && runeLen(text) < maxTitleLength && !strings.Contains(strings.ToLower(text), "apply")
			},
		},
		strategy{selector: `h1`, read: elementText, accept: LooksLikeJobTitle},
		strategy{
			selector: `title`,
			read: func(sel *goquery.Selection) string {
				return titleSegment(elementText(sel))
			},
			accept: plainTitle,
		},
	)
	return out
}

func companyStrategies() []strategy {
	out := make([]strategy, 0, len(companySelectors)+len(lateCompanySelectors)+2)
	for _, sel := range companySelectors {
		out = append(out, strategy{selector: sel, read: elementText, accept: plainCompany})
	}
	out = append(out, strategy{
		selector: `[itemprop="hiringOrganization"]`,
		read:     elementText,
		accept: func(text string) bool {
			return text != "" && runeLen(text) < maxCompanyLength
		},
	})
	for _, sel := range lateCompanySelectors {
		out = append(out, strategy{selector: sel, read: elementText, accept: plainCompany})
	}
	out = append(out, strategy{
		selector: `meta[property="og:site_name"]`,
		read: func(sel *goquery.Selection) string {
			return strings.TrimSpace(sel.AttrOr("content", ""))
		},
		accept: func(text string) bool {
			return text != "" && runeLen(text) < maxCompanyLength && !containsAny(strings.ToLower(text), metaCompanyBrands)
		},
	})
	return out
}

func descriptionStrategies(minGeneric int) []strategy {
	out := make([]strategy, 0, len(descriptionSelectors)+len(structuralSelectors)+len(contentSelectors))
	for _, sel := range descriptionSelectors {
		out = append(out, strategy{selector: sel, read: page.VisibleText, accept: substantialDescription})
	}
	for _, sel := range structuralSelectors {
		out = append(out, strategy{
			selector: sel,
			read:     page.VisibleText,
			accept: func(text string) bool {
				return substantialDescription(text) && runeLen(text) >= minGeneric
			},
		})
	}
	for _, sel := range contentSelectors {
		out = append(out, strategy{selector: sel, read: page.VisibleText, accept: substantialDescription})
	}
	return out
}

// Extract returns the job info found in doc.
func (e *Extractor) Extract(doc *page.Document) Info {
	info, _ := e.ExtractWithSources(doc)
	return info
}

// ExtractWithSources returns the job info and the selectors that produced it.
func (e *Extractor) ExtractWithSources(doc *page.Document) (Info, Sources) {
	var info Info
	var src Sources
	if doc == nil || doc.Doc == nil {
		return info, src
	}

	info.Title, src.Title = firstMatch(doc, e.title)
	if info.Title == "" {
		info.Title = titleFromDocumentTitle(doc.Title())
	}

	info.Company, src.Company = firstMatch(doc, e.company)
	if info.Company == "" {
		info.Company = companyFromDocumentTitle(doc.Title())
	}

	info.Description, src.Description = firstMatch(doc, e.desc)
	if info.Description == "" {
		content := strings.TrimSpace(doc.First(`meta[name="description"]`).AttrOr("content", ""))
		if runeLen(content) > minMetaDescriptionLen {
			info.Description = content
		}
	}

	info = info.Normalize()
	e.logger.Debug("extracted job info",
		zap.String("title", info.Title),
		zap.String("company", info.Company),
		zap.Int("description_length", runeLen(info.Description)),
		zap.String("title_source", src.Title),
		zap.String("company_source", src.Company),
		zap.String("description_source", src.Description),
	)

	return info, src
}

func firstMatch(doc *page.Document, strategies []strategy) (string, string) {
	for _, s := range strategies {
		sel := doc.First(s.selector)
		if sel.Length() == 0 {
			continue
		}
		text := s.read(sel)
		if s.accept(text) {
			return text, s.selector
		}
	}
	return "", ""
}

// LooksLikeJobTitle filters generic headings: it rejects banner and login
// headings and requires a role keyword or a Capitalized Words shape.
func LooksLikeJobTitle(text string) bool {
	text = strings.TrimSpace(text)
	n := runeLen(text)
	if n < minTitleLength || n > maxTitleLength {
		return false
	}

	lower := strings.ToLower(text)
	if containsAny(lower, excludedTitleFragments) {
		return false
	}

	return containsAny(lower, jobTitleKeywords) || capitalizedPattern.MatchString(text)
}

func titleSegment(title string) string {
	if m := titleSegmentPattern.FindStringSubmatch(title); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1])
	}
	return title
}

func titleFromDocumentTitle(title string) string {
	if m := titleSegmentPattern.FindStringSubmatch(title); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func companyFromDocumentTitle(title string) string {
	m := titleCompanyPattern.FindStringSubmatch(title)
	if m == nil {
		return ""
	}
	company := strings.TrimSpace(m[1])
	if company == "" || runeLen(m[1]) >= maxTitleCompanyLength {
		return ""
	}
	if containsAny(strings.ToLower(company), titleJobBoards) {
		return ""
	}
	return company
}

func plainTitle(text string) bool {
	n := runeLen(text)
	return n > minTitleLength && n < maxTitleLength
}

func plainCompany(text string) bool {
	return text != "" && runeLen(text) < maxCompanyLength && !strings.Contains(strings.ToLower(text), "company")
}

func substantialDescription(text string) bool {
	if runeLen(text) <= minDescriptionLength {
		return false
	}
	return !hasLeadingBoilerplate(strings.ToLower(text))
}

func hasLeadingBoilerplate(lower string) bool {
	for _, marker := range boilerplateMarkers {
		if idx := strings.Index(lower, marker); idx >= 0 && utf8.RuneCountInString(lower[:idx]) < boilerplateSearchWindow {
			return true
		}
	}
	return false
}

func elementText(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
