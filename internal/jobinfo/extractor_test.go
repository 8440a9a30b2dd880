package jobinfo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/page"
)

func parse(t *testing.T, rawURL, html string) *page.Document {
	t.Helper()
	doc, err := page.NewDocument(rawURL, html)
	require.NoError(t, err)
	return doc
}

func TestExtractFromDocumentTitle(t *testing.T) {
	doc := parse(t, "https://boards.greenhouse.io/acme/jobs/1",
		`<html><head><title>Senior Backend Engineer at Acme Corp - Greenhouse</title></head><body></body></html>`)

	info := NewExtractor(Config{}, zap.NewNop()).Extract(doc)

	assert.Equal(t, "Senior Backend Engineer", info.Title)
	assert.Equal(t, "Acme Corp", info.Company)
	assert.Empty(t, info.Description)
}

func TestExtractTitlePrecedence(t *testing.T) {
	t.Run("platform selector wins over heading", func(t *testing.T) {
		doc := parse(t, "https://jobs.lever.co/acme/1", `<html><head><title>Acme</title></head><body>
			<h1>Staff Engineer</h1>
			<div class="posting-headline"><h2>Site Reliability Engineer</h2></div>
		</body></html>`)

		info, src := NewExtractor(Config{}, nil).ExtractWithSources(doc)
		assert.Equal(t, "Site Reliability Engineer", info.Title)
		assert.Equal(t, ".posting-headline h2", src.Title)
	})

	t.Run("banner heading is skipped", func(t *testing.T) {
		doc := parse(t, "https://acme.com/careers/1", `<html><head><title>Platform Engineer | Acme</title></head><body>
			<h1>Manage cookie preferences</h1>
		</body></html>`)

		info, src := NewExtractor(Config{}, nil).ExtractWithSources(doc)
		assert.Equal(t, "Platform Engineer", info.Title)
		assert.Equal(t, "title", src.Title)
		assert.Equal(t, "Acme", info.Company)
	})

	t.Run("og title containing apply is rejected", func(t *testing.T) {
		doc := parse(t, "https://acme.com/careers/1", `<html><head>
			<meta property="og:title" content="Apply now at Acme">
		</head><body><h1>Product Designer</h1></body></html>`)

		info := NewExtractor(Config{}, nil).Extract(doc)
		assert.Equal(t, "Product Designer", info.Title)
	})
}

func TestExtractCompany(t *testing.T) {
	doc := parse(t, "https://acme.com/careers/1", `<html><head>
		<meta property="og:site_name" content="LinkedIn">
	</head><body>
		<div class="company">Our Company</div>
		<div itemprop="hiringOrganization">Acme Company Inc</div>
	</body></html>`)

	info, src := NewExtractor(Config{}, nil).ExtractWithSources(doc)
	assert.Equal(t, "Acme Company Inc", info.Company)
	assert.Equal(t, `[itemprop="hiringOrganization"]`, src.Company)
}

func TestExtractCompanyRejectsJobBoardInTitle(t *testing.T) {
	doc := parse(t, "https://www.linkedin.com/jobs/view/1",
		`<html><head><title>Backend Engineer | LinkedIn</title></head><body></body></html>`)

	info := NewExtractor(Config{}, nil).Extract(doc)
	assert.Equal(t, "Backend Engineer", info.Title)
	assert.Empty(t, info.Company)
}

func TestExtractDescription(t *testing.T) {
	banner := "We use cookies to improve your experience on our careers site. " +
		"By continuing you agree to our use of cookies and similar technologies."
	body := strings.TrimSpace(strings.Repeat("Build reliable payment services in Go. ", 4))
	meta := "Acme is hiring engineers to build reliable payment services worldwide."

	html := `<html><head><meta name="description" content="` + meta + `"></head><body>
		<div class="job-description">` + banner + `</div>
		<main><p>` + body + `</p></main>
	</body></html>`

	t.Run("thin structural container falls through to meta", func(t *testing.T) {
		doc := parse(t, "https://acme.com/jobs/1", html)

		info, src := NewExtractor(Config{}, nil).ExtractWithSources(doc)
		assert.Equal(t, meta, info.Description)
		assert.Empty(t, src.Description)
	})

	t.Run("configurable structural minimum", func(t *testing.T) {
		doc := parse(t, "https://acme.com/jobs/1", html)

		info, src := NewExtractor(Config{GenericContainerMinLength: 120}, nil).ExtractWithSources(doc)
		assert.Equal(t, body, info.Description)
		assert.Equal(t, "main", src.Description)
	})

	t.Run("specific container wins", func(t *testing.T) {
		doc := parse(t, "https://acme.com/jobs/1", `<html><body>
			<div class="posting-body"><p>`+body+`</p></div>
		</body></html>`)

		info := NewExtractor(Config{}, nil).Extract(doc)
		assert.Equal(t, body, info.Description)
	})
}

func TestExtractNothing(t *testing.T) {
	doc := parse(t, "https://example.com/", `<html><body><p>hi</p></body></html>`)

	info := NewExtractor(Config{}, nil).Extract(doc)
	assert.True(t, info.IsEmpty())
}

func TestLooksLikeJobTitle(t *testing.T) {
	tests := []struct {
		text   string
		expect bool
	}{
		{text: "Senior Backend Engineer", expect: true},
		{text: "Head Of Growth", expect: true},
		{text: "Sign in to continue", expect: false},
		{text: "404 Not Found", expect: false},
		{text: "welcome to our page", expect: false},
		{text: "Go", expect: false},
		{text: strings.Repeat("Engineer ", 20), expect: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expect, LooksLikeJobTitle(tt.text), tt.text)
	}
}

func TestInfoNormalizeAndSummary(t *testing.T) {
	info := Info{Title: "  Engineer ", Company: "   ", Description: strings.Repeat("x", 10)}.Normalize()

	assert.Equal(t, "Engineer", info.Title)
	assert.Empty(t, info.Company)
	assert.Contains(t, info.Summary(4), "Company:     -")
	assert.Contains(t, info.Summary(4), "Description: xxxx...")
}
