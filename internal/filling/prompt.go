package filling

import (
	_ "embed"
	"strings"

	"github.com/spigell/apply-copilot/internal/jobinfo"
	"github.com/spigell/apply-copilot/internal/utils"
)

const (
	maxDescriptionRunes = 5000
	maxUserContextRunes = 5000
)

//go:embed prompt.md
var promptTemplate string

const fallbackTemplate = "Answer the job application question below in the first person, in 2-4 sentences."

// Request is everything needed to answer one question. It is built per click.
type Request struct {
	Question    string
	JobInfo     *jobinfo.Info
	UserContext string
}

// BuildPrompt assembles the single user message sent to the completion
// endpoint. The job section is included only when a title is known.
func BuildPrompt(req Request) string {
	header := strings.TrimSpace(promptTemplate)
	if header == "" {
		header = fallbackTemplate
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")

	if req.JobInfo != nil {
		info := req.JobInfo.Normalize()
		if info.Title != "" {
			b.WriteString("Job information:\n")
			b.WriteString("Position: " + info.Title)
			if info.Company != "" {
				b.WriteString(" at " + info.Company)
			}
			b.WriteString("\n")
			if info.Description != "" {
				b.WriteString("Job description: " + utils.TruncateRunes(info.Description, maxDescriptionRunes, "") + "\n")
			}
			b.WriteString("\n")
		}
	}

	if userContext := req.UserContext; userContext != "" {
		b.WriteString("Applicant background:\n")
		b.WriteString(utils.TruncateRunes(userContext, maxUserContextRunes, "..."))
		b.WriteString("\n\n")
	}

	b.WriteString("Answer the following question (2-4 sentences, answer directly without preamble):\n")
	b.WriteString(req.Question)

	return b.String()
}
