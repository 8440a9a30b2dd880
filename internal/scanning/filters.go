package scanning

import (
	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/page"
)

const (
	minInputMaxLength   = 50
	shortInputMaxLength = 100
)

// Filter is a single admission step applied to scan candidates.
type Filter interface {
	Name() string
	Apply(sc *Context, c *Candidates) Step
}

// Step describes the result of executing a filter.
type Step struct {
	Name    string `json:"name"`
	Initial int    `json:"initial"`
	Dropped int    `json:"dropped"`
	Left    int    `json:"left"`
}

// Context carries the document-level facts filters decide on.
type Context struct {
	Doc             *page.Document
	ApplicationPage bool
	Tracking        bool
	Marker          *Marker
}

// DefaultFilters returns the admission steps in the order they are applied.
func DefaultFilters() []Filter {
	return []Filter{
		&processedFilter{},
		&applicationContextFilter{},
		&openQuestionFilter{},
		&lengthFilter{},
	}
}

func runFilters(logger *zap.Logger, sc *Context, filters []Filter, c *Candidates) []Step {
	steps := make([]Step, 0, len(filters))
	for _, f := range filters {
		info := f.Apply(sc, c)
		info.Name = f.Name()
		logger.Debug("filter step",
			zap.String("name", info.Name),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
		steps = append(steps, info)
	}
	return steps
}

func exclude(name string, c *Candidates, drop func(*Candidate) bool) Step {
	initial := c.Len()
	excluded := c.Exclude(name, drop)
	return Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}
}

// processedFilter drops fields that already carry an affordance.
type processedFilter struct{}

func (f *processedFilter) Name() string { return "processed" }

func (f *processedFilter) Apply(sc *Context, c *Candidates) Step {
	return exclude(f.Name(), c, func(item *Candidate) bool {
		return sc.Marker != nil && sc.Marker.Has(item.ID)
	})
}

// applicationContextFilter keeps text areas only when the page or the
// enclosing form looks like a job application.
type applicationContextFilter struct{}

func (f *applicationContextFilter) Name() string { return "application_context" }

func (f *applicationContextFilter) Apply(sc *Context, c *Candidates) Step {
	return exclude(f.Name(), c, func(item *Candidate) bool {
		if item.Kind != KindTextArea {
			return false
		}
		if sc.ApplicationPage || sc.Tracking {
			return false
		}
		return !page.IsLikelyApplicationForm(item.Sel)
	})
}

type openQuestionFilter struct{}

func (f *openQuestionFilter) Name() string { return "open_question" }

func (f *openQuestionFilter) Apply(_ *Context, c *Candidates) Step {
	return exclude(f.Name(), c, func(item *Candidate) bool {
		if item.Kind == KindTextArea {
			return false
		}
		return !item.OpenQuestion
	})
}

// lengthFilter applies maxlength admission to single-line inputs.
type lengthFilter struct{}

func (f *lengthFilter) Name() string { return "length" }

func (f *lengthFilter) Apply(_ *Context, c *Candidates) Step {
	return exclude(f.Name(), c, func(item *Candidate) bool {
		if item.Kind != KindInput {
			return false
		}
		return !admitByLength(item)
	})
}

func admitByLength(item *Candidate) bool {
	limit := item.MaxLength
	if limit > 0 && limit < minInputMaxLength {
		return false
	}
	if limit > 0 && limit < shortInputMaxLength {
		return item.OpenQuestion
	}
	return item.OpenQuestion || item.IsCustomField
}
