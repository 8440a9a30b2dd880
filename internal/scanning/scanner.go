package scanning

import (
	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/page"
)

// Skip reasons reported when a scan does not look at any field.
const (
	SkipButtonsHidden  = "buttons hidden"
	SkipNotApplication = "not an application context"
	SkipNoDocument     = "no document"
)

// Request describes one scan of a document snapshot.
type Request struct {
	Doc         *page.Document
	ShowButtons bool
	HasJobInfo  bool
	Marker      *Marker
}

// Affordance is a field that gained a fill button during a scan.
type Affordance struct {
	FieldID  string `json:"field_id"`
	Kind     Kind   `json:"kind"`
	Question string `json:"question"`
	Label    string `json:"label,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// Result is the outcome of a scan.
type Result struct {
	Skipped         bool         `json:"skipped"`
	Reason          string       `json:"reason,omitempty"`
	ApplicationPage bool         `json:"application_page"`
	Tracking        bool         `json:"tracking_site"`
	Affordances     []Affordance `json:"affordances"`
	Rejected        []Rejection  `json:"rejected,omitempty"`
	Steps           []Step       `json:"steps,omitempty"`
}

// Scanner finds open-ended question fields in a document.
type Scanner struct {
	logger  *zap.Logger
	filters []Filter
}

// New creates a Scanner using the default filters.
func New(logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{logger: logger, filters: DefaultFilters()}
}

// Scan returns the fields that should gain an affordance. Fields already
// recorded in the marker are never returned twice; new ones are recorded.
func (s *Scanner) Scan(req Request) Result {
	if req.Doc == nil || req.Doc.Doc == nil {
		return Result{Skipped: true, Reason: SkipNoDocument}
	}
	if !req.ShowButtons {
		return Result{Skipped: true, Reason: SkipButtonsHidden}
	}

	sc := &Context{
		Doc:             req.Doc,
		ApplicationPage: page.IsApplicationPage(req.Doc),
		Tracking:        page.IsKnownApplicantTrackingSite(req.Doc.Hostname()),
		Marker:          req.Marker,
	}
	if sc.Marker == nil {
		sc.Marker = NewMarker()
	}

	result := Result{ApplicationPage: sc.ApplicationPage, Tracking: sc.Tracking}
	if !sc.ApplicationPage && !sc.Tracking && !req.HasJobInfo {
		result.Skipped = true
		result.Reason = SkipNotApplication
		return result
	}

	candidates := collect(req.Doc.Doc)
	result.Steps = runFilters(s.logger, sc, s.filters, candidates)
	result.Rejected = candidates.Rejected

	for _, item := range candidates.Items {
		if !sc.Marker.Mark(item.ID) {
			continue
		}
		result.Affordances = append(result.Affordances, Affordance{
			FieldID:  item.ID,
			Kind:     item.Kind,
			Question: item.Question(),
			Label:    item.Label,
			Enabled:  !item.HasContent(),
		})
	}

	if len(result.Affordances) > 0 {
		s.logger.Info("fields decorated",
			zap.String("url", req.Doc.Href()),
			zap.Int("count", len(result.Affordances)),
			zap.Int("marked", sc.Marker.Len()),
		)
	}

	return result
}
