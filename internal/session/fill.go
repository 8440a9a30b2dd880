package session

import (
	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/filling"
	"github.com/spigell/apply-copilot/internal/logger"
)

// fill starts an asynchronous fill for fieldID. Clicks on busy or already
// filled fields are ignored.
func (s *Session) fill(fieldID string) {
	f, ok := s.fields[fieldID]
	if !ok {
		s.logger.Debug("fill requested for unknown field", zap.String("field", fieldID))
		return
	}
	if f.busy || f.hasContent {
		return
	}

	f.busy = true
	f.success = false
	s.setState(fieldID, StateLoading)
	s.logger.Info("fill requested", logger.PageFields(s.url, fieldID)...)

	gen := s.generation
	ctx := s.ctx
	target := filling.Target{FieldID: fieldID, Question: f.question}
	info := s.copyJobInfo()

	go func() {
		_, err := s.filler.Fill(ctx, target, info, s.page)
		s.post(func() { s.fillDone(gen, fieldID, err) })
	}()
}

func (s *Session) fillDone(gen uint64, fieldID string, err error) {
	if gen != s.generation {
		s.logger.Debug("dropping fill result for a previous document", zap.String("field", fieldID))
		return
	}
	f, ok := s.fields[fieldID]
	if !ok {
		return
	}
	f.busy = false

	if err != nil {
		s.logger.Warn("fill failed", append(logger.PageFields(s.url, fieldID), zap.Error(err))...)
		s.setState(fieldID, f.state())
		s.toast(filling.Notice(err))
		return
	}

	f.hasContent = true
	f.success = true
	s.setState(fieldID, StateSuccess)
	s.after(s.cfg.SuccessRevert, func() {
		f.success = false
		if !f.busy {
			s.setState(fieldID, f.state())
		}
	})
}
