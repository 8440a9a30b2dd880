package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/jobinfo"
	"github.com/spigell/apply-copilot/internal/messaging"
)

func (s *Session) registerHandlers() {
	s.router.Handle(messaging.ActionShowButtons, s.handleShowButtons)
	s.router.Handle(messaging.ActionHideButtons, s.handleHideButtons)
	s.router.Handle(messaging.ActionRefresh, s.handleRescan)
	s.router.Handle(messaging.ActionRescan, s.handleRescan)
	s.router.Handle(messaging.ActionUpdateSettings, s.handleUpdateSettings)
	s.router.Handle(messaging.ActionGetJobInfo, s.handleGetJobInfo)
	s.router.Handle(messaging.ActionSaveJobInfo, s.handleSaveJobInfo)
}

func (s *Session) handleShowButtons(ctx context.Context, _ messaging.Message) (messaging.Response, error) {
	s.prefs.ShowButtons = true
	if err := s.page.SetAffordancesVisible(ctx, true); err != nil {
		return messaging.Response{}, fmt.Errorf("show buttons: %w", err)
	}
	s.scan()
	return messaging.Response{}, nil
}

func (s *Session) handleHideButtons(ctx context.Context, _ messaging.Message) (messaging.Response, error) {
	s.prefs.ShowButtons = false
	if err := s.page.SetAffordancesVisible(ctx, false); err != nil {
		return messaging.Response{}, fmt.Errorf("hide buttons: %w", err)
	}
	return messaging.Response{}, nil
}

func (s *Session) handleRescan(context.Context, messaging.Message) (messaging.Response, error) {
	s.scan()
	s.extract()
	return messaging.Response{}, nil
}

func (s *Session) handleUpdateSettings(ctx context.Context, msg messaging.Message) (messaging.Response, error) {
	if v, ok := msg.Bool("autoDetect"); ok {
		s.prefs.AutoDetect = v
		s.logger.Info("auto detect updated", zap.Bool("auto_detect", v))
	}
	if v, ok := msg.Bool("showButtons"); ok {
		s.logger.Info("show buttons updated", zap.Bool("show_buttons", v))
		if v {
			return s.handleShowButtons(ctx, msg)
		}
		return s.handleHideButtons(ctx, msg)
	}
	return messaging.Response{}, nil
}

func (s *Session) handleGetJobInfo(context.Context, messaging.Message) (messaging.Response, error) {
	s.extract()
	return messaging.Response{Data: map[string]any{"jobInfo": s.copyJobInfo()}}, nil
}

func (s *Session) handleSaveJobInfo(_ context.Context, msg messaging.Message) (messaging.Response, error) {
	var info jobinfo.Info
	if err := msg.Decode("jobInfo", &info); err != nil {
		return messaging.Response{}, err
	}
	if err := s.store.SaveJobInfo(info); err != nil {
		return messaging.Response{}, fmt.Errorf("save job info: %w", err)
	}
	return messaging.Response{}, nil
}
