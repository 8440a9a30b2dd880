// Package session runs the copilot against one browser tab: it reacts to page
// events, schedules scans and job-info extraction, answers control messages
// and drives fills. All state is owned by a single event-loop goroutine.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/filling"
	"github.com/spigell/apply-copilot/internal/jobinfo"
	"github.com/spigell/apply-copilot/internal/messaging"
	"github.com/spigell/apply-copilot/internal/scanning"
	"github.com/spigell/apply-copilot/internal/settings"
)

const (
	DefaultDebounce      = 500 * time.Millisecond
	DefaultExtractDelay  = 2 * time.Second
	DefaultSuccessRevert = 2 * time.Second
	eventBuffer          = 64
)

// DefaultScanDelays is the one-shot rescan schedule after a document load.
var DefaultScanDelays = []time.Duration{
	100 * time.Millisecond,
	500 * time.Millisecond,
	1000 * time.Millisecond,
	2000 * time.Millisecond,
	3000 * time.Millisecond,
}

// ErrClosed is returned when the session loop is no longer running.
var ErrClosed = errors.New("session is closed")

// Store is the subset of the settings store the session uses.
type Store interface {
	Load() (settings.Settings, error)
	SaveJobInfo(info jobinfo.Info) error
}

// Filler answers and commits a question.
type Filler interface {
	Fill(ctx context.Context, target filling.Target, info *jobinfo.Info, committer filling.Committer) (string, error)
}

// Config holds timing and extraction options. Zero values use defaults.
type Config struct {
	Debounce      time.Duration
	ScanDelays    []time.Duration
	ExtractDelay  time.Duration
	SuccessRevert time.Duration
	Extractor     jobinfo.Config
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.ScanDelays == nil {
		c.ScanDelays = DefaultScanDelays
	}
	if c.ExtractDelay <= 0 {
		c.ExtractDelay = DefaultExtractDelay
	}
	if c.SuccessRevert <= 0 {
		c.SuccessRevert = DefaultSuccessRevert
	}
	return c
}

type Session struct {
	cfg       Config
	logger    *zap.Logger
	page      Page
	store     Store
	filler    Filler
	scanner   *scanning.Scanner
	extractor *jobinfo.Extractor
	router    *messaging.Router

	events    chan func()
	done      chan struct{}
	closeOnce sync.Once
	ctx       context.Context

	// Owned by the loop goroutine.
	generation uint64
	url        string
	prefs      settings.Settings
	marker     *scanning.Marker
	jobInfo    *jobinfo.Info
	fields     map[string]*fieldState
	debounce   *time.Timer
	timers     []*time.Timer
}

func New(cfg Config, p Page, store Store, filler Filler, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		cfg:       cfg.withDefaults(),
		logger:    logger,
		page:      p,
		store:     store,
		filler:    filler,
		scanner:   scanning.New(logger.Named("scanner")),
		extractor: jobinfo.NewExtractor(cfg.Extractor, logger.Named("extractor")),
		router:    messaging.NewRouter(logger.Named("messaging")),
		events:    make(chan func(), eventBuffer),
		done:      make(chan struct{}),
		ctx:       context.Background(),
		marker:    scanning.NewMarker(),
		fields:    make(map[string]*fieldState),
		prefs:     settings.Settings{AutoDetect: true, ShowButtons: true},
	}
	s.registerHandlers()
	return s
}

// Run processes events until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	defer s.close()

	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return nil
		case fn := <-s.events:
			fn()
		}
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// post queues fn on the loop. It reports false once the loop has stopped.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

// HandleEvent queues a bridge event.
func (s *Session) HandleEvent(ev Event) {
	s.post(func() { s.handleEvent(ev) })
}

// Dispatch delivers msg to the session and waits for the reply.
func (s *Session) Dispatch(ctx context.Context, msg messaging.Message) (messaging.Response, error) {
	type result struct {
		resp messaging.Response
		err  error
	}
	ch := make(chan result, 1)

	if !s.post(func() {
		resp, err := s.router.Dispatch(ctx, msg)
		ch <- result{resp: resp, err: err}
	}) {
		return messaging.Response{}, ErrClosed
	}

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		return messaging.Response{}, ctx.Err()
	case <-s.done:
		return messaging.Response{}, ErrClosed
	}
}

func (s *Session) handleEvent(ev Event) {
	switch ev.Type {
	case EventLoad:
		s.load(ev.URL)
	case EventMutation:
		if ev.Added > 0 && s.prefs.AutoDetect {
			s.scheduleDebouncedScan()
		}
	case EventInput:
		s.fieldInput(ev.Field, ev.Value)
	case EventFill:
		s.fill(ev.Field)
	case EventUnload:
		s.logger.Debug("document unloaded", zap.String("url", s.url))
		s.teardown()
	default:
		s.logger.Warn("unknown page event", zap.String("type", ev.Type))
	}
}

// load starts a fresh page session for url.
func (s *Session) load(url string) {
	s.teardown()
	s.url = url
	s.marker.Reset()
	s.jobInfo = nil
	s.fields = make(map[string]*fieldState)
	s.reloadSettings()

	s.logger.Info("document loaded",
		zap.String("url", url),
		zap.Bool("auto_detect", s.prefs.AutoDetect),
		zap.Bool("show_buttons", s.prefs.ShowButtons),
	)

	if !s.prefs.AutoDetect {
		return
	}

	s.scan()
	for _, delay := range s.cfg.ScanDelays {
		s.after(delay, s.scan)
	}
	s.extract()
	s.after(s.cfg.ExtractDelay, s.extract)
}

// teardown stops pending timers and invalidates callbacks from the previous
// document.
func (s *Session) teardown() {
	s.generation++
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

// after runs fn on the loop once d elapses, unless the document changed.
func (s *Session) after(d time.Duration, fn func()) *time.Timer {
	gen := s.generation
	t := time.AfterFunc(d, func() {
		s.post(func() {
			if gen == s.generation {
				fn()
			}
		})
	})
	s.timers = append(s.timers, t)
	return t
}

func (s *Session) scheduleDebouncedScan() {
	if s.debounce != nil {
		s.debounce.Stop()
	}
	gen := s.generation
	s.debounce = time.AfterFunc(s.cfg.Debounce, func() {
		s.post(func() {
			if gen == s.generation {
				s.debounce = nil
				s.scan()
			}
		})
	})
}

func (s *Session) reloadSettings() {
	prefs, err := s.store.Load()
	if err != nil {
		s.logger.Warn("failed to load settings, keeping previous values", zap.Error(err))
		return
	}
	s.prefs = prefs
}

func (s *Session) scan() {
	doc, err := s.page.Snapshot(s.ctx)
	if err != nil {
		s.logger.Warn("snapshot failed", zap.Error(err))
		return
	}

	res := s.scanner.Scan(scanning.Request{
		Doc:         doc,
		ShowButtons: s.prefs.ShowButtons,
		HasJobInfo:  s.jobInfo != nil,
		Marker:      s.marker,
	})
	if res.Skipped {
		s.logger.Debug("scan skipped", zap.String("reason", res.Reason))
		return
	}

	for _, a := range res.Affordances {
		s.fields[a.FieldID] = &fieldState{question: a.Question, hasContent: !a.Enabled}
		if err := s.page.AttachAffordance(s.ctx, a); err != nil {
			s.logger.Warn("attach affordance failed", zap.String("field", a.FieldID), zap.Error(err))
		}
	}
}

// extract refreshes the session JobInfo. An empty extraction keeps the
// previous value.
func (s *Session) extract() {
	doc, err := s.page.Snapshot(s.ctx)
	if err != nil {
		s.logger.Warn("snapshot failed", zap.Error(err))
		return
	}

	info := s.extractor.Extract(doc)
	if info.IsEmpty() {
		return
	}

	s.jobInfo = &info
	s.logger.Info("job info extracted",
		zap.String("title", info.Title),
		zap.String("company", info.Company),
		zap.Int("description_length", len([]rune(info.Description))),
	)

	if _, err := s.router.Dispatch(s.ctx, messaging.Message{
		Action:  messaging.ActionSaveJobInfo,
		Payload: map[string]any{"jobInfo": info},
	}); err != nil {
		s.logger.Warn("publishing job info failed", zap.Error(err))
	}
}

func (s *Session) fieldInput(fieldID, value string) {
	f, ok := s.fields[fieldID]
	if !ok {
		return
	}
	f.hasContent = hasContent(value)
	if f.busy || f.success {
		return
	}
	s.setState(fieldID, f.state())
}

func (s *Session) setState(fieldID string, state AffordanceState) {
	if err := s.page.SetAffordanceState(s.ctx, fieldID, state); err != nil {
		s.logger.Warn("update affordance failed", zap.String("field", fieldID), zap.Error(err))
	}
}

func (s *Session) toast(message string) {
	if err := s.page.Toast(s.ctx, message); err != nil {
		s.logger.Warn("toast failed", zap.Error(err))
	}
}

func (s *Session) copyJobInfo() *jobinfo.Info {
	if s.jobInfo == nil {
		return nil
	}
	info := *s.jobInfo
	return &info
}
