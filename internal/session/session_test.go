package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/filling"
	"github.com/spigell/apply-copilot/internal/jobinfo"
	"github.com/spigell/apply-copilot/internal/messaging"
	"github.com/spigell/apply-copilot/internal/page"
	"github.com/spigell/apply-copilot/internal/scanning"
	"github.com/spigell/apply-copilot/internal/settings"
)

const (
	atsURL          = "https://boards.greenhouse.io/acme/jobs/1"
	waitFor         = time.Second
	pollEvery       = 5 * time.Millisecond
	applicationHTML = `<html><head><title>Senior Backend Engineer at Acme</title></head><body>
		<h1 class="app-title">Senior Backend Engineer</h1>
		<div class="company-name">Acme</div>
		<form id="application">
			<label for="why">Why do you want to work here?</label>
			<textarea id="why" data-ai-copilot-id="why"></textarea>
		</form></body></html>`
)

type fakePage struct {
	mu        sync.Mutex
	html      string
	snapshots int
	attached  []scanning.Affordance
	states    map[string][]AffordanceState
	visible   []bool
	commits   map[string]string
	toasts    []string
}

func newFakePage(html string) *fakePage {
	return &fakePage{html: html, states: map[string][]AffordanceState{}, commits: map[string]string{}}
}

func (p *fakePage) Snapshot(context.Context) (*page.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots++
	return page.NewDocument(atsURL, p.html)
}

func (p *fakePage) AttachAffordance(_ context.Context, a scanning.Affordance) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attached = append(p.attached, a)
	return nil
}

func (p *fakePage) SetAffordanceState(_ context.Context, fieldID string, state AffordanceState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[fieldID] = append(p.states[fieldID], state)
	return nil
}

func (p *fakePage) SetAffordancesVisible(_ context.Context, visible bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = append(p.visible, visible)
	return nil
}

func (p *fakePage) CommitValue(_ context.Context, fieldID, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commits[fieldID] = value
	return nil
}

func (p *fakePage) Toast(_ context.Context, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toasts = append(p.toasts, message)
	return nil
}

func (p *fakePage) snapshotCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshots
}

func (p *fakePage) attachedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.attached)
}

func (p *fakePage) lastState(fieldID string) AffordanceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	states := p.states[fieldID]
	if len(states) == 0 {
		return ""
	}
	return states[len(states)-1]
}

func (p *fakePage) stateHistory(fieldID string) []AffordanceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]AffordanceState(nil), p.states[fieldID]...)
}

func (p *fakePage) toastMessages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.toasts...)
}

type fakeStore struct {
	mu    sync.Mutex
	prefs settings.Settings
	saved []jobinfo.Info
}

func (s *fakeStore) Load() (settings.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs, nil
}

func (s *fakeStore) SaveJobInfo(info jobinfo.Info) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, info)
	return nil
}

func (s *fakeStore) savedInfos() []jobinfo.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]jobinfo.Info(nil), s.saved...)
}

type fakeFiller struct {
	answer string
	err    error

	mu      sync.Mutex
	targets []filling.Target
	infos   []*jobinfo.Info
}

func (f *fakeFiller) Fill(ctx context.Context, target filling.Target, info *jobinfo.Info, committer filling.Committer) (string, error) {
	f.mu.Lock()
	f.targets = append(f.targets, target)
	f.infos = append(f.infos, info)
	f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}
	return f.answer, committer.CommitValue(ctx, target.FieldID, f.answer)
}

func enabledStore() *fakeStore {
	return &fakeStore{prefs: settings.Settings{AutoDetect: true, ShowButtons: true}}
}

func quietConfig() Config {
	return Config{
		Debounce:      20 * time.Millisecond,
		ScanDelays:    []time.Duration{},
		ExtractDelay:  time.Hour,
		SuccessRevert: 20 * time.Millisecond,
	}
}

func start(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// drain waits until every previously queued event has been processed.
func drain(t *testing.T, s *Session) {
	t.Helper()
	_, err := s.Dispatch(context.Background(), messaging.Message{Action: messaging.ActionUpdateSettings})
	require.NoError(t, err)
}

func TestLoadDecoratesOnceAcrossDelayedScans(t *testing.T) {
	p := newFakePage(applicationHTML)
	cfg := quietConfig()
	cfg.ScanDelays = []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 15 * time.Millisecond}
	s := New(cfg, p, enabledStore(), &fakeFiller{}, zap.NewNop())
	start(t, s)

	s.HandleEvent(Event{Type: EventLoad, URL: atsURL})

	// one scan and one extraction on load, then three delayed scans
	assert.Eventually(t, func() bool { return p.snapshotCount() >= 5 }, waitFor, pollEvery)
	assert.Equal(t, 1, p.attachedCount())

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, "why", p.attached[0].FieldID)
	assert.Equal(t, "Why do you want to work here?", p.attached[0].Question)
}

func TestMutationsAreDebounced(t *testing.T) {
	p := newFakePage(applicationHTML)
	s := New(quietConfig(), p, enabledStore(), &fakeFiller{}, nil)
	start(t, s)

	s.HandleEvent(Event{Type: EventLoad, URL: atsURL})
	drain(t, s)
	base := p.snapshotCount()

	for i := 0; i < 5; i++ {
		s.HandleEvent(Event{Type: EventMutation, Added: 1})
	}
	// mutations without added nodes never schedule a scan
	s.HandleEvent(Event{Type: EventMutation})

	assert.Eventually(t, func() bool { return p.snapshotCount() == base+1 }, waitFor, pollEvery)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, base+1, p.snapshotCount())
}

func TestAutoDetectOffSkipsWork(t *testing.T) {
	p := newFakePage(applicationHTML)
	store := &fakeStore{prefs: settings.Settings{AutoDetect: false, ShowButtons: true}}
	s := New(quietConfig(), p, store, &fakeFiller{}, nil)
	start(t, s)

	s.HandleEvent(Event{Type: EventLoad, URL: atsURL})
	s.HandleEvent(Event{Type: EventMutation, Added: 3})
	drain(t, s)
	time.Sleep(40 * time.Millisecond)

	assert.Zero(t, p.snapshotCount())
	assert.Empty(t, store.savedInfos())
}

func TestJobInfoPublishedOnLoad(t *testing.T) {
	p := newFakePage(applicationHTML)
	store := enabledStore()
	s := New(quietConfig(), p, store, &fakeFiller{}, nil)
	start(t, s)

	s.HandleEvent(Event{Type: EventLoad, URL: atsURL})

	resp, err := s.Dispatch(context.Background(), messaging.Message{Action: messaging.ActionGetJobInfo})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	info, ok := resp.Data["jobInfo"].(*jobinfo.Info)
	require.True(t, ok)
	assert.Equal(t, "Senior Backend Engineer", info.Title)
	assert.Equal(t, "Acme", info.Company)

	saved := store.savedInfos()
	require.NotEmpty(t, saved)
	assert.Equal(t, "Senior Backend Engineer", saved[0].Title)
}

func TestGetJobInfoWithoutJobPage(t *testing.T) {
	p := newFakePage(`<html><body><p>nothing here</p></body></html>`)
	store := enabledStore()
	s := New(quietConfig(), p, store, &fakeFiller{}, nil)
	start(t, s)

	s.HandleEvent(Event{Type: EventLoad, URL: atsURL})
	resp, err := s.Dispatch(context.Background(), messaging.Message{Action: messaging.ActionGetJobInfo})
	require.NoError(t, err)

	assert.Nil(t, resp.Data["jobInfo"])
	assert.Empty(t, store.savedInfos())
}

func TestInputTogglesAffordance(t *testing.T) {
	p := newFakePage(applicationHTML)
	s := New(quietConfig(), p, enabledStore(), &fakeFiller{}, nil)
	start(t, s)

	s.HandleEvent(Event{Type: EventLoad, URL: atsURL})
	s.HandleEvent(Event{Type: EventInput, Field: "why", Value: "Because"})
	drain(t, s)
	assert.Equal(t, StateFilled, p.lastState("why"))

	s.HandleEvent(Event{Type: EventInput, Field: "why", Value: "   "})
	drain(t, s)
	assert.Equal(t, StateReady, p.lastState("why"))

	s.HandleEvent(Event{Type: EventInput, Field: "unknown", Value: "x"})
	drain(t, s)
	assert.Empty(t, p.stateHistory("unknown"))
}

func TestFillSuccess(t *testing.T) {
	p := newFakePage(applicationHTML)
	filler := &fakeFiller{answer: "I enjoy building reliable systems."}
	s := New(quietConfig(), p, enabledStore(), filler, nil)
	start(t, s)

	s.HandleEvent(Event{Type: EventLoad, URL: atsURL})
	s.HandleEvent(Event{Type: EventFill, Field: "why"})

	assert.Eventually(t, func() bool {
		h := p.stateHistory("why")
		return len(h) == 3
	}, waitFor, pollEvery)
	assert.Equal(t, []AffordanceState{StateLoading, StateSuccess, StateFilled}, p.stateHistory("why"))

	p.mu.Lock()
	assert.Equal(t, "I enjoy building reliable systems.", p.commits["why"])
	p.mu.Unlock()

	filler.mu.Lock()
	defer filler.mu.Unlock()
	require.Len(t, filler.targets, 1)
	assert.Equal(t, "Why do you want to work here?", filler.targets[0].Question)
	require.NotNil(t, filler.infos[0])
	assert.Equal(t, "Acme", filler.infos[0].Company)
}

func TestFillErrorShowsNotice(t *testing.T) {
	p := newFakePage(applicationHTML)
	s := New(quietConfig(), p, enabledStore(), &fakeFiller{err: filling.ErrMissingAPIKey}, nil)
	start(t, s)

	s.HandleEvent(Event{Type: EventLoad, URL: atsURL})
	s.HandleEvent(Event{Type: EventFill, Field: "why"})

	assert.Eventually(t, func() bool { return len(p.toastMessages()) == 1 }, waitFor, pollEvery)
	assert.Equal(t, []string{filling.MissingKeyNotice}, p.toastMessages())
	assert.Equal(t, []AffordanceState{StateLoading, StateReady}, p.stateHistory("why"))
}

func TestFillOnFilledFieldIgnored(t *testing.T) {
	p := newFakePage(applicationHTML)
	filler := &fakeFiller{err: errors.New("must not be called")}
	s := New(quietConfig(), p, enabledStore(), filler, nil)
	start(t, s)

	s.HandleEvent(Event{Type: EventLoad, URL: atsURL})
	s.HandleEvent(Event{Type: EventInput, Field: "why", Value: "typed by hand"})
	s.HandleEvent(Event{Type: EventFill, Field: "why"})
	drain(t, s)

	filler.mu.Lock()
	defer filler.mu.Unlock()
	assert.Empty(t, filler.targets)
}

func TestHideAndShowButtons(t *testing.T) {
	p := newFakePage(applicationHTML)
	s := New(quietConfig(), p, enabledStore(), &fakeFiller{}, nil)
	start(t, s)

	s.HandleEvent(Event{Type: EventLoad, URL: atsURL})

	_, err := s.Dispatch(context.Background(), messaging.Message{Action: messaging.ActionHideButtons})
	require.NoError(t, err)

	// new fields are not decorated while buttons are hidden
	p.mu.Lock()
	p.html = `<html><body><form id="application">
		<label for="why">Why do you want to work here?</label><textarea id="why" data-ai-copilot-id="why"></textarea>
		<label for="more">What excites you about Acme?</label><textarea id="more" data-ai-copilot-id="more"></textarea>
		</form></body></html>`
	p.mu.Unlock()
	_, err = s.Dispatch(context.Background(), messaging.Message{Action: messaging.ActionRescan})
	require.NoError(t, err)
	assert.Equal(t, 1, p.attachedCount())

	_, err = s.Dispatch(context.Background(), messaging.Message{Action: messaging.ActionShowButtons})
	require.NoError(t, err)
	assert.Equal(t, 2, p.attachedCount())

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, []bool{false, true}, p.visible)
}

func TestUpdateSettingsTogglesAutoDetect(t *testing.T) {
	p := newFakePage(applicationHTML)
	s := New(quietConfig(), p, enabledStore(), &fakeFiller{}, nil)
	start(t, s)

	s.HandleEvent(Event{Type: EventLoad, URL: atsURL})
	_, err := s.Dispatch(context.Background(), messaging.Message{
		Action:  messaging.ActionUpdateSettings,
		Payload: map[string]any{"autoDetect": false},
	})
	require.NoError(t, err)
	base := p.snapshotCount()

	s.HandleEvent(Event{Type: EventMutation, Added: 2})
	drain(t, s)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, base, p.snapshotCount())
}

func TestUpdateSettingsShowButtons(t *testing.T) {
	p := newFakePage(applicationHTML)
	s := New(quietConfig(), p, enabledStore(), &fakeFiller{}, nil)
	start(t, s)

	s.HandleEvent(Event{Type: EventLoad, URL: atsURL})

	for _, show := range []bool{false, true} {
		_, err := s.Dispatch(context.Background(), messaging.Message{
			Action:  messaging.ActionUpdateSettings,
			Payload: map[string]any{"showButtons": show},
		})
		require.NoError(t, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, []bool{false, true}, p.visible)
}

func TestUnknownActionAndClosedSession(t *testing.T) {
	s := New(quietConfig(), newFakePage(applicationHTML), enabledStore(), &fakeFiller{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	resp, err := s.Dispatch(context.Background(), messaging.Message{Action: "explode"})
	assert.ErrorIs(t, err, messaging.ErrUnknownAction)
	assert.False(t, resp.Success)

	cancel()
	<-done

	_, err = s.Dispatch(context.Background(), messaging.Message{Action: messaging.ActionRefresh})
	assert.ErrorIs(t, err, ErrClosed)
}
