// Package browser drives a Chromium tab through go-rod and implements the page
// side of a session: snapshots, fill buttons, value commits and toasts are all
// delegated to an injected bridge script.
package browser

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/page"
	"github.com/spigell/apply-copilot/internal/scanning"
	"github.com/spigell/apply-copilot/internal/session"
)

//go:embed bridge.js
var bridgeJS string

const (
	bindingName = "aiCopilotEmit"
	eventBuffer = 256
)

var ErrBridgeMissing = errors.New("page bridge is not installed")

// Config selects how the browser is obtained. ControlURL connects to an already
// running browser and takes precedence over launching one.
type Config struct {
	ControlURL  string `mapstructure:"control-url"`
	Bin         string `mapstructure:"bin"`
	Headless    bool   `mapstructure:"headless"`
	UserDataDir string `mapstructure:"user-data-dir"`
}

type Browser struct {
	logger   *zap.Logger
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// Launch connects to a browser, starting one when no control URL is given.
func Launch(ctx context.Context, cfg Config, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Browser{logger: logger}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		if cfg.UserDataDir != "" {
			l = l.UserDataDir(cfg.UserDataDir)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		b.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		b.cleanup()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	b.browser = browser

	logger.Info("browser connected", zap.String("control_url", controlURL), zap.Bool("launched", b.launcher != nil))
	return b, nil
}

// Open creates a tab with the bridge installed, forwards bridge events to
// handler and navigates to url.
func (b *Browser) Open(ctx context.Context, url string, handler func(session.Event)) (*Page, error) {
	rp, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	p := &Page{
		page:   rp,
		logger: b.logger.With(zap.String("target", string(rp.TargetID))),
		events: make(chan session.Event, eventBuffer),
	}

	stop, err := rp.Expose(bindingName, func(j gson.JSON) (interface{}, error) {
		p.enqueue(decodeEvent(j))
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("expose binding: %w", err)
	}
	p.stops = append(p.stops, stop)

	remove, err := rp.EvalOnNewDocument(bridgeJS)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("install bridge: %w", err)
	}
	p.stops = append(p.stops, remove)

	go p.forward(ctx, handler)

	if err := rp.Context(ctx).Navigate(url); err != nil {
		p.Close()
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}

	p.logger.Info("page opened", zap.String("url", url))
	return p, nil
}

func (b *Browser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	b.cleanup()
	return err
}

func (b *Browser) cleanup() {
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
}

// Page is one browser tab.
type Page struct {
	page   *rod.Page
	logger *zap.Logger
	events chan session.Event
	stops  []func() error
}

var _ session.Page = (*Page)(nil)

// Close removes the bridge hooks. The tab itself stays open.
func (p *Page) Close() {
	for _, stop := range p.stops {
		if err := stop(); err != nil {
			p.logger.Debug("failed to remove page hook", zap.Error(err))
		}
	}
	p.stops = nil
}

func (p *Page) enqueue(ev session.Event) {
	select {
	case p.events <- ev:
	default:
		p.logger.Warn("page event dropped", zap.String("type", ev.Type))
	}
}

func (p *Page) forward(ctx context.Context, handler func(session.Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.events:
			handler(ev)
		}
	}
}

func (p *Page) Snapshot(ctx context.Context) (*page.Document, error) {
	res, err := p.page.Context(ctx).Eval(`() => window.__aiCopilot ? window.__aiCopilot.snapshot() : null`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if res.Value.Nil() {
		return nil, ErrBridgeMissing
	}
	return page.NewDocument(str(res.Value, "url"), str(res.Value, "html"))
}

func (p *Page) AttachAffordance(ctx context.Context, a scanning.Affordance) error {
	return p.call(ctx, "attach", `(a) => window.__aiCopilot.attach(a)`, a)
}

func (p *Page) SetAffordanceState(ctx context.Context, fieldID string, state session.AffordanceState) error {
	return p.call(ctx, "set state", `(id, state) => window.__aiCopilot.setState(id, state)`, fieldID, string(state))
}

func (p *Page) SetAffordancesVisible(ctx context.Context, visible bool) error {
	return p.call(ctx, "set visibility", `(v) => window.__aiCopilot.setVisible(v)`, visible)
}

// CommitValue writes value through the native value setter and fires the
// events frameworks listen for.
func (p *Page) CommitValue(ctx context.Context, fieldID, value string) error {
	return p.call(ctx, "commit value", `(id, v) => window.__aiCopilot.commit(id, v)`, fieldID, value)
}

func (p *Page) Toast(ctx context.Context, message string) error {
	return p.call(ctx, "toast", `(m) => window.__aiCopilot.toast(m)`, message)
}

func (p *Page) call(ctx context.Context, op, js string, args ...interface{}) error {
	if _, err := p.page.Context(ctx).Eval(js, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func decodeEvent(j gson.JSON) session.Event {
	ev := session.Event{
		Type:  str(j, "type"),
		URL:   str(j, "url"),
		Field: str(j, "field"),
		Value: str(j, "value"),
	}
	if v, ok := j.Gets("added"); ok {
		ev.Added = v.Int()
	}
	return ev
}

// str reads a string member, treating absent and null members as empty.
func str(j gson.JSON, key string) string {
	v, ok := j.Gets(key)
	if !ok || v.Nil() {
		return ""
	}
	return v.Str()
}
