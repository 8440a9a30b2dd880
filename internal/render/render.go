// Package render loads a page once in a headless browser and returns the
// rendered document, for offline inspection of what the scanner and extractor
// would see.
package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/page"
	"github.com/spigell/apply-copilot/internal/scanning"
	"github.com/spigell/apply-copilot/internal/utils"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultSettle  = 3 * time.Second
)

// stampValues mirrors live field values into attributes so they survive
// serialisation.
const stampValues = `document.querySelectorAll('textarea, input, [contenteditable="true"]').forEach((el) => {
	el.setAttribute('` + scanning.FieldValueAttr + `', el.isContentEditable ? (el.innerText || '') : (el.value || ''));
}); true`

type Config struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Settle   time.Duration `mapstructure:"settle"`
	Headless bool          `mapstructure:"headless"`
	Bin      string        `mapstructure:"bin"`
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Settle < 0 {
		c.Settle = 0
	}
	return c
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.Bin != "" {
		opts = append(opts, chromedp.ExecPath(cfg.Bin))
	}
	return opts
}

// Document renders url and parses the result.
func Document(ctx context.Context, url string, cfg Config, logger *zap.Logger) (*page.Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, allocatorOptions(cfg)...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, cfg.Timeout)
	defer cancel()

	logger.Debug("rendering page", zap.String("url", url), zap.Duration("timeout", cfg.Timeout))

	var html, location string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return utils.WaitFor(ctx, cfg.Settle)
		}),
		chromedp.Evaluate(stampValues, nil),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", url, err)
	}

	logger.Info("page rendered", zap.String("url", location), zap.Int("bytes", len(html)))
	return page.NewDocument(location, html)
}
