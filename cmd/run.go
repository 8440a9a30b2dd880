package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/apply-copilot/internal/browser"
	"github.com/spigell/apply-copilot/internal/control"
	"github.com/spigell/apply-copilot/internal/filling"
	"github.com/spigell/apply-copilot/internal/jobinfo"
	"github.com/spigell/apply-copilot/internal/session"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run [url]",
	Short: "Open a browser tab and decorate application questions with fill buttons",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("headless", false, "run the browser without a window")
	runCmd.Flags().Bool("no-control", false, "do not start the local control api")
	runCmd.Flags().String("control-url", "", "connect to a running browser instead of launching one")

	viper.BindPFlag("browser.headless", runCmd.Flags().Lookup("headless"))
	viper.BindPFlag("browser.control-url", runCmd.Flags().Lookup("control-url"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the apply-copilot", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	store, err := openStore(config, logger)
	if err != nil {
		logger.Fatal("opening settings", zap.Error(err))
	}

	provider, err := newProvider(config.AI, logger)
	if err != nil {
		logger.Fatal("creating ai provider", zap.Error(err))
	}

	fallbackKey, err := fallbackAPIKey(config.AI)
	if err != nil {
		logger.Fatal("loading api key file", zap.Error(err),
			zap.String("hint", "fix ai.api-key-file or store the key with 'apply-copilot settings set apiKey <key>'"),
		)
	}

	var requestTimeout time.Duration
	if config.AI != nil {
		requestTimeout = config.AI.RequestTimeout
	}
	filler := filling.New(store, provider, filling.Config{
		FallbackAPIKey: fallbackKey,
		RequestTimeout: requestTimeout,
	}, logger.Named("filling"))

	browserCfg := config.Browser
	if browserCfg == nil {
		browserCfg = &BrowserConfig{}
	}
	b, err := browser.Launch(ctx, browser.Config{
		ControlURL:  browserCfg.ControlURL,
		Bin:         browserCfg.Bin,
		Headless:    browserCfg.Headless,
		UserDataDir: browserCfg.ProfileDir,
	}, logger.Named("browser"))
	if err != nil {
		logger.Fatal("starting browser", zap.Error(err))
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Debug("closing browser", zap.Error(err))
		}
	}()

	startURL := browserCfg.StartURL
	if len(args) == 1 {
		startURL = args[0]
	}

	// The page exists before the session, so early events wait for it.
	var sess *session.Session
	ready := make(chan struct{})
	page, err := b.Open(ctx, startURL, func(ev session.Event) {
		<-ready
		sess.HandleEvent(ev)
	})
	if err != nil {
		logger.Fatal("opening page", zap.Error(err))
	}
	defer page.Close()

	sess = session.New(sessionConfig(config.Scan), page, store, filler, logger.Named("session"))
	close(ready)

	g, gctx := errgroup.WithContext(ctx)

	if config.Control != nil && config.Control.Enabled && !mustBool(cmd, "no-control") {
		srv, err := control.NewServer(store, sess, provider, logger.Named("control"), control.Config{
			Host:           config.Control.Host,
			Port:           config.Control.Port,
			FallbackAPIKey: fallbackKey,
		})
		if err != nil {
			logger.Fatal("creating control api", zap.Error(err))
		}
		g.Go(func() error {
			if err := srv.Start(); err != nil {
				return fmt.Errorf("control api: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("session started", zap.String("url", startURL), zap.String("ai_provider", provider.Name()))

	g.Go(func() error {
		return sess.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("session stopped", zap.Error(err))
	}
	logger.Info("exiting", zap.Bool("interrupted", ctx.Err() != nil))
}

func sessionConfig(scan *ScanConfig) session.Config {
	if scan == nil {
		return session.Config{}
	}
	return session.Config{
		Debounce:     scan.Debounce,
		ScanDelays:   scan.Delays,
		ExtractDelay: scan.ExtractDelay,
		Extractor:    jobinfo.Config{GenericContainerMinLength: scan.GenericContainerMinLength},
	}
}

func mustBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false
	}
	return v
}
