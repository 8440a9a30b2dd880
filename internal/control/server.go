// Package control provides the local HTTP API used to drive a running session
// and edit settings while the browser is open.
package control

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/ai"
	"github.com/spigell/apply-copilot/internal/jobinfo"
	"github.com/spigell/apply-copilot/internal/messaging"
	"github.com/spigell/apply-copilot/internal/settings"
)

const summaryDescriptionLimit = 800

// Dispatcher delivers messages to the running page session.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg messaging.Message) (messaging.Response, error)
}

// SettingsStore is the persistent settings backend.
type SettingsStore interface {
	Load() (settings.Settings, error)
	Set(values map[string]any) error
}

type Config struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	FallbackAPIKey string `mapstructure:"-"`
}

type Server struct {
	echo       *echo.Echo
	logger     *zap.Logger
	config     Config
	store      SettingsStore
	dispatcher Dispatcher
	pinger     ai.Pinger
}

// NewServer wires the routes. dispatcher may be nil when no session is running.
func NewServer(store SettingsStore, dispatcher Dispatcher, pinger ai.Pinger, logger *zap.Logger, cfg Config) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("settings store cannot be nil")
	}
	if pinger == nil {
		return nil, fmt.Errorf("connection tester cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8765
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:       e,
		logger:     logger,
		config:     cfg,
		store:      store,
		dispatcher: dispatcher,
		pinger:     pinger,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/messages", s.handleMessage)
	v1.GET("/job-info", s.handleJobInfo)
	v1.GET("/settings", s.handleGetSettings)
	v1.PUT("/settings", s.handlePutSettings)
	v1.POST("/settings/test", s.handleTestConnection)
}

type HealthResponse struct {
	Status  string `json:"status"`
	Session bool   `json:"session"`
}

// JobInfoResponse is the body of GET /api/v1/job-info.
type JobInfoResponse struct {
	JobInfo *jobinfo.Info `json:"jobInfo"`
	Summary string        `json:"summary,omitempty"`
	Source  string        `json:"source"`
}

// TestRequest overrides stored endpoint settings for a connection test.
type TestRequest struct {
	BaseURL string `json:"aiBaseURL"`
	Model   string `json:"aiModel"`
	APIKey  string `json:"apiKey"`
}

type TestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Session: s.dispatcher != nil})
}

func (s *Server) handleMessage(c echo.Context) error {
	var msg messaging.Message
	if err := c.Bind(&msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(msg.Action) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "action field is required")
	}
	if s.dispatcher == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no page session is running")
	}

	resp, err := s.dispatcher.Dispatch(c.Request().Context(), msg)
	switch {
	case errors.Is(err, messaging.ErrUnknownAction):
		return c.JSON(http.StatusBadRequest, resp)
	case err != nil:
		if resp.Error == "" {
			resp.Error = err.Error()
		}
		return c.JSON(http.StatusInternalServerError, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleJobInfo asks the session for a fresh extraction and falls back to the
// last published posting when no session answers.
func (s *Server) handleJobInfo(c echo.Context) error {
	if s.dispatcher != nil {
		resp, err := s.dispatcher.Dispatch(c.Request().Context(), messaging.Message{Action: messaging.ActionGetJobInfo})
		if err == nil {
			if info, ok := resp.Data["jobInfo"].(*jobinfo.Info); ok {
				return c.JSON(http.StatusOK, jobInfoResponse(info, "session"))
			}
		} else {
			s.logger.Debug("session did not answer job info request", zap.Error(err))
		}
	}

	current, err := s.store.Load()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, jobInfoResponse(current.CurrentJobInfo, "store"))
}

func jobInfoResponse(info *jobinfo.Info, source string) JobInfoResponse {
	out := JobInfoResponse{JobInfo: info, Source: source}
	if info != nil {
		out.Summary = info.Summary(summaryDescriptionLimit)
	}
	return out
}

func (s *Server) handleGetSettings(c echo.Context) error {
	current, err := s.store.Load()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, current.Masked())
}

func (s *Server) handlePutSettings(c echo.Context) error {
	var values map[string]any
	if err := c.Bind(&values); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	current, err := s.store.Load()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// A masked key echoed back from GET is not a new key.
	if key, ok := values[settings.KeyAPIKey].(string); ok && current.APIKey != "" && key == settings.MaskKey(current.APIKey) {
		delete(values, settings.KeyAPIKey)
	}

	if err := s.store.Set(values); err != nil {
		if errors.Is(err, settings.ErrUnknownKey) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	s.notify(c.Request().Context(), values)

	updated, err := s.store.Load()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, updated.Masked())
}

// notify tells the session about preference changes it keeps in memory.
// Delivery failures are logged only.
func (s *Server) notify(ctx context.Context, values map[string]any) {
	if s.dispatcher == nil {
		return
	}

	var msgs []messaging.Message
	if v, ok := values[settings.KeyAutoDetect].(bool); ok {
		msgs = append(msgs, messaging.Message{
			Action:  messaging.ActionUpdateSettings,
			Payload: map[string]any{settings.KeyAutoDetect: v},
		})
	}
	if v, ok := values[settings.KeyShowButtons].(bool); ok {
		action := messaging.ActionHideButtons
		if v {
			action = messaging.ActionShowButtons
		}
		msgs = append(msgs, messaging.Message{Action: action})
	}

	for _, msg := range msgs {
		if _, err := s.dispatcher.Dispatch(ctx, msg); err != nil {
			s.logger.Warn("failed to notify session", zap.String("action", msg.Action), zap.Error(err))
		}
	}
}

// handleTestConnection pings the endpoint and saves the tested values when the
// endpoint answers.
func (s *Server) handleTestConnection(c echo.Context) error {
	var body TestRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	current, err := s.store.Load()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	req := ai.Request{
		BaseURL: firstNonEmpty(body.BaseURL, current.AIBaseURL, settings.DefaultAIBaseURL),
		Model:   firstNonEmpty(body.Model, current.AIModel, settings.DefaultAIModel),
		APIKey:  firstNonEmpty(body.APIKey, current.APIKey, s.config.FallbackAPIKey),
	}
	if req.APIKey == "" {
		return c.JSON(http.StatusBadRequest, TestResponse{Message: "Please enter an API key"})
	}

	if err := s.pinger.Ping(c.Request().Context(), req); err != nil {
		return c.JSON(http.StatusBadGateway, TestResponse{Message: "Connection failed: " + err.Error()})
	}

	values := map[string]any{
		settings.KeyAIBaseURL: req.BaseURL,
		settings.KeyAIModel:   req.Model,
	}
	if strings.TrimSpace(body.APIKey) != "" {
		values[settings.KeyAPIKey] = strings.TrimSpace(body.APIKey)
	}
	if err := s.store.Set(values); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, TestResponse{Success: true, Message: "Connection successful! Settings saved."})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start blocks serving the API until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting control api", zap.String("addr", s.Addr()))
	if err := s.echo.Start(s.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down control api")
	return s.echo.Shutdown(ctx)
}
