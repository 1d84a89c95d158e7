package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rahul/seeker/internal/agent"
	"github.com/rahul/seeker/internal/store"
)

// RunStore reads archived runs.
type RunStore interface {
	GetRun(ctx context.Context, runID string) (store.Run, error)
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

type Server struct {
	Echo   *echo.Echo
	Runner agent.GoalRunner
	Runs   RunStore
}

// New builds the HTTP API. runs may be nil when no archive is configured;
// gatherer may be nil to use the default prometheus registry.
func New(runner agent.GoalRunner, runs RunStore, gatherer prometheus.Gatherer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]any{"error": msg})
		}
	}

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{Echo: e, Runner: runner, Runs: runs}
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	api.POST("/runs", s.createRun)
	api.GET("/runs", s.listRuns)
	api.GET("/runs/:id", s.getRun)
	return s
}

func (s *Server) Start(addr string) error {
	log.Printf("listening on %s", addr)
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

type runRequest struct {
	Goal string `json:"goal"`
}

type runResult struct {
	RunID string `json:"run_id"`
	Error string `json:"error,omitempty"`
}

// createRun runs a goal and streams its events as Server-Sent Events, one
// frame per event named by its kind. The stream ends with a "done" frame or,
// on a fatal error, an "error" frame. Disconnecting abandons the run.
func (s *Server) createRun(c echo.Context) error {
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Goal) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "goal is required")
	}

	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	send := func(event string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	ctx := c.Request().Context()
	runID, _, err := s.Runner.Run(ctx, req.Goal, func(e agent.Event) error {
		return send(string(e.Kind()), agent.Flatten(e))
	})
	if ctx.Err() != nil {
		log.Printf("[HTTP] client left run %s: %v", runID, err)
		return nil
	}
	if err != nil {
		return send("error", runResult{RunID: runID, Error: err.Error()})
	}
	return send("done", runResult{RunID: runID})
}

func (s *Server) listRuns(c echo.Context) error {
	if s.Runs == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "run archive disabled")
	}
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 200")
		}
		limit = n
	}
	runs, err := s.Runs.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) getRun(c echo.Context) error {
	if s.Runs == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "run archive disabled")
	}
	run, err := s.Runs.GetRun(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, run)
}
