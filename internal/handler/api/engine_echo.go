package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	models "LiqSweep/internal/domain/models"
	domrepo "LiqSweep/internal/domain/repository"
	"LiqSweep/internal/service/metrics"
	"LiqSweep/internal/usecase"
	xhttp "LiqSweep/pkg/http"
	xlogger "LiqSweep/pkg/logger"
	xutil "LiqSweep/pkg/util"
)

// Engine is the part of the orchestrator the API reads and steers.
type Engine interface {
	View() usecase.EngineView
	CurrentBias(n int) (usecase.BiasView, error)
	SetBiasMode(m models.BiasMode)
}

// BarsReader serves historical bars.
type BarsReader interface {
	GetBars(ctx context.Context, p usecase.GetBarsParams) (*usecase.GetBarsResult, error)
}

// EventsReader exposes the newest decision events.
type EventsReader interface {
	Recent(n int) []models.Event
}

// HealthCheck reports a dependency problem as a non-nil error.
type HealthCheck func(ctx context.Context) error

// EngineEchoHandler serves the engine's read and control endpoints.
type EngineEchoHandler struct {
	logger *xlogger.Logger
	engine Engine
	bars   BarsReader
	events EventsReader
	checks map[string]HealthCheck
}

func NewEngineEchoHandler(logger *xlogger.Logger, engine Engine, bars BarsReader, events EventsReader) *EngineEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &EngineEchoHandler{logger: logger, engine: engine, bars: bars, events: events, checks: map[string]HealthCheck{}}
}

// AddCheck registers a named dependency probe for /healthz.
func (h *EngineEchoHandler) AddCheck(name string, fn HealthCheck) {
	h.checks[name] = fn
}

func (h *EngineEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api", h.observe)
	g.GET("/state", h.State)
	g.GET("/levels", h.Levels)
	g.GET("/bias", h.Bias)
	g.POST("/bias-mode", h.SetBiasMode)
	g.GET("/proposals/last", h.LastProposal)
	g.GET("/events", h.Events)
	g.GET("/bars", h.Bars)
}

func (h *EngineEchoHandler) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		endpoint := strings.TrimPrefix(c.Path(), "/api/")
		err := next(c)
		metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if err != nil || c.Response().Status >= http.StatusBadRequest {
			metrics.APIErrors.WithLabelValues(endpoint).Inc()
		}
		return err
	}
}

func (h *EngineEchoHandler) State(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.View())
}

func (h *EngineEchoHandler) Levels(c echo.Context) error {
	req := &models.LevelsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	levels := h.engine.View().Levels
	if req.State == "" {
		return xhttp.ListResponse(c, levels, int64(len(levels)))
	}
	st, err := models.ParseLevelState(req.State)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	out := make([]models.LiquidityLevel, 0, len(levels))
	for _, l := range levels {
		if l.State == st {
			out = append(out, l)
		}
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}

func (h *EngineEchoHandler) Bias(c echo.Context) error {
	req := &models.BiasRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.engine.CurrentBias(req.N)
	if errors.Is(err, usecase.ErrNoBars) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no structure bars yet"))
	}
	if err != nil {
		h.logger.Error("bias usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineEchoHandler) SetBiasMode(c echo.Context) error {
	req := &models.BiasModeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	mode, err := models.ParseBiasMode(req.Mode)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	h.engine.SetBiasMode(mode)
	h.logger.Info("bias mode changed", xlogger.String("mode", string(mode)))
	return xhttp.SuccessResponse(c, map[string]string{"bias_mode": string(mode)})
}

func (h *EngineEchoHandler) LastProposal(c echo.Context) error {
	p := h.engine.View().LastProposal
	if p == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no proposal yet"))
	}
	return xhttp.SuccessResponse(c, p)
}

func (h *EngineEchoHandler) Events(c echo.Context) error {
	if h.events == nil {
		return xhttp.ListResponse(c, []models.Event{}, 0)
	}
	n := xutil.ParseIntDefault(c.QueryParam("n"), 50)
	evs := h.events.Recent(n)
	return xhttp.ListResponse(c, evs, int64(len(evs)))
}

func (h *EngineEchoHandler) Bars(c echo.Context) error {
	if h.bars == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("bar history is not configured"))
	}
	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, ok := xutil.ParseTime(req.From)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid from %q", req.From))
	}
	to, ok := xutil.ParseTime(req.To)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid to %q", req.To))
	}
	if from.After(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must not be after to"))
	}
	res, err := h.bars.GetBars(c.Request().Context(), usecase.GetBarsParams{
		Symbol:    h.engine.View().Symbol,
		From:      from,
		To:        to,
		Timeframe: domrepo.Timeframe(req.TF),
		Limit:     req.Limit,
	})
	if err != nil {
		h.logger.Error("bars usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("bars query failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	status := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}
