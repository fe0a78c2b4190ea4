package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/service/metrics"
	"CoinPull/internal/service/ratelimit"
	"CoinPull/internal/usecase"
	xhttp "CoinPull/pkg/http"
	xlogger "CoinPull/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Analysis is the use case surface served over HTTP.
type Analysis interface {
	Refresh(ctx context.Context, req models.RefreshRequest) (string, error)
	Snapshot() (*models.Snapshot, error)
	Report(ctx context.Context) (models.Report, string, error)
	Status() models.AcquisitionStatus
	Hub() *usecase.ProgressHub
}

// AnalysisHandler exposes acquisitions and their results.
type AnalysisHandler struct {
	logger   *xlogger.Logger
	svc      Analysis
	rl       *ratelimit.Limiter
	upgrader websocket.Upgrader
}

func NewAnalysisHandler(logger *xlogger.Logger, svc Analysis, rl *ratelimit.Limiter) *AnalysisHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &AnalysisHandler{
		logger: logger,
		svc:    svc,
		rl:     rl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *AnalysisHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/refresh", h.Refresh)
	g.GET("/snapshot", h.Snapshot)
	g.GET("/report", h.Report)
	g.GET("/forecasts", h.Forecasts)
	g.GET("/assets", h.Assets)
	g.GET("/top-movers", h.TopMovers)
	g.GET("/status", h.Status)
	g.GET("/progress/ws", h.ProgressWS)
}

type refreshResponse struct {
	AttemptID string `json:"attempt_id"`
	Mode      string `json:"mode"`
	Horizon   int    `json:"horizon"`
}

func (h *AnalysisHandler) Refresh(c echo.Context) error {
	defer observe("refresh", time.Now())

	if h.rl != nil {
		key := c.RealIP()
		if !h.rl.Allow(key) {
			wait := h.rl.RetryAfter(key)
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)+1))
			return h.fail(c, "refresh", xhttp.TooManyRequestsError("Too many refresh requests, slow down"))
		}
	}

	req := &models.RefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("refresh", "ERR_BAD_REQUEST").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	id, err := h.svc.Refresh(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "refresh", toAppError(err))
	}
	h.logger.Info("refresh accepted",
		xlogger.String("attempt_id", id),
		xlogger.String("mode", req.Mode),
		xlogger.Int("horizon", req.Horizon))
	return xhttp.AcceptedResponse(c, refreshResponse{AttemptID: id, Mode: req.Mode, Horizon: req.Horizon})
}

func (h *AnalysisHandler) Snapshot(c echo.Context) error {
	defer observe("snapshot", time.Now())
	snap, err := h.svc.Snapshot()
	if err != nil {
		return h.fail(c, "snapshot", toAppError(err))
	}
	return xhttp.SuccessResponse(c, snap)
}

type reportResponse struct {
	AttemptID string        `json:"attempt_id"`
	Report    models.Report `json:"report"`
}

func (h *AnalysisHandler) Report(c echo.Context) error {
	defer observe("report", time.Now())
	rep, id, err := h.svc.Report(c.Request().Context())
	if err != nil {
		return h.fail(c, "report", toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, reportResponse{AttemptID: id, Report: rep})
}

func (h *AnalysisHandler) Forecasts(c echo.Context) error {
	defer observe("forecasts", time.Now())
	snap, err := h.svc.Snapshot()
	if err != nil {
		return h.fail(c, "forecasts", toAppError(err))
	}
	return xhttp.ListResponse(c, snap.Forecasts, int64(len(snap.Forecasts)))
}

func (h *AnalysisHandler) Assets(c echo.Context) error {
	defer observe("assets", time.Now())
	snap, err := h.svc.Snapshot()
	if err != nil {
		return h.fail(c, "assets", toAppError(err))
	}
	return xhttp.ListResponse(c, snap.Batch.Assets, int64(snap.Batch.Len()))
}

func (h *AnalysisHandler) TopMovers(c echo.Context) error {
	defer observe("top_movers", time.Now())
	req := &models.TopMoversRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("top_movers", "ERR_BAD_REQUEST").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, err := h.svc.Snapshot()
	if err != nil {
		return h.fail(c, "top_movers", toAppError(err))
	}
	movers := snap.Report.TopMovers
	if len(movers) > req.Limit {
		movers = movers[:req.Limit]
	}
	return xhttp.ListResponse(c, movers, int64(len(movers)))
}

func (h *AnalysisHandler) Status(c echo.Context) error {
	defer observe("status", time.Now())
	return xhttp.SuccessResponse(c, h.svc.Status())
}

func (h *AnalysisHandler) fail(c echo.Context, endpoint string, appErr *xhttp.AppError) error {
	metrics.APIErrors.WithLabelValues(endpoint, appErr.Code).Inc()
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(endpoint+" failed", xlogger.Error(appErr))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.Is(err, models.ErrNoSnapshot):
		appErr = xhttp.NotFoundError("No snapshot available yet. Trigger POST /api/refresh first.")
	case errors.Is(err, models.ErrBusy):
		appErr = xhttp.ConflictError(models.UserMessage(err))
	case errors.Is(err, models.ErrConnectivity):
		appErr = xhttp.ServiceUnavailableError(models.UserMessage(err))
	default:
		appErr = xhttp.InternalError(models.UserMessage(err))
	}
	return appErr.WithError(err)
}
