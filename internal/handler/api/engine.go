package api

import (
	"context"
	"errors"
	"time"

	models "FinSqueeze/internal/domain/models"
	domrepo "FinSqueeze/internal/domain/repository"
	"FinSqueeze/internal/service/ratelimit"
	"FinSqueeze/internal/usecase"
	xhttp "FinSqueeze/pkg/http"
	xlogger "FinSqueeze/pkg/logger"
	"FinSqueeze/pkg/util"

	"github.com/labstack/echo/v4"
)

// analysisMaxAge bounds how long clients may reuse an aggregate analysis.
const analysisMaxAge = 15 * time.Second

// EngineHandler exposes the analysis engine over Echo.
type EngineHandler struct {
	logger  *xlogger.Logger
	engine  *usecase.EngineUseCase
	agg     *usecase.AggregateUseCase
	limiter *ratelimit.Limiter
}

var _ xhttp.Handler = (*EngineHandler)(nil)

func NewEngineHandler(logger *xlogger.Logger, engine *usecase.EngineUseCase, agg *usecase.AggregateUseCase, limiter *ratelimit.Limiter) *EngineHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &EngineHandler{logger: logger, engine: engine, agg: agg, limiter: limiter}
}

func (h *EngineHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	if h.limiter != nil {
		g.Use(ratelimit.Middleware(h.limiter))
	}
	g.GET("/consolidations", h.Consolidations)
	g.GET("/squeeze", h.Squeeze)
	g.GET("/backtest", h.Backtest)
	g.GET("/confidence", h.Confidence)
	g.GET("/indicators", h.Indicators)
	g.GET("/analysis", h.Analysis)
	g.DELETE("/memo/:symbol", h.InvalidateMemo)
}

func (h *EngineHandler) Consolidations(c echo.Context) error {
	req := &models.ConsolidationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := checkSpan(req.Span); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	res, err := h.engine.Consolidations(c.Request().Context(), usecase.ConsolidationParams{
		WindowParams: windowParams(req.Symbol, req.Window, req.Span, req.TF),
		MinDuration:  req.MinDuration,
		Ranked:       req.Ranked,
	})
	if err != nil {
		return h.fail(c, "consolidations", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineHandler) Squeeze(c echo.Context) error {
	p, ok, err := h.readWindow(c)
	if !ok {
		return err
	}
	res, err := h.engine.Squeeze(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, "squeeze", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineHandler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.engine.Backtest(c.Request().Context(), usecase.BacktestParams{
		Symbol:    req.Symbol,
		Years:     req.Years,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
	})
	if err != nil {
		return h.fail(c, "backtest", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineHandler) Confidence(c echo.Context) error {
	p, ok, err := h.readWindow(c)
	if !ok {
		return err
	}
	res, err := h.engine.Confidence(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, "confidence", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineHandler) Indicators(c echo.Context) error {
	p, ok, err := h.readWindow(c)
	if !ok {
		return err
	}
	res, err := h.engine.Indicators(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, "indicators", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Analysis runs the six-way aggregate. Partial failures still return 200 with errors set.
func (h *EngineHandler) Analysis(c echo.Context) error {
	p, ok, err := h.readWindow(c)
	if !ok {
		return err
	}
	res, err := h.agg.Analyze(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, "analysis", err)
	}
	return xhttp.CachedResponse(c, analysisMaxAge, res)
}

func (h *EngineHandler) InvalidateMemo(c echo.Context) error {
	req := &models.MemoRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := util.NormalizeSymbol(req.Symbol)
	n, err := h.engine.InvalidateMemo(c.Request().Context(), symbol)
	if err != nil {
		return h.fail(c, "memo", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"symbol": symbol, "invalidated": n})
}

// readWindow binds an AnalysisRequest. When ok is false the response has been written
// and err is what the handler must return.
func (h *EngineHandler) readWindow(c echo.Context) (usecase.WindowParams, bool, error) {
	req := &models.AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return usecase.WindowParams{}, false, xhttp.BadRequestResponse(c, verr)
	}
	if err := checkSpan(req.Span); err != nil {
		return usecase.WindowParams{}, false, xhttp.AppErrorResponse(c, err)
	}
	return windowParams(req.Symbol, req.Window, req.Span, req.TF), true, nil
}

func windowParams(symbol string, window int, span, tf string) usecase.WindowParams {
	return usecase.WindowParams{
		Symbol:    symbol,
		Window:    window,
		Span:      span,
		Timeframe: domrepo.NormalizeTimeframe(tf),
	}
}

func checkSpan(span string) error {
	if span == "" {
		return nil
	}
	if _, err := util.ParseSpan(span); err != nil {
		return xhttp.NewAppError("ERR_SPAN", "span", "span must look like 400d, 6w or 12h", 400).WithError(err)
	}
	return nil
}

func (h *EngineHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.logger.Error(op+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps engine errors onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	var ih *models.InsufficientHistoryError
	switch {
	case errors.As(err, &ih):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_HISTORY", err.Error()).
			WithParam("window", ih.Window).
			WithParam("required", ih.Required).
			WithError(err)
	case errors.Is(err, models.ErrInsufficientHistory):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_HISTORY", err.Error()).WithError(err)
	case errors.Is(err, models.ErrDataUnavailable):
		return xhttp.ServiceUnavailableError("ERR_DATA_UNAVAILABLE", err.Error()).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.GatewayTimeoutError("analysis timed out").WithError(err)
	default:
		return xhttp.InternalErrorf("internal error").WithError(err)
	}
}
