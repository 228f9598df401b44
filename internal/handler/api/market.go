package api

import (
	"net/http"

	models "TwsePulse/internal/domain/models"
	"TwsePulse/internal/service/report"
	"TwsePulse/internal/usecase"
	xhttp "TwsePulse/pkg/http"
	xlogger "TwsePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MarketHandler exposes the quote, indicator, and overlap endpoints.
type MarketHandler struct {
	logger     *xlogger.Logger
	quotes     *usecase.QuoteService
	indicators *usecase.IndicatorService
	overlap    *usecase.OverlapService
	reports    *report.Formatter
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(
	logger *xlogger.Logger,
	quotes *usecase.QuoteService,
	indicators *usecase.IndicatorService,
	overlap *usecase.OverlapService,
	reports *report.Formatter,
) *MarketHandler {
	return &MarketHandler{
		logger:     logger,
		quotes:     quotes,
		indicators: indicators,
		overlap:    overlap,
		reports:    reports,
	}
}

// RegisterRoutes attaches all market routes. The /report variants serve
// notification-ready text for downstream chat relays.
func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/quotes/:symbol", h.Quote)
	g.GET("/quotes/:symbol/report", h.QuoteReport)
	g.GET("/quotes/:symbol/indicators", h.Indicators)
	g.GET("/futures", h.Futures)
	g.GET("/etf/overlap", h.Overlap)
	g.GET("/etf/ranking", h.Ranking)
	g.GET("/etf/ranking/report", h.RankingReport)
}

// Quote serves GET /api/quotes/:symbol.
func (h *MarketHandler) Quote(c echo.Context) error {
	req := &models.QuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	q, stale, err := h.quotes.Get(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("quote usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, quoteResponse(q, stale))
}

// QuoteReport serves GET /api/quotes/:symbol/report as formatted text.
func (h *MarketHandler) QuoteReport(c echo.Context) error {
	req := &models.QuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	q, _, err := h.quotes.Get(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("quote usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return c.String(http.StatusOK, h.reports.Quote(q))
}

// Futures serves GET /api/futures.
func (h *MarketHandler) Futures(c echo.Context) error {
	q, stale, err := h.quotes.Futures(c.Request().Context())
	if err != nil {
		h.logger.Error("futures usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, quoteResponse(q, stale))
}

// Indicators serves GET /api/quotes/:symbol/indicators.
func (h *MarketHandler) Indicators(c echo.Context) error {
	req := &models.IndicatorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.indicators.Compute(c.Request().Context(), req.Symbol, req.Days)
	if err != nil {
		h.logger.Error("indicator usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbol": res.Symbol,
		"stale":  res.Stale,
		"points": res.Points(),
	})
}

// Overlap serves GET /api/etf/overlap.
func (h *MarketHandler) Overlap(c echo.Context) error {
	req := &models.OverlapRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.overlap.Compute(c.Request().Context())
	if err != nil {
		h.logger.Error("overlap usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	pairs := make([]models.OverlapPairResponse, 0, len(res.Pairs))
	for _, p := range res.Pairs {
		if p.Ratio < req.Threshold {
			continue
		}
		pairs = append(pairs, models.OverlapPairResponse{
			FundA:  p.FundA,
			FundB:  p.FundB,
			Ratio:  p.Ratio,
			Shared: p.Shared,
		})
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"computedAt": res.ComputedAt,
		"pairs":      pairs,
	})
}

// Ranking serves GET /api/etf/ranking.
func (h *MarketHandler) Ranking(c echo.Context) error {
	entries, err := h.overlap.Ranking(c.Request().Context())
	if err != nil {
		h.logger.Error("ranking usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, entries)
}

// RankingReport serves GET /api/etf/ranking/report as formatted text.
func (h *MarketHandler) RankingReport(c echo.Context) error {
	entries, err := h.overlap.Ranking(c.Request().Context())
	if err != nil {
		h.logger.Error("ranking usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return c.String(http.StatusOK, h.reports.Ranking(entries))
}

func quoteResponse(q *models.Quote, stale bool) models.QuoteResponse {
	return models.QuoteResponse{
		Symbol:        q.Symbol,
		Name:          q.Name,
		Price:         q.Price,
		PrevClose:     q.PrevClose,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		Open:          q.Open,
		High:          q.High,
		Low:           q.Low,
		Volume:        q.Volume,
		AsOf:          q.AsOf.Format("2006-01-02T15:04:05Z07:00"),
		Stale:         stale,
	}
}
