package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"Sniper/internal/domain/models"
	drepo "Sniper/internal/domain/repository"
	icache "Sniper/internal/service/cache"
	"Sniper/internal/service/metrics"
	"Sniper/internal/service/ratelimit"
	"Sniper/internal/usecase"
	xhttp "Sniper/pkg/http"
	"Sniper/pkg/logger"

	"github.com/labstack/echo/v4"
)

// StreamStatus reports whether the live quote feed is up.
type StreamStatus interface {
	IsConnected() bool
}

// OpsHandler exposes the read-only operational surface: the last cycle's
// shortlist, per-symbol state, recently emitted intents, the adaptive
// gate, and liveness. It never mutates pipeline state.
type OpsHandler struct {
	log      *logger.Logger
	pipeline *usecase.Pipeline
	states   *usecase.StateStore
	archive  drepo.IntentArchive // nil when archival is disabled
	bars     drepo.BarSource
	stream   StreamStatus // nil when no live feed is wired
	profiles drepo.ProfileSource

	cache icache.BytesCache
	rl    *ratelimit.Limiter
}

func NewOpsHandler(
	log *logger.Logger,
	pipeline *usecase.Pipeline,
	states *usecase.StateStore,
	archive drepo.IntentArchive,
	bars drepo.BarSource,
	stream StreamStatus,
	profiles drepo.ProfileSource,
) *OpsHandler {
	metrics.Register()
	return &OpsHandler{
		log:      log,
		pipeline: pipeline,
		states:   states,
		archive:  archive,
		bars:     bars,
		stream:   stream,
		profiles: profiles,
		rl:       ratelimit.New(),
	}
}

// SetCache enables response caching for the archive-backed endpoints.
func (h *OpsHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *OpsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	g := e.Group("/api")
	g.GET("/shortlist", h.Shortlist)
	g.GET("/state/:symbol", h.State)
	g.GET("/intents/recent", h.RecentIntents)
	g.GET("/gating", h.Gating)
}

func (h *OpsHandler) Shortlist(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.OpsLatency.WithLabelValues("shortlist").Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":shortlist", 5, 2) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}
	entries := h.pipeline.Shortlist()
	if n := xhttp.ParseIntDefault(c.QueryParam("limit"), 0); n > 0 && n < len(entries) {
		entries = entries[:n]
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"bar_index": h.pipeline.BarIndex(),
		"entries":   entries,
	})
}

type setupView struct {
	Type         string    `json:"type"`
	Direction    string    `json:"direction"`
	DetectedAt   time.Time `json:"detected_at"`
	ExpiryBar    int       `json:"expiry_bar"`
	TriggerLevel float64   `json:"trigger_level"`
	Invalidation float64   `json:"invalidation"`
	NoChase      float64   `json:"no_chase"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit1  float64   `json:"take_profit_1"`
	TakeProfit2  float64   `json:"take_profit_2"`
	Confidence   float64   `json:"confidence"`
}

type stateView struct {
	Symbol           string     `json:"symbol"`
	Regime           string     `json:"regime"`
	RegimeStreak     int        `json:"regime_streak"`
	RegimeConfidence float64    `json:"regime_confidence"`
	LastSignalTime   time.Time  `json:"last_signal_time,omitempty"`
	LastBarTime      time.Time  `json:"last_bar_time,omitempty"`
	Setup            *setupView `json:"setup,omitempty"`
}

func (h *OpsHandler) State(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.OpsLatency.WithLabelValues("state").Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":state", 5, 2) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}
	symbol := strings.ToUpper(c.Param("symbol"))
	st, ok := h.states.Peek(symbol)
	if !ok {
		return xhttp.NotFoundResponse(c, "unknown symbol: "+symbol)
	}
	return xhttp.SuccessResponse(c, viewOf(st))
}

func viewOf(st *models.SymbolState) *stateView {
	v := &stateView{
		Symbol:           st.Symbol,
		Regime:           string(st.Regime),
		RegimeStreak:     st.RegimeStreak,
		RegimeConfidence: st.RegimeConfidence,
		LastSignalTime:   st.LastSignalTime,
		LastBarTime:      st.LastBarTime,
	}
	if st.Active != nil {
		core := st.Active.Core()
		v.Setup = &setupView{
			Type:         string(st.Active.Type()),
			Direction:    string(core.Direction),
			DetectedAt:   core.DetectedAt,
			ExpiryBar:    core.ExpiryBar,
			TriggerLevel: core.TriggerLevel,
			Invalidation: core.Invalidation,
			NoChase:      core.NoChase,
			StopLoss:     core.StopLoss,
			TakeProfit1:  core.TakeProfit1,
			TakeProfit2:  core.TakeProfit2,
			Confidence:   core.Confidence,
		}
	}
	return v
}

type recentIntentsRequest struct {
	Limit int `query:"limit" default:"50" validate:"min=1,max=500"`
}

func (h *OpsHandler) RecentIntents(c echo.Context) error {
	start := time.Now()
	endpoint := "intents_recent"
	defer func() { metrics.OpsLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if h.archive == nil {
		return xhttp.SuccessResponse(c, []*models.ExecutionIntent{})
	}
	req := &recentIntentsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":intents", 3, 1) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	cacheKey := "ops:intents:" + strconv.Itoa(req.Limit)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
			h.log.Warn("intents cache_get_error", logger.Error(err))
		} else if ok {
			h.log.Debug("intents cache_hit", logger.String("key", cacheKey))
			return c.JSONBlob(http.StatusOK, b)
		}
	}

	rows, err := h.archive.Recent(c.Request().Context(), req.Limit)
	if err != nil {
		metrics.OpsErrors.WithLabelValues(endpoint).Inc()
		h.log.Error("intents archive error", logger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	body := xhttp.APIResponse{
		Status:  http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    rows,
	}
	b, err := json.Marshal(body)
	if err != nil {
		metrics.OpsErrors.WithLabelValues(endpoint).Inc()
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil {
		if err := h.cache.SetBytes(cacheKey, b, 30*time.Second); err != nil {
			h.log.Warn("intents cache_set_error", logger.Error(err))
		}
	}
	return c.JSONBlob(http.StatusOK, b)
}

func (h *OpsHandler) Gating(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.OpsLatency.WithLabelValues("gating").Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":gating", 5, 2) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}
	gate := h.pipeline.Gate()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"bar_index":           h.pipeline.BarIndex(),
		"relax":               gate.Relax(),
		"regime_floor":        gate.RegimeFloor(),
		"compression_ceiling": gate.CompressionCeiling(),
	})
}

func (h *OpsHandler) Healthz(c echo.Context) error {
	ctx := c.Request().Context()
	view := map[string]interface{}{"status": "ok"}
	healthy := true

	if err := h.bars.Health(ctx); err != nil {
		view["bars"] = err.Error()
		healthy = false
	} else {
		view["bars"] = "ok"
	}
	if h.stream != nil {
		connected := h.stream.IsConnected()
		view["stream_connected"] = connected
		if !connected {
			healthy = false
		}
	}
	if !healthy {
		view["status"] = "degraded"
		return c.JSON(http.StatusServiceUnavailable, view)
	}
	return c.JSON(http.StatusOK, view)
}
