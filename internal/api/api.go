package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketwatch/internal/crafting"
	"marketwatch/internal/domain"
	"marketwatch/internal/infra"
	"marketwatch/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PriceReader is the read side of the market cache.
type PriceReader interface {
	Get(ctx context.Context, itemID string, region domain.Region, quality domain.Quality) ([]domain.PriceRecord, error)
	State(region domain.Region) service.CacheState
}

// Calculator runs the craft and flip flows.
type Calculator interface {
	Craft(ctx context.Context, req service.CraftRequest) (*service.CraftReport, error)
	Flip(ctx context.Context, req service.FlipRequest) (*crafting.FlipResult, error)
}

// GoldQuoter returns the gold price of a region.
type GoldQuoter interface {
	Quote(ctx context.Context, region domain.Region) (infra.GoldQuote, error)
}

// IconStore returns the local path of an item icon, downloading it if needed.
type IconStore interface {
	DownloadIcon(ctx context.Context, itemID string, quality domain.Quality) (string, error)
}

// Deps are the collaborators of the HTTP API. Gold and Icons are optional.
type Deps struct {
	Prices     PriceReader
	Catalog    domain.ItemCatalog
	Calculator Calculator
	Gold       GoldQuoter
	Icons      IconStore
	Metrics    *infra.Metrics
	Regions    []domain.Region
}

type APIHandler struct {
	deps   Deps
	logger *slog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Metrics == nil {
		deps.Metrics = infra.GlobalMetrics
	}
	if len(deps.Regions) == 0 {
		deps.Regions = domain.Regions
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	SetupRoutes(r, deps)
	return r
}

// SetupRoutes registers the API on r.
func SetupRoutes(r gin.IRouter, deps Deps) *APIHandler {
	handler := &APIHandler{
		deps:   deps,
		logger: slog.Default().With("module", "api"),
	}

	r.GET("/healthz", handler.Health)
	r.GET("/metrics", handler.Metrics)

	v1 := r.Group("/v1")
	{
		v1.GET("/prices/:region/:item", handler.GetPrices)
		v1.GET("/cities/:region/:item", handler.GetCities)
		v1.POST("/craft/:region/:item", handler.Craft)
		v1.GET("/flip/:region/:item", handler.Flip)
		v1.GET("/gold/:region", handler.Gold)
		v1.GET("/premium/:region", handler.Premium)
		v1.GET("/icons/:item", handler.Icon)
	}

	return handler
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("took", time.Since(start)))
	}
}

// Health reports the lifecycle state of every cache partition.
func (h *APIHandler) Health(c *gin.Context) {
	states := make(map[string]string, len(h.deps.Regions))
	ready := true
	for _, region := range h.deps.Regions {
		s := h.deps.Prices.State(region)
		states[region.String()] = s.String()
		if s != service.StateReady {
			ready = false
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ready": ready, "regions": states})
}

func (h *APIHandler) Metrics(c *gin.Context) {
	snap := h.deps.Metrics.Snapshot()
	c.JSON(http.StatusOK, gin.H{"metrics": snap, "hit_ratio": snap.HitRatio()})
}

func (h *APIHandler) GetPrices(c *gin.Context) {
	region, ok := h.region(c)
	if !ok {
		return
	}
	item := strings.TrimSpace(c.Param("item"))

	records, err := h.deps.Prices.Get(c.Request.Context(), item, region, parseQuality(c.Query("quality")))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if raw := strings.TrimSpace(c.Query("cities")); raw != "" {
		filtered := make([]domain.PriceRecord, 0, len(records))
		for _, name := range strings.Split(raw, ",") {
			if r, ok := domain.RecordForCity(records, domain.NormalizeCity(name)); ok {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	c.JSON(http.StatusOK, gin.H{"item_id": item, "region": region.String(), "records": records})
}

func (h *APIHandler) GetCities(c *gin.Context) {
	region, ok := h.region(c)
	if !ok {
		return
	}
	item := strings.TrimSpace(c.Param("item"))
	ctx := c.Request.Context()

	records, err := h.deps.Prices.Get(ctx, item, region, domain.QualityNormal)
	if err != nil {
		h.writeError(c, err)
		return
	}

	includeBM := c.DefaultQuery("include_black_market", "true") != "false"
	resp := gin.H{"item_id": item, "region": region.String()}
	if city, ok := crafting.FindCheapestCity(records, includeBM); ok {
		resp["cheapest"] = city
	}
	if city, ok := crafting.FindMostExpensiveCity(records, includeBM); ok {
		resp["most_expensive"] = city
	}
	if h.deps.Catalog != nil {
		if city, ok := crafting.FindCraftingBonusCity(ctx, h.deps.Catalog, item); ok {
			resp["bonus_city"] = city
		}
	}
	c.JSON(http.StatusOK, resp)
}

type craftBody struct {
	CraftCity  string           `json:"craft_city"`
	SellCity   string           `json:"sell_city"`
	Resources  map[string]int64 `json:"resources"`
	ReturnRate *decimal.Decimal `json:"return_rate"`
	HasPremium bool             `json:"has_premium"`
}

func (h *APIHandler) Craft(c *gin.Context) {
	region, ok := h.region(c)
	if !ok {
		return
	}

	var body craftBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
			return
		}
	}

	craftCity, ok := optionalCity(c, body.CraftCity)
	if !ok {
		return
	}
	sellCity, ok := optionalCity(c, body.SellCity)
	if !ok {
		return
	}

	report, err := h.deps.Calculator.Craft(c.Request.Context(), service.CraftRequest{
		ItemID:     strings.TrimSpace(c.Param("item")),
		Region:     region,
		CraftCity:  craftCity,
		SellCity:   sellCity,
		Resources:  body.Resources,
		ReturnRate: body.ReturnRate,
		HasPremium: body.HasPremium,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *APIHandler) Flip(c *gin.Context) {
	region, ok := h.region(c)
	if !ok {
		return
	}
	start, ok := optionalCity(c, c.Query("city"))
	if !ok {
		return
	}

	res, err := h.deps.Calculator.Flip(c.Request.Context(), service.FlipRequest{
		ItemID:    strings.TrimSpace(c.Param("item")),
		Region:    region,
		Quality:   parseQuality(c.Query("quality")),
		StartCity: start,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *APIHandler) Gold(c *gin.Context) {
	if h.deps.Gold == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "gold prices disabled"})
		return
	}
	region, ok := h.region(c)
	if !ok {
		return
	}

	quote, err := h.deps.Gold.Quote(c.Request.Context(), region)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// Premium returns the silver cost of every premium status duration.
func (h *APIHandler) Premium(c *gin.Context) {
	if h.deps.Gold == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "gold prices disabled"})
		return
	}
	region, ok := h.region(c)
	if !ok {
		return
	}

	quote, err := h.deps.Gold.Quote(c.Request.Context(), region)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"region": region.String(), "gold_price": quote.Price, "prices": quote.PremiumPrices()})
}

func (h *APIHandler) Icon(c *gin.Context) {
	if h.deps.Icons == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "icons disabled"})
		return
	}

	path, err := h.deps.Icons.DownloadIcon(c.Request.Context(), c.Param("item"), parseQuality(c.Query("quality")))
	if err != nil {
		h.logger.Warn("Icon download failed", slog.String("item", c.Param("item")), slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "icon unavailable"})
		return
	}
	c.File(path)
}

func (h *APIHandler) region(c *gin.Context) (domain.Region, bool) {
	region, ok := domain.ParseRegion(c.Param("region"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown region: " + c.Param("region")})
		return 0, false
	}
	return region, true
}

func optionalCity(c *gin.Context, name string) (domain.City, bool) {
	if strings.TrimSpace(name) == "" {
		return "", true
	}
	city, ok := domain.ParseCity(name)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown city: " + name})
		return "", false
	}
	return city, true
}

// parseQuality accepts both "3" and "outstanding"; anything else is Normal.
func parseQuality(s string) domain.Quality {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		if q := domain.Quality(n); q.Valid() {
			return q
		}
		return domain.QualityNormal
	}
	return domain.ParseQuality(s)
}

// writeError maps the error taxonomy onto HTTP statuses.
func (h *APIHandler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var fe *domain.FetchError
	switch {
	case errors.Is(err, domain.ErrInvalidRegion), errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrCatalogLookupMiss), errors.Is(err, domain.ErrNoPriceData):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotSellable):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrMissingRecipe):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &fe):
		status = http.StatusBadGateway
		if fe.Reason == domain.FetchTimeout {
			status = http.StatusGatewayTimeout
		}
	}

	if status >= 500 {
		h.logger.Error("Request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
