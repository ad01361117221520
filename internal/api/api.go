// Package api serves computed price changes and service health over HTTP.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/observability"
	"tcg-price-trends/internal/storage"
)

// Limits for the top/bottom listing.
const (
	DefaultLimit = 15
	MaxLimit     = 100
)

// DBClock reports the database server time. Satisfied by *postgres.Pool.
type DBClock interface {
	Now(ctx context.Context) (time.Time, error)
}

// Options for creating the router.
type Options struct {
	Changes storage.PriceChangeStore
	DB      DBClock       // optional, enables /api/db-test
	Status  func() any    // optional, body of /status
	Metrics http.Handler  // default observability.Handler()
	Logger  *log.Logger   // default log.Default()
	Timeout time.Duration // per-request store timeout, default 10s
}

// Handler holds the dependencies of the HTTP endpoints.
type Handler struct {
	changes storage.PriceChangeStore
	db      DBClock
	status  func() any
	logger  *log.Logger
	timeout time.Duration
}

// NewRouter creates a gin engine with every route registered.
func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.Handler()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	h := &Handler{
		changes: opts.Changes,
		db:      opts.DB,
		status:  opts.Status,
		logger:  logger,
		timeout: timeout,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics))
	r.GET("/status", h.Status)

	api := r.Group("/api")
	{
		api.GET("/db-test", h.DBTest)

		changes := api.Group("/price-changes")
		{
			changes.GET("/top-bottom", h.TopBottom)
			changes.GET("/:productId", h.GetPriceChange)
		}

		// Alias kept for the existing frontend
		api.GET("/cards/top-bottom", h.TopBottom)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r
}

// TopBottom lists records ordered by a window's percent change.
// Query: window (default 30d), sort asc|desc (default desc), limit (default 15, max 100).
func (h *Handler) TopBottom(c *gin.Context) {
	window := domain.Window(strings.ToLower(c.DefaultQuery("window", string(domain.Window30D))))
	if !window.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window", "allowed": domain.Windows})
		return
	}

	sortDir := strings.ToLower(c.DefaultQuery("sort", "desc"))
	if sortDir != "asc" && sortDir != "desc" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sort must be asc or desc"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	records, err := h.changes.ListByChange(ctx, window, sortDir == "asc", limit)
	if err != nil {
		h.logger.Printf("[api] ERROR: list price changes: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch price changes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"window": window,
		"sort":   sortDir,
		"count":  len(records),
		"items":  toResponses(records),
	})
}

// GetPriceChange returns the record of one product.
func (h *Handler) GetPriceChange(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil || productID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	record, err := h.changes.GetByProductID(ctx, productID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "price change not found"})
		return
	}
	if err != nil {
		h.logger.Printf("[api] ERROR: get price change %d: %v", productID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch price change"})
		return
	}

	c.JSON(http.StatusOK, toResponse(record))
}

// DBTest returns the database server time.
func (h *Handler) DBTest(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	now, err := h.db.Now(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"time": now})
}

// Status returns the service status document.
func (h *Handler) Status(c *gin.Context) {
	if h.status == nil {
		c.JSON(http.StatusOK, gin.H{"status": "running"})
		return
	}
	c.JSON(http.StatusOK, h.status())
}

// requestLogger logs one line per request.
func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Printf("[api] %s %s %d %s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}
