// Package monitor serves the loaded usage and identity data over HTTP.
package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nghyane/llm-mux-monitor/internal/monitor"
	"github.com/nghyane/llm-mux-monitor/internal/usage"
	"golang.org/x/time/rate"
)

// Options holds the defaults applied to requests that omit a parameter.
type Options struct {
	Window     usage.Window
	Filter     string
	RevealKeys bool
	// RefreshPerMinute bounds POST /refresh; zero or less means unlimited.
	RefreshPerMinute int
	// RefreshTimeout bounds one manual load.
	RefreshTimeout time.Duration
}

// Handler serves the monitor endpoints from a shared loader.
type Handler struct {
	loader  *monitor.Loader
	view    *monitor.View
	opts    Options
	limiter *rate.Limiter
}

// NewHandler applies defaults to opts and sizes the refresh limiter.
func NewHandler(loader *monitor.Loader, opts Options) *Handler {
	if !opts.Window.Valid() {
		opts.Window = usage.DefaultWindow
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = time.Minute
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RefreshPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RefreshPerMinute)), opts.RefreshPerMinute)
	}
	return &Handler{
		loader:  loader,
		view:    monitor.NewView(),
		opts:    opts,
		limiter: limiter,
	}
}

// Register mounts the routes on g.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/usage", h.GetUsage)
	g.GET("/summary", h.GetSummary)
	g.GET("/identity", h.GetIdentity)
	g.GET("/status", h.GetStatus)
	g.POST("/refresh", h.PostRefresh)
}

func (h *Handler) query(c *gin.Context) (usage.Window, string, bool) {
	window := h.opts.Window
	if raw, ok := c.GetQuery("window"); ok {
		w, err := usage.ParseWindow(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
			return 0, "", false
		}
		window = w
	}
	filter := h.opts.Filter
	if raw, ok := c.GetQuery("filter"); ok {
		filter = raw
	}
	return window, filter, true
}

func (h *Handler) report(c *gin.Context, details bool) {
	window, filter, ok := h.query(c)
	if !ok {
		return
	}
	snap := h.loader.State().Snapshot()
	filtered := h.view.Filtered(snap.Dataset, window, filter)
	respondOK(c, monitor.BuildReport(snap, filtered, monitor.ReportOptions{
		Window:     window,
		Filter:     filter,
		Details:    details,
		RevealKeys: h.opts.RevealKeys,
	}))
}

// GetUsage returns the filtered records grouped by API key and model.
func (h *Handler) GetUsage(c *gin.Context) { h.report(c, true) }

// GetSummary is GetUsage without the per-record details.
func (h *Handler) GetSummary(c *gin.Context) { h.report(c, false) }

// GetIdentity returns the identity map, with keys masked unless revealed.
func (h *Handler) GetIdentity(c *gin.Context) {
	snap := h.loader.State().Snapshot()
	respondOK(c, snap.Identity.Snapshot(!h.opts.RevealKeys))
}

// StatusResponse reports the load state.
type StatusResponse struct {
	Loading    bool      `json:"loading"`
	Loaded     bool      `json:"loaded"`
	Error      string    `json:"error,omitempty"`
	Generation uint64    `json:"generation"`
	LoadedAt   time.Time `json:"loaded_at,omitzero"`
	Records    int       `json:"records"`
	Keys       int       `json:"identity_keys"`
	AuthFiles  int       `json:"auth_indexes"`
}

// GetStatus reports the loader state and identity counts.
func (h *Handler) GetStatus(c *gin.Context) {
	snap := h.loader.State().Snapshot()
	keys, auths := snap.Identity.Len()
	respondOK(c, StatusResponse{
		Loading:    snap.Loading,
		Loaded:     snap.Dataset != nil,
		Error:      snap.Err,
		Generation: snap.Generation,
		LoadedAt:   snap.LoadedAt,
		Records:    snap.Dataset.RecordCount(),
		Keys:       keys,
		AuthFiles:  auths,
	})
}

// RefreshResponse describes a manual load.
type RefreshResponse struct {
	Generation uint64   `json:"generation"`
	Stale      bool     `json:"stale"`
	Error      string   `json:"error,omitempty"`
	Degraded   []string `json:"degraded,omitempty"`
}

// PostRefresh runs one load and waits for it. The load outlives a client
// disconnect so a half-finished batch is never published as a failure.
func (h *Handler) PostRefresh(c *gin.Context) {
	if !h.limiter.Allow() {
		respondError(c, http.StatusTooManyRequests, ErrCodeRateLimited, "refresh rate limit exceeded")
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.opts.RefreshTimeout)
	defer cancel()
	res := h.loader.Load(ctx)
	out := RefreshResponse{Generation: res.Generation, Stale: res.Stale, Degraded: res.Degraded}
	if res.Err != nil {
		out.Error = res.Err.Error()
		c.JSON(http.StatusBadGateway, out)
		return
	}
	respondOK(c, out)
}
