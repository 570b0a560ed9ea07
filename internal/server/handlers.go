package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/errors"
	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/logger"
	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/search"
)

// Handler exposes the search controller over HTTP.
type Handler struct {
	controller *search.Controller
	logger     *logger.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(controller *search.Controller, log *logger.Logger) *Handler {
	return &Handler{
		controller: controller,
		logger:     log,
	}
}

// StartSearch handles POST /api/search. Accepts a JSON search request and
// starts a run; exactly one run may be in flight at a time.
func (h *Handler) StartSearch(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("search_handler")

	var req search.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("invalid search request body", slog.String("error", err.Error()))
		apierrors.AbortWithBadRequest(c, "Invalid request body: "+err.Error(), nil)
		return
	}

	searchID, err := h.controller.Start(req)
	if err != nil {
		if errors.Is(err, search.ErrSearchActive) {
			log.Warn("search rejected, another run in flight")
			apierrors.AbortWithConflict(c, "A search is already in progress", nil)
			return
		}
		log.Warn("search request rejected", slog.String("error", err.Error()))
		apierrors.AbortWithBadRequest(c, err.Error(), nil)
		return
	}

	log.Info("search accepted",
		slog.String("search_id", searchID),
		slog.String("query", req.Query))
	c.JSON(http.StatusAccepted, gin.H{"searchId": searchID})
}

// CancelSearch handles POST /api/search/cancel. Idempotent: cancelling with
// no run in flight still returns 200.
func (h *Handler) CancelSearch(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("search_handler")

	h.controller.Cancel()

	log.Info("cancel requested")
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// SearchState handles GET /api/search/state and returns the current
// session snapshot.
func (h *Handler) SearchState(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Snapshot())
}

// SearchEvents handles GET /api/search/events: an SSE stream of session
// snapshots. Each snapshot is cumulative, so a client can join at any time
// and render from the first frame.
func (h *Handler) SearchEvents(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("events_handler")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		apierrors.AbortWithInternal(c, "Streaming unsupported", nil)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	sub := h.controller.Subscribe(c.Request.Context())
	defer h.controller.Unsubscribe(sub.ID)

	log.Info("subscriber connected", slog.String("subscriber_id", sub.ID))

	for {
		select {
		case <-c.Request.Context().Done():
			log.Info("subscriber disconnected", slog.String("subscriber_id", sub.ID))
			return
		case <-sub.Done():
			return
		case snap := <-sub.Ch:
			payload, err := json.Marshal(snap)
			if err != nil {
				log.Error("failed to encode snapshot", slog.String("error", err.Error()))
				continue
			}
			if _, err := c.Writer.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
				log.Info("subscriber write failed, closing",
					slog.String("subscriber_id", sub.ID),
					slog.String("error", err.Error()))
				return
			}
			flusher.Flush()
		}
	}
}

// Health handles GET /api/health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"instance_id": logger.GetInstanceID(),
		"active":      h.controller.Active(),
	})
}
