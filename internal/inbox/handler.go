package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"nest/internal/constants"
	"nest/internal/logger"
	apperrors "nest/pkg/errors"
	"nest/pkg/logging"
)

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	status := apperrors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	}
	_ = c.Error(err)
	c.JSON(status, apperrors.ToErrorResponse(err))
}

type HandlerConfig struct {
	RequestTimeout time.Duration
	// MaxLimit bounds ?limit on event listings. Zero means constants.MaxLimit.
	MaxLimit       int
}

type Handler struct {
	BaseHandler
	pipeline *IngestPipeline
	cfg      HandlerConfig
}

func NewHandler(service Service, pipeline *IngestPipeline, cfg HandlerConfig, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
		pipeline: pipeline,
		cfg:      cfg,
	}
}

// RegisterIngestRoutes mounts the public capture surface. Any method is
// accepted at /b/:bin_id and below it.
func (h *Handler) RegisterIngestRoutes(router gin.IRouter, middleware ...gin.HandlerFunc) {
	b := router.Group("/b", middleware...)
	{
		b.Any("/:bin_id", h.Ingest)
		b.Any("/:bin_id/*path", h.Ingest)
	}
}

// RegisterAdminRoutes mounts the bearer-token protected API.
func (h *Handler) RegisterAdminRoutes(router gin.IRouter, auth gin.HandlerFunc) {
	v1 := router.Group("/api/v1", auth)
	{
		bins := v1.Group("/bins")
		{
			bins.POST("", h.CreateBin)
			bins.GET("", h.ListBins)
			bins.GET("/:bin_id", h.GetBin)
			bins.GET("/:bin_id/events", h.ListEvents)
		}

		v1.GET("/events/:event_id", h.GetEvent)
	}
}

// Ingest godoc
// @Summary      Capture a request
// @Description  Stores any request sent to a bin's ingest URL
// @Tags         ingest
// @Accept       */*
// @Produce      json
// @Param        bin_id  path      string  true  "Bin ID"
// @Success      200     {object}  IngestResponse
// @Failure      404     {object}  errors.ErrorResponse
// @Failure      413     {object}  errors.ErrorResponse
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /b/{bin_id} [post]
func (h *Handler) Ingest(c *gin.Context) {
	ctx := c.Request.Context()
	if h.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.RequestTimeout)
		defer cancel()
	}

	binID := c.Param("bin_id")
	ctx = logging.WithBinID(ctx, binID)

	header := c.Request.Header.Clone()
	if header.Get("Host") == "" && c.Request.Host != "" {
		header.Set("Host", c.Request.Host)
	}

	result, err := h.pipeline.Ingest(ctx, IngestRequest{
		BinID:         binID,
		Method:        c.Request.Method,
		Path:          strings.TrimPrefix(c.Param("path"), "/"),
		Query:         c.Request.URL.Query(),
		Header:        header,
		ContentLength: c.Request.ContentLength,
		Body:          c.Request.Body,
		RemoteIP:      ClientIP(c.Request),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if rejection := result.Err(binID); rejection != nil {
		if result.Status == IngestPayloadTooLarge {
			// Unread body bytes would otherwise be parsed as the next request.
			c.Header("Connection", "close")
		}
		h.HandleError(c, rejection)
		return
	}

	c.JSON(http.StatusOK, IngestResponse{OK: true, EventID: result.Event.ID})
}

// CreateBin godoc
// @Summary      Create a bin
// @Description  Creates a bin with an optional name
// @Tags         bins
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        bin  body      CreateBinRequest  false  "Bin data"
// @Success      201  {object}  BinResponse
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      401  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /api/v1/bins [post]
func (h *Handler) CreateBin(c *gin.Context) {
	var req CreateBinRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.HandleError(c, apperrors.ErrValidation.WithMessage("invalid request body").WithCause(err))
		return
	}

	bin, err := h.Service.CreateBin(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bin)
}

// ListBins godoc
// @Summary      List bins
// @Description  Lists all bins, newest first
// @Tags         bins
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  BinListResponse
// @Failure      401  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /api/v1/bins [get]
func (h *Handler) ListBins(c *gin.Context) {
	bins, err := h.Service.ListBins(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, bins)
}

// GetBin godoc
// @Summary      Get a bin
// @Tags         bins
// @Produce      json
// @Security     BearerAuth
// @Param        bin_id  path      string  true  "Bin ID"
// @Success      200     {object}  BinResponse
// @Failure      401     {object}  errors.ErrorResponse
// @Failure      404     {object}  errors.ErrorResponse
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /api/v1/bins/{bin_id} [get]
func (h *Handler) GetBin(c *gin.Context) {
	binID := c.Param("bin_id")
	bin, err := h.Service.GetBin(c.Request.Context(), binID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if bin == nil {
		h.HandleError(c, apperrors.NotFound("Bin", binID))
		return
	}
	c.JSON(http.StatusOK, bin)
}

// ListEvents godoc
// @Summary      List events of a bin
// @Description  Lists captured events, newest first
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        bin_id  path      string  true   "Bin ID"
// @Param        limit   query     int     false  "Maximum events to return (1-100, default 50)"
// @Success      200     {object}  EventListResponse
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      401     {object}  errors.ErrorResponse
// @Failure      404     {object}  errors.ErrorResponse
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /api/v1/bins/{bin_id}/events [get]
func (h *Handler) ListEvents(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"), h.maxLimit())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	binID := c.Param("bin_id")
	events, err := h.Service.ListEventsByBin(c.Request.Context(), binID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if events == nil {
		h.HandleError(c, apperrors.NotFound("Bin", binID))
		return
	}
	c.JSON(http.StatusOK, events)
}

// GetEvent godoc
// @Summary      Get an event
// @Description  Returns a captured request including headers and body
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        event_id  path      string  true  "Event ID"
// @Success      200       {object}  EventDetail
// @Failure      401       {object}  errors.ErrorResponse
// @Failure      404       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /api/v1/events/{event_id} [get]
func (h *Handler) GetEvent(c *gin.Context) {
	eventID := c.Param("event_id")
	event, err := h.Service.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if event == nil {
		h.HandleError(c, apperrors.NotFound("Event", eventID))
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *Handler) maxLimit() int {
	if h.cfg.MaxLimit > 0 {
		return h.cfg.MaxLimit
	}
	return constants.MaxLimit
}

// parseLimit returns 0 when limit is absent so the service default applies.
func parseLimit(raw string, upper int) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > upper {
		msg := fmt.Sprintf("limit must be an integer between 1 and %d", upper)
		return 0, apperrors.ErrValidation.WithMessage(msg).WithDetail("limit", raw)
	}
	return limit, nil
}

// ClientIP returns the first X-Forwarded-For entry, else the peer address.
// The header is trusted as sent.
func ClientIP(r *http.Request) *string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return &ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return nil
	}
	return &host
}
