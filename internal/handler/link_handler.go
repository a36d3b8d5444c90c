package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/SergeiKhy/paylink/internal/middleware"
	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LinkHandler struct {
	service       service.LinkService
	clicks        service.ClickService
	publicBaseURL string
	logger        *zap.Logger
}

func NewLinkHandler(service service.LinkService, clicks service.ClickService, publicBaseURL string, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		service:       service,
		clicks:        clicks,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

type CreateLinkRequest struct {
	URL        string `json:"url" binding:"required,url"`
	ExpiresIn  *int   `json:"expires_in,omitempty" binding:"omitempty,gt=0"`
	CustomSlug string `json:"custom_slug,omitempty"`
}

type CreateLinkResponse struct {
	Slug      string     `json:"slug"`
	ShortURL  string     `json:"short_url"`
	TargetURL string     `json:"target_url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateLink godoc
// @Summary Create a monetized link
// @Tags links
// @Accept json
// @Produce json
// @Param X-User-ID header int true "Owner id"
// @Param request body CreateLinkRequest true "Link creation request"
// @Success 201 {object} CreateLinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	ownerID, _ := middleware.UserID(c)

	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		respondBadRequest(c, err)
		return
	}

	input := &models.CreateLinkInput{
		OwnerID:   ownerID,
		TargetURL: req.URL,
		ExpiresIn: req.ExpiresIn,
	}
	if req.CustomSlug != "" {
		input.CustomSlug = &req.CustomSlug
	}

	link, err := h.service.CreateLink(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logger, "Failed to create link", err)
		return
	}

	c.JSON(http.StatusCreated, CreateLinkResponse{
		Slug:      link.Slug,
		ShortURL:  h.publicBaseURL + "/" + link.Slug,
		TargetURL: link.TargetURL,
		ExpiresAt: link.ExpiresAt,
		CreatedAt: link.CreatedAt,
	})
}

// Redirect godoc
// @Summary Send the visitor to the engagement page
// @Tags links
// @Param slug path string true "Link slug"
// @Success 302
// @Failure 404 {object} ErrorResponse
// @Router /{slug} [get]
func (h *LinkHandler) Redirect(c *gin.Context) {
	slug := c.Param("slug")

	link, err := h.service.GetLink(c.Request.Context(), slug)
	if err != nil || !link.Active(time.Now()) {
		if err != nil && lookupError(err).status >= http.StatusInternalServerError {
			respondError(c, h.logger, "Failed to resolve link", err)
			return
		}
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found or expired",
		})
		return
	}

	// Клик засчитывается только после прохождения показов на странице вовлечения
	c.Redirect(http.StatusFound, h.publicBaseURL+"/go/"+link.Slug)
}

// DirectClick godoc
// @Summary Credit a click without the engagement flow
// @Tags links
// @Produce json
// @Param id path int true "Link id"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /api/v1/links/{id}/click [post]
func (h *LinkHandler) DirectClick(c *gin.Context) {
	linkID, ok := pathID(c, "id")
	if !ok {
		return
	}

	_, err := h.clicks.RecordDirectClick(c.Request.Context(), &models.ClickEvent{
		LinkID:    linkID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	})
	if err != nil {
		respondError(c, h.logger, "Failed to record click", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DeleteLink godoc
// @Summary Delete a link
// @Tags links
// @Produce json
// @Param slug path string true "Link slug"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{slug} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	ownerID, _ := middleware.UserID(c)
	slug := c.Param("slug")

	if err := h.service.DeleteLink(c.Request.Context(), slug, ownerID); err != nil {
		respondError(c, h.logger, "Failed to delete link", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link deleted successfully"})
}

// GetStats godoc
// @Summary Get click and earnings statistics for a link
// @Tags links
// @Produce json
// @Param slug path string true "Link slug"
// @Success 200 {object} models.LinkStats
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{slug}/stats [get]
func (h *LinkHandler) GetStats(c *gin.Context) {
	ownerID, _ := middleware.UserID(c)
	slug := c.Param("slug")

	stats, err := h.service.GetStats(c.Request.Context(), slug, ownerID)
	if err != nil {
		respondError(c, h.logger, "Failed to get stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetDailyStats godoc
// @Summary Get daily click statistics
// @Tags links
// @Produce json
// @Param slug path string true "Link slug"
// @Param days query int false "Number of days" default(7)
// @Success 200 {array} models.DailyClickStats
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{slug}/stats/daily [get]
func (h *LinkHandler) GetDailyStats(c *gin.Context) {
	ownerID, _ := middleware.UserID(c)
	slug := c.Param("slug")

	days := 7
	if d := c.Query("days"); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n >= 1 && n <= 90 {
			days = n
		}
	}

	stats, err := h.service.GetDailyStats(c.Request.Context(), slug, ownerID, days)
	if err != nil {
		respondError(c, h.logger, "Failed to get daily stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
