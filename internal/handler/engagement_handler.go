package handler

import (
	"net/http"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type EngagementHandler struct {
	service service.EngagementService
	logger  *zap.Logger
}

func NewEngagementHandler(service service.EngagementService, logger *zap.Logger) *EngagementHandler {
	return &EngagementHandler{service: service, logger: logger}
}

type IssueTokenRequest struct {
	Slug   string `json:"slug" binding:"required"`
	UserID *int64 `json:"userId,omitempty" binding:"omitempty,gt=0"`
}

type ImpressionRequest struct {
	Token   string             `json:"token" binding:"required"`
	Stage   int                `json:"stage" binding:"required,oneof=1 2"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// ImpressionPending ответ, пока не пройдены оба этапа
type ImpressionPending struct {
	OK         bool `json:"ok"`
	Done       bool `json:"done"`
	Suspicious bool `json:"suspicious"`
	Already    bool `json:"already"`
}

// ImpressionDone ответ после завершения сессии
type ImpressionDone struct {
	OK               bool   `json:"ok"`
	Done             bool   `json:"done"`
	Redirect         string `json:"redirect"`
	Duplicate        bool   `json:"duplicate"`
	IPEarnedRecently bool   `json:"ipEarnedRecently"`
}

// IssueToken godoc
// @Summary Issue an engagement token for a link
// @Tags engagement
// @Accept json
// @Produce json
// @Param request body IssueTokenRequest true "Token request"
// @Success 200 {object} models.IssuedToken
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /api/v1/engagement/token [post]
func (h *EngagementHandler) IssueToken(c *gin.Context) {
	var req IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	issued, err := h.service.IssueToken(c.Request.Context(), &models.IssueTokenInput{
		Slug:   req.Slug,
		UserID: req.UserID,
		IP:     c.ClientIP(),
	})
	if err != nil {
		respondError(c, h.logger, "Failed to issue token", err)
		return
	}

	c.JSON(http.StatusOK, issued)
}

// RecordImpression godoc
// @Summary Mark an impression stage as seen
// @Tags engagement
// @Accept json
// @Produce json
// @Param request body ImpressionRequest true "Impression"
// @Success 200 {object} ImpressionPending
// @Success 200 {object} ImpressionDone
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /api/v1/engagement/impression [post]
func (h *EngagementHandler) RecordImpression(c *gin.Context) {
	var req ImpressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := h.service.RecordImpression(c.Request.Context(), &models.ImpressionInput{
		Token:     req.Token,
		Stage:     req.Stage,
		Metrics:   req.Metrics,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	})
	if err != nil {
		respondError(c, h.logger, "Failed to record impression", err)
		return
	}

	if !result.Done {
		c.JSON(http.StatusOK, ImpressionPending{
			OK:         result.OK,
			Done:       false,
			Suspicious: result.Suspicious,
			Already:    result.Already,
		})
		return
	}

	c.JSON(http.StatusOK, ImpressionDone{
		OK:               result.OK,
		Done:             true,
		Redirect:         result.Redirect,
		Duplicate:        result.Duplicate,
		IPEarnedRecently: result.IPEarnedRecently,
	})
}
