package handler

import (
	"net/http"

	"github.com/SergeiKhy/paylink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdHandler struct {
	allocator service.AdAllocator
	logger    *zap.Logger
}

func NewAdHandler(allocator service.AdAllocator, logger *zap.Logger) *AdHandler {
	return &AdHandler{allocator: allocator, logger: logger}
}

// Consume godoc
// @Summary Serve at most one admin ad per IP
// @Tags ads
// @Produce json
// @Success 200 {object} models.AdConsumeResult
// @Router /api/v1/ads/consume [post]
func (h *AdHandler) Consume(c *gin.Context) {
	result, err := h.allocator.Consume(c.Request.Context(), c.ClientIP())
	if err != nil {
		respondError(c, h.logger, "Failed to consume ad", err)
		return
	}

	c.JSON(http.StatusOK, result)
}
