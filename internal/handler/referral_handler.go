package handler

import (
	"net/http"

	"github.com/SergeiKhy/paylink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReferralHandler struct {
	dispatcher service.ReferralDispatcher
	logger     *zap.Logger
}

func NewReferralHandler(dispatcher service.ReferralDispatcher, logger *zap.Logger) *ReferralHandler {
	return &ReferralHandler{dispatcher: dispatcher, logger: logger}
}

type RegistrationReferralRequest struct {
	RefereeID int64 `json:"refereeId" binding:"required,gt=0"`
}

// TriggerRegistration godoc
// @Summary Queue the registration referral bonus for a new user
// @Tags admin
// @Accept json
// @Produce json
// @Param request body RegistrationReferralRequest true "Referee"
// @Success 202 {object} map[string]bool
// @Router /api/v1/admin/referrals/registration [post]
func (h *ReferralHandler) TriggerRegistration(c *gin.Context) {
	var req RegistrationReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	// Каскад выполняется в фоне, результат запросу не возвращается
	if err := h.dispatcher.Enqueue(c.Request.Context(), service.NewRegistrationReferralEvent(req.RefereeID)); err != nil {
		respondError(c, h.logger, "Failed to queue registration referral", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}
