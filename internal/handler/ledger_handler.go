package handler

import (
	"context"
	"net/http"

	"github.com/SergeiKhy/paylink/internal/middleware"
	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type LedgerHandler struct {
	ledger service.Ledger
	logger *zap.Logger
}

func NewLedgerHandler(ledger service.Ledger, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, logger: logger}
}

type CreateCampaignRequest struct {
	Budget decimal.Decimal `json:"budget"`
}

type SpendRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type WithdrawalRequest struct {
	Type   models.WithdrawalType `json:"type" binding:"required,oneof=earned referral"`
	Amount decimal.Decimal       `json:"amount"`
}

// CreateCampaign godoc
// @Summary Create a campaign and reserve its budget
// @Tags campaigns
// @Accept json
// @Produce json
// @Param X-User-ID header int true "Advertiser id"
// @Param request body CreateCampaignRequest true "Budget"
// @Success 201 {object} models.Campaign
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/campaigns [post]
func (h *LedgerHandler) CreateCampaign(c *gin.Context) {
	ownerID, _ := middleware.UserID(c)

	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	campaign, err := h.ledger.CreateCampaign(c.Request.Context(), ownerID, req.Budget)
	if err != nil {
		respondError(c, h.logger, "Failed to create campaign", err)
		return
	}

	c.JSON(http.StatusCreated, campaign)
}

// Spend godoc
// @Summary Settle part of a campaign budget
// @Tags campaigns
// @Accept json
// @Produce json
// @Param id path int true "Campaign id"
// @Param request body SpendRequest true "Amount"
// @Success 200 {object} models.Campaign
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/campaigns/{id}/spend [post]
func (h *LedgerHandler) Spend(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req SpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	campaign, err := h.ledger.Spend(c.Request.Context(), campaignID, req.Amount)
	if err != nil {
		respondError(c, h.logger, "Failed to spend campaign budget", err)
		return
	}

	c.JSON(http.StatusOK, campaign)
}

// ReleaseCampaign godoc
// @Summary Pause a campaign and release its leftover budget
// @Tags campaigns
// @Produce json
// @Param id path int true "Campaign id"
// @Success 200 {object} models.Campaign
// @Router /api/v1/campaigns/{id}/release [post]
func (h *LedgerHandler) ReleaseCampaign(c *gin.Context) {
	h.transition(c, "release", h.ledger.Release)
}

// ResumeCampaign godoc
// @Summary Resume a paused campaign, reserving its leftover again
// @Tags campaigns
// @Produce json
// @Param id path int true "Campaign id"
// @Success 200 {object} models.Campaign
// @Router /api/v1/campaigns/{id}/resume [post]
func (h *LedgerHandler) ResumeCampaign(c *gin.Context) {
	h.transition(c, "resume", h.ledger.Resume)
}

// EndCampaign godoc
// @Summary Complete a campaign
// @Tags campaigns
// @Produce json
// @Param id path int true "Campaign id"
// @Success 200 {object} models.Campaign
// @Router /api/v1/campaigns/{id}/end [post]
func (h *LedgerHandler) EndCampaign(c *gin.Context) {
	h.transition(c, "end", h.ledger.End)
}

type campaignTransition func(ctx context.Context, ownerID, campaignID int64) (*models.Campaign, error)

func (h *LedgerHandler) transition(c *gin.Context, name string, fn campaignTransition) {
	ownerID, _ := middleware.UserID(c)
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}

	campaign, err := fn(c.Request.Context(), ownerID, campaignID)
	if err != nil {
		respondError(c, h.logger, "Failed to "+name+" campaign", err)
		return
	}

	c.JSON(http.StatusOK, campaign)
}

// RequestWithdrawal godoc
// @Summary Reserve earnings for a payout
// @Tags withdrawals
// @Accept json
// @Produce json
// @Param X-User-ID header int true "User id"
// @Param request body WithdrawalRequest true "Withdrawal"
// @Success 201 {object} models.Payment
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/withdrawals [post]
func (h *LedgerHandler) RequestWithdrawal(c *gin.Context) {
	ownerID, _ := middleware.UserID(c)

	var req WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	payment, err := h.ledger.RequestWithdrawal(c.Request.Context(), ownerID, req.Type, req.Amount)
	if err != nil {
		respondError(c, h.logger, "Failed to request withdrawal", err)
		return
	}

	c.JSON(http.StatusCreated, payment)
}

// ApproveWithdrawal godoc
// @Summary Approve a pending withdrawal and pay it out
// @Tags admin
// @Produce json
// @Param id path int true "Payment id"
// @Success 200 {object} models.Payment
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/admin/withdrawals/{id}/approve [post]
func (h *LedgerHandler) ApproveWithdrawal(c *gin.Context) {
	h.review(c, "approve", h.ledger.ApproveWithdrawal)
}

// RejectWithdrawal godoc
// @Summary Reject a pending withdrawal and return the reserve
// @Tags admin
// @Produce json
// @Param id path int true "Payment id"
// @Success 200 {object} models.Payment
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/admin/withdrawals/{id}/reject [post]
func (h *LedgerHandler) RejectWithdrawal(c *gin.Context) {
	h.review(c, "reject", h.ledger.RejectWithdrawal)
}

func (h *LedgerHandler) review(c *gin.Context, name string, fn func(context.Context, int64) (*models.Payment, error)) {
	paymentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	payment, err := fn(c.Request.Context(), paymentID)
	if err != nil {
		respondError(c, h.logger, "Failed to "+name+" withdrawal", err)
		return
	}

	reviewer, _ := middleware.APIKeyName(c)
	h.logger.Info("Withdrawal reviewed",
		zap.Int64("payment_id", paymentID),
		zap.String("decision", name),
		zap.String("reviewer", reviewer),
	)
	c.JSON(http.StatusOK, payment)
}

// GetBalance godoc
// @Summary Read all balance pools of the current user
// @Tags users
// @Produce json
// @Param X-User-ID header int true "User id"
// @Success 200 {object} models.Balance
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/me/balance [get]
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	balance, err := h.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "Failed to get balance", err)
		return
	}

	c.JSON(http.StatusOK, balance)
}
