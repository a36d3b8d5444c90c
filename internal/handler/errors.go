package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SergeiKhy/paylink/internal/repository"
	"github.com/SergeiKhy/paylink/internal/service"
	"github.com/SergeiKhy/paylink/internal/session"
	"github.com/SergeiKhy/paylink/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

func init() {
	// Неизвестные поля в JSON отклоняются на всех эндпоинтах
	binding.EnableDecoderDisallowUnknownFields = true
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type apiError struct {
	status  int
	code    string
	message string
}

// errorTable сопоставляет доменные ошибки с HTTP-ответами. Порядок важен:
// берётся первая ошибка, с которой совпал errors.Is.
var errorTable = []struct {
	err error
	api apiError
}{
	{service.ErrInvalidURL, apiError{http.StatusBadRequest, "invalid_url", "Invalid URL format"}},
	{service.ErrInvalidSlug, apiError{http.StatusBadRequest, "invalid_slug", "Custom slug must be 4-12 characters of [a-zA-Z0-9_-]"}},
	{service.ErrSpamDomain, apiError{http.StatusBadRequest, "spam_domain", "Domain is blacklisted"}},
	{session.ErrInvalidStage, apiError{http.StatusBadRequest, "invalid_stage", "Stage must be 1 or 2"}},
	{service.ErrInvalidAmount, apiError{http.StatusBadRequest, "invalid_amount", "Amount must be positive"}},
	{service.ErrBelowMinimum, apiError{http.StatusBadRequest, "below_minimum", "Amount is below the minimum withdrawal"}},
	{service.ErrInvalidWithdrawalType, apiError{http.StatusBadRequest, "invalid_withdrawal_type", "Withdrawal type must be earned or referral"}},
	{service.ErrNotWithdrawal, apiError{http.StatusBadRequest, "not_withdrawal", "Payment is not a withdrawal"}},
	{token.ErrMalformed, apiError{http.StatusBadRequest, "invalid_token", "Malformed token"}},

	{token.ErrBadSignature, apiError{http.StatusUnauthorized, "invalid_token", "Token signature mismatch"}},

	// Чужие ресурсы не отличаем от отсутствующих
	{service.ErrNotOwner, apiError{http.StatusNotFound, "not_found", "Link not found"}},
	{service.ErrNotCampaignOwner, apiError{http.StatusNotFound, "not_found", "Campaign not found"}},
	{repository.ErrLinkNotFound, apiError{http.StatusNotFound, "not_found", "Link not found"}},
	{repository.ErrCampaignNotFound, apiError{http.StatusNotFound, "not_found", "Campaign not found"}},
	{repository.ErrPaymentNotFound, apiError{http.StatusNotFound, "not_found", "Payment not found"}},
	{repository.ErrUserNotFound, apiError{http.StatusNotFound, "not_found", "User not found"}},

	{repository.ErrSlugExists, apiError{http.StatusConflict, "slug_taken", "Slug is already taken"}},
	{service.ErrTokenReplayed, apiError{http.StatusConflict, "token_replayed", "Token has already been used"}},
	{service.ErrCooldownActive, apiError{http.StatusConflict, "cooldown_active", "Another withdrawal was requested recently"}},
	{service.ErrPaymentNotPending, apiError{http.StatusConflict, "payment_not_pending", "Payment is not pending"}},
	{service.ErrCampaignNotActive, apiError{http.StatusConflict, "campaign_not_active", "Campaign is not active"}},
	{service.ErrCampaignNotPaused, apiError{http.StatusConflict, "campaign_not_paused", "Campaign is not paused"}},
	{service.ErrCampaignCompleted, apiError{http.StatusConflict, "campaign_completed", "Campaign is completed"}},
	{repository.ErrStatusConflict, apiError{http.StatusConflict, "status_conflict", "Status changed concurrently"}},

	{token.ErrExpired, apiError{http.StatusGone, "token_expired", "Token has expired"}},
	{service.ErrLinkUnavailable, apiError{http.StatusGone, "link_unavailable", "Link is disabled or expired"}},

	{service.ErrInsufficientFunds, apiError{http.StatusUnprocessableEntity, "insufficient_funds", "Insufficient funds"}},
	{service.ErrInsufficientReserve, apiError{http.StatusUnprocessableEntity, "insufficient_reserve", "Insufficient reserved balance"}},
}

var internalError = apiError{http.StatusInternalServerError, "internal_error", "Internal server error"}

func lookupError(err error) apiError {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.api
		}
	}
	return internalError
}

// respondError пишет ErrorResponse; 5xx логируются как Error, остальное как Warn
func respondError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	api := lookupError(err)
	if api.status >= http.StatusInternalServerError {
		logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		logger.Warn(msg, zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(api.status, ErrorResponse{Error: api.code, Message: api.message})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: err.Error(),
	})
}

// pathID разбирает положительный числовой параметр пути
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Path parameter " + name + " must be a positive integer",
		})
		return 0, false
	}
	return id, true
}
