package handlers

import (
	"errors"
	"net/http"

	"ringokai/internal/middleware"
	"ringokai/internal/services"
	"ringokai/internal/utils"

	"github.com/gin-gonic/gin"
)

type ReferralHandler struct {
	referralService services.ReferralService
}

func NewReferralHandler(referralService services.ReferralService) *ReferralHandler {
	return &ReferralHandler{
		referralService: referralService,
	}
}

// GetCode returns the caller's referral code, allocating one on first use.
func (h *ReferralHandler) GetCode(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	code, err := h.referralService.EnsureCode(c.Request.Context(), participantID)
	switch {
	case errors.Is(err, services.ErrParticipantNotFound):
		utils.NotFoundResponse(c, "Participant")
	case err != nil:
		utils.InternalServerErrorResponse(c)
	default:
		utils.SuccessResponse(c, "", gin.H{"referral_code": code})
	}
}

// GetSummary reports referral progress.
func (h *ReferralHandler) GetSummary(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	summary, err := h.referralService.Summary(c.Request.Context(), participantID)
	switch {
	case errors.Is(err, services.ErrParticipantNotFound):
		utils.NotFoundResponse(c, "Participant")
	case err != nil:
		utils.InternalServerErrorResponse(c)
	default:
		utils.SuccessResponse(c, "", summary)
	}
}

type claimReferralRequest struct {
	Code string `json:"code" binding:"required"`
}

// Claim records that the caller was referred by the code's owner.
func (h *ReferralHandler) Claim(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request claimReferralRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	err := h.referralService.Claim(c.Request.Context(), participantID, request.Code)
	switch {
	case errors.Is(err, services.ErrReferralCodeNotFound):
		utils.NotFoundResponse(c, "Referral code")
	case errors.Is(err, services.ErrSelfReferral):
		utils.BadRequestResponse(c, "You cannot claim your own code")
	case errors.Is(err, services.ErrReferralAlreadyClaimed):
		utils.ErrorResponse(c, http.StatusConflict, "ALREADY_CLAIMED", "A referral was already claimed")
	case err != nil:
		utils.InternalServerErrorResponse(c)
	default:
		utils.SuccessResponse(c, "Referral claimed", nil)
	}
}
