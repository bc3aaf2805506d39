package handlers

import (
	"ringokai/internal/middleware"
	"ringokai/internal/models"
	"ringokai/internal/services"
	"ringokai/internal/utils"

	"github.com/gin-gonic/gin"
)

type ParticipantHandler struct {
	participantService services.ParticipantService
	referralService    services.ReferralService
}

func NewParticipantHandler(participantService services.ParticipantService, referralService services.ReferralService) *ParticipantHandler {
	return &ParticipantHandler{
		participantService: participantService,
		referralService:    referralService,
	}
}

type registerRequest struct {
	Email        string `json:"email" binding:"required,email"`
	ReferralCode string `json:"referral_code"`
}

// Register creates a participant and optionally claims a referral code.
func (h *ParticipantHandler) Register(c *gin.Context) {
	var request registerRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	participant, err := h.participantService.Register(c.Request.Context(), request.Email)
	if err != nil {
		utils.ConflictResponse(c, "Could not register participant")
		return
	}

	if request.ReferralCode != "" {
		// Registration stands even when the referral claim fails; the
		// client can retry the claim separately.
		if err := h.referralService.Claim(c.Request.Context(), participant.ID, request.ReferralCode); err != nil {
			utils.CreatedResponse(c, "Participant registered, referral code not applied", participant)
			return
		}
	}

	utils.CreatedResponse(c, "Participant registered", participant)
}

// GetMe returns the calling participant.
func (h *ParticipantHandler) GetMe(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	participant, err := h.participantService.Get(c.Request.Context(), participantID)
	if err != nil {
		utils.NotFoundResponse(c, "Participant")
		return
	}

	utils.SuccessResponse(c, "", participant)
}

// GetDashboard returns the home-screen aggregate.
func (h *ParticipantHandler) GetDashboard(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	dashboard, err := h.participantService.GetDashboard(c.Request.Context(), participantID)
	if err != nil {
		utils.NotFoundResponse(c, "Participant")
		return
	}

	utils.SuccessResponse(c, "", dashboard)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus advances the onboarding flow.
func (h *ParticipantHandler) UpdateStatus(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request updateStatusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	err := h.participantService.UpdateStatus(c.Request.Context(), participantID, models.ParticipantStatus(request.Status))
	switch {
	case err == services.ErrInvalidStatus:
		utils.BadRequestResponse(c, "Unknown status")
	case err == services.ErrParticipantNotFound:
		utils.NotFoundResponse(c, "Participant")
	case err != nil:
		utils.InternalServerErrorResponse(c)
	default:
		utils.SuccessResponse(c, "Status updated", gin.H{"status": request.Status})
	}
}
