package handlers

import (
	"errors"
	"net/http"

	"ringokai/internal/middleware"
	"ringokai/internal/services"
	"ringokai/internal/utils"
	"ringokai/internal/validators"

	"github.com/gin-gonic/gin"
)

type RewardHandler struct {
	drawService services.DrawService
}

func NewRewardHandler(drawService services.DrawService) *RewardHandler {
	return &RewardHandler{
		drawService: drawService,
	}
}

// Draw spends one draw right and returns the pending reward. The tier stays
// hidden until the reveal time, so the response omits the distribution
// internals for non-debug clients.
func (h *RewardHandler) Draw(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	result, err := h.drawService.Draw(c.Request.Context(), participantID)
	switch {
	case errors.Is(err, services.ErrInsufficientRights):
		utils.ErrorResponse(c, http.StatusConflict, "NO_DRAW_RIGHTS", "No draw rights available")
	case errors.Is(err, services.ErrNoApprovedPurchase):
		utils.ErrorResponse(c, http.StatusConflict, "NO_QUALIFYING_PURCHASE", "Submit a purchase before drawing")
	case errors.Is(err, services.ErrParticipantNotFound):
		utils.NotFoundResponse(c, "Participant")
	case err != nil:
		utils.InternalServerErrorResponse(c)
	default:
		utils.SuccessResponse(c, "Draw completed", gin.H{
			"reward_id": result.Reward.ID.Hex(),
			"reveal_at": result.Reward.RevealAt,
			"state":     result.Reward.State,
		})
	}
}

// GetLatest returns the most recent reward, revealed lazily when due.
func (h *RewardHandler) GetLatest(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	view, err := h.drawService.GetLatestReward(c.Request.Context(), participantID)
	switch {
	case errors.Is(err, services.ErrRewardNotFound):
		utils.NotFoundResponse(c, "Reward")
	case err != nil:
		utils.InternalServerErrorResponse(c)
	case !view.Revealed:
		// Hide the tier until the reveal time passes.
		utils.SuccessResponse(c, "", gin.H{
			"reward_id": view.Reward.ID.Hex(),
			"state":     view.Reward.State,
			"reveal_at": view.Reward.RevealAt,
			"revealed":  false,
		})
	default:
		utils.SuccessResponse(c, "", gin.H{
			"reward":   view.Reward,
			"revealed": true,
		})
	}
}

// GetProbabilities returns the caller's current draw odds together with the
// adjustments that produced them.
func (h *RewardHandler) GetProbabilities(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	dist, err := h.drawService.DrawOdds(c.Request.Context(), participantID)
	switch {
	case errors.Is(err, services.ErrParticipantNotFound):
		utils.NotFoundResponse(c, "Participant")
	case err != nil:
		utils.InternalServerErrorResponse(c)
	default:
		utils.SuccessResponse(c, "", dist)
	}
}

// Consume spends one credit from a revealed reward.
func (h *RewardHandler) Consume(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	rewardID, err := validators.ParseObjectID(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid reward ID")
		return
	}

	reward, err := h.drawService.Consume(c.Request.Context(), participantID, rewardID)
	switch {
	case errors.Is(err, services.ErrRewardNotFound):
		utils.NotFoundResponse(c, "Reward")
	case errors.Is(err, services.ErrWrongTier):
		utils.ErrorResponse(c, http.StatusConflict, "WRONG_TIER", "This reward has no consumable credits")
	case errors.Is(err, services.ErrNotYetRevealed):
		utils.ErrorResponse(c, http.StatusConflict, "NOT_REVEALED", "This reward is not revealed yet")
	case errors.Is(err, services.ErrNoCreditsRemaining):
		utils.ErrorResponse(c, http.StatusConflict, "NO_CREDITS", "This reward has no credits left")
	case err != nil:
		utils.InternalServerErrorResponse(c)
	default:
		utils.SuccessResponse(c, "Credit consumed", reward)
	}
}
