package handlers

import (
	"errors"
	"strconv"

	"ringokai/internal/models"
	"ringokai/internal/services"
	"ringokai/internal/utils"
	"ringokai/internal/validators"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AdminHandler struct {
	adminService    services.AdminService
	purchaseService services.PurchaseService
}

func NewAdminHandler(adminService services.AdminService, purchaseService services.PurchaseService) *AdminHandler {
	return &AdminHandler{
		adminService:    adminService,
		purchaseService: purchaseService,
	}
}

// ListVerifications returns purchases waiting for a verdict.
func (h *AdminHandler) ListVerifications(c *gin.Context) {
	limit := int64(50)
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.adminService.ListVerificationQueue(c.Request.Context(), limit)
	if err != nil {
		utils.InternalServerErrorResponse(c)
		return
	}

	utils.SuccessResponseWithMeta(c, "", entries, &utils.Meta{Count: len(entries)})
}

type decideRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approved rejected review_required"`
	Notes    string `json:"notes"`
}

// Decide applies a manual verification verdict.
func (h *AdminHandler) Decide(c *gin.Context) {
	purchaseID, err := validators.ParseObjectID(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid purchase ID")
		return
	}

	var request decideRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	purchase, err := h.purchaseService.Decide(c.Request.Context(), purchaseID,
		models.VerificationDecision(request.Decision), request.Notes)
	switch {
	case errors.Is(err, services.ErrPurchaseNotFound):
		utils.NotFoundResponse(c, "Purchase")
	case errors.Is(err, services.ErrPurchaseFinalized):
		utils.ConflictResponse(c, "Purchase is already finalized")
	case err != nil:
		utils.InternalServerErrorResponse(c)
	default:
		utils.SuccessResponse(c, "Verdict recorded", purchase)
	}
}

// ListParticipants lists participants with pagination and optional status filter.
func (h *AdminHandler) ListParticipants(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	status := models.ParticipantStatus(c.Query("status"))

	participants, total, err := h.adminService.ListParticipants(c.Request.Context(), params, status)
	if err != nil {
		utils.InternalServerErrorResponse(c)
		return
	}

	utils.SuccessResponseWithMeta(c, "", participants, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Total:      total,
	})
}

type updateParticipantRequest struct {
	Status           *string `json:"status"`
	AvailableCredits *int    `json:"available_credits" validate:"omitempty,min=0"`
	DrawRights       *int    `json:"draw_rights" validate:"omitempty,min=0"`
	ObligationCount  *int    `json:"obligation_count" validate:"omitempty,min=0"`
	ReferralCount    *int    `json:"referral_count" validate:"omitempty,min=0"`
	CompletionCount  *int    `json:"completion_count" validate:"omitempty,min=0"`
	WishlistURL      *string `json:"wishlist_url" validate:"omitempty,wishlist_url"`
	ReferredBy       *string `json:"referred_by" validate:"omitempty,object_id"`
}

func (r *updateParticipantRequest) toUpdates() map[string]interface{} {
	updates := make(map[string]interface{})
	if r.Status != nil {
		updates["status"] = *r.Status
	}
	if r.AvailableCredits != nil {
		updates["available_credits"] = *r.AvailableCredits
	}
	if r.DrawRights != nil {
		updates["draw_rights"] = *r.DrawRights
	}
	if r.ObligationCount != nil {
		updates["obligation_count"] = *r.ObligationCount
	}
	if r.ReferralCount != nil {
		updates["referral_count"] = *r.ReferralCount
	}
	if r.CompletionCount != nil {
		updates["completion_count"] = *r.CompletionCount
	}
	if r.WishlistURL != nil {
		updates["wishlist_url"] = *r.WishlistURL
	}
	if r.ReferredBy != nil {
		// Hex validity is guaranteed by the object_id tag.
		oid, _ := primitive.ObjectIDFromHex(*r.ReferredBy)
		updates["referred_by"] = oid
	}
	return updates
}

// UpdateParticipant edits a restricted set of participant fields.
func (h *AdminHandler) UpdateParticipant(c *gin.Context) {
	participantID, err := validators.ParseObjectID(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid participant ID")
		return
	}

	var request updateParticipantRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if validationErrors := validators.ValidateStruct(&request); len(validationErrors) > 0 {
		details := make(map[string]string, len(validationErrors))
		for _, fieldErr := range validationErrors {
			details[fieldErr.Field] = fieldErr.Message
		}
		utils.ValidationErrorResponse(c, details)
		return
	}

	participant, err := h.adminService.UpdateParticipant(c.Request.Context(), participantID, request.toUpdates())
	switch {
	case errors.Is(err, services.ErrInvalidStatus):
		utils.BadRequestResponse(c, "Unknown status")
	case errors.Is(err, services.ErrParticipantNotFound):
		utils.NotFoundResponse(c, "Participant")
	case err != nil:
		utils.BadRequestResponse(c, err.Error())
	default:
		utils.SuccessResponse(c, "Participant updated", participant)
	}
}

// GrantTopTierReward hands out a revealed top-tier reward.
func (h *AdminHandler) GrantTopTierReward(c *gin.Context) {
	participantID, err := validators.ParseObjectID(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid participant ID")
		return
	}

	reward, err := h.adminService.GrantTopTierReward(c.Request.Context(), participantID)
	switch {
	case errors.Is(err, services.ErrParticipantNotFound):
		utils.NotFoundResponse(c, "Participant")
	case err != nil:
		utils.InternalServerErrorResponse(c)
	default:
		utils.SuccessResponse(c, "Reward granted", reward)
	}
}

// RunBatchRTPUpdate recomputes the payout ratio and stores a metrics snapshot.
func (h *AdminHandler) RunBatchRTPUpdate(c *gin.Context) {
	metrics, err := h.adminService.RunBatchRTPUpdate(c.Request.Context())
	if err != nil {
		utils.InternalServerErrorResponse(c)
		return
	}

	utils.SuccessResponse(c, "Payout ratio recomputed", metrics)
}

// ListSystemMetrics returns recent economy snapshots.
func (h *AdminHandler) ListSystemMetrics(c *gin.Context) {
	limit := int64(30)
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	metrics, err := h.adminService.ListSystemMetrics(c.Request.Context(), limit)
	if err != nil {
		utils.InternalServerErrorResponse(c)
		return
	}

	utils.SuccessResponseWithMeta(c, "", metrics, &utils.Meta{Count: len(metrics)})
}
