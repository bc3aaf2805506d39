package handlers

import (
	"errors"
	"io"
	"net/http"

	"ringokai/internal/middleware"
	"ringokai/internal/models"
	"ringokai/internal/services"
	"ringokai/internal/utils"
	"ringokai/internal/validators"

	"github.com/gin-gonic/gin"
)

// purchaseView pairs a purchase with the pseudonym shown in place of the
// wishlist owner's identity.
func purchaseView(purchase *models.Purchase) gin.H {
	return gin.H{
		"purchase":     purchase,
		"target_alias": utils.AnonymousAlias(purchase.TargetParticipantID),
	}
}

type PurchaseHandler struct {
	purchaseService services.PurchaseService
}

func NewPurchaseHandler(purchaseService services.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseService: purchaseService,
	}
}

// Start claims a wishlist target and opens a purchase against it.
func (h *PurchaseHandler) Start(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	purchase, err := h.purchaseService.StartPurchase(c.Request.Context(), participantID)
	switch {
	case errors.Is(err, services.ErrNoTargetsAvailable):
		utils.ErrorResponse(c, http.StatusConflict, "NO_TARGETS", "No wishlist targets are available right now")
	case errors.Is(err, services.ErrAllTargetsContended):
		utils.ErrorResponse(c, http.StatusConflict, "TARGETS_CONTENDED", "All targets were taken, try again")
	case errors.Is(err, services.ErrParticipantNotFound):
		utils.NotFoundResponse(c, "Participant")
	case err != nil:
		utils.InternalServerErrorResponse(c)
	default:
		utils.SuccessResponse(c, "Purchase opened", purchaseView(purchase))
	}
}

// GetOpen returns the caller's in-flight purchase, if any.
func (h *PurchaseHandler) GetOpen(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	purchase, err := h.purchaseService.GetOpenPurchase(c.Request.Context(), participantID)
	if err != nil {
		utils.InternalServerErrorResponse(c)
		return
	}
	if purchase == nil {
		utils.NotFoundResponse(c, "Open purchase")
		return
	}

	utils.SuccessResponse(c, "", purchaseView(purchase))
}

// UploadScreenshot attaches the proof image to a purchase.
func (h *PurchaseHandler) UploadScreenshot(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	purchaseID, err := validators.ParseObjectID(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid purchase ID")
		return
	}

	file, header, err := c.Request.FormFile("screenshot")
	if err != nil {
		utils.BadRequestResponse(c, "screenshot file is required")
		return
	}
	defer file.Close()

	if header.Size > utils.MaxScreenshotSize {
		utils.BadRequestResponse(c, "Screenshot exceeds the size limit")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, utils.MaxScreenshotSize+1))
	if err != nil {
		utils.InternalServerErrorResponse(c)
		return
	}

	purchase, err := h.purchaseService.AttachScreenshot(c.Request.Context(), participantID, purchaseID,
		data, header.Header.Get("Content-Type"))
	switch {
	case errors.Is(err, services.ErrPurchaseNotFound):
		utils.NotFoundResponse(c, "Purchase")
	case errors.Is(err, services.ErrPurchaseFinalized):
		utils.ConflictResponse(c, "Purchase is already finalized")
	case errors.Is(err, services.ErrScreenshotTooLarge):
		utils.BadRequestResponse(c, "Screenshot exceeds the size limit")
	case errors.Is(err, services.ErrScreenshotBadType):
		utils.BadRequestResponse(c, "Screenshot must be a PNG or JPEG image")
	case err != nil:
		utils.InternalServerErrorResponse(c)
	default:
		utils.SuccessResponse(c, "Screenshot attached", purchase)
	}
}

// Submit sends the purchase for verification.
func (h *PurchaseHandler) Submit(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	purchaseID, err := validators.ParseObjectID(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid purchase ID")
		return
	}

	purchase, err := h.purchaseService.Submit(c.Request.Context(), participantID, purchaseID)
	switch {
	case errors.Is(err, services.ErrPurchaseNotFound):
		utils.NotFoundResponse(c, "Purchase")
	case errors.Is(err, services.ErrPurchaseFinalized):
		utils.ConflictResponse(c, "Purchase is already finalized")
	case errors.Is(err, services.ErrScreenshotRequired):
		utils.BadRequestResponse(c, "Attach a screenshot before submitting")
	case err != nil:
		utils.InternalServerErrorResponse(c)
	default:
		utils.SuccessResponse(c, "Purchase submitted", purchase)
	}
}
