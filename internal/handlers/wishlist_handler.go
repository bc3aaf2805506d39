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

type WishlistHandler struct {
	wishlistService services.WishlistService
}

func NewWishlistHandler(wishlistService services.WishlistService) *WishlistHandler {
	return &WishlistHandler{
		wishlistService: wishlistService,
	}
}

type registerWishlistRequest struct {
	URL string `json:"url" binding:"required"`
}

// Register validates and stores the caller's wishlist.
func (h *WishlistHandler) Register(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request registerWishlistRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	item, err := h.wishlistService.Register(c.Request.Context(), participantID, request.URL)
	switch {
	case errors.Is(err, validators.ErrInvalidWishlistURL):
		utils.BadRequestResponse(c, "Not a recognizable wishlist URL")
	case errors.Is(err, services.ErrWishlistNotSingleItem):
		utils.BadRequestResponse(c, "The wishlist must contain exactly one item")
	case errors.Is(err, services.ErrWishlistPriceOutOfRange):
		utils.BadRequestResponse(c, "The item price is outside the allowed range")
	case errors.Is(err, services.ErrWishlistInspectionFailed):
		utils.ErrorResponse(c, http.StatusBadGateway, "INSPECTION_FAILED", "The wishlist could not be read")
	case errors.Is(err, services.ErrParticipantNotFound):
		utils.NotFoundResponse(c, "Participant")
	case err != nil:
		utils.InternalServerErrorResponse(c)
	default:
		utils.SuccessResponse(c, "Wishlist registered", item)
	}
}

// Get returns the caller's registered wishlist.
func (h *WishlistHandler) Get(c *gin.Context) {
	participantID, ok := middleware.ParticipantID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	item, err := h.wishlistService.Get(c.Request.Context(), participantID)
	if err != nil {
		utils.NotFoundResponse(c, "Wishlist")
		return
	}

	utils.SuccessResponse(c, "", item)
}
