package routes

import (
	"ringokai/internal/handlers"
	"ringokai/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Participant *handlers.ParticipantHandler
	Reward      *handlers.RewardHandler
	Purchase    *handlers.PurchaseHandler
	Referral    *handlers.ReferralHandler
	Wishlist    *handlers.WishlistHandler
	Admin       *handlers.AdminHandler
}

// Setup mounts all API routes.
func Setup(r *gin.RouterGroup, h *Handlers, adminToken string) {
	// Public routes
	r.POST("/participants", h.Participant.Register)

	// Participant routes
	me := r.Group("/")
	me.Use(middleware.ParticipantRequired())
	{
		me.GET("/me", h.Participant.GetMe)
		me.GET("/dashboard", h.Participant.GetDashboard)
		me.PUT("/me/status", h.Participant.UpdateStatus)

		me.POST("/draws", h.Reward.Draw)
		me.GET("/probabilities", h.Reward.GetProbabilities)
		me.GET("/rewards/latest", h.Reward.GetLatest)
		me.POST("/rewards/:id/consume", h.Reward.Consume)

		me.POST("/purchases", h.Purchase.Start)
		me.GET("/purchases/open", h.Purchase.GetOpen)
		me.POST("/purchases/:id/screenshot", h.Purchase.UploadScreenshot)
		me.POST("/purchases/:id/submit", h.Purchase.Submit)

		me.GET("/referrals/code", h.Referral.GetCode)
		me.GET("/referrals/summary", h.Referral.GetSummary)
		me.POST("/referrals/claim", h.Referral.Claim)

		me.POST("/wishlist", h.Wishlist.Register)
		me.GET("/wishlist", h.Wishlist.Get)
	}

	// Operator routes
	admin := r.Group("/admin")
	admin.Use(middleware.AdminRequired(adminToken))
	{
		admin.GET("/verifications", h.Admin.ListVerifications)
		admin.POST("/verifications/:id/decide", h.Admin.Decide)
		admin.GET("/participants", h.Admin.ListParticipants)
		admin.PUT("/participants/:id", h.Admin.UpdateParticipant)
		admin.POST("/participants/:id/grant-top-tier", h.Admin.GrantTopTierReward)
		admin.GET("/metrics", h.Admin.ListSystemMetrics)
	}

	// Batch routes
	batch := r.Group("/batch")
	batch.Use(middleware.AdminRequired(adminToken))
	{
		batch.POST("/update-rtp", h.Admin.RunBatchRTPUpdate)
	}
}
