package utils

import "time"

// Application constants
const (
	AppName    = "RingoKai"
	AppVersion = "0.2.0"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 200
	MinPageSize     = 1

	// Reward economy
	RewardRevealDelay    = 24 * time.Hour
	RTPCacheTTL          = 300 * time.Second
	RTPVarianceThreshold = 0.2
	PredictiveRTPEpsilon = 0.02
	BootstrapDays        = 30
	MinDynamicUsers      = 100

	// Claim protocol
	ClaimCandidateLimit = 20

	// Wishlist registration
	WishlistMinPrice = 3000
	WishlistMaxPrice = 4000

	// Referral codes
	ReferralCodeLength      = 8
	ReferralCodeMaxAttempts = 10

	// Screenshot uploads
	MaxScreenshotSize = 10 * 1024 * 1024 // 10MB
)

// Response status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Common error messages
const (
	ErrValidationFailed = "validation failed"
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "authentication required"
	ErrForbidden        = "access denied"
)
