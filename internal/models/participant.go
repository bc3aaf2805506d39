package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ParticipantStatus string

const (
	ParticipantStatusRegistered             ParticipantStatus = "registered"
	ParticipantStatusTermsAgreed            ParticipantStatus = "terms_agreed"
	ParticipantStatusTutorialCompleted      ParticipantStatus = "tutorial_completed"
	ParticipantStatusReadyToPurchase        ParticipantStatus = "ready_to_purchase"
	ParticipantStatusVerifying              ParticipantStatus = "verifying"
	ParticipantStatusFirstPurchaseCompleted ParticipantStatus = "first_purchase_completed"
	ParticipantStatusReadyToDraw            ParticipantStatus = "ready_to_draw"
	ParticipantStatusActive                 ParticipantStatus = "active"
	ParticipantStatusSuspended              ParticipantStatus = "suspended"
)

// ActiveStatuses are the statuses counted as "active" in economy-wide metrics.
var ActiveStatuses = []ParticipantStatus{ParticipantStatusReadyToDraw, ParticipantStatusActive}

type Participant struct {
	ID                      primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Email                   string              `json:"email" bson:"email" validate:"required,email"`
	Status                  ParticipantStatus   `json:"status" bson:"status" default:"registered"`
	ReferralCode            string              `json:"referral_code" bson:"referral_code"`
	ReferralCount           int                 `json:"referral_count" bson:"referral_count" default:"0"`
	ReferredBy              *primitive.ObjectID `json:"referred_by" bson:"referred_by"`
	ObligationCount         int                 `json:"obligation_count" bson:"obligation_count" default:"0"`
	AvailableCredits        int                 `json:"available_credits" bson:"available_credits" default:"0"`
	DrawRights              int                 `json:"draw_rights" bson:"draw_rights" default:"0"`
	CompletionCount         int                 `json:"completion_count" bson:"completion_count" default:"0"`
	LastHighTierCompletedAt *time.Time          `json:"last_high_tier_completed_at" bson:"last_high_tier_completed_at"`
	WishlistURL             string              `json:"wishlist_url" bson:"wishlist_url"`
	WishlistRegisteredAt    *time.Time          `json:"wishlist_registered_at" bson:"wishlist_registered_at"`
	CreatedAt               time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt               time.Time           `json:"updated_at" bson:"updated_at"`
}

// LedgerTotals is the economy-wide ledger aggregate used to derive the payout ratio.
type LedgerTotals struct {
	TotalObligation int64 `bson:"total_obligation"`
	TotalAvailable  int64 `bson:"total_available"`
}
