package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RewardTier string
type RewardState string

const (
	RewardTierBronze RewardTier = "bronze"
	RewardTierSilver RewardTier = "silver"
	RewardTierGold   RewardTier = "gold"
	RewardTierRed    RewardTier = "red"
	RewardTierPoison RewardTier = "poison"

	RewardStatePending  RewardState = "pending"
	RewardStateRevealed RewardState = "revealed"
	RewardStateConsumed RewardState = "consumed"
)

// RewardTiers lists the closed tier set in ascending desirability,
// with the adverse tier last.
var RewardTiers = []RewardTier{
	RewardTierBronze,
	RewardTierSilver,
	RewardTierGold,
	RewardTierRed,
	RewardTierPoison,
}

// TierCredits maps each tier to the credits it grants on draw.
var TierCredits = map[RewardTier]int{
	RewardTierBronze: 1,
	RewardTierSilver: 2,
	RewardTierGold:   3,
	RewardTierRed:    10,
	RewardTierPoison: 0,
}

// GrantsCredits reports whether the tier carries consumable credits.
// Bronze credits are auto-applied at draw time and the poison tier grants
// nothing, so only silver, gold and red are explicitly consumable.
func (t RewardTier) GrantsCredits() bool {
	return t == RewardTierSilver || t == RewardTierGold || t == RewardTierRed
}

// IsHighTier reports whether fully consuming the reward counts as a
// high-tier completion (resets referral progress, drives draw penalties).
func (t RewardTier) IsHighTier() bool {
	return t == RewardTierSilver || t == RewardTierGold
}

type Reward struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ParticipantID     primitive.ObjectID `json:"participant_id" bson:"participant_id" validate:"required"`
	PurchaseID        primitive.ObjectID `json:"purchase_id" bson:"purchase_id"`
	Tier              RewardTier         `json:"tier" bson:"tier" validate:"required"`
	State             RewardState        `json:"state" bson:"state" default:"pending"`
	CreditsGranted    int                `json:"credits_granted" bson:"credits_granted"`
	CreditsRemaining  int                `json:"credits_remaining" bson:"credits_remaining"`
	ObligationGranted int                `json:"obligation_granted" bson:"obligation_granted"`
	DrawnAt           time.Time          `json:"drawn_at" bson:"drawn_at"`
	RevealAt          time.Time          `json:"reveal_at" bson:"reveal_at"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

// Revealed reports whether the reward is visible at the given instant.
func (r *Reward) Revealed(now time.Time) bool {
	return r.State != RewardStatePending || !now.Before(r.RevealAt)
}
