package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReferralThresholds are the referral counts at which the dynamic odds table
// shifts weight toward the upper tiers.
var ReferralThresholds = []int{3, 5, 10, 20, 30}

// Referral records a claimed referral edge. Best-effort bookkeeping; the
// authoritative counter lives on the referrer's Participant row.
type Referral struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ReferrerID primitive.ObjectID `json:"referrer_id" bson:"referrer_id" validate:"required"`
	ReferredID primitive.ObjectID `json:"referred_id" bson:"referred_id" validate:"required"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}

// NextReferralThreshold returns the smallest table threshold still above the
// given count, or 0 when the top table row is already reached.
func NextReferralThreshold(referralCount int) int {
	for _, threshold := range []int{3, 5, 10, 20} {
		if referralCount < threshold {
			return threshold
		}
	}
	return 0
}
