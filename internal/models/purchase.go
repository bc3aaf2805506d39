package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PurchaseStatus string
type VerificationDecision string

const (
	PurchaseStatusPending        PurchaseStatus = "pending"
	PurchaseStatusSubmitted      PurchaseStatus = "submitted"
	PurchaseStatusApproved       PurchaseStatus = "approved"
	PurchaseStatusRejected       PurchaseStatus = "rejected"
	PurchaseStatusReviewRequired PurchaseStatus = "review_required"

	VerificationApproved       VerificationDecision = "approved"
	VerificationRejected       VerificationDecision = "rejected"
	VerificationReviewRequired VerificationDecision = "review_required"
)

// OpenStatuses are the purchase statuses that still occupy the purchaser's
// single in-flight slot.
var OpenPurchaseStatuses = []PurchaseStatus{PurchaseStatusPending, PurchaseStatusSubmitted}

// Terminal reports whether the purchase can no longer be re-submitted.
func (s PurchaseStatus) Terminal() bool {
	return s == PurchaseStatusApproved || s == PurchaseStatusRejected
}

type Purchase struct {
	ID                   primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	PurchaserID          primitive.ObjectID     `json:"purchaser_id" bson:"purchaser_id" validate:"required"`
	TargetParticipantID  primitive.ObjectID     `json:"target_participant_id" bson:"target_participant_id" validate:"required"`
	TargetWishlistURL    string                 `json:"target_wishlist_url" bson:"target_wishlist_url"`
	TargetItemName       string                 `json:"target_item_name" bson:"target_item_name"`
	TargetItemPrice      int                    `json:"target_item_price" bson:"target_item_price"`
	Status               PurchaseStatus         `json:"status" bson:"status" default:"pending"`
	ScreenshotRef        string                 `json:"screenshot_ref" bson:"screenshot_ref"`
	VerificationStatus   VerificationDecision   `json:"verification_status" bson:"verification_status"`
	VerificationResult   string                 `json:"verification_result" bson:"verification_result"`
	VerificationMetadata map[string]interface{} `json:"verification_metadata" bson:"verification_metadata"`
	AdminNotes           string                 `json:"admin_notes" bson:"admin_notes"`
	VerifiedAt           *time.Time             `json:"verified_at" bson:"verified_at"`
	CreatedAt            time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at" bson:"updated_at"`
}
