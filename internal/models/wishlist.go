package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WishlistItem is a claimable external target. At most one purchase attempt
// may hold AssignedPurchaseID at any time; the claim is taken with a
// conditional update and released when the purchase is rejected.
type WishlistItem struct {
	ID                 primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	ParticipantID      primitive.ObjectID  `json:"participant_id" bson:"participant_id" validate:"required"`
	Title              string              `json:"title" bson:"title"`
	Price              int                 `json:"price" bson:"price"`
	URL                string              `json:"url" bson:"url" validate:"required"`
	AssignedPurchaseID *primitive.ObjectID `json:"assigned_purchase_id" bson:"assigned_purchase_id"`
	CreatedAt          time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" bson:"updated_at"`
}

// WishlistSnapshot is the data shape returned by the external wishlist
// inspector. How the page is read is outside this core.
type WishlistSnapshot struct {
	Title     string `json:"title"`
	Price     int    `json:"price"`
	ItemCount int    `json:"item_count"`
}
