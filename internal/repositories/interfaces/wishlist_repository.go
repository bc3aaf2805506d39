package interfaces

import (
	"context"

	"ringokai/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WishlistRepository interface {
	Upsert(ctx context.Context, item *models.WishlistItem) error
	GetByParticipant(ctx context.Context, participantID primitive.ObjectID) (*models.WishlistItem, error)

	// ListAvailable returns unassigned entries owned by other participants,
	// oldest first. The slice is the claim candidate list: its length bounds
	// the claim retry loop.
	ListAvailable(ctx context.Context, excludeParticipantID primitive.ObjectID, limit int64) ([]*models.WishlistItem, error)

	// Claim sets assigned_purchase_id on the entry only while it is unset.
	// Returns false when another purchase won the race.
	Claim(ctx context.Context, itemID, purchaseID primitive.ObjectID) (bool, error)

	// Release clears the assignment held by the given purchase so the entry
	// re-enters the available pool.
	Release(ctx context.Context, purchaseID primitive.ObjectID) error

	GetByAssignedPurchases(ctx context.Context, purchaseIDs []primitive.ObjectID) (map[primitive.ObjectID]*models.WishlistItem, error)
}
