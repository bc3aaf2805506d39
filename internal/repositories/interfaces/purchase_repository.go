package interfaces

import (
	"context"

	"ringokai/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PurchaseRepository interface {
	Create(ctx context.Context, purchase *models.Purchase) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Purchase, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error

	// Delete removes a purchase row outright. Only used to roll back a
	// just-created attempt that lost the claim race.
	Delete(ctx context.Context, id primitive.ObjectID) error

	// GetLatestByStatus returns the purchaser's most recent purchase in one
	// of the given statuses, or nil when none exists.
	GetLatestByStatus(ctx context.Context, purchaserID primitive.ObjectID, statuses []models.PurchaseStatus) (*models.Purchase, error)

	ListByStatus(ctx context.Context, statuses []models.PurchaseStatus, limit int64) ([]*models.Purchase, error)
	CountByStatus(ctx context.Context) (map[models.PurchaseStatus]int64, error)
}
