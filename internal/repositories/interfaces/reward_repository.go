package interfaces

import (
	"context"

	"ringokai/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RewardRepository interface {
	Create(ctx context.Context, reward *models.Reward) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Reward, error)
	GetLatestByParticipant(ctx context.Context, participantID primitive.ObjectID) (*models.Reward, error)

	// MarkRevealed flips pending to revealed. Idempotent: returns false
	// without error when the reward already left the pending state.
	MarkRevealed(ctx context.Context, id primitive.ObjectID) (bool, error)

	// SpendCredit decrements credits_remaining by one while it is positive
	// and returns the updated reward, or nil when no credit was left.
	SpendCredit(ctx context.Context, id primitive.ObjectID) (*models.Reward, error)

	// MarkConsumed moves the reward to its terminal state once its credits
	// are exhausted.
	MarkConsumed(ctx context.Context, id primitive.ObjectID) error

	CountRevealedByTier(ctx context.Context, participantID primitive.ObjectID) (map[models.RewardTier]int64, error)
	CountByTier(ctx context.Context) (map[models.RewardTier]int64, error)
	ListRecent(ctx context.Context, limit int64) ([]*models.Reward, error)
}
