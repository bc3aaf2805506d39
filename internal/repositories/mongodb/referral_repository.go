package mongodb

import (
	"context"
	"fmt"
	"time"

	"ringokai/internal/models"
	"ringokai/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type referralRepository struct {
	collection *mongo.Collection
}

func NewReferralRepository(db *mongo.Database) interfaces.ReferralRepository {
	return &referralRepository{
		collection: db.Collection("referrals"),
	}
}

func (r *referralRepository) Create(ctx context.Context, referral *models.Referral) error {
	referral.ID = primitive.NewObjectID()
	referral.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, referral)
	if err != nil {
		return fmt.Errorf("failed to create referral: %w", err)
	}

	return nil
}
