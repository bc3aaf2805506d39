package mongodb

import (
	"context"
	"fmt"
	"time"

	"ringokai/internal/models"
	"ringokai/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type wishlistRepository struct {
	collection *mongo.Collection
}

func NewWishlistRepository(db *mongo.Database) interfaces.WishlistRepository {
	return &wishlistRepository{
		collection: db.Collection("wishlist_items"),
	}
}

func (r *wishlistRepository) Upsert(ctx context.Context, item *models.WishlistItem) error {
	now := time.Now()
	item.UpdatedAt = now

	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"participant_id": item.ParticipantID},
		bson.M{
			"$set": bson.M{
				"title":      item.Title,
				"price":      item.Price,
				"url":        item.URL,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{
				"participant_id":       item.ParticipantID,
				"assigned_purchase_id": nil,
				"created_at":           now,
			},
		},
		opts,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert wishlist item: %w", err)
	}

	return nil
}

func (r *wishlistRepository) GetByParticipant(ctx context.Context, participantID primitive.ObjectID) (*models.WishlistItem, error) {
	var item models.WishlistItem
	err := r.collection.FindOne(ctx, bson.M{"participant_id": participantID}).Decode(&item)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wishlist item: %w", err)
	}

	return &item, nil
}

func (r *wishlistRepository) ListAvailable(ctx context.Context, excludeParticipantID primitive.ObjectID, limit int64) ([]*models.WishlistItem, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{
		"participant_id":       bson.M{"$ne": excludeParticipantID},
		"assigned_purchase_id": nil,
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list available wishlist items: %w", err)
	}
	defer cursor.Close(ctx)

	var items []*models.WishlistItem
	for cursor.Next(ctx) {
		var item models.WishlistItem
		if err := cursor.Decode(&item); err != nil {
			return nil, fmt.Errorf("failed to decode wishlist item: %w", err)
		}
		items = append(items, &item)
	}

	return items, nil
}

func (r *wishlistRepository) Claim(ctx context.Context, itemID, purchaseID primitive.ObjectID) (bool, error) {
	// The assignment is taken only while the slot is unset. A modified count
	// of zero means another purchase won the race.
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": itemID, "assigned_purchase_id": nil},
		bson.M{"$set": bson.M{
			"assigned_purchase_id": purchaseID,
			"updated_at":           time.Now(),
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim wishlist item: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

func (r *wishlistRepository) Release(ctx context.Context, purchaseID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"assigned_purchase_id": purchaseID},
		bson.M{"$set": bson.M{
			"assigned_purchase_id": nil,
			"updated_at":           time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to release wishlist assignment: %w", err)
	}

	return nil
}

func (r *wishlistRepository) GetByAssignedPurchases(ctx context.Context, purchaseIDs []primitive.ObjectID) (map[primitive.ObjectID]*models.WishlistItem, error) {
	if len(purchaseIDs) == 0 {
		return map[primitive.ObjectID]*models.WishlistItem{}, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{
		"assigned_purchase_id": bson.M{"$in": purchaseIDs},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get wishlist assignments: %w", err)
	}
	defer cursor.Close(ctx)

	assignments := make(map[primitive.ObjectID]*models.WishlistItem)
	for cursor.Next(ctx) {
		var item models.WishlistItem
		if err := cursor.Decode(&item); err != nil {
			return nil, fmt.Errorf("failed to decode wishlist item: %w", err)
		}
		if item.AssignedPurchaseID != nil {
			assignments[*item.AssignedPurchaseID] = &item
		}
	}

	return assignments, nil
}
