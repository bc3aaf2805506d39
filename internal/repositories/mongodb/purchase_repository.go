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

type purchaseRepository struct {
	collection *mongo.Collection
}

func NewPurchaseRepository(db *mongo.Database) interfaces.PurchaseRepository {
	return &purchaseRepository{
		collection: db.Collection("purchases"),
	}
}

func (r *purchaseRepository) Create(ctx context.Context, purchase *models.Purchase) error {
	purchase.ID = primitive.NewObjectID()
	purchase.CreatedAt = time.Now()
	purchase.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, purchase)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}

	return nil
}

func (r *purchaseRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&purchase)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("purchase not found")
		}
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}

	return &purchase, nil
}

func (r *purchaseRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to update purchase: %w", err)
	}

	return nil
}

func (r *purchaseRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete purchase: %w", err)
	}

	return nil
}

func (r *purchaseRepository) GetLatestByStatus(ctx context.Context, purchaserID primitive.ObjectID, statuses []models.PurchaseStatus) (*models.Purchase, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var purchase models.Purchase
	err := r.collection.FindOne(ctx, bson.M{
		"purchaser_id": purchaserID,
		"status":       bson.M{"$in": statuses},
	}, opts).Decode(&purchase)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get purchase by status: %w", err)
	}

	return &purchase, nil
}

func (r *purchaseRepository) ListByStatus(ctx context.Context, statuses []models.PurchaseStatus, limit int64) ([]*models.Purchase, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{
		"status": bson.M{"$in": statuses},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer cursor.Close(ctx)

	var purchases []*models.Purchase
	for cursor.Next(ctx) {
		var purchase models.Purchase
		if err := cursor.Decode(&purchase); err != nil {
			return nil, fmt.Errorf("failed to decode purchase: %w", err)
		}
		purchases = append(purchases, &purchase)
	}

	return purchases, nil
}

func (r *purchaseRepository) CountByStatus(ctx context.Context) (map[models.PurchaseStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count purchases by status: %w", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[models.PurchaseStatus]int64)
	for cursor.Next(ctx) {
		var result struct {
			ID    models.PurchaseStatus `bson:"_id"`
			Count int64                 `bson:"count"`
		}
		if err := cursor.Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode purchase count: %w", err)
		}
		counts[result.ID] = result.Count
	}

	return counts, nil
}
