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

type rewardRepository struct {
	collection *mongo.Collection
}

func NewRewardRepository(db *mongo.Database) interfaces.RewardRepository {
	return &rewardRepository{
		collection: db.Collection("rewards"),
	}
}

func (r *rewardRepository) Create(ctx context.Context, reward *models.Reward) error {
	reward.ID = primitive.NewObjectID()
	reward.CreatedAt = time.Now()
	reward.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, reward)
	if err != nil {
		return fmt.Errorf("failed to create reward: %w", err)
	}

	return nil
}

func (r *rewardRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Reward, error) {
	var reward models.Reward
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&reward)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("reward not found")
		}
		return nil, fmt.Errorf("failed to get reward: %w", err)
	}

	return &reward, nil
}

func (r *rewardRepository) GetLatestByParticipant(ctx context.Context, participantID primitive.ObjectID) (*models.Reward, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "drawn_at", Value: -1}})

	var reward models.Reward
	err := r.collection.FindOne(ctx, bson.M{"participant_id": participantID}, opts).Decode(&reward)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest reward: %w", err)
	}

	return &reward, nil
}

func (r *rewardRepository) MarkRevealed(ctx context.Context, id primitive.ObjectID) (bool, error) {
	// Conditional on the pending state so a concurrent read cannot move the
	// reward backward or reveal it twice.
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "state": models.RewardStatePending},
		bson.M{"$set": bson.M{
			"state":      models.RewardStateRevealed,
			"updated_at": time.Now(),
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark reward revealed: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

func (r *rewardRepository) SpendCredit(ctx context.Context, id primitive.ObjectID) (*models.Reward, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var reward models.Reward
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id, "credits_remaining": bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{"credits_remaining": -1},
			"$set": bson.M{"updated_at": time.Now()},
		},
		opts,
	).Decode(&reward)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to spend reward credit: %w", err)
	}

	return &reward, nil
}

func (r *rewardRepository) MarkConsumed(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "state": bson.M{"$ne": models.RewardStateConsumed}},
		bson.M{"$set": bson.M{
			"state":      models.RewardStateConsumed,
			"updated_at": time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark reward consumed: %w", err)
	}

	return nil
}

func (r *rewardRepository) CountRevealedByTier(ctx context.Context, participantID primitive.ObjectID) (map[models.RewardTier]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"participant_id": participantID,
			"state":          bson.M{"$ne": models.RewardStatePending},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$tier",
			"count": bson.M{"$sum": 1},
		}}},
	}
	return r.countByTier(ctx, pipeline)
}

func (r *rewardRepository) CountByTier(ctx context.Context) (map[models.RewardTier]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$tier",
			"count": bson.M{"$sum": 1},
		}}},
	}
	return r.countByTier(ctx, pipeline)
}

func (r *rewardRepository) countByTier(ctx context.Context, pipeline mongo.Pipeline) (map[models.RewardTier]int64, error) {
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count rewards by tier: %w", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[models.RewardTier]int64)
	for cursor.Next(ctx) {
		var result struct {
			ID    models.RewardTier `bson:"_id"`
			Count int64             `bson:"count"`
		}
		if err := cursor.Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode tier count: %w", err)
		}
		counts[result.ID] = result.Count
	}

	return counts, nil
}

func (r *rewardRepository) ListRecent(ctx context.Context, limit int64) ([]*models.Reward, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "drawn_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent rewards: %w", err)
	}
	defer cursor.Close(ctx)

	var rewards []*models.Reward
	for cursor.Next(ctx) {
		var reward models.Reward
		if err := cursor.Decode(&reward); err != nil {
			return nil, fmt.Errorf("failed to decode reward: %w", err)
		}
		rewards = append(rewards, &reward)
	}

	return rewards, nil
}
