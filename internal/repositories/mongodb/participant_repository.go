package mongodb

import (
	"context"
	"fmt"
	"time"

	"ringokai/internal/models"
	"ringokai/internal/repositories/interfaces"
	"ringokai/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type participantRepository struct {
	collection *mongo.Collection
	cache      CacheService
}

func NewParticipantRepository(db *mongo.Database, cache CacheService) interfaces.ParticipantRepository {
	return &participantRepository{
		collection: db.Collection("participants"),
		cache:      cache,
	}
}

// Basic CRUD operations
func (r *participantRepository) Create(ctx context.Context, participant *models.Participant) error {
	participant.ID = primitive.NewObjectID()
	participant.CreatedAt = time.Now()
	participant.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, participant)
	if err != nil {
		return fmt.Errorf("failed to create participant: %w", err)
	}

	r.cacheParticipant(ctx, participant)

	return nil
}

func (r *participantRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Participant, error) {
	if participant := r.getParticipantFromCache(ctx, id.Hex()); participant != nil {
		return participant, nil
	}

	var participant models.Participant
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&participant)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("participant not found")
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	r.cacheParticipant(ctx, &participant)

	return &participant, nil
}

func (r *participantRepository) GetByReferralCode(ctx context.Context, code string) (*models.Participant, error) {
	var participant models.Participant
	err := r.collection.FindOne(ctx, bson.M{"referral_code": code}).Decode(&participant)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("participant not found with referral code")
		}
		return nil, fmt.Errorf("failed to get participant by referral code: %w", err)
	}

	return &participant, nil
}

func (r *participantRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to update participant: %w", err)
	}

	r.invalidateParticipantCache(ctx, id.Hex())

	return nil
}

func (r *participantRepository) List(ctx context.Context, params *utils.PaginationParams, status models.ParticipantStatus) ([]*models.Participant, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	if params.Search != "" {
		searchFilter := params.GetSearchFilter([]string{"email", "referral_code"})
		if len(searchFilter) > 0 {
			filter = bson.M{"$and": []bson.M{filter, searchFilter}}
		}
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count participants: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find participants: %w", err)
	}
	defer cursor.Close(ctx)

	var participants []*models.Participant
	for cursor.Next(ctx) {
		var participant models.Participant
		if err := cursor.Decode(&participant); err != nil {
			return nil, 0, fmt.Errorf("failed to decode participant: %w", err)
		}
		participants = append(participants, &participant)
	}

	return participants, total, nil
}

// Ledger aggregates
func (r *participantRepository) SumLedger(ctx context.Context) (*models.LedgerTotals, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":              nil,
			"total_obligation": bson.M{"$sum": "$obligation_count"},
			"total_available":  bson.M{"$sum": "$available_credits"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger: %w", err)
	}
	defer cursor.Close(ctx)

	totals := &models.LedgerTotals{}
	if cursor.Next(ctx) {
		if err := cursor.Decode(totals); err != nil {
			return nil, fmt.Errorf("failed to decode ledger totals: %w", err)
		}
	}

	return totals, nil
}

func (r *participantRepository) GetTotalCount(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

func (r *participantRepository) GetCountByStatus(ctx context.Context, statuses []models.ParticipantStatus) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	return r.collection.CountDocuments(ctx, bson.M{
		"status": bson.M{"$in": statuses},
	})
}

func (r *participantRepository) GetCountRegisteredSince(ctx context.Context, since time.Time) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{
		"created_at": bson.M{"$gte": since},
	})
}

func (r *participantRepository) GetStatusBreakdown(ctx context.Context) (map[models.ParticipantStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to get status breakdown: %w", err)
	}
	defer cursor.Close(ctx)

	breakdown := make(map[models.ParticipantStatus]int64)
	for cursor.Next(ctx) {
		var result struct {
			ID    models.ParticipantStatus `bson:"_id"`
			Count int64                    `bson:"count"`
		}
		if err := cursor.Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode status breakdown: %w", err)
		}
		breakdown[result.ID] = result.Count
	}

	return breakdown, nil
}

// Conditional ledger mutations

func (r *participantRepository) ConsumeDrawRight(ctx context.Context, id primitive.ObjectID, creditDelta int) (bool, error) {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "draw_rights": bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{"draw_rights": -1, "available_credits": creditDelta},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to consume draw right: %w", err)
	}

	r.invalidateParticipantCache(ctx, id.Hex())

	return result.ModifiedCount > 0, nil
}

func (r *participantRepository) SpendCredit(ctx context.Context, id primitive.ObjectID) error {
	// Conditional on a positive balance so concurrent consumptions cannot
	// push the counter below zero.
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "available_credits": bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{"available_credits": -1},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to spend credit: %w", err)
	}

	r.invalidateParticipantCache(ctx, id.Hex())

	return nil
}

func (r *participantRepository) IncrementObligation(ctx context.Context, id primitive.ObjectID, delta int) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"obligation_count": delta},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to increment obligation: %w", err)
	}

	r.invalidateParticipantCache(ctx, id.Hex())

	return nil
}

func (r *participantRepository) GrantApproval(ctx context.Context, id primitive.ObjectID) error {
	// Settle one obligation together with the draw-right grant while an
	// obligation is outstanding; otherwise grant the right alone.
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "obligation_count": bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{"draw_rights": 1, "obligation_count": -1},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to grant approval: %w", err)
	}

	if result.ModifiedCount == 0 {
		_, err = r.collection.UpdateOne(
			ctx,
			bson.M{"_id": id},
			bson.M{
				"$inc": bson.M{"draw_rights": 1},
				"$set": bson.M{"updated_at": time.Now()},
			},
		)
		if err != nil {
			return fmt.Errorf("failed to grant draw right: %w", err)
		}
	}

	r.invalidateParticipantCache(ctx, id.Hex())

	return nil
}

func (r *participantRepository) RecordHighTierCompletion(ctx context.Context, id primitive.ObjectID, completedAt time.Time) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"completion_count": 1},
			"$set": bson.M{
				"referral_count":              0,
				"last_high_tier_completed_at": completedAt,
				"updated_at":                  time.Now(),
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to record high-tier completion: %w", err)
	}

	r.invalidateParticipantCache(ctx, id.Hex())

	return nil
}

func (r *participantRepository) SetReferredBy(ctx context.Context, id, referrerID primitive.ObjectID) (bool, error) {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "referred_by": nil},
		bson.M{"$set": bson.M{"referred_by": referrerID, "updated_at": time.Now()}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to set referrer: %w", err)
	}

	r.invalidateParticipantCache(ctx, id.Hex())

	return result.ModifiedCount > 0, nil
}

func (r *participantRepository) IncrementReferralCount(ctx context.Context, referrerID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": referrerID},
		bson.M{
			"$inc": bson.M{"referral_count": 1},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to increment referral count: %w", err)
	}

	r.invalidateParticipantCache(ctx, referrerID.Hex())

	return nil
}

// Cache operations
func (r *participantRepository) cacheParticipant(ctx context.Context, participant *models.Participant) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("participant:%s", participant.ID.Hex())
		r.cache.Set(ctx, cacheKey, participant, 15*time.Minute)
	}
}

func (r *participantRepository) getParticipantFromCache(ctx context.Context, participantID string) *models.Participant {
	if r.cache == nil {
		return nil
	}

	cacheKey := fmt.Sprintf("participant:%s", participantID)
	var participant models.Participant
	if err := r.cache.Get(ctx, cacheKey, &participant); err != nil {
		return nil
	}

	return &participant
}

func (r *participantRepository) invalidateParticipantCache(ctx context.Context, participantID string) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("participant:%s", participantID)
		r.cache.Delete(ctx, cacheKey)
	}
}
