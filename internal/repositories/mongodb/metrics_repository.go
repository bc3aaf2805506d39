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

type metricsRepository struct {
	snapshots *mongo.Collection
	metrics   *mongo.Collection
}

func NewMetricsRepository(db *mongo.Database) interfaces.MetricsRepository {
	return &metricsRepository{
		snapshots: db.Collection("rtp_snapshots"),
		metrics:   db.Collection("system_metrics"),
	}
}

func (r *metricsRepository) InsertRTPSnapshot(ctx context.Context, snapshot *models.RTPSnapshot) error {
	snapshot.ID = primitive.NewObjectID()
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = time.Now()
	}

	_, err := r.snapshots.InsertOne(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("failed to insert rtp snapshot: %w", err)
	}

	return nil
}

func (r *metricsRepository) LatestRTPSnapshot(ctx context.Context) (*models.RTPSnapshot, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "captured_at", Value: -1}})

	var snapshot models.RTPSnapshot
	err := r.snapshots.FindOne(ctx, bson.M{}, opts).Decode(&snapshot)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest rtp snapshot: %w", err)
	}

	return &snapshot, nil
}

func (r *metricsRepository) InsertSystemMetrics(ctx context.Context, metrics *models.SystemMetrics) error {
	metrics.ID = primitive.NewObjectID()
	if metrics.CapturedAt.IsZero() {
		metrics.CapturedAt = time.Now()
	}

	_, err := r.metrics.InsertOne(ctx, metrics)
	if err != nil {
		return fmt.Errorf("failed to insert system metrics: %w", err)
	}

	return nil
}

func (r *metricsRepository) ListSystemMetrics(ctx context.Context, limit int64) ([]*models.SystemMetrics, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "captured_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.metrics.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list system metrics: %w", err)
	}
	defer cursor.Close(ctx)

	var results []*models.SystemMetrics
	for cursor.Next(ctx) {
		var row models.SystemMetrics
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode system metrics: %w", err)
		}
		results = append(results, &row)
	}

	return results, nil
}
