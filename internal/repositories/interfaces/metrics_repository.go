package interfaces

import (
	"context"

	"ringokai/internal/models"
)

type MetricsRepository interface {
	InsertRTPSnapshot(ctx context.Context, snapshot *models.RTPSnapshot) error
	LatestRTPSnapshot(ctx context.Context) (*models.RTPSnapshot, error)
	InsertSystemMetrics(ctx context.Context, metrics *models.SystemMetrics) error
	ListSystemMetrics(ctx context.Context, limit int64) ([]*models.SystemMetrics, error)
}
