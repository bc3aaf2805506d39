package interfaces

import (
	"context"

	"ringokai/internal/models"
)

type ReferralRepository interface {
	Create(ctx context.Context, referral *models.Referral) error
}
