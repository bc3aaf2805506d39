package interfaces

import (
	"context"
	"time"

	"ringokai/internal/models"
	"ringokai/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ParticipantRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, participant *models.Participant) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Participant, error)
	GetByReferralCode(ctx context.Context, code string) (*models.Participant, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error
	List(ctx context.Context, params *utils.PaginationParams, status models.ParticipantStatus) ([]*models.Participant, int64, error)

	// Ledger aggregates
	SumLedger(ctx context.Context) (*models.LedgerTotals, error)
	GetTotalCount(ctx context.Context) (int64, error)
	GetCountByStatus(ctx context.Context, statuses []models.ParticipantStatus) (int64, error)
	GetCountRegisteredSince(ctx context.Context, since time.Time) (int64, error)
	GetStatusBreakdown(ctx context.Context) (map[models.ParticipantStatus]int64, error)

	// Conditional ledger mutations. Each is a single server-side
	// compare-and-set so concurrent draws/consumptions cannot lose updates.

	// ConsumeDrawRight decrements draw_rights by one and adds creditDelta to
	// available_credits, only while draw_rights > 0. Returns false when the
	// precondition fails.
	ConsumeDrawRight(ctx context.Context, id primitive.ObjectID, creditDelta int) (bool, error)

	// SpendCredit decrements available_credits by one, flooring at zero.
	SpendCredit(ctx context.Context, id primitive.ObjectID) error

	// IncrementObligation adds delta to obligation_count.
	IncrementObligation(ctx context.Context, id primitive.ObjectID, delta int) error

	// GrantApproval credits one draw right and settles one obligation
	// (obligation floored at zero).
	GrantApproval(ctx context.Context, id primitive.ObjectID) error

	// RecordHighTierCompletion resets referral progress, bumps the lifetime
	// completion counter and stamps the completion time.
	RecordHighTierCompletion(ctx context.Context, id primitive.ObjectID, completedAt time.Time) error

	// SetReferredBy records the referrer, only if none is set yet.
	SetReferredBy(ctx context.Context, id, referrerID primitive.ObjectID) (bool, error)

	// IncrementReferralCount adds one successful referral to the referrer.
	IncrementReferralCount(ctx context.Context, referrerID primitive.ObjectID) error
}
