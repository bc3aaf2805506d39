package services

import (
	"context"
	"fmt"
	"time"

	"ringokai/internal/models"
	"ringokai/internal/repositories/interfaces"
	"ringokai/internal/utils"
	"ringokai/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VerificationQueueEntry joins a purchase awaiting a verdict with the
// context an operator needs to judge it.
type VerificationQueueEntry struct {
	Purchase       *models.Purchase     `json:"purchase"`
	PurchaserEmail string               `json:"purchaser_email"`
	Target         *models.WishlistItem `json:"target,omitempty"`
}

// AdminService is the operator surface: the verification queue, participant
// management, manual grants and the batch economy snapshot.
type AdminService interface {
	ListVerificationQueue(ctx context.Context, limit int64) ([]*VerificationQueueEntry, error)
	ListParticipants(ctx context.Context, params *utils.PaginationParams, status models.ParticipantStatus) ([]*models.Participant, int64, error)

	// UpdateParticipant applies a restricted set of field edits.
	UpdateParticipant(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) (*models.Participant, error)

	// GrantTopTierReward hands a participant an already revealed top-tier
	// reward, outside the normal draw flow.
	GrantTopTierReward(ctx context.Context, participantID primitive.ObjectID) (*models.Reward, error)

	// RunBatchRTPUpdate recomputes the payout ratio from scratch and records
	// a system-metrics snapshot.
	RunBatchRTPUpdate(ctx context.Context) (*models.SystemMetrics, error)

	ListSystemMetrics(ctx context.Context, limit int64) ([]*models.SystemMetrics, error)
}

// adminEditableFields is the whitelist for UpdateParticipant.
var adminEditableFields = map[string]bool{
	"status":            true,
	"available_credits": true,
	"draw_rights":       true,
	"obligation_count":  true,
	"referral_count":    true,
	"completion_count":  true,
	"wishlist_url":      true,
	"referred_by":       true,
}

type adminService struct {
	participantRepo interfaces.ParticipantRepository
	purchaseRepo    interfaces.PurchaseRepository
	wishlistRepo    interfaces.WishlistRepository
	rewardRepo      interfaces.RewardRepository
	metricsRepo     interfaces.MetricsRepository
	rtpService      RTPService
	probability     ProbabilityService
	logger          *logger.Logger
	now             func() time.Time
}

func NewAdminService(
	participantRepo interfaces.ParticipantRepository,
	purchaseRepo interfaces.PurchaseRepository,
	wishlistRepo interfaces.WishlistRepository,
	rewardRepo interfaces.RewardRepository,
	metricsRepo interfaces.MetricsRepository,
	rtpService RTPService,
	probability ProbabilityService,
	logger *logger.Logger,
	now func() time.Time,
) AdminService {
	if now == nil {
		now = time.Now
	}
	return &adminService{
		participantRepo: participantRepo,
		purchaseRepo:    purchaseRepo,
		wishlistRepo:    wishlistRepo,
		rewardRepo:      rewardRepo,
		metricsRepo:     metricsRepo,
		rtpService:      rtpService,
		probability:     probability,
		logger:          logger,
		now:             now,
	}
}

func (s *adminService) ListVerificationQueue(ctx context.Context, limit int64) ([]*VerificationQueueEntry, error) {
	purchases, err := s.purchaseRepo.ListByStatus(ctx,
		[]models.PurchaseStatus{models.PurchaseStatusSubmitted, models.PurchaseStatusReviewRequired}, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list verification queue: %w", err)
	}

	purchaseIDs := make([]primitive.ObjectID, len(purchases))
	for i, p := range purchases {
		purchaseIDs[i] = p.ID
	}
	targets, err := s.wishlistRepo.GetByAssignedPurchases(ctx, purchaseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load claimed targets: %w", err)
	}

	entries := make([]*VerificationQueueEntry, 0, len(purchases))
	for _, p := range purchases {
		entry := &VerificationQueueEntry{Purchase: p, Target: targets[p.ID]}
		if purchaser, err := s.participantRepo.GetByID(ctx, p.PurchaserID); err == nil {
			entry.PurchaserEmail = purchaser.Email
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *adminService) ListParticipants(ctx context.Context, params *utils.PaginationParams, status models.ParticipantStatus) ([]*models.Participant, int64, error) {
	return s.participantRepo.List(ctx, params, status)
}

func (s *adminService) UpdateParticipant(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) (*models.Participant, error) {
	filtered := make(map[string]interface{}, len(updates))
	for field, value := range updates {
		if !adminEditableFields[field] {
			return nil, fmt.Errorf("field %q is not editable", field)
		}
		if field == "status" {
			status, ok := value.(string)
			if !ok || !validParticipantStatus(models.ParticipantStatus(status)) {
				return nil, ErrInvalidStatus
			}
		}
		filtered[field] = value
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no editable fields in request")
	}

	if err := s.participantRepo.Update(ctx, id, filtered); err != nil {
		return nil, fmt.Errorf("failed to update participant: %w", err)
	}
	s.rtpService.Invalidate()

	participant, err := s.participantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrParticipantNotFound
	}

	s.logger.WithFields(map[string]interface{}{
		"participant_id": id.Hex(),
		"fields":         len(filtered),
	}).Info("Participant edited by operator")

	return participant, nil
}

func (s *adminService) GrantTopTierReward(ctx context.Context, participantID primitive.ObjectID) (*models.Reward, error) {
	participant, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		return nil, ErrParticipantNotFound
	}

	now := s.now()
	credits := models.TierCredits[models.RewardTierRed]
	reward := &models.Reward{
		ParticipantID:    participantID,
		Tier:             models.RewardTierRed,
		State:            models.RewardStateRevealed,
		CreditsGranted:   credits,
		CreditsRemaining: credits,
		DrawnAt:          now,
		RevealAt:         now,
	}
	if err := s.rewardRepo.Create(ctx, reward); err != nil {
		return nil, fmt.Errorf("failed to store granted reward: %w", err)
	}

	if err := s.participantRepo.Update(ctx, participantID, map[string]interface{}{
		"available_credits": participant.AvailableCredits + credits,
	}); err != nil {
		return nil, fmt.Errorf("failed to credit participant: %w", err)
	}
	s.rtpService.Invalidate()

	s.logger.WithFields(map[string]interface{}{
		"participant_id": participantID.Hex(),
		"reward_id":      reward.ID.Hex(),
	}).Info("Top-tier reward granted by operator")

	return reward, nil
}

func (s *adminService) RunBatchRTPUpdate(ctx context.Context) (*models.SystemMetrics, error) {
	s.rtpService.Invalidate()

	rtp, err := s.rtpService.CurrentRatio(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute payout ratio: %w", err)
	}

	dist, err := s.probability.BaseDistribution(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build base distribution: %w", err)
	}

	totals, err := s.participantRepo.SumLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ledger: %w", err)
	}
	total, err := s.participantRepo.GetTotalCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	newThisMonth, err := s.participantRepo.GetCountRegisteredSince(ctx, monthStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count new participants: %w", err)
	}
	active, err := s.participantRepo.GetCountByStatus(ctx, models.ActiveStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to count active participants: %w", err)
	}

	metrics := &models.SystemMetrics{
		TotalParticipants: total,
		NewThisMonth:      newThisMonth,
		ActiveCount:       active,
		TotalObligation:   totals.TotalObligation,
		TotalAvailable:    totals.TotalAvailable,
		CurrentRTP:        rtp,
		PredictedRTP:      dist.PredictedRTP,
		GrowthRate:        dist.GrowthRate,
		BronzeProbability: dist.Probabilities[models.RewardTierBronze],
		SilverProbability: dist.Probabilities[models.RewardTierSilver],
		GoldProbability:   dist.Probabilities[models.RewardTierGold],
		RedProbability:    dist.Probabilities[models.RewardTierRed],
		PoisonProbability: dist.Probabilities[models.RewardTierPoison],
		CapturedAt:        now,
	}
	if err := s.metricsRepo.InsertSystemMetrics(ctx, metrics); err != nil {
		return nil, fmt.Errorf("failed to store system metrics: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"rtp":           rtp,
		"predicted_rtp": dist.PredictedRTP,
		"participants":  total,
	}).Info("Batch payout-ratio update completed")

	return metrics, nil
}

func (s *adminService) ListSystemMetrics(ctx context.Context, limit int64) ([]*models.SystemMetrics, error) {
	metrics, err := s.metricsRepo.ListSystemMetrics(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list system metrics: %w", err)
	}
	return metrics, nil
}
