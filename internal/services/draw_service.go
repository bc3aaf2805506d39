package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"ringokai/internal/models"
	"ringokai/internal/repositories/interfaces"
	"ringokai/internal/utils"
	"ringokai/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrRewardNotFound      = errors.New("reward not found")

	// Draw preconditions
	ErrInsufficientRights = errors.New("no draw rights available")
	ErrNoApprovedPurchase = errors.New("no submitted or approved purchase on file")

	// Consume preconditions
	ErrNotYetRevealed     = errors.New("reward is not revealed yet")
	ErrWrongTier          = errors.New("reward tier has no consumable credits")
	ErrNoCreditsRemaining = errors.New("reward credits are exhausted")
)

// DrawResult is what a draw hands back: the stored reward plus the
// distribution that produced it, for the audit trail.
type DrawResult struct {
	Reward       *models.Reward    `json:"reward"`
	Distribution *DrawDistribution `json:"distribution"`
}

// RewardView is a reward annotated with its visibility at read time.
type RewardView struct {
	Reward   *models.Reward `json:"reward"`
	Revealed bool           `json:"revealed"`
}

// DrawService runs the weighted draw and the reveal/consume lifecycle of the
// resulting rewards.
type DrawService interface {
	// Draw spends one draw right and produces a pending reward whose tier
	// stays hidden until its reveal time.
	Draw(ctx context.Context, participantID primitive.ObjectID) (*DrawResult, error)

	// GetLatestReward returns the participant's most recent reward,
	// revealing it first when its reveal time has passed.
	GetLatestReward(ctx context.Context, participantID primitive.ObjectID) (*RewardView, error)

	// Consume spends one credit from a revealed silver, gold or red reward.
	// Exhausting a silver or gold reward counts as a high-tier completion.
	Consume(ctx context.Context, participantID, rewardID primitive.ObjectID) (*models.Reward, error)

	// DrawOdds returns the adjusted distribution the participant would draw
	// against right now, with the reasons behind each adjustment.
	DrawOdds(ctx context.Context, participantID primitive.ObjectID) (*DrawDistribution, error)
}

type drawService struct {
	participantRepo interfaces.ParticipantRepository
	rewardRepo      interfaces.RewardRepository
	purchaseRepo    interfaces.PurchaseRepository
	metricsRepo     interfaces.MetricsRepository
	probability     ProbabilityService
	rtpService      RTPService
	logger          *logger.Logger
	now             func() time.Time
	rng             *rand.Rand
}

func NewDrawService(
	participantRepo interfaces.ParticipantRepository,
	rewardRepo interfaces.RewardRepository,
	purchaseRepo interfaces.PurchaseRepository,
	metricsRepo interfaces.MetricsRepository,
	probability ProbabilityService,
	rtpService RTPService,
	logger *logger.Logger,
	now func() time.Time,
	rng *rand.Rand,
) DrawService {
	if now == nil {
		now = time.Now
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &drawService{
		participantRepo: participantRepo,
		rewardRepo:      rewardRepo,
		purchaseRepo:    purchaseRepo,
		metricsRepo:     metricsRepo,
		probability:     probability,
		rtpService:      rtpService,
		logger:          logger,
		now:             now,
		rng:             rng,
	}
}

func (s *drawService) Draw(ctx context.Context, participantID primitive.ObjectID) (*DrawResult, error) {
	participant, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		return nil, ErrParticipantNotFound
	}
	if participant.DrawRights <= 0 {
		return nil, ErrInsufficientRights
	}

	purchase, err := s.purchaseRepo.GetLatestByStatus(ctx, participantID,
		[]models.PurchaseStatus{models.PurchaseStatusSubmitted, models.PurchaseStatusApproved})
	if err != nil {
		return nil, fmt.Errorf("failed to look up qualifying purchase: %w", err)
	}
	if purchase == nil {
		return nil, ErrNoApprovedPurchase
	}

	dist, err := s.probability.DistributionFor(ctx, participant)
	if err != nil {
		return nil, fmt.Errorf("failed to build draw distribution: %w", err)
	}

	tier := s.pickTier(dist.Probabilities)
	credits := models.TierCredits[tier]

	// The right is spent and the credits granted in one conditional update,
	// so two concurrent draws cannot both succeed on a single right.
	consumed, err := s.participantRepo.ConsumeDrawRight(ctx, participantID, credits)
	if err != nil {
		return nil, fmt.Errorf("failed to consume draw right: %w", err)
	}
	if !consumed {
		return nil, ErrInsufficientRights
	}

	now := s.now()
	remaining := 0
	if tier.GrantsCredits() {
		remaining = credits
	}

	reward := &models.Reward{
		ParticipantID:    participantID,
		PurchaseID:       purchase.ID,
		Tier:             tier,
		State:            models.RewardStatePending,
		CreditsGranted:   credits,
		CreditsRemaining: remaining,
		DrawnAt:          now,
		RevealAt:         now.Add(utils.RewardRevealDelay),
	}
	if err := s.rewardRepo.Create(ctx, reward); err != nil {
		return nil, fmt.Errorf("failed to store reward: %w", err)
	}

	// Every dynamic draw leaves an audit record of the ratio and odds it used.
	if dist.Policy == PolicyDynamic {
		snapshot := &models.RTPSnapshot{
			RTP:             dist.RTP,
			Probabilities:   dist.Probabilities,
			FeedbackApplied: dist.FeedbackApplied,
			CapturedAt:      now,
		}
		if err := s.metricsRepo.InsertRTPSnapshot(ctx, snapshot); err != nil {
			s.logger.WithError(err).Warn("Failed to persist payout-ratio snapshot")
		}
	}

	// The draw moved credits, so the cached ratio is stale.
	s.rtpService.Invalidate()

	s.logger.WithParticipantID(participantID).WithFields(map[string]interface{}{
		"reward_id": reward.ID.Hex(),
		"tier":      tier,
		"policy":    dist.Policy,
	}).Info("Draw completed")

	return &DrawResult{Reward: reward, Distribution: dist}, nil
}

func (s *drawService) GetLatestReward(ctx context.Context, participantID primitive.ObjectID) (*RewardView, error) {
	reward, err := s.rewardRepo.GetLatestByParticipant(ctx, participantID)
	if err != nil {
		return nil, ErrRewardNotFound
	}

	reward, err = s.revealIfDue(ctx, reward)
	if err != nil {
		return nil, err
	}

	return &RewardView{Reward: reward, Revealed: reward.Revealed(s.now())}, nil
}

// revealIfDue flips a pending reward to revealed once its reveal time has
// passed. The conditional update makes concurrent reads converge on a single
// transition.
func (s *drawService) revealIfDue(ctx context.Context, reward *models.Reward) (*models.Reward, error) {
	if reward.State != models.RewardStatePending || s.now().Before(reward.RevealAt) {
		return reward, nil
	}

	flipped, err := s.rewardRepo.MarkRevealed(ctx, reward.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reveal reward: %w", err)
	}
	if flipped {
		s.logger.LogDrawEvent(reward.ID, "revealed", nil)
	}
	reward.State = models.RewardStateRevealed
	return reward, nil
}

func (s *drawService) Consume(ctx context.Context, participantID, rewardID primitive.ObjectID) (*models.Reward, error) {
	reward, err := s.rewardRepo.GetByID(ctx, rewardID)
	if err != nil {
		return nil, ErrRewardNotFound
	}
	if reward.ParticipantID != participantID {
		return nil, ErrRewardNotFound
	}

	if !reward.Tier.GrantsCredits() {
		return nil, ErrWrongTier
	}

	if s.now().Before(reward.RevealAt) {
		return nil, ErrNotYetRevealed
	}
	if reward, err = s.revealIfDue(ctx, reward); err != nil {
		return nil, err
	}

	updated, err := s.rewardRepo.SpendCredit(ctx, rewardID)
	if err != nil {
		return nil, fmt.Errorf("failed to spend reward credit: %w", err)
	}
	if updated == nil {
		return nil, ErrNoCreditsRemaining
	}

	if err := s.participantRepo.SpendCredit(ctx, participantID); err != nil {
		return nil, fmt.Errorf("failed to spend participant credit: %w", err)
	}

	// Spending a credit shrinks the available side of the ledger.
	s.rtpService.Invalidate()

	if updated.CreditsRemaining == 0 {
		if err := s.rewardRepo.MarkConsumed(ctx, rewardID); err != nil {
			return nil, fmt.Errorf("failed to finalize reward: %w", err)
		}
		updated.State = models.RewardStateConsumed

		if updated.Tier.IsHighTier() {
			completedAt := s.now()
			if err := s.participantRepo.RecordHighTierCompletion(ctx, participantID, completedAt); err != nil {
				return nil, fmt.Errorf("failed to record completion: %w", err)
			}
			s.logger.WithFields(map[string]interface{}{
				"participant_id": participantID.Hex(),
				"reward_id":      rewardID.Hex(),
				"tier":           updated.Tier,
			}).Info("High-tier reward completed")
		}
	}

	return updated, nil
}

func (s *drawService) DrawOdds(ctx context.Context, participantID primitive.ObjectID) (*DrawDistribution, error) {
	participant, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		return nil, ErrParticipantNotFound
	}

	dist, err := s.probability.DistributionFor(ctx, participant)
	if err != nil {
		return nil, fmt.Errorf("failed to build draw distribution: %w", err)
	}
	return dist, nil
}

// pickTier draws one tier from the distribution. Iteration follows the fixed
// tier order so equal inputs give equal cumulative boundaries.
func (s *drawService) pickTier(probs map[models.RewardTier]float64) models.RewardTier {
	roll := s.rng.Float64()
	var cumulative float64
	for _, tier := range models.RewardTiers {
		cumulative += probs[tier]
		if roll < cumulative {
			return tier
		}
	}
	// Rounding pushed the total a hair under 1.0.
	return models.RewardTiers[len(models.RewardTiers)-1]
}
