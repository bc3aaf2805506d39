package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ringokai/internal/models"
	"ringokai/internal/repositories/interfaces"
	"ringokai/internal/utils"
	"ringokai/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrReferralCodeNotFound   = errors.New("referral code not found")
	ErrSelfReferral           = errors.New("cannot claim your own referral code")
	ErrReferralAlreadyClaimed = errors.New("referral already claimed")
	ErrReferralCodeExhausted  = errors.New("could not allocate a unique referral code")
)

// ReferralSummary is the participant-facing view of referral progress.
type ReferralSummary struct {
	Code          string `json:"code"`
	ReferralCount int    `json:"referral_count"`
	Thresholds    []int  `json:"thresholds"`
	NextThreshold int    `json:"next_threshold"`
	Remaining     int    `json:"remaining"`
}

// ReferralService manages referral codes and the one-shot referred-by claim.
type ReferralService interface {
	// EnsureCode returns the participant's referral code, allocating one on
	// first use.
	EnsureCode(ctx context.Context, participantID primitive.ObjectID) (string, error)

	// Summary reports referral progress against the odds-table thresholds.
	Summary(ctx context.Context, participantID primitive.ObjectID) (*ReferralSummary, error)

	// Claim records that the participant was referred by the code's owner.
	// A participant can be referred at most once and never by themselves.
	Claim(ctx context.Context, participantID primitive.ObjectID, code string) error
}

type referralService struct {
	participantRepo interfaces.ParticipantRepository
	referralRepo    interfaces.ReferralRepository
	logger          *logger.Logger
}

func NewReferralService(
	participantRepo interfaces.ParticipantRepository,
	referralRepo interfaces.ReferralRepository,
	logger *logger.Logger,
) ReferralService {
	return &referralService{
		participantRepo: participantRepo,
		referralRepo:    referralRepo,
		logger:          logger,
	}
}

func (s *referralService) EnsureCode(ctx context.Context, participantID primitive.ObjectID) (string, error) {
	participant, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		return "", ErrParticipantNotFound
	}
	if participant.ReferralCode != "" {
		return participant.ReferralCode, nil
	}

	for attempt := 0; attempt < utils.ReferralCodeMaxAttempts; attempt++ {
		code := utils.GenerateReferralCode()

		if _, err := s.participantRepo.GetByReferralCode(ctx, code); err == nil {
			continue // collision, try again
		}

		if err := s.participantRepo.Update(ctx, participantID, map[string]interface{}{
			"referral_code": code,
		}); err != nil {
			return "", fmt.Errorf("failed to store referral code: %w", err)
		}

		s.logger.WithFields(map[string]interface{}{
			"participant_id": participantID.Hex(),
			"referral_code":  code,
		}).Info("Referral code allocated")

		return code, nil
	}

	return "", ErrReferralCodeExhausted
}

func (s *referralService) Summary(ctx context.Context, participantID primitive.ObjectID) (*ReferralSummary, error) {
	participant, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		return nil, ErrParticipantNotFound
	}

	next := models.NextReferralThreshold(participant.ReferralCount)
	remaining := 0
	if next > 0 {
		remaining = next - participant.ReferralCount
	}

	return &ReferralSummary{
		Code:          participant.ReferralCode,
		ReferralCount: participant.ReferralCount,
		Thresholds:    models.ReferralThresholds,
		NextThreshold: next,
		Remaining:     remaining,
	}, nil
}

func (s *referralService) Claim(ctx context.Context, participantID primitive.ObjectID, code string) error {
	referrer, err := s.participantRepo.GetByReferralCode(ctx, code)
	if err != nil {
		return ErrReferralCodeNotFound
	}
	if referrer.ID == participantID {
		return ErrSelfReferral
	}

	set, err := s.participantRepo.SetReferredBy(ctx, participantID, referrer.ID)
	if err != nil {
		return fmt.Errorf("failed to record referrer: %w", err)
	}
	if !set {
		return ErrReferralAlreadyClaimed
	}

	if err := s.participantRepo.IncrementReferralCount(ctx, referrer.ID); err != nil {
		return fmt.Errorf("failed to credit referrer: %w", err)
	}

	// The edge record is bookkeeping; the counter above is authoritative.
	referral := &models.Referral{
		ReferrerID: referrer.ID,
		ReferredID: participantID,
		CreatedAt:  time.Now(),
	}
	if err := s.referralRepo.Create(ctx, referral); err != nil {
		s.logger.WithError(err).Warn("Failed to record referral edge")
	}

	s.logger.WithFields(map[string]interface{}{
		"referrer_id": referrer.ID.Hex(),
		"referred_id": participantID.Hex(),
	}).Info("Referral claimed")

	return nil
}
