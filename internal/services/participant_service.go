package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ringokai/internal/models"
	"ringokai/internal/repositories/interfaces"
	"ringokai/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrInvalidStatus = errors.New("unknown participant status")

// Dashboard is the participant's home-screen aggregate.
type Dashboard struct {
	Participant        *models.Participant         `json:"participant"`
	RevealedRewards    map[models.RewardTier]int64 `json:"revealed_rewards"`
	HasOpenPurchase    bool                        `json:"has_open_purchase"`
	WishlistRegistered bool                        `json:"wishlist_registered"`
}

// ParticipantService covers registration, the dashboard aggregate and the
// onboarding status flow.
type ParticipantService interface {
	Register(ctx context.Context, email string) (*models.Participant, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Participant, error)
	GetDashboard(ctx context.Context, id primitive.ObjectID) (*Dashboard, error)

	// UpdateStatus advances the participant through the onboarding flow.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.ParticipantStatus) error
}

type participantService struct {
	participantRepo interfaces.ParticipantRepository
	rewardRepo      interfaces.RewardRepository
	purchaseRepo    interfaces.PurchaseRepository
	logger          *logger.Logger
}

func NewParticipantService(
	participantRepo interfaces.ParticipantRepository,
	rewardRepo interfaces.RewardRepository,
	purchaseRepo interfaces.PurchaseRepository,
	logger *logger.Logger,
) ParticipantService {
	return &participantService{
		participantRepo: participantRepo,
		rewardRepo:      rewardRepo,
		purchaseRepo:    purchaseRepo,
		logger:          logger,
	}
}

func (s *participantService) Register(ctx context.Context, email string) (*models.Participant, error) {
	participant := &models.Participant{
		Email:     email,
		Status:    models.ParticipantStatusRegistered,
		CreatedAt: time.Now(),
	}
	if err := s.participantRepo.Create(ctx, participant); err != nil {
		return nil, fmt.Errorf("failed to register participant: %w", err)
	}

	s.logger.WithParticipantID(participant.ID).Info("Participant registered")
	return participant, nil
}

func (s *participantService) Get(ctx context.Context, id primitive.ObjectID) (*models.Participant, error) {
	participant, err := s.participantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrParticipantNotFound
	}
	return participant, nil
}

func (s *participantService) GetDashboard(ctx context.Context, id primitive.ObjectID) (*Dashboard, error) {
	participant, err := s.participantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrParticipantNotFound
	}

	revealed, err := s.rewardRepo.CountRevealedByTier(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count revealed rewards: %w", err)
	}

	open, err := s.purchaseRepo.GetLatestByStatus(ctx, id, models.OpenPurchaseStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to look up open purchase: %w", err)
	}

	return &Dashboard{
		Participant:        participant,
		RevealedRewards:    revealed,
		HasOpenPurchase:    open != nil,
		WishlistRegistered: participant.WishlistRegisteredAt != nil,
	}, nil
}

func (s *participantService) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.ParticipantStatus) error {
	if !validParticipantStatus(status) {
		return ErrInvalidStatus
	}
	if _, err := s.participantRepo.GetByID(ctx, id); err != nil {
		return ErrParticipantNotFound
	}
	if err := s.participantRepo.Update(ctx, id, map[string]interface{}{
		"status": status,
	}); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	s.logger.LogParticipantAction(id, "status_updated", map[string]interface{}{
		"status": status,
	})
	return nil
}

func validParticipantStatus(status models.ParticipantStatus) bool {
	switch status {
	case models.ParticipantStatusRegistered,
		models.ParticipantStatusTermsAgreed,
		models.ParticipantStatusTutorialCompleted,
		models.ParticipantStatusReadyToPurchase,
		models.ParticipantStatusVerifying,
		models.ParticipantStatusFirstPurchaseCompleted,
		models.ParticipantStatusReadyToDraw,
		models.ParticipantStatusActive,
		models.ParticipantStatusSuspended:
		return true
	}
	return false
}
