package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ringokai/internal/models"
	"ringokai/internal/repositories/interfaces"
	"ringokai/internal/utils"
	"ringokai/internal/validators"
	"ringokai/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrWishlistNotFound         = errors.New("wishlist not registered")
	ErrWishlistNotSingleItem    = errors.New("wishlist must contain exactly one item")
	ErrWishlistPriceOutOfRange  = errors.New("wishlist item price is outside the allowed range")
	ErrWishlistInspectionFailed = errors.New("wishlist could not be inspected")
)

// WishlistInspector reads the public wishlist page behind a URL and reports
// what is on it. How the page is fetched and parsed lives outside this core.
type WishlistInspector interface {
	Inspect(ctx context.Context, url string) (*models.WishlistSnapshot, error)
}

// WishlistService registers and exposes participant wishlists. A registered
// wishlist is what other participants claim as a purchase target.
type WishlistService interface {
	// Register validates and stores the participant's wishlist. The first
	// successful registration grants a draw right and readies the
	// participant for their first draw.
	Register(ctx context.Context, participantID primitive.ObjectID, rawURL string) (*models.WishlistItem, error)

	// Get returns the participant's registered wishlist entry.
	Get(ctx context.Context, participantID primitive.ObjectID) (*models.WishlistItem, error)
}

type wishlistService struct {
	participantRepo interfaces.ParticipantRepository
	wishlistRepo    interfaces.WishlistRepository
	inspector       WishlistInspector
	logger          *logger.Logger
	now             func() time.Time
}

func NewWishlistService(
	participantRepo interfaces.ParticipantRepository,
	wishlistRepo interfaces.WishlistRepository,
	inspector WishlistInspector,
	logger *logger.Logger,
	now func() time.Time,
) WishlistService {
	if now == nil {
		now = time.Now
	}
	return &wishlistService{
		participantRepo: participantRepo,
		wishlistRepo:    wishlistRepo,
		inspector:       inspector,
		logger:          logger,
		now:             now,
	}
}

func (s *wishlistService) Register(ctx context.Context, participantID primitive.ObjectID, rawURL string) (*models.WishlistItem, error) {
	participant, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		return nil, ErrParticipantNotFound
	}

	url, err := validators.NormalizeWishlistURL(rawURL)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.inspector.Inspect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWishlistInspectionFailed, err)
	}
	if snapshot.ItemCount != 1 {
		return nil, ErrWishlistNotSingleItem
	}
	if snapshot.Price < utils.WishlistMinPrice || snapshot.Price > utils.WishlistMaxPrice {
		return nil, ErrWishlistPriceOutOfRange
	}

	item := &models.WishlistItem{
		ParticipantID: participantID,
		Title:         snapshot.Title,
		Price:         snapshot.Price,
		URL:           url,
	}
	if err := s.wishlistRepo.Upsert(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to store wishlist: %w", err)
	}

	updates := map[string]interface{}{
		"wishlist_url": url,
	}
	if participant.WishlistRegisteredAt == nil {
		// First registration opens the draw lifecycle.
		updates["wishlist_registered_at"] = s.now()
		updates["draw_rights"] = participant.DrawRights + 1
		updates["status"] = models.ParticipantStatusReadyToDraw
	}
	if err := s.participantRepo.Update(ctx, participantID, updates); err != nil {
		return nil, fmt.Errorf("failed to update participant: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"participant_id": participantID.Hex(),
		"price":          snapshot.Price,
		"first":          participant.WishlistRegisteredAt == nil,
	}).Info("Wishlist registered")

	return item, nil
}

func (s *wishlistService) Get(ctx context.Context, participantID primitive.ObjectID) (*models.WishlistItem, error) {
	item, err := s.wishlistRepo.GetByParticipant(ctx, participantID)
	if err != nil {
		return nil, ErrWishlistNotFound
	}
	return item, nil
}
