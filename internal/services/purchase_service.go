package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"ringokai/internal/models"
	"ringokai/internal/repositories/interfaces"
	"ringokai/internal/utils"
	"ringokai/pkg/logger"
	"ringokai/pkg/notify"
	"ringokai/pkg/storage"
	"ringokai/pkg/verify"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrPurchaseNotFound    = errors.New("purchase not found")
	ErrNoTargetsAvailable  = errors.New("no wishlist targets available")
	ErrAllTargetsContended = errors.New("all wishlist targets were claimed concurrently")
	ErrScreenshotRequired  = errors.New("purchase has no screenshot attached")
	ErrScreenshotTooLarge  = errors.New("screenshot exceeds the size limit")
	ErrScreenshotBadType   = errors.New("screenshot must be a PNG or JPEG image")
	ErrPurchaseFinalized   = errors.New("purchase already reached a terminal state")
)

// PurchaseService runs the purchase side of the economy: claiming a target
// from another participant's wishlist, submitting proof, and recording the
// verification verdict.
type PurchaseService interface {
	// StartPurchase claims one available wishlist target for the purchaser
	// and opens a pending purchase against it. Idempotent: an already open
	// purchase is returned unchanged.
	StartPurchase(ctx context.Context, purchaserID primitive.ObjectID) (*models.Purchase, error)

	// GetOpenPurchase returns the purchaser's pending or submitted purchase,
	// or nil when none is open.
	GetOpenPurchase(ctx context.Context, purchaserID primitive.ObjectID) (*models.Purchase, error)

	// AttachScreenshot stores the uploaded proof image and references it on
	// the purchase.
	AttachScreenshot(ctx context.Context, purchaserID, purchaseID primitive.ObjectID, data []byte, contentType string) (*models.Purchase, error)

	// Submit moves a pending purchase to submitted and asks the verification
	// provider for a verdict. Provider failure parks the purchase for manual
	// review instead of failing the submission.
	Submit(ctx context.Context, purchaserID, purchaseID primitive.ObjectID) (*models.Purchase, error)

	// Decide applies a manual verification verdict to a non-terminal purchase.
	Decide(ctx context.Context, purchaseID primitive.ObjectID, decision models.VerificationDecision, notes string) (*models.Purchase, error)
}

type purchaseService struct {
	participantRepo interfaces.ParticipantRepository
	purchaseRepo    interfaces.PurchaseRepository
	wishlistRepo    interfaces.WishlistRepository
	verifier        verify.Provider
	emailSender     notify.EmailSender
	storageProvider storage.StorageProvider
	rtpService      RTPService
	logger          *logger.Logger
	now             func() time.Time
}

func NewPurchaseService(
	participantRepo interfaces.ParticipantRepository,
	purchaseRepo interfaces.PurchaseRepository,
	wishlistRepo interfaces.WishlistRepository,
	verifier verify.Provider,
	emailSender notify.EmailSender,
	storageProvider storage.StorageProvider,
	rtpService RTPService,
	logger *logger.Logger,
	now func() time.Time,
) PurchaseService {
	if now == nil {
		now = time.Now
	}
	return &purchaseService{
		participantRepo: participantRepo,
		purchaseRepo:    purchaseRepo,
		wishlistRepo:    wishlistRepo,
		verifier:        verifier,
		emailSender:     emailSender,
		storageProvider: storageProvider,
		rtpService:      rtpService,
		logger:          logger,
		now:             now,
	}
}

func (s *purchaseService) StartPurchase(ctx context.Context, purchaserID primitive.ObjectID) (*models.Purchase, error) {
	participant, err := s.participantRepo.GetByID(ctx, purchaserID)
	if err != nil {
		return nil, ErrParticipantNotFound
	}

	existing, err := s.purchaseRepo.GetLatestByStatus(ctx, purchaserID, models.OpenPurchaseStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to look up open purchase: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	candidates, err := s.wishlistRepo.ListAvailable(ctx, purchaserID, utils.ClaimCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist targets: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoTargetsAvailable
	}

	// Claim protocol: insert the purchase first, then take the target with a
	// conditional update. A lost race removes the orphan purchase and moves
	// on to the next candidate, so the loop is bounded by the candidate list.
	for _, item := range candidates {
		purchase := &models.Purchase{
			PurchaserID:         purchaserID,
			TargetParticipantID: item.ParticipantID,
			TargetWishlistURL:   item.URL,
			TargetItemName:      item.Title,
			TargetItemPrice:     item.Price,
			Status:              models.PurchaseStatusPending,
		}
		if err := s.purchaseRepo.Create(ctx, purchase); err != nil {
			return nil, fmt.Errorf("failed to open purchase: %w", err)
		}

		claimed, err := s.wishlistRepo.Claim(ctx, item.ID, purchase.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to claim wishlist target: %w", err)
		}
		if !claimed {
			if err := s.purchaseRepo.Delete(ctx, purchase.ID); err != nil {
				s.logger.WithError(err).
					WithField("purchase_id", purchase.ID.Hex()).
					Warn("Failed to remove purchase that lost the claim race")
			}
			continue
		}

		if err := s.participantRepo.IncrementObligation(ctx, purchaserID, 1); err != nil {
			return nil, fmt.Errorf("failed to record obligation: %w", err)
		}
		if participant.Status == models.ParticipantStatusTutorialCompleted ||
			participant.Status == models.ParticipantStatusRegistered ||
			participant.Status == models.ParticipantStatusTermsAgreed {
			if err := s.participantRepo.Update(ctx, purchaserID, map[string]interface{}{
				"status": models.ParticipantStatusReadyToPurchase,
			}); err != nil {
				return nil, fmt.Errorf("failed to update participant status: %w", err)
			}
		}
		s.rtpService.Invalidate()

		s.logger.WithFields(map[string]interface{}{
			"purchaser_id": purchaserID.Hex(),
			"purchase_id":  purchase.ID.Hex(),
			"target_id":    item.ParticipantID.Hex(),
		}).Info("Wishlist target claimed")

		return purchase, nil
	}

	return nil, ErrAllTargetsContended
}

func (s *purchaseService) GetOpenPurchase(ctx context.Context, purchaserID primitive.ObjectID) (*models.Purchase, error) {
	purchase, err := s.purchaseRepo.GetLatestByStatus(ctx, purchaserID, models.OpenPurchaseStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to look up open purchase: %w", err)
	}
	return purchase, nil
}

func (s *purchaseService) AttachScreenshot(ctx context.Context, purchaserID, purchaseID primitive.ObjectID, data []byte, contentType string) (*models.Purchase, error) {
	purchase, err := s.ownedPurchase(ctx, purchaserID, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.Status.Terminal() {
		return nil, ErrPurchaseFinalized
	}

	if len(data) > utils.MaxScreenshotSize {
		return nil, ErrScreenshotTooLarge
	}
	var ext string
	switch contentType {
	case "image/png":
		ext = "png"
	case "image/jpeg":
		ext = "jpg"
	default:
		return nil, ErrScreenshotBadType
	}

	key := fmt.Sprintf("screenshots/%s/%s.%s", purchaserID.Hex(), purchaseID.Hex(), ext)
	uploaded, err := s.storageProvider.Upload(ctx, &storage.UploadRequest{
		Key:         key,
		Reader:      bytes.NewReader(data),
		ContentType: contentType,
		Size:        int64(len(data)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store screenshot: %w", err)
	}

	if err := s.purchaseRepo.Update(ctx, purchaseID, map[string]interface{}{
		"screenshot_ref": uploaded.Key,
	}); err != nil {
		return nil, fmt.Errorf("failed to reference screenshot: %w", err)
	}
	purchase.ScreenshotRef = uploaded.Key

	return purchase, nil
}

func (s *purchaseService) Submit(ctx context.Context, purchaserID, purchaseID primitive.ObjectID) (*models.Purchase, error) {
	purchase, err := s.ownedPurchase(ctx, purchaserID, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.Status.Terminal() {
		return nil, ErrPurchaseFinalized
	}
	if purchase.ScreenshotRef == "" {
		return nil, ErrScreenshotRequired
	}

	if err := s.purchaseRepo.Update(ctx, purchaseID, map[string]interface{}{
		"status": models.PurchaseStatusSubmitted,
	}); err != nil {
		return nil, fmt.Errorf("failed to submit purchase: %w", err)
	}
	purchase.Status = models.PurchaseStatusSubmitted

	if err := s.participantRepo.Update(ctx, purchaserID, map[string]interface{}{
		"status": models.ParticipantStatusVerifying,
	}); err != nil {
		return nil, fmt.Errorf("failed to update participant status: %w", err)
	}

	result, err := s.verifier.Verify(ctx, &verify.Request{
		PurchaseID:    purchaseID.Hex(),
		PurchaserID:   purchaserID.Hex(),
		TargetURL:     purchase.TargetWishlistURL,
		TargetItem:    purchase.TargetItemName,
		TargetPrice:   purchase.TargetItemPrice,
		ScreenshotRef: purchase.ScreenshotRef,
	})
	if err != nil {
		// Provider trouble never blocks the participant; the purchase parks
		// in the manual review queue instead.
		s.logger.WithError(err).
			WithField("purchase_id", purchaseID.Hex()).
			Warn("Verification provider failed, parking purchase for review")
		return s.applyDecision(ctx, purchase, models.VerificationReviewRequired,
			"verification provider unavailable", nil)
	}

	return s.applyDecision(ctx, purchase, models.VerificationDecision(result.Decision), result.Reason, result.Metadata)
}

func (s *purchaseService) Decide(ctx context.Context, purchaseID primitive.ObjectID, decision models.VerificationDecision, notes string) (*models.Purchase, error) {
	purchase, err := s.purchaseRepo.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, ErrPurchaseNotFound
	}
	if purchase.Status.Terminal() {
		return nil, ErrPurchaseFinalized
	}
	if notes != "" {
		if err := s.purchaseRepo.Update(ctx, purchaseID, map[string]interface{}{
			"admin_notes": notes,
		}); err != nil {
			return nil, fmt.Errorf("failed to record admin notes: %w", err)
		}
		purchase.AdminNotes = notes
	}
	return s.applyDecision(ctx, purchase, decision, "manual decision", nil)
}

// applyDecision records the verdict on the purchase and performs the ledger
// and claim side effects the verdict implies.
func (s *purchaseService) applyDecision(ctx context.Context, purchase *models.Purchase, decision models.VerificationDecision, reason string, metadata map[string]interface{}) (*models.Purchase, error) {
	now := s.now()
	updates := map[string]interface{}{
		"verification_status": decision,
		"verification_result": reason,
	}
	if metadata != nil {
		updates["verification_metadata"] = metadata
	}

	switch decision {
	case models.VerificationApproved:
		updates["status"] = models.PurchaseStatusApproved
		updates["verified_at"] = now
	case models.VerificationRejected:
		updates["status"] = models.PurchaseStatusRejected
		updates["verified_at"] = now
	default:
		updates["status"] = models.PurchaseStatusReviewRequired
	}

	if err := s.purchaseRepo.Update(ctx, purchase.ID, updates); err != nil {
		return nil, fmt.Errorf("failed to record verification verdict: %w", err)
	}
	purchase.Status = updates["status"].(models.PurchaseStatus)
	purchase.VerificationStatus = decision
	purchase.VerificationResult = reason
	if metadata != nil {
		purchase.VerificationMetadata = metadata
	}
	if decision == models.VerificationApproved || decision == models.VerificationRejected {
		purchase.VerifiedAt = &now
	}

	switch decision {
	case models.VerificationApproved:
		// One verified purchase converts one obligation into one draw right.
		if err := s.participantRepo.GrantApproval(ctx, purchase.PurchaserID); err != nil {
			return nil, fmt.Errorf("failed to grant draw right: %w", err)
		}
		if err := s.participantRepo.Update(ctx, purchase.PurchaserID, map[string]interface{}{
			"status": models.ParticipantStatusFirstPurchaseCompleted,
		}); err != nil {
			return nil, fmt.Errorf("failed to update participant status: %w", err)
		}
		s.rtpService.Invalidate()
		s.notifyVerdict(purchase, "Your purchase was approved",
			"Your purchase was verified. A draw right has been added to your account.")

	case models.VerificationRejected:
		// The claimed target goes back into the pool.
		if err := s.wishlistRepo.Release(ctx, purchase.ID); err != nil {
			return nil, fmt.Errorf("failed to release wishlist target: %w", err)
		}
		if err := s.participantRepo.Update(ctx, purchase.PurchaserID, map[string]interface{}{
			"status": models.ParticipantStatusReadyToPurchase,
		}); err != nil {
			return nil, fmt.Errorf("failed to update participant status: %w", err)
		}
		s.notifyVerdict(purchase, "Your purchase was rejected",
			"Your purchase could not be verified. Please start a new purchase.")
	}

	s.logger.WithFields(map[string]interface{}{
		"purchase_id": purchase.ID.Hex(),
		"decision":    decision,
	}).Info("Verification verdict recorded")

	return purchase, nil
}

// notifyVerdict delivers the verdict mail without blocking or failing the
// verification flow.
func (s *purchaseService) notifyVerdict(purchase *models.Purchase, subject, body string) {
	purchaserID := purchase.PurchaserID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		participant, err := s.participantRepo.GetByID(ctx, purchaserID)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to load participant for verdict mail")
			return
		}
		if err := s.emailSender.Send(ctx, &notify.Email{
			To:      participant.Email,
			Subject: subject,
			HTML:    fmt.Sprintf("<p>%s</p>", body),
		}); err != nil {
			s.logger.WithError(err).Warn("Failed to send verdict mail")
		}
	}()
}

func (s *purchaseService) ownedPurchase(ctx context.Context, purchaserID, purchaseID primitive.ObjectID) (*models.Purchase, error) {
	purchase, err := s.purchaseRepo.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, ErrPurchaseNotFound
	}
	if purchase.PurchaserID != purchaserID {
		return nil, ErrPurchaseNotFound
	}
	return purchase, nil
}
