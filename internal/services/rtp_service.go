package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ringokai/internal/repositories/interfaces"
	"ringokai/internal/utils"
	"ringokai/pkg/logger"
)

// RTPService derives the economy-wide payout ratio
// (total outstanding obligation / total available credits) and caches it
// process-locally so draw bursts do not hammer the aggregation pipeline.
type RTPService interface {
	// CurrentRatio returns the cached payout ratio, recomputing it from the
	// ledger when the cached value is older than the TTL.
	CurrentRatio(ctx context.Context) (float64, error)

	// Invalidate drops the cached value so the next read recomputes.
	Invalidate()
}

type rtpService struct {
	participantRepo interfaces.ParticipantRepository
	logger          *logger.Logger
	now             func() time.Time
	ttl             time.Duration

	mu         sync.Mutex
	cached     float64
	computedAt time.Time
	valid      bool
}

func NewRTPService(
	participantRepo interfaces.ParticipantRepository,
	logger *logger.Logger,
	now func() time.Time,
) RTPService {
	if now == nil {
		now = time.Now
	}
	return &rtpService{
		participantRepo: participantRepo,
		logger:          logger,
		now:             now,
		ttl:             utils.RTPCacheTTL,
	}
}

func (s *rtpService) CurrentRatio(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.valid && now.Sub(s.computedAt) < s.ttl {
		return s.cached, nil
	}

	totals, err := s.participantRepo.SumLedger(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate ledger totals: %w", err)
	}

	// An empty economy has nothing owed, so the ratio is neutral.
	ratio := 1.0
	if totals.TotalObligation > 0 {
		ratio = float64(totals.TotalAvailable) / float64(totals.TotalObligation)
	}

	s.cached = ratio
	s.computedAt = now
	s.valid = true

	s.logger.WithFields(map[string]interface{}{
		"rtp":              ratio,
		"total_obligation": totals.TotalObligation,
		"total_available":  totals.TotalAvailable,
	}).Debug("Payout ratio recomputed")

	return ratio, nil
}

func (s *rtpService) Invalidate() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}
