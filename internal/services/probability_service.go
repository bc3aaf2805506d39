package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"ringokai/internal/models"
	"ringokai/internal/repositories/interfaces"
	"ringokai/internal/utils"
	"ringokai/pkg/logger"
)

// DistributionPolicy names which probability table produced a distribution.
type DistributionPolicy string

const (
	PolicyBootstrap DistributionPolicy = "bootstrap"
	PolicyDynamic   DistributionPolicy = "dynamic"
)

// DrawDistribution is a fully adjusted tier distribution for one draw,
// together with the diagnostics the admin surface and audit trail consume.
type DrawDistribution struct {
	Probabilities map[models.RewardTier]float64 `json:"probabilities"`
	Policy        DistributionPolicy            `json:"policy"`
	Reasons       []string                      `json:"reasons"`
	RTP           float64                       `json:"rtp"`
	PredictedRTP  float64                       `json:"predicted_rtp"`
	GrowthRate    float64                       `json:"growth_rate"`

	// FeedbackApplied is true when the measured-ratio feedback pass touched
	// the distribution. Predictive re-runs never set it.
	FeedbackApplied bool `json:"-"`
}

// ProbabilityService selects and adjusts the tier distribution used for a
// draw. Table selection depends on economy maturity; the per-participant
// stages depend on referral progress and completion history.
type ProbabilityService interface {
	// DistributionFor builds the adjusted distribution for one participant.
	DistributionFor(ctx context.Context, participant *models.Participant) (*DrawDistribution, error)

	// BaseDistribution builds the distribution for a participant with no
	// history, used for economy-wide reporting.
	BaseDistribution(ctx context.Context) (*DrawDistribution, error)
}

type probabilityService struct {
	participantRepo interfaces.ParticipantRepository
	rtpService      RTPService
	logger          *logger.Logger
	launchedAt      time.Time
	now             func() time.Time
}

func NewProbabilityService(
	participantRepo interfaces.ParticipantRepository,
	rtpService RTPService,
	logger *logger.Logger,
	launchedAt time.Time,
	now func() time.Time,
) ProbabilityService {
	if now == nil {
		now = time.Now
	}
	return &probabilityService{
		participantRepo: participantRepo,
		rtpService:      rtpService,
		logger:          logger,
		launchedAt:      launchedAt,
		now:             now,
	}
}

// tierVector is one table row. Order follows models.RewardTiers.
type tierVector struct {
	Bronze, Silver, Gold, Red, Poison float64
}

func (v tierVector) toMap() map[models.RewardTier]float64 {
	return map[models.RewardTier]float64{
		models.RewardTierBronze: v.Bronze,
		models.RewardTierSilver: v.Silver,
		models.RewardTierGold:   v.Gold,
		models.RewardTierRed:    v.Red,
		models.RewardTierPoison: v.Poison,
	}
}

type tableRow struct {
	maxReferrals int // -1 means open-ended
	probs        tierVector
}

// bootstrapTable is the conservative table used while the economy is young,
// small or its payout ratio is unreliable. Rows are keyed by referral count.
var bootstrapTable = []tableRow{
	{0, tierVector{0.55, 0.20, 0.12, 0.03, 0.10}},
	{1, tierVector{0.52, 0.22, 0.14, 0.04, 0.08}},
	{2, tierVector{0.49, 0.24, 0.16, 0.05, 0.06}},
	{-1, tierVector{0.46, 0.26, 0.18, 0.06, 0.04}},
}

// dynamicTable is the steady-state table. Higher referral counts shift mass
// toward the upper tiers and away from bronze.
var dynamicTable = []tableRow{
	{0, tierVector{0.60, 0.18, 0.10, 0.02, 0.10}},
	{3, tierVector{0.58, 0.18, 0.10, 0.02, 0.12}},
	{5, tierVector{0.56, 0.19, 0.11, 0.03, 0.11}},
	{10, tierVector{0.50, 0.22, 0.14, 0.04, 0.10}},
	{20, tierVector{0.45, 0.25, 0.17, 0.05, 0.08}},
	{-1, tierVector{0.40, 0.28, 0.20, 0.07, 0.05}},
}

func selectRow(table []tableRow, referralCount int) map[models.RewardTier]float64 {
	for _, row := range table {
		if row.maxReferrals >= 0 && referralCount <= row.maxReferrals {
			return row.probs.toMap()
		}
	}
	return table[len(table)-1].probs.toMap()
}

func (s *probabilityService) DistributionFor(ctx context.Context, participant *models.Participant) (*DrawDistribution, error) {
	dist, err := s.build(ctx, participant.ReferralCount)
	if err != nil {
		return nil, err
	}

	if dist.Policy == PolicyDynamic {
		s.applyRecencyDecay(dist, participant.LastHighTierCompletedAt)
		s.applyCompletionPenalty(dist, participant.CompletionCount)
	}

	s.logger.WithFields(map[string]interface{}{
		"participant_id": participant.ID.Hex(),
		"policy":         dist.Policy,
		"rtp":            dist.RTP,
		"reasons":        dist.Reasons,
	}).Debug("Draw distribution built")

	return dist, nil
}

func (s *probabilityService) BaseDistribution(ctx context.Context) (*DrawDistribution, error) {
	return s.build(ctx, 0)
}

// build performs table selection plus the economy-wide adjustment stages
// (RTP feedback and predictive correction). Per-participant stages are
// layered on by DistributionFor.
func (s *probabilityService) build(ctx context.Context, referralCount int) (*DrawDistribution, error) {
	now := s.now()

	rtp, err := s.rtpService.CurrentRatio(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read payout ratio: %w", err)
	}

	totalUsers, err := s.participantRepo.GetTotalCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}

	dist := &DrawDistribution{RTP: rtp, PredictedRTP: rtp}

	daysSinceLaunch := int(now.Sub(s.launchedAt).Hours() / 24)
	switch {
	case daysSinceLaunch < utils.BootstrapDays:
		dist.Policy = PolicyBootstrap
		dist.Reasons = append(dist.Reasons,
			fmt.Sprintf("bootstrap: day %d of the %d-day launch window", daysSinceLaunch, utils.BootstrapDays))
	case totalUsers < utils.MinDynamicUsers:
		dist.Policy = PolicyBootstrap
		dist.Reasons = append(dist.Reasons,
			fmt.Sprintf("bootstrap: %d participants, dynamic odds need %d", totalUsers, utils.MinDynamicUsers))
	case rtp <= 0:
		dist.Policy = PolicyBootstrap
		dist.Reasons = append(dist.Reasons, "bootstrap: payout ratio unavailable")
	case math.Abs(1-rtp) > utils.RTPVarianceThreshold:
		dist.Policy = PolicyBootstrap
		dist.Reasons = append(dist.Reasons,
			fmt.Sprintf("bootstrap: payout ratio %.2f outside the stable band", rtp))
	default:
		dist.Policy = PolicyDynamic
		dist.Reasons = append(dist.Reasons, "dynamic odds in effect")
	}

	if dist.Policy == PolicyBootstrap {
		dist.Probabilities = selectRow(bootstrapTable, referralCount)
		return dist, nil
	}

	dist.Probabilities = selectRow(dynamicTable, referralCount)

	if s.applyRTPFeedback(dist, rtp) {
		dist.FeedbackApplied = true
	}

	if err := s.applyPredictiveCorrection(ctx, dist, rtp, totalUsers, now); err != nil {
		return nil, err
	}

	return dist, nil
}

// applyRTPFeedback nudges the distribution against payout-ratio drift: an
// over-paying economy gains poison mass and sheds upper-tier mass, an
// under-paying one does the reverse. Each stage clamp keeps a floor or
// ceiling per tier; the distribution is renormalized afterwards.
func (s *probabilityService) applyRTPFeedback(dist *DrawDistribution, rtp float64) bool {
	probs := dist.Probabilities
	deviation := rtp - 1.0

	switch {
	case deviation > 0.05:
		delta := math.Min(deviation*0.5, 0.1)
		probs[models.RewardTierPoison] = math.Min(probs[models.RewardTierPoison]+delta, 0.5)
		probs[models.RewardTierSilver] = math.Max(probs[models.RewardTierSilver]-delta*0.3, 0.01)
		probs[models.RewardTierGold] = math.Max(probs[models.RewardTierGold]-delta*0.2, 0.01)
		probs[models.RewardTierRed] = math.Max(probs[models.RewardTierRed]-delta*0.1, 0.005)
		dist.Reasons = append(dist.Reasons,
			fmt.Sprintf("feedback: payout ratio %.2f running hot, odds tightened", rtp))
	case deviation < -0.05:
		delta := math.Min(math.Abs(deviation)*0.5, 0.1)
		probs[models.RewardTierPoison] = math.Max(probs[models.RewardTierPoison]-delta, 0.01)
		probs[models.RewardTierSilver] = math.Min(probs[models.RewardTierSilver]+delta*0.3, 0.4)
		probs[models.RewardTierGold] = math.Min(probs[models.RewardTierGold]+delta*0.2, 0.3)
		probs[models.RewardTierRed] = math.Min(probs[models.RewardTierRed]+delta*0.1, 0.15)
		dist.Reasons = append(dist.Reasons,
			fmt.Sprintf("feedback: payout ratio %.2f running cold, odds loosened", rtp))
	default:
		return false
	}

	normalize(probs)
	return true
}

// applyPredictiveCorrection discounts the current ratio by this month's
// participant growth and re-runs the feedback stage when the discounted
// ratio diverges enough to matter. The predicted ratio shifts the odds
// only; the measured ratio is what the audit record keeps.
func (s *probabilityService) applyPredictiveCorrection(ctx context.Context, dist *DrawDistribution, rtp float64, total int64, now time.Time) error {
	if total == 0 {
		return nil
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	newThisMonth, err := s.participantRepo.GetCountRegisteredSince(ctx, monthStart)
	if err != nil {
		return fmt.Errorf("failed to count new participants: %w", err)
	}

	growthRate := float64(newThisMonth) / float64(total)
	predicted := rtp / (1 + growthRate)

	dist.GrowthRate = growthRate
	dist.PredictedRTP = predicted

	if math.Abs(predicted-rtp) > utils.PredictiveRTPEpsilon {
		s.applyRTPFeedback(dist, predicted)
		dist.Reasons = append(dist.Reasons,
			fmt.Sprintf("predictive: growth %.1f%% discounts ratio to %.2f", growthRate*100, predicted))
	}

	return nil
}

// applyRecencyDecay suppresses the high tiers for participants who completed
// a silver or gold reward recently, shifting the removed mass onto poison.
func (s *probabilityService) applyRecencyDecay(dist *DrawDistribution, lastCompletedAt *time.Time) {
	if lastCompletedAt == nil {
		return
	}

	days := int(s.now().Sub(*lastCompletedAt).Hours() / 24)

	var factor, poisonBoost float64
	switch {
	case days < 7:
		factor, poisonBoost = 0.3, 0.3
	case days < 14:
		factor, poisonBoost = 0.5, 0.2
	case days < 30:
		factor, poisonBoost = 0.8, 0.1
	default:
		return
	}

	probs := dist.Probabilities
	probs[models.RewardTierSilver] *= factor
	probs[models.RewardTierGold] *= factor
	probs[models.RewardTierRed] *= factor
	probs[models.RewardTierPoison] = math.Max(probs[models.RewardTierPoison]+poisonBoost, 0.01)
	normalize(probs)

	dist.Reasons = append(dist.Reasons,
		fmt.Sprintf("recency: high tier completed %d days ago, upper tiers damped", days))
}

// applyCompletionPenalty damps repeat winners. The more lifetime high-tier
// completions a participant has, the harder the upper tiers get.
func (s *probabilityService) applyCompletionPenalty(dist *DrawDistribution, completionCount int) {
	if completionCount <= 0 {
		return
	}

	var factor, poisonBoost float64
	switch {
	case completionCount == 1:
		factor, poisonBoost = 0.7, 0.15
	case completionCount == 2:
		factor, poisonBoost = 0.5, 0.25
	default:
		factor, poisonBoost = 0.3, 0.35
	}

	probs := dist.Probabilities
	probs[models.RewardTierSilver] *= factor
	probs[models.RewardTierGold] *= factor
	probs[models.RewardTierRed] *= factor
	probs[models.RewardTierPoison] = math.Max(probs[models.RewardTierPoison]+poisonBoost, 0.01)
	normalize(probs)

	dist.Reasons = append(dist.Reasons,
		fmt.Sprintf("history: %d prior completions, upper tiers damped", completionCount))
}

// normalize rescales the distribution to sum to one. A distribution whose
// mass collapsed to zero degrades to uniform rather than dividing by zero.
func normalize(probs map[models.RewardTier]float64) {
	var total float64
	for _, p := range probs {
		total += p
	}
	if total <= 0 {
		uniform := 1.0 / float64(len(models.RewardTiers))
		for _, tier := range models.RewardTiers {
			probs[tier] = uniform
		}
		return
	}
	for tier, p := range probs {
		probs[tier] = p / total
	}
}
