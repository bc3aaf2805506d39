package services

import (
	"context"
	"testing"
	"time"

	"ringokai/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var probabilityLaunch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func probabilityFixture(t *testing.T, repo *fakeParticipantRepo, now time.Time) ProbabilityService {
	t.Helper()
	frozen := func() time.Time { return now }
	rtp := NewRTPService(repo, testLogger(t), frozen)
	return NewProbabilityService(repo, rtp, testLogger(t), probabilityLaunch, frozen)
}

// matureRepo is an economy past the launch window with a stable payout ratio,
// so the dynamic table applies unless a test changes the ledger.
func matureRepo(obligation, available int64) *fakeParticipantRepo {
	repo := newFakeParticipantRepo()
	repo.totals = models.LedgerTotals{TotalObligation: obligation, TotalAvailable: available}
	repo.totalCount = 1000
	return repo
}

func distributionSum(probs map[models.RewardTier]float64) float64 {
	var sum float64
	for _, p := range probs {
		sum += p
	}
	return sum
}

func TestBootstrapDuringLaunchWindow(t *testing.T) {
	repo := matureRepo(100, 100)
	svc := probabilityFixture(t, repo, probabilityLaunch.AddDate(0, 0, 10))

	dist, err := svc.BaseDistribution(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PolicyBootstrap, dist.Policy)
	assert.InDelta(t, 0.55, dist.Probabilities[models.RewardTierBronze], 1e-9)
	assert.InDelta(t, 0.10, dist.Probabilities[models.RewardTierPoison], 1e-9)
	assert.InDelta(t, 1.0, distributionSum(dist.Probabilities), 1e-9)
}

func TestBootstrapWhenEconomyTooSmall(t *testing.T) {
	repo := matureRepo(100, 100)
	repo.totalCount = 50
	svc := probabilityFixture(t, repo, probabilityLaunch.AddDate(0, 2, 0))

	dist, err := svc.BaseDistribution(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PolicyBootstrap, dist.Policy)
}

func TestBootstrapWhenRatioUnstable(t *testing.T) {
	// 150/100 puts the ratio well outside the stable band around 1.0.
	repo := matureRepo(100, 150)
	svc := probabilityFixture(t, repo, probabilityLaunch.AddDate(0, 2, 0))

	dist, err := svc.BaseDistribution(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PolicyBootstrap, dist.Policy)
	assert.False(t, dist.FeedbackApplied)
}

func TestBootstrapRowsByReferralCount(t *testing.T) {
	repo := matureRepo(100, 100)
	svc := probabilityFixture(t, repo, probabilityLaunch.AddDate(0, 0, 5))

	cases := map[int]float64{0: 0.55, 1: 0.52, 2: 0.49, 3: 0.46, 12: 0.46}
	for referrals, bronze := range cases {
		participant := &models.Participant{ID: newID(), ReferralCount: referrals}
		dist, err := svc.DistributionFor(context.Background(), participant)
		require.NoError(t, err)
		assert.InDelta(t, bronze, dist.Probabilities[models.RewardTierBronze], 1e-9,
			"referral count %d", referrals)
		assert.InDelta(t, 1.0, distributionSum(dist.Probabilities), 1e-9)
	}
}

func TestDynamicRowsByReferralCount(t *testing.T) {
	repo := matureRepo(100, 100)
	svc := probabilityFixture(t, repo, probabilityLaunch.AddDate(0, 2, 0))

	cases := map[int]float64{0: 0.60, 1: 0.58, 4: 0.56, 7: 0.50, 15: 0.45, 25: 0.40}
	for referrals, bronze := range cases {
		participant := &models.Participant{ID: newID(), ReferralCount: referrals}
		dist, err := svc.DistributionFor(context.Background(), participant)
		require.NoError(t, err)
		assert.Equal(t, PolicyDynamic, dist.Policy)
		assert.InDelta(t, bronze, dist.Probabilities[models.RewardTierBronze], 1e-9,
			"referral count %d", referrals)
		assert.InDelta(t, 1.0, distributionSum(dist.Probabilities), 1e-9)
	}
}

func TestFeedbackTightensWhenRunningHot(t *testing.T) {
	// 115/100 is inside the stable band but more than 5% over parity.
	repo := matureRepo(100, 115)
	svc := probabilityFixture(t, repo, probabilityLaunch.AddDate(0, 2, 0))

	dist, err := svc.BaseDistribution(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PolicyDynamic, dist.Policy)
	assert.True(t, dist.FeedbackApplied)
	assert.InDelta(t, 1.0, distributionSum(dist.Probabilities), 1e-9)

	// delta = 0.075: poison 0.10 -> 0.175, silver 0.18 -> 0.1575, then the
	// whole vector is rescaled by the new mass 1.03.
	assert.InDelta(t, 0.175/1.03, dist.Probabilities[models.RewardTierPoison], 1e-9)
	assert.InDelta(t, 0.1575/1.03, dist.Probabilities[models.RewardTierSilver], 1e-9)
	assert.Less(t, dist.Probabilities[models.RewardTierGold], 0.10)
}

func TestFeedbackLoosensWhenRunningCold(t *testing.T) {
	repo := matureRepo(100, 90)
	svc := probabilityFixture(t, repo, probabilityLaunch.AddDate(0, 2, 0))

	dist, err := svc.BaseDistribution(context.Background())
	require.NoError(t, err)

	assert.True(t, dist.FeedbackApplied)
	assert.InDelta(t, 1.0, distributionSum(dist.Probabilities), 1e-9)

	// delta = 0.05: poison 0.10 -> 0.05, silver 0.18 -> 0.195, mass 0.98.
	assert.InDelta(t, 0.05/0.98, dist.Probabilities[models.RewardTierPoison], 1e-9)
	assert.InDelta(t, 0.195/0.98, dist.Probabilities[models.RewardTierSilver], 1e-9)
	assert.Greater(t, dist.Probabilities[models.RewardTierGold], 0.10)
}

func TestFeedbackSkippedNearParity(t *testing.T) {
	repo := matureRepo(100, 103)
	svc := probabilityFixture(t, repo, probabilityLaunch.AddDate(0, 2, 0))

	dist, err := svc.BaseDistribution(context.Background())
	require.NoError(t, err)

	assert.False(t, dist.FeedbackApplied)
	assert.InDelta(t, 0.60, dist.Probabilities[models.RewardTierBronze], 1e-9)
}

func TestPredictiveCorrectionDiscountsGrowth(t *testing.T) {
	// Parity ratio, but 10% of the base joined this month: the discounted
	// ratio 1/1.1 dips enough below parity to re-run the feedback stage.
	repo := matureRepo(100, 100)
	repo.newThisMonth = 100
	svc := probabilityFixture(t, repo, probabilityLaunch.AddDate(0, 2, 0))

	dist, err := svc.BaseDistribution(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 0.1, dist.GrowthRate, 1e-9)
	assert.InDelta(t, 1.0/1.1, dist.PredictedRTP, 1e-9)
	assert.InDelta(t, 1.0, distributionSum(dist.Probabilities), 1e-9)

	// The predictive pass loosened the odds but is never treated as measured
	// feedback, so no snapshot is owed for this draw.
	assert.False(t, dist.FeedbackApplied)
	assert.Greater(t, dist.Probabilities[models.RewardTierSilver], 0.18)
	assert.Less(t, dist.Probabilities[models.RewardTierPoison], 0.10)
}

func TestRecencyDecayDampsUpperTiers(t *testing.T) {
	repo := matureRepo(100, 100)
	svc := probabilityFixture(t, repo, probabilityLaunch.AddDate(0, 2, 0))

	completed := probabilityLaunch.AddDate(0, 2, 0).Add(-3 * 24 * time.Hour)
	participant := &models.Participant{ID: newID(), LastHighTierCompletedAt: &completed}

	dist, err := svc.DistributionFor(context.Background(), participant)
	require.NoError(t, err)

	// Factor 0.3 on silver, gold and red, +0.3 poison, mass 1.09 before rescale.
	assert.InDelta(t, 0.054/1.09, dist.Probabilities[models.RewardTierSilver], 1e-9)
	assert.InDelta(t, 0.03/1.09, dist.Probabilities[models.RewardTierGold], 1e-9)
	assert.InDelta(t, 0.006/1.09, dist.Probabilities[models.RewardTierRed], 1e-9)
	assert.InDelta(t, 0.40/1.09, dist.Probabilities[models.RewardTierPoison], 1e-9)
	assert.InDelta(t, 1.0, distributionSum(dist.Probabilities), 1e-9)
}

func TestRecencyDecayExpiresAfterThirtyDays(t *testing.T) {
	repo := matureRepo(100, 100)
	svc := probabilityFixture(t, repo, probabilityLaunch.AddDate(0, 2, 0))

	completed := probabilityLaunch.AddDate(0, 2, 0).Add(-45 * 24 * time.Hour)
	participant := &models.Participant{ID: newID(), LastHighTierCompletedAt: &completed}

	dist, err := svc.DistributionFor(context.Background(), participant)
	require.NoError(t, err)
	assert.InDelta(t, 0.18, dist.Probabilities[models.RewardTierSilver], 1e-9)
	assert.InDelta(t, 0.10, dist.Probabilities[models.RewardTierPoison], 1e-9)
}

func TestCompletionPenaltyScalesWithHistory(t *testing.T) {
	repo := matureRepo(100, 100)
	svc := probabilityFixture(t, repo, probabilityLaunch.AddDate(0, 2, 0))

	participant := &models.Participant{ID: newID(), CompletionCount: 2}
	dist, err := svc.DistributionFor(context.Background(), participant)
	require.NoError(t, err)

	// Factor 0.5 on silver, gold and red, +0.25 poison, mass 1.10 before rescale.
	assert.InDelta(t, 0.09/1.10, dist.Probabilities[models.RewardTierSilver], 1e-9)
	assert.InDelta(t, 0.05/1.10, dist.Probabilities[models.RewardTierGold], 1e-9)
	assert.InDelta(t, 0.01/1.10, dist.Probabilities[models.RewardTierRed], 1e-9)
	assert.InDelta(t, 0.35/1.10, dist.Probabilities[models.RewardTierPoison], 1e-9)
	assert.InDelta(t, 1.0, distributionSum(dist.Probabilities), 1e-9)
}

func TestBootstrapSkipsPersonalAdjustments(t *testing.T) {
	repo := matureRepo(100, 100)
	svc := probabilityFixture(t, repo, probabilityLaunch.AddDate(0, 0, 5))

	completed := probabilityLaunch.AddDate(0, 0, 4)
	participant := &models.Participant{
		ID:                      newID(),
		CompletionCount:         3,
		LastHighTierCompletedAt: &completed,
	}

	dist, err := svc.DistributionFor(context.Background(), participant)
	require.NoError(t, err)

	// While bootstrapped, recency and completion history never touch the row.
	assert.InDelta(t, 0.55, dist.Probabilities[models.RewardTierBronze], 1e-9)
	assert.InDelta(t, 0.20, dist.Probabilities[models.RewardTierSilver], 1e-9)
	assert.InDelta(t, 0.10, dist.Probabilities[models.RewardTierPoison], 1e-9)
}

func TestNormalizeUniformFallback(t *testing.T) {
	probs := map[models.RewardTier]float64{}
	for _, tier := range models.RewardTiers {
		probs[tier] = 0
	}

	normalize(probs)

	for _, tier := range models.RewardTiers {
		assert.InDelta(t, 0.2, probs[tier], 1e-9)
	}
}
