package services

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"ringokai/internal/models"
	"ringokai/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type drawFixture struct {
	svc             DrawService
	participantRepo *fakeParticipantRepo
	rewardRepo      *fakeRewardRepo
	purchaseRepo    *fakePurchaseRepo
	metricsRepo     *fakeMetricsRepo
	rtp             RTPService
	clock           *fakeClock
	participant     *models.Participant
}

func newDrawFixture(t *testing.T, dist *DrawDistribution) *drawFixture {
	t.Helper()

	participant := &models.Participant{
		ID:         newID(),
		Email:      "drawer@example.com",
		Status:     models.ParticipantStatusReadyToDraw,
		DrawRights: 1,
	}
	participantRepo := newFakeParticipantRepo(participant)
	purchaseRepo := newFakePurchaseRepo(&models.Purchase{
		PurchaserID: participant.ID,
		Status:      models.PurchaseStatusApproved,
	})
	rewardRepo := newFakeRewardRepo()
	metricsRepo := newFakeMetricsRepo()
	clock := newFakeClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))

	rtp := NewRTPService(participantRepo, testLogger(t), clock.Now)
	svc := NewDrawService(participantRepo, rewardRepo, purchaseRepo, metricsRepo,
		&stubProbability{dist: dist}, rtp, testLogger(t), clock.Now, rand.New(rand.NewSource(1)))

	return &drawFixture{
		svc:             svc,
		participantRepo: participantRepo,
		rewardRepo:      rewardRepo,
		purchaseRepo:    purchaseRepo,
		metricsRepo:     metricsRepo,
		rtp:             rtp,
		clock:           clock,
		participant:     participant,
	}
}

func TestDrawWithoutRights(t *testing.T) {
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierGold))
	f.participant.DrawRights = 0

	_, err := f.svc.Draw(context.Background(), f.participant.ID)
	assert.ErrorIs(t, err, ErrInsufficientRights)
}

func TestDrawWithoutQualifyingPurchase(t *testing.T) {
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierGold))
	f.purchaseRepo.purchases[0].Status = models.PurchaseStatusRejected

	_, err := f.svc.Draw(context.Background(), f.participant.ID)
	assert.ErrorIs(t, err, ErrNoApprovedPurchase)
}

func TestDrawUnknownParticipant(t *testing.T) {
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierGold))

	_, err := f.svc.Draw(context.Background(), newID())
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestDrawCreatesPendingReward(t *testing.T) {
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierGold))

	result, err := f.svc.Draw(context.Background(), f.participant.ID)
	require.NoError(t, err)

	reward := result.Reward
	assert.Equal(t, models.RewardTierGold, reward.Tier)
	assert.Equal(t, models.RewardStatePending, reward.State)
	assert.Equal(t, 3, reward.CreditsGranted)
	assert.Equal(t, 3, reward.CreditsRemaining)
	assert.Equal(t, f.clock.Now().Add(utils.RewardRevealDelay), reward.RevealAt)

	assert.Equal(t, 0, f.participant.DrawRights)
	assert.Equal(t, 3, f.participant.AvailableCredits)
}

func TestDrawPoisonGrantsNothing(t *testing.T) {
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierPoison))

	result, err := f.svc.Draw(context.Background(), f.participant.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RewardTierPoison, result.Reward.Tier)
	assert.Equal(t, 0, result.Reward.CreditsGranted)
	assert.Equal(t, 0, result.Reward.CreditsRemaining)
	assert.Equal(t, 0, f.participant.AvailableCredits)
	assert.Equal(t, 0, f.participant.DrawRights)
}

func TestDrawRightLostToConcurrentDraw(t *testing.T) {
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierBronze))
	f.participantRepo.consumeFails = true

	_, err := f.svc.Draw(context.Background(), f.participant.ID)
	assert.ErrorIs(t, err, ErrInsufficientRights)
	assert.Empty(t, f.rewardRepo.rewards)
}

func TestDrawSnapshotsEveryDynamicDistribution(t *testing.T) {
	// Dynamic odds inside the dead zone still leave an audit record.
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierBronze))

	_, err := f.svc.Draw(context.Background(), f.participant.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.metricsRepo.snapshotCount())

	snapshot, err := f.metricsRepo.LatestRTPSnapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, snapshot.FeedbackApplied)
}

func TestDrawSnapshotRecordsFeedback(t *testing.T) {
	dist := singleTierDistribution(models.RewardTierBronze)
	dist.FeedbackApplied = true
	f := newDrawFixture(t, dist)

	_, err := f.svc.Draw(context.Background(), f.participant.ID)
	require.NoError(t, err)

	snapshot, err := f.metricsRepo.LatestRTPSnapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snapshot.FeedbackApplied)
}

func TestDrawSkipsSnapshotOnBootstrap(t *testing.T) {
	dist := singleTierDistribution(models.RewardTierBronze)
	dist.Policy = PolicyBootstrap
	f := newDrawFixture(t, dist)

	_, err := f.svc.Draw(context.Background(), f.participant.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.metricsRepo.snapshotCount())
}

func TestDrawOddsForParticipant(t *testing.T) {
	dist := singleTierDistribution(models.RewardTierBronze)
	f := newDrawFixture(t, dist)

	got, err := f.svc.DrawOdds(context.Background(), f.participant.ID)
	require.NoError(t, err)
	assert.Equal(t, dist, got)

	_, err = f.svc.DrawOdds(context.Background(), newID())
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestLatestRewardHiddenBeforeRevealTime(t *testing.T) {
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierSilver))

	_, err := f.svc.Draw(context.Background(), f.participant.ID)
	require.NoError(t, err)

	view, err := f.svc.GetLatestReward(context.Background(), f.participant.ID)
	require.NoError(t, err)
	assert.False(t, view.Revealed)
	assert.Equal(t, models.RewardStatePending, view.Reward.State)
}

func TestLatestRewardRevealsOnceDue(t *testing.T) {
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierSilver))

	_, err := f.svc.Draw(context.Background(), f.participant.ID)
	require.NoError(t, err)

	f.clock.Advance(utils.RewardRevealDelay + time.Minute)

	view, err := f.svc.GetLatestReward(context.Background(), f.participant.ID)
	require.NoError(t, err)
	assert.True(t, view.Revealed)
	assert.Equal(t, models.RewardStateRevealed, view.Reward.State)

	// A second read is a no-op, not a second transition.
	view, err = f.svc.GetLatestReward(context.Background(), f.participant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RewardStateRevealed, view.Reward.State)
}

func drawRevealedReward(t *testing.T, f *drawFixture) *models.Reward {
	t.Helper()
	result, err := f.svc.Draw(context.Background(), f.participant.ID)
	require.NoError(t, err)
	f.clock.Advance(utils.RewardRevealDelay + time.Minute)
	return result.Reward
}

func TestConsumeSpendsOneCredit(t *testing.T) {
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierGold))
	reward := drawRevealedReward(t, f)

	updated, err := f.svc.Consume(context.Background(), f.participant.ID, reward.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, updated.CreditsRemaining)
	assert.Equal(t, models.RewardStateRevealed, updated.State)
	assert.Equal(t, 2, f.participant.AvailableCredits)
	assert.Equal(t, 0, f.participant.CompletionCount)
}

func TestConsumeInvalidatesPayoutRatioCache(t *testing.T) {
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierGold))
	reward := drawRevealedReward(t, f)

	_, err := f.rtp.CurrentRatio(context.Background())
	require.NoError(t, err)
	calls := f.participantRepo.sumLedgerCalls

	_, err = f.svc.Consume(context.Background(), f.participant.ID, reward.ID)
	require.NoError(t, err)

	// The cached ratio was dropped, so the next read hits the ledger again.
	_, err = f.rtp.CurrentRatio(context.Background())
	require.NoError(t, err)
	assert.Equal(t, calls+1, f.participantRepo.sumLedgerCalls)
}

func TestConsumeBeforeRevealTime(t *testing.T) {
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierGold))
	result, err := f.svc.Draw(context.Background(), f.participant.ID)
	require.NoError(t, err)

	_, err = f.svc.Consume(context.Background(), f.participant.ID, result.Reward.ID)
	assert.ErrorIs(t, err, ErrNotYetRevealed)
}

func TestConsumeBronzeReward(t *testing.T) {
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierBronze))
	reward := drawRevealedReward(t, f)

	_, err := f.svc.Consume(context.Background(), f.participant.ID, reward.ID)
	assert.ErrorIs(t, err, ErrWrongTier)
}

func TestConsumeSomeoneElsesReward(t *testing.T) {
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierGold))
	reward := drawRevealedReward(t, f)

	_, err := f.svc.Consume(context.Background(), newID(), reward.ID)
	assert.ErrorIs(t, err, ErrRewardNotFound)
}

func TestConsumeExhaustionCompletesHighTier(t *testing.T) {
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierSilver))
	f.participant.ReferralCount = 4
	reward := drawRevealedReward(t, f)

	var updated *models.Reward
	var err error
	for i := 0; i < 2; i++ {
		updated, err = f.svc.Consume(context.Background(), f.participant.ID, reward.ID)
		require.NoError(t, err)
	}

	assert.Equal(t, 0, updated.CreditsRemaining)
	assert.Equal(t, models.RewardStateConsumed, updated.State)

	// Completion resets referral progress and stamps the penalty clock.
	assert.Equal(t, 1, f.participant.CompletionCount)
	assert.Equal(t, 0, f.participant.ReferralCount)
	require.NotNil(t, f.participant.LastHighTierCompletedAt)
	assert.Equal(t, f.clock.Now(), *f.participant.LastHighTierCompletedAt)
}

func TestConsumeRedExhaustionIsNotACompletion(t *testing.T) {
	f := newDrawFixture(t, singleTierDistribution(models.RewardTierRed))
	reward := drawRevealedReward(t, f)

	var err error
	for i := 0; i < 10; i++ {
		_, err = f.svc.Consume(context.Background(), f.participant.ID, reward.ID)
		require.NoError(t, err)
	}

	assert.Equal(t, 0, f.participant.CompletionCount)
	assert.Nil(t, f.participant.LastHighTierCompletedAt)

	_, err = f.svc.Consume(context.Background(), f.participant.ID, reward.ID)
	assert.ErrorIs(t, err, ErrNoCreditsRemaining)
}
