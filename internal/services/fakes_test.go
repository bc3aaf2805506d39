package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"ringokai/internal/models"
	"ringokai/internal/utils"
	"ringokai/pkg/logger"
	"ringokai/pkg/storage"
	"ringokai/pkg/verify"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errNotFound = errors.New("not found")

func newID() primitive.ObjectID {
	return primitive.NewObjectID()
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger(&logger.Config{
		Level:  logger.ErrorLevel,
		Format: "text",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("failed to build test logger: %v", err)
	}
	return l
}

// fakeClock is a settable time source shared by the service under test and
// the assertions.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeParticipantRepo struct {
	mu             sync.Mutex
	participants   map[primitive.ObjectID]*models.Participant
	totals         models.LedgerTotals
	totalCount     int64
	newThisMonth   int64
	sumLedgerCalls int
	consumeFails   bool
}

func newFakeParticipantRepo(participants ...*models.Participant) *fakeParticipantRepo {
	repo := &fakeParticipantRepo{
		participants: make(map[primitive.ObjectID]*models.Participant),
	}
	for _, p := range participants {
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		repo.participants[p.ID] = p
	}
	return repo
}

func (r *fakeParticipantRepo) Create(ctx context.Context, participant *models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if participant.ID.IsZero() {
		participant.ID = primitive.NewObjectID()
	}
	r.participants[participant.ID] = participant
	r.totalCount++
	return nil
}

func (r *fakeParticipantRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return nil, errNotFound
	}
	return p, nil
}

func (r *fakeParticipantRepo) GetByReferralCode(ctx context.Context, code string) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if p.ReferralCode != "" && p.ReferralCode == code {
			return p, nil
		}
	}
	return nil, errNotFound
}

func (r *fakeParticipantRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return errNotFound
	}
	for field, value := range updates {
		switch field {
		case "status":
			switch v := value.(type) {
			case models.ParticipantStatus:
				p.Status = v
			case string:
				p.Status = models.ParticipantStatus(v)
			}
		case "referral_code":
			p.ReferralCode = value.(string)
		case "wishlist_url":
			p.WishlistURL = value.(string)
		case "wishlist_registered_at":
			t := value.(time.Time)
			p.WishlistRegisteredAt = &t
		case "draw_rights":
			p.DrawRights = asInt(value)
		case "available_credits":
			p.AvailableCredits = asInt(value)
		case "obligation_count":
			p.ObligationCount = asInt(value)
		case "referral_count":
			p.ReferralCount = asInt(value)
		case "completion_count":
			p.CompletionCount = asInt(value)
		case "referred_by":
			oid := value.(primitive.ObjectID)
			p.ReferredBy = &oid
		}
	}
	return nil
}

func asInt(value interface{}) int {
	switch n := value.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func (r *fakeParticipantRepo) List(ctx context.Context, params *utils.PaginationParams, status models.ParticipantStatus) ([]*models.Participant, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Participant
	for _, p := range r.participants {
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (r *fakeParticipantRepo) SumLedger(ctx context.Context) (*models.LedgerTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sumLedgerCalls++
	totals := r.totals
	return &totals, nil
}

func (r *fakeParticipantRepo) GetTotalCount(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalCount, nil
}

func (r *fakeParticipantRepo) GetCountByStatus(ctx context.Context, statuses []models.ParticipantStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, p := range r.participants {
		for _, s := range statuses {
			if p.Status == s {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *fakeParticipantRepo) GetCountRegisteredSince(ctx context.Context, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.newThisMonth, nil
}

func (r *fakeParticipantRepo) GetStatusBreakdown(ctx context.Context) (map[models.ParticipantStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	breakdown := make(map[models.ParticipantStatus]int64)
	for _, p := range r.participants {
		breakdown[p.Status]++
	}
	return breakdown, nil
}

func (r *fakeParticipantRepo) ConsumeDrawRight(ctx context.Context, id primitive.ObjectID, creditDelta int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumeFails {
		return false, nil
	}
	p, ok := r.participants[id]
	if !ok || p.DrawRights <= 0 {
		return false, nil
	}
	p.DrawRights--
	p.AvailableCredits += creditDelta
	return true, nil
}

func (r *fakeParticipantRepo) SpendCredit(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return errNotFound
	}
	if p.AvailableCredits > 0 {
		p.AvailableCredits--
	}
	return nil
}

func (r *fakeParticipantRepo) IncrementObligation(ctx context.Context, id primitive.ObjectID, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return errNotFound
	}
	p.ObligationCount += delta
	return nil
}

func (r *fakeParticipantRepo) GrantApproval(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return errNotFound
	}
	p.DrawRights++
	if p.ObligationCount > 0 {
		p.ObligationCount--
	}
	return nil
}

func (r *fakeParticipantRepo) RecordHighTierCompletion(ctx context.Context, id primitive.ObjectID, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return errNotFound
	}
	p.ReferralCount = 0
	p.CompletionCount++
	t := completedAt
	p.LastHighTierCompletedAt = &t
	return nil
}

func (r *fakeParticipantRepo) SetReferredBy(ctx context.Context, id, referrerID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return false, errNotFound
	}
	if p.ReferredBy != nil {
		return false, nil
	}
	ref := referrerID
	p.ReferredBy = &ref
	return true, nil
}

func (r *fakeParticipantRepo) IncrementReferralCount(ctx context.Context, referrerID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[referrerID]
	if !ok {
		return errNotFound
	}
	p.ReferralCount++
	return nil
}

type fakeRewardRepo struct {
	mu      sync.Mutex
	rewards []*models.Reward
}

func newFakeRewardRepo(rewards ...*models.Reward) *fakeRewardRepo {
	repo := &fakeRewardRepo{}
	for _, reward := range rewards {
		if reward.ID.IsZero() {
			reward.ID = primitive.NewObjectID()
		}
		repo.rewards = append(repo.rewards, reward)
	}
	return repo
}

func (r *fakeRewardRepo) Create(ctx context.Context, reward *models.Reward) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reward.ID.IsZero() {
		reward.ID = primitive.NewObjectID()
	}
	r.rewards = append(r.rewards, reward)
	return nil
}

func (r *fakeRewardRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Reward, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reward := range r.rewards {
		if reward.ID == id {
			return reward, nil
		}
	}
	return nil, errNotFound
}

func (r *fakeRewardRepo) GetLatestByParticipant(ctx context.Context, participantID primitive.ObjectID) (*models.Reward, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.rewards) - 1; i >= 0; i-- {
		if r.rewards[i].ParticipantID == participantID {
			return r.rewards[i], nil
		}
	}
	return nil, errNotFound
}

func (r *fakeRewardRepo) MarkRevealed(ctx context.Context, id primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reward := range r.rewards {
		if reward.ID == id {
			if reward.State != models.RewardStatePending {
				return false, nil
			}
			reward.State = models.RewardStateRevealed
			return true, nil
		}
	}
	return false, errNotFound
}

func (r *fakeRewardRepo) SpendCredit(ctx context.Context, id primitive.ObjectID) (*models.Reward, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reward := range r.rewards {
		if reward.ID == id {
			if reward.CreditsRemaining <= 0 {
				return nil, nil
			}
			reward.CreditsRemaining--
			updated := *reward
			return &updated, nil
		}
	}
	return nil, errNotFound
}

func (r *fakeRewardRepo) MarkConsumed(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reward := range r.rewards {
		if reward.ID == id {
			reward.State = models.RewardStateConsumed
			return nil
		}
	}
	return errNotFound
}

func (r *fakeRewardRepo) CountRevealedByTier(ctx context.Context, participantID primitive.ObjectID) (map[models.RewardTier]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[models.RewardTier]int64)
	for _, reward := range r.rewards {
		if reward.ParticipantID == participantID && reward.State != models.RewardStatePending {
			counts[reward.Tier]++
		}
	}
	return counts, nil
}

func (r *fakeRewardRepo) CountByTier(ctx context.Context) (map[models.RewardTier]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[models.RewardTier]int64)
	for _, reward := range r.rewards {
		counts[reward.Tier]++
	}
	return counts, nil
}

func (r *fakeRewardRepo) ListRecent(ctx context.Context, limit int64) ([]*models.Reward, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Reward
	for i := len(r.rewards) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		out = append(out, r.rewards[i])
	}
	return out, nil
}

type fakePurchaseRepo struct {
	mu        sync.Mutex
	purchases []*models.Purchase
}

func newFakePurchaseRepo(purchases ...*models.Purchase) *fakePurchaseRepo {
	repo := &fakePurchaseRepo{}
	for _, purchase := range purchases {
		if purchase.ID.IsZero() {
			purchase.ID = primitive.NewObjectID()
		}
		repo.purchases = append(repo.purchases, purchase)
	}
	return repo
}

func (r *fakePurchaseRepo) Create(ctx context.Context, purchase *models.Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if purchase.ID.IsZero() {
		purchase.ID = primitive.NewObjectID()
	}
	r.purchases = append(r.purchases, purchase)
	return nil
}

func (r *fakePurchaseRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, purchase := range r.purchases {
		if purchase.ID == id {
			return purchase, nil
		}
	}
	return nil, errNotFound
}

func (r *fakePurchaseRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, purchase := range r.purchases {
		if purchase.ID != id {
			continue
		}
		for field, value := range updates {
			switch field {
			case "status":
				purchase.Status = value.(models.PurchaseStatus)
			case "screenshot_ref":
				purchase.ScreenshotRef = value.(string)
			case "verification_status":
				purchase.VerificationStatus = value.(models.VerificationDecision)
			case "verification_result":
				purchase.VerificationResult = value.(string)
			case "verification_metadata":
				purchase.VerificationMetadata = value.(map[string]interface{})
			case "admin_notes":
				purchase.AdminNotes = value.(string)
			case "verified_at":
				t := value.(time.Time)
				purchase.VerifiedAt = &t
			}
		}
		return nil
	}
	return errNotFound
}

func (r *fakePurchaseRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, purchase := range r.purchases {
		if purchase.ID == id {
			r.purchases = append(r.purchases[:i], r.purchases[i+1:]...)
			return nil
		}
	}
	return errNotFound
}

func (r *fakePurchaseRepo) GetLatestByStatus(ctx context.Context, purchaserID primitive.ObjectID, statuses []models.PurchaseStatus) (*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.purchases) - 1; i >= 0; i-- {
		purchase := r.purchases[i]
		if purchase.PurchaserID != purchaserID {
			continue
		}
		for _, status := range statuses {
			if purchase.Status == status {
				return purchase, nil
			}
		}
	}
	return nil, nil
}

func (r *fakePurchaseRepo) ListByStatus(ctx context.Context, statuses []models.PurchaseStatus, limit int64) ([]*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Purchase
	for _, purchase := range r.purchases {
		if int64(len(out)) >= limit {
			break
		}
		for _, status := range statuses {
			if purchase.Status == status {
				out = append(out, purchase)
				break
			}
		}
	}
	return out, nil
}

func (r *fakePurchaseRepo) CountByStatus(ctx context.Context) (map[models.PurchaseStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[models.PurchaseStatus]int64)
	for _, purchase := range r.purchases {
		counts[purchase.Status]++
	}
	return counts, nil
}

func (r *fakePurchaseRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.purchases)
}

type fakeWishlistRepo struct {
	mu         sync.Mutex
	items      []*models.WishlistItem
	failClaims map[primitive.ObjectID]bool
}

func newFakeWishlistRepo(items ...*models.WishlistItem) *fakeWishlistRepo {
	repo := &fakeWishlistRepo{failClaims: make(map[primitive.ObjectID]bool)}
	for _, item := range items {
		if item.ID.IsZero() {
			item.ID = primitive.NewObjectID()
		}
		repo.items = append(repo.items, item)
	}
	return repo
}

func (r *fakeWishlistRepo) Upsert(ctx context.Context, item *models.WishlistItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.ParticipantID == item.ParticipantID {
			existing.Title = item.Title
			existing.Price = item.Price
			existing.URL = item.URL
			item.ID = existing.ID
			return nil
		}
	}
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	r.items = append(r.items, item)
	return nil
}

func (r *fakeWishlistRepo) GetByParticipant(ctx context.Context, participantID primitive.ObjectID) (*models.WishlistItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.ParticipantID == participantID {
			return item, nil
		}
	}
	return nil, errNotFound
}

func (r *fakeWishlistRepo) ListAvailable(ctx context.Context, excludeParticipantID primitive.ObjectID, limit int64) ([]*models.WishlistItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.WishlistItem
	for _, item := range r.items {
		if int64(len(out)) >= limit {
			break
		}
		if item.ParticipantID == excludeParticipantID || item.AssignedPurchaseID != nil {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *fakeWishlistRepo) Claim(ctx context.Context, itemID, purchaseID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failClaims[itemID] {
		return false, nil
	}
	for _, item := range r.items {
		if item.ID != itemID {
			continue
		}
		if item.AssignedPurchaseID != nil {
			return false, nil
		}
		id := purchaseID
		item.AssignedPurchaseID = &id
		return true, nil
	}
	return false, errNotFound
}

func (r *fakeWishlistRepo) Release(ctx context.Context, purchaseID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.AssignedPurchaseID != nil && *item.AssignedPurchaseID == purchaseID {
			item.AssignedPurchaseID = nil
		}
	}
	return nil
}

func (r *fakeWishlistRepo) GetByAssignedPurchases(ctx context.Context, purchaseIDs []primitive.ObjectID) (map[primitive.ObjectID]*models.WishlistItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[primitive.ObjectID]*models.WishlistItem)
	for _, item := range r.items {
		if item.AssignedPurchaseID == nil {
			continue
		}
		for _, id := range purchaseIDs {
			if *item.AssignedPurchaseID == id {
				out[id] = item
				break
			}
		}
	}
	return out, nil
}

type fakeMetricsRepo struct {
	mu            sync.Mutex
	snapshots     []*models.RTPSnapshot
	systemMetrics []*models.SystemMetrics
}

func newFakeMetricsRepo() *fakeMetricsRepo {
	return &fakeMetricsRepo{}
}

func (r *fakeMetricsRepo) InsertRTPSnapshot(ctx context.Context, snapshot *models.RTPSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snapshot.ID.IsZero() {
		snapshot.ID = primitive.NewObjectID()
	}
	r.snapshots = append(r.snapshots, snapshot)
	return nil
}

func (r *fakeMetricsRepo) LatestRTPSnapshot(ctx context.Context) (*models.RTPSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil, errNotFound
	}
	return r.snapshots[len(r.snapshots)-1], nil
}

func (r *fakeMetricsRepo) InsertSystemMetrics(ctx context.Context, metrics *models.SystemMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if metrics.ID.IsZero() {
		metrics.ID = primitive.NewObjectID()
	}
	r.systemMetrics = append(r.systemMetrics, metrics)
	return nil
}

func (r *fakeMetricsRepo) ListSystemMetrics(ctx context.Context, limit int64) ([]*models.SystemMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SystemMetrics
	for i := len(r.systemMetrics) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		out = append(out, r.systemMetrics[i])
	}
	return out, nil
}

func (r *fakeMetricsRepo) snapshotCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

type fakeReferralRepo struct {
	mu        sync.Mutex
	referrals []*models.Referral
}

func newFakeReferralRepo() *fakeReferralRepo {
	return &fakeReferralRepo{}
}

func (r *fakeReferralRepo) Create(ctx context.Context, referral *models.Referral) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if referral.ID.IsZero() {
		referral.ID = primitive.NewObjectID()
	}
	r.referrals = append(r.referrals, referral)
	return nil
}

type fakeVerifier struct {
	result *verify.Result
	err    error
}

func (f *fakeVerifier) Verify(ctx context.Context, request *verify.Request) (*verify.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploads: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(ctx context.Context, request *storage.UploadRequest) (*storage.UploadResponse, error) {
	data, err := io.ReadAll(request.Reader)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.uploads[request.Key] = data
	f.mu.Unlock()
	return &storage.UploadResponse{
		Key:  request.Key,
		URL:  "https://cdn.test/" + request.Key,
		Size: int64(len(data)),
	}, nil
}

func (f *fakeStorage) Download(ctx context.Context, key string) (*storage.DownloadResponse, error) {
	return nil, errNotFound
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	delete(f.uploads, key)
	f.mu.Unlock()
	return nil
}

func (f *fakeStorage) GetURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return "https://cdn.test/" + key, nil
}

func (f *fakeStorage) ListFiles(ctx context.Context, prefix string) ([]*storage.FileInfo, error) {
	return nil, nil
}

func (f *fakeStorage) FileExists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.uploads[key]
	return ok, nil
}

func (f *fakeStorage) GetFileInfo(ctx context.Context, key string) (*storage.FileInfo, error) {
	return nil, errNotFound
}

// stubProbability pins the distribution so draw tests control the outcome.
type stubProbability struct {
	dist *DrawDistribution
}

func (s *stubProbability) DistributionFor(ctx context.Context, participant *models.Participant) (*DrawDistribution, error) {
	return s.dist, nil
}

func (s *stubProbability) BaseDistribution(ctx context.Context) (*DrawDistribution, error) {
	return s.dist, nil
}

func singleTierDistribution(tier models.RewardTier) *DrawDistribution {
	probs := make(map[models.RewardTier]float64, len(models.RewardTiers))
	for _, t := range models.RewardTiers {
		probs[t] = 0
	}
	probs[tier] = 1
	return &DrawDistribution{Probabilities: probs, Policy: PolicyDynamic}
}

type stubInspector struct {
	snapshot *models.WishlistSnapshot
	err      error
}

func (s *stubInspector) Inspect(ctx context.Context, url string) (*models.WishlistSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}
