package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SakuraBurst/rewards/internal/rewards/config"
	"github.com/SakuraBurst/rewards/internal/rewards/database"
	"github.com/SakuraBurst/rewards/internal/rewards/querycache"
	"github.com/SakuraBurst/rewards/internal/rewards/selectors"
	"github.com/SakuraBurst/rewards/internal/rewards/session"
	"github.com/SakuraBurst/rewards/internal/rewards/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func intPtr(v int) *int { return &v }

type fakeDB struct {
	mu      sync.Mutex
	calls   map[string]int
	balance int
	streak  int
	checked map[string]bool
	rewards []*types.Reward
	refs    []*types.Referral
	creds   *types.Credentials

	claimResult  *types.ClaimResult
	redeemResult *types.RedeemResult
	shareResult  *types.ShareResult
	mutationErr  error

	lastCheckinDay time.Time
	lastShare      types.StackShare
	lastSignUp     []string
	takenCodes     int
}

func newFakeDB() *fakeDB {
	return &fakeDB{calls: map[string]int{}, checked: map[string]bool{}}
}

func (f *fakeDB) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeDB) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeDB) GetUserProfile(_ context.Context, userID uuid.UUID) (*types.UserProfile, error) {
	f.hit("GetUserProfile")
	return &types.UserProfile{ID: userID, ReferralCode: "AB12CD34", Email: "ada@example.com"}, nil
}

func (f *fakeDB) GetCredentials(_ context.Context, email string) (*types.Credentials, error) {
	f.hit("GetCredentials")
	if f.creds == nil || f.creds.Email != email {
		return nil, database.ErrUserNotExist
	}
	return f.creds, nil
}

func (f *fakeDB) CreateUser(_ context.Context, email, passwordHash, referralCode, referrer string) (*types.SignUpResult, error) {
	f.hit("CreateUser")
	f.lastSignUp = []string{email, passwordHash, referralCode, referrer}
	f.mu.Lock()
	taken := f.takenCodes > 0
	if taken {
		f.takenCodes--
	}
	f.mu.Unlock()
	if taken {
		return nil, database.ErrReferralCodeTaken
	}
	if email == "taken@example.com" {
		return &types.SignUpResult{Success: false, Error: "An account with this email already exists"}, nil
	}
	id := uuid.New()
	return &types.SignUpResult{Success: true, UserID: &id}, nil
}

func (f *fakeDB) GetReferrals(context.Context, uuid.UUID) ([]*types.Referral, error) {
	f.hit("GetReferrals")
	return f.refs, nil
}

func (f *fakeDB) GetUserPoints(_ context.Context, userID uuid.UUID) (*types.UserPoints, error) {
	f.hit("GetUserPoints")
	return &types.UserPoints{UserID: userID, PointsBalance: f.balance}, nil
}

func (f *fakeDB) RedeemReward(context.Context, uuid.UUID, uuid.UUID, types.RedemptionData) (*types.RedeemResult, error) {
	f.hit("RedeemReward")
	return f.redeemResult, f.mutationErr
}

func (f *fakeDB) SubmitStackShare(_ context.Context, _ uuid.UUID, share types.StackShare) (*types.ShareResult, error) {
	f.hit("SubmitStackShare")
	f.lastShare = share
	return f.shareResult, f.mutationErr
}

func (f *fakeDB) GetUserStreak(_ context.Context, userID uuid.UUID) (*types.UserStreak, error) {
	f.hit("GetUserStreak")
	return &types.UserStreak{UserID: userID, CurrentStreak: f.streak, LongestStreak: f.streak}, nil
}

func (f *fakeDB) HasCheckin(_ context.Context, _ uuid.UUID, day time.Time) (bool, error) {
	f.hit("HasCheckin")
	f.lastCheckinDay = day
	return f.checked[day.Format(time.DateOnly)], nil
}

func (f *fakeDB) GetCheckinDates(context.Context, uuid.UUID, time.Time, time.Time) ([]string, error) {
	f.hit("GetCheckinDates")
	var dates []string
	for d := range f.checked {
		dates = append(dates, d)
	}
	return dates, nil
}

func (f *fakeDB) ClaimDailyPoints(context.Context, uuid.UUID) (*types.ClaimResult, error) {
	f.hit("ClaimDailyPoints")
	return f.claimResult, f.mutationErr
}

func (f *fakeDB) GetActiveRewards(context.Context) ([]*types.Reward, error) {
	f.hit("GetActiveRewards")
	return f.rewards, nil
}

var testNow = time.Date(2026, 10, 14, 23, 30, 0, 0, time.UTC)

func newTestController(t *testing.T, db *fakeDB, zone string) (*Controller, *querycache.Cache) {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:  "secret",
		SessionTTL: time.Hour,
		SiteOrigin: "https://app.example.com",
		TimeZone:   zone,
	}
	clock := clockwork.NewFakeClockAt(testNow)
	cache := querycache.New(querycache.NewMemoryStore(), clock, 0, nil)
	c, err := NewController(cfg, db, db, db, db, cache, clock, zap.NewNop(), func() error { return nil })
	require.NoError(t, err)
	return c, cache
}

func assertStale(t *testing.T, cache *querycache.Cache, resource querycache.Resource, userID uuid.UUID, want bool) {
	t.Helper()
	e, ok, err := cache.Peek(context.Background(), userKey(resource, userID))
	require.NoError(t, err)
	require.True(t, ok, resource)
	assert.Equal(t, want, e.Stale, resource)
}

var userResources = []querycache.Resource{
	querycache.ResourceUserPoints,
	querycache.ResourceUserStreak,
	querycache.ResourceCanClaimToday,
	querycache.ResourceWeeklyCheckins,
	querycache.ResourceReferralStats,
	querycache.ResourceUserProfile,
}

func warm(t *testing.T, c *Controller, userID uuid.UUID) {
	t.Helper()
	_, err := c.Summary(context.Background(), userID)
	require.NoError(t, err)
}

func TestClaimInvalidatesAllFourResources(t *testing.T) {
	db := newFakeDB()
	db.claimResult = &types.ClaimResult{Success: true, PointsAwarded: intPtr(5), NewStreak: intPtr(3)}
	c, cache := newTestController(t, db, "UTC")
	userID := uuid.New()
	warm(t, c, userID)

	res, err := c.ClaimDailyPoints(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.NewStreakOr(0))

	for _, r := range userResources {
		stale := r != querycache.ResourceReferralStats && r != querycache.ResourceUserProfile
		assertStale(t, cache, r, userID, stale)
	}

	warm(t, c, userID)
	assert.Equal(t, 2, db.count("GetUserPoints"))
	assert.Equal(t, 2, db.count("GetUserStreak"))
	assert.Equal(t, 2, db.count("HasCheckin"))
	assert.Equal(t, 2, db.count("GetCheckinDates"))
	assert.Equal(t, 1, db.count("GetUserProfile"))
}

func TestRedeemSuccessInvalidatesOnlyPoints(t *testing.T) {
	db := newFakeDB()
	db.redeemResult = &types.RedeemResult{Success: true, PointsSpent: intPtr(500)}
	c, cache := newTestController(t, db, "UTC")
	userID := uuid.New()
	warm(t, c, userID)

	_, err := c.RedeemReward(context.Background(), userID, uuid.New(), types.RedemptionData{Email: "ada@example.com"})
	require.NoError(t, err)

	for _, r := range userResources {
		assertStale(t, cache, r, userID, r == querycache.ResourceUserPoints)
	}
}

func TestRedeemFailureKeepsCacheAndReturnsServerMessage(t *testing.T) {
	db := newFakeDB()
	db.redeemResult = &types.RedeemResult{Success: false, Error: "Insufficient points"}
	c, cache := newTestController(t, db, "UTC")
	userID := uuid.New()
	warm(t, c, userID)

	_, err := c.RedeemReward(context.Background(), userID, uuid.New(), types.RedemptionData{})
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "Insufficient points", remote.Message)
	assertStale(t, cache, querycache.ResourceUserPoints, userID, false)
}

func TestMutationFallbackMessages(t *testing.T) {
	db := newFakeDB()
	db.claimResult = &types.ClaimResult{Success: false}
	db.redeemResult = &types.RedeemResult{Success: false}
	db.shareResult = &types.ShareResult{Success: false}
	c, _ := newTestController(t, db, "UTC")
	ctx := context.Background()
	userID := uuid.New()

	_, err := c.ClaimDailyPoints(ctx, userID)
	assert.EqualError(t, err, ClaimFailedMessage)
	_, err = c.RedeemReward(ctx, userID, uuid.New(), types.RedemptionData{})
	assert.EqualError(t, err, RedeemFailedMessage)
	_, err = c.SubmitStackShare(ctx, userID, types.StackShare{})
	assert.EqualError(t, err, ShareFailedMessage)
}

func TestTransportFaultIsNotRemoteError(t *testing.T) {
	db := newFakeDB()
	db.mutationErr = errors.New("connection reset")
	c, cache := newTestController(t, db, "UTC")
	userID := uuid.New()
	warm(t, c, userID)

	_, err := c.ClaimDailyPoints(context.Background(), userID)
	require.Error(t, err)
	var remote *RemoteError
	assert.False(t, errors.As(err, &remote))
	assertStale(t, cache, querycache.ResourceUserPoints, userID, false)
}

func TestShareInvalidatesActingUserPoints(t *testing.T) {
	db := newFakeDB()
	db.shareResult = &types.ShareResult{Success: true, PointsAwarded: intPtr(25)}
	c, cache := newTestController(t, db, "UTC")
	userID, other := uuid.New(), uuid.New()
	warm(t, c, userID)
	warm(t, c, other)

	share := types.StackShare{Content: "Go", Link: "https://x.com/p/1", Platform: types.PlatformTwitter}
	_, err := c.SubmitStackShare(context.Background(), userID, share)
	require.NoError(t, err)
	assert.Equal(t, share, db.lastShare)
	assertStale(t, cache, querycache.ResourceUserPoints, userID, true)
	assertStale(t, cache, querycache.ResourceUserPoints, other, false)
}

func TestCanClaimTodayUsesConfiguredZone(t *testing.T) {
	db := newFakeDB()
	db.checked["2026-10-15"] = true
	c, _ := newTestController(t, db, "Asia/Tokyo")

	can, err := c.CanClaimToday(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, can)
	assert.Equal(t, "2026-10-15", db.lastCheckinDay.Format(time.DateOnly))
}

func TestSummaryAndCatalog(t *testing.T) {
	db := newFakeDB()
	db.balance = 700
	db.streak = 1
	db.checked["2026-10-14"] = true
	db.refs = []*types.Referral{{IsCompleted: true, PointsAwarded: 25}, {IsCompleted: false}}
	cheap := &types.Reward{ID: uuid.New(), Name: "Sticker", PointsRequired: 500, IsActive: true}
	pricey := &types.Reward{ID: uuid.New(), Name: "Gift card", PointsRequired: 5000, IsActive: true}
	soon := &types.Reward{ID: uuid.New(), Name: "Hoodie", PointsRequired: 100, IsActive: true, IsComingSoon: true}
	db.rewards = []*types.Reward{soon, cheap, pricey}
	c, _ := newTestController(t, db, "UTC")
	ctx := context.Background()
	userID := uuid.New()

	summary, err := c.Summary(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 700, summary.PointsBalance)
	assert.Equal(t, 14.0, summary.GiftCardProgress)
	assert.Equal(t, "1 day", summary.StreakLabel)
	assert.False(t, summary.CanClaimToday)
	assert.True(t, summary.Week[6].CheckedIn)
	assert.Equal(t, types.ReferralStats{TotalReferrals: 2, CompletedReferrals: 1, PointsEarned: 25}, summary.Referrals)
	assert.Equal(t, "https://app.example.com/signup?ref=AB12CD34", summary.ReferralURL)
	assert.Len(t, summary.ReferralShareURLs, 4)

	catalog, err := c.Catalog(ctx, userID, selectors.FilterUnlocked)
	require.NoError(t, err)
	assert.Equal(t, selectors.Counts{All: 3, Unlocked: 1, Locked: 1, ComingSoon: 1}, catalog.Counts)
	require.Len(t, catalog.Rewards, 1)
	assert.Equal(t, "Sticker", catalog.Rewards[0].Name)
	assert.True(t, catalog.Rewards[0].CanRedeem)

	got, err := c.Reward(ctx, pricey.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gift card", got.Name)
	_, err = c.Reward(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRewardNotExist)
	assert.Equal(t, 1, db.count("GetActiveRewards"))
}

func TestSignUpAndAuthorize(t *testing.T) {
	db := newFakeDB()
	c, _ := newTestController(t, db, "UTC")
	ctx := context.Background()

	_, err := c.SignUp(ctx, &types.UserRequest{Email: " ada@example.com ", Password: "hunter22", Referrer: "ZZ99"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", db.lastSignUp[0])
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(db.lastSignUp[1]), []byte("hunter22")))
	assert.Len(t, db.lastSignUp[2], referralCodeLength)
	assert.Equal(t, "ZZ99", db.lastSignUp[3])

	_, err = c.SignUp(ctx, &types.UserRequest{Email: "taken@example.com", Password: "x"})
	assert.EqualError(t, err, "An account with this email already exists")

	db.creds = &types.Credentials{ID: uuid.New(), Email: "ada@example.com", PasswordHash: db.lastSignUp[1]}
	token, actor, err := c.Authorize(ctx, &types.UserRequest{Email: "ada@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, db.creds.ID, actor.ID)
	parsed, err := session.Parse(token, []byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, *actor, *parsed)

	_, _, err = c.Authorize(ctx, &types.UserRequest{Email: "ada@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = c.Authorize(ctx, &types.UserRequest{Email: "bob@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignUpRetriesTakenReferralCode(t *testing.T) {
	db := newFakeDB()
	c, _ := newTestController(t, db, "UTC")
	ctx := context.Background()

	db.takenCodes = 1
	id, err := c.SignUp(ctx, &types.UserRequest{Email: "ada@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, 2, db.count("CreateUser"))

	db.takenCodes = referralCodeAttempts
	_, err = c.SignUp(ctx, &types.UserRequest{Email: "bob@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, database.ErrReferralCodeTaken)
	assert.Equal(t, 2+referralCodeAttempts, db.count("CreateUser"))
}
