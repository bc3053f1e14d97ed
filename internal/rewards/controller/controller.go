package controller

import (
	"context"
	"time"

	"github.com/SakuraBurst/rewards/internal/rewards/config"
	"github.com/SakuraBurst/rewards/internal/rewards/querycache"
	"github.com/SakuraBurst/rewards/internal/rewards/selectors"
	"github.com/SakuraBurst/rewards/internal/rewards/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	ClaimFailedMessage  = "Failed to claim points"
	RedeemFailedMessage = "Failed to redeem reward"
	ShareFailedMessage  = "Failed to submit share"
	SignUpFailedMessage = "Failed to create account"
)

var ErrRewardNotExist = errors.New("reward not exist")

// RemoteError is a procedure that answered success=false. Message is the
// server's text or the action's fallback.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

func remoteError(serverMessage, fallback string) *RemoteError {
	if serverMessage == "" {
		serverMessage = fallback
	}
	return &RemoteError{Message: serverMessage}
}

type userDatabase interface {
	GetUserProfile(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error)
	GetCredentials(ctx context.Context, email string) (*types.Credentials, error)
	CreateUser(ctx context.Context, email, passwordHash, referralCode, referrer string) (*types.SignUpResult, error)
	GetReferrals(ctx context.Context, referrerID uuid.UUID) ([]*types.Referral, error)
}

type pointsDatabase interface {
	GetUserPoints(ctx context.Context, userID uuid.UUID) (*types.UserPoints, error)
	RedeemReward(ctx context.Context, userID, rewardID uuid.UUID, data types.RedemptionData) (*types.RedeemResult, error)
	SubmitStackShare(ctx context.Context, userID uuid.UUID, share types.StackShare) (*types.ShareResult, error)
}

type checkinDatabase interface {
	GetUserStreak(ctx context.Context, userID uuid.UUID) (*types.UserStreak, error)
	HasCheckin(ctx context.Context, userID uuid.UUID, day time.Time) (bool, error)
	GetCheckinDates(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]string, error)
	ClaimDailyPoints(ctx context.Context, userID uuid.UUID) (*types.ClaimResult, error)
}

type rewardDatabase interface {
	GetActiveRewards(ctx context.Context) ([]*types.Reward, error)
}

type Controller struct {
	userDatabase    userDatabase
	pointsDatabase  pointsDatabase
	checkinDatabase checkinDatabase
	rewardDatabase  rewardDatabase
	cache           *querycache.Cache
	clock           clockwork.Clock
	location        *time.Location
	jwtSecret       []byte
	sessionTTL      time.Duration
	siteOrigin      string
	logger          *zap.Logger
	databaseClose   func() error
}

func NewController(cfg *config.Config, u userDatabase, p pointsDatabase, ch checkinDatabase, r rewardDatabase,
	cache *querycache.Cache, clock clockwork.Clock, logger *zap.Logger, dbClose func() error) (*Controller, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, errors.Wrap(err, "cfg.Location failed: ")
	}
	return &Controller{
		userDatabase:    u,
		pointsDatabase:  p,
		checkinDatabase: ch,
		rewardDatabase:  r,
		cache:           cache,
		clock:           clock,
		location:        loc,
		jwtSecret:       []byte(cfg.JWTSecret),
		sessionTTL:      cfg.SessionTTL,
		siteOrigin:      cfg.SiteOrigin,
		logger:          logger.Named("controller"),
		databaseClose:   dbClose,
	}, nil
}

// Today is the current calendar day in the configured zone.
func (c *Controller) Today() time.Time {
	return selectors.Midnight(c.clock.Now().In(c.location))
}

func (c *Controller) Now() time.Time {
	return c.clock.Now()
}

func userKey(resource querycache.Resource, userID uuid.UUID) querycache.Key {
	return querycache.Key{Resource: resource, ID: userID.String()}
}

var rewardsKey = querycache.Key{Resource: querycache.ResourceRewards}

func (c *Controller) UserPoints(ctx context.Context, userID uuid.UUID) (*types.UserPoints, error) {
	return querycache.Fetch(ctx, c.cache, userKey(querycache.ResourceUserPoints, userID), func(ctx context.Context) (*types.UserPoints, error) {
		return c.pointsDatabase.GetUserPoints(ctx, userID)
	})
}

func (c *Controller) UserStreak(ctx context.Context, userID uuid.UUID) (*types.UserStreak, error) {
	return querycache.Fetch(ctx, c.cache, userKey(querycache.ResourceUserStreak, userID), func(ctx context.Context) (*types.UserStreak, error) {
		return c.checkinDatabase.GetUserStreak(ctx, userID)
	})
}

// CanClaimToday is true when the user has no check-in row for today.
func (c *Controller) CanClaimToday(ctx context.Context, userID uuid.UUID) (bool, error) {
	return querycache.Fetch(ctx, c.cache, userKey(querycache.ResourceCanClaimToday, userID), func(ctx context.Context) (bool, error) {
		exists, err := c.checkinDatabase.HasCheckin(ctx, userID, c.Today())
		return !exists, err
	})
}

func (c *Controller) WeeklyCheckins(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return querycache.Fetch(ctx, c.cache, userKey(querycache.ResourceWeeklyCheckins, userID), func(ctx context.Context) ([]string, error) {
		from, to := selectors.WindowRange(c.Today())
		return c.checkinDatabase.GetCheckinDates(ctx, userID, from, to)
	})
}

func (c *Controller) Rewards(ctx context.Context) ([]*types.Reward, error) {
	return querycache.Fetch(ctx, c.cache, rewardsKey, func(ctx context.Context) ([]*types.Reward, error) {
		return c.rewardDatabase.GetActiveRewards(ctx)
	})
}

func (c *Controller) Reward(ctx context.Context, rewardID uuid.UUID) (*types.Reward, error) {
	rewards, err := c.Rewards(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rewards {
		if r.ID == rewardID {
			return r, nil
		}
	}
	return nil, ErrRewardNotExist
}

func (c *Controller) ReferralStats(ctx context.Context, userID uuid.UUID) (types.ReferralStats, error) {
	return querycache.Fetch(ctx, c.cache, userKey(querycache.ResourceReferralStats, userID), func(ctx context.Context) (types.ReferralStats, error) {
		refs, err := c.userDatabase.GetReferrals(ctx, userID)
		if err != nil {
			return types.ReferralStats{}, err
		}
		return selectors.AggregateReferrals(refs), nil
	})
}

func (c *Controller) UserProfile(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error) {
	return querycache.Fetch(ctx, c.cache, userKey(querycache.ResourceUserProfile, userID), func(ctx context.Context) (*types.UserProfile, error) {
		return c.userDatabase.GetUserProfile(ctx, userID)
	})
}

// invalidate runs after a successful mutation. The mutation already happened,
// so a failure here is logged rather than returned.
func (c *Controller) invalidate(ctx context.Context, keys ...querycache.Key) {
	if err := c.cache.Invalidate(ctx, keys...); err != nil {
		c.logger.Error("cache.Invalidate failed: ", zap.Error(err))
	}
}

func (c *Controller) ClaimDailyPoints(ctx context.Context, userID uuid.UUID) (*types.ClaimResult, error) {
	result, err := c.checkinDatabase.ClaimDailyPoints(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "checkinDatabase.ClaimDailyPoints failed: ")
	}
	if !result.Success {
		return nil, remoteError(result.Error, ClaimFailedMessage)
	}
	c.invalidate(ctx,
		userKey(querycache.ResourceUserPoints, userID),
		userKey(querycache.ResourceUserStreak, userID),
		userKey(querycache.ResourceCanClaimToday, userID),
		userKey(querycache.ResourceWeeklyCheckins, userID),
	)
	return result, nil
}

func (c *Controller) RedeemReward(ctx context.Context, userID, rewardID uuid.UUID, data types.RedemptionData) (*types.RedeemResult, error) {
	result, err := c.pointsDatabase.RedeemReward(ctx, userID, rewardID, data)
	if err != nil {
		return nil, errors.Wrap(err, "pointsDatabase.RedeemReward failed: ")
	}
	if !result.Success {
		return nil, remoteError(result.Error, RedeemFailedMessage)
	}
	c.invalidate(ctx, userKey(querycache.ResourceUserPoints, userID))
	return result, nil
}

func (c *Controller) SubmitStackShare(ctx context.Context, userID uuid.UUID, share types.StackShare) (*types.ShareResult, error) {
	result, err := c.pointsDatabase.SubmitStackShare(ctx, userID, share)
	if err != nil {
		return nil, errors.Wrap(err, "pointsDatabase.SubmitStackShare failed: ")
	}
	if !result.Success {
		return nil, remoteError(result.Error, ShareFailedMessage)
	}
	c.invalidate(ctx, userKey(querycache.ResourceUserPoints, userID))
	return result, nil
}

func (c *Controller) Close() error {
	err := c.cache.Close()
	if closeErr := c.databaseClose(); closeErr != nil {
		return closeErr
	}
	return err
}
