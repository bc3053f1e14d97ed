package controller

import (
	"context"

	"github.com/SakuraBurst/rewards/internal/rewards/selectors"
	"github.com/SakuraBurst/rewards/internal/rewards/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

type Summary struct {
	PointsBalance     int                 `json:"points_balance"`
	GiftCardProgress  float64             `json:"gift_card_progress"`
	CurrentStreak     int                 `json:"current_streak"`
	LongestStreak     int                 `json:"longest_streak"`
	StreakLabel       string              `json:"streak_label"`
	CanClaimToday     bool                `json:"can_claim_today"`
	Week              []selectors.Day     `json:"week"`
	Referrals         types.ReferralStats `json:"referrals"`
	ReferralURL       string              `json:"referral_url"`
	ReferralShareURLs map[string]string   `json:"referral_share_urls,omitempty"`
}

// Summary gathers the earn-points page for one user.
func (c *Controller) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	points, err := c.UserPoints(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "UserPoints failed: ")
	}
	streak, err := c.UserStreak(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "UserStreak failed: ")
	}
	canClaim, err := c.CanClaimToday(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "CanClaimToday failed: ")
	}
	checkins, err := c.WeeklyCheckins(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "WeeklyCheckins failed: ")
	}
	stats, err := c.ReferralStats(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "ReferralStats failed: ")
	}
	profile, err := c.UserProfile(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "UserProfile failed: ")
	}

	referralURL := selectors.ReferralURL(c.siteOrigin, profile.ReferralCode)
	return &Summary{
		PointsBalance:     points.PointsBalance,
		GiftCardProgress:  selectors.GiftCardProgress(points.PointsBalance),
		CurrentStreak:     streak.CurrentStreak,
		LongestStreak:     streak.LongestStreak,
		StreakLabel:       selectors.StreakLabel(streak.CurrentStreak),
		CanClaimToday:     canClaim,
		Week:              selectors.WeekWindow(c.Today(), checkins),
		Referrals:         stats,
		ReferralURL:       referralURL,
		ReferralShareURLs: selectors.ReferralShareURLs(referralURL),
	}, nil
}

type CatalogItem struct {
	*types.Reward
	Status    selectors.Filter `json:"status"`
	Label     string           `json:"label"`
	CanRedeem bool             `json:"can_redeem"`
}

type Catalog struct {
	Filter        selectors.Filter `json:"filter"`
	PointsBalance int              `json:"points_balance"`
	Counts        selectors.Counts `json:"counts"`
	Rewards       []CatalogItem    `json:"rewards"`
}

func (c *Controller) Catalog(ctx context.Context, userID uuid.UUID, filter selectors.Filter) (*Catalog, error) {
	rewards, err := c.Rewards(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "Rewards failed: ")
	}
	points, err := c.UserPoints(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "UserPoints failed: ")
	}
	balance := points.PointsBalance
	filtered := selectors.FilterRewards(rewards, balance, filter)
	items := make([]CatalogItem, len(filtered))
	for i, r := range filtered {
		items[i] = CatalogItem{
			Reward:    r,
			Status:    selectors.StatusOf(r, balance),
			Label:     selectors.ActionLabel(r, balance),
			CanRedeem: selectors.CanRedeem(r, balance),
		}
	}
	return &Catalog{
		Filter:        filter,
		PointsBalance: balance,
		Counts:        selectors.CountRewards(rewards, balance),
		Rewards:       items,
	}, nil
}
