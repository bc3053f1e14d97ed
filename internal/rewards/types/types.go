package types

import (
	"time"

	"github.com/google/uuid"
)

type UserPoints struct {
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	PointsBalance int       `json:"points_balance" db:"points_balance"`
}

type UserStreak struct {
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	CurrentStreak   int        `json:"current_streak" db:"current_streak"`
	LongestStreak   int        `json:"longest_streak" db:"longest_streak"`
	LastCheckinDate *time.Time `json:"last_checkin_date" db:"last_checkin_date"`
}

type Reward struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	PointsRequired int       `json:"points_required" db:"points_required"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	IsComingSoon   bool      `json:"is_coming_soon" db:"is_coming_soon"`
}

type Referral struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ReferrerID    uuid.UUID `json:"referrer_id" db:"referrer_id"`
	ReferredID    uuid.UUID `json:"referred_id" db:"referred_id"`
	IsCompleted   bool      `json:"is_completed" db:"is_completed"`
	PointsAwarded int       `json:"points_awarded" db:"points_awarded"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ReferralStats is reduced from referral rows, it is not a server aggregate.
type ReferralStats struct {
	TotalReferrals     int `json:"total_referrals"`
	CompletedReferrals int `json:"completed_referrals"`
	PointsEarned       int `json:"points_earned"`
}

type UserProfile struct {
	ID           uuid.UUID `json:"id" db:"id"`
	ReferralCode string    `json:"referral_code" db:"referral_code"`
	Email        string    `json:"email" db:"email"`
}

type Credentials struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
}

// Actor is the authenticated user a request acts for.
type Actor struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type RedemptionData struct {
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}

type Platform string

const (
	PlatformTwitter  Platform = "twitter"
	PlatformFacebook Platform = "facebook"
)

func (p Platform) Valid() bool {
	return p == PlatformTwitter || p == PlatformFacebook
}

type StackShare struct {
	Content  string   `json:"stack_content"`
	Link     string   `json:"share_link"`
	Platform Platform `json:"platform"`
}

type UserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Referrer string `json:"ref"`
}

// ClaimResult mirrors claim_daily_points. Missing fields stay nil.
type ClaimResult struct {
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	PointsAwarded *int   `json:"points_awarded,omitempty"`
	NewStreak     *int   `json:"new_streak,omitempty"`
}

func (r *ClaimResult) PointsAwardedOr(def int) int {
	if r.PointsAwarded == nil || *r.PointsAwarded == 0 {
		return def
	}
	return *r.PointsAwarded
}

func (r *ClaimResult) NewStreakOr(def int) int {
	if r.NewStreak == nil || *r.NewStreak == 0 {
		return def
	}
	return *r.NewStreak
}

type RedeemResult struct {
	Success      bool       `json:"success"`
	Error        string     `json:"error,omitempty"`
	RedemptionID *uuid.UUID `json:"redemption_id,omitempty"`
	PointsSpent  *int       `json:"points_spent,omitempty"`
}

func (r *RedeemResult) PointsSpentOr(def int) int {
	if r.PointsSpent == nil || *r.PointsSpent == 0 {
		return def
	}
	return *r.PointsSpent
}

type ShareResult struct {
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	PointsAwarded *int   `json:"points_awarded,omitempty"`
}

func (r *ShareResult) PointsAwardedOr(def int) int {
	if r.PointsAwarded == nil {
		return def
	}
	return *r.PointsAwarded
}

type SignUpResult struct {
	Success bool       `json:"success"`
	Error   string     `json:"error,omitempty"`
	UserID  *uuid.UUID `json:"user_id,omitempty"`
}
