package flow

import (
	"context"
	"sync"

	"github.com/SakuraBurst/rewards/internal/rewards/controller"
	"github.com/SakuraBurst/rewards/internal/rewards/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ClaimState string

const (
	ClaimUnknown   ClaimState = "unknown"
	ClaimClaimable ClaimState = "claimable"
	ClaimClaimed   ClaimState = "claimed"
)

const DefaultDailyAward = 5

type claimer interface {
	CanClaimToday(ctx context.Context, userID uuid.UUID) (bool, error)
	UserStreak(ctx context.Context, userID uuid.UUID) (*types.UserStreak, error)
	ClaimDailyPoints(ctx context.Context, userID uuid.UUID) (*types.ClaimResult, error)
}

type ClaimSuccess struct {
	PointsAwarded int `json:"points_awarded"`
	NewStreak     int `json:"new_streak"`
}

// Claim tracks whether today's check-in can still be claimed. It only becomes
// claimable again when the backend has no check-in row for the new day.
type Claim struct {
	mu      sync.Mutex
	actor   types.Actor
	backend claimer
	logger  *zap.Logger

	state     ClaimState
	pending   bool
	success   *ClaimSuccess
	notice    *Notice
	discarded bool
}

type ClaimSnapshot struct {
	State   ClaimState    `json:"state"`
	Pending bool          `json:"pending"`
	Success *ClaimSuccess `json:"success,omitempty"`
	Notice  *Notice       `json:"notice,omitempty"`
}

func NewClaim(actor types.Actor, backend claimer, logger *zap.Logger) *Claim {
	return &Claim{actor: actor, backend: backend, logger: logger, state: ClaimUnknown}
}

// Refresh resolves the state from the "can claim today" read.
func (f *Claim) Refresh(ctx context.Context) (ClaimState, error) {
	can, err := f.backend.CanClaimToday(ctx, f.actor.ID)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		return f.state, errors.Wrap(err, "CanClaimToday failed: ")
	}
	if !f.pending {
		f.state = stateOf(can)
	}
	return f.state, nil
}

func stateOf(canClaim bool) ClaimState {
	if canClaim {
		return ClaimClaimable
	}
	return ClaimClaimed
}

// Claim runs the daily claim when today is still claimable. Otherwise it
// returns ErrAlreadyClaimed without touching the mutation.
func (f *Claim) Claim(ctx context.Context) error {
	f.mu.Lock()
	if f.pending {
		f.mu.Unlock()
		return ErrInFlight
	}
	f.pending = true
	f.mu.Unlock()

	err := f.claim(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = false
	return err
}

func (f *Claim) claim(ctx context.Context) error {
	can, err := f.backend.CanClaimToday(ctx, f.actor.ID)
	if err != nil {
		f.mu.Lock()
		if !f.discarded {
			f.notice = failureNotice(err, controller.ClaimFailedMessage)
		}
		f.mu.Unlock()
		f.logger.Warn("CanClaimToday failed: ", zap.Error(err))
		return errors.Wrap(err, "CanClaimToday failed: ")
	}
	if !can {
		f.mu.Lock()
		if !f.discarded {
			f.state = ClaimClaimed
		}
		f.mu.Unlock()
		return ErrAlreadyClaimed
	}

	previous := 0
	if streak, err := f.backend.UserStreak(ctx, f.actor.ID); err != nil {
		f.logger.Warn("UserStreak failed: ", zap.Error(err))
	} else {
		previous = streak.CurrentStreak
	}

	result, err := f.backend.ClaimDailyPoints(ctx, f.actor.ID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.discarded {
		return nil
	}
	if err != nil {
		f.state = ClaimClaimable
		f.notice = failureNotice(err, controller.ClaimFailedMessage)
		f.logger.Warn("ClaimDailyPoints failed: ", zap.Error(err))
		return errors.Wrap(err, "ClaimDailyPoints failed: ")
	}
	f.state = ClaimClaimed
	f.notice = nil
	f.success = &ClaimSuccess{
		PointsAwarded: result.PointsAwardedOr(DefaultDailyAward),
		NewStreak:     result.NewStreakOr(previous + 1),
	}
	return nil
}

// DismissSuccess closes the success display left by a claim.
func (f *Claim) DismissSuccess() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.success == nil {
		return ErrBadTransition
	}
	f.success = nil
	return nil
}

func (f *Claim) Snapshot() ClaimSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ClaimSnapshot{State: f.state, Pending: f.pending, Success: f.success, Notice: f.notice}
}

func (f *Claim) discard() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = true
}
