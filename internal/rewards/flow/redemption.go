package flow

import (
	"context"
	"strconv"
	"sync"

	"github.com/SakuraBurst/rewards/internal/rewards/controller"
	"github.com/SakuraBurst/rewards/internal/rewards/selectors"
	"github.com/SakuraBurst/rewards/internal/rewards/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type RedemptionState string

const (
	RedemptionIdle           RedemptionState = "idle"
	RedemptionConfirmPending RedemptionState = "confirm_pending"
	RedemptionRedeeming      RedemptionState = "redeeming"
	RedemptionSuccess        RedemptionState = "success"
)

type redeemer interface {
	RedeemReward(ctx context.Context, userID, rewardID uuid.UUID, data types.RedemptionData) (*types.RedeemResult, error)
}

// Redemption walks idle -> confirm_pending -> redeeming -> success. Cancel and
// failure both return to idle and drop the selected reward, so idle always
// means nothing is selected.
type Redemption struct {
	mu      sync.Mutex
	actor   types.Actor
	backend redeemer
	clock   clockwork.Clock
	logger  *zap.Logger

	state       RedemptionState
	reward      *types.Reward
	pointsSpent int
	notice      *Notice
	discarded   bool
}

type RedemptionSnapshot struct {
	State       RedemptionState `json:"state"`
	Reward      *types.Reward   `json:"reward,omitempty"`
	PointsSpent int             `json:"points_spent,omitempty"`
	SpentLabel  string          `json:"spent_label,omitempty"`
	Notice      *Notice         `json:"notice,omitempty"`
}

func NewRedemption(actor types.Actor, backend redeemer, clock clockwork.Clock, logger *zap.Logger) *Redemption {
	return &Redemption{
		actor:   actor,
		backend: backend,
		clock:   clock,
		logger:  logger,
		state:   RedemptionIdle,
	}
}

// Select opens the confirm step for r. A reward the balance can not cover, or
// one that is coming soon, leaves the flow untouched.
func (f *Redemption) Select(r *types.Reward, balance int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case RedemptionRedeeming:
		return ErrInFlight
	case RedemptionSuccess:
		return ErrBadTransition
	}
	if r == nil {
		return ErrNoReward
	}
	if !selectors.CanRedeem(r, balance) {
		return ErrNotRedeemable
	}
	f.state = RedemptionConfirmPending
	f.reward = r
	f.notice = nil
	return nil
}

func (f *Redemption) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case RedemptionRedeeming:
		return ErrInFlight
	case RedemptionConfirmPending:
		f.reset()
		return nil
	}
	return ErrBadTransition
}

// Confirm issues one redemption for the selected reward. While it is
// outstanding every other action reports ErrInFlight.
func (f *Redemption) Confirm(ctx context.Context) error {
	f.mu.Lock()
	switch f.state {
	case RedemptionRedeeming:
		f.mu.Unlock()
		return ErrInFlight
	case RedemptionConfirmPending:
	default:
		f.mu.Unlock()
		return ErrBadTransition
	}
	reward := f.reward
	f.state = RedemptionRedeeming
	f.mu.Unlock()

	data := types.RedemptionData{Email: f.actor.Email, Timestamp: f.clock.Now().UTC()}
	result, err := f.backend.RedeemReward(ctx, f.actor.ID, reward.ID, data)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.discarded {
		return nil
	}
	if err != nil {
		f.reset()
		f.notice = failureNotice(err, controller.RedeemFailedMessage)
		f.logger.Warn("RedeemReward failed: ", zap.String("reward", reward.ID.String()), zap.Error(err))
		return errors.Wrap(err, "RedeemReward failed: ")
	}
	f.state = RedemptionSuccess
	f.pointsSpent = result.PointsSpentOr(reward.PointsRequired)
	return nil
}

// Dismiss closes the success display.
func (f *Redemption) Dismiss() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != RedemptionSuccess {
		return ErrBadTransition
	}
	f.reset()
	return nil
}

func (f *Redemption) Snapshot() RedemptionSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := RedemptionSnapshot{State: f.state, Reward: f.reward, Notice: f.notice}
	if f.state == RedemptionSuccess {
		s.PointsSpent = f.pointsSpent
		s.SpentLabel = "-" + strconv.Itoa(f.pointsSpent)
	}
	return s
}

func (f *Redemption) reset() {
	f.state = RedemptionIdle
	f.reward = nil
	f.pointsSpent = 0
}

func (f *Redemption) discard() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = true
}
