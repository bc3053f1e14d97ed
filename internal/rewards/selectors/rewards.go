// Package selectors derives view state from raw backend records. Everything in
// here is a pure function of its arguments.
package selectors

import (
	"fmt"

	"github.com/SakuraBurst/rewards/internal/rewards/types"
	"github.com/go-faster/errors"
)

type Filter string

const (
	FilterAll        Filter = "all"
	FilterUnlocked   Filter = "unlocked"
	FilterLocked     Filter = "locked"
	FilterComingSoon Filter = "coming_soon"
)

// GiftCardGoal is the balance shown as 100% progress.
const GiftCardGoal = 5000

var ErrUnknownFilter = errors.New("unknown reward filter")

func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case "":
		return FilterAll, nil
	case FilterAll, FilterUnlocked, FilterLocked, FilterComingSoon:
		return Filter(s), nil
	}
	return "", errors.Wrap(ErrUnknownFilter, s)
}

func CanRedeem(r *types.Reward, balance int) bool {
	return balance >= r.PointsRequired && !r.IsComingSoon
}

// StatusOf places a reward in exactly one of unlocked, locked or coming_soon.
func StatusOf(r *types.Reward, balance int) Filter {
	if r.IsComingSoon {
		return FilterComingSoon
	}
	if balance >= r.PointsRequired {
		return FilterUnlocked
	}
	return FilterLocked
}

func Matches(r *types.Reward, balance int, f Filter) bool {
	if f == FilterAll {
		return true
	}
	return StatusOf(r, balance) == f
}

func FilterRewards(rewards []*types.Reward, balance int, f Filter) []*types.Reward {
	result := make([]*types.Reward, 0, len(rewards))
	for _, r := range rewards {
		if Matches(r, balance, f) {
			result = append(result, r)
		}
	}
	return result
}

type Counts struct {
	All        int `json:"all"`
	Unlocked   int `json:"unlocked"`
	Locked     int `json:"locked"`
	ComingSoon int `json:"coming_soon"`
}

func CountRewards(rewards []*types.Reward, balance int) Counts {
	c := Counts{All: len(rewards)}
	for _, r := range rewards {
		switch StatusOf(r, balance) {
		case FilterUnlocked:
			c.Unlocked++
		case FilterLocked:
			c.Locked++
		case FilterComingSoon:
			c.ComingSoon++
		}
	}
	return c
}

func (c Counts) Of(f Filter) int {
	switch f {
	case FilterUnlocked:
		return c.Unlocked
	case FilterLocked:
		return c.Locked
	case FilterComingSoon:
		return c.ComingSoon
	}
	return c.All
}

// ActionLabel is the text of a reward card's button.
func ActionLabel(r *types.Reward, balance int) string {
	switch StatusOf(r, balance) {
	case FilterComingSoon:
		return "Coming Soon"
	case FilterLocked:
		return "Locked"
	}
	return "Redeem"
}

func GiftCardProgress(balance int) float64 {
	if balance <= 0 {
		return 0
	}
	return min(float64(balance)*100/GiftCardGoal, 100)
}

func StreakLabel(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
