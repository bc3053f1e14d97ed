// Package flow holds the per-user interactive state machines: redeeming a
// reward, claiming the daily check-in and submitting a stack share.
package flow

import (
	"github.com/SakuraBurst/rewards/internal/rewards/controller"
	"github.com/go-faster/errors"
)

var (
	ErrInFlight       = errors.New("request already in flight")
	ErrNotRedeemable  = errors.New("reward can not be redeemed")
	ErrAlreadyClaimed = errors.New("daily points already claimed")
	ErrBadTransition  = errors.New("action not allowed in current state")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNoReward       = errors.New("no reward selected")
)

type NoticeKind string

const (
	NoticeError   NoticeKind = "error"
	NoticeSuccess NoticeKind = "success"
)

// Notice is the user visible outcome of the last action.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

func errorNotice(message string) *Notice {
	return &Notice{Kind: NoticeError, Message: message}
}

// failureNotice shows the server message for a remote failure and the
// action's fallback for anything else.
func failureNotice(err error, fallback string) *Notice {
	var remote *controller.RemoteError
	if errors.As(err, &remote) {
		return errorNotice(remote.Message)
	}
	return errorNotice(fallback)
}

func invalid(message string) error {
	return errors.Wrap(ErrInvalidInput, message)
}
