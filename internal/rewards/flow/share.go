package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/SakuraBurst/rewards/internal/rewards/controller"
	"github.com/SakuraBurst/rewards/internal/rewards/selectors"
	"github.com/SakuraBurst/rewards/internal/rewards/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ShareStep string

const (
	ShareInput  ShareStep = "input"
	ShareVerify ShareStep = "verify"
)

const (
	EmptyStackMessage = "Please enter your stack first"
	EmptyLinkMessage  = "Please paste the link to your post"
	DefaultShareAward = 25
)

type sharer interface {
	SubmitStackShare(ctx context.Context, userID uuid.UUID, share types.StackShare) (*types.ShareResult, error)
}

// Share is the stack share form: input -> verify -> input on success. A failed
// submit stays in verify with the form populated.
type Share struct {
	mu      sync.Mutex
	actor   types.Actor
	backend sharer
	logger  *zap.Logger

	step      ShareStep
	content   string
	platform  types.Platform
	intentURL string
	pending   bool
	notice    *Notice
	discarded bool
}

type ShareSnapshot struct {
	Step      ShareStep      `json:"step"`
	Content   string         `json:"stack_content"`
	Platform  types.Platform `json:"platform,omitempty"`
	IntentURL string         `json:"intent_url,omitempty"`
	Pending   bool           `json:"pending"`
	Notice    *Notice        `json:"notice,omitempty"`
}

func NewShare(actor types.Actor, backend sharer, logger *zap.Logger) *Share {
	return &Share{actor: actor, backend: backend, logger: logger, step: ShareInput}
}

// Start records the content and platform and returns the share intent URL to
// open. Blank content sets a notice and keeps the input step.
func (f *Share) Start(content string, platform types.Platform) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending {
		return "", ErrInFlight
	}
	if f.step != ShareInput {
		return "", ErrBadTransition
	}
	if strings.TrimSpace(content) == "" {
		f.notice = errorNotice(EmptyStackMessage)
		return "", invalid(EmptyStackMessage)
	}
	u, err := selectors.ShareIntentURL(platform, content)
	if err != nil {
		return "", errors.Wrap(err, "ShareIntentURL failed: ")
	}
	f.step = ShareVerify
	f.content = content
	f.platform = platform
	f.intentURL = u
	f.notice = nil
	return u, nil
}

// Back returns to the input step keeping the entered content.
func (f *Share) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending {
		return ErrInFlight
	}
	if f.step != ShareVerify {
		return ErrBadTransition
	}
	f.step = ShareInput
	f.intentURL = ""
	return nil
}

// Submit sends the captured content and platform together with link.
func (f *Share) Submit(ctx context.Context, link string) (int, error) {
	f.mu.Lock()
	if f.pending {
		f.mu.Unlock()
		return 0, ErrInFlight
	}
	if f.step != ShareVerify {
		f.mu.Unlock()
		return 0, ErrBadTransition
	}
	if strings.TrimSpace(link) == "" {
		f.notice = errorNotice(EmptyLinkMessage)
		f.mu.Unlock()
		return 0, invalid(EmptyLinkMessage)
	}
	share := types.StackShare{Content: f.content, Link: link, Platform: f.platform}
	f.pending = true
	f.mu.Unlock()

	result, err := f.backend.SubmitStackShare(ctx, f.actor.ID, share)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = false
	if f.discarded {
		return 0, nil
	}
	if err != nil {
		f.notice = failureNotice(err, controller.ShareFailedMessage)
		f.logger.Warn("SubmitStackShare failed: ", zap.Error(err))
		return 0, errors.Wrap(err, "SubmitStackShare failed: ")
	}
	points := result.PointsAwardedOr(DefaultShareAward)
	f.step = ShareInput
	f.content = ""
	f.platform = ""
	f.intentURL = ""
	f.notice = &Notice{Kind: NoticeSuccess, Message: fmt.Sprintf("Success! You earned %d points!", points)}
	return points, nil
}

func (f *Share) Snapshot() ShareSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ShareSnapshot{
		Step:      f.step,
		Content:   f.content,
		Platform:  f.platform,
		IntentURL: f.intentURL,
		Pending:   f.pending,
		Notice:    f.notice,
	}
}

func (f *Share) discard() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = true
}
