package controller

import (
	"context"
	"strings"
	"time"

	"github.com/SakuraBurst/rewards/internal/rewards/database"
	"github.com/SakuraBurst/rewards/internal/rewards/session"
	"github.com/SakuraBurst/rewards/internal/rewards/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

const (
	referralCodeLength = 8
	// fresh codes tried when the generated one is already held by someone
	referralCodeAttempts = 3
)

func (c *Controller) SignUp(ctx context.Context, user *types.UserRequest) (uuid.UUID, error) {
	hashedPass, err := cryptPassword([]byte(user.Password))
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "cryptPassword failed: ")
	}
	email, ref := strings.TrimSpace(user.Email), strings.TrimSpace(user.Referrer)
	var result *types.SignUpResult
	for attempt := 1; ; attempt++ {
		result, err = c.userDatabase.CreateUser(ctx, email, string(hashedPass), newReferralCode(), ref)
		if errors.Is(err, database.ErrReferralCodeTaken) && attempt < referralCodeAttempts {
			c.logger.Info("referral code collision, retrying", zap.Int("attempt", attempt))
			continue
		}
		break
	}
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "userDatabase.CreateUser failed: ")
	}
	if !result.Success || result.UserID == nil {
		return uuid.Nil, remoteError(result.Error, SignUpFailedMessage)
	}
	return *result.UserID, nil
}

// Authorize checks the password and returns a signed session token.
func (c *Controller) Authorize(ctx context.Context, user *types.UserRequest) (string, *types.Actor, error) {
	creds, err := c.userDatabase.GetCredentials(ctx, strings.TrimSpace(user.Email))
	if errors.Is(err, database.ErrUserNotExist) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, errors.Wrap(err, "userDatabase.GetCredentials failed: ")
	}
	err = bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(user.Password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, errors.Wrap(err, "bcrypt.CompareHashAndPassword failed: ")
	}
	actor := &types.Actor{ID: creds.ID, Email: creds.Email}
	token, err := session.Issue(*actor, c.jwtSecret, c.sessionTTL, c.clock.Now())
	if err != nil {
		return "", nil, errors.Wrap(err, "session.Issue failed: ")
	}
	return token, actor, nil
}

func (c *Controller) SessionTTL() time.Duration {
	return c.sessionTTL
}

func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:referralCodeLength])
}

func cryptPassword(pass []byte) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword(pass, bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "bcrypt.GenerateFromPassword failed: ")
	}
	return hash, nil
}
