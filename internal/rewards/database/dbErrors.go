package database

import (
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation      = "23505"
	referralCodeUniqueIx = "profiles_referral_code_key"
)

// ErrUserNotExist is returned by the single-row reads when the user has no row.
var ErrUserNotExist = errors.New("user not exist")

// ErrReferralCodeTaken is returned by CreateUser when another profile already
// holds the generated referral code.
var ErrReferralCodeTaken = errors.New("referral code taken")

func isReferralCodeTaken(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == referralCodeUniqueIx
}
