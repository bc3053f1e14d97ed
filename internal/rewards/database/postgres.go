package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SakuraBurst/rewards/internal/rewards/config"
	"github.com/SakuraBurst/rewards/internal/rewards/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type DB struct {
	Conn   *pgxpool.Pool
	logger *zap.Logger
}

func NewDB(cfg *config.Config, logger *zap.Logger) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "pgxpool.New failed: ")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pool.Ping failed: ")
	}
	return &DB{Conn: pool, logger: logger.Named("database")}, nil
}

// dateOnly strips time and zone so pgx sends the calendar date the caller means.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (d *DB) GetUserPoints(ctx context.Context, userID uuid.UUID) (*types.UserPoints, error) {
	row := d.Conn.QueryRow(ctx, "select user_id, points_balance from user_points where user_id = $1", userID)
	points := &types.UserPoints{}
	err := row.Scan(&points.UserID, &points.PointsBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotExist
	}
	if err != nil {
		return nil, errors.Wrap(err, "row.Scan failed: ")
	}
	return points, nil
}

func (d *DB) GetUserStreak(ctx context.Context, userID uuid.UUID) (*types.UserStreak, error) {
	row := d.Conn.QueryRow(ctx, "select user_id, current_streak, longest_streak, last_checkin_date from user_streaks where user_id = $1", userID)
	streak := &types.UserStreak{}
	err := row.Scan(&streak.UserID, &streak.CurrentStreak, &streak.LongestStreak, &streak.LastCheckinDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotExist
	}
	if err != nil {
		return nil, errors.Wrap(err, "row.Scan failed: ")
	}
	return streak, nil
}

func (d *DB) HasCheckin(ctx context.Context, userID uuid.UUID, day time.Time) (bool, error) {
	row := d.Conn.QueryRow(ctx, "select exists(select 1 from daily_checkins where user_id = $1 and checkin_date = $2)", userID, dateOnly(day))
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, errors.Wrap(err, "row.Scan failed: ")
	}
	return exists, nil
}

func (d *DB) GetCheckinDates(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]string, error) {
	rows, err := d.Conn.Query(ctx, "select checkin_date from daily_checkins where user_id = $1 and checkin_date >= $2 and checkin_date <= $3", userID, dateOnly(from), dateOnly(to))
	if err != nil {
		return nil, errors.Wrap(err, "conn.Query failed: ")
	}
	dates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var day time.Time
		err := row.Scan(&day)
		return day.Format(time.DateOnly), err
	})
	if err != nil {
		return nil, errors.Wrap(err, "pgx.CollectRows failed: ")
	}
	return dates, nil
}

func (d *DB) GetActiveRewards(ctx context.Context) ([]*types.Reward, error) {
	rows, err := d.Conn.Query(ctx, "select id, name, description, points_required, is_active, is_coming_soon from rewards where is_active = true order by points_required asc")
	if err != nil {
		return nil, errors.Wrap(err, "conn.Query failed: ")
	}
	result, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[types.Reward])
	if err != nil {
		return nil, errors.Wrap(err, "pgx.CollectRows failed: ")
	}
	return result, nil
}

func (d *DB) GetReferrals(ctx context.Context, referrerID uuid.UUID) ([]*types.Referral, error) {
	rows, err := d.Conn.Query(ctx, "select id, referrer_id, referred_id, is_completed, points_awarded, created_at from referrals where referrer_id = $1", referrerID)
	if err != nil {
		return nil, errors.Wrap(err, "conn.Query failed: ")
	}
	result, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[types.Referral])
	if err != nil {
		return nil, errors.Wrap(err, "pgx.CollectRows failed: ")
	}
	return result, nil
}

func (d *DB) GetUserProfile(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error) {
	row := d.Conn.QueryRow(ctx, "select id, referral_code, email from profiles where id = $1", userID)
	profile := &types.UserProfile{}
	err := row.Scan(&profile.ID, &profile.ReferralCode, &profile.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotExist
	}
	if err != nil {
		return nil, errors.Wrap(err, "row.Scan failed: ")
	}
	return profile, nil
}

func (d *DB) GetCredentials(ctx context.Context, email string) (*types.Credentials, error) {
	row := d.Conn.QueryRow(ctx, "select id, email, password_hash from profiles where lower(email) = lower($1)", email)
	creds := &types.Credentials{}
	err := row.Scan(&creds.ID, &creds.Email, &creds.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotExist
	}
	if err != nil {
		return nil, errors.Wrap(err, "row.Scan failed: ")
	}
	return creds, nil
}

// call runs a jsonb-returning procedure and decodes its result into out.
func (d *DB) call(ctx context.Context, out any, sql string, args ...any) error {
	var raw []byte
	if err := d.Conn.QueryRow(ctx, sql, args...).Scan(&raw); err != nil {
		return errors.Wrap(err, "row.Scan failed: ")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "json.Unmarshal failed: ")
	}
	return nil
}

func (d *DB) ClaimDailyPoints(ctx context.Context, userID uuid.UUID) (*types.ClaimResult, error) {
	result := &types.ClaimResult{}
	if err := d.call(ctx, result, "select claim_daily_points($1)", userID); err != nil {
		return nil, errors.Wrap(err, "claim_daily_points failed: ")
	}
	return result, nil
}

func (d *DB) RedeemReward(ctx context.Context, userID, rewardID uuid.UUID, data types.RedemptionData) (*types.RedeemResult, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "json.Marshal failed: ")
	}
	result := &types.RedeemResult{}
	if err := d.call(ctx, result, "select redeem_reward($1, $2, $3::jsonb)", userID, rewardID, string(payload)); err != nil {
		return nil, errors.Wrap(err, "redeem_reward failed: ")
	}
	return result, nil
}

func (d *DB) SubmitStackShare(ctx context.Context, userID uuid.UUID, share types.StackShare) (*types.ShareResult, error) {
	result := &types.ShareResult{}
	if err := d.call(ctx, result, "select submit_stack_share($1, $2, $3, $4)", userID, share.Content, share.Link, string(share.Platform)); err != nil {
		return nil, errors.Wrap(err, "submit_stack_share failed: ")
	}
	return result, nil
}

func (d *DB) CreateUser(ctx context.Context, email, passwordHash, referralCode, referrer string) (*types.SignUpResult, error) {
	result := &types.SignUpResult{}
	var ref *string
	if referrer != "" {
		ref = &referrer
	}
	if err := d.call(ctx, result, "select create_user($1, $2, $3, $4)", email, passwordHash, referralCode, ref); err != nil {
		if isReferralCodeTaken(err) {
			return nil, ErrReferralCodeTaken
		}
		return nil, errors.Wrap(err, "create_user failed: ")
	}
	return result, nil
}

func (d *DB) Close() {
	d.Conn.Close()
}
