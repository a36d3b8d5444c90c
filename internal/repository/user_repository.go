package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepository moves money between a user's balance pools. Every method is
// a single UPDATE on one row, so concurrent calls for the same user serialize
// in Postgres. Guarded methods fail without writing when their precondition
// does not hold; floors keep every pool non-negative.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)

	ReserveBudget(ctx context.Context, userID int64, amount decimal.Decimal) error
	SpendReserved(ctx context.Context, userID int64, amount decimal.Decimal) error
	ReleaseReserved(ctx context.Context, userID int64, amount decimal.Decimal) error

	AcquireWithdrawalLock(ctx context.Context, userID int64, now time.Time, cooldown time.Duration) error
	ReleaseWithdrawalLock(ctx context.Context, userID int64, lockedAt time.Time) error
	ReserveWithdrawal(ctx context.Context, userID int64, t models.WithdrawalType, amount decimal.Decimal) error
	SettleWithdrawal(ctx context.Context, userID int64, t models.WithdrawalType, amount decimal.Decimal) error
	ReleaseWithdrawal(ctx context.Context, userID int64, t models.WithdrawalType, amount decimal.Decimal) error

	CreditEarnings(ctx context.Context, userID int64, amount decimal.Decimal) error
	CreditReferral(ctx context.Context, userID int64, amount decimal.Decimal) error
}

type userRepository struct {
	db *PostgresDB
}

func NewUserRepository(db *PostgresDB) UserRepository {
	return &userRepository{db: db}
}

// poolColumns maps a withdrawal type onto its (settled, reserved) columns.
// Only these constants are ever interpolated into SQL.
func poolColumns(t models.WithdrawalType) (string, string, error) {
	switch t {
	case models.WithdrawalEarned:
		return "earned_balance", "reserved_earned_balance", nil
	case models.WithdrawalReferral:
		return "referral_earned", "reserved_referral_earned", nil
	}
	return "", "", fmt.Errorf("unknown withdrawal type %q", t)
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (referrer_id, available_balance, earned_balance, referral_earned)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		user.ReferrerID,
		user.AvailableBalance,
		user.EarnedBalance,
		user.ReferralEarned,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, referrer_id, available_balance, reserved_balance, earned_balance,
			reserved_earned_balance, referral_earned, reserved_referral_earned,
			withdrawal_locked_at, created_at
		FROM users
		WHERE id = $1
	`

	u := &models.User{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.ReferrerID,
		&u.AvailableBalance,
		&u.ReservedBalance,
		&u.EarnedBalance,
		&u.ReservedEarnedBalance,
		&u.ReferralEarned,
		&u.ReservedReferralEarned,
		&u.WithdrawalLockedAt,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

func (r *userRepository) ReserveBudget(ctx context.Context, userID int64, amount decimal.Decimal) error {
	query := `
		UPDATE users
		SET reserved_balance = reserved_balance + $2
		WHERE id = $1 AND available_balance - reserved_balance >= $2
	`
	return r.guarded(ctx, "reserve budget", ErrInsufficientFunds, query, userID, amount)
}

// SpendReserved debits reserved_balance first and available_balance second,
// within the same statement.
func (r *userRepository) SpendReserved(ctx context.Context, userID int64, amount decimal.Decimal) error {
	query := `
		UPDATE users
		SET reserved_balance = reserved_balance - $2,
			available_balance = GREATEST(0, available_balance - $2)
		WHERE id = $1 AND reserved_balance >= $2
	`
	return r.guarded(ctx, "spend reserve", ErrInsufficientReserve, query, userID, amount)
}

func (r *userRepository) ReleaseReserved(ctx context.Context, userID int64, amount decimal.Decimal) error {
	query := `
		UPDATE users
		SET reserved_balance = GREATEST(0, reserved_balance - $2)
		WHERE id = $1
	`
	return r.exec(ctx, "release reserve", query, userID, amount)
}

// AcquireWithdrawalLock is a compare-and-swap on withdrawal_locked_at: it
// succeeds only when the lock is unset or older than cooldown.
func (r *userRepository) AcquireWithdrawalLock(ctx context.Context, userID int64, now time.Time, cooldown time.Duration) error {
	query := `
		UPDATE users
		SET withdrawal_locked_at = $2
		WHERE id = $1 AND (withdrawal_locked_at IS NULL OR withdrawal_locked_at <= $3)
	`
	return r.guarded(ctx, "acquire withdrawal lock", ErrCooldownActive, query, userID, now, now.Add(-cooldown))
}

// ReleaseWithdrawalLock clears the lock only if it still holds lockedAt, so a
// lock taken by a later request is left alone.
func (r *userRepository) ReleaseWithdrawalLock(ctx context.Context, userID int64, lockedAt time.Time) error {
	query := `
		UPDATE users
		SET withdrawal_locked_at = NULL
		WHERE id = $1 AND withdrawal_locked_at = $2
	`
	if _, err := r.db.Pool.Exec(ctx, query, userID, lockedAt); err != nil {
		return fmt.Errorf("failed to release withdrawal lock: %w", err)
	}
	return nil
}

func (r *userRepository) ReserveWithdrawal(ctx context.Context, userID int64, t models.WithdrawalType, amount decimal.Decimal) error {
	settled, reserved, err := poolColumns(t)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE users
		SET %[2]s = %[2]s + $2
		WHERE id = $1 AND %[1]s - %[2]s >= $2
	`, settled, reserved)
	return r.guarded(ctx, "reserve withdrawal", ErrInsufficientFunds, query, userID, amount)
}

// SettleWithdrawal permanently debits the settled pool, clears the
// reservation and debits available_balance.
func (r *userRepository) SettleWithdrawal(ctx context.Context, userID int64, t models.WithdrawalType, amount decimal.Decimal) error {
	settled, reserved, err := poolColumns(t)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE users
		SET %[2]s = GREATEST(0, %[2]s - $2),
			%[1]s = GREATEST(0, %[1]s - $2),
			available_balance = GREATEST(0, available_balance - $2)
		WHERE id = $1
	`, settled, reserved)
	return r.exec(ctx, "settle withdrawal", query, userID, amount)
}

func (r *userRepository) ReleaseWithdrawal(ctx context.Context, userID int64, t models.WithdrawalType, amount decimal.Decimal) error {
	_, reserved, err := poolColumns(t)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE users
		SET %[1]s = GREATEST(0, %[1]s - $2)
		WHERE id = $1
	`, reserved)
	return r.exec(ctx, "release withdrawal", query, userID, amount)
}

func (r *userRepository) CreditEarnings(ctx context.Context, userID int64, amount decimal.Decimal) error {
	query := `
		UPDATE users
		SET earned_balance = earned_balance + $2,
			available_balance = available_balance + $2
		WHERE id = $1
	`
	return r.exec(ctx, "credit earnings", query, userID, amount)
}

func (r *userRepository) CreditReferral(ctx context.Context, userID int64, amount decimal.Decimal) error {
	query := `
		UPDATE users
		SET referral_earned = referral_earned + $2,
			available_balance = available_balance + $2
		WHERE id = $1
	`
	return r.exec(ctx, "credit referral", query, userID, amount)
}

// exec runs an unconditional update; zero rows means the user is missing.
func (r *userRepository) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// guarded runs a conditional update. Zero rows means either the user is
// missing or the guard failed; the latter is reported as failed.
func (r *userRepository) guarded(ctx context.Context, op string, failed error, query string, userID int64, args ...any) error {
	result, err := r.db.Pool.Exec(ctx, query, append([]any{userID}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, userID); err != nil {
		return err
	}
	return failed
}
