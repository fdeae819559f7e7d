package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
	"github.com/YOGESHBOTCHA965/W/internal/core/port"
	"github.com/YOGESHBOTCHA965/W/internal/repository"
)

const (
	usersTable        = "users"
	uniqueViolation   = "23505"
	lockExpiredClause = "lock_until IS NOT NULL AND lock_until <= ?"
	lockActiveClause  = "lock_until IS NOT NULL AND lock_until > ?"
)

var userColumns = []string{
	"id",
	"first_name",
	"last_name",
	"dob",
	"gender",
	"contact_no",
	"email",
	"password_hash",
	"security_question",
	"security_answer_hash",
	"login_attempts",
	"lock_until",
	"refresh_token_hash",
	"reset_otp_hash",
	"reset_otp_expiry",
	"created_at",
	"updated_at",
}

// consumeOTPSQL clears the pending code and hands back the values it held, under a row lock.
const consumeOTPSQL = `UPDATE users AS u
SET reset_otp_hash = NULL, reset_otp_expiry = NULL, updated_at = $1
FROM (
	SELECT id, reset_otp_hash, reset_otp_expiry FROM users
	WHERE id = $2 AND reset_otp_hash IS NOT NULL
	FOR UPDATE
) AS old
WHERE u.id = old.id
RETURNING old.reset_otp_hash, old.reset_otp_expiry`

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	repo := &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	stmt, args, err := r.builder.Insert(usersTable).
		Columns(userColumns...).
		Values(
			user.ID,
			user.FirstName,
			user.LastName,
			user.DOB,
			string(user.Gender),
			user.ContactNo,
			user.Email,
			user.PasswordHash,
			user.SecurityQuestion,
			user.SecurityAnswerHash,
			user.LoginAttempts,
			user.LockUntil,
			user.RefreshTokenHash,
			user.ResetOTPHash,
			user.ResetOTPExpiry,
			user.CreatedAt,
			user.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &user, nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email})
}

func (r *UserRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From(usersTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var (
		user   domain.User
		gender string
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.DOB,
		&gender,
		&user.ContactNo,
		&user.Email,
		&user.PasswordHash,
		&user.SecurityQuestion,
		&user.SecurityAnswerHash,
		&user.LoginAttempts,
		&user.LockUntil,
		&user.RefreshTokenHash,
		&user.ResetOTPHash,
		&user.ResetOTPExpiry,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.Gender = domain.Gender(gender)

	return &user, nil
}

// RecordFailedLogin bumps the counter in one statement. Every CASE reads the
// pre-update row, so the lock expression repeats the counter expression. A lock that
// is still running keeps its original expiry.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, id string, now time.Time, rule domain.LockoutRule) (domain.LockoutState, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.LockoutState{}, repository.ErrNotFound
	}

	nextAttempts := "CASE WHEN " + lockExpiredClause + " THEN 1 ELSE login_attempts + 1 END"

	stmt, args, err := r.builder.Update(usersTable).
		Set("login_attempts", squirrel.Expr(nextAttempts, now)).
		Set("lock_until", squirrel.Expr(
			"CASE WHEN "+lockActiveClause+" THEN lock_until"+
				" WHEN ("+nextAttempts+") >= ? THEN ?"+
				" WHEN "+lockExpiredClause+" THEN NULL ELSE lock_until END",
			now, now, rule.MaxAttempts, now.Add(rule.LockFor), now,
		)).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING login_attempts, lock_until").
		ToSql()
	if err != nil {
		return domain.LockoutState{}, fmt.Errorf("build failed login sql: %w", err)
	}

	var state domain.LockoutState
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&state.LoginAttempts, &state.LockUntil); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LockoutState{}, repository.ErrNotFound
		}
		return domain.LockoutState{}, fmt.Errorf("record failed login: %w", err)
	}

	return state, nil
}

// RecordSuccessfulLogin resets lockout state and stores the hash of the newly issued refresh token.
func (r *UserRepository) RecordSuccessfulLogin(ctx context.Context, id string, refreshHash string, now time.Time) error {
	return r.update(ctx, id, "record successful login", r.builder.Update(usersTable).
		Set("login_attempts", 0).
		Set("lock_until", nil).
		Set("refresh_token_hash", refreshHash).
		Set("updated_at", now))
}

// SwapRefreshTokenHash replaces the stored refresh hash only while it still equals expected.
func (r *UserRepository) SwapRefreshTokenHash(ctx context.Context, id string, expected string, next string, now time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}

	stmt, args, err := r.builder.Update(usersTable).
		Set("refresh_token_hash", next).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": id, "refresh_token_hash": expected}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build swap refresh sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("swap refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *UserRepository) ClearRefreshTokenHash(ctx context.Context, id string, now time.Time) error {
	return r.update(ctx, id, "clear refresh token", r.builder.Update(usersTable).
		Set("refresh_token_hash", nil).
		Set("updated_at", now))
}

func (r *UserRepository) SetResetOTP(ctx context.Context, id string, hash string, expiresAt time.Time, now time.Time) error {
	return r.update(ctx, id, "set reset otp", r.builder.Update(usersTable).
		Set("reset_otp_hash", hash).
		Set("reset_otp_expiry", expiresAt).
		Set("updated_at", now))
}

func (r *UserRepository) ConsumeResetOTP(ctx context.Context, id string, now time.Time) (*domain.PendingOTP, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}

	var (
		hash   string
		expiry *time.Time
	)
	if err := r.exec.QueryRow(ctx, consumeOTPSQL, now, id).Scan(&hash, &expiry); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("consume reset otp: %w", err)
	}

	pending := &domain.PendingOTP{Hash: hash}
	if expiry != nil {
		pending.ExpiresAt = *expiry
	}
	return pending, nil
}

func (r *UserRepository) ResetPassword(ctx context.Context, id string, passwordHash string, now time.Time) error {
	return r.update(ctx, id, "reset password", r.builder.Update(usersTable).
		Set("password_hash", passwordHash).
		Set("refresh_token_hash", nil).
		Set("reset_otp_hash", nil).
		Set("reset_otp_expiry", nil).
		Set("updated_at", now))
}

func (r *UserRepository) update(ctx context.Context, id string, op string, query squirrel.UpdateBuilder) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}

	stmt, args, err := query.Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build %s sql: %w", op, err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
