package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const userSchema = `
CREATE TABLE IF NOT EXISTS users (
    id                UUID PRIMARY KEY,
    wallet_address    TEXT NOT NULL UNIQUE,
    email             TEXT UNIQUE,
    name              TEXT NOT NULL,
    user_type         TEXT NOT NULL,
    is_verified       BOOLEAN NOT NULL DEFAULT FALSE,
    is_admin          BOOLEAN NOT NULL DEFAULT FALSE,
    profile           JSONB NOT NULL DEFAULT '{}'::jsonb,
    preferences       JSONB NOT NULL DEFAULT '{}'::jsonb,
    credentials_owned JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS users_type_verified_idx ON users (user_type, is_verified);`

const userColumns = `id, wallet_address, COALESCE(email, ''), name, user_type, is_verified, is_admin,
        profile, preferences, credentials_owned, created_at, updated_at`

// PostgresRepository implements Repository using PostgreSQL. Nested records
// are stored as JSONB columns.
type PostgresRepository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// EnsureSchema creates the users table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, userSchema); err != nil {
		return fmt.Errorf("create users schema: %w", err)
	}
	return nil
}

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) (User, error) {
	now := r.now().UTC()
	user.ID = uuid.NewString()
	user.WalletAddress = NormalizeWallet(user.WalletAddress)
	user.Email = NormalizeEmail(user.Email)
	user.CreatedAt, user.UpdatedAt = now, now
	if user.CredentialsOwned == nil {
		user.CredentialsOwned = []CredentialOwnership{}
	}

	_, err := r.db.Exec(ctx, `INSERT INTO users (id, wallet_address, email, name, user_type, is_verified, is_admin,
        profile, preferences, credentials_owned, created_at, updated_at)
        VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		user.ID, user.WalletAddress, user.Email, user.Name, string(user.UserType), user.IsVerified, user.IsAdmin,
		user.Profile, user.Preferences, user.CredentialsOwned, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return User{}, mapPgError(err)
	}
	return user, nil
}

// FindByID fetches a user by UUID.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindByWalletAddress fetches a user by lowercase wallet address.
func (r *PostgresRepository) FindByWalletAddress(ctx context.Context, wallet string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE wallet_address = $1`, NormalizeWallet(wallet)))
}

// FindByEmail fetches a user by lowercase email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return User{}, ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// Update applies the patch under a row lock.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch Patch) (User, error) {
	return r.mutate(ctx, id, func(u *User) { patch.Apply(u) })
}

// Delete hard-deletes a user.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddCredential appends an ownership record.
func (r *PostgresRepository) AddCredential(ctx context.Context, id string, cred CredentialOwnership) (User, error) {
	return r.mutate(ctx, id, func(u *User) {
		u.CredentialsOwned = append(u.CredentialsOwned, cred)
	})
}

// RemoveCredential removes every ownership record with the given token id.
func (r *PostgresRepository) RemoveCredential(ctx context.Context, id, tokenID string) (User, error) {
	return r.mutate(ctx, id, func(u *User) {
		u.CredentialsOwned = withoutToken(u.CredentialsOwned, tokenID)
	})
}

// FindVerifiedInstitutions lists verified institution accounts.
func (r *PostgresRepository) FindVerifiedInstitutions(ctx context.Context) ([]User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users
        WHERE user_type = $1 AND is_verified ORDER BY created_at`, string(UserTypeInstitution))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

// mutate performs a locked read-modify-write of a single user row.
func (r *PostgresRepository) mutate(ctx context.Context, id string, fn func(*User)) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return User{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	user, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return User{}, err
	}
	fn(&user)
	user.UpdatedAt = r.now().UTC()
	if user.CredentialsOwned == nil {
		user.CredentialsOwned = []CredentialOwnership{}
	}

	_, err = tx.Exec(ctx, `UPDATE users SET email = NULLIF($2, ''), name = $3, is_verified = $4,
        profile = $5, preferences = $6, credentials_owned = $7, updated_at = $8 WHERE id = $1`,
		id, user.Email, user.Name, user.IsVerified, user.Profile, user.Preferences, user.CredentialsOwned, user.UpdatedAt)
	if err != nil {
		return User{}, mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user     User
		id       uuid.UUID
		userType string
	)
	err := row.Scan(&id, &user.WalletAddress, &user.Email, &user.Name, &userType, &user.IsVerified, &user.IsAdmin,
		&user.Profile, &user.Preferences, &user.CredentialsOwned, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.ID = id.String()
	user.UserType = UserType(userType)
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
