package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
)

const accountColumns = `id, username, email, password_hash, role, email_verified,
	verification_code, verification_code_expires_at, verification_code_attempts,
	password_reset_token, password_reset_expires_at,
	first_name, last_name, profile_photo, is_profile_public,
	created_at, updated_at`

// AccountStore implements auth.AccountStore over database/sql.
type AccountStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewAccountStore creates an account store for the given dialect
func NewAccountStore(db *sql.DB, dialect Dialect) *AccountStore {
	return &AccountStore{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*auth.Account, error) {
	var (
		a                 auth.Account
		role              string
		code, resetToken  sql.NullString
		codeExp, resetExp sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &role, &a.EmailVerified,
		&code, &codeExp, &a.VerificationCodeAttempts,
		&resetToken, &resetExp,
		&a.FirstName, &a.LastName, &a.ProfilePhoto, &a.IsProfilePublic,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if a.Role, err = auth.ParseRole(role); err != nil {
		return nil, fmt.Errorf("account %d: %w", a.ID, err)
	}
	a.VerificationCode = code.String
	a.PasswordResetToken = resetToken.String
	if codeExp.Valid {
		t := codeExp.Time
		a.VerificationCodeExpiresAt = &t
	}
	if resetExp.Valid {
		t := resetExp.Time
		a.PasswordResetExpiresAt = &t
	}
	return &a, nil
}

func (s *AccountStore) queryOne(ctx context.Context, where string, arg interface{}) (*auth.Account, error) {
	query := s.dialect.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE ` + where)
	a, err := scanAccount(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) FindByID(ctx context.Context, id int64) (*auth.Account, error) {
	return s.queryOne(ctx, `id = ?`, id)
}

func (s *AccountStore) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	return s.queryOne(ctx, `LOWER(username) = LOWER(?)`, username)
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return s.queryOne(ctx, `LOWER(email) = LOWER(?)`, email)
}

func (s *AccountStore) FindByResetToken(ctx context.Context, token string) (*auth.Account, error) {
	if token == "" {
		return nil, auth.ErrAccountNotFound
	}
	return s.queryOne(ctx, `password_reset_token = ?`, token)
}

func (s *AccountStore) List(ctx context.Context) ([]*auth.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []*auth.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AccountStore) Create(ctx context.Context, in auth.NewAccount) (*auth.Account, error) {
	role := in.Role
	if !role.Valid() {
		role = auth.DefaultRole
	}
	now := s.now()
	expires := in.VerificationCodeExpiresAt.UTC()

	query := s.dialect.Rebind(`
		INSERT INTO accounts (
			username, email, password_hash, role, email_verified,
			verification_code, verification_code_expires_at, verification_code_attempts,
			first_name, last_name, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)
		RETURNING id
	`)

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		in.Username, in.Email, in.PasswordHash, role.String(), false,
		in.VerificationCode, expires,
		in.FirstName, in.LastName, now, now,
	).Scan(&id)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	return &auth.Account{
		ID:                        id,
		Username:                  in.Username,
		Email:                     in.Email,
		PasswordHash:              in.PasswordHash,
		Role:                      role,
		VerificationCode:          in.VerificationCode,
		VerificationCodeExpiresAt: &expires,
		FirstName:                 in.FirstName,
		LastName:                  in.LastName,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}, nil
}

// duplicateError maps a unique-constraint violation onto the auth sentinels.
func duplicateError(err error) error {
	var detail string

	var pqErr *pq.Error
	var liteErr sqlite3.Error
	switch {
	case errors.As(err, &pqErr) && pqErr.Code == "23505":
		detail = pqErr.Constraint + " " + pqErr.Message
	case errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
		detail = liteErr.Error()
	default:
		return nil
	}

	switch {
	case strings.Contains(detail, "username"):
		return auth.ErrDuplicateUsername
	case strings.Contains(detail, "email"):
		return auth.ErrDuplicateEmail
	default:
		return nil
	}
}

// exec runs a single-row update and reports a missing row as ErrAccountNotFound.
func (s *AccountStore) exec(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return auth.ErrAccountNotFound
	}
	return nil
}

func (s *AccountStore) SetVerificationCode(ctx context.Context, id int64, code string, expiresAt time.Time) error {
	return s.exec(ctx, `
		UPDATE accounts
		SET verification_code = ?, verification_code_expires_at = ?, verification_code_attempts = 0, updated_at = ?
		WHERE id = ?`,
		code, expiresAt.UTC(), s.now(), id)
}

func (s *AccountStore) IncrementVerificationAttempts(ctx context.Context, id int64) (int, error) {
	query := s.dialect.Rebind(`
		UPDATE accounts
		SET verification_code_attempts = verification_code_attempts + 1, updated_at = ?
		WHERE id = ?
		RETURNING verification_code_attempts`)

	var attempts int
	err := s.db.QueryRowContext(ctx, query, s.now(), id).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, auth.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment verification attempts: %w", err)
	}
	return attempts, nil
}

func (s *AccountStore) MarkEmailVerified(ctx context.Context, id int64) error {
	return s.exec(ctx, `
		UPDATE accounts
		SET email_verified = ?, verification_code = NULL, verification_code_expires_at = NULL,
			verification_code_attempts = 0, updated_at = ?
		WHERE id = ?`,
		true, s.now(), id)
}

func (s *AccountStore) SetPasswordResetToken(ctx context.Context, id int64, token string, expiresAt time.Time) error {
	return s.exec(ctx, `
		UPDATE accounts
		SET password_reset_token = ?, password_reset_expires_at = ?, updated_at = ?
		WHERE id = ?`,
		token, expiresAt.UTC(), s.now(), id)
}

func (s *AccountStore) ClearPasswordResetToken(ctx context.Context, id int64, token string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		UPDATE accounts
		SET password_reset_token = NULL, password_reset_expires_at = NULL, updated_at = ?
		WHERE id = ? AND password_reset_token = ?`),
		s.now(), id, token)
	if err != nil {
		return fmt.Errorf("failed to clear reset token: %w", err)
	}
	return nil
}

func (s *AccountStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return s.exec(ctx, `UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, s.now(), id)
}

func (s *AccountStore) UpdateProfile(ctx context.Context, id int64, fields auth.ProfileFields) (*auth.Account, error) {
	var (
		sets []string
		args []interface{}
	)
	if fields.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *fields.Email)
	}
	if fields.FirstName != nil {
		sets = append(sets, "first_name = ?")
		args = append(args, *fields.FirstName)
	}
	if fields.LastName != nil {
		sets = append(sets, "last_name = ?")
		args = append(args, *fields.LastName)
	}
	if len(sets) == 0 {
		return s.FindByID(ctx, id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, s.now(), id)
	if err := s.exec(ctx, `UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

func (s *AccountStore) UpdateRole(ctx context.Context, id int64, role auth.Role) (*auth.Account, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %d", role)
	}
	if err := s.exec(ctx, `UPDATE accounts SET role = ?, updated_at = ? WHERE id = ?`,
		role.String(), s.now(), id); err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

func (s *AccountStore) UpdateVisibility(ctx context.Context, id int64, public bool) error {
	return s.exec(ctx, `UPDATE accounts SET is_profile_public = ?, updated_at = ? WHERE id = ?`,
		public, s.now(), id)
}
