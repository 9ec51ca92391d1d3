package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskfold.org/internal/auth"
)

const accountColumns = `id, email, password_hash, first_name, last_name,
	coalesce(company_id, ''), is_active, created_at, updated_at`

func (s *Store) Create(ctx context.Context, account *auth.Account) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	var companyID any
	if account.CompanyID != "" {
		companyID = account.CompanyID
	}
	_, err := s.db.ExecContext(ctx, `
		insert into accounts (id, email, password_hash, first_name, last_name, company_id, is_active, is_deleted, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, false, $8, $9)
	`, account.ID, account.Email, account.PasswordHash, account.FirstName,
		account.LastName, companyID, account.IsActive, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+accountColumns+`
		from accounts
		where id = $1 and is_deleted = false
	`, id)
	return scanAccount(row)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+accountColumns+`
		from accounts
		where lower(email) = lower($1) and is_deleted = false
	`, email)
	return scanAccount(row)
}

// SetActive flips the account active and clears the activation token in the
// same statement, so the "token consumed exactly once at activation"
// invariant holds even against a concurrent re-read.
func (s *Store) SetActive(ctx context.Context, accountID string) error {
	res, err := s.db.ExecContext(ctx, `
		update accounts
		set is_active = true,
			activation_token_hash = null,
			activation_token_expires_at = null,
			updated_at = now()
		where id = $1 and is_deleted = false
	`, accountID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetPasswordHash replaces the hash and clears any live reset token in the
// same statement.
func (s *Store) SetPasswordHash(ctx context.Context, accountID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		update accounts
		set password_hash = $2,
			reset_token_hash = null,
			reset_token_expires_at = null,
			updated_at = now()
		where id = $1 and is_deleted = false
	`, accountID, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) SaveToken(ctx context.Context, accountID string, purpose auth.TokenPurpose, tokenHash string, expiresAt time.Time) error {
	hashCol, expiresCol, err := tokenColumns(purpose)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		update accounts
		set %s = $2, %s = $3, updated_at = now()
		where id = $1 and is_deleted = false
	`, hashCol, expiresCol), accountID, tokenHash, expiresAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) FindByToken(ctx context.Context, purpose auth.TokenPurpose, tokenHash string, now time.Time) (*auth.Account, error) {
	hashCol, expiresCol, err := tokenColumns(purpose)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		select `+accountColumns+`
		from accounts
		where %s = $1 and %s > $2 and is_deleted = false
	`, hashCol, expiresCol), tokenHash, now)
	return scanAccount(row)
}

// ConsumeToken is the one place true mutual exclusion is required: expiry
// check and clear run in a single UPDATE, so of two concurrent requests
// presenting the same token exactly one gets the account id back.
func (s *Store) ConsumeToken(ctx context.Context, purpose auth.TokenPurpose, tokenHash string, now time.Time) (string, error) {
	hashCol, expiresCol, err := tokenColumns(purpose)
	if err != nil {
		return "", err
	}
	var accountID string
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`
		update accounts
		set %s = null, %s = null, updated_at = now()
		where %s = $1 and %s > $2 and is_deleted = false
		returning id
	`, hashCol, expiresCol, hashCol, expiresCol), tokenHash, now).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", auth.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return accountID, nil
}

func tokenColumns(purpose auth.TokenPurpose) (hashCol, expiresCol string, err error) {
	switch purpose {
	case auth.PurposeActivation:
		return "activation_token_hash", "activation_token_expires_at", nil
	case auth.PurposeReset:
		return "reset_token_hash", "reset_token_expires_at", nil
	default:
		return "", "", fmt.Errorf("%w: unknown token purpose %q", auth.ErrInvalidInput, purpose)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*auth.Account, error) {
	var account auth.Account
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.FirstName,
		&account.LastName,
		&account.CompanyID,
		&account.IsActive,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}
