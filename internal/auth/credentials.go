package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskfold.org/internal/ids"
)

// Credentials looks up accounts and verifies passwords. It is the only
// component that touches password material.
type Credentials struct {
	accounts AccountStore
	hasher   Hasher

	// decoyHash is verified against when the email is unknown, so the
	// response time does not reveal whether the account exists.
	decoyHash string
}

func NewCredentials(accounts AccountStore, hasher Hasher) (*Credentials, error) {
	if accounts == nil {
		return nil, errors.New("account store is required")
	}
	if hasher == nil {
		hasher = NewArgon2Hasher(DefaultArgon2Params())
	}
	decoy := make([]byte, 18)
	if _, err := rand.Read(decoy); err != nil {
		return nil, fmt.Errorf("generate decoy: %w", err)
	}
	decoyHash, err := hasher.Hash(base64.RawStdEncoding.EncodeToString(decoy))
	if err != nil {
		return nil, err
	}
	return &Credentials{accounts: accounts, hasher: hasher, decoyHash: decoyHash}, nil
}

// NormalizeEmail lowercases and trims; email uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// FindByID resolves an account, excluding soft-deleted rows.
func (c *Credentials) FindByID(ctx context.Context, id string) (*Account, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return c.accounts.FindByID(ctx, id)
}

// FindByEmail resolves an account, excluding soft-deleted rows.
func (c *Credentials) FindByEmail(ctx context.Context, email string) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrNotFound
	}
	return c.accounts.FindByEmail(ctx, email)
}

// Verify checks email+password. Unknown email and wrong password return the
// same ErrInvalidCredentials, and the hash comparison runs in both cases.
// Correct credentials on a never-activated account return ErrAccountInactive.
func (c *Credentials) Verify(ctx context.Context, email, password string) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		c.hasher.Verify(c.decoyHash, password)
		return nil, ErrInvalidCredentials
	}
	account, err := c.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.hasher.Verify(c.decoyHash, password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !c.hasher.Verify(account.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}
	return account, nil
}

// Register creates an inactive account. Activation happens through the token
// flow.
func (c *Credentials) Register(ctx context.Context, firstName, lastName, email, password string) (*Account, error) {
	fields := map[string]string{}
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	email = NormalizeEmail(email)
	if firstName == "" {
		fields["first_name"] = "First name is required"
	}
	if lastName == "" {
		fields["last_name"] = "Last name is required"
	}
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = "A valid email is required"
	}
	if len(password) < 8 {
		fields["password"] = "Password must be at least 8 characters"
	}
	if len(fields) > 0 {
		return nil, NewValidationError(fields)
	}

	hash, err := c.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	account := &Account{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		IsActive:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, NewValidationError(map[string]string{
				"email": "An account with this email already exists",
			})
		}
		return nil, err
	}
	return account, nil
}

// SetActive flips the account to active; the store clears the activation
// token in the same statement.
func (c *Credentials) SetActive(ctx context.Context, accountID string) error {
	return c.accounts.SetActive(ctx, accountID)
}

// SetPassword hashes and stores a new password; the store clears any live
// reset token in the same statement.
func (c *Credentials) SetPassword(ctx context.Context, accountID, password string) error {
	if len(password) < 8 {
		return NewValidationError(map[string]string{
			"password": "Password must be at least 8 characters",
		})
	}
	hash, err := c.hasher.Hash(password)
	if err != nil {
		return err
	}
	return c.accounts.SetPasswordHash(ctx, accountID, hash)
}
