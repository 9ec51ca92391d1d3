package auth

import (
	"context"
	"errors"
	"testing"
)

// stubAccounts is an in-memory AccountStore keyed by normalized email.
type stubAccounts struct {
	byEmail map[string]*Account
}

func newStubAccounts() *stubAccounts {
	return &stubAccounts{byEmail: map[string]*Account{}}
}

func (s *stubAccounts) Create(_ context.Context, account *Account) error {
	if _, ok := s.byEmail[account.Email]; ok {
		return ErrConflict
	}
	s.byEmail[account.Email] = account
	return nil
}

func (s *stubAccounts) FindByID(_ context.Context, id string) (*Account, error) {
	for _, a := range s.byEmail {
		if a.ID == id && !a.IsDeleted {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

func (s *stubAccounts) FindByEmail(_ context.Context, email string) (*Account, error) {
	a, ok := s.byEmail[email]
	if !ok || a.IsDeleted {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *stubAccounts) SetActive(_ context.Context, accountID string) error {
	for _, a := range s.byEmail {
		if a.ID == accountID {
			a.IsActive = true
			return nil
		}
	}
	return ErrNotFound
}

func (s *stubAccounts) SetPasswordHash(_ context.Context, accountID, hash string) error {
	for _, a := range s.byEmail {
		if a.ID == accountID {
			a.PasswordHash = hash
			return nil
		}
	}
	return ErrNotFound
}

func seedAccount(t *testing.T, s *stubAccounts, email, password string, active bool) *Account {
	t.Helper()
	hash, err := testHasher().Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	a := &Account{
		ID:           "acct-" + email,
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		IsActive:     active,
	}
	s.byEmail[email] = a
	return a
}

func TestVerifySuccess(t *testing.T) {
	store := newStubAccounts()
	seedAccount(t, store, "maya@example.com", "opensesame99", true)

	creds, err := NewCredentials(store, testHasher())
	if err != nil {
		t.Fatalf("NewCredentials: %v", err)
	}

	account, err := creds.Verify(context.Background(), "  Maya@Example.COM ", "opensesame99")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if account.Email != "maya@example.com" {
		t.Fatalf("unexpected account: %s", account.Email)
	}
}

func TestVerifyUnknownAndWrongPasswordLookAlike(t *testing.T) {
	store := newStubAccounts()
	seedAccount(t, store, "maya@example.com", "opensesame99", true)

	creds, err := NewCredentials(store, testHasher())
	if err != nil {
		t.Fatalf("NewCredentials: %v", err)
	}

	if _, err := creds.Verify(context.Background(), "nobody@example.com", "opensesame99"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := creds.Verify(context.Background(), "maya@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := creds.Verify(context.Background(), "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty input: got %v, want ErrInvalidCredentials", err)
	}
}

func TestVerifyInactiveAccount(t *testing.T) {
	store := newStubAccounts()
	seedAccount(t, store, "new@example.com", "opensesame99", false)

	creds, err := NewCredentials(store, testHasher())
	if err != nil {
		t.Fatalf("NewCredentials: %v", err)
	}

	// Correct password on an inactive account is the only way to see this
	// error; a wrong password must still read as invalid credentials.
	if _, err := creds.Verify(context.Background(), "new@example.com", "opensesame99"); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("got %v, want ErrAccountInactive", err)
	}
	if _, err := creds.Verify(context.Background(), "new@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterCreatesInactiveAccount(t *testing.T) {
	store := newStubAccounts()
	creds, err := NewCredentials(store, testHasher())
	if err != nil {
		t.Fatalf("NewCredentials: %v", err)
	}

	account, err := creds.Register(context.Background(), " Maya ", "Ivanova", "Maya@Example.com", "opensesame99")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if account.IsActive {
		t.Fatal("new account must start inactive")
	}
	if account.Email != "maya@example.com" {
		t.Fatalf("email not normalized: %s", account.Email)
	}
	if account.FirstName != "Maya" {
		t.Fatalf("first name not trimmed: %q", account.FirstName)
	}
	if account.ID == "" {
		t.Fatal("missing account id")
	}
	if account.PasswordHash == "opensesame99" {
		t.Fatal("password stored in plaintext")
	}
}

func TestRegisterValidation(t *testing.T) {
	store := newStubAccounts()
	creds, err := NewCredentials(store, testHasher())
	if err != nil {
		t.Fatalf("NewCredentials: %v", err)
	}

	_, err = creds.Register(context.Background(), "", "", "not-an-email", "short")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	for _, field := range []string{"first_name", "last_name", "email", "password"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("missing validation message for %s: %v", field, verr.Fields)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newStubAccounts()
	seedAccount(t, store, "maya@example.com", "opensesame99", true)

	creds, err := NewCredentials(store, testHasher())
	if err != nil {
		t.Fatalf("NewCredentials: %v", err)
	}

	_, err = creds.Register(context.Background(), "Maya", "Ivanova", "maya@example.com", "opensesame99")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	if _, ok := verr.Fields["email"]; !ok {
		t.Fatalf("expected email message, got %v", verr.Fields)
	}
}

func TestSetPasswordPolicy(t *testing.T) {
	store := newStubAccounts()
	a := seedAccount(t, store, "maya@example.com", "opensesame99", true)

	creds, err := NewCredentials(store, testHasher())
	if err != nil {
		t.Fatalf("NewCredentials: %v", err)
	}

	var verr *ValidationError
	if err := creds.SetPassword(context.Background(), a.ID, "short"); !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	if err := creds.SetPassword(context.Background(), a.ID, "newsecret123"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if _, err := creds.Verify(context.Background(), "maya@example.com", "newsecret123"); err != nil {
		t.Fatalf("Verify after reset: %v", err)
	}
	if _, err := creds.Verify(context.Background(), "maya@example.com", "opensesame99"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still valid: %v", err)
	}
}
