package auth

import "time"

// Account is the identity record. Soft-deleted rows stay in storage but are
// excluded from every lookup.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	CompanyID    string    `json:"company_id"`
	IsActive     bool      `json:"is_active"`
	IsDeleted    bool      `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role groups permissions. An account holds zero or more roles.
type Role struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDeleted bool   `json:"-"`
}

// Profile is the snapshot of an account copied into the session at login.
// It is served from the session afterwards, never re-read per request.
type Profile struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	CompanyID string `json:"company_id"`
	IsActive  bool   `json:"is_active"`
}

// ProfileOf builds the session snapshot for an account.
func ProfileOf(a *Account) Profile {
	return Profile{
		AccountID: a.ID,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		CompanyID: a.CompanyID,
		IsActive:  a.IsActive,
	}
}

// TokenPurpose scopes one-time tokens to their flow.
type TokenPurpose string

const (
	PurposeActivation TokenPurpose = "activation"
	PurposeReset      TokenPurpose = "reset"
)
