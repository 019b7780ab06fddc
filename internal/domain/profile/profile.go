package profile

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInsufficientBalance = errors.New("insufficient coin balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrEmptyUsername       = errors.New("username cannot be empty")
)

// Profile represents a marketplace user and their coin wallet.
// Balance is mutated only through the ledger engine; it can never go negative.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Balance   int64     `json:"balance"` // Whole coin units
	Version   int       `json:"version"` // For optimistic locking
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProfile creates a new profile with the given starting balance
func NewProfile(username string, initialBalance int64) (*Profile, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if initialBalance < 0 {
		return nil, ErrInvalidAmount
	}

	return &Profile{
		ID:        uuid.New(),
		Username:  username,
		Balance:   initialBalance,
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}, nil
}

// Credit adds the specified amount to the coin balance
func (p *Profile) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	p.Balance += amount
	p.UpdatedAt = time.Now()
	p.Version++
	return nil
}

// Debit subtracts the specified amount from the coin balance
func (p *Profile) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if p.Balance < amount {
		return ErrInsufficientBalance
	}

	p.Balance -= amount
	p.UpdatedAt = time.Now()
	p.Version++
	return nil
}

// CanAfford checks if the profile holds at least the given amount
func (p *Profile) CanAfford(amount int64) bool {
	return p.Balance >= amount
}
