package repository

import (
	"context"

	"github.com/aeonbank/stepauth/pkg/domain"
)

// MemoryUserDirectory is a read-only, in-memory user directory keyed by
// username.
type MemoryUserDirectory struct {
	accounts map[string]domain.UserAccount
}

// NewMemoryUserDirectory creates a directory holding the given accounts.
func NewMemoryUserDirectory(accounts []domain.UserAccount) *MemoryUserDirectory {
	m := make(map[string]domain.UserAccount, len(accounts))
	for _, a := range accounts {
		m[a.Username] = a
	}
	return &MemoryUserDirectory{accounts: m}
}

// Lookup returns the account for the username, or domain.ErrUserNotFound.
func (d *MemoryUserDirectory) Lookup(ctx context.Context, username string) (*domain.UserAccount, error) {
	account, ok := d.accounts[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &account, nil
}

// DemoAccounts returns the built-in demo directory used when no database
// is configured. Digests are client-side SHA-256 of the demo passwords.
func DemoAccounts() []domain.UserAccount {
	return []domain.UserAccount{
		{
			Username:       "aoen",
			Name:           "Aoen Bank",
			PasswordDigest: "c6ba91b90d922e159893f46c387e5dc1b3dc5c101a5a4522f03b987177a24a91", // "password456"
		},
		{
			Username:       "demo",
			Name:           "Demo User",
			PasswordDigest: "d3ad9315b7be5dd53b31a273b3b3aba5defe700808305aa16a3062b76658a791", // "demo123"
		},
	}
}
