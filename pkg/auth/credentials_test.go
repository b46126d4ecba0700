package auth

import (
	"context"
	"testing"

	"github.com/aeonbank/stepauth/pkg/repository"
)

// Digest of "demo123", as the seeded demo account stores it.
const demoDigest = "d3ad9315b7be5dd53b31a273b3b3aba5defe700808305aa16a3062b76658a791"

func TestCredentialVerifier_Verify(t *testing.T) {
	ctx := context.Background()
	verifier := NewCredentialVerifier(repository.NewMemoryUserDirectory(repository.DemoAccounts()))

	tests := []struct {
		name     string
		username string
		digest   string
		wantOK   bool
	}{
		{
			name:     "correct digest",
			username: "demo",
			digest:   demoDigest,
			wantOK:   true,
		},
		{
			name:     "wrong digest",
			username: "demo",
			digest:   "0000000000000000000000000000000000000000000000000000000000000000",
			wantOK:   false,
		},
		{
			name:     "empty digest",
			username: "demo",
			digest:   "",
			wantOK:   false,
		},
		{
			name:     "unknown username fails closed",
			username: "ghost",
			digest:   demoDigest,
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, ok, err := verifier.Verify(ctx, tt.username, tt.digest)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("Verify() ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK && account == nil {
				t.Error("Verify() account = nil on success")
			}
			if tt.wantOK && account != nil && account.Name == "" {
				t.Error("Verify() account has no display name")
			}
		})
	}
}
