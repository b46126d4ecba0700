package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/aeonbank/stepauth/pkg/domain"
)

// CredentialVerifier checks a transmitted password digest against the
// user directory. The server never hashes a plaintext password; the
// client transmits an already-hashed digest and the server's job is
// equality comparison only. That makes the digest itself a
// bearer-equivalent secret, which is a known property of this protocol.
type CredentialVerifier struct {
	directory UserDirectory
}

// NewCredentialVerifier creates a new credential verifier.
func NewCredentialVerifier(directory UserDirectory) *CredentialVerifier {
	return &CredentialVerifier{directory: directory}
}

// Verify looks up the username and compares the presented digest in
// constant time. An unknown username fails closed with ok=false rather
// than an error.
func (v *CredentialVerifier) Verify(ctx context.Context, username, passwordDigest string) (*domain.UserAccount, bool, error) {
	account, err := v.directory.Lookup(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("directory lookup: %w", err)
	}

	ok := subtle.ConstantTimeCompare([]byte(passwordDigest), []byte(account.PasswordDigest)) == 1
	return account, ok, nil
}
