package domain

// UserAccount is a read-only entry in the user directory. The directory
// stores the password digest the client transmits; the server never
// hashes a plaintext password itself.
type UserAccount struct {
	Username       string
	Name           string
	PasswordDigest string // hex-encoded SHA-256 digest, computed client side
}
