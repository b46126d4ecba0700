package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/aeonbank/stepauth/pkg/domain"
)

// PGConfig holds Postgres connection settings for the user directory.
type PGConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewDB opens a Postgres connection pool and verifies it.
func NewDB(cfg PGConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// PGUserDirectory is a read-only user directory backed by Postgres. The
// core never mutates the directory.
type PGUserDirectory struct {
	db *sql.DB
}

// NewPGUserDirectory creates a Postgres-backed user directory.
func NewPGUserDirectory(db *sql.DB) *PGUserDirectory {
	return &PGUserDirectory{db: db}
}

// Lookup returns the account for the username, or domain.ErrUserNotFound.
func (d *PGUserDirectory) Lookup(ctx context.Context, username string) (*domain.UserAccount, error) {
	query := `
		SELECT username, name, password_digest
		FROM accounts
		WHERE username = $1
	`
	account := &domain.UserAccount{}
	err := d.db.QueryRowContext(ctx, query, username).Scan(
		&account.Username, &account.Name, &account.PasswordDigest,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}
	return account, nil
}
