package store

import (
	"context"
	"errors"
	"strings"
)

// ErrDuplicateEmail is returned by CreateUser when the email is already taken.
var ErrDuplicateEmail = errors.New("email already exists")

// Store is the persistence collaborator for users and usage records.
// GetUserByEmail and GetUserByID return (nil, nil) when no row matches.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, email, passwordHash string) (*User, error)
	CreateUsageRecord(ctx context.Context, rec *UsageRecord) error
	Ping(ctx context.Context) error
	Close() error
}

// Open picks the backend from the URL: postgres:// and postgresql:// URLs go
// to Postgres, anything else is treated as a SQLite data source name.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return NewPostgresStore(ctx, databaseURL)
	}
	return NewSQLiteStore(databaseURL)
}
