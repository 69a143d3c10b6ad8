package credstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbelyaev/authflow/internal/client/migrations"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies the embedded goose migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the local SQLite database at dsn, applies migrations,
// and returns a Session bound to it. The caller owns the *sql.DB lifetime.
func InitDatabase(ctx context.Context, dsn string) (*Session, *sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return NewSession(db), db, nil
}
