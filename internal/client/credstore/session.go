package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dbelyaev/authflow/internal/client/models"
	"github.com/dbelyaev/authflow/internal/dbx"
	"github.com/google/uuid"
)

// Well-known credential keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyMfaSessionID = "mfa_session_id"

	// KeyDeviceID identifies this installation. It is not a session
	// credential and survives logout.
	KeyDeviceID = "device_id"
)

// SessionKeys are the credentials removed together on logout.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyMfaSessionID}

// Session owns the session credential lifecycle: the access/refresh token
// pair and the pending MFA correlator. At most one of {token pair, correlator}
// is present at a time; SaveTokens and SaveMfaCorrelator each replace the
// other within a single transaction so no intermediate mix is observable.
type Session struct {
	db *sql.DB
}

func NewSession(db *sql.DB) *Session {
	return &Session{db: db}
}

func (s *Session) store() Store {
	return NewSQLiteStore(s.db)
}

func (s *Session) get(ctx context.Context, key string) (string, error) {
	v, err := s.store().Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// AccessToken returns the stored bearer token, or "" when logged out.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, KeyAccessToken)
}

// RefreshToken returns the stored refresh token, or "" when absent.
func (s *Session) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, KeyRefreshToken)
}

// MfaCorrelator returns the pending MFA session id, or "" when no MFA
// verification is pending.
func (s *Session) MfaCorrelator(ctx context.Context) (string, error) {
	return s.get(ctx, KeyMfaSessionID)
}

// SaveTokens persists the token pair and removes any pending MFA correlator
// in one transaction.
func (s *Session) SaveTokens(ctx context.Context, tokens models.Tokens) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		store := NewSQLiteStore(tx)
		if err := store.Set(ctx, KeyAccessToken, []byte(tokens.Access)); err != nil {
			return err
		}
		if err := store.Set(ctx, KeyRefreshToken, []byte(tokens.Refresh)); err != nil {
			return err
		}
		return store.Delete(ctx, KeyMfaSessionID)
	})
}

// SaveMfaCorrelator persists the server-issued MFA session id and removes any
// token pair in one transaction. Called when login reports requires_mfa.
func (s *Session) SaveMfaCorrelator(ctx context.Context, sessionID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		store := NewSQLiteStore(tx)
		if err := store.Set(ctx, KeyMfaSessionID, []byte(sessionID)); err != nil {
			return err
		}
		if err := store.Delete(ctx, KeyAccessToken); err != nil {
			return err
		}
		return store.Delete(ctx, KeyRefreshToken)
	})
}

// DeviceID returns the stable device identifier, generating and persisting
// one on first use.
func (s *Session) DeviceID(ctx context.Context) (string, error) {
	store := s.store()
	v, err := store.Get(ctx, KeyDeviceID)
	if err != nil {
		return "", err
	}
	if len(v) > 0 {
		return string(v), nil
	}
	id := uuid.NewString()
	if err := store.Set(ctx, KeyDeviceID, []byte(id)); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}
	return id, nil
}

// ClearAll removes every session credential. Each key is deleted
// independently: a failure on one key never blocks the removal of the
// others. Aggregated errors are returned after all keys were attempted.
// The device id is deliberately kept.
func (s *Session) ClearAll(ctx context.Context) error {
	store := s.store()
	var errs []error
	for _, key := range SessionKeys {
		if err := store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
