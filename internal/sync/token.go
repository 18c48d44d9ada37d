package sync

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/awalters/quill/internal/backend"
	"github.com/awalters/quill/internal/storage"
)

// TokenManager owns the auth token lifecycle for cloud accounts. The
// token lives on the account row and is refreshed in place; concurrent
// refreshes for the same account collapse into one network call.
type TokenManager struct {
	store *storage.Store
	group singleflight.Group
}

func NewTokenManager(store *storage.Store) *TokenManager {
	return &TokenManager{store: store}
}

// EnsureSession returns a session with the cached token, authenticating
// first if no token is cached yet. Missing credentials fail fast before
// any network call.
func (tm *TokenManager) EnsureSession(ctx context.Context, adapter backend.Adapter, account *storage.Account) (backend.Session, error) {
	if account.Username == "" || account.Password == "" {
		return backend.Session{}, &backend.ConfigError{
			Reason: fmt.Sprintf("account %d has no stored credentials", account.ID),
		}
	}
	if account.Token != "" {
		return sessionFor(account), nil
	}
	return tm.Refresh(ctx, adapter, account)
}

// Refresh unconditionally re-authenticates and persists the new token
// (and corrected endpoint) on the account row.
func (tm *TokenManager) Refresh(ctx context.Context, adapter backend.Adapter, account *storage.Account) (backend.Session, error) {
	if account.Username == "" || account.Password == "" {
		return backend.Session{}, &backend.ConfigError{
			Reason: fmt.Sprintf("account %d has no stored credentials", account.ID),
		}
	}

	key := strconv.FormatInt(account.ID, 10)
	result, err, _ := tm.group.Do(key, func() (any, error) {
		auth, err := adapter.Authenticate(ctx, backend.Credentials{
			Endpoint: account.Endpoint,
			Username: account.Username,
			Password: account.Password,
		})
		if err != nil {
			return nil, err
		}
		if err := tm.store.UpdateAccountToken(account.ID, auth.Token, auth.Endpoint); err != nil {
			return nil, err
		}
		account.Token = auth.Token
		account.Endpoint = auth.Endpoint
		return sessionFor(account), nil
	})
	if err != nil {
		return backend.Session{}, err
	}
	return result.(backend.Session), nil
}

// WithAuthRetry runs fn with the cached session; on any failure it
// refreshes the token once and retries exactly once. The second
// failure propagates. Every remote call in the cloud pipeline runs
// under this contract, so an expired token costs one extra round trip
// instead of a failed sync.
func (tm *TokenManager) WithAuthRetry(ctx context.Context, adapter backend.Adapter, account *storage.Account, fn func(backend.Session) error) error {
	session, err := tm.EnsureSession(ctx, adapter, account)
	if err != nil {
		return err
	}
	if err := fn(session); err == nil {
		return nil
	}
	session, err = tm.Refresh(ctx, adapter, account)
	if err != nil {
		return err
	}
	return fn(session)
}

func sessionFor(account *storage.Account) backend.Session {
	return backend.Session{
		Endpoint: account.Endpoint,
		Token:    account.Token,
		Username: account.Username,
		Password: account.Password,
	}
}
