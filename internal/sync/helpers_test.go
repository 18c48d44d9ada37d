package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	stdsync "sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/awalters/quill/internal/backend"
	"github.com/awalters/quill/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "quill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func addCloudAccount(t *testing.T, store *storage.Store, token string) *storage.Account {
	t.Helper()
	id, err := store.AddAccount(&storage.Account{
		Type:        storage.AccountGReader,
		Endpoint:    "https://reader.example.com",
		Username:    "reader",
		Password:    "hunter2",
		Token:       token,
		MaxPastDays: 30,
	})
	require.NoError(t, err)
	account, err := store.GetAccount(id)
	require.NoError(t, err)
	return account
}

// fakeAdapter is an in-memory Adapter. Sessions whose token is in
// stale are rejected, simulating expiry; Authenticate hands out
// tokens from the sequence fresh-1, fresh-2, ...
type fakeAdapter struct {
	mu        stdsync.Mutex
	authCalls int
	authErr   error
	stale     map[string]bool

	listing backend.Listing
	pages   map[string]backend.Page // keyed by continuation, "" is the first page
	unread  []string
	starred []string

	markRead [][]string
	starredM [][]string
}

func (f *fakeAdapter) checkSession(s backend.Session) error {
	if f.stale[s.Token] {
		return &backend.AuthError{Endpoint: s.Endpoint, Status: 401}
	}
	return nil
}

func (f *fakeAdapter) Authenticate(ctx context.Context, creds backend.Credentials) (*backend.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &backend.AuthResult{
		Token:    fmt.Sprintf("fresh-%d", f.authCalls),
		Endpoint: backend.NormalizeEndpoint(creds.Endpoint),
	}, nil
}

func (f *fakeAdapter) ListSubscriptions(ctx context.Context, s backend.Session) (*backend.Listing, error) {
	if err := f.checkSession(s); err != nil {
		return nil, err
	}
	listing := f.listing
	return &listing, nil
}

func (f *fakeAdapter) ListItems(ctx context.Context, s backend.Session, opts backend.ListOptions) (*backend.Page, error) {
	if err := f.checkSession(s); err != nil {
		return nil, err
	}
	page, ok := f.pages[opts.Continuation]
	if !ok {
		return nil, errors.New("no such page")
	}
	return &page, nil
}

func (f *fakeAdapter) ListUnreadIDs(ctx context.Context, s backend.Session) ([]string, error) {
	if err := f.checkSession(s); err != nil {
		return nil, err
	}
	return append([]string(nil), f.unread...), nil
}

func (f *fakeAdapter) ListStarredIDs(ctx context.Context, s backend.Session) ([]string, error) {
	if err := f.checkSession(s); err != nil {
		return nil, err
	}
	return append([]string(nil), f.starred...), nil
}

func (f *fakeAdapter) MarkRead(ctx context.Context, s backend.Session, ids []string, read bool) error {
	if err := f.checkSession(s); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markRead = append(f.markRead, append([]string(nil), ids...))
	return nil
}

func (f *fakeAdapter) Star(ctx context.Context, s backend.Session, ids []string, starred bool) error {
	if err := f.checkSession(s); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starredM = append(f.starredM, append([]string(nil), ids...))
	return nil
}
