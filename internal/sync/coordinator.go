package sync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/awalters/quill/internal/events"
	"github.com/awalters/quill/internal/storage"
)

// ErrUnknownAccount means the account's type has no registered engine.
var ErrUnknownAccount = errors.New("unknown account type")

// Coordinator owns the per-backend engines and routes each account to
// the right one.
type Coordinator struct {
	store  *storage.Store
	bus    *events.Bus
	local  *LocalSync
	clouds map[string]*CloudSync
}

func NewCoordinator(store *storage.Store, bus *events.Bus, local *LocalSync, clouds map[string]*CloudSync) *Coordinator {
	return &Coordinator{store: store, bus: bus, local: local, clouds: clouds}
}

// CloudFor returns the cloud engine registered for an account type, if
// any. Local accounts have no push target.
func (c *Coordinator) CloudFor(accountType string) (*CloudSync, bool) {
	engine, ok := c.clouds[accountType]
	return engine, ok
}

// SyncAccount runs one pass for the account, bracketed by start and
// finish events. The finish event carries the Result, or the error
// when the pass failed outright.
func (c *Coordinator) SyncAccount(ctx context.Context, account *storage.Account) (*Result, error) {
	if c.bus != nil {
		c.bus.Dispatch(events.Event{Name: events.SyncStarted, AccountID: account.ID})
	}
	res, err := c.dispatch(ctx, account)
	if c.bus != nil {
		evt := events.Event{Name: events.SyncFinished, AccountID: account.ID, Data: res}
		if err != nil {
			evt.Data = err
		}
		c.bus.Dispatch(evt)
	}
	return res, err
}

func (c *Coordinator) dispatch(ctx context.Context, account *storage.Account) (*Result, error) {
	if account.Type == storage.AccountLocal {
		return c.local.Sync(ctx, account)
	}
	if engine, ok := c.clouds[account.Type]; ok {
		return engine.Sync(ctx, account)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account.Type)
}

// SyncAll runs every account in turn. One account failing does not
// stop the rest; failures surface in the log and as missing results.
func (c *Coordinator) SyncAll(ctx context.Context) ([]Result, error) {
	accounts, err := c.store.GetAccounts()
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(accounts))
	for i := range accounts {
		res, err := c.SyncAccount(ctx, &accounts[i])
		if err != nil {
			log.Printf("quill: account %d sync failed: %v", accounts[i].ID, err)
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}
