// Package session keeps logged-in users and the dataset each of them works on.
//
// A session's dataset is loaded once, on first use, and kept until the
// session ends. Transactions appended through a session live only in that
// session's copy and are never written back to the source.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ArionMiles/financehub/pkg/api"
	"github.com/ArionMiles/financehub/pkg/auth"
	"github.com/ArionMiles/financehub/pkg/engine"
)

// ErrNotFound is returned for unknown or expired tokens.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is used when Options.TTL is zero.
const DefaultTTL = time.Hour

// Loader produces a fresh validated dataset.
type Loader func(ctx context.Context) (*api.Dataset, error)

// Options configure a Store.
type Options struct {
	TTL time.Duration
	// Location is the calendar appended transactions are dated in.
	Location *time.Location
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Session is a snapshot of one login.
type Session struct {
	Token     string    `json:"token"`
	User      auth.User `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type state struct {
	Session
	mu      sync.Mutex
	dataset *api.Dataset
}

// Store is a concurrency-safe in-memory session table.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*state
	load     Loader
	ttl      time.Duration
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// NewStore returns an empty store that loads datasets with load.
func NewStore(load Loader, opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		sessions: make(map[string]*state),
		load:     load,
		ttl:      opts.TTL,
		loc:      opts.Location,
		now:      opts.Now,
		logger:   logger.With("component", "session"),
	}
}

// Create starts a session for user.
func (s *Store) Create(user auth.User) Session {
	now := s.now()
	st := &state{Session: Session{
		Token:     uuid.NewString(),
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}}

	s.mu.Lock()
	s.sessions[st.Token] = st
	s.mu.Unlock()

	s.logger.Info("session created", "user_id", user.ID)
	return st.Session
}

// Get returns the live session for token.
func (s *Store) Get(token string) (Session, error) {
	st, err := s.lookup(token)
	if err != nil {
		return Session{}, err
	}
	return st.Session, nil
}

// Delete ends the session for token. Unknown tokens are ignored.
func (s *Store) Delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Len returns the number of sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) lookup(token string) (*state, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	if s.now().After(st.ExpiresAt) {
		delete(s.sessions, token)
		return nil, ErrNotFound
	}
	return st, nil
}

// Dataset returns the session's dataset, loading it on first use.
func (s *Store) Dataset(ctx context.Context, token string) (*api.Dataset, error) {
	st, err := s.lookup(token)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.dataset != nil {
		return st.dataset, nil
	}

	ds, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}
	st.dataset = ds
	s.logger.Debug("dataset loaded", "user_id", st.User.ID, "transactions", len(ds.Transactions))
	return ds, nil
}

// Append validates raw, gives it a fresh ID and a running balance continuing
// from the session's latest balance, and adds it to the session's dataset.
// A blank date means now. The date must be later than the latest transaction,
// since the running balance only continues forward.
func (s *Store) Append(ctx context.Context, token string, raw api.RawTransaction) (api.Transaction, error) {
	if _, err := s.Dataset(ctx, token); err != nil {
		return api.Transaction{}, err
	}
	st, err := s.lookup(token)
	if err != nil {
		return api.Transaction{}, err
	}

	raw.TransactionID = uuid.NewString()
	if raw.UserID == "" {
		raw.UserID = st.User.ID
	}
	if raw.Date == "" {
		raw.Date = s.now().In(s.loc).Format(time.RFC3339)
	}
	// Replaced below once the previous balance is known.
	raw.CurrentBalance = api.AmountText("0")

	txs, err := api.Ingest([]api.RawTransaction{raw}, s.loc)
	if err != nil {
		return api.Transaction{}, err
	}
	tx := txs[0]

	st.mu.Lock()
	defer st.mu.Unlock()

	if sorted := engine.SortByDate(st.dataset.Transactions); len(sorted) > 0 {
		latest := sorted[len(sorted)-1]
		if !tx.Date.After(latest.Date) {
			return api.Transaction{}, &api.IntegrityError{
				RecordID: tx.ID,
				Field:    "date",
				Reason:   fmt.Sprintf("is not after the latest transaction (%s)", latest.Date.Format(time.RFC3339)),
			}
		}
	}

	balance := engine.Balance(st.dataset.Transactions)
	if tx.Direction == api.DirectionIncome {
		tx.Balance = balance.Add(tx.Amount)
	} else {
		tx.Balance = balance.Sub(tx.Amount)
	}

	// Copy on write: views built from the previous dataset stay consistent.
	next := *st.dataset
	next.Transactions = append(append([]api.Transaction(nil), st.dataset.Transactions...), tx)
	st.dataset = &next

	s.logger.Info("transaction appended", "user_id", st.User.ID, "transaction_id", tx.ID)
	return tx, nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, st := range s.sessions {
		if now.After(st.ExpiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("expired sessions removed", "count", n)
			}
		}
	}
}
