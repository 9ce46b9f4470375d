// Package auth gates access to the dashboard against a static set of users.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized is returned for any failed login. It never tells whether
// the email exists.
var ErrUnauthorized = errors.New("invalid email or password")

// User is the public view of an account.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// Record is a user as stored in the users file. Either PasswordHash (bcrypt)
// or Password (plain text, hashed on load) must be set.
type Record struct {
	User
	PasswordHash string `json:"password_hash,omitempty"`
	Password     string `json:"password,omitempty"`
}

// Gate checks credentials against an in-memory user set.
type Gate struct {
	users  map[string]entry
	logger *slog.Logger
}

type entry struct {
	user User
	hash []byte
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// dummy is compared against when the email is unknown so that both failure
// paths cost one bcrypt comparison.
func dummy() []byte {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("financehub"), bcrypt.DefaultCost)
	})
	return dummyHash
}

// NewGate builds a Gate from records. Emails are matched case-insensitively.
func NewGate(records []Record, logger *slog.Logger) (*Gate, error) {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gate{
		users:  make(map[string]entry, len(records)),
		logger: logger.With("component", "auth"),
	}
	for _, r := range records {
		email := normalizeEmail(r.Email)
		if email == "" {
			return nil, errors.New("user record without email")
		}
		if _, dup := g.users[email]; dup {
			return nil, fmt.Errorf("duplicate user %q", email)
		}

		hash := []byte(r.PasswordHash)
		if len(hash) == 0 {
			if r.Password == "" {
				return nil, fmt.Errorf("user %q has no password", email)
			}
			var err error
			hash, err = bcrypt.GenerateFromPassword([]byte(r.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("hashing password for %q: %w", email, err)
			}
		} else if _, err := bcrypt.Cost(hash); err != nil {
			return nil, fmt.Errorf("user %q: invalid password hash: %w", email, err)
		}

		u := r.User
		u.Email = email
		g.users[email] = entry{user: u, hash: hash}
	}
	return g, nil
}

// LoadRecords decodes a JSON array of user records.
func LoadRecords(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}
	return records, nil
}

// Allow returns the user matching email and password, or ErrUnauthorized.
func (g *Gate) Allow(ctx context.Context, email, password string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	e, ok := g.users[normalizeEmail(email)]
	hash := e.hash
	if !ok {
		hash = dummy()
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !ok {
		g.logger.Debug("login rejected")
		return User{}, ErrUnauthorized
	}

	g.logger.Info("login accepted", "user_id", e.user.ID)
	return e.user, nil
}

// Len returns the number of known users.
func (g *Gate) Len() int {
	return len(g.users)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
