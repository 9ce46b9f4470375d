package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testGate(t *testing.T) *Gate {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	g, err := NewGate([]Record{
		{User: User{ID: "1", Name: "Demo User", Email: "Demo@FinanceHub.dev"}, PasswordHash: string(hash)},
		{User: User{ID: "2", Name: "Plain", Email: "plain@financehub.dev"}, Password: "open sesame"},
	}, nil)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	return g
}

func TestGate_Allow(t *testing.T) {
	g := testGate(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantID   string
		wantErr  error
	}{
		{name: "hashed password", email: "demo@financehub.dev", password: "hunter2", wantID: "1"},
		{name: "email case and spaces", email: "  DEMO@financehub.dev ", password: "hunter2", wantID: "1"},
		{name: "plain password hashed on load", email: "plain@financehub.dev", password: "open sesame", wantID: "2"},
		{name: "wrong password", email: "demo@financehub.dev", password: "nope", wantErr: ErrUnauthorized},
		{name: "unknown email", email: "ghost@financehub.dev", password: "hunter2", wantErr: ErrUnauthorized},
		{name: "empty credentials", wantErr: ErrUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u, err := g.Allow(ctx, tc.email, tc.password)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("got %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if u.ID != tc.wantID {
				t.Errorf("user id: got %s, want %s", u.ID, tc.wantID)
			}
		})
	}
}

func TestGate_FailuresAreIndistinguishable(t *testing.T) {
	g := testGate(t)
	ctx := context.Background()

	_, wrongPassword := g.Allow(ctx, "demo@financehub.dev", "nope")
	_, unknownEmail := g.Allow(ctx, "ghost@financehub.dev", "nope")
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Errorf("messages differ: %q vs %q", wrongPassword, unknownEmail)
	}
}

func TestNewGate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
	}{
		{"missing email", []Record{{Password: "x"}}},
		{"missing password", []Record{{User: User{Email: "a@b.c"}}}},
		{"bad hash", []Record{{User: User{Email: "a@b.c"}, PasswordHash: "not-bcrypt"}}},
		{"duplicate", []Record{
			{User: User{Email: "a@b.c"}, Password: "x"},
			{User: User{Email: "A@B.C"}, Password: "y"},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewGate(tc.records, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadRecords(t *testing.T) {
	records, err := LoadRecords(strings.NewReader(`[{"id":"7","name":"N","email":"n@x.io","password":"pw"}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].ID != "7" || records[0].Password != "pw" {
		t.Errorf("got %+v", records)
	}

	if _, err := LoadRecords(strings.NewReader(`{`)); err == nil {
		t.Error("expected decode error")
	}
}
