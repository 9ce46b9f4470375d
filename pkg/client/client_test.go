package client

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	want := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}

	if err := SaveToken(path, want); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token file mode = %v", info.Mode().Perm())
	}

	got, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if got.AccessToken != want.AccessToken || !got.Expiry.Equal(want.Expiry) {
		t.Errorf("got %+v", got)
	}
}

func TestFlow_CachedWithoutToken(t *testing.T) {
	f := NewFlow(nil)
	f.TokenFile = filepath.Join(t.TempDir(), "token.json")

	_, err := f.Cached(context.Background(), &oauth2.Config{})
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
}

func TestFlow_CachedWithToken(t *testing.T) {
	f := NewFlow(nil)
	f.TokenFile = filepath.Join(t.TempDir(), "token.json")
	if err := SaveToken(f.TokenFile, &oauth2.Token{AccessToken: "a"}); err != nil {
		t.Fatal(err)
	}

	c, err := f.Cached(context.Background(), &oauth2.Config{})
	if err != nil || c == nil {
		t.Errorf("Cached: %v, %v", c, err)
	}
}

func TestConfig_Errors(t *testing.T) {
	if _, err := Config(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing secret file")
	}

	bad := filepath.Join(t.TempDir(), "secret.json")
	if err := os.WriteFile(bad, []byte(`{}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Config(bad); err == nil {
		t.Error("expected error for invalid secret")
	}
}
