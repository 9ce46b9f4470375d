// Package client provides the Google OAuth2 client used by the Sheets source.
package client

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Defaults for Flow.
const (
	DefaultTokenFile    = "data/token.json"
	DefaultCallbackPort = 8085
	callbackPath        = "/callback"
	callbackTimeout     = 5 * time.Minute
)

// ErrNoToken is returned by Cached when no token has been saved yet.
var ErrNoToken = errors.New("no saved OAuth token (run 'financehub setup')")

// Flow obtains OAuth2 tokens for a Google client secret and caches them on disk.
type Flow struct {
	// TokenFile is where the token is cached. Defaults to DefaultTokenFile.
	TokenFile string
	// CallbackPort is the local port receiving the browser redirect.
	// Defaults to DefaultCallbackPort.
	CallbackPort int
	// OpenBrowser opens the consent URL. Defaults to the platform opener.
	OpenBrowser func(ctx context.Context, url string) error

	logger *slog.Logger
}

// NewFlow creates a Flow with default settings.
func NewFlow(logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		TokenFile:    DefaultTokenFile,
		CallbackPort: DefaultCallbackPort,
		OpenBrowser:  openBrowser,
		logger:       logger.With("component", "oauth"),
	}
}

// Config parses a client secret file into an OAuth2 config for scopes.
func Config(secretFilePath string, scopes ...string) (*oauth2.Config, error) {
	b, err := os.ReadFile(secretFilePath)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}
	return cfg, nil
}

// Cached returns a client built from the saved token without prompting.
func (f *Flow) Cached(ctx context.Context, cfg *oauth2.Config) (*http.Client, error) {
	tok, err := LoadToken(f.TokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}
	return cfg.Client(ctx, tok), nil
}

// Authorize runs the browser consent flow, saves the token and returns a client.
func (f *Flow) Authorize(ctx context.Context, cfg *oauth2.Config) (*http.Client, error) {
	tok, err := f.tokenFromWeb(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := SaveToken(f.TokenFile, tok); err != nil {
		return nil, err
	}
	f.logger.Info("saved OAuth token", "path", f.TokenFile)
	return cfg.Client(ctx, tok), nil
}

func (f *Flow) tokenFromWeb(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	cfg.RedirectURL = fmt.Sprintf("http://localhost:%d%s", f.CallbackPort, callbackPath)

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state token: %w", err)
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server, err := f.startCallbackServer(ctx, state, codeChan, errChan)
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			f.logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Printf("\nOpening browser for Google authentication...\n")
	fmt.Printf("If the browser doesn't open automatically, visit this URL:\n%s\n\n", authURL)
	if f.OpenBrowser != nil {
		if err := f.OpenBrowser(ctx, authURL); err != nil {
			f.logger.Warn("failed to open browser automatically", "error", err)
		}
	}

	select {
	case code := <-codeChan:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("exchanging authorization code for token: %w", err)
		}
		return tok, nil
	case err := <-errChan:
		return nil, fmt.Errorf("oauth callback error: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(callbackTimeout):
		return nil, fmt.Errorf("oauth flow timed out after %v", callbackTimeout)
	}
}

func (f *Flow) startCallbackServer(ctx context.Context, expectedState string, codeChan chan<- string, errChan chan<- error) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != expectedState {
			errChan <- errors.New("invalid state parameter")
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}
		if errMsg := q.Get("error"); errMsg != "" {
			errChan <- fmt.Errorf("%s: %s", errMsg, q.Get("error_description"))
			http.Error(w, "Authentication failed: "+errMsg, http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			errChan <- errors.New("no authorization code received")
			http.Error(w, "No authorization code received", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html><html><head><title>FinanceHub</title></head>`+
			`<body style="font-family: sans-serif; text-align: center; margin-top: 20vh;">`+
			`<h1>Authentication successful</h1><p>You can close this window and return to the terminal.</p>`+
			`</body></html>`)
		codeChan <- code
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", f.CallbackPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", server.Addr)
	if err != nil {
		return nil, fmt.Errorf("port %d unavailable: %w", f.CallbackPort, err)
	}

	go func() {
		f.logger.Debug("starting OAuth callback server", "port", f.CallbackPort)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	return server, nil
}

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// LoadToken reads a cached token.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	return tok, nil
}

// SaveToken writes a token readable only by the current user.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return nil
}
