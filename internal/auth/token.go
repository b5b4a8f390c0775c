package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"opencap/internal/config"
	"opencap/internal/services"
)

// TokenProvider supplies the bearer token sent with every API request.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider backed by a fixed value.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", services.Wrap(services.ErrAuth, "auth", "token", "no api token configured", nil)
	}
	return token, nil
}

type tokenState struct {
	Token string `json:"token"`
}

// FileTokenStore reads and writes the API token as JSON on disk.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore builds a FileTokenStore rooted at the provided path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Path returns the backing file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load reads the stored token. A missing file resolves to an empty token.
func (s *FileTokenStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read token file: %w", err)
	}

	var state tokenState
	if err := json.Unmarshal(data, &state); err != nil {
		return "", fmt.Errorf("decode token file: %w", err)
	}
	return strings.TrimSpace(state.Token), nil
}

// Save persists the token with restricted permissions.
func (s *FileTokenStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure token directory: %w", err)
	}

	data, err := json.MarshalIndent(tokenState{Token: strings.TrimSpace(token)}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// Token implements TokenProvider by loading the stored token.
func (s *FileTokenStore) Token(context.Context) (string, error) {
	token, err := s.Load()
	if err != nil {
		return "", services.Wrap(services.ErrAuth, "auth", "load token", s.path, err)
	}
	if token == "" {
		return "", services.Wrap(services.ErrAuth, "auth", "load token", "no token in "+s.path, nil)
	}
	return token, nil
}

// chain tries each provider in order and returns the first token found.
type chain []TokenProvider

func (c chain) Token(ctx context.Context) (string, error) {
	var lastErr error
	for _, provider := range c {
		token, err := provider.Token(ctx)
		if err == nil {
			return token, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = services.Wrap(services.ErrAuth, "auth", "token", "no token source configured", nil)
	}
	return "", lastErr
}

// NewProvider returns the token provider described by cfg. A token set in the
// config file or OPENCAP_API_TOKEN takes precedence over the token file.
func NewProvider(cfg *config.Config) TokenProvider {
	if cfg == nil {
		return chain(nil)
	}
	var providers chain
	if token := strings.TrimSpace(cfg.API.Token); token != "" {
		providers = append(providers, StaticToken(token))
	}
	if path := strings.TrimSpace(cfg.API.TokenFile); path != "" {
		providers = append(providers, NewFileTokenStore(path))
	}
	return providers
}
