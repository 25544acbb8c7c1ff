package config

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// SecretStore resolves named secrets such as the games service token.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithDefault(ctx context.Context, key, def string) string
}

// EnvironmentSecretStore reads secrets from environment variables. A
// variable named KEY_FILE, when set, points at a file holding the value.
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

func (s *EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, nil
	}
	if path := os.Getenv(key + "_FILE"); path != "" {
		b, err := os.ReadFile(path) // #nosec G304 - operator supplied path
		if err != nil {
			return "", fmt.Errorf("read secret %s: %w", key, err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return "", fmt.Errorf("secret %s not set", key)
}

func (s *EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// ResolveRemoteToken fills Remote.AuthToken from store when a secret name is
// configured and no token was given directly.
func (c *Config) ResolveRemoteToken(ctx context.Context, store SecretStore) error {
	if c.Remote.AuthToken != "" || c.Remote.AuthTokenSecret == "" {
		return nil
	}
	tok, err := store.Get(ctx, c.Remote.AuthTokenSecret)
	if err != nil {
		return err
	}
	c.Remote.AuthToken = tok
	return nil
}
