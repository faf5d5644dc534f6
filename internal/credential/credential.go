// Package credential stores the release API token in the OS keyring.
package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// Keyring addresses one token entry.
type Keyring struct {
	Service string
	User    string
}

// New returns a Keyring for service/user.
func New(service, user string) Keyring {
	return Keyring{Service: service, User: user}
}

// Lookup returns the stored token, or "" when none is stored.
func (k Keyring) Lookup() (string, error) {
	if k.Service == "" || k.User == "" {
		return "", nil
	}
	token, err := keyring.Get(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read keyring %s/%s: %w", k.Service, k.User, err)
	}
	return strings.TrimSpace(token), nil
}

// Store saves token, replacing any previous value. An empty token
// removes the entry.
func (k Keyring) Store(token string) error {
	if k.Service == "" || k.User == "" {
		return errors.New("credential: keyring service and user are required")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		err := keyring.Delete(k.Service, k.User)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("delete keyring entry: %w", err)
		}
		return nil
	}
	if err := keyring.Set(k.Service, k.User, token); err != nil {
		return fmt.Errorf("write keyring %s/%s: %w", k.Service, k.User, err)
	}
	return nil
}

// Resolve prefers an explicit token and falls back to the keyring.
func (k Keyring) Resolve(explicit string) (string, error) {
	if t := strings.TrimSpace(explicit); t != "" {
		return t, nil
	}
	return k.Lookup()
}
