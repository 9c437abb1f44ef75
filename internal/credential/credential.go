// Package credential достаёт токен VK: из флага, окружения или системного keyring.
package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	KeyringService = "VK"
	KeyringUser    = "vkomment_token"
	DefaultEnv     = "VK_TOKEN"
)

var ErrMissingCredential = errors.New("missing credential")

type Provider interface {
	Name() string
	Token(ctx context.Context) (string, error)
}

type Static string

func (s Static) Name() string { return "flag" }

func (s Static) Token(context.Context) (string, error) {
	if t := strings.TrimSpace(string(s)); t != "" {
		return t, nil
	}
	return "", ErrMissingCredential
}

type Env string

func (e Env) Name() string { return "env " + string(e) }

func (e Env) Token(context.Context) (string, error) {
	if t := strings.TrimSpace(os.Getenv(string(e))); t != "" {
		return t, nil
	}
	return "", ErrMissingCredential
}

// Keyring: системное хранилище секретов (Secret Service / Keychain / wincred).
type Keyring struct {
	Service string
	User    string
}

func DefaultKeyring() Keyring {
	return Keyring{Service: KeyringService, User: KeyringUser}
}

func (k Keyring) Name() string { return "keyring" }

func (k Keyring) Token(context.Context) (string, error) {
	t, err := keyring.Get(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrMissingCredential
	}
	if err != nil {
		return "", fmt.Errorf("keyring get: %w", err)
	}
	if strings.TrimSpace(t) == "" {
		return "", ErrMissingCredential
	}
	return t, nil
}

func (k Keyring) Save(token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("keyring: empty token")
	}
	if err := keyring.Set(k.Service, k.User, token); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

func (k Keyring) Delete() error {
	err := keyring.Delete(k.Service, k.User)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}

// Chain: первый провайдер, у которого нашёлся токен.
// Ошибки хранилищ не фатальны, пока кто-то дальше по цепочке может ответить.
type Chain []Provider

func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, p := range c {
		names = append(names, p.Name())
	}
	return strings.Join(names, " -> ")
}

func (c Chain) Token(ctx context.Context) (string, error) {
	var errs []error
	for _, p := range c {
		t, err := p.Token(ctx)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrMissingCredential) {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("%w: tried %s: %w", ErrMissingCredential, c.Name(), errors.Join(errs...))
	}
	return "", fmt.Errorf("%w: tried %s", ErrMissingCredential, c.Name())
}
