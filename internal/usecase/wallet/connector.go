package wallet

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	ErrUserRejected        = errors.New("user rejected the request")
	ErrNoAccounts          = errors.New("no accounts found")
)

// Provider is the injected wallet capability.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]string, error)
}

type Connector struct{ provider Provider }

// NewConnector accepts a nil provider; Connect then reports ErrProviderUnavailable.
func NewConnector(p Provider) *Connector { return &Connector{provider: p} }

// Connect asks the provider for account access and returns the first authorized address.
func (c *Connector) Connect(ctx context.Context) (string, error) {
	if c.provider == nil {
		return "", ErrProviderUnavailable
	}
	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrUserRejected) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if len(accounts) == 0 || accounts[0] == "" {
		return "", ErrNoAccounts
	}
	return accounts[0], nil
}
