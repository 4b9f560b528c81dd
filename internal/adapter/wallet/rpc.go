package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	walletuc "bitguardian/internal/usecase/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// EIP-1193 "User Rejected Request"
const codeUserRejected = 4001

// RPCProvider requests accounts from a JSON-RPC wallet endpoint (a signer or
// node that answers eth_requestAccounts).
type RPCProvider struct {
	url string

	mu     sync.Mutex
	client *rpc.Client
}

func NewRPCProvider(url string) *RPCProvider { return &RPCProvider{url: url} }

// NewRPCProviderFromClient wraps an already connected client.
func NewRPCProviderFromClient(c *rpc.Client) *RPCProvider { return &RPCProvider{client: c} }

func (p *RPCProvider) conn(ctx context.Context) (*rpc.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	if p.url == "" {
		return nil, walletuc.ErrProviderUnavailable
	}
	c, err := rpc.DialContext(ctx, p.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", walletuc.ErrProviderUnavailable, err)
	}
	p.client = c
	return c, nil
}

func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	c, err := p.conn(ctx)
	if err != nil {
		return nil, err
	}
	var accounts []string
	if err := c.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeUserRejected {
			return nil, fmt.Errorf("%w: %s", walletuc.ErrUserRejected, rpcErr.Error())
		}
		return nil, fmt.Errorf("%w: %w", walletuc.ErrProviderUnavailable, err)
	}
	for i, a := range accounts {
		if common.IsHexAddress(a) {
			accounts[i] = common.HexToAddress(a).Hex()
		}
	}
	return accounts, nil
}

func (p *RPCProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}
