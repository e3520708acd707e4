// Package router batches vault operations into one session and settles the
// resulting token deltas against a sender's wallet.
package router

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/vault"
)

// Step is one operation run inside the router's session.
type Step func(s *vault.Session) error

// Router settles sessions on behalf of senders. Senders approve the router
// address on every token they pay with.
type Router struct {
	vault   *vault.Vault
	address common.Address
	logger  *zap.Logger
}

// New creates a router that pulls tokens as address.
func New(v *vault.Vault, address common.Address, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{vault: v, address: address, logger: logger}
}

// Address returns the router's spender address.
func (r *Router) Address() common.Address { return r.address }

// Execute runs steps in one session opened for sender. Once they succeed,
// every amount owed to the vault is pulled from sender and every amount owed
// to sender is paid out, so the session closes settled. Pulled tokens go back
// to sender if the session aborts.
func (r *Router) Execute(ctx context.Context, sender common.Address, steps ...Step) error {
	return r.vault.Unlock(ctx, sender, func(s *vault.Session) error {
		for i, step := range steps {
			if err := step(s); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		}
		return r.settle(s, sender)
	})
}

func (r *Router) settle(s *vault.Session, sender common.Address) error {
	for _, addr := range s.TouchedTokens() {
		delta := s.TokenDelta(addr)
		if delta.Sign() == 0 {
			continue
		}
		if delta.Sign() > 0 {
			amount, err := toUint256(delta)
			if err != nil {
				return err
			}
			if _, err := s.SettleFrom(addr, sender, r.address, amount); err != nil {
				return fmt.Errorf("settle %s: %w", addr.Hex(), err)
			}
			continue
		}
		amount, err := toUint256(new(big.Int).Neg(delta))
		if err != nil {
			return err
		}
		if err := s.SendTo(addr, sender, amount); err != nil {
			return fmt.Errorf("send %s to %s: %w", addr.Hex(), sender.Hex(), err)
		}
	}
	r.logger.Debug("session settled",
		zap.Uint64("session_id", s.ID()),
		zap.String("sender", sender.Hex()),
		zap.Int("tokens", len(s.TouchedTokens())),
	)
	return nil
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("amount %s out of range", v.String())
	}
	return out, nil
}
