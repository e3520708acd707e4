package router

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/vault"
)

// SwapExactIn sells exactly amountIn of tokenIn for at least minAmountOut of
// tokenOut.
func (r *Router) SwapExactIn(ctx context.Context, sender, pool, tokenIn, tokenOut common.Address, amountIn, minAmountOut *uint256.Int) (vault.SwapResult, error) {
	return r.swap(ctx, sender, vault.SwapParams{
		Pool:           pool,
		Kind:           vault.ExactIn,
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountGivenRaw: amountIn,
		LimitRaw:       minAmountOut,
	})
}

// SwapExactOut buys exactly amountOut of tokenOut for at most maxAmountIn of
// tokenIn.
func (r *Router) SwapExactOut(ctx context.Context, sender, pool, tokenIn, tokenOut common.Address, amountOut, maxAmountIn *uint256.Int) (vault.SwapResult, error) {
	return r.swap(ctx, sender, vault.SwapParams{
		Pool:           pool,
		Kind:           vault.ExactOut,
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountGivenRaw: amountOut,
		LimitRaw:       maxAmountIn,
	})
}

func (r *Router) swap(ctx context.Context, sender common.Address, params vault.SwapParams) (vault.SwapResult, error) {
	var res vault.SwapResult
	err := r.Execute(ctx, sender, func(s *vault.Session) error {
		var err error
		res, err = s.Swap(params)
		return err
	})
	return res, err
}

// QuoteSwap prices a swap in a discarded session.
func (r *Router) QuoteSwap(ctx context.Context, sender common.Address, params vault.SwapParams) (vault.SwapResult, error) {
	var res vault.SwapResult
	err := r.vault.Quote(ctx, sender, func(s *vault.Session) error {
		var err error
		res, err = s.Swap(params)
		return err
	})
	return res, err
}

// AddLiquidity adds liquidity paid by sender.
func (r *Router) AddLiquidity(ctx context.Context, sender common.Address, params vault.AddLiquidityParams) (vault.AddLiquidityResult, error) {
	var res vault.AddLiquidityResult
	err := r.Execute(ctx, sender, func(s *vault.Session) error {
		var err error
		res, err = s.AddLiquidity(params)
		return err
	})
	return res, err
}

// RemoveLiquidity burns shares held by params.From and pays sender.
func (r *Router) RemoveLiquidity(ctx context.Context, sender common.Address, params vault.RemoveLiquidityParams) (vault.RemoveLiquidityResult, error) {
	var res vault.RemoveLiquidityResult
	err := r.Execute(ctx, sender, func(s *vault.Session) error {
		var err error
		res, err = s.RemoveLiquidity(params)
		return err
	})
	return res, err
}

// RemoveLiquidityRecovery exits a pool in recovery mode.
func (r *Router) RemoveLiquidityRecovery(ctx context.Context, sender, pool common.Address, sharesIn *uint256.Int, minAmountsOut []*uint256.Int) ([]*uint256.Int, error) {
	var out []*uint256.Int
	err := r.Execute(ctx, sender, func(s *vault.Session) error {
		var err error
		out, err = s.RemoveLiquidityRecovery(pool, sender, sharesIn, minAmountsOut)
		return err
	})
	return out, err
}

// Initialize seeds a pool with sender's tokens.
func (r *Router) Initialize(ctx context.Context, sender common.Address, params vault.InitializeParams) (*uint256.Int, error) {
	var shares *uint256.Int
	err := r.Execute(ctx, sender, func(s *vault.Session) error {
		var err error
		shares, err = s.Initialize(params)
		return err
	})
	return shares, err
}
