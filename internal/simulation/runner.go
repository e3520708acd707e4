package simulation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/metrics"
	"liquidityVault/internal/model"
	"liquidityVault/internal/pools"
	"liquidityVault/internal/router"
	"liquidityVault/internal/token"
	"liquidityVault/internal/vault"
)

// DefaultRouterAddress is the spender accounts approve when Config leaves
// RouterAddress empty.
var DefaultRouterAddress = common.HexToAddress("0x00000000000000000000000000000000000000b1")

// DecimalsResolver looks up decimals for tokens declared without them.
type DecimalsResolver interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// Config wires the vault a Runner builds for each scenario.
type Config struct {
	VaultAddress  common.Address
	RouterAddress common.Address
	Sink          vault.EventSink
	Metrics       *metrics.Metrics
	Decimals      DecimalsResolver
}

// Outcome records how one session ended.
type Outcome struct {
	Name        string       `json:"name,omitempty"`
	Index       int          `json:"index"`
	Sender      string       `json:"sender"`
	SessionID   uint64       `json:"session_id"`
	Committed   bool         `json:"committed"`
	Error       string       `json:"error,omitempty"`
	Category    string       `json:"category,omitempty"`
	ExpectError string       `json:"expect_error,omitempty"`
	Matched     bool         `json:"matched"`
	Steps       []StepResult `json:"steps,omitempty"`
}

// StepResult holds the settled amounts of one step, in token units.
type StepResult struct {
	Op         string   `json:"op"`
	Pool       string   `json:"pool,omitempty"`
	Tokens     []string `json:"tokens,omitempty"`
	AmountsIn  []string `json:"amounts_in,omitempty"`
	AmountsOut []string `json:"amounts_out,omitempty"`
	Fees       []string `json:"fees,omitempty"`
	Shares     string   `json:"shares,omitempty"`
}

// Report summarizes a run.
type Report struct {
	Outcomes   []Outcome
	Mismatches int
	Snapshot   model.VaultSnapshot
}

// Runner replays scenarios.
type Runner struct {
	cfg    Config
	logger *zap.Logger
}

func NewRunner(cfg Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RouterAddress == (common.Address{}) {
		cfg.RouterAddress = DefaultRouterAddress
	}
	return &Runner{cfg: cfg, logger: logger}
}

type sessionStep func(s *vault.Session, sender common.Address) (StepResult, error)

type adminStep func(ctx context.Context, sender common.Address) (StepResult, error)

type plan struct {
	session []sessionStep
	admin   []adminStep
}

type poolRef struct {
	name    string
	address common.Address
	// tokens is in registration order, ascending by address.
	tokens []*token.Memory
	// order maps the i-th token of the PoolSpec to its registration index.
	order []int
}

type world struct {
	vault    *vault.Vault
	router   *router.Router
	tokens   map[string]*token.Memory
	accounts map[string]common.Address
	pools    map[string]*poolRef
}

// Run builds a fresh vault from sc and replays its sessions in order. An
// outcome that differs from the session's expectation is counted in
// Report.Mismatches; Run itself only fails on setup or context errors.
func (r *Runner) Run(ctx context.Context, sc Scenario) (Report, error) {
	if err := sc.Validate(); err != nil {
		return Report{}, err
	}
	w, err := r.setup(ctx, sc)
	if err != nil {
		return Report{}, err
	}

	plans := make([]plan, len(sc.Sessions))
	for i, spec := range sc.Sessions {
		p, err := w.prepare(spec)
		if err != nil {
			return Report{}, fmt.Errorf("session %d: %w", i, err)
		}
		plans[i] = p
	}

	var report Report
	for i, spec := range sc.Sessions {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		out := w.runSession(ctx, i, spec, plans[i])
		if out.Matched {
			r.logger.Info("session replayed",
				zap.Int("index", i),
				zap.String("name", out.Name),
				zap.Uint64("session_id", out.SessionID),
				zap.Bool("committed", out.Committed),
				zap.String("category", out.Category),
			)
		} else {
			report.Mismatches++
			r.logger.Warn("session outcome mismatch",
				zap.Int("index", i),
				zap.String("name", out.Name),
				zap.String("expect_error", out.ExpectError),
				zap.String("error", out.Error),
			)
		}
		report.Outcomes = append(report.Outcomes, out)
	}
	report.Snapshot = w.vault.Snapshot()
	return report, nil
}

func (r *Runner) setup(ctx context.Context, sc Scenario) (*world, error) {
	w := &world{
		tokens:   make(map[string]*token.Memory, len(sc.Tokens)),
		accounts: make(map[string]common.Address, len(sc.Accounts)),
		pools:    make(map[string]*poolRef, len(sc.Pools)),
	}

	for _, spec := range sc.Tokens {
		addr, err := resolveAddress("token", spec.Symbol, spec.Address)
		if err != nil {
			return nil, err
		}
		decimals, err := r.decimals(ctx, spec, addr)
		if err != nil {
			return nil, err
		}
		tk := token.NewMemory(addr, spec.Symbol, decimals)
		if spec.Rate != "" {
			rate, err := parseFraction(spec.Rate)
			if err != nil {
				return nil, fmt.Errorf("token %s rate: %w", spec.Symbol, err)
			}
			if rate.IsZero() {
				return nil, fmt.Errorf("token %s: zero rate", spec.Symbol)
			}
			tk.SetRate(rate)
		}
		w.tokens[nameKey(spec.Symbol)] = tk
	}

	for _, spec := range sc.Accounts {
		addr, err := resolveAddress("account", spec.Name, spec.Address)
		if err != nil {
			return nil, err
		}
		w.accounts[nameKey(spec.Name)] = addr
		for _, b := range spec.Balances {
			tk := w.tokens[nameKey(b.Token)]
			amount, err := parseUnits(b.Amount, tk.Decimals())
			if err != nil {
				return nil, fmt.Errorf("account %s balance of %s: %w", spec.Name, b.Token, err)
			}
			tk.Mint(addr, amount)
		}
		for _, tk := range w.tokens {
			tk.Approve(addr, r.cfg.RouterAddress, vault.MaxAllowance())
		}
	}

	var authorizer vault.Authorizer
	if sc.Admin != "" {
		authorizer = vault.AllowAccounts(w.accounts[nameKey(sc.Admin)])
	}
	w.vault = vault.New(vault.Config{
		Address:    r.cfg.VaultAddress,
		Authorizer: authorizer,
		Sink:       r.cfg.Sink,
		Metrics:    r.cfg.Metrics,
	}, r.logger)
	w.router = router.New(w.vault, r.cfg.RouterAddress, r.logger)

	for _, spec := range sc.Pools {
		ref, err := w.registerPool(ctx, spec)
		if err != nil {
			return nil, err
		}
		w.pools[nameKey(spec.Name)] = ref
	}
	return w, nil
}

func (r *Runner) decimals(ctx context.Context, spec TokenSpec, addr common.Address) (uint8, error) {
	if spec.Decimals != nil {
		return *spec.Decimals, nil
	}
	if r.cfg.Decimals == nil {
		return 0, fmt.Errorf("token %s: decimals not set and no resolver configured", spec.Symbol)
	}
	decimals, err := r.cfg.Decimals.Decimals(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("token %s decimals: %w", spec.Symbol, err)
	}
	r.logger.Debug("token decimals resolved",
		zap.String("symbol", spec.Symbol),
		zap.String("address", addr.Hex()),
		zap.Uint8("decimals", decimals),
	)
	return decimals, nil
}

func (w *world) registerPool(ctx context.Context, spec PoolSpec) (*poolRef, error) {
	addr, err := resolveAddress("pool", spec.Name, spec.Address)
	if err != nil {
		return nil, err
	}
	ref := &poolRef{name: spec.Name, address: addr}
	for _, sym := range spec.Tokens {
		ref.tokens = append(ref.tokens, w.tokens[nameKey(sym)])
	}
	sort.Slice(ref.tokens, func(i, j int) bool {
		return bytes.Compare(ref.tokens[i].Address().Bytes(), ref.tokens[j].Address().Bytes()) < 0
	})
	ref.order = make([]int, len(spec.Tokens))
	for i, sym := range spec.Tokens {
		for j, tk := range ref.tokens {
			if tk == w.tokens[nameKey(sym)] {
				ref.order[i] = j
			}
		}
	}

	rateTokens := symbolSet(spec.RateTokens)
	yieldTokens := symbolSet(spec.YieldFeeTokens)
	configs := make([]vault.TokenConfig, len(ref.tokens))
	for i, tk := range ref.tokens {
		configs[i] = vault.TokenConfig{Token: tk, PaysYieldFees: yieldTokens[nameKey(tk.Symbol())]}
		if rateTokens[nameKey(tk.Symbol())] {
			configs[i].RateProvider = tk
		}
	}

	fees := make([]*uint256.Int, 3)
	for i, raw := range []string{spec.SwapFee, spec.AggregateSwapFee, spec.AggregateYieldFee} {
		if fees[i], err = parseFraction(raw); err != nil {
			return nil, fmt.Errorf("pool %s fee: %w", spec.Name, err)
		}
	}

	var pricing vault.PricingPool
	switch spec.Pricing {
	case PricingConstantProduct:
		pricing = pools.NewConstantProduct()
	default:
		pricing = pools.NewConstantSum()
	}

	err = w.vault.RegisterPool(ctx, vault.RegisterPoolParams{
		Pool:                        addr,
		Pricing:                     pricing,
		Tokens:                      configs,
		SwapFeePercentage:           fees[0],
		AggregateSwapFeePercentage:  fees[1],
		AggregateYieldFeePercentage: fees[2],
		LiquidityManagement: vault.LiquidityManagement{
			DisableUnbalancedLiquidity: spec.DisableUnbalancedLiquidity,
			EnableDonation:             spec.EnableDonation,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("register pool %s: %w", spec.Name, err)
	}
	return ref, nil
}

func (w *world) runSession(ctx context.Context, index int, spec SessionSpec, p plan) Outcome {
	sender := w.accounts[nameKey(spec.Sender)]
	out := Outcome{
		Name:        spec.Name,
		Index:       index,
		Sender:      spec.Sender,
		SessionID:   w.vault.SessionID(),
		ExpectError: spec.ExpectError,
	}

	var (
		results []StepResult
		err     error
	)
	if len(p.admin) > 0 {
		for j, step := range p.admin {
			res, stepErr := step(ctx, sender)
			if stepErr != nil {
				err = fmt.Errorf("step %d (%s): %w", j, spec.Steps[j].Op, stepErr)
				break
			}
			results = append(results, res)
		}
	} else {
		fn := func(s *vault.Session) error {
			results = results[:0]
			for j, step := range p.session {
				res, err := step(s, sender)
				if err != nil {
					return fmt.Errorf("step %d (%s): %w", j, spec.Steps[j].Op, err)
				}
				results = append(results, res)
			}
			return nil
		}
		switch {
		case spec.Quote:
			err = w.vault.Quote(ctx, sender, fn)
		case !spec.settles():
			err = w.vault.Unlock(ctx, sender, fn)
		default:
			err = w.router.Execute(ctx, sender, fn)
		}
	}

	if err != nil {
		out.Error = err.Error()
		out.Category = vault.Category(err)
	} else {
		out.Committed = !spec.Quote
		out.Steps = results
	}
	out.Matched = matches(spec.ExpectError, err)
	return out
}

func matches(expect string, err error) bool {
	if expect == "" {
		return err == nil
	}
	want, ok := sentinel(expect)
	return ok && errors.Is(err, want)
}

func (w *world) prepare(spec SessionSpec) (plan, error) {
	var p plan
	for j, step := range spec.Steps {
		if adminOps[step.Op] {
			fn, err := w.prepareAdmin(step)
			if err != nil {
				return plan{}, fmt.Errorf("step %d (%s): %w", j, step.Op, err)
			}
			p.admin = append(p.admin, fn)
			continue
		}
		fn, err := w.prepareSession(step)
		if err != nil {
			return plan{}, fmt.Errorf("step %d (%s): %w", j, step.Op, err)
		}
		p.session = append(p.session, fn)
	}
	return p, nil
}

func (w *world) prepareSession(step StepSpec) (sessionStep, error) {
	switch step.Op {
	case OpInitialize:
		ref, err := w.pool(step.Pool)
		if err != nil {
			return nil, err
		}
		amounts, err := ref.amounts(step.Amounts, nil)
		if err != nil {
			return nil, err
		}
		minShares, err := parseOptional(step.Shares, shareDecimals, new(uint256.Int))
		if err != nil {
			return nil, err
		}
		return func(s *vault.Session, sender common.Address) (StepResult, error) {
			shares, err := s.Initialize(vault.InitializeParams{
				Pool:           ref.address,
				To:             sender,
				ExactAmountsIn: amounts,
				MinSharesOut:   minShares,
			})
			if err != nil {
				return StepResult{}, err
			}
			return StepResult{
				Op:        step.Op,
				Pool:      ref.name,
				Tokens:    ref.symbols(),
				AmountsIn: ref.format(amounts),
				Shares:    formatUnits(shares, shareDecimals),
			}, nil
		}, nil

	case OpSwapExactIn, OpSwapExactOut:
		ref, err := w.pool(step.Pool)
		if err != nil {
			return nil, err
		}
		in, out := w.tokens[nameKey(step.TokenIn)], w.tokens[nameKey(step.TokenOut)]
		if in == nil || out == nil {
			return nil, fmt.Errorf("token_in and token_out are required")
		}
		kind, given, limited := vault.ExactIn, in, out
		if step.Op == OpSwapExactOut {
			kind, given, limited = vault.ExactOut, out, in
		}
		amount, err := parseUnits(step.Amount, given.Decimals())
		if err != nil {
			return nil, err
		}
		limit, err := parseOptional(step.Limit, limited.Decimals(), nil)
		if err != nil {
			return nil, err
		}
		return func(s *vault.Session, _ common.Address) (StepResult, error) {
			res, err := s.Swap(vault.SwapParams{
				Pool:           ref.address,
				Kind:           kind,
				TokenIn:        in.Address(),
				TokenOut:       out.Address(),
				AmountGivenRaw: amount,
				LimitRaw:       limit,
			})
			if err != nil {
				return StepResult{}, err
			}
			return StepResult{
				Op:         step.Op,
				Pool:       ref.name,
				Tokens:     []string{in.Symbol(), out.Symbol()},
				AmountsIn:  []string{formatUnits(res.AmountIn, in.Decimals())},
				AmountsOut: []string{formatUnits(res.AmountOut, out.Decimals())},
				Fees:       []string{formatUnits(res.TotalFeeRaw, in.Decimals())},
			}, nil
		}, nil

	case OpAddLiquidity:
		ref, err := w.pool(step.Pool)
		if err != nil {
			return nil, err
		}
		kind, err := addKind(step.Kind)
		if err != nil {
			return nil, err
		}
		var fallback *uint256.Int
		if kind == vault.AddProportional {
			fallback = vault.MaxAllowance()
		}
		maxAmounts, err := ref.amounts(step.Amounts, fallback)
		if err != nil {
			return nil, err
		}
		shares, err := parseOptional(step.Shares, shareDecimals, new(uint256.Int))
		if err != nil {
			return nil, err
		}
		return func(s *vault.Session, sender common.Address) (StepResult, error) {
			res, err := s.AddLiquidity(vault.AddLiquidityParams{
				Pool:         ref.address,
				To:           sender,
				Kind:         kind,
				MaxAmountsIn: maxAmounts,
				MinSharesOut: shares,
			})
			if err != nil {
				return StepResult{}, err
			}
			return StepResult{
				Op:        step.Op,
				Pool:      ref.name,
				Tokens:    ref.symbols(),
				AmountsIn: ref.format(res.AmountsIn),
				Fees:      ref.format(res.FeeAmounts),
				Shares:    formatUnits(res.SharesOut, shareDecimals),
			}, nil
		}, nil

	case OpRemoveLiquidity:
		ref, err := w.pool(step.Pool)
		if err != nil {
			return nil, err
		}
		kind, err := removeKind(step.Kind)
		if err != nil {
			return nil, err
		}
		shares, err := parseUnits(step.Shares, shareDecimals)
		if err != nil {
			return nil, err
		}
		minAmounts, err := ref.amounts(step.Amounts, new(uint256.Int))
		if err != nil {
			return nil, err
		}
		return func(s *vault.Session, sender common.Address) (StepResult, error) {
			res, err := s.RemoveLiquidity(vault.RemoveLiquidityParams{
				Pool:          ref.address,
				From:          sender,
				Kind:          kind,
				MaxSharesIn:   shares,
				MinAmountsOut: minAmounts,
			})
			if err != nil {
				return StepResult{}, err
			}
			return StepResult{
				Op:         step.Op,
				Pool:       ref.name,
				Tokens:     ref.symbols(),
				AmountsOut: ref.format(res.AmountsOut),
				Fees:       ref.format(res.FeeAmounts),
				Shares:     formatUnits(res.SharesIn, shareDecimals),
			}, nil
		}, nil

	case OpRemoveRecovery:
		ref, err := w.pool(step.Pool)
		if err != nil {
			return nil, err
		}
		shares, err := parseUnits(step.Shares, shareDecimals)
		if err != nil {
			return nil, err
		}
		minAmounts, err := ref.amounts(step.Amounts, new(uint256.Int))
		if err != nil {
			return nil, err
		}
		return func(s *vault.Session, sender common.Address) (StepResult, error) {
			amountsOut, err := s.RemoveLiquidityRecovery(ref.address, sender, shares, minAmounts)
			if err != nil {
				return StepResult{}, err
			}
			return StepResult{
				Op:         step.Op,
				Pool:       ref.name,
				Tokens:     ref.symbols(),
				AmountsOut: ref.format(amountsOut),
				Shares:     formatUnits(shares, shareDecimals),
			}, nil
		}, nil

	case OpSend:
		tk := w.tokens[nameKey(step.Token)]
		if tk == nil {
			return nil, fmt.Errorf("token is required")
		}
		amount, err := parseUnits(step.Amount, tk.Decimals())
		if err != nil {
			return nil, err
		}
		return func(s *vault.Session, sender common.Address) (StepResult, error) {
			if err := s.SendTo(tk.Address(), sender, amount); err != nil {
				return StepResult{}, err
			}
			return StepResult{
				Op:         step.Op,
				Tokens:     []string{tk.Symbol()},
				AmountsOut: []string{formatUnits(amount, tk.Decimals())},
			}, nil
		}, nil
	}
	return nil, fmt.Errorf("unknown session op %q", step.Op)
}

func (w *world) prepareAdmin(step StepSpec) (adminStep, error) {
	if step.Op == OpSetRate {
		tk := w.tokens[nameKey(step.Token)]
		if tk == nil {
			return nil, fmt.Errorf("token is required")
		}
		rate, err := parseFraction(step.Rate)
		if err != nil {
			return nil, err
		}
		if rate.IsZero() {
			return nil, fmt.Errorf("rate is required")
		}
		return func(context.Context, common.Address) (StepResult, error) {
			tk.SetRate(rate)
			return StepResult{Op: step.Op, Tokens: []string{tk.Symbol()}}, nil
		}, nil
	}

	ref, err := w.pool(step.Pool)
	if err != nil {
		return nil, err
	}
	result := StepResult{Op: step.Op, Pool: ref.name}
	var apply func(ctx context.Context, sender common.Address) error

	switch step.Op {
	case OpPause, OpUnpause:
		paused := step.Op == OpPause
		apply = func(ctx context.Context, sender common.Address) error {
			return w.vault.SetPoolPaused(ctx, sender, ref.address, paused)
		}
	case OpEnableRecovery, OpDisableRecovery:
		enabled := step.Op == OpEnableRecovery
		apply = func(ctx context.Context, sender common.Address) error {
			return w.vault.SetRecoveryMode(ctx, sender, ref.address, enabled)
		}
	case OpSetSwapFee:
		fee, err := parseFraction(step.Fee)
		if err != nil {
			return nil, err
		}
		apply = func(ctx context.Context, sender common.Address) error {
			return w.vault.SetStaticSwapFeePercentage(ctx, sender, ref.address, fee)
		}
	case OpSetAggregateFees:
		swapFee, err := parseFraction(step.Fee)
		if err != nil {
			return nil, err
		}
		yieldFee, err := parseFraction(step.YieldFee)
		if err != nil {
			return nil, err
		}
		apply = func(ctx context.Context, sender common.Address) error {
			return w.vault.SetAggregateFeePercentages(ctx, sender, ref.address, swapFee, yieldFee)
		}
	default:
		return nil, fmt.Errorf("unknown admin op %q", step.Op)
	}

	return func(ctx context.Context, sender common.Address) (StepResult, error) {
		if err := apply(ctx, sender); err != nil {
			return StepResult{}, err
		}
		return result, nil
	}, nil
}

func (w *world) pool(name string) (*poolRef, error) {
	ref, ok := w.pools[nameKey(name)]
	if !ok {
		return nil, fmt.Errorf("pool %q not declared", name)
	}
	return ref, nil
}

// amounts converts per-token values listed in PoolSpec order into raw
// amounts in registration order. An empty list uses fallback for every
// token, or fails when fallback is nil.
func (p *poolRef) amounts(values []string, fallback *uint256.Int) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(p.tokens))
	if len(values) == 0 {
		if fallback == nil {
			return nil, fmt.Errorf("amounts are required for pool %s", p.name)
		}
		for i := range out {
			out[i] = new(uint256.Int).Set(fallback)
		}
		return out, nil
	}
	if len(values) != len(p.tokens) {
		return nil, fmt.Errorf("%d amounts for %d tokens of pool %s", len(values), len(p.tokens), p.name)
	}
	for i, value := range values {
		idx := p.order[i]
		amount, err := parseUnits(value, p.tokens[idx].Decimals())
		if err != nil {
			return nil, err
		}
		out[idx] = amount
	}
	return out, nil
}

func (p *poolRef) symbols() []string {
	out := make([]string, len(p.tokens))
	for i, tk := range p.tokens {
		out[i] = tk.Symbol()
	}
	return out
}

func (p *poolRef) format(values []*uint256.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if i < len(p.tokens) {
			out[i] = formatUnits(v, p.tokens[i].Decimals())
		}
	}
	return out
}

func addKind(name string) (vault.AddLiquidityKind, error) {
	if name == "" {
		return vault.AddProportional, nil
	}
	for k := vault.AddProportional; k <= vault.AddCustom; k++ {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown add liquidity kind %q", name)
}

func removeKind(name string) (vault.RemoveLiquidityKind, error) {
	if name == "" {
		return vault.RemoveProportional, nil
	}
	for k := vault.RemoveProportional; k <= vault.RemoveCustom; k++ {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown remove liquidity kind %q", name)
}

// resolveAddress parses an explicit address or derives a stable one from
// the entity name.
func resolveAddress(kind, name, explicit string) (common.Address, error) {
	if explicit != "" {
		if !common.IsHexAddress(explicit) {
			return common.Address{}, fmt.Errorf("%s %s: invalid address %q", kind, name, explicit)
		}
		return common.HexToAddress(explicit), nil
	}
	return common.BytesToAddress(crypto.Keccak256([]byte(kind + ":" + nameKey(name)))), nil
}

func symbolSet(symbols []string) map[string]bool {
	out := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		out[nameKey(sym)] = true
	}
	return out
}
