// Package simulation replays scripted scenarios of sessions against an
// in-memory vault.
package simulation

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
)

// Step operations that run inside a vault session.
const (
	OpInitialize      = "initialize"
	OpSwapExactIn     = "swap_exact_in"
	OpSwapExactOut    = "swap_exact_out"
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpRemoveRecovery  = "remove_recovery"
	OpSend            = "send"
)

// Step operations that act on the vault outside a session.
const (
	OpSetRate          = "set_rate"
	OpPause            = "pause"
	OpUnpause          = "unpause"
	OpEnableRecovery   = "enable_recovery"
	OpDisableRecovery  = "disable_recovery"
	OpSetSwapFee       = "set_swap_fee"
	OpSetAggregateFees = "set_aggregate_fees"
)

var sessionOps = map[string]bool{
	OpInitialize:      true,
	OpSwapExactIn:     true,
	OpSwapExactOut:    true,
	OpAddLiquidity:    true,
	OpRemoveLiquidity: true,
	OpRemoveRecovery:  true,
	OpSend:            true,
}

var adminOps = map[string]bool{
	OpSetRate:          true,
	OpPause:            true,
	OpUnpause:          true,
	OpEnableRecovery:   true,
	OpDisableRecovery:  true,
	OpSetSwapFee:       true,
	OpSetAggregateFees: true,
}

// Pricing names.
const (
	PricingConstantSum     = "constant_sum"
	PricingConstantProduct = "constant_product"
)

// Scenario is a scripted run: the tokens, accounts and pools to set up and
// the sessions to replay against them, in order.
type Scenario struct {
	Admin    string
	Tokens   []TokenSpec
	Accounts []AccountSpec
	Pools    []PoolSpec
	Sessions []SessionSpec
}

// TokenSpec declares an in-memory token. Decimals may be left out when a
// resolver is configured.
type TokenSpec struct {
	Symbol   string `mapstructure:"symbol"`
	Address  string `mapstructure:"address"`
	Decimals *uint8 `mapstructure:"decimals"`
	// Rate is the initial 18-decimal rate as a decimal number, e.g. "1.05".
	Rate string `mapstructure:"rate"`
}

// AccountSpec names an address and the balances minted to it.
type AccountSpec struct {
	Name     string        `mapstructure:"name"`
	Address  string        `mapstructure:"address"`
	Balances []BalanceSpec `mapstructure:"balances"`
}

type BalanceSpec struct {
	Token  string `mapstructure:"token"`
	Amount string `mapstructure:"amount"`
}

// PoolSpec registers a pool. Fees are fractions, e.g. "0.003" for 0.30%.
type PoolSpec struct {
	Name                       string   `mapstructure:"name"`
	Address                    string   `mapstructure:"address"`
	Pricing                    string   `mapstructure:"pricing"`
	Tokens                     []string `mapstructure:"tokens"`
	RateTokens                 []string `mapstructure:"rate_tokens"`
	YieldFeeTokens             []string `mapstructure:"yield_fee_tokens"`
	SwapFee                    string   `mapstructure:"swap_fee"`
	AggregateSwapFee           string   `mapstructure:"aggregate_swap_fee"`
	AggregateYieldFee          string   `mapstructure:"aggregate_yield_fee"`
	DisableUnbalancedLiquidity bool     `mapstructure:"disable_unbalanced_liquidity"`
	EnableDonation             bool     `mapstructure:"enable_donation"`
}

// SessionSpec is one unit of replay. Session operations run in a single
// vault session; admin operations run one by one. The two cannot be mixed.
type SessionSpec struct {
	Name   string     `mapstructure:"name"`
	Sender string     `mapstructure:"sender"`
	Steps  []StepSpec `mapstructure:"steps"`
	// Quote runs the steps in a discarded session.
	Quote bool `mapstructure:"quote"`
	// Settle defaults to true. Without it the session closes with whatever
	// deltas the steps left open.
	Settle *bool `mapstructure:"settle"`
	// ExpectError names the vault sentinel the session must fail with.
	ExpectError string `mapstructure:"expect_error"`
}

// StepSpec is one operation. Token amounts are in token units and are
// scaled by the token's decimals; shares always use 18 decimals. Amounts
// lists follow the order of the pool's tokens in its PoolSpec.
type StepSpec struct {
	Op       string   `mapstructure:"op"`
	Pool     string   `mapstructure:"pool"`
	Token    string   `mapstructure:"token"`
	TokenIn  string   `mapstructure:"token_in"`
	TokenOut string   `mapstructure:"token_out"`
	Kind     string   `mapstructure:"kind"`
	Amount   string   `mapstructure:"amount"`
	Limit    string   `mapstructure:"limit"`
	Amounts  []string `mapstructure:"amounts"`
	Shares   string   `mapstructure:"shares"`
	Fee      string   `mapstructure:"fee"`
	YieldFee string   `mapstructure:"yield_fee"`
	Rate     string   `mapstructure:"rate"`
}

func (s SessionSpec) settles() bool {
	return s.Settle == nil || *s.Settle
}

func (s SessionSpec) isAdmin() bool {
	return len(s.Steps) > 0 && adminOps[s.Steps[0].Op]
}

// Load reads a scenario file in any format viper understands.
func Load(path string) (Scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	return decode(v)
}

// LoadReader reads a scenario of the given format ("yaml", "json", "toml").
func LoadReader(r io.Reader, format string) (Scenario, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (Scenario, error) {
	sc := Scenario{Admin: v.GetString("admin")}
	sections := []struct {
		key    string
		target interface{}
	}{
		{"tokens", &sc.Tokens},
		{"accounts", &sc.Accounts},
		{"pools", &sc.Pools},
		{"sessions", &sc.Sessions},
	}
	for _, section := range sections {
		if err := v.UnmarshalKey(section.key, section.target); err != nil {
			return Scenario{}, fmt.Errorf("decode %s: %w", section.key, err)
		}
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// Validate checks references between sections. Amount formats are checked
// when the scenario is prepared for a run.
func (sc Scenario) Validate() error {
	tokens := make(map[string]bool, len(sc.Tokens))
	for i, t := range sc.Tokens {
		key := nameKey(t.Symbol)
		if key == "" {
			return fmt.Errorf("token %d: missing symbol", i)
		}
		if tokens[key] {
			return fmt.Errorf("token %s: duplicate symbol", t.Symbol)
		}
		tokens[key] = true
	}

	accounts := make(map[string]bool, len(sc.Accounts))
	for i, a := range sc.Accounts {
		key := nameKey(a.Name)
		if key == "" {
			return fmt.Errorf("account %d: missing name", i)
		}
		if accounts[key] {
			return fmt.Errorf("account %s: duplicate name", a.Name)
		}
		accounts[key] = true
		for _, b := range a.Balances {
			if !tokens[nameKey(b.Token)] {
				return fmt.Errorf("account %s: unknown token %q", a.Name, b.Token)
			}
		}
	}
	if sc.Admin != "" && !accounts[nameKey(sc.Admin)] {
		return fmt.Errorf("admin %q is not a declared account", sc.Admin)
	}

	pools := make(map[string]bool, len(sc.Pools))
	for i, p := range sc.Pools {
		key := nameKey(p.Name)
		if key == "" {
			return fmt.Errorf("pool %d: missing name", i)
		}
		if pools[key] {
			return fmt.Errorf("pool %s: duplicate name", p.Name)
		}
		pools[key] = true
		switch p.Pricing {
		case PricingConstantSum, PricingConstantProduct:
		default:
			return fmt.Errorf("pool %s: unknown pricing %q", p.Name, p.Pricing)
		}
		for _, list := range [][]string{p.Tokens, p.RateTokens, p.YieldFeeTokens} {
			for _, sym := range list {
				if !tokens[nameKey(sym)] {
					return fmt.Errorf("pool %s: unknown token %q", p.Name, sym)
				}
			}
		}
	}

	for i, s := range sc.Sessions {
		label := s.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		if !accounts[nameKey(s.Sender)] {
			return fmt.Errorf("session %s: unknown sender %q", label, s.Sender)
		}
		if len(s.Steps) == 0 {
			return fmt.Errorf("session %s: no steps", label)
		}
		if s.ExpectError != "" {
			if _, ok := sentinel(s.ExpectError); !ok {
				return fmt.Errorf("session %s: unknown expected error %q", label, s.ExpectError)
			}
		}
		admin := s.isAdmin()
		for j, step := range s.Steps {
			switch {
			case adminOps[step.Op]:
				if !admin {
					return fmt.Errorf("session %s step %d: %s cannot run inside a session", label, j, step.Op)
				}
			case sessionOps[step.Op]:
				if admin {
					return fmt.Errorf("session %s step %d: %s cannot follow admin steps", label, j, step.Op)
				}
			default:
				return fmt.Errorf("session %s step %d: unknown op %q", label, j, step.Op)
			}
			if step.Pool != "" && !pools[nameKey(step.Pool)] {
				return fmt.Errorf("session %s step %d: unknown pool %q", label, j, step.Pool)
			}
			for _, sym := range []string{step.Token, step.TokenIn, step.TokenOut} {
				if sym != "" && !tokens[nameKey(sym)] {
					return fmt.Errorf("session %s step %d: unknown token %q", label, j, sym)
				}
			}
		}
		if admin && (s.Quote || !s.settles()) {
			return fmt.Errorf("session %s: admin steps cannot be quoted or left unsettled", label)
		}
	}
	return nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
