package vault

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/fixedpoint"
)

const (
	entrySwap            = "swap"
	entryAddLiquidity    = "addLiquidity"
	entryRemoveLiquidity = "removeLiquidity"
	entryInitialize      = "initialize"
	entryRecovery        = "removeLiquidityRecovery"
)

type sessionKey struct{}

func sessionFromContext(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

type roundTripKey struct {
	sessionID uint64
	pool      common.Address
}

// pendingTransfer is a payout queued for commit, or a pull that is handed
// back to its owner if the session does not commit.
type pendingTransfer struct {
	token  Token
	to     common.Address
	amount *uint256.Int
}

// Session is one atomic accounting window. It is only valid inside the
// function passed to Vault.Unlock or Vault.Quote and must not be used from
// other goroutines.
type Session struct {
	ctx    context.Context
	vault  *Vault
	id     uint64
	caller common.Address
	query  bool

	buf               *buffer
	ledger            *ledger
	addLiquidityFlags map[roundTripKey]bool
	active            map[string]bool
	busyPools         map[common.Address]string
	pendingOut        map[common.Address]*uint256.Int
	transfers         []pendingTransfer
	pulls             []pendingTransfer
	events            []Event

	closed bool
	err    error
}

func newSession(ctx context.Context, v *Vault, caller common.Address, query bool) *Session {
	s := &Session{
		vault:             v,
		id:                v.sessionID,
		caller:            caller,
		query:             query,
		buf:               newBuffer(v.st),
		ledger:            newLedger(),
		addLiquidityFlags: make(map[roundTripKey]bool),
		active:            make(map[string]bool),
		busyPools:         make(map[common.Address]string),
		pendingOut:        make(map[common.Address]*uint256.Int),
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx = context.WithValue(ctx, sessionKey{}, s)
	return s
}

// ID is the vault session id this session runs under.
func (s *Session) ID() uint64 { return s.id }

// Caller is the account that opened the session.
func (s *Session) Caller() common.Address { return s.caller }

// IsQuery reports whether the session will be discarded.
func (s *Session) IsQuery() bool { return s.query }

// Context carries the session; Vault.Unlock called with it joins this
// session instead of opening a new one.
func (s *Session) Context() context.Context { return s.ctx }

// Vault returns the owning vault.
func (s *Session) Vault() *Vault { return s.vault }

// Unlock runs fn inside this session. Nested entry is a no-op: the session
// neither reopens nor closes.
func (s *Session) Unlock(fn func(*Session) error) (err error) {
	if err := s.usable(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			ae, ok := r.(*fixedpoint.ArithmeticError)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("%w: %s", ErrMathOverflow, ae.Op)
		}
		if err != nil {
			s.fail(err)
			return
		}
		if s.err != nil {
			err = s.err
		}
	}()
	return fn(s)
}

func (s *Session) usable() error {
	if s.closed {
		return ErrSessionLocked
	}
	if s.err != nil {
		return fmt.Errorf("%w: %w", ErrSessionAborted, s.err)
	}
	return nil
}

func (s *Session) fail(err error) error {
	if s.err == nil {
		s.err = err
	}
	return err
}

// guarded runs op as one vault operation. A non-empty entry is
// non-reentrant, and pool may not be the target of another in-flight
// operation. Any failure poisons the session.
func (s *Session) guarded(entry string, pool common.Address, op func() error) (err error) {
	if err := s.usable(); err != nil {
		return err
	}
	if entry != "" {
		if s.active[entry] {
			return s.fail(fmt.Errorf("%w: %s", ErrReentrancy, entry))
		}
		if by, busy := s.busyPools[pool]; busy {
			return s.fail(fmt.Errorf("%w: pool %s is inside %s", ErrReentrancy, pool.Hex(), by))
		}
		s.active[entry] = true
		s.busyPools[pool] = entry
		defer func() {
			delete(s.active, entry)
			delete(s.busyPools, pool)
		}()
	}
	defer func() {
		if r := recover(); r != nil {
			ae, ok := r.(*fixedpoint.ArithmeticError)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("%w: %s", ErrMathOverflow, ae.Op)
		}
		if err != nil {
			s.fail(err)
		}
	}()
	return op()
}

// close settles the session. It checks the ledger and the vault's holdings,
// executes the queued outgoing transfers, then commits the buffer and
// publishes events.
func (s *Session) close() error {
	if s.err != nil {
		return s.err
	}
	if s.query {
		return nil
	}
	if !s.ledger.settled() {
		pending := s.ledger.outstanding()
		names := make([]string, len(pending))
		for i, token := range pending {
			names[i] = fmt.Sprintf("%s=%s", token.Hex(), s.ledger.delta(token))
		}
		return fmt.Errorf("%w: %d tokens outstanding (%s)", ErrBalanceNotSettled, len(pending), strings.Join(names, ", "))
	}

	if err := s.checkOutgoing(); err != nil {
		return err
	}
	v := s.vault
	for i, t := range s.transfers {
		if err := t.token.Transfer(v.address, t.to, t.amount); err != nil {
			v.logger.Error("outgoing transfer failed",
				zap.Uint64("session_id", s.id),
				zap.String("token", t.token.Address().Hex()),
				zap.String("to", t.to.Hex()),
				zap.String("amount", t.amount.Dec()),
				zap.Int("paid", i),
				zap.Error(err),
			)
			s.releasePaid(s.transfers[:i])
			return fmt.Errorf("transfer %s to %s: %w", t.token.Address().Hex(), t.to.Hex(), err)
		}
	}

	v.mu.Lock()
	s.buf.commit()
	v.sessionID++
	v.mu.Unlock()

	return v.publish(s.ctx, s.id, s.events)
}

// checkOutgoing verifies the vault holds every queued payout before any of
// them is executed.
func (s *Session) checkOutgoing() error {
	for token, out := range s.pendingOut {
		tk, err := s.vault.token(token)
		if err != nil {
			return err
		}
		if held := tk.BalanceOf(s.vault.address); held.Lt(out) {
			return fmt.Errorf("%w: token %s holds %s, paying out %s", ErrInsufficientReserves, token.Hex(), held.Dec(), out.Dec())
		}
	}
	return nil
}

// releasePaid removes payouts that already left the vault from the committed
// reserves, so the accounted holding never exceeds what the vault holds.
func (s *Session) releasePaid(paid []pendingTransfer) {
	if len(paid) == 0 {
		return
	}
	v := s.vault
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range paid {
		addr := t.token.Address()
		reserve, ok := v.st.reserves[addr]
		if !ok || reserve.Lt(t.amount) {
			v.st.reserves[addr] = new(uint256.Int)
			continue
		}
		v.st.reserves[addr] = fixedpoint.Sub(reserve, t.amount)
	}
}

// returnPulls hands every token pulled by SettleFrom back to its owner. It
// runs for sessions that do not commit.
func (s *Session) returnPulls() {
	v := s.vault
	for i := len(s.pulls) - 1; i >= 0; i-- {
		t := s.pulls[i]
		if err := t.token.Transfer(v.address, t.to, t.amount); err != nil {
			v.logger.Error("returning pulled tokens failed",
				zap.Uint64("session_id", s.id),
				zap.String("token", t.token.Address().Hex()),
				zap.String("to", t.to.Hex()),
				zap.String("amount", t.amount.Dec()),
				zap.Error(err),
			)
		}
	}
	s.pulls = nil
}

func (s *Session) emit(ev Event) {
	s.events = append(s.events, ev)
}

// Settle credits the caller with the tokens that arrived in the vault since
// the last observation, capped at hint, and returns the credited amount. A
// nil hint credits everything observed.
func (s *Session) Settle(token common.Address, hint *uint256.Int) (*uint256.Int, error) {
	var credit *uint256.Int
	err := s.guarded("", common.Address{}, func() error {
		tk, err := s.vault.token(token)
		if err != nil {
			return err
		}
		credit, err = s.settle(tk, hint)
		return err
	})
	if err != nil {
		return nil, err
	}
	return credit, nil
}

// SettleFrom pulls amount of token from from into the vault, spending
// spender's token allowance, and credits the caller with it. The pull is
// handed back to from if the session does not commit.
func (s *Session) SettleFrom(token, from, spender common.Address, amount *uint256.Int) (*uint256.Int, error) {
	var credit *uint256.Int
	err := s.guarded("", common.Address{}, func() error {
		tk, err := s.vault.token(token)
		if err != nil {
			return err
		}
		if err := tk.TransferFrom(spender, from, s.vault.address, amount); err != nil {
			return fmt.Errorf("pull %s from %s: %w", token.Hex(), from.Hex(), err)
		}
		s.pulls = append(s.pulls, pendingTransfer{token: tk, to: from, amount: fixedpoint.Copy(amount)})
		credit, err = s.settle(tk, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return credit, nil
}

func (s *Session) settle(tk Token, hint *uint256.Int) (*uint256.Int, error) {
	token := tk.Address()
	held := tk.BalanceOf(s.vault.address)
	if out, ok := s.pendingOut[token]; ok {
		if held.Lt(out) {
			return nil, fmt.Errorf("%w: token %s holds %s with %s pending out", ErrInsufficientReserves, token.Hex(), held.Dec(), out.Dec())
		}
		held = fixedpoint.Sub(held, out)
	}
	reserve := s.buf.reserve(token)
	if held.Lt(reserve) {
		return nil, fmt.Errorf("%w: token %s holds %s, reserve %s", ErrReservesDecreased, token.Hex(), held.Dec(), reserve.Dec())
	}
	credit := fixedpoint.Sub(held, reserve)
	if hint != nil && hint.Lt(credit) {
		credit = fixedpoint.Copy(hint)
	}
	s.buf.reserves.set(token, held)
	if err := s.ledger.credit(token, credit); err != nil {
		return nil, err
	}
	return credit, nil
}

// SendTo debits the caller and pays amount of token to to when the session
// commits.
func (s *Session) SendTo(token, to common.Address, amount *uint256.Int) error {
	return s.guarded("", common.Address{}, func() error {
		tk, err := s.vault.token(token)
		if err != nil {
			return err
		}
		reserve := s.buf.reserve(token)
		if reserve.Lt(amount) {
			return fmt.Errorf("%w: token %s reserve %s, requested %s", ErrInsufficientReserves, token.Hex(), reserve.Dec(), amount.Dec())
		}
		if err := s.ledger.debit(token, amount); err != nil {
			return err
		}
		s.buf.reserves.set(token, fixedpoint.Sub(reserve, amount))
		out, ok := s.pendingOut[token]
		if !ok {
			out = new(uint256.Int)
		}
		s.pendingOut[token] = fixedpoint.Add(out, amount)
		s.transfers = append(s.transfers, pendingTransfer{token: tk, to: to, amount: fixedpoint.Copy(amount)})
		return nil
	})
}

// TokenDelta returns the caller's outstanding amount of token: positive is
// owed to the vault, negative is owed to the caller.
func (s *Session) TokenDelta(token common.Address) *big.Int {
	return s.ledger.delta(token)
}

// NonZeroDeltaCount returns how many tokens are not yet settled.
func (s *Session) NonZeroDeltaCount() int {
	return s.ledger.nonZero
}

// TouchedTokens lists every token whose delta changed in this session, in
// first-touch order.
func (s *Session) TouchedTokens() []common.Address {
	out := make([]common.Address, len(s.ledger.touched))
	copy(out, s.ledger.touched)
	return out
}

// Reserve returns the session view of the vault's accounted holding.
func (s *Session) Reserve(token common.Address) *uint256.Int {
	return s.buf.reserve(token)
}

// PoolBalances returns the session view of a pool's balances.
func (s *Session) PoolBalances(pool common.Address) ([]PackedBalance, error) {
	if _, err := s.vault.pool(pool); err != nil {
		return nil, err
	}
	return s.buf.poolBalances(pool), nil
}

// TotalSupply returns the session view of a pool's share supply.
func (s *Session) TotalSupply(pool common.Address) *uint256.Int {
	return s.buf.totalSupply(pool)
}

// ShareBalance returns the session view of holder's shares.
func (s *Session) ShareBalance(pool, holder common.Address) *uint256.Int {
	return s.buf.shareBalance(pool, holder)
}

// Token resolves a registered token collaborator.
func (s *Session) Token(token common.Address) (Token, error) {
	return s.vault.token(token)
}

func (s *Session) markAddLiquidity(pool common.Address) {
	if s.query {
		return
	}
	s.addLiquidityFlags[roundTripKey{sessionID: s.id, pool: pool}] = true
}

func (s *Session) addLiquidityCalled(pool common.Address) bool {
	if s.query {
		return false
	}
	return s.addLiquidityFlags[roundTripKey{sessionID: s.id, pool: pool}]
}
