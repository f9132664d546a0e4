package ledger

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tokamint/tokamint/internal/account"
	"github.com/tokamint/tokamint/internal/audit"
	"github.com/tokamint/tokamint/internal/principal"
)

// AuditSink receives event records after a mutation commits. Implementations
// must never block the caller.
type AuditSink interface {
	Record(event audit.Event)
}

// Metadata is the read-only token description.
type Metadata struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Logo        string `json:"logo,omitempty"`
	Decimals    uint8  `json:"decimals"`
	Fee         uint64 `json:"fee"`
	TotalSupply uint64 `json:"total_supply"`
}

// Options configures a new Ledger.
type Options struct {
	Name          string
	Symbol        string
	Logo          string
	Decimals      uint8
	Fee           uint64
	Owner         principal.Principal
	FeeRecipient  *account.Account // defaults to the owner's default account
	InitialSupply uint64
	TxWindow      time.Duration
	Drift         time.Duration
	Audit         AuditSink
	Now           func() time.Time // defaults to time.Now
}

// Ledger is the accounting and replay-protection engine. A single mutex
// serializes every entry point, reproducing the single-writer
// run-to-completion execution model the state transitions assume. The only
// asynchronous step is audit emission, which happens strictly after commit
// and can never roll a transfer back.
type Ledger struct {
	mu sync.Mutex

	name     string
	symbol   string
	logo     string
	decimals uint8
	fee      uint64

	owner          principal.Principal
	feeRecipient   account.Account
	mintingAccount *account.Account

	store     *store
	window    *txWindow
	txCounter uint64

	audit AuditSink
	now   func() time.Time
}

// New builds a ledger and applies the genesis mint: the initial supply is
// credited to the owner's default account under transaction index 0, and the
// counter starts at 1 so the first accepted operation returns index 1.
func New(opts Options) *Ledger {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	feeRecipient := account.New(opts.Owner, nil)
	if opts.FeeRecipient != nil {
		feeRecipient = *opts.FeeRecipient
	}

	l := &Ledger{
		name:         opts.Name,
		symbol:       opts.Symbol,
		logo:         opts.Logo,
		decimals:     opts.Decimals,
		fee:          opts.Fee,
		owner:        opts.Owner,
		feeRecipient: feeRecipient,
		store:        newStore(),
		window:       newTxWindow(opts.TxWindow, opts.Drift),
		txCounter:    1,
		audit:        opts.Audit,
		now:          now,
	}

	genesis := account.New(opts.Owner, nil)
	l.store.setBalance(genesis, opts.InitialSupply)
	l.store.totalSupply = opts.InitialSupply
	l.emit(0, audit.KindMint, account.Account{}, genesis, opts.InitialSupply, 0, nil)
	return l
}

// Transfer moves value from the caller's default account, charging the
// configured fee to the fee recipient first.
func (l *Ledger) Transfer(caller principal.Principal, to account.Account, value uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := account.New(caller, nil)
	if !l.covers(l.store.balanceOf(from), value) {
		return 0, ErrInsufficientBalance
	}
	l.chargeFee(from)
	l.move(from, to, value)

	index := l.nextIndex()
	l.emit(index, audit.KindTransfer, from, to, value, l.fee, nil)
	return index, nil
}

// TransferFrom moves value out of another account under a prior approval.
// The spent allowance is value plus fee; the entry is deleted when it
// reaches zero.
func (l *Ledger) TransferFrom(caller principal.Principal, from, to account.Account, value uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.covers(l.store.balanceOf(from), value) {
		return 0, ErrInsufficientBalance
	}
	allowed := l.store.allowanceOf(from, caller)
	if !l.covers(allowed, value) {
		return 0, ErrInsufficientAllowance
	}

	l.chargeFee(from)
	l.move(from, to, value)
	l.store.setAllowance(from, caller, allowed-(value+l.fee))

	index := l.nextIndex()
	l.emit(index, audit.KindTransfer, from, to, value, l.fee, nil)
	return index, nil
}

// Approve grants a spender the right to withdraw from the caller's default
// account. Approving zero revokes the entry; a nonzero approval is stored as
// value plus fee, mirroring what TransferFrom will deduct.
func (l *Ledger) Approve(caller, spender principal.Principal, value uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := account.New(caller, nil)
	if l.store.balanceOf(from) < l.fee {
		return 0, ErrInsufficientBalance
	}
	if value > math.MaxUint64-l.fee {
		return 0, &GenericError{Message: "approval amount overflows"}
	}
	l.chargeFee(from)
	if value == 0 {
		l.store.setAllowance(from, spender, 0)
	} else {
		l.store.setAllowance(from, spender, value+l.fee)
	}

	index := l.nextIndex()
	l.emit(index, audit.KindApprove, from, account.New(spender, nil), value, l.fee, nil)
	return index, nil
}

// Mint creates value and credits it to an account. Owner only.
func (l *Ledger) Mint(caller principal.Principal, to account.Account, value uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !caller.Equal(l.owner) {
		return 0, ErrUnauthorized
	}
	l.store.setBalance(to, l.store.balanceOf(to)+value)
	l.store.totalSupply += value

	index := l.nextIndex()
	l.emit(index, audit.KindMint, account.Account{}, to, value, 0, nil)
	return index, nil
}

// Burn destroys value from the caller's own default account.
func (l *Ledger) Burn(caller principal.Principal, amount uint64) (uint64, error) {
	return l.BurnFor(caller, caller, amount)
}

// BurnFor destroys value from a user's default account. Permitted to the
// ledger owner and to the user themselves.
func (l *Ledger) BurnFor(caller, user principal.Principal, amount uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !caller.Equal(l.owner) && !caller.Equal(user) {
		return 0, ErrUnauthorized
	}
	from := account.New(user, nil)
	balance := l.store.balanceOf(from)
	if balance < amount {
		return 0, ErrInsufficientBalance
	}
	l.store.setBalance(from, balance-amount)
	l.store.totalSupply -= amount

	index := l.nextIndex()
	l.emit(index, audit.KindBurn, from, account.Account{}, amount, 0, nil)
	return index, nil
}

// TransferWindowed is the timestamped, replay-protected transfer entry point.
// The source is the caller plus the optional from-subaccount. Depending on
// the configured minting account the request is reinterpreted as a mint or a
// burn; otherwise it is an ordinary fee-charged transfer.
func (l *Ledger) TransferWindowed(caller principal.Principal, args TransferArgs) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := account.New(caller, args.FromSubaccount)
	if from.Equal(args.To) {
		return 0, errSelfTransfer()
	}

	tx := newTransaction(caller, args)
	now := l.now()
	if err := l.window.dedupe(now, tx); err != nil {
		return 0, err
	}

	kind := audit.KindTransfer
	fee := l.fee
	switch {
	case l.mintingAccount != nil && from.Equal(*l.mintingAccount):
		l.store.setBalance(args.To, l.store.balanceOf(args.To)+args.Amount)
		l.store.totalSupply += args.Amount
		kind, fee = audit.KindMint, 0

	case l.mintingAccount != nil && args.To.Equal(*l.mintingAccount):
		if args.Amount < l.fee {
			return 0, &BadBurnError{MinBurnAmount: l.fee}
		}
		balance := l.store.balanceOf(from)
		if balance < args.Amount {
			return 0, &InsufficientFundsError{Balance: balance}
		}
		l.store.setBalance(from, balance-args.Amount)
		l.store.totalSupply -= args.Amount
		kind, fee = audit.KindBurn, 0

	default:
		if args.Fee != nil && *args.Fee != l.fee {
			return 0, &BadFeeError{ExpectedFee: l.fee}
		}
		balance := l.store.balanceOf(from)
		if !l.covers(balance, args.Amount) {
			return 0, &InsufficientFundsError{Balance: balance}
		}
		l.chargeFee(from)
		l.move(from, args.To, args.Amount)
	}

	index := l.nextIndex()
	l.window.log(now, index, tx)
	l.emit(index, kind, from, args.To, args.Amount, fee, args.Memo)
	return index, nil
}

// covers reports whether balance can pay value plus the configured fee,
// guarding the uint64 addition against overflow.
func (l *Ledger) covers(balance, value uint64) bool {
	if value > math.MaxUint64-l.fee {
		return false
	}
	return balance >= value+l.fee
}

// move unconditionally debits from and credits to. Callers must have
// validated sufficiency; an underflow here is a broken invariant, not a
// recoverable condition.
func (l *Ledger) move(from, to account.Account, value uint64) {
	balance := l.store.balanceOf(from)
	if balance < value {
		panic("ledger: debit exceeds balance")
	}
	l.store.setBalance(from, balance-value)
	l.store.setBalance(to, l.store.balanceOf(to)+value)
}

func (l *Ledger) chargeFee(from account.Account) {
	if l.fee > 0 {
		l.move(from, l.feeRecipient, l.fee)
	}
}

// nextIndex returns the index assigned to the committing operation and bumps
// the running counter.
func (l *Ledger) nextIndex() uint64 {
	index := l.txCounter
	l.txCounter++
	return index
}

func (l *Ledger) emit(index uint64, kind string, from, to account.Account, amount, fee uint64, memo []byte) {
	if l.audit == nil {
		return
	}
	var fromText, toText string
	if len(from.Owner) > 0 {
		fromText = from.Encode()
	}
	if len(to.Owner) > 0 {
		toText = to.Encode()
	}
	l.audit.Record(audit.Event{
		ID:        uuid.NewString(),
		Index:     index,
		Kind:      kind,
		From:      fromText,
		To:        toText,
		Amount:    amount,
		Fee:       fee,
		Memo:      memo,
		Timestamp: l.now().UTC(),
	})
}

// BalanceOf returns the current balance, zero for unknown accounts.
func (l *Ledger) BalanceOf(a account.Account) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.balanceOf(a)
}

// Allowance returns the amount a spender may still withdraw from an account.
func (l *Ledger) Allowance(a account.Account, spender principal.Principal) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.allowanceOf(a, spender)
}

// TotalSupply returns the circulating supply.
func (l *Ledger) TotalSupply() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.totalSupply
}

// Metadata returns the token description.
func (l *Ledger) Metadata() Metadata {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Metadata{
		Name:        l.name,
		Symbol:      l.symbol,
		Logo:        l.logo,
		Decimals:    l.decimals,
		Fee:         l.fee,
		TotalSupply: l.store.totalSupply,
	}
}

// Holders returns a page of balance holders sorted by descending balance.
// Ties keep the store's native iteration order.
func (l *Ledger) Holders(offset, limit int) []Holder {
	l.mu.Lock()
	defer l.mu.Unlock()

	holders := l.store.holders()
	sort.SliceStable(holders, func(i, j int) bool {
		return holders[i].Balance > holders[j].Balance
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(holders) {
		return nil
	}
	holders = holders[offset:]
	if limit > 0 && limit < len(holders) {
		holders = holders[:limit]
	}
	return holders
}

// HolderCount returns the number of accounts with a nonzero balance.
func (l *Ledger) HolderCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.store.balances)
}

// AllowanceCount returns the number of live approvals on one account.
func (l *Ledger) AllowanceCount(a account.Account) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.allowanceCount(a)
}

// OwnerAllowanceCount returns the number of live approvals across every
// account of an owner identity.
func (l *Ledger) OwnerAllowanceCount(owner principal.Principal) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.ownerAllowanceCount(owner)
}

// SetName renames the token. Owner only; no state change on failure.
func (l *Ledger) SetName(caller principal.Principal, name string) error {
	return l.adminSet(caller, func() { l.name = name })
}

// SetLogo replaces the token logo reference. Owner only.
func (l *Ledger) SetLogo(caller principal.Principal, logo string) error {
	return l.adminSet(caller, func() { l.logo = logo })
}

// SetFee changes the per-operation fee. Owner only.
func (l *Ledger) SetFee(caller principal.Principal, fee uint64) error {
	return l.adminSet(caller, func() { l.fee = fee })
}

// SetFeeRecipient redirects collected fees. Owner only.
func (l *Ledger) SetFeeRecipient(caller principal.Principal, to account.Account) error {
	return l.adminSet(caller, func() { l.feeRecipient = to })
}

// SetMintingAccount configures the account whose use as transfer source or
// destination reinterprets the transfer as mint or burn. Owner only.
func (l *Ledger) SetMintingAccount(caller principal.Principal, a *account.Account) error {
	return l.adminSet(caller, func() {
		if a == nil {
			l.mintingAccount = nil
			return
		}
		cp := *a
		l.mintingAccount = &cp
	})
}

func (l *Ledger) adminSet(caller principal.Principal, apply func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !caller.Equal(l.owner) {
		return ErrUnauthorized
	}
	apply()
	return nil
}
