package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/tokamint/tokamint/internal/account"
	"github.com/tokamint/tokamint/internal/principal"
)

func mustPrincipal(t *testing.T, raw ...byte) principal.Principal {
	t.Helper()
	p, err := principal.New(raw)
	if err != nil {
		t.Fatalf("new principal: %v", err)
	}
	return p
}

// fixedClock returns a controllable clock starting at a realistic instant.
type fixedClock struct {
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time            { return c.now }
func (c *fixedClock) Advance(d time.Duration)   { c.now = c.now.Add(d) }
func (c *fixedClock) NanosUint64() uint64       { return uint64(c.now.UnixNano()) }
func (c *fixedClock) At(d time.Duration) uint64 { return uint64(c.now.Add(d).UnixNano()) }

func (l *Ledger) sumBalances() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum uint64
	for _, h := range l.store.balances {
		sum += h.Balance
	}
	return sum
}

func (l *Ledger) assertInvariants(t *testing.T) {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum uint64
	for key, h := range l.store.balances {
		if h.Balance == 0 {
			t.Fatalf("zero balance persisted for key %x", key)
		}
		sum += h.Balance
	}
	if sum != l.store.totalSupply {
		t.Fatalf("supply %d does not match balance sum %d", l.store.totalSupply, sum)
	}
	for key, entry := range l.store.allowances {
		if len(entry.spenders) == 0 {
			t.Fatalf("empty allowance map persisted for key %x", key)
		}
		for spender, amount := range entry.spenders {
			if amount == 0 {
				t.Fatalf("zero allowance persisted for spender %x", spender)
			}
		}
	}
}

func TestGenesisMintAndFeeScenario(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	alice := mustPrincipal(t, 0x02)
	collector := mustPrincipal(t, 0x03)

	feeRecipient := account.New(collector, nil)
	l := New(Options{
		Name: "Tokamint", Symbol: "TKM", Decimals: 8,
		Fee:           10,
		Owner:         owner,
		FeeRecipient:  &feeRecipient,
		InitialSupply: 1_000_000,
	})

	if got := l.TotalSupply(); got != 1_000_000 {
		t.Fatalf("genesis supply: got %d", got)
	}

	index, err := l.Transfer(owner, account.New(alice, nil), 100)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if index != 1 {
		t.Fatalf("first operation must return index 1 (0 is genesis), got %d", index)
	}

	if got := l.BalanceOf(account.New(owner, nil)); got != 999_890 {
		t.Fatalf("owner balance: got %d, want 999890", got)
	}
	if got := l.BalanceOf(account.New(alice, nil)); got != 100 {
		t.Fatalf("alice balance: got %d, want 100", got)
	}
	if got := l.BalanceOf(feeRecipient); got != 10 {
		t.Fatalf("fee recipient balance: got %d, want 10", got)
	}
	l.assertInvariants(t)
}

func TestTransferInsufficientBalance(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	poor := mustPrincipal(t, 0x02)
	collector := account.New(mustPrincipal(t, 0x03), nil)
	l := New(Options{Owner: owner, Fee: 5, InitialSupply: 1_000, FeeRecipient: &collector})

	if _, err := l.Transfer(poor, account.New(owner, nil), 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// Exactly value+fee must pass; one unit less must not.
	if _, err := l.Transfer(owner, account.New(poor, nil), 995); err != nil {
		t.Fatalf("transfer of value+fee==balance should succeed: %v", err)
	}
	if got := l.BalanceOf(account.New(owner, nil)); got != 0 {
		t.Fatalf("owner should be drained, got %d", got)
	}
	l.assertInvariants(t)
}

func TestSupplyConservedUnderTransfersAndApprovals(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	a := mustPrincipal(t, 0x02)
	b := mustPrincipal(t, 0x03)
	l := New(Options{Owner: owner, Fee: 3, InitialSupply: 10_000})

	ops := []func() error{
		func() error { _, err := l.Transfer(owner, account.New(a, nil), 500); return err },
		func() error { _, err := l.Approve(a, b, 100); return err },
		func() error { _, err := l.TransferFrom(b, account.New(a, nil), account.New(b, nil), 50); return err },
		func() error { _, err := l.Transfer(b, account.New(owner, nil), 10); return err },
	}
	for i, op := range ops {
		if err := op(); err != nil {
			t.Fatalf("op %d: %v", i, err)
		}
		if sum := l.sumBalances(); sum != 10_000 {
			t.Fatalf("supply not conserved after op %d: %d", i, sum)
		}
		l.assertInvariants(t)
	}
	if got := l.TotalSupply(); got != 10_000 {
		t.Fatalf("total supply changed without mint/burn: %d", got)
	}
}

func TestApproveAndTransferFromScenario(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	spender := mustPrincipal(t, 0x02)
	dest := mustPrincipal(t, 0x03)
	l := New(Options{Owner: owner, Fee: 0, InitialSupply: 1_000})

	ownerAcct := account.New(owner, nil)
	if _, err := l.Approve(owner, spender, 50); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := l.Allowance(ownerAcct, spender); got != 50 {
		t.Fatalf("allowance: got %d, want 50", got)
	}
	if got := l.AllowanceCount(ownerAcct); got != 1 {
		t.Fatalf("allowance count: got %d", got)
	}

	if _, err := l.TransferFrom(spender, ownerAcct, account.New(dest, nil), 50); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if got := l.BalanceOf(account.New(dest, nil)); got != 50 {
		t.Fatalf("dest balance: got %d", got)
	}
	if got := l.Allowance(ownerAcct, spender); got != 0 {
		t.Fatalf("allowance must be spent, got %d", got)
	}
	if got := l.AllowanceCount(ownerAcct); got != 0 {
		t.Fatalf("spent allowance entry must be removed, count %d", got)
	}

	if _, err := l.TransferFrom(spender, ownerAcct, account.New(dest, nil), 1); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	l.assertInvariants(t)
}

func TestApproveStoresValuePlusFeeAndZeroRevokes(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	spender := mustPrincipal(t, 0x02)
	l := New(Options{Owner: owner, Fee: 10, InitialSupply: 1_000})

	ownerAcct := account.New(owner, nil)
	if _, err := l.Approve(owner, spender, 40); err != nil {
		t.Fatalf("approve: %v", err)
	}
	// The stored allowance covers the value plus the fee TransferFrom charges.
	if got := l.Allowance(ownerAcct, spender); got != 50 {
		t.Fatalf("allowance: got %d, want 50", got)
	}

	if _, err := l.Approve(owner, spender, 0); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if got := l.Allowance(ownerAcct, spender); got != 0 {
		t.Fatalf("revoked allowance must read 0, got %d", got)
	}
	if got := l.AllowanceCount(ownerAcct); got != 0 {
		t.Fatalf("revoked entry must be deleted, count %d", got)
	}
	l.assertInvariants(t)
}

func TestMintRequiresOwner(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	mallory := mustPrincipal(t, 0x02)
	l := New(Options{Owner: owner, InitialSupply: 0})

	if _, err := l.Mint(mallory, account.New(mallory, nil), 100); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	index, err := l.Mint(owner, account.New(mallory, nil), 100)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if index != 1 {
		t.Fatalf("expected index 1, got %d", index)
	}
	if got := l.TotalSupply(); got != 100 {
		t.Fatalf("supply after mint: %d", got)
	}
	l.assertInvariants(t)
}

func TestBurnAndBurnFor(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	user := mustPrincipal(t, 0x02)
	other := mustPrincipal(t, 0x03)
	l := New(Options{Owner: owner, InitialSupply: 1_000})

	if _, err := l.Transfer(owner, account.New(user, nil), 300); err != nil {
		t.Fatalf("fund user: %v", err)
	}

	// Users may burn their own funds.
	if _, err := l.Burn(user, 100); err != nil {
		t.Fatalf("self burn: %v", err)
	}
	if got := l.TotalSupply(); got != 900 {
		t.Fatalf("supply after burn: %d", got)
	}

	// The ledger owner may burn on a user's behalf; strangers may not.
	if _, err := l.BurnFor(other, user, 50); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := l.BurnFor(owner, user, 50); err != nil {
		t.Fatalf("owner burnFor: %v", err)
	}
	if got := l.BalanceOf(account.New(user, nil)); got != 150 {
		t.Fatalf("user balance after burns: %d", got)
	}

	if _, err := l.Burn(user, 1_000); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	l.assertInvariants(t)
}

func TestZeroBalanceEntriesAreElided(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	a := mustPrincipal(t, 0x02)
	l := New(Options{Owner: owner, Fee: 0, InitialSupply: 100})

	if _, err := l.Transfer(owner, account.New(a, nil), 100); err != nil {
		t.Fatalf("drain owner: %v", err)
	}
	if got := l.HolderCount(); got != 1 {
		t.Fatalf("drained account must be removed, holder count %d", got)
	}
	if got := l.BalanceOf(account.New(owner, nil)); got != 0 {
		t.Fatalf("drained account must read zero, got %d", got)
	}
	l.assertInvariants(t)
}

func TestHoldersSortedByDescendingBalance(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	l := New(Options{Owner: owner, Fee: 0, InitialSupply: 1_000})

	recipients := []struct {
		p      principal.Principal
		amount uint64
	}{
		{mustPrincipal(t, 0x02), 300},
		{mustPrincipal(t, 0x03), 500},
		{mustPrincipal(t, 0x04), 100},
	}
	for _, r := range recipients {
		if _, err := l.Transfer(owner, account.New(r.p, nil), r.amount); err != nil {
			t.Fatalf("transfer: %v", err)
		}
	}

	holders := l.Holders(0, 0)
	if len(holders) != 4 {
		t.Fatalf("expected 4 holders, got %d", len(holders))
	}
	for i := 1; i < len(holders); i++ {
		if holders[i].Balance > holders[i-1].Balance {
			t.Fatalf("holders not sorted descending: %v", holders)
		}
	}

	page := l.Holders(1, 2)
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
	if page[0].Balance != 300 || page[1].Balance != 100 {
		t.Fatalf("unexpected page contents: %v", page)
	}
	if got := l.Holders(10, 5); got != nil {
		t.Fatalf("out-of-range page must be empty, got %v", got)
	}
}

func TestOwnerAllowanceCountSpansSubaccounts(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	grantor := mustPrincipal(t, 0x02)
	s1 := mustPrincipal(t, 0x03)
	s2 := mustPrincipal(t, 0x04)
	l := New(Options{Owner: owner, Fee: 0, InitialSupply: 1_000})

	if _, err := l.Approve(grantor, s1, 10); err != nil {
		t.Fatalf("approve s1: %v", err)
	}
	if _, err := l.Approve(grantor, s2, 20); err != nil {
		t.Fatalf("approve s2: %v", err)
	}

	if got := l.OwnerAllowanceCount(grantor); got != 2 {
		t.Fatalf("owner allowance count: got %d, want 2", got)
	}
	if got := l.OwnerAllowanceCount(owner); got != 0 {
		t.Fatalf("owner has no approvals, got %d", got)
	}
}

func TestAdminSettersRequireOwner(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	mallory := mustPrincipal(t, 0x02)
	l := New(Options{Owner: owner, Name: "Before", Fee: 1, InitialSupply: 100})

	if err := l.SetFee(mallory, 99); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if got := l.Metadata().Fee; got != 1 {
		t.Fatalf("fee must be unchanged after rejected set, got %d", got)
	}

	if err := l.SetFee(owner, 2); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if err := l.SetName(owner, "After"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	md := l.Metadata()
	if md.Fee != 2 || md.Name != "After" {
		t.Fatalf("metadata not updated: %+v", md)
	}
}

func TestTransferWindowedRejectsSelfTransfer(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	l := New(Options{Owner: owner, Fee: 0, InitialSupply: 1_000})

	for _, amount := range []uint64{0, 1, 1_000_000} {
		_, err := l.TransferWindowed(owner, TransferArgs{
			To:     account.New(owner, nil),
			Amount: amount,
		})
		var generic *GenericError
		if !errors.As(err, &generic) {
			t.Fatalf("amount %d: expected GenericError, got %v", amount, err)
		}
	}
	if got := l.BalanceOf(account.New(owner, nil)); got != 1_000 {
		t.Fatalf("rejected self-transfer must not mutate, balance %d", got)
	}
}

func TestTransferWindowedFeeValidation(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	dest := mustPrincipal(t, 0x02)
	l := New(Options{Owner: owner, Fee: 10, InitialSupply: 1_000})

	badFee := uint64(3)
	_, err := l.TransferWindowed(owner, TransferArgs{
		To: account.New(dest, nil), Amount: 100, Fee: &badFee,
	})
	var bad *BadFeeError
	if !errors.As(err, &bad) {
		t.Fatalf("expected BadFeeError, got %v", err)
	}
	if bad.ExpectedFee != 10 {
		t.Fatalf("expected fee 10 in error, got %d", bad.ExpectedFee)
	}

	goodFee := uint64(10)
	if _, err := l.TransferWindowed(owner, TransferArgs{
		To: account.New(dest, nil), Amount: 100, Fee: &goodFee,
	}); err != nil {
		t.Fatalf("declared matching fee must pass: %v", err)
	}
	l.assertInvariants(t)
}

func TestTransferWindowedReportsBalanceOnRejection(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	dest := mustPrincipal(t, 0x02)
	l := New(Options{Owner: owner, Fee: 10, InitialSupply: 50})

	_, err := l.TransferWindowed(owner, TransferArgs{To: account.New(dest, nil), Amount: 100})
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if insufficient.Balance != 50 {
		t.Fatalf("error must report current balance, got %d", insufficient.Balance)
	}
}

func TestTransferWindowedMintingAccountRouting(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	minter := mustPrincipal(t, 0x02)
	user := mustPrincipal(t, 0x03)
	l := New(Options{Owner: owner, Fee: 10, InitialSupply: 1_000})

	minting := account.New(minter, nil)
	if err := l.SetMintingAccount(owner, &minting); err != nil {
		t.Fatalf("set minting account: %v", err)
	}

	// Transfer FROM the minting account mints: supply grows, no fee charged.
	if _, err := l.TransferWindowed(minter, TransferArgs{
		To: account.New(user, nil), Amount: 500,
	}); err != nil {
		t.Fatalf("mint via transfer: %v", err)
	}
	if got := l.TotalSupply(); got != 1_500 {
		t.Fatalf("supply after mint: %d", got)
	}
	if got := l.BalanceOf(account.New(user, nil)); got != 500 {
		t.Fatalf("user balance after mint: %d", got)
	}

	// Transfer TO the minting account burns. Below the fee it is a bad burn.
	_, err := l.TransferWindowed(user, TransferArgs{To: minting, Amount: 5})
	var badBurn *BadBurnError
	if !errors.As(err, &badBurn) {
		t.Fatalf("expected BadBurnError, got %v", err)
	}
	if badBurn.MinBurnAmount != 10 {
		t.Fatalf("min burn amount: got %d", badBurn.MinBurnAmount)
	}

	if _, err := l.TransferWindowed(user, TransferArgs{To: minting, Amount: 200}); err != nil {
		t.Fatalf("burn via transfer: %v", err)
	}
	if got := l.TotalSupply(); got != 1_300 {
		t.Fatalf("supply after burn: %d", got)
	}
	if got := l.BalanceOf(account.New(user, nil)); got != 300 {
		t.Fatalf("user balance after burn: %d", got)
	}
	l.assertInvariants(t)
}

func TestTransferWindowedSubaccountsAreDistinctBalances(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	user := mustPrincipal(t, 0x02)
	l := New(Options{Owner: owner, Fee: 0, InitialSupply: 1_000})

	var sub account.Subaccount
	sub[31] = 7
	subAcct := account.New(user, &sub)

	if _, err := l.TransferWindowed(owner, TransferArgs{To: subAcct, Amount: 100}); err != nil {
		t.Fatalf("fund subaccount: %v", err)
	}
	if got := l.BalanceOf(subAcct); got != 100 {
		t.Fatalf("subaccount balance: %d", got)
	}
	if got := l.BalanceOf(account.New(user, nil)); got != 0 {
		t.Fatalf("default account must be untouched, got %d", got)
	}

	// Spend from the subaccount via the from-subaccount selector.
	if _, err := l.TransferWindowed(user, TransferArgs{
		FromSubaccount: &sub,
		To:             account.New(owner, nil),
		Amount:         40,
	}); err != nil {
		t.Fatalf("spend from subaccount: %v", err)
	}
	if got := l.BalanceOf(subAcct); got != 60 {
		t.Fatalf("subaccount balance after spend: %d", got)
	}
	l.assertInvariants(t)
}

func TestIndicesAreStrictlyMonotonic(t *testing.T) {
	owner := mustPrincipal(t, 0x01)
	dest := mustPrincipal(t, 0x02)
	l := New(Options{Owner: owner, Fee: 0, InitialSupply: 1_000})

	var last uint64
	for i := 0; i < 5; i++ {
		index, err := l.Transfer(owner, account.New(dest, nil), 10)
		if err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
		if index != last+1 {
			t.Fatalf("expected index %d, got %d", last+1, index)
		}
		last = index
	}

	// Rejected operations must not consume indices.
	if _, err := l.Transfer(dest, account.New(owner, nil), 10_000); err == nil {
		t.Fatal("expected rejection")
	}
	index, err := l.Transfer(owner, account.New(dest, nil), 10)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if index != last+1 {
		t.Fatalf("rejection consumed an index: got %d, want %d", index, last+1)
	}
}
