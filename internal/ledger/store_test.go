package ledger

import (
	"testing"

	"github.com/tokamint/tokamint/internal/account"
)

func TestStoreZeroWritesDelete(t *testing.T) {
	s := newStore()
	a := account.New(mustPrincipal(t, 0x01), nil)

	s.setBalance(a, 100)
	if got := s.balanceOf(a); got != 100 {
		t.Fatalf("balance: got %d", got)
	}
	s.setBalance(a, 0)
	if _, exists := s.balances[a.Key()]; exists {
		t.Fatal("zero balance write must delete the entry")
	}
	if got := s.balanceOf(a); got != 0 {
		t.Fatalf("absent balance must read 0, got %d", got)
	}
}

func TestStoreAllowanceInnerMapCleanup(t *testing.T) {
	s := newStore()
	a := account.New(mustPrincipal(t, 0x01), nil)
	s1 := mustPrincipal(t, 0x02)
	s2 := mustPrincipal(t, 0x03)

	s.setAllowance(a, s1, 10)
	s.setAllowance(a, s2, 20)
	if got := s.allowanceCount(a); got != 2 {
		t.Fatalf("count: got %d", got)
	}

	s.setAllowance(a, s1, 0)
	if got := s.allowanceCount(a); got != 1 {
		t.Fatalf("count after revoke: got %d", got)
	}
	s.setAllowance(a, s2, 0)
	if _, exists := s.allowances[a.Key()]; exists {
		t.Fatal("emptied inner allowance map must be removed entirely")
	}

	// Revoking something that never existed is a no-op.
	s.setAllowance(a, s1, 0)
	if got := s.allowanceOf(a, s1); got != 0 {
		t.Fatalf("absent allowance must read 0, got %d", got)
	}
}

func TestStoreDistinguishesNilAndDefaultSubaccount(t *testing.T) {
	s := newStore()
	owner := mustPrincipal(t, 0x01)
	def := account.DefaultSubaccount()

	plain := account.New(owner, nil)
	explicit := account.New(owner, &def)

	s.setBalance(plain, 100)
	if got := s.balanceOf(explicit); got != 0 {
		t.Fatalf("explicit default subaccount must be a distinct entry, got %d", got)
	}
	s.setBalance(explicit, 50)
	if got := s.balanceOf(plain); got != 100 {
		t.Fatalf("plain account overwritten: %d", got)
	}
}
