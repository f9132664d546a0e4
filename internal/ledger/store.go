package ledger

import (
	"github.com/tokamint/tokamint/internal/account"
	"github.com/tokamint/tokamint/internal/principal"
)

// Holder pairs an account with its current balance.
type Holder struct {
	Account account.Account `json:"account"`
	Balance uint64          `json:"balance"`
}

type allowanceEntry struct {
	account  account.Account
	spenders map[string]uint64 // principal key -> approved amount
}

// store holds balances, allowances and the supply counter. Zero values are
// never persisted: writing zero deletes the entry, an emptied inner spender
// map is dropped entirely, and every read defaults to zero. There is no
// "unknown account" state.
//
// The store is not safe for concurrent use; the owning Ledger serializes
// access.
type store struct {
	balances    map[string]Holder
	allowances  map[string]*allowanceEntry
	totalSupply uint64
}

func newStore() *store {
	return &store{
		balances:   make(map[string]Holder),
		allowances: make(map[string]*allowanceEntry),
	}
}

func (s *store) balanceOf(a account.Account) uint64 {
	return s.balances[a.Key()].Balance
}

func (s *store) setBalance(a account.Account, value uint64) {
	key := a.Key()
	if value == 0 {
		delete(s.balances, key)
		return
	}
	s.balances[key] = Holder{Account: a, Balance: value}
}

func (s *store) allowanceOf(a account.Account, spender principal.Principal) uint64 {
	entry, ok := s.allowances[a.Key()]
	if !ok {
		return 0
	}
	return entry.spenders[spender.Key()]
}

func (s *store) setAllowance(a account.Account, spender principal.Principal, value uint64) {
	key := a.Key()
	entry, ok := s.allowances[key]
	if value == 0 {
		if !ok {
			return
		}
		delete(entry.spenders, spender.Key())
		if len(entry.spenders) == 0 {
			delete(s.allowances, key)
		}
		return
	}
	if !ok {
		entry = &allowanceEntry{account: a, spenders: make(map[string]uint64)}
		s.allowances[key] = entry
	}
	entry.spenders[spender.Key()] = value
}

// allowanceCount returns the number of live approvals on one account.
func (s *store) allowanceCount(a account.Account) int {
	entry, ok := s.allowances[a.Key()]
	if !ok {
		return 0
	}
	return len(entry.spenders)
}

// ownerAllowanceCount returns the number of live approvals across every
// account of the given owner identity.
func (s *store) ownerAllowanceCount(owner principal.Principal) int {
	n := 0
	for _, entry := range s.allowances {
		if entry.account.Owner.Equal(owner) {
			n += len(entry.spenders)
		}
	}
	return n
}

// holders returns a copy of every balance entry in native iteration order.
func (s *store) holders() []Holder {
	out := make([]Holder, 0, len(s.balances))
	for _, h := range s.balances {
		out = append(out, h)
	}
	return out
}
