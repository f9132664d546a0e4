package ledger

import (
	"fmt"

	"github.com/tokamint/tokamint/internal/account"
	"github.com/tokamint/tokamint/internal/principal"
)

// SnapshotVersion tags the current snapshot schema. Restore branches on the
// version so future schema changes can migrate old snapshots.
const SnapshotVersion = 1

// BalanceRecord is one persisted balance entry.
type BalanceRecord struct {
	Account account.Account `json:"account"`
	Amount  uint64          `json:"amount"`
}

// AllowanceRecord is one persisted approval entry.
type AllowanceRecord struct {
	Account account.Account     `json:"account"`
	Spender principal.Principal `json:"spender"`
	Amount  uint64              `json:"amount"`
}

// Snapshot is the versioned persistent state: everything that must survive a
// redeployment. All other in-memory structures are rebuilt from it.
type Snapshot struct {
	Version        int                 `json:"version"`
	Name           string              `json:"name"`
	Symbol         string              `json:"symbol"`
	Logo           string              `json:"logo,omitempty"`
	Decimals       uint8               `json:"decimals"`
	Fee            uint64              `json:"fee"`
	Owner          principal.Principal `json:"owner"`
	FeeRecipient   account.Account     `json:"fee_recipient"`
	MintingAccount *account.Account    `json:"minting_account,omitempty"`
	TotalSupply    uint64              `json:"total_supply"`
	TxCounter      uint64              `json:"tx_counter"`
	Balances       []BalanceRecord     `json:"balances"`
	Allowances     []AllowanceRecord   `json:"allowances"`
	DedupLog       []LogEntry          `json:"dedup_log"`
}

// Export captures the full persistent state.
func (l *Ledger) Export() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		Version:      SnapshotVersion,
		Name:         l.name,
		Symbol:       l.symbol,
		Logo:         l.logo,
		Decimals:     l.decimals,
		Fee:          l.fee,
		Owner:        l.owner,
		FeeRecipient: l.feeRecipient,
		TotalSupply:  l.store.totalSupply,
		TxCounter:    l.txCounter,
		DedupLog:     l.window.snapshot(),
	}
	if l.mintingAccount != nil {
		cp := *l.mintingAccount
		snap.MintingAccount = &cp
	}
	for _, h := range l.store.balances {
		snap.Balances = append(snap.Balances, BalanceRecord{Account: h.Account, Amount: h.Balance})
	}
	for _, entry := range l.store.allowances {
		for spenderKey, amount := range entry.spenders {
			snap.Allowances = append(snap.Allowances, AllowanceRecord{
				Account: entry.account,
				Spender: principal.Principal(spenderKey),
				Amount:  amount,
			})
		}
	}
	return snap
}

// Restore replaces the ledger's state with the snapshot contents. The
// genesis applied by New is discarded; the snapshot is authoritative.
func (l *Ledger) Restore(snap Snapshot) error {
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("ledger: unsupported snapshot version %d", snap.Version)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	st := newStore()
	for _, rec := range snap.Balances {
		st.setBalance(rec.Account, rec.Amount)
	}
	var supply uint64
	for _, h := range st.balances {
		supply += h.Balance
	}
	if supply != snap.TotalSupply {
		return fmt.Errorf("ledger: snapshot supply %d does not match balance sum %d",
			snap.TotalSupply, supply)
	}
	for _, rec := range snap.Allowances {
		st.setAllowance(rec.Account, rec.Spender, rec.Amount)
	}
	st.totalSupply = snap.TotalSupply

	l.name = snap.Name
	l.symbol = snap.Symbol
	l.logo = snap.Logo
	l.decimals = snap.Decimals
	l.fee = snap.Fee
	l.owner = snap.Owner
	l.feeRecipient = snap.FeeRecipient
	l.mintingAccount = nil
	if snap.MintingAccount != nil {
		cp := *snap.MintingAccount
		l.mintingAccount = &cp
	}
	l.store = st
	l.txCounter = snap.TxCounter
	l.window.restore(snap.DedupLog)
	return nil
}
