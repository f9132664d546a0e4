package ledger

import (
	"bytes"

	"github.com/tokamint/tokamint/internal/account"
	"github.com/tokamint/tokamint/internal/principal"
)

// TransferArgs carries a windowed transfer request as submitted by a caller.
// Fee and CreatedAtTime are optional; Memo is an opaque client blob.
type TransferArgs struct {
	FromSubaccount *account.Subaccount `json:"from_subaccount,omitempty"`
	To             account.Account     `json:"to"`
	Amount         uint64              `json:"amount"`
	Fee            *uint64             `json:"fee,omitempty"`
	Memo           []byte              `json:"memo,omitempty"`
	CreatedAtTime  *uint64             `json:"created_at_time,omitempty"`
}

// Transaction is the structurally comparable record the dedup window matches
// resubmissions against. CreatedAtTime is client wall-clock nanoseconds.
type Transaction struct {
	Caller         principal.Principal `json:"caller"`
	FromSubaccount *account.Subaccount `json:"from_subaccount,omitempty"`
	To             account.Account     `json:"to"`
	Amount         uint64              `json:"amount"`
	Fee            *uint64             `json:"fee,omitempty"`
	Memo           []byte              `json:"memo,omitempty"`
	CreatedAtTime  *uint64             `json:"created_at_time,omitempty"`
}

func newTransaction(caller principal.Principal, args TransferArgs) Transaction {
	return Transaction{
		Caller:         caller,
		FromSubaccount: args.FromSubaccount,
		To:             args.To,
		Amount:         args.Amount,
		Fee:            args.Fee,
		Memo:           args.Memo,
		CreatedAtTime:  args.CreatedAtTime,
	}
}

// Equal reports structural equality across every field.
func (t Transaction) Equal(o Transaction) bool {
	return t.Caller.Equal(o.Caller) &&
		subEqual(t.FromSubaccount, o.FromSubaccount) &&
		t.To.Equal(o.To) &&
		t.Amount == o.Amount &&
		uint64PtrEqual(t.Fee, o.Fee) &&
		bytes.Equal(t.Memo, o.Memo) &&
		uint64PtrEqual(t.CreatedAtTime, o.CreatedAtTime)
}

func subEqual(a, b *account.Subaccount) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func uint64PtrEqual(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
