package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientBalance occurs when the debited account cannot cover the
	// transfer value plus fee.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance occurs when the spender's approved amount
	// cannot cover a delegated transfer plus fee.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrUnauthorized indicates the caller may not perform the operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTooOld rejects a transfer timestamped before the dedup window.
	ErrTooOld = errors.New("transaction too old")

	// ErrTemporarilyUnavailable indicates the ledger cannot accept mutations
	// right now, e.g. while draining for shutdown.
	ErrTemporarilyUnavailable = errors.New("ledger temporarily unavailable")
)

// BadFeeError rejects a declared fee that does not match the configured fee.
type BadFeeError struct {
	ExpectedFee uint64
}

func (e *BadFeeError) Error() string {
	return fmt.Sprintf("bad fee: expected %d", e.ExpectedFee)
}

// BadBurnError rejects a burn below the minimum burn amount.
type BadBurnError struct {
	MinBurnAmount uint64
}

func (e *BadBurnError) Error() string {
	return fmt.Sprintf("bad burn: minimum burn amount is %d", e.MinBurnAmount)
}

// InsufficientFundsError rejects a windowed transfer the source balance
// cannot cover, reporting that balance.
type InsufficientFundsError struct {
	Balance uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d", e.Balance)
}

// CreatedInFutureError rejects a transfer timestamped beyond the permitted
// clock drift, reporting the ledger's own clock.
type CreatedInFutureError struct {
	LedgerTime uint64
}

func (e *CreatedInFutureError) Error() string {
	return fmt.Sprintf("created in future: ledger time %d", e.LedgerTime)
}

// DuplicateError rejects a transfer structurally identical to one already in
// the dedup window. DuplicateOf is the ledger transaction index originally
// assigned to the matched transfer.
type DuplicateError struct {
	DuplicateOf uint64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate of transaction %d", e.DuplicateOf)
}

// GenericError carries a rejection that fits no dedicated variant, such as a
// self-transfer.
type GenericError struct {
	Code    uint64
	Message string
}

func (e *GenericError) Error() string {
	return fmt.Sprintf("rejected (%d): %s", e.Code, e.Message)
}

func errSelfTransfer() error {
	return &GenericError{Code: 0, Message: "transfer source and destination are the same account"}
}
