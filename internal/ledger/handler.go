package ledger

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tokamint/tokamint/internal/account"
	"github.com/tokamint/tokamint/internal/principal"
)

// Handler exposes ledger HTTP endpoints. Accounts travel as structured JSON
// (owner text plus optional hex subaccount) because packed account text is
// not decodable.
type Handler struct {
	ledger *Ledger
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

type accountRef struct {
	Owner      string `json:"owner"`
	Subaccount string `json:"subaccount,omitempty"`
}

func (r accountRef) resolve() (account.Account, error) {
	owner, err := principal.FromText(r.Owner)
	if err != nil {
		return account.Account{}, err
	}
	if r.Subaccount == "" {
		return account.New(owner, nil), nil
	}
	sub, err := account.SubaccountFromHex(r.Subaccount)
	if err != nil {
		return account.Account{}, err
	}
	return account.New(owner, &sub), nil
}

type indexResponse struct {
	Index uint64 `json:"index"`
}

// Metadata returns the token description.
func (h *Handler) Metadata(c *fiber.Ctx) error {
	return c.JSON(h.ledger.Metadata())
}

type balanceRequest struct {
	Account accountRef `json:"account"`
}

// Balance returns the balance of one account.
func (h *Handler) Balance(c *fiber.Ctx) error {
	var req balanceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acct, err := req.Account.resolve()
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{
		"account": acct.Encode(),
		"balance": h.ledger.BalanceOf(acct),
	})
}

type allowanceRequest struct {
	Account accountRef `json:"account"`
	Spender string     `json:"spender"`
}

// Allowance returns the remaining approved amount for a spender.
func (h *Handler) Allowance(c *fiber.Ctx) error {
	var req allowanceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acct, err := req.Account.resolve()
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	spender, err := principal.FromText(req.Spender)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{
		"allowance": h.ledger.Allowance(acct, spender),
	})
}

// Holders returns a page of balance holders, richest first.
func (h *Handler) Holders(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)

	holders := h.ledger.Holders(offset, limit)
	out := make([]fiber.Map, 0, len(holders))
	for _, holder := range holders {
		out = append(out, fiber.Map{
			"account": holder.Account.Encode(),
			"balance": holder.Balance,
		})
	}
	return c.JSON(fiber.Map{
		"total":   h.ledger.HolderCount(),
		"holders": out,
	})
}

// OwnerApprovals returns the number of live approvals across all accounts of
// an owner identity.
func (h *Handler) OwnerApprovals(c *fiber.Ctx) error {
	owner, err := principal.FromText(c.Params("owner"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{
		"owner":     owner.String(),
		"approvals": h.ledger.OwnerAllowanceCount(owner),
	})
}

type windowedTransferRequest struct {
	Caller         string     `json:"caller"`
	FromSubaccount string     `json:"from_subaccount,omitempty"`
	To             accountRef `json:"to"`
	Amount         uint64     `json:"amount"`
	Fee            *uint64    `json:"fee,omitempty"`
	Memo           []byte     `json:"memo,omitempty"`
	CreatedAtTime  *uint64    `json:"created_at_time,omitempty"`
}

// TransferWindowed handles the timestamped, replay-protected transfer path.
func (h *Handler) TransferWindowed(c *fiber.Ctx) error {
	var req windowedTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, err := principal.FromText(req.Caller)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	to, err := req.To.resolve()
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	args := TransferArgs{
		To:            to,
		Amount:        req.Amount,
		Fee:           req.Fee,
		Memo:          req.Memo,
		CreatedAtTime: req.CreatedAtTime,
	}
	if req.FromSubaccount != "" {
		sub, err := account.SubaccountFromHex(req.FromSubaccount)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		args.FromSubaccount = &sub
	}

	index, err := h.ledger.TransferWindowed(caller, args)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(indexResponse{Index: index})
}

type transferRequest struct {
	Caller string     `json:"caller"`
	To     accountRef `json:"to"`
	Value  uint64     `json:"value"`
}

// Transfer handles the plain fee-charged transfer from the caller's default
// account.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, to, err := callerAndAccount(req.Caller, req.To)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	index, err := h.ledger.Transfer(caller, to, req.Value)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(indexResponse{Index: index})
}

type transferFromRequest struct {
	Caller string     `json:"caller"`
	From   accountRef `json:"from"`
	To     accountRef `json:"to"`
	Value  uint64     `json:"value"`
}

// TransferFrom handles a delegated transfer under a prior approval.
func (h *Handler) TransferFrom(c *fiber.Ctx) error {
	var req transferFromRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, err := principal.FromText(req.Caller)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	from, err := req.From.resolve()
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	to, err := req.To.resolve()
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	index, err := h.ledger.TransferFrom(caller, from, to, req.Value)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(indexResponse{Index: index})
}

type approveRequest struct {
	Caller  string `json:"caller"`
	Spender string `json:"spender"`
	Value   uint64 `json:"value"`
}

// Approve grants or revokes a spender allowance.
func (h *Handler) Approve(c *fiber.Ctx) error {
	var req approveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, err := principal.FromText(req.Caller)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	spender, err := principal.FromText(req.Spender)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	index, err := h.ledger.Approve(caller, spender, req.Value)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(indexResponse{Index: index})
}

type mintRequest struct {
	Caller string     `json:"caller"`
	To     accountRef `json:"to"`
	Value  uint64     `json:"value"`
}

// Mint credits newly created supply. Owner only.
func (h *Handler) Mint(c *fiber.Ctx) error {
	var req mintRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, to, err := callerAndAccount(req.Caller, req.To)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	index, err := h.ledger.Mint(caller, to, req.Value)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(indexResponse{Index: index})
}

type burnRequest struct {
	Caller string `json:"caller"`
	User   string `json:"user,omitempty"`
	Amount uint64 `json:"amount"`
}

// Burn destroys supply from the caller's account, or from another user's
// account when permitted.
func (h *Handler) Burn(c *fiber.Ctx) error {
	var req burnRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, err := principal.FromText(req.Caller)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user := caller
	if req.User != "" {
		if user, err = principal.FromText(req.User); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	index, err := h.ledger.BurnFor(caller, user, req.Amount)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(indexResponse{Index: index})
}

type adminRequest struct {
	Caller  string      `json:"caller"`
	Name    *string     `json:"name,omitempty"`
	Logo    *string     `json:"logo,omitempty"`
	Fee     *uint64     `json:"fee,omitempty"`
	Account *accountRef `json:"account,omitempty"`
	Clear   bool        `json:"clear,omitempty"`
}

// SetName renames the token.
func (h *Handler) SetName(c *fiber.Ctx) error {
	return h.admin(c, func(req adminRequest, caller principal.Principal) error {
		if req.Name == nil {
			return fiber.NewError(http.StatusBadRequest, "name is required")
		}
		return h.ledger.SetName(caller, *req.Name)
	})
}

// SetLogo replaces the token logo reference.
func (h *Handler) SetLogo(c *fiber.Ctx) error {
	return h.admin(c, func(req adminRequest, caller principal.Principal) error {
		if req.Logo == nil {
			return fiber.NewError(http.StatusBadRequest, "logo is required")
		}
		return h.ledger.SetLogo(caller, *req.Logo)
	})
}

// SetFee changes the per-operation fee.
func (h *Handler) SetFee(c *fiber.Ctx) error {
	return h.admin(c, func(req adminRequest, caller principal.Principal) error {
		if req.Fee == nil {
			return fiber.NewError(http.StatusBadRequest, "fee is required")
		}
		return h.ledger.SetFee(caller, *req.Fee)
	})
}

// SetFeeRecipient redirects collected fees.
func (h *Handler) SetFeeRecipient(c *fiber.Ctx) error {
	return h.admin(c, func(req adminRequest, caller principal.Principal) error {
		if req.Account == nil {
			return fiber.NewError(http.StatusBadRequest, "account is required")
		}
		to, err := req.Account.resolve()
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return h.ledger.SetFeeRecipient(caller, to)
	})
}

// SetMintingAccount configures or clears the minting account.
func (h *Handler) SetMintingAccount(c *fiber.Ctx) error {
	return h.admin(c, func(req adminRequest, caller principal.Principal) error {
		if req.Clear {
			return h.ledger.SetMintingAccount(caller, nil)
		}
		if req.Account == nil {
			return fiber.NewError(http.StatusBadRequest, "account is required (or set clear)")
		}
		a, err := req.Account.resolve()
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return h.ledger.SetMintingAccount(caller, &a)
	})
}

func (h *Handler) admin(c *fiber.Ctx, apply func(adminRequest, principal.Principal) error) error {
	var req adminRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, err := principal.FromText(req.Caller)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := apply(req, caller); err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return err
		}
		return writeLedgerError(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func callerAndAccount(callerText string, ref accountRef) (principal.Principal, account.Account, error) {
	caller, err := principal.FromText(callerText)
	if err != nil {
		return nil, account.Account{}, err
	}
	acct, err := ref.resolve()
	if err != nil {
		return nil, account.Account{}, err
	}
	return caller, acct, nil
}

// writeLedgerError maps typed ledger rejections onto HTTP responses, carrying
// the error payload fields through to the client.
func writeLedgerError(c *fiber.Ctx, err error) error {
	var (
		badFee       *BadFeeError
		badBurn      *BadBurnError
		insufficient *InsufficientFundsError
		future       *CreatedInFutureError
		duplicate    *DuplicateError
		generic      *GenericError
	)
	switch {
	case errors.Is(err, ErrUnauthorized):
		return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrTemporarilyUnavailable):
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &duplicate):
		return c.Status(http.StatusConflict).JSON(fiber.Map{
			"error":        "duplicate",
			"duplicate_of": duplicate.DuplicateOf,
		})
	case errors.As(err, &badFee):
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":        "bad_fee",
			"expected_fee": badFee.ExpectedFee,
		})
	case errors.As(err, &badBurn):
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":           "bad_burn",
			"min_burn_amount": badBurn.MinBurnAmount,
		})
	case errors.As(err, &insufficient):
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "insufficient_funds",
			"balance": insufficient.Balance,
		})
	case errors.As(err, &future):
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":       "created_in_future",
			"ledger_time": future.LedgerTime,
		})
	case errors.Is(err, ErrTooOld):
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": "too_old"})
	case errors.As(err, &generic):
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "generic_error",
			"code":    generic.Code,
			"message": generic.Message,
		})
	case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrInsufficientAllowance):
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
