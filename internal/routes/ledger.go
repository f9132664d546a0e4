package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tokamint/tokamint/internal/ledger"
)

// RegisterLedgerRoutes wires token queries, transfer operations and
// owner-only administration.
func RegisterLedgerRoutes(r fiber.Router, h *ledger.Handler) {
	// Queries
	r.Get("/metadata", h.Metadata)
	r.Get("/holders", h.Holders)
	r.Get("/owners/:owner/approvals", h.OwnerApprovals)
	r.Post("/balance", h.Balance)
	r.Post("/allowance", h.Allowance)

	// Mutations
	r.Post("/icrc1/transfer", h.TransferWindowed)
	r.Post("/transfer", h.Transfer)
	r.Post("/transfer-from", h.TransferFrom)
	r.Post("/approve", h.Approve)
	r.Post("/mint", h.Mint)
	r.Post("/burn", h.Burn)

	// Administration (owner-authorized)
	admin := r.Group("/admin")
	admin.Post("/name", h.SetName)
	admin.Post("/logo", h.SetLogo)
	admin.Post("/fee", h.SetFee)
	admin.Post("/fee-recipient", h.SetFeeRecipient)
	admin.Post("/minting-account", h.SetMintingAccount)
}
