package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresNotifier appends audit events to the audit_events table.
type PostgresNotifier struct {
	db *pgxpool.Pool
}

// NewPostgresNotifier builds a notifier backed by PostgreSQL.
func NewPostgresNotifier(db *pgxpool.Pool) *PostgresNotifier {
	return &PostgresNotifier{db: db}
}

// Send inserts the event record.
func (n *PostgresNotifier) Send(ctx context.Context, event Event) error {
	_, err := n.db.Exec(ctx, `INSERT INTO audit_events
        (id, tx_index, kind, from_account, to_account, amount, fee, memo, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.Index, event.Kind, event.From, event.To,
		event.Amount, event.Fee, event.Memo, event.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
