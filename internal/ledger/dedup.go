package ledger

import "time"

const (
	// TxWindow is how long a committed transfer shields against replays.
	TxWindow = 24 * time.Hour

	// PermittedDrift tolerates clock skew between caller and ledger.
	PermittedDrift = 2 * time.Minute
)

// LogEntry records one committed windowed transfer for duplicate detection.
type LogEntry struct {
	Index uint64      `json:"index"`
	Tx    Transaction `json:"tx"`
}

// txWindow is the replay-protection log: an append-ordered sequence of recent
// transactions, pruned by age on every insert. It never aborts; every
// rejection is a typed error.
type txWindow struct {
	window  time.Duration
	drift   time.Duration
	entries []LogEntry
}

func newTxWindow(window, drift time.Duration) *txWindow {
	if window <= 0 {
		window = TxWindow
	}
	if drift <= 0 {
		drift = PermittedDrift
	}
	return &txWindow{window: window, drift: drift}
}

// cutoff is the staleness horizon in nanoseconds: timestamps strictly before
// it are too old, and log entries at or before it are pruned. A timestamp
// exactly at the horizon is still acceptable while its previous log entry is
// already prunable, which is what lets an expired transfer be retried.
func (w *txWindow) cutoff(now time.Time) uint64 {
	span := uint64(w.window + w.drift)
	nowNS := uint64(now.UnixNano())
	if nowNS <= span {
		return 0
	}
	return nowNS - span
}

// dedupe validates a transfer's client timestamp and scans for a structural
// duplicate among recent transactions. Transfers without a timestamp opt out
// of replay protection and always pass.
func (w *txWindow) dedupe(now time.Time, tx Transaction) error {
	if tx.CreatedAtTime == nil {
		return nil
	}
	created := *tx.CreatedAtTime
	if created < w.cutoff(now) {
		return ErrTooOld
	}
	nowNS := uint64(now.UnixNano())
	if created > nowNS+uint64(w.drift) {
		return &CreatedInFutureError{LedgerTime: nowNS}
	}
	for _, entry := range w.entries {
		if entry.Tx.Equal(tx) {
			return &DuplicateError{DuplicateOf: entry.Index}
		}
	}
	return nil
}

// log prunes expired entries and appends the committed transfer. Transfers
// without a timestamp are not retained: dedupe can never match them, and
// keeping them would grow the log without bound.
func (w *txWindow) log(now time.Time, index uint64, tx Transaction) {
	cutoff := w.cutoff(now)
	kept := w.entries[:0]
	for _, entry := range w.entries {
		if entry.Tx.CreatedAtTime != nil && *entry.Tx.CreatedAtTime <= cutoff {
			continue
		}
		kept = append(kept, entry)
	}
	w.entries = kept

	if tx.CreatedAtTime == nil {
		return
	}
	w.entries = append(w.entries, LogEntry{Index: index, Tx: tx})
}

// snapshot returns a copy of the current log contents.
func (w *txWindow) snapshot() []LogEntry {
	out := make([]LogEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

func (w *txWindow) restore(entries []LogEntry) {
	w.entries = make([]LogEntry, len(entries))
	copy(w.entries, entries)
}
