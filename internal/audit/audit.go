// Package audit delivers best-effort event records to an external audit log
// after a ledger mutation has committed. Delivery is fire-and-forget: a full
// queue drops the event and a failed send is logged, never surfaced.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// KindTransfer marks a value movement between two accounts.
	KindTransfer = "transfer"
	// KindMint marks supply creation.
	KindMint = "mint"
	// KindBurn marks supply destruction.
	KindBurn = "burn"
	// KindApprove marks a delegated-spending grant.
	KindApprove = "approve"
)

// Event describes one committed ledger mutation.
type Event struct {
	ID        string    `json:"id"`
	Index     uint64    `json:"index"`
	Kind      string    `json:"kind"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Amount    uint64    `json:"amount"`
	Fee       uint64    `json:"fee"`
	Memo      []byte    `json:"memo,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers events to a downstream audit store.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// LoggerNotifier writes audit events to the structured logger. It is the
// default backend when no external store is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the event to the logger.
func (n *LoggerNotifier) Send(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("audit event",
		"id", event.ID,
		"index", event.Index,
		"kind", event.Kind,
		"from", event.From,
		"to", event.To,
		"amount", event.Amount,
		"fee", event.Fee,
	)
	return nil
}

// Recorder decouples the mutating path from notification delivery: Record
// enqueues without blocking and a single worker goroutine drains the queue.
type Recorder struct {
	ch       chan Event
	notifier Notifier
	logger   *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewRecorder starts the delivery worker. Buffer sizes below one are raised
// to a small default.
func NewRecorder(notifier Notifier, logger *slog.Logger, buffer int) *Recorder {
	if buffer < 1 {
		buffer = 64
	}
	r := &Recorder{
		ch:       make(chan Event, buffer),
		notifier: notifier,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues an event for delivery. It never blocks: when the queue is
// full the event is dropped and counted against a warning log.
func (r *Recorder) Record(event Event) {
	select {
	case r.ch <- event:
	default:
		r.logger.Warn("audit queue full, dropping event", "index", event.Index, "kind", event.Kind)
	}
}

// Close stops accepting events, drains the queue and waits for the worker.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.ch)
	})
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for event := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.notifier.Send(ctx, event); err != nil {
			r.logger.Warn("audit delivery failed", "index", event.Index, "error", err)
		}
		cancel()
	}
}
