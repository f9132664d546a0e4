package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tokamint/tokamint/internal/logging"
)

type captureNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (n *captureNotifier) Send(_ context.Context, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func TestRecorderDeliversInOrder(t *testing.T) {
	notifier := &captureNotifier{}
	rec := NewRecorder(notifier, logging.Discard(), 8)

	for i := uint64(0); i < 5; i++ {
		rec.Record(Event{Index: i, Kind: KindTransfer})
	}
	rec.Close()

	if notifier.count() != 5 {
		t.Fatalf("expected 5 delivered events, got %d", notifier.count())
	}
	for i, event := range notifier.events {
		if event.Index != uint64(i) {
			t.Fatalf("event %d out of order: index %d", i, event.Index)
		}
	}
}

func TestRecordNeverBlocksWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	notifier := &blockingNotifier{release: block}
	rec := NewRecorder(notifier, logging.Discard(), 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			rec.Record(Event{Index: uint64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	close(block)
	rec.Close()
}

func TestRecorderSwallowsDeliveryFailure(t *testing.T) {
	notifier := &captureNotifier{err: errors.New("downstream unavailable")}
	rec := NewRecorder(notifier, logging.Discard(), 4)

	rec.Record(Event{Index: 1, Kind: KindMint})
	rec.Close() // must not panic or hang
}

type blockingNotifier struct {
	release chan struct{}
}

func (n *blockingNotifier) Send(_ context.Context, _ Event) error {
	<-n.release
	return nil
}
