package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type queueRunner struct {
	mu      sync.Mutex
	pending int
	ran     int
	calls   int
	panicAt int
	err     error
}

func (q *queueRunner) RunNext(ctx context.Context) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if q.panicAt > 0 && q.calls == q.panicAt {
		panic("boom")
	}
	if q.err != nil {
		return false, q.err
	}
	if q.pending == 0 {
		return false, nil
	}
	q.pending--
	q.ran++
	return true, nil
}

func (q *queueRunner) snapshot() (pending, ran, calls int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending, q.ran, q.calls
}

func TestWorkerDrainsQueue(t *testing.T) {
	q := &queueRunner{pending: 5}
	w := NewWorker(logger.Nop(), q, Config{Concurrency: 2, PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if pending, _, _ := q.snapshot(); pending == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("queue not drained")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	w.Wait()
	if _, ran, _ := q.snapshot(); ran != 5 {
		t.Fatalf("ran %d runs, want 5", ran)
	}
}

func TestRunOnceRecoversPanic(t *testing.T) {
	q := &queueRunner{pending: 1, panicAt: 1}
	w := NewWorker(logger.Nop(), q, Config{})
	claimed, err := w.runOnce(context.Background(), 1)
	if claimed || err == nil {
		t.Fatalf("runOnce = %v, %v; want panic surfaced as error", claimed, err)
	}
	claimed, err = w.runOnce(context.Background(), 1)
	if !claimed || err != nil {
		t.Fatalf("worker should keep going after a panic: %v, %v", claimed, err)
	}
}

func TestDrainStopsOnError(t *testing.T) {
	q := &queueRunner{pending: 3, err: errors.New("db down")}
	w := NewWorker(logger.Nop(), q, Config{})
	w.drain(context.Background(), 1)
	if _, _, calls := q.snapshot(); calls != 1 {
		t.Fatalf("drain should stop after an error, made %d calls", calls)
	}
}
