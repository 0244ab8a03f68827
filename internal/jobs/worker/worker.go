package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

// Runner claims and executes one queued unit of work. It reports whether
// anything was claimed.
type Runner interface {
	RunNext(ctx context.Context) (bool, error)
}

type Config struct {
	Concurrency  int
	PollInterval time.Duration
}

type Worker struct {
	log    *logger.Logger
	runner Runner
	cfg    Config
	wg     sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, runner Runner, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Worker{
		log:    baseLog.With("component", "GenerationWorker"),
		runner: runner,
		cfg:    cfg,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting generation worker pool", "concurrency", w.cfg.Concurrency)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

// Wait blocks until every loop has returned after ctx is canceled.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			w.drain(ctx, workerID)
		}
	}
}

// drain keeps claiming until the queue is empty so a backlog does not wait a
// tick per run.
func (w *Worker) drain(ctx context.Context, workerID int) {
	for ctx.Err() == nil {
		claimed, err := w.runOnce(ctx, workerID)
		if err != nil {
			w.log.Warn("RunNext failed", "worker_id", workerID, "error", err.Error())
			return
		}
		if !claimed {
			return
		}
	}
}

func (w *Worker) runOnce(ctx context.Context, workerID int) (claimed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Generation run panic", "worker_id", workerID, "panic", r)
			claimed, err = false, &panicError{Val: r}
		}
	}()
	return w.runner.RunNext(ctx)
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
