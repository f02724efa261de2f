package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/longregen/cogito/internal/adapters/metrics"
	"github.com/longregen/cogito/internal/adapters/retry"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
)

// WAL is the write-ahead spool for memory commits that could not reach the
// backend. Entries are appended to a JSONL file so a crash loses nothing,
// and a background loop replays them with exponential backoff.
type WAL struct {
	path    string
	backend ports.MemoryBackend
	logger  *slog.Logger

	mu      sync.Mutex
	pending []*models.MemoryRecord

	wake chan struct{}
	done chan struct{}
}

func NewWAL(path string, backend ports.MemoryBackend, logger *slog.Logger) (*WAL, error) {
	w := &WAL{
		path:    path,
		backend: backend,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if err := w.recover(); err != nil {
		return nil, err
	}
	if len(w.pending) > 0 {
		// replay recovered entries as soon as Run starts
		w.wake <- struct{}{}
	}
	return w, nil
}

// recover loads any spooled entries left over from a previous run.
func (w *WAL) recover() error {
	f, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec models.MemoryRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			w.logger.Warn("skipping corrupt WAL entry", "error", err)
			continue
		}
		w.pending = append(w.pending, &rec)
	}
	metrics.MemoryWALDepth.Set(float64(len(w.pending)))
	return scanner.Err()
}

// Enqueue spools a record that failed to commit. The write is fsynced before
// returning so the commit is never silently lost.
func (w *WAL) Enqueue(record *models.MemoryRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}

	w.pending = append(w.pending, record)
	metrics.MemoryWALDepth.Set(float64(len(w.pending)))

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Depth reports how many commits are waiting for replay.
func (w *WAL) Depth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Run replays spooled commits until ctx is cancelled. Each drain attempt
// retries with backoff; records stay spooled until the backend accepts them.
func (w *WAL) Run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		case <-ticker.C:
		}
		w.drain(ctx)
	}
}

// Wait blocks until Run has exited.
func (w *WAL) Wait() {
	<-w.done
}

func (w *WAL) drain(ctx context.Context) {
	for {
		w.mu.Lock()
		if len(w.pending) == 0 {
			w.mu.Unlock()
			return
		}
		rec := w.pending[0]
		w.mu.Unlock()

		err := retry.WithBackoff(ctx, retry.BackoffConfig{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
			MaxRetries:      3,
			Multiplier:      2.0,
		}, func() error {
			return w.backend.Put(ctx, rec)
		})
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("WAL replay failed, keeping entry", "record_id", rec.ID, "error", err)
			}
			return
		}

		w.mu.Lock()
		w.pending = w.pending[1:]
		depth := len(w.pending)
		w.mu.Unlock()
		metrics.MemoryWALDepth.Set(float64(depth))

		if depth == 0 {
			if err := w.compact(); err != nil {
				w.logger.Warn("WAL compaction failed", "error", err)
			}
		}
	}
}

// compact truncates the spool file once everything has been replayed.
func (w *WAL) compact() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) > 0 {
		return nil
	}
	return os.Truncate(w.path, 0)
}
