package latency

import (
	"sync"
	"time"

	"github.com/haldane-games/crucible/internal/engine"
)

// Batcher collects commands submitted close together and flushes them as
// one batch, cutting round-trips for input bursts. A disabled config or a
// zero window degrades to pass-through. Safe for concurrent use.
type Batcher struct {
	mu sync.Mutex

	window    time.Duration
	maxSize   int
	immediate map[string]bool
	onFlush   func([]engine.Command)

	queue  []engine.Command
	timer  *time.Timer
	closed bool
}

// NewBatcher builds a batcher from a game's batching config. onFlush is
// called with each ready batch, outside the batcher's lock, possibly from
// the timer goroutine.
func NewBatcher(cfg BatchingConfig, onFlush func([]engine.Command)) *Batcher {
	immediate := make(map[string]bool, len(cfg.ImmediateCommands))
	for _, commandType := range cfg.ImmediateCommands {
		immediate[commandType] = true
	}
	window := cfg.Window
	if !cfg.Enabled {
		window = 0
	}
	return &Batcher{
		window:    window,
		maxSize:   cfg.MaxBatchSize,
		immediate: immediate,
		onFlush:   onFlush,
	}
}

// Enqueue adds a command to the current batch. Immediate command types and
// a full queue flush right away; otherwise the window timer is reset so a
// burst keeps extending its own window.
func (b *Batcher) Enqueue(cmd engine.Command) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	if b.window == 0 {
		b.mu.Unlock()
		b.onFlush([]engine.Command{cmd})
		return
	}

	b.queue = append(b.queue, cmd)

	if b.immediate[cmd.Type] || (b.maxSize > 0 && len(b.queue) >= b.maxSize) {
		batch := b.takeLocked()
		b.mu.Unlock()
		if len(batch) > 0 {
			b.onFlush(batch)
		}
		return
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.window, b.flushTimer)
	b.mu.Unlock()
}

// Flush sends whatever is queued immediately.
func (b *Batcher) Flush() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	batch := b.takeLocked()
	b.mu.Unlock()

	if len(batch) > 0 {
		b.onFlush(batch)
	}
}

// Close stops the batcher and drops anything still queued.
func (b *Batcher) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.queue = nil
}

func (b *Batcher) flushTimer() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	batch := b.takeLocked()
	b.mu.Unlock()

	if len(batch) > 0 {
		b.onFlush(batch)
	}
}

// takeLocked empties the queue and cancels the pending timer. Caller holds
// the lock.
func (b *Batcher) takeLocked() []engine.Command {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	batch := b.queue
	b.queue = nil
	return batch
}
