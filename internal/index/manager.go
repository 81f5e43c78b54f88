package index

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	qaerrors "github.com/vijayarun00100/Autonomous-QA-Agent/internal/errors"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/store"
)

// Manager owns the lazily loaded Handle of the committed generation.
// It is the only component that caches or drops a Handle.
type Manager struct {
	gens *store.Generations

	mu      sync.RWMutex
	current *Handle
	epoch   uint64

	group singleflight.Group
	loads atomic.Int64
}

// NewManager creates a manager over the generations in gens.
func NewManager(gens *store.Generations) *Manager {
	return &Manager{gens: gens}
}

// Handle returns the cached handle or loads the committed generation.
// Concurrent callers share one load. Failures are returned as
// IndexUnavailable and never cached.
func (m *Manager) Handle(ctx context.Context) (*Handle, error) {
	m.mu.RLock()
	h, epoch := m.current, m.epoch
	m.mu.RUnlock()
	if h != nil {
		// Another process may have committed since h was loaded.
		n, err := m.gens.Current()
		if err != nil || n == h.Generation() {
			return h, nil
		}
		slog.Info("index_generation_changed",
			slog.Int("cached", h.Generation()),
			slog.Int("current", n))
		var fresh *Handle
		if fresh, epoch = m.dropStale(h); fresh != nil {
			return fresh, nil
		}
	}

	// Keying by epoch keeps a caller that arrives after Invalidate from
	// joining a load that started before it.
	ch := m.group.DoChan("load-"+strconv.FormatUint(epoch, 10), func() (any, error) {
		return m.load(context.WithoutCancel(ctx), epoch)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	}
}

func (m *Manager) load(ctx context.Context, epoch uint64) (*Handle, error) {
	m.loads.Add(1)
	start := time.Now()

	n, err := m.gens.Current()
	if err != nil {
		if errors.Is(err, store.ErrNoGeneration) {
			return nil, qaerrors.NewIndexUnavailable("knowledge base is not ready: no documents ingested", err)
		}
		return nil, qaerrors.NewIndexUnavailable("knowledge base is not ready", err)
	}

	h, err := openHandle(ctx, m.gens, n)
	if err != nil {
		// A concurrent build may have committed and pruned n mid-load.
		if next, cerr := m.gens.Current(); cerr == nil && next != n {
			h, err = openHandle(ctx, m.gens, next)
		}
	}
	if err != nil {
		slog.Warn("index_load_failed",
			slog.Int("generation", n),
			slog.String("error", err.Error()))
		return nil, qaerrors.NewIndexUnavailable("knowledge base is not ready: index could not be loaded", err)
	}

	m.mu.Lock()
	if m.epoch == epoch {
		m.current = h
	}
	m.mu.Unlock()

	slog.Info("index_loaded",
		slog.Int("generation", h.Generation()),
		slog.Int("chunks", h.ChunkCount()),
		slog.String("model", h.Model()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return h, nil
}

// Invalidate drops the cached handle so the next Handle call reloads.
// Safe to call when nothing is cached.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	if m.current != nil {
		slog.Debug("index_invalidated", slog.Int("generation", m.current.Generation()))
	}
	m.current = nil
}

// dropStale invalidates h if it is still the cached handle. It returns a
// handle another caller already replaced h with, or the epoch to load under.
func (m *Manager) dropStale(h *Handle) (*Handle, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current != h {
		return m.current, m.epoch
	}
	if m.current == h {
		m.epoch++
		m.current = nil
	}
	return nil, m.epoch
}

// Cached returns the cached handle without loading, or nil.
func (m *Manager) Cached() *Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Generations returns the on-disk generation layout.
func (m *Manager) Generations() *store.Generations {
	return m.gens
}

// LoadCount reports how many loads have been attempted.
func (m *Manager) LoadCount() int64 {
	return m.loads.Load()
}
