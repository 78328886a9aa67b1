package store

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/clientpulse/clientpulse/pkg/types"
)

// MemoryStore is a thread-safe in-process Store. A background goroutine
// (Run) periodically evicts health samples, performance rollups and alert
// events older than the retention period. Reports are never evicted.
type MemoryStore struct {
	mu         sync.RWMutex
	clients    map[string]*types.Client
	samples    map[string][]types.HealthSample
	snapshots  map[string]map[rollupKey]types.PerformanceSnapshot // client → (metric date, timeframe)
	thresholds map[string]types.AlertThreshold                    // "client:metric"
	events     map[string][]types.AlertEvent
	reports    map[string][]types.Report

	retention time.Duration
	now       func() time.Time // injectable for deterministic tests
}

// rollupKey identifies one stored snapshot of a client.
type rollupKey struct {
	date time.Time
	tf   types.Timeframe
}

// NewMemoryStore creates a MemoryStore. A retention of zero keeps history forever.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		clients:    make(map[string]*types.Client),
		samples:    make(map[string][]types.HealthSample),
		snapshots:  make(map[string]map[rollupKey]types.PerformanceSnapshot),
		thresholds: make(map[string]types.AlertThreshold),
		events:     make(map[string][]types.AlertEvent),
		reports:    make(map[string][]types.Report),
		retention:  retention,
		now:        time.Now,
	}
}

func (s *MemoryStore) QueryClient(_ context.Context, clientID string) (*types.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("store: client %q: %w", clientID, types.ErrNotFound)
	}
	return c.Clone(), nil
}

func (s *MemoryStore) QueryAllClients(_ context.Context, includeInactive bool) ([]*types.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Client, 0, len(s.clients))
	for _, c := range s.clients {
		if c.Active || includeInactive {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertClient stores c, keeping the original CreatedAt of an existing record.
func (s *MemoryStore) UpsertClient(_ context.Context, c *types.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := c.Clone()
	if prev, ok := s.clients[c.ID]; ok {
		cp.CreatedAt = prev.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now().UTC()
	}
	s.clients[c.ID] = cp
	return nil
}

func (s *MemoryStore) SaveHealthSample(_ context.Context, hs types.HealthSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[hs.ClientID] = append(s.samples[hs.ClientID], hs)
	return nil
}

func (s *MemoryStore) QueryHealthSamples(_ context.Context, clientID string, from, to time.Time) ([]types.HealthSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.HealthSample
	for _, hs := range s.samples[clientID] {
		if inRange(hs.CheckedAt, from, to) {
			out = append(out, hs)
		}
	}
	return out, nil
}

func (s *MemoryStore) SavePerformanceSnapshot(_ context.Context, ps types.PerformanceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rollups, ok := s.snapshots[ps.ClientID]
	if !ok {
		rollups = make(map[rollupKey]types.PerformanceSnapshot)
		s.snapshots[ps.ClientID] = rollups
	}
	ps.MetricDate = types.DateOf(ps.MetricDate)
	ps.EfficiencyGains = maps.Clone(ps.EfficiencyGains)
	rollups[rollupKey{date: ps.MetricDate, tf: ps.Timeframe}] = ps
	return nil
}

func (s *MemoryStore) QuerySnapshotsInWindow(_ context.Context, clientID string, from, to time.Time) ([]types.PerformanceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lo := types.DateOf(from)
	var out []types.PerformanceSnapshot
	for key, ps := range s.snapshots[clientID] {
		if inRange(key.date, lo, to) {
			ps.EfficiencyGains = maps.Clone(ps.EfficiencyGains)
			out = append(out, ps)
		}
	}
	slices.SortFunc(out, func(a, b types.PerformanceSnapshot) int {
		if c := a.MetricDate.Compare(b.MetricDate); c != 0 {
			return c
		}
		return cmp.Compare(a.Timeframe.Duration(), b.Timeframe.Duration())
	})
	return out, nil
}

func (s *MemoryStore) UpsertAlertThreshold(_ context.Context, t types.AlertThreshold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds[t.Key()] = t
	return nil
}

func (s *MemoryStore) QueryAlertThresholds(_ context.Context, clientID string) ([]types.AlertThreshold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.AlertThreshold
	for _, t := range s.thresholds {
		if clientID == "" || t.ClientID == clientID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b types.AlertThreshold) int {
		return strings.Compare(a.Key(), b.Key())
	})
	return out, nil
}

func (s *MemoryStore) AppendAlertEvent(_ context.Context, e types.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ClientID] = append(s.events[e.ClientID], e)
	return nil
}

func (s *MemoryStore) QueryAlertEvents(_ context.Context, clientID string, from, to time.Time) ([]types.AlertEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.AlertEvent
	for _, e := range s.events[clientID] {
		if inRange(e.FiredAt, from, to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveReport(_ context.Context, r types.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ClientID] = append(s.reports[r.ClientID], r.Clone())
	return nil
}

func (s *MemoryStore) QueryReports(_ context.Context, clientID string, limit int) ([]types.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.reports[clientID]
	n := len(all)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]types.Report, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i].Clone())
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}

// Evict removes health samples checked, alert events fired and performance
// rollups dated before now minus retention. It returns the number of records
// removed.
func (s *MemoryStore) Evict(now time.Time) int {
	if s.retention <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.retention)
	removed := 0
	for id, list := range s.samples {
		kept := slices.DeleteFunc(list, func(hs types.HealthSample) bool { return !hs.CheckedAt.After(cutoff) })
		removed += len(list) - len(kept)
		if len(kept) == 0 {
			delete(s.samples, id)
			continue
		}
		s.samples[id] = kept
	}
	for id, list := range s.events {
		kept := slices.DeleteFunc(list, func(e types.AlertEvent) bool { return !e.FiredAt.After(cutoff) })
		removed += len(list) - len(kept)
		if len(kept) == 0 {
			delete(s.events, id)
			continue
		}
		s.events[id] = kept
	}
	// A rollup covers its whole metric date, so it goes once the date has
	// ended before the cutoff.
	for id, rollups := range s.snapshots {
		for key := range rollups {
			if !key.date.AddDate(0, 0, 1).After(cutoff) {
				delete(rollups, key)
				removed++
			}
		}
		if len(rollups) == 0 {
			delete(s.snapshots, id)
		}
	}
	return removed
}

// Run starts the background eviction loop. It ticks hourly, or at the
// retention period when that is shorter (minimum 1 second). Run blocks until
// ctx is cancelled.
func (s *MemoryStore) Run(ctx context.Context) {
	if s.retention <= 0 {
		return
	}
	interval := min(time.Hour, s.retention)
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted expired history", "count", n)
			}
		}
	}
}
