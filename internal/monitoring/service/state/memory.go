package state

import (
	"context"
	"sync"
	"time"

	"github.com/craftport/opsmon/internal/monitoring/model"
)

// MemoryStore is an in-process Store used in tests and single-node
// deployments without Redis.
type MemoryStore struct {
	mu        sync.Mutex
	lastRuns  map[string]time.Time
	failures  map[string]int
	results   map[string]memResult
	resultTTL time.Duration
	now       func() time.Time
}

type memResult struct {
	rec      model.HealthCheckRecord
	storedAt time.Time
}

func NewMemoryStore(resultTTL time.Duration) *MemoryStore {
	if resultTTL <= 0 {
		resultTTL = 5 * time.Minute
	}
	return &MemoryStore{
		lastRuns:  make(map[string]time.Time),
		failures:  make(map[string]int),
		results:   make(map[string]memResult),
		resultTTL: resultTTL,
		now:       time.Now,
	}
}

// WithClock overrides the time source, for TTL tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) GetLastRun(_ context.Context, service string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastRuns[service]
	return t, ok, nil
}

func (s *MemoryStore) SetLastRun(_ context.Context, service string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRuns[service] = at
	return nil
}

func (s *MemoryStore) GetFailures(_ context.Context, service, tenantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[service+":"+Scope(tenantID)], nil
}

func (s *MemoryStore) IncrFailures(_ context.Context, service, tenantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := service + ":" + Scope(tenantID)
	s.failures[key]++
	return s.failures[key], nil
}

func (s *MemoryStore) ResetFailures(_ context.Context, service, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, service+":"+Scope(tenantID))
	return nil
}

func (s *MemoryStore) CacheResult(_ context.Context, rec model.HealthCheckRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[rec.Service+":"+Scope(rec.TenantID)] = memResult{rec: rec, storedAt: s.now()}
	return nil
}

func (s *MemoryStore) GetResult(_ context.Context, service, tenantID string) (model.HealthCheckRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.results[service+":"+Scope(tenantID)]
	if !ok || s.now().Sub(entry.storedAt) > s.resultTTL {
		return model.HealthCheckRecord{}, false, nil
	}
	return entry.rec, true, nil
}

func (s *MemoryStore) Snapshot(_ context.Context) ([]model.HealthCheckRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.HealthCheckRecord, 0, len(s.results))
	for key, entry := range s.results {
		if s.now().Sub(entry.storedAt) > s.resultTTL {
			delete(s.results, key)
			continue
		}
		out = append(out, entry.rec)
	}
	return out, nil
}
