package db

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ststudios/whitelist/types"
)

// MemoryStore is an in-process Store backed by a mutex-guarded map. It is the
// development and test backend; the mutex provides the insert-if-absent and
// update-by-id atomicity the durable backends get from their engines.
type MemoryStore struct {
	mu          sync.Mutex
	nextID      int64
	byID        map[string]types.Application
	byApplicant map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:      1,
		byID:        make(map[string]types.Application),
		byApplicant: make(map[string]string),
	}
}

func (s *MemoryStore) FindByApplicantID(ctx context.Context, applicantID string) (*types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byApplicant[applicantID]
	if !ok {
		return nil, ErrNotFound
	}
	app := s.byID[id]
	return &app, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &app, nil
}

func (s *MemoryStore) Insert(ctx context.Context, app *types.Application) (*types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byApplicant[app.ApplicantID]; exists {
		return nil, ErrDuplicateApplicant
	}
	stored := *app
	stored.ID = strconv.FormatInt(s.nextID, 10)
	s.nextID++
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.byID[stored.ID] = stored
	s.byApplicant[stored.ApplicantID] = stored.ID
	return &stored, nil
}

func (s *MemoryStore) Update(ctx context.Context, app *types.Application) (*types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[app.ID]
	if !ok {
		return nil, ErrNotFound
	}
	stored := *app
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	s.byID[stored.ID] = stored
	s.byApplicant[stored.ApplicantID] = stored.ID
	return &stored, nil
}

func (s *MemoryStore) ListByStatus(ctx context.Context, status types.Status, limit int64) ([]types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apps := make([]types.Application, 0)
	for _, app := range s.byID {
		if status == "" || app.Status == status {
			apps = append(apps, app)
		}
	}
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].CreatedAt.After(apps[j].CreatedAt)
	})
	if limit > 0 && int64(len(apps)) > limit {
		apps = apps[:limit]
	}
	return apps, nil
}

func (s *MemoryStore) CountByStatus(ctx context.Context) (map[types.Status]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[types.Status]int64)
	for _, app := range s.byID {
		counts[app.Status]++
	}
	return counts, nil
}

func (s *MemoryStore) Search(ctx context.Context, query string, limit int64) ([]types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	apps := make([]types.Application, 0)
	for _, app := range s.byID {
		if app.ID == query || app.ApplicantID == query ||
			strings.Contains(strings.ToLower(app.ApplicantName), q) ||
			strings.Contains(strings.ToLower(app.GameHandle), q) {
			apps = append(apps, app)
		}
	}
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].CreatedAt.After(apps[j].CreatedAt)
	})
	if limit > 0 && int64(len(apps)) > limit {
		apps = apps[:limit]
	}
	return apps, nil
}
