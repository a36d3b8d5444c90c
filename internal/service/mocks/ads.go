package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/repository"
	"github.com/samber/lo"
)

type hitKey struct {
	adID   int64
	ipHash string
}

// MockAdRepository implements repository.AdRepository for testing.
// Hits are unique per (ad, ipHash) and remaining never drops below zero.
type MockAdRepository struct {
	faults
	mu     sync.Mutex
	ads    map[int64]*models.AdminAd
	hits   map[hitKey]*models.AdminAdHit
	nextID int64

	// BeforeRecordHit, when set, runs between Consume and RecordHit of the
	// allocator; tests use it to interleave concurrent requests.
	BeforeRecordHit func()
}

func NewMockAdRepository() *MockAdRepository {
	return &MockAdRepository{
		ads:    make(map[int64]*models.AdminAd),
		hits:   make(map[hitKey]*models.AdminAdHit),
		nextID: 1,
	}
}

func (m *MockAdRepository) Create(ctx context.Context, ad *models.AdminAd) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ad.ID = m.nextID
	m.nextID++
	ad.CreatedAt = time.Now()
	cp := *ad
	m.ads[ad.ID] = &cp
	return nil
}

func (m *MockAdRepository) GetByID(ctx context.Context, id int64) (*models.AdminAd, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ad, exists := m.ads[id]
	if !exists {
		return nil, repository.ErrAdNotFound
	}
	cp := *ad
	return &cp, nil
}

func (m *MockAdRepository) HasHit(ctx context.Context, adID int64, ipHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.hits[hitKey{adID, ipHash}]
	return exists, nil
}

func (m *MockAdRepository) FindCandidate(ctx context.Context, ipHash string) (*models.AdminAd, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := lo.Filter(lo.Values(m.ads), func(ad *models.AdminAd, _ int) bool {
		_, hit := m.hits[hitKey{ad.ID, ipHash}]
		return ad.Active && ad.Remaining > 0 && !hit
	})
	if len(candidates) == 0 {
		return nil, repository.ErrAdNotFound
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Served != b.Served {
			return a.Served < b.Served
		}
		if (a.LastServedAt == nil) != (b.LastServedAt == nil) {
			return a.LastServedAt == nil
		}
		if a.LastServedAt != nil && !a.LastServedAt.Equal(*b.LastServedAt) {
			return a.LastServedAt.Before(*b.LastServedAt)
		}
		return a.ID < b.ID
	})

	cp := *candidates[0]
	return &cp, nil
}

func (m *MockAdRepository) Consume(ctx context.Context, adID int64, at time.Time) (int64, error) {
	m.mu.Lock()

	ad, exists := m.ads[adID]
	if !exists || ad.Remaining <= 0 {
		m.mu.Unlock()
		return 0, repository.ErrAdExhausted
	}
	ad.Remaining--
	ad.Served++
	ad.LastServedAt = &at
	remaining := ad.Remaining
	m.mu.Unlock()

	if m.BeforeRecordHit != nil {
		m.BeforeRecordHit()
	}
	return remaining, nil
}

func (m *MockAdRepository) RecordHit(ctx context.Context, hit *models.AdminAdHit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := hitKey{hit.AdID, hit.IPHash}
	if _, exists := m.hits[key]; exists {
		return repository.ErrDuplicateHit
	}
	hit.ID = int64(len(m.hits) + 1)
	hit.CreatedAt = time.Now()
	cp := *hit
	m.hits[key] = &cp
	return nil
}

func (m *MockAdRepository) Restore(ctx context.Context, adID int64) error {
	if err := m.fault("Restore"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ad, exists := m.ads[adID]
	if !exists {
		return repository.ErrAdNotFound
	}
	ad.Remaining++
	return nil
}

// Hits returns the number of recorded hits.
func (m *MockAdRepository) Hits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hits)
}
