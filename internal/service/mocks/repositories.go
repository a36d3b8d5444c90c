package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/repository"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// MockLinkRepository implements repository.LinkRepository for testing
type MockLinkRepository struct {
	faults
	mu     sync.RWMutex
	links  map[int64]*models.Link
	nextID int64
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links:  make(map[int64]*models.Link),
		nextID: 1,
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.links {
		if l.Slug == link.Slug {
			return repository.ErrSlugExists
		}
	}

	link.ID = m.nextID
	m.nextID++
	stored := *link
	m.links[link.ID] = &stored
	return nil
}

func (m *MockLinkRepository) GetBySlug(ctx context.Context, slug string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, l := range m.links {
		if l.Slug == slug {
			cp := *l
			return &cp, nil
		}
	}
	return nil, repository.ErrLinkNotFound
}

func (m *MockLinkRepository) GetByID(ctx context.Context, id int64) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, exists := m.links[id]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *MockLinkRepository) Delete(ctx context.Context, slug string, ownerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.links {
		if l.Slug == slug && l.OwnerID == ownerID && !l.Disabled {
			l.Disabled = true
			return nil
		}
	}
	return repository.ErrLinkNotFound
}

func (m *MockLinkRepository) RecordClick(ctx context.Context, linkID int64, earnings decimal.Decimal, at time.Time) error {
	if err := m.fault("RecordClick"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, exists := m.links[linkID]
	if !exists {
		return repository.ErrLinkNotFound
	}
	l.Clicks++
	l.Earnings = l.Earnings.Add(earnings)
	l.LastClickedAt = &at
	return nil
}

// Seed stores link as is, keeping its ID if set.
func (m *MockLinkRepository) Seed(link *models.Link) *models.Link {
	m.mu.Lock()
	defer m.mu.Unlock()

	if link.ID == 0 {
		link.ID = m.nextID
	}
	if link.ID >= m.nextID {
		m.nextID = link.ID + 1
	}
	stored := *link
	m.links[link.ID] = &stored
	return link
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	faults
	mu    sync.RWMutex
	cache map[string]*models.Link
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.Link),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.cache[key]
	if !exists {
		return nil, repository.ErrCacheMiss
	}
	cp := *link
	return &cp, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, link *models.Link, ttl time.Duration) error {
	if err := m.fault("Set"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *link
	m.cache[key] = &cp
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

func (m *MockCacheRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cache)
}

// MockClickRepository implements repository.ClickRepository for testing
type MockClickRepository struct {
	faults
	mu     sync.RWMutex
	links  *MockLinkRepository
	clicks []*models.Click
	nextID int64
}

// NewMockClickRepository resolves slugs for stats through links.
func NewMockClickRepository(links *MockLinkRepository) *MockClickRepository {
	return &MockClickRepository{links: links, nextID: 1}
}

func (m *MockClickRepository) RecordClick(ctx context.Context, click *models.Click) error {
	if err := m.fault("RecordClick"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	click.ID = m.nextID
	m.nextID++
	cp := *click
	m.clicks = append(m.clicks, &cp)
	return nil
}

func (m *MockClickRepository) HasClickSince(ctx context.Context, linkID int64, ip string, since time.Time) (bool, error) {
	if err := m.fault("HasClickSince"); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return lo.ContainsBy(m.clicks, func(c *models.Click) bool {
		return c.LinkID == linkID && c.IPAddress == ip && !c.ClickedAt.Before(since)
	}), nil
}

func (m *MockClickRepository) HasPaidClickSince(ctx context.Context, ip string, since time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return lo.ContainsBy(m.clicks, func(c *models.Click) bool {
		return c.IPAddress == ip && !c.ClickedAt.Before(since) && c.Earnings.IsPositive()
	}), nil
}

func (m *MockClickRepository) GetStats(ctx context.Context, slug string) (*models.ClickStats, error) {
	link, err := m.links.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	clicks := lo.Filter(m.clicks, func(c *models.Click, _ int) bool { return c.LinkID == link.ID })
	ips := lo.Uniq(lo.Map(clicks, func(c *models.Click, _ int) string { return c.IPAddress }))

	return &models.ClickStats{
		Slug:         slug,
		TotalClicks:  int64(len(clicks)),
		UniqueClicks: int64(len(ips)),
	}, nil
}

func (m *MockClickRepository) GetDailyStats(ctx context.Context, slug string, days int) ([]models.DailyClickStats, error) {
	link, err := m.links.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	since := time.Now().AddDate(0, 0, -days)
	recent := lo.Filter(m.clicks, func(c *models.Click, _ int) bool {
		return c.LinkID == link.ID && c.ClickedAt.After(since)
	})
	perDay := lo.CountValuesBy(recent, func(c *models.Click) string { return c.ClickedAt.Format("2006-01-02") })

	stats := lo.MapToSlice(perDay, func(date string, n int) models.DailyClickStats {
		return models.DailyClickStats{Date: date, Clicks: int64(n)}
	})
	sort.Slice(stats, func(i, j int) bool { return stats[i].Date > stats[j].Date })
	return stats, nil
}

// Clicks returns a snapshot of every recorded click.
func (m *MockClickRepository) Clicks() []models.Click {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return lo.Map(m.clicks, func(c *models.Click, _ int) models.Click { return *c })
}

var (
	_ repository.LinkRepository     = (*MockLinkRepository)(nil)
	_ repository.CacheRepository    = (*MockCacheRepository)(nil)
	_ repository.ClickRepository    = (*MockClickRepository)(nil)
	_ repository.UserRepository     = (*MockUserRepository)(nil)
	_ repository.CampaignRepository = (*MockCampaignRepository)(nil)
	_ repository.PaymentRepository  = (*MockPaymentRepository)(nil)
	_ repository.ReferralRepository = (*MockReferralRepository)(nil)
	_ repository.AdRepository       = (*MockAdRepository)(nil)
	_ repository.SettingsRepository = (*MockSettingsRepository)(nil)
	_ repository.PricingRepository  = (*MockPricingRepository)(nil)
	_ repository.RateCache          = (*MockRateCache)(nil)
)
