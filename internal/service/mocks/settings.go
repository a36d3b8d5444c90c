package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/repository"
	"github.com/shopspring/decimal"
)

// MockSettingsRepository implements repository.SettingsRepository for testing.
// Values round-trip through JSON like the JSONB column.
type MockSettingsRepository struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{values: make(map[string][]byte)}
}

func (m *MockSettingsRepository) GetReferralSettings(ctx context.Context) (*models.ReferralSettings, error) {
	var s models.ReferralSettings
	if err := m.get(repository.SettingReferral, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MockSettingsRepository) GetAdSettings(ctx context.Context) (*models.AdSettings, error) {
	var s models.AdSettings
	if err := m.get(repository.SettingAds, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MockSettingsRepository) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = data
	return nil
}

func (m *MockSettingsRepository) get(key string, dst any) error {
	m.mu.RLock()
	data, exists := m.values[key]
	m.mu.RUnlock()

	if !exists {
		return repository.ErrSettingNotFound
	}
	return json.Unmarshal(data, dst)
}

type rateKey struct {
	audience models.Audience
	country  string
}

// MockPricingRepository implements repository.PricingRepository for testing
type MockPricingRepository struct {
	faults
	mu    sync.RWMutex
	rates map[rateKey]decimal.Decimal
	calls int
}

func NewMockPricingRepository() *MockPricingRepository {
	return &MockPricingRepository{rates: make(map[rateKey]decimal.Decimal)}
}

func (m *MockPricingRepository) GetRate(ctx context.Context, audience models.Audience, country string) (decimal.Decimal, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if err := m.fault("GetRate"); err != nil {
		return decimal.Zero, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rate, exists := m.rates[rateKey{audience, country}]
	if !exists {
		return decimal.Zero, repository.ErrRateNotFound
	}
	return rate, nil
}

func (m *MockPricingRepository) SetRate(ctx context.Context, audience models.Audience, country string, rate decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[rateKey{audience, country}] = rate
	return nil
}

// Calls returns how many times GetRate was invoked.
func (m *MockPricingRepository) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// MockRateCache implements repository.RateCache for testing; it honours ttl
// against the injected clock.
type MockRateCache struct {
	mu      sync.Mutex
	entries map[rateKey]rateEntry
	now     func() time.Time
}

type rateEntry struct {
	rate      decimal.Decimal
	expiresAt time.Time
}

func NewMockRateCache(now func() time.Time) *MockRateCache {
	if now == nil {
		now = time.Now
	}
	return &MockRateCache{entries: make(map[rateKey]rateEntry), now: now}
}

func (m *MockRateCache) GetRate(ctx context.Context, audience models.Audience, country string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, exists := m.entries[rateKey{audience, country}]
	if !exists || !m.now().Before(e.expiresAt) {
		return decimal.Zero, repository.ErrCacheMiss
	}
	return e.rate, nil
}

func (m *MockRateCache) SetRate(ctx context.Context, audience models.Audience, country string, rate decimal.Decimal, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[rateKey{audience, country}] = rateEntry{rate: rate, expiresAt: m.now().Add(ttl)}
	return nil
}
