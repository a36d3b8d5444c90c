package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/repository"
	"github.com/shopspring/decimal"
)

// MockUserRepository implements repository.UserRepository for testing.
// Every method runs under one lock, like the single-row UPDATEs it replaces.
type MockUserRepository struct {
	faults
	mu     sync.Mutex
	users  map[int64]*models.User
	nextID int64
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[int64]*models.User),
		nextID: 1,
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.ID == 0 {
		user.ID = m.nextID
	}
	if user.ID >= m.nextID {
		m.nextID = user.ID + 1
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, exists := m.users[id]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepository) ReserveBudget(ctx context.Context, userID int64, amount decimal.Decimal) error {
	return m.update("ReserveBudget", userID, func(u *models.User) error {
		if u.AvailableBalance.Sub(u.ReservedBalance).LessThan(amount) {
			return repository.ErrInsufficientFunds
		}
		u.ReservedBalance = u.ReservedBalance.Add(amount)
		return nil
	})
}

func (m *MockUserRepository) SpendReserved(ctx context.Context, userID int64, amount decimal.Decimal) error {
	return m.update("SpendReserved", userID, func(u *models.User) error {
		if u.ReservedBalance.LessThan(amount) {
			return repository.ErrInsufficientReserve
		}
		u.ReservedBalance = u.ReservedBalance.Sub(amount)
		u.AvailableBalance = floor(u.AvailableBalance.Sub(amount))
		return nil
	})
}

func (m *MockUserRepository) ReleaseReserved(ctx context.Context, userID int64, amount decimal.Decimal) error {
	return m.update("ReleaseReserved", userID, func(u *models.User) error {
		u.ReservedBalance = floor(u.ReservedBalance.Sub(amount))
		return nil
	})
}

func (m *MockUserRepository) AcquireWithdrawalLock(ctx context.Context, userID int64, now time.Time, cooldown time.Duration) error {
	return m.update("AcquireWithdrawalLock", userID, func(u *models.User) error {
		if u.WithdrawalLockedAt != nil && u.WithdrawalLockedAt.After(now.Add(-cooldown)) {
			return repository.ErrCooldownActive
		}
		u.WithdrawalLockedAt = &now
		return nil
	})
}

func (m *MockUserRepository) ReleaseWithdrawalLock(ctx context.Context, userID int64, lockedAt time.Time) error {
	return m.update("ReleaseWithdrawalLock", userID, func(u *models.User) error {
		if u.WithdrawalLockedAt != nil && u.WithdrawalLockedAt.Equal(lockedAt) {
			u.WithdrawalLockedAt = nil
		}
		return nil
	})
}

func (m *MockUserRepository) ReserveWithdrawal(ctx context.Context, userID int64, t models.WithdrawalType, amount decimal.Decimal) error {
	return m.update("ReserveWithdrawal", userID, func(u *models.User) error {
		settled, reserved := pools(u, t)
		if settled.Sub(*reserved).LessThan(amount) {
			return repository.ErrInsufficientFunds
		}
		*reserved = reserved.Add(amount)
		return nil
	})
}

func (m *MockUserRepository) SettleWithdrawal(ctx context.Context, userID int64, t models.WithdrawalType, amount decimal.Decimal) error {
	return m.update("SettleWithdrawal", userID, func(u *models.User) error {
		settled, reserved := pools(u, t)
		*reserved = floor(reserved.Sub(amount))
		*settled = floor(settled.Sub(amount))
		u.AvailableBalance = floor(u.AvailableBalance.Sub(amount))
		return nil
	})
}

func (m *MockUserRepository) ReleaseWithdrawal(ctx context.Context, userID int64, t models.WithdrawalType, amount decimal.Decimal) error {
	return m.update("ReleaseWithdrawal", userID, func(u *models.User) error {
		_, reserved := pools(u, t)
		*reserved = floor(reserved.Sub(amount))
		return nil
	})
}

func (m *MockUserRepository) CreditEarnings(ctx context.Context, userID int64, amount decimal.Decimal) error {
	return m.update("CreditEarnings", userID, func(u *models.User) error {
		u.EarnedBalance = u.EarnedBalance.Add(amount)
		u.AvailableBalance = u.AvailableBalance.Add(amount)
		return nil
	})
}

func (m *MockUserRepository) CreditReferral(ctx context.Context, userID int64, amount decimal.Decimal) error {
	return m.update("CreditReferral", userID, func(u *models.User) error {
		u.ReferralEarned = u.ReferralEarned.Add(amount)
		u.AvailableBalance = u.AvailableBalance.Add(amount)
		return nil
	})
}

func (m *MockUserRepository) update(method string, userID int64, fn func(u *models.User) error) error {
	if err := m.fault(method); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, exists := m.users[userID]
	if !exists {
		return repository.ErrUserNotFound
	}

	// Apply to a copy so a failed guard leaves the row untouched.
	cp := *u
	if err := fn(&cp); err != nil {
		return err
	}
	m.users[userID] = &cp
	return nil
}

// pools returns pointers to the (settled, reserved) pair of t.
func pools(u *models.User, t models.WithdrawalType) (*decimal.Decimal, *decimal.Decimal) {
	if t == models.WithdrawalReferral {
		return &u.ReferralEarned, &u.ReservedReferralEarned
	}
	return &u.EarnedBalance, &u.ReservedEarnedBalance
}

func floor(d decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, d)
}

// MockCampaignRepository implements repository.CampaignRepository for testing
type MockCampaignRepository struct {
	faults
	mu        sync.Mutex
	campaigns map[int64]*models.Campaign
	nextID    int64
}

func NewMockCampaignRepository() *MockCampaignRepository {
	return &MockCampaignRepository{
		campaigns: make(map[int64]*models.Campaign),
		nextID:    1,
	}
}

func (m *MockCampaignRepository) Create(ctx context.Context, c *models.Campaign) error {
	if err := m.fault("Create"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = m.nextID
	m.nextID++
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *MockCampaignRepository) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, exists := m.campaigns[id]
	if !exists {
		return nil, repository.ErrCampaignNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCampaignRepository) AddSpent(ctx context.Context, id int64, amount decimal.Decimal) error {
	if err := m.fault("AddSpent"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, exists := m.campaigns[id]
	if !exists {
		return repository.ErrCampaignNotFound
	}
	if c.Status != models.CampaignActive {
		return repository.ErrStatusConflict
	}
	c.Spent = c.Spent.Add(amount)
	c.UpdatedAt = time.Now()
	return nil
}

func (m *MockCampaignRepository) TransitionStatus(ctx context.Context, id int64, from, to models.CampaignStatus) (*models.Campaign, error) {
	if err := m.fault("TransitionStatus"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, exists := m.campaigns[id]
	if !exists {
		return nil, repository.ErrCampaignNotFound
	}
	if c.Status != from {
		return nil, repository.ErrStatusConflict
	}
	c.Status = to
	c.UpdatedAt = time.Now()
	cp := *c
	return &cp, nil
}

// MockPaymentRepository implements repository.PaymentRepository for testing
type MockPaymentRepository struct {
	faults
	mu       sync.Mutex
	payments map[int64]*models.Payment
	nextID   int64
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[int64]*models.Payment),
		nextID:   1,
	}
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	if err := m.fault("Create"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p.ID = m.nextID
	m.nextID++
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.payments[id]
	if !exists {
		return nil, repository.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepository) TransitionStatus(ctx context.Context, id int64, from, to models.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.payments[id]
	if !exists {
		return repository.ErrPaymentNotFound
	}
	if p.Status != from {
		return repository.ErrStatusConflict
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	return nil
}

// Seed stores a payment as is, e.g. a top-up that is not a withdrawal.
func (m *MockPaymentRepository) Seed(p *models.Payment) *models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.ID = m.nextID
	m.nextID++
	cp := *p
	m.payments[p.ID] = &cp
	return p
}
