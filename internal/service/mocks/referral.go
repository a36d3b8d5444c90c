package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/repository"
)

// MockReferralRepository implements repository.ReferralRepository for testing.
// IdempotencyKey is unique, as in the real table.
type MockReferralRepository struct {
	faults
	mu     sync.Mutex
	txs    map[int64]*models.ReferralTransaction
	keys   map[string]int64
	nextID int64
}

func NewMockReferralRepository() *MockReferralRepository {
	return &MockReferralRepository{
		txs:    make(map[int64]*models.ReferralTransaction),
		keys:   make(map[string]int64),
		nextID: 1,
	}
}

func (m *MockReferralRepository) Create(ctx context.Context, tx *models.ReferralTransaction) error {
	if err := m.fault("Create"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.keys[tx.IdempotencyKey]; exists {
		return repository.ErrDuplicateReferral
	}

	tx.ID = m.nextID
	m.nextID++
	cp := *tx
	m.txs[tx.ID] = &cp
	m.keys[tx.IdempotencyKey] = tx.ID
	return nil
}

func (m *MockReferralRepository) MarkPaid(ctx context.Context, id int64, paidAt time.Time) error {
	return m.transition(id, func(tx *models.ReferralTransaction) {
		tx.Status = models.ReferralCompleted
		tx.PaymentStatus = models.ReferralPaymentPaid
		tx.PaidAt = &paidAt
	})
}

func (m *MockReferralRepository) MarkFailed(ctx context.Context, id int64) error {
	return m.transition(id, func(tx *models.ReferralTransaction) {
		tx.Status = models.ReferralCancelled
		tx.PaymentStatus = models.ReferralPaymentFailed
	})
}

func (m *MockReferralRepository) transition(id int64, fn func(tx *models.ReferralTransaction)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, exists := m.txs[id]
	if !exists || tx.Status != models.ReferralPending {
		return repository.ErrStatusConflict
	}
	fn(tx)
	return nil
}

// All returns a snapshot ordered by id.
func (m *MockReferralRepository) All() []models.ReferralTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.ReferralTransaction, 0, len(m.txs))
	for id := int64(1); id < m.nextID; id++ {
		if tx, ok := m.txs[id]; ok {
			out = append(out, *tx)
		}
	}
	return out
}
