package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"shoppersense/internal/analytics"
	"shoppersense/internal/models"
)

// Memory is a Repository over an in-process slice, used for CSV-backed runs
// and tests. Listing filters with the same predicate the engine uses.
type Memory struct {
	mu      sync.RWMutex
	rows    []models.Transaction
	ids     map[string]int
	deleted map[string]bool
}

func NewMemory(txs []models.Transaction) *Memory {
	m := &Memory{
		ids:     make(map[string]int),
		deleted: make(map[string]bool),
	}
	m.BulkCreate(context.Background(), txs)
	return m
}

func (m *Memory) List(ctx context.Context, q models.Query) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	live := make([]models.Transaction, 0, len(m.rows))
	for _, tx := range m.rows {
		if !m.deleted[tx.ID] {
			live = append(live, tx)
		}
	}
	m.mu.RUnlock()

	out := analytics.SortByDate(analytics.Filter(live, q.Criteria), q.Order)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.Must(uuid.NewV7()).String()
	}
	prepare(tx, time.Now().UTC())

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.ids[tx.ID]; dup {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, ErrDuplicate)
	}
	m.insert(*tx)
	return nil
}

func (m *Memory) BulkCreate(ctx context.Context, txs []models.Transaction) (int, error) {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, tx := range txs {
		prepare(&tx, now)
		if tx.ID == "" {
			tx.ID = ContentID(tx)
		}
		if _, dup := m.ids[tx.ID]; dup {
			continue
		}
		m.insert(tx)
		inserted++
	}
	return inserted, nil
}

// insert requires m.mu held for writing.
func (m *Memory) insert(tx models.Transaction) {
	m.ids[tx.ID] = len(m.rows)
	m.rows = append(m.rows, tx)
}

func (m *Memory) SoftDelete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ids[id]; !ok || m.deleted[id] {
		return ErrNotFound
	}
	m.deleted[id] = true
	return nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows) - len(m.deleted), nil
}

func (m *Memory) Close() error { return nil }
