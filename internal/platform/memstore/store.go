// Package memstore is an in-process Store used by the memory driver and by tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fatflowers/clinicbilling/internal/app/store"
	"github.com/fatflowers/clinicbilling/internal/models"
	"github.com/samber/lo"
)

type Store struct {
	mu               sync.RWMutex
	tenants          map[string]*models.Tenant
	transactions     map[string]map[string]*models.PaymentTransaction
	subscriptionLogs []*models.SubscriptionLog
	notificationLogs []*models.PaymentNotificationLog
	now              func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		tenants:      map[string]*models.Tenant{},
		transactions: map[string]map[string]*models.PaymentTransaction{},
		now:          time.Now,
	}
}

func (s *Store) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenant.ID]; ok {
		return store.ErrDuplicate
	}
	now := s.now()
	tenant.CreatedAt, tenant.UpdatedAt = now, now
	s.tenants[tenant.ID] = tenant.Clone()
	return nil
}

func (s *Store) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *Store) FindTenantBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// deterministic "first match": oldest tenant wins
	matches := lo.Filter(lo.Values(s.tenants), func(t *models.Tenant, _ int) bool {
		id := t.Subscription.ExternalSubscriptionID
		return id != nil && *id == subscriptionID
	})
	if len(matches) == 0 {
		return nil, store.ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	return matches[0].Clone(), nil
}

// MutateTenant holds the write lock for the whole read-modify-write, so it
// never returns ErrConflict itself.
func (s *Store) MutateTenant(ctx context.Context, tenantID string, fn store.MutateFunc) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tenants[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	working := cur.Clone()
	txn, err := fn(ctx, working, lockedReader{s})
	if err != nil {
		return nil, err
	}
	if working.Version != cur.Version {
		return nil, store.ErrConflict
	}
	working.Version++
	working.UpdatedAt = s.now()
	s.tenants[tenantID] = working

	if txn != nil {
		cp := *txn
		cp.TenantID = tenantID
		if prev := s.transactions[tenantID][cp.ID]; prev != nil {
			cp.CreatedAt = prev.CreatedAt
		} else {
			cp.CreatedAt = working.UpdatedAt
		}
		cp.UpdatedAt = working.UpdatedAt
		if s.transactions[tenantID] == nil {
			s.transactions[tenantID] = map[string]*models.PaymentTransaction{}
		}
		s.transactions[tenantID][cp.ID] = &cp
	}
	return working.Clone(), nil
}

func (s *Store) GetTransaction(ctx context.Context, tenantID, paymentID string) (*models.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lockedReader{s}.GetTransaction(ctx, tenantID, paymentID)
}

func (s *Store) ListTransactions(ctx context.Context, tenantID string, from, size int) ([]*models.PaymentTransaction, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := lo.Values(s.transactions[tenantID])
	sort.Slice(all, func(i, j int) bool {
		if all[i].ProcessedAt.Equal(all[j].ProcessedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].ProcessedAt.After(all[j].ProcessedAt)
	})
	total := int64(len(all))
	if from >= len(all) {
		return []*models.PaymentTransaction{}, total, nil
	}
	end := min(from+size, len(all))
	return lo.Map(all[from:end], func(t *models.PaymentTransaction, _ int) *models.PaymentTransaction {
		cp := *t
		return &cp
	}), total, nil
}

func (s *Store) SaveSubscriptionLog(ctx context.Context, log *models.SubscriptionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *log
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	s.subscriptionLogs = append(s.subscriptionLogs, &cp)
	return nil
}

func (s *Store) SaveNotificationLog(ctx context.Context, log *models.PaymentNotificationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *log
	now := s.now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.notificationLogs = append(s.notificationLogs, &cp)
	return nil
}

// SubscriptionLogs returns a snapshot of the saved subscription logs.
func (s *Store) SubscriptionLogs() []*models.SubscriptionLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.SubscriptionLog(nil), s.subscriptionLogs...)
}

// NotificationLogs returns a snapshot of the saved notification logs.
func (s *Store) NotificationLogs() []*models.PaymentNotificationLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.PaymentNotificationLog(nil), s.notificationLogs...)
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close(ctx context.Context) error { return nil }

// lockedReader reads transactions while the caller already holds s.mu.
type lockedReader struct{ s *Store }

func (r lockedReader) GetTransaction(_ context.Context, tenantID, paymentID string) (*models.PaymentTransaction, error) {
	t, ok := r.s.transactions[tenantID][paymentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}
