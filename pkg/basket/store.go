package basket

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	basketOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_basket_operations_total",
		Help: "Total basket loads and saves by list kind",
	}, []string{"kind", "operation"})

	basketErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_basket_errors_total",
		Help: "Total basket store failures by operation",
	}, []string{"operation"})
)

// Store persists lists per user and kind. A list that was never saved
// loads as an empty list.
type Store interface {
	Load(ctx context.Context, username string, kind Kind) (*List, error)
	Save(ctx context.Context, username string, kind Kind, list *List) error
}

func checkKey(username string, kind Kind) error {
	if username == "" {
		return ErrEmptyUsername
	}
	_, err := ParseKind(string(kind))
	return err
}

func storeKey(username string, kind Kind) string {
	return RedisKeyPrefix + username + ":" + string(kind)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	lists map[string]*List
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lists: make(map[string]*List)}
}

func (s *MemoryStore) Load(_ context.Context, username string, kind Kind) (*List, error) {
	if err := checkKey(username, kind); err != nil {
		return nil, err
	}
	basketOperationsTotal.WithLabelValues(string(kind), "load").Inc()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.lists[storeKey(username, kind)]; ok {
		return l.clone(), nil
	}
	return &List{Products: []Item{}}, nil
}

func (s *MemoryStore) Save(_ context.Context, username string, kind Kind, list *List) error {
	if err := checkKey(username, kind); err != nil {
		return err
	}
	if list == nil {
		list = &List{}
	}
	basketOperationsTotal.WithLabelValues(string(kind), "save").Inc()

	s.mu.Lock()
	s.lists[storeKey(username, kind)] = list.clone()
	s.mu.Unlock()
	return nil
}
