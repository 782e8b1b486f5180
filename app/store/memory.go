package store

import (
	"context"
	"sync"
	"time"

	"github.com/velorum-store/ms-go-checkout/app/entity"
)

type memoryEntry struct {
	token     entity.CheckoutToken
	version   uint64
	expiresAt time.Time
}

// MemoryTokenStore is the in-process TokenStore. Expired entries are
// dropped lazily on access and by a janitor sweep.
type MemoryTokenStore struct {
	mu      sync.Mutex
	entries map[uint64]*memoryEntry
	ttl     time.Duration

	stopJanitor chan struct{}
	stopOnce    sync.Once
}

func NewMemoryTokenStore(ttl time.Duration) *MemoryTokenStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	s := &MemoryTokenStore{
		entries:     map[uint64]*memoryEntry{},
		ttl:         ttl,
		stopJanitor: make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryTokenStore) Put(_ context.Context, orderID uint64, token *entity.CheckoutToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var version uint64 = 1
	if prev, ok := s.entries[orderID]; ok {
		version = prev.version + 1
	}

	s.entries[orderID] = &memoryEntry{
		token:     *token,
		version:   version,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryTokenStore) Get(_ context.Context, orderID uint64) (*entity.CheckoutToken, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.entries[orderID]
	if !ok {
		return nil, 0, ErrTokenNotFound
	}
	if time.Now().After(item.expiresAt) {
		delete(s.entries, orderID)
		return nil, 0, ErrTokenNotFound
	}

	copyToken := item.token
	return &copyToken, item.version, nil
}

func (s *MemoryTokenStore) CompareAndSwap(_ context.Context, orderID uint64, version uint64, token *entity.CheckoutToken) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.entries[orderID]
	if !ok || time.Now().After(item.expiresAt) {
		delete(s.entries, orderID)
		return false, ErrTokenNotFound
	}
	if item.version != version {
		return false, nil
	}

	item.token = *token
	item.version++
	return true, nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, orderID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, orderID)
	return nil
}

// Close stops the janitor goroutine.
func (s *MemoryTokenStore) Close() {
	s.stopOnce.Do(func() { close(s.stopJanitor) })
}

func (s *MemoryTokenStore) janitor() {
	interval := s.ttl
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopJanitor:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for orderID, item := range s.entries {
				if now.After(item.expiresAt) {
					delete(s.entries, orderID)
				}
			}
			s.mu.Unlock()
		}
	}
}
