package shop

import (
	"context"
	"sync"
	"time"

	"appsystem/pkg/shopware"
)

// MemoryStore is an in-process Store for tests and local tooling.
type MemoryStore struct {
	mu    sync.RWMutex
	shops map[string]Shop
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{shops: make(map[string]Shop), now: time.Now}
}

func (m *MemoryStore) Create(_ context.Context, shopID, shopURL, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	created := now
	if prev, ok := m.shops[shopID]; ok {
		created = prev.CreatedAt
	}
	m.shops[shopID] = Shop{ID: shopID, URL: shopURL, Secret: secret, CreatedAt: created, UpdatedAt: now}
	return nil
}

func (m *MemoryStore) UpdateKeys(_ context.Context, shopID, apiKey, secretKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[shopID]
	if !ok {
		return ErrNotFound
	}
	s.APIKey, s.SecretKey, s.UpdatedAt = apiKey, secretKey, m.now()
	m.shops[shopID] = s
	return nil
}

func (m *MemoryStore) LookupSecret(_ context.Context, shopID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shops[shopID]
	if !ok {
		return "", ErrNotFound
	}
	return s.Secret, nil
}

func (m *MemoryStore) LookupCredentials(_ context.Context, shopID string) (shopware.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shops[shopID]
	if !ok {
		return shopware.Credentials{}, ErrNotFound
	}
	if s.APIKey == "" || s.SecretKey == "" {
		return shopware.Credentials{}, ErrNotConfirmed
	}
	return shopware.NewCredentials(s.URL, s.APIKey, s.SecretKey), nil
}

func (m *MemoryStore) Find(_ context.Context, shopID string) (*Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shops[shopID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Remove(_ context.Context, shopID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.shops, shopID)
	return nil
}
