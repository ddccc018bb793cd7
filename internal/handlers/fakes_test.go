package handlers

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TWolczanski/image-api/internal/models"
	"github.com/TWolczanski/image-api/internal/repository"
)

// The fakes below implement the repository interfaces and the blob store
// in memory, so handler tests exercise the full HTTP surface without
// Postgres, Redis or MinIO.

type memStore struct {
	mu     sync.Mutex
	images map[string]models.Image
	links  map[string]models.DerivedLink
}

func newMemStore() *memStore {
	return &memStore{
		images: make(map[string]models.Image),
		links:  make(map[string]models.DerivedLink),
	}
}

func (m *memStore) CreateWithLinks(_ context.Context, image models.Image, links []models.DerivedLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[image.ID] = image
	for _, l := range links {
		m.links[l.ID] = l
	}
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[id]
	if !ok {
		return models.Image{}, repository.ErrImageNotFound
	}
	return img, nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID string, now time.Time) ([]repository.ImageWithLinks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.ImageWithLinks
	for _, img := range m.images {
		if img.OwnerID != ownerID {
			continue
		}
		entry := repository.ImageWithLinks{Image: img}
		for _, l := range m.links {
			if l.ImageID == img.ID && l.ValidAt(now) {
				entry.Links = append(entry.Links, l)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, link models.DerivedLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[link.ID] = link
	return nil
}

func (m *memStore) GetValidOwned(_ context.Context, id string, ownerID string, now time.Time) (models.DerivedLink, models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[id]
	if !ok {
		return models.DerivedLink{}, models.Image{}, repository.ErrLinkNotFound
	}
	img, ok := m.images[link.ImageID]
	if !ok || img.OwnerID != ownerID || !link.ValidAt(now) {
		return models.DerivedLink{}, models.Image{}, repository.ErrLinkNotFound
	}
	return link, img, nil
}

func (m *memStore) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, l := range m.links {
		if l.Expiry != nil && l.CreatedAt.Add(*l.Expiry).Before(cutoff) {
			delete(m.links, id)
			deleted++
		}
	}
	return deleted, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]models.User)}
}

func (m *memUsers) Create(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memUsers) setTier(userID string, tierID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	u.TierID = &tierID
	m.users[userID] = u
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]models.Session)}
}

func (m *memSessions) Create(_ context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *memSessions) GetByID(_ context.Context, id string) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return s, nil
}

func (m *memSessions) FindByRefreshHash(_ context.Context, userID string, hash []byte) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID == userID && bytes.Equal(s.RefreshTokenHash, hash) {
			return s, nil
		}
	}
	return models.Session{}, repository.ErrSessionNotFound
}

func (m *memSessions) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

type memTiers struct {
	tiers map[string]models.Tier
}

func (m *memTiers) GetByID(_ context.Context, id string) (models.Tier, error) {
	t, ok := m.tiers[id]
	if !ok {
		return models.Tier{}, repository.ErrTierNotFound
	}
	return t, nil
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (m *memBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memBlobs) Fetch(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (m *memBlobs) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}
