package preview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/yuanying/zinespread/internal/document"
)

var ErrNoSession = errors.New("no such session")

const defaultSessionTTL = 2 * time.Hour

// Manager keeps the live sessions of a host. Idle sessions expire after the
// TTL; expiry and deletion close them, which stops their control loops and
// closes their surfaces.
type Manager struct {
	ctx   context.Context
	cfg   Config
	cache *cache.Cache

	mu     sync.RWMutex
	pinned string
}

// NewManager creates a manager whose session control loops run until ctx ends.
func NewManager(ctx context.Context, cfg Config, ttl time.Duration) *Manager {
	cfg.defaults()
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	c := cache.New(ttl, ttl/4)
	c.OnEvicted(func(id string, v interface{}) {
		if s, ok := v.(*Session); ok {
			cfg.Logger.Debug("session evicted", "session", id)
			s.Close()
		}
	})
	return &Manager{ctx: ctx, cfg: cfg, cache: c}
}

// Config returns the configuration sessions are created with.
func (m *Manager) Config() Config { return m.cfg }

// Create starts a session for d.
func (m *Manager) Create(d *document.Document) (*Session, error) {
	return m.create(d, cache.DefaultExpiration)
}

// Pin starts a session for d that never expires and becomes the default session.
func (m *Manager) Pin(d *document.Document) (*Session, error) {
	s, err := m.create(d, cache.NoExpiration)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.pinned = s.ID()
	m.mu.Unlock()
	return s, nil
}

func (m *Manager) create(d *document.Document, ttl time.Duration) (*Session, error) {
	id := uuid.New().String()
	s, err := NewSession(id, d, m.cfg)
	if err != nil {
		return nil, err
	}
	m.cache.Set(id, s, ttl)
	go func() {
		if err := s.Run(m.ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.cfg.Logger.Warn("session loop stopped", "session", id, "error", err)
		}
	}()
	m.cfg.Logger.Info("session started", "session", id, "path", d.Path)
	return s, nil
}

// Default returns the pinned session, if any.
func (m *Manager) Default() (*Session, bool) {
	id := m.pinnedID()
	if id == "" {
		return nil, false
	}
	return m.Get(id)
}

func (m *Manager) pinnedID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pinned
}

// Get returns a session and extends its lifetime.
func (m *Manager) Get(id string) (*Session, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	if id != m.pinnedID() {
		m.cache.Set(id, s, cache.DefaultExpiration)
	}
	return s, true
}

// Delete closes and forgets a session.
func (m *Manager) Delete(id string) error {
	if _, ok := m.cache.Get(id); !ok {
		return ErrNoSession
	}
	m.cache.Delete(id)
	m.mu.Lock()
	if id == m.pinned {
		m.pinned = ""
	}
	m.mu.Unlock()
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int { return m.cache.ItemCount() }

// Close closes every session.
func (m *Manager) Close() {
	for id := range m.cache.Items() {
		m.cache.Delete(id)
	}
	m.mu.Lock()
	m.pinned = ""
	m.mu.Unlock()
}
