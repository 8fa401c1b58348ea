package web

import (
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Sternrassler/anilist-browser/pkg/profile"
)

const (
	// maxMemorySessions bounds how many visitors the memory backend keeps.
	maxMemorySessions = 10_000

	// defaultSessionTTL applies when no profile TTL is configured.
	defaultSessionTTL = 24 * time.Hour
)

// memorySessions keeps one MemoryStorage per session id. Entries expire
// after ttl without use, and the least valuable are evicted once
// maxMemorySessions is reached.
type memorySessions struct {
	ttl   time.Duration
	cache *ristretto.Cache[string, *profile.MemoryStorage]

	// mu serializes get-or-create so concurrent requests of one new
	// session share a storage.
	mu sync.Mutex
}

func newMemorySessions(ttl time.Duration) *memorySessions {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *profile.MemoryStorage]{
		NumCounters: maxMemorySessions * 10,
		MaxCost:     maxMemorySessions,
		BufferItems: 64,
	})
	if err != nil {
		panic("memory session cache: " + err.Error())
	}
	return &memorySessions{ttl: ttl, cache: cache}
}

// get returns the storage of id, creating it when absent or expired. Each
// use restarts the expiry.
func (m *memorySessions) get(id string) *profile.MemoryStorage {
	m.mu.Lock()
	defer m.mu.Unlock()

	storage, ok := m.cache.Get(id)
	if !ok {
		storage = profile.NewMemoryStorage()
	}
	m.cache.SetWithTTL(id, storage, 1, m.ttl)
	m.cache.Wait()
	return storage
}

func (m *memorySessions) close() {
	m.cache.Close()
}
