package profile

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryStorage keeps items in process memory. Setting Err makes every
// operation fail with it, as a disabled browser storage would.
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string]string
	Err   error
}

// NewMemoryStorage creates an empty memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", false, m.Err
	}
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.items[key] = value
	return nil
}

func (m *MemoryStorage) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.items, key)
	return nil
}

// RedisKeyPrefix namespaces profile items in Redis.
const RedisKeyPrefix = "anilist:profile"

// RedisStorage keeps one visitor's items in Redis under
// "anilist:profile:<namespace>:<key>".
type RedisStorage struct {
	redis     *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisStorage creates a storage for namespace. A zero ttl keeps items
// until removed.
func NewRedisStorage(client *redis.Client, namespace string, ttl time.Duration) *RedisStorage {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStorage{redis: client, namespace: namespace, ttl: ttl}
}

func (r *RedisStorage) key(k string) string {
	return fmt.Sprintf("%s:%s:%s", RedisKeyPrefix, r.namespace, k)
}

func (r *RedisStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	v, err := r.redis.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (r *RedisStorage) SetItem(ctx context.Context, key, value string) error {
	if err := r.redis.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisStorage) RemoveItem(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// CookieStorage keeps items in cookies of one HTTP exchange. Values are
// base64url encoded; writes are visible to later reads in the same
// exchange.
type CookieStorage struct {
	r      *http.Request
	w      http.ResponseWriter
	MaxAge time.Duration
	Secure bool

	mu      sync.Mutex
	written map[string]*string
}

// NewCookieStorage creates a storage bound to one request and its response.
func NewCookieStorage(w http.ResponseWriter, r *http.Request) *CookieStorage {
	return &CookieStorage{
		r:       r,
		w:       w,
		MaxAge:  365 * 24 * time.Hour,
		written: make(map[string]*string),
	}
}

func (c *CookieStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	if v, ok := c.written[key]; ok {
		c.mu.Unlock()
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
	c.mu.Unlock()

	cookie, err := c.r.Cookie(key)
	if errors.Is(err, http.ErrNoCookie) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	data, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		// Unreadable cookies are treated as absent.
		return "", false, nil
	}
	return string(data), true, nil
}

func (c *CookieStorage) SetItem(_ context.Context, key, value string) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(value)),
		Path:     "/",
		MaxAge:   int(c.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.mu.Lock()
	c.written[key] = &value
	c.mu.Unlock()
	return nil
}

func (c *CookieStorage) RemoveItem(_ context.Context, key string) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.mu.Lock()
	c.written[key] = nil
	c.mu.Unlock()
	return nil
}
