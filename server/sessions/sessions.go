// Package sessions holds the cookie-session state established by the
// Discord OAuth login. The redis manager is the production backend; the
// memory manager serves development setups and tests.
package sessions

import (
	"bytes"
	"encoding/gob"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
)

// CookieName is the session cookie set after a successful OAuth login
const CookieName = "session_id"

// TTL is how long a session stays valid
const TTL = 24 * time.Hour

// Session is the authenticated identity carried between requests
type Session struct {
	UserID   string
	Username string
	Avatar   string
	IsAdmin  bool
}

// Manager stores and retrieves sessions by id. Get returns (nil, nil) for an
// unknown or expired session so callers can distinguish "not logged in" from
// a backend failure.
type Manager interface {
	Create(s Session) (string, error)
	Get(id string) (*Session, error)
	Delete(id string) error
}

// RedisManager keeps sessions in redis with a TTL
type RedisManager struct {
	pool *redis.Pool
}

// NewRedisManager creates a session manager on top of a redis pool
func NewRedisManager(pool *redis.Pool) *RedisManager {
	return &RedisManager{pool: pool}
}

func sessionKey(id string) string {
	return "session:" + id
}

func (m *RedisManager) Create(s Session) (string, error) {
	id := uuid.New().String()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return "", err
	}
	conn := m.pool.Get()
	defer conn.Close()
	_, err := conn.Do("SETEX", sessionKey(id), int64(TTL.Seconds()), buf.Bytes())
	if err != nil {
		return "", err
	}
	return id, nil
}

func (m *RedisManager) Get(id string) (*Session, error) {
	conn := m.pool.Get()
	defer conn.Close()
	data, err := redis.Bytes(conn.Do("GET", sessionKey(id)))
	if err == redis.ErrNil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *RedisManager) Delete(id string) error {
	conn := m.pool.Get()
	defer conn.Close()
	_, err := conn.Do("DEL", sessionKey(id))
	return err
}

// MemoryManager keeps sessions in process memory
type MemoryManager struct {
	mu       sync.Mutex
	sessions map[string]memorySession
}

type memorySession struct {
	session Session
	expires time.Time
}

// NewMemoryManager creates an in-process session manager
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{sessions: make(map[string]memorySession)}
}

func (m *MemoryManager) Create(s Session) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.sessions[id] = memorySession{session: s, expires: time.Now().Add(TTL)}
	return id, nil
}

func (m *MemoryManager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expires) {
		delete(m.sessions, id)
		return nil, nil
	}
	s := entry.session
	return &s, nil
}

func (m *MemoryManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
