// Package cache keeps the aggregate stats breakdown in redis so the admin
// dashboard and the bot do not hit the store on every view. The worker
// refreshes it whenever an application event comes off the queue.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/sirupsen/logrus"

	"github.com/ststudios/whitelist/db"
	"github.com/ststudios/whitelist/server/sse"
	"github.com/ststudios/whitelist/types"
)

const statsKey = "whitelist:stats"

// Service caches aggregate stats and pushes refreshes to SSE dashboards
type Service struct {
	pool      *redis.Pool
	store     db.Store
	sseBroker *sse.Broker
	logger    *logrus.Entry
}

// NewService creates the stats cache
func NewService(pool *redis.Pool, store db.Store, sseBroker *sse.Broker, logger *logrus.Entry) *Service {
	return &Service{
		pool:      pool,
		store:     store,
		sseBroker: sseBroker,
		logger:    logger,
	}
}

// NewRedisPool builds the redis connection pool shared by the cache and the
// session manager.
func NewRedisPool(addr, password string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     5,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			opts := []redis.DialOption{}
			if password != "" {
				opts = append(opts, redis.DialPassword(password))
			}
			return redis.Dial("tcp", addr, opts...)
		},
	}
}

// RefreshStats recomputes the per-status counts from the store, writes them
// to redis and broadcasts the fresh payload to connected dashboards.
func (s *Service) RefreshStats(ctx context.Context) error {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return err
	}
	stats := make([]types.StatusCount, 0, 3)
	for _, status := range []types.Status{types.StatusPending, types.StatusApproved, types.StatusRejected} {
		stats = append(stats, types.StatusCount{Status: status, Count: counts[status]})
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	conn := s.pool.Get()
	defer conn.Close()
	if _, err := conn.Do("SET", statsKey, payload); err != nil {
		return err
	}

	if s.sseBroker != nil {
		s.sseBroker.Publish(payload)
	}
	s.logger.Debug("Aggregate stats refreshed")
	return nil
}

// GetStats returns the cached breakdown, recomputing on a cache miss
func (s *Service) GetStats(ctx context.Context) ([]types.StatusCount, error) {
	conn := s.pool.Get()
	payload, err := redis.Bytes(conn.Do("GET", statsKey))
	conn.Close()
	if err == redis.ErrNil {
		if err := s.RefreshStats(ctx); err != nil {
			return nil, err
		}
		conn = s.pool.Get()
		defer conn.Close()
		payload, err = redis.Bytes(conn.Do("GET", statsKey))
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	var stats []types.StatusCount
	if err := json.Unmarshal(payload, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// PushCurrent broadcasts the cached stats to SSE clients, used when a new
// dashboard connects.
func (s *Service) PushCurrent(ctx context.Context) error {
	stats, err := s.GetStats(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	if s.sseBroker != nil {
		s.sseBroker.Publish(payload)
	}
	return nil
}
