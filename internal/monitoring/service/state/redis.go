package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/craftport/opsmon/internal/monitoring/model"
)

const (
	lastRunKeyPrefix  = "health:lastrun:"
	failuresKeyPrefix = "health:failures:"
	resultKeyPrefix   = "health:result:"
	resultIndexKey    = "health:result:index"
)

// RedisStore is the production Store backed by Redis. Failure counters use
// INCR/DEL for per-key atomicity; cached results carry a TTL and are indexed
// in a set so Snapshot can enumerate them.
type RedisStore struct {
	rdb       *redis.Client
	resultTTL time.Duration
}

func NewRedisStore(rdb *redis.Client, resultTTL time.Duration) *RedisStore {
	if resultTTL <= 0 {
		resultTTL = 5 * time.Minute
	}
	return &RedisStore{rdb: rdb, resultTTL: resultTTL}
}

func (s *RedisStore) GetLastRun(ctx context.Context, service string) (time.Time, bool, error) {
	val, err := s.rdb.Get(ctx, lastRunKeyPrefix+service).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get last run: %w", err)
	}
	t, perr := time.Parse(time.RFC3339Nano, val)
	if perr != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

func (s *RedisStore) SetLastRun(ctx context.Context, service string, at time.Time) error {
	if err := s.rdb.Set(ctx, lastRunKeyPrefix+service, at.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("set last run: %w", err)
	}
	return nil
}

func (s *RedisStore) GetFailures(ctx context.Context, service, tenantID string) (int, error) {
	val, err := s.rdb.Get(ctx, failuresKey(service, tenantID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get failures: %w", err)
	}
	return val, nil
}

func (s *RedisStore) IncrFailures(ctx context.Context, service, tenantID string) (int, error) {
	n, err := s.rdb.Incr(ctx, failuresKey(service, tenantID)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr failures: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) ResetFailures(ctx context.Context, service, tenantID string) error {
	if err := s.rdb.Del(ctx, failuresKey(service, tenantID)).Err(); err != nil {
		return fmt.Errorf("reset failures: %w", err)
	}
	return nil
}

func (s *RedisStore) CacheResult(ctx context.Context, rec model.HealthCheckRecord) error {
	key := resultKey(rec.Service, rec.TenantID)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key, data, s.resultTTL)
	pipe.SAdd(ctx, resultIndexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache result: %w", err)
	}
	return nil
}

func (s *RedisStore) GetResult(ctx context.Context, service, tenantID string) (model.HealthCheckRecord, bool, error) {
	val, err := s.rdb.Get(ctx, resultKey(service, tenantID)).Result()
	if err == redis.Nil {
		return model.HealthCheckRecord{}, false, nil
	}
	if err != nil {
		return model.HealthCheckRecord{}, false, fmt.Errorf("get result: %w", err)
	}
	var rec model.HealthCheckRecord
	if uerr := json.Unmarshal([]byte(val), &rec); uerr != nil {
		return model.HealthCheckRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *RedisStore) Snapshot(ctx context.Context) ([]model.HealthCheckRecord, error) {
	keys, err := s.rdb.SMembers(ctx, resultIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot index: %w", err)
	}
	out := make([]model.HealthCheckRecord, 0, len(keys))
	for _, key := range keys {
		val, gerr := s.rdb.Get(ctx, key).Result()
		if gerr == redis.Nil {
			// expired entry, drop from the index
			if serr := s.rdb.SRem(ctx, resultIndexKey, key).Err(); serr != nil {
				log.Warn().Err(serr).Str("key", key).Msg("failed to prune expired result from index")
			}
			continue
		}
		if gerr != nil {
			log.Warn().Err(gerr).Str("key", key).Msg("failed to read cached result")
			continue
		}
		var rec model.HealthCheckRecord
		if uerr := json.Unmarshal([]byte(val), &rec); uerr != nil {
			log.Warn().Err(uerr).Str("key", key).Msg("invalid cached result")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func failuresKey(service, tenantID string) string {
	return failuresKeyPrefix + service + ":" + Scope(tenantID)
}

func resultKey(service, tenantID string) string {
	return resultKeyPrefix + service + ":" + Scope(tenantID)
}
