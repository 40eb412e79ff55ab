package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yourusername/contract-forge/internal/extract"
)

const (
	contractKeyPrefix = "contract:"
	maxTxAttempts     = 16
)

// RedisStore はジョブ状態を Redis に JSON で保存します。
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore は RedisStore を作成します。ttl が 0 の場合は期限なしで保存します。
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		ttl: ttl,
		now: time.Now,
	}
}

// Create は pending のジョブを作成します。
func (s *RedisStore) Create(ctx context.Context, filename string) (string, error) {
	now := s.now().UTC()
	record := &Record{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    StatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	ok, err := s.rdb.SetNX(ctx, contractKey(record.ID), payload, s.ttl).Result()
	if err != nil {
		return "", unavailable("create contract", err)
	}
	if !ok {
		return "", fmt.Errorf("contract id collision: %s", record.ID)
	}
	return record.ID, nil
}

// Get はジョブ情報を取得します。
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	data, err := s.rdb.Get(ctx, contractKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable("get contract", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetStatus は状態と進捗を取得します。
func (s *RedisStore) GetStatus(ctx context.Context, id string) (*StatusView, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return statusView(record), nil
}

// UpdateProgress は進捗を更新します。
func (s *RedisStore) UpdateProgress(ctx context.Context, id string, status Status, progress int) error {
	progress, err := normalizeUpdate(status, progress)
	if err != nil {
		return err
	}
	return s.updatePartial(ctx, id, func(record *Record) error {
		if !canTransition(record, status, progress) {
			return ErrInvalidTransition
		}
		record.Status = status
		record.Progress = progress
		return nil
	})
}

// Complete はジョブ完了時の情報を 1 回の SET で保存します。
func (s *RedisStore) Complete(ctx context.Context, id string, data *extract.ExtractedData, score int) error {
	if data == nil {
		return ErrInvalidInput
	}
	return s.updatePartial(ctx, id, func(record *Record) error {
		if !canTransition(record, StatusCompleted, 100) {
			return ErrInvalidTransition
		}
		record.Status = StatusCompleted
		record.Progress = 100
		record.ExtractedData = data
		record.ConfidenceScore = &score
		return nil
	})
}

// ListStale は更新が止まっている未完了ジョブを SCAN で探します。
func (s *RedisStore) ListStale(ctx context.Context, before time.Time, limit int) ([]*Record, error) {
	var stale []*Record
	iter := s.rdb.Scan(ctx, 0, contractKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, unavailable("scan contracts", err)
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		if record.Status != StatusCompleted && record.UpdatedAt.Before(before) {
			stale = append(stale, &record)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("scan contracts", err)
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].UpdatedAt.Before(stale[j].UpdatedAt)
	})
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

// Close は Redis クライアントを閉じます。
func (s *RedisStore) Close(ctx context.Context) error {
	return s.rdb.Close()
}

// updatePartial は WATCH/MULTI による楽観ロックでレコードを読み替えて保存します。
// 他の書き込みと衝突した場合は読み直してやり直します。
func (s *RedisStore) updatePartial(ctx context.Context, id string, mutate func(*Record) error) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	key := contractKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			return err
		}
		if err := mutate(&record); err != nil {
			return err
		}
		record.UpdatedAt = s.now().UTC()
		payload, err := json.Marshal(&record)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidTransition):
			return err
		default:
			return unavailable("update contract", err)
		}
	}
	return unavailable("update contract", fmt.Errorf("too much contention on %s", key))
}

func contractKey(id string) string {
	return contractKeyPrefix + id
}
