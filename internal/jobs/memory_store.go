package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/contract-forge/internal/extract"
)

// MemoryStore はプロセス内にジョブを保持する Store です。開発環境とテスト用です。
// マップ自体のロックは参照の出し入れにだけ使い、レコードの更新はジョブごとのロックで直列化します。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	mu     sync.RWMutex
	record Record
}

// NewMemoryStore は空の MemoryStore を作成します。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Create は pending のジョブを作成します。
func (s *MemoryStore) Create(ctx context.Context, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := s.now().UTC()
	id := uuid.NewString()
	entry := &memoryEntry{record: Record{
		ID:        id,
		Filename:  filename,
		Status:    StatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}}

	s.mu.Lock()
	s.entries[id] = entry
	s.mu.Unlock()
	return id, nil
}

// UpdateProgress は状態と進捗を更新します。
func (s *MemoryStore) UpdateProgress(ctx context.Context, id string, status Status, progress int) error {
	progress, err := normalizeUpdate(status, progress)
	if err != nil {
		return err
	}
	return s.update(ctx, id, func(r *Record) error {
		if !canTransition(r, status, progress) {
			return ErrInvalidTransition
		}
		r.Status = status
		r.Progress = progress
		return nil
	})
}

// Complete はジョブを完了状態にします。
func (s *MemoryStore) Complete(ctx context.Context, id string, data *extract.ExtractedData, score int) error {
	if data == nil {
		return ErrInvalidInput
	}
	return s.update(ctx, id, func(r *Record) error {
		if !canTransition(r, StatusCompleted, 100) {
			return ErrInvalidTransition
		}
		r.Status = StatusCompleted
		r.Progress = 100
		r.ExtractedData = data
		r.ConfidenceScore = &score
		return nil
	})
}

// Get はジョブ全体のコピーを返します。
func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	entry, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.record.clone(), nil
}

// GetStatus は状態と進捗を返します。
func (s *MemoryStore) GetStatus(ctx context.Context, id string) (*StatusView, error) {
	entry, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return statusView(&entry.record), nil
}

// ListStale は更新が止まっている未完了ジョブを古い順に返します。
func (s *MemoryStore) ListStale(ctx context.Context, before time.Time, limit int) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var stale []*Record
	for _, e := range entries {
		e.mu.RLock()
		if e.record.Status != StatusCompleted && e.record.UpdatedAt.Before(before) {
			stale = append(stale, e.record.clone())
		}
		e.mu.RUnlock()
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].UpdatedAt.Before(stale[j].UpdatedAt)
	})
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

// Close は何もしません。
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) lookup(ctx context.Context, id string) (*memoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return entry, nil
}

func (s *MemoryStore) update(ctx context.Context, id string, mutate func(*Record) error) error {
	entry, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	next := entry.record
	if err := mutate(&next); err != nil {
		return err
	}
	next.UpdatedAt = s.now().UTC()
	entry.record = next
	return nil
}
