package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/contract-forge/internal/extract"
)

// flakyStore は failAfter 回目以降の UpdateProgress を失敗させます。
type flakyStore struct {
	Store
	mu        sync.Mutex
	updates   int
	failAfter int
	completes int
}

var errStoreDown = errors.New("store down")

func (s *flakyStore) UpdateProgress(ctx context.Context, id string, status Status, progress int) error {
	s.mu.Lock()
	s.updates++
	n := s.updates
	s.mu.Unlock()
	if s.failAfter > 0 && n > s.failAfter {
		return errStoreDown
	}
	return s.Store.UpdateProgress(ctx, id, status, progress)
}

func (s *flakyStore) Complete(ctx context.Context, id string, data *extract.ExtractedData, score int) error {
	s.mu.Lock()
	s.completes++
	s.mu.Unlock()
	return s.Store.Complete(ctx, id, data, score)
}

func newTestWorker(t *testing.T, store Store, steps int, interval time.Duration) *Worker {
	t.Helper()
	w, err := NewWorker(store, extract.NewPlaceholder(steps, interval), extract.ScoringPresence, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWorker returned error: %v", err)
	}
	return w
}

func TestWorkerCompletesJob(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id, err := store.Create(ctx, "contract.pdf")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	w := newTestWorker(t, store, 10, 0)
	if err := w.Run(ctx, Task{JobID: id, Filename: "contract.pdf"}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	record, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if record.Status != StatusCompleted || record.Progress != 100 {
		t.Fatalf("record is %s/%d, want completed/100", record.Status, record.Progress)
	}
	if record.ConfidenceScore == nil || *record.ConfidenceScore != 75 {
		t.Fatalf("unexpected score: %v", record.ConfidenceScore)
	}
	if record.ExtractedData == nil || record.ExtractedData.FinancialDetails.Currency != "USD" {
		t.Fatalf("unexpected data: %#v", record.ExtractedData)
	}
}

func TestWorkerHaltsOnStoreFailure(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	id, err := mem.Create(ctx, "contract.pdf")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	// 開始 + 3 ステップまでは成功し、その後は失敗する
	store := &flakyStore{Store: mem, failAfter: 4}

	w := newTestWorker(t, store, 10, 0)
	err = w.Run(ctx, Task{JobID: id, Filename: "contract.pdf"})
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store failure, got %v", err)
	}
	if store.completes != 0 {
		t.Fatalf("Complete called %d times after failure", store.completes)
	}

	record, err := mem.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if record.Status != StatusProcessing || record.Progress != 30 {
		t.Fatalf("record is %s/%d, want processing/30", record.Status, record.Progress)
	}
	if record.ExtractedData != nil || record.ConfidenceScore != nil {
		t.Fatalf("result fields populated after failure: %#v", record)
	}
}

func TestWorkerStopsOnCancellation(t *testing.T) {
	store := NewMemoryStore()
	id, err := store.Create(context.Background(), "contract.pdf")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := newTestWorker(t, store, 10, 20*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, Task{JobID: id, Filename: "contract.pdf"}) }()

	deadline := time.After(5 * time.Second)
	for {
		view, err := store.GetStatus(context.Background(), id)
		if err != nil {
			t.Fatalf("GetStatus returned error: %v", err)
		}
		if view.Progress >= 20 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker did not make progress")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}

	record, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if record.Status == StatusCompleted {
		t.Fatal("cancelled job must not be completed")
	}
}

func TestWorkerRejectsUnknownJob(t *testing.T) {
	w := newTestWorker(t, NewMemoryStore(), 2, 0)
	err := w.Run(context.Background(), Task{JobID: "6f1c1a5e-1b0e-4b9f-9d7e-2f0b2c8f5a11"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewWorkerValidatesArguments(t *testing.T) {
	if _, err := NewWorker(nil, extract.NewPlaceholder(1, 0), extract.ScoringPresence, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewWorker(NewMemoryStore(), nil, extract.ScoringPresence, nil); err == nil {
		t.Fatal("expected error for nil extractor")
	}
}

type emptyExtractor struct{}

func (emptyExtractor) Run(ctx context.Context, doc extract.Document, reporter extract.ProgressReporter) (*extract.ExtractedData, error) {
	if err := extract.ReportProgress(reporter, 50); err != nil {
		return nil, err
	}
	return nil, nil
}

func TestWorkerHaltsWhenExtractorReturnsNoData(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	id, err := mem.Create(ctx, "contract.pdf")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	store := &flakyStore{Store: mem}

	w, err := NewWorker(store, emptyExtractor{}, extract.ScoringPresence, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWorker returned error: %v", err)
	}
	if err := w.Run(ctx, Task{JobID: id, Filename: "contract.pdf"}); !errors.Is(err, errEmptyResult) {
		t.Fatalf("expected errEmptyResult, got %v", err)
	}
	if store.completes != 0 {
		t.Fatalf("Complete called %d times without data", store.completes)
	}

	record, err := mem.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if record.Status != StatusProcessing || record.Progress != 50 {
		t.Fatalf("record is %s/%d, want processing/50", record.Status, record.Progress)
	}
	if record.ExtractedData != nil || record.ConfidenceScore != nil {
		t.Fatalf("result fields populated without data: %#v", record)
	}
}
