package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yourusername/contract-forge/internal/extract"
)

func sampleData() *extract.ExtractedData {
	value := 1200.5
	return &extract.ExtractedData{
		PartyIdentification: extract.PartyIdentification{Parties: []string{"Acme Corp."}},
		FinancialDetails:    extract.FinancialDetails{TotalContractValue: &value, Currency: "EUR"},
		PaymentStructure:    extract.PaymentStructure{PaymentTerms: "Net 45"},
	}
}

// testStoreContract は全バックエンドが満たすべき振る舞いを検証します。
func testStoreContract(t *testing.T, store Store, unknownID string) {
	t.Helper()
	ctx := context.Background()

	id, err := store.Create(ctx, "contract.pdf")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	record, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if record.ID != id || record.Filename != "contract.pdf" {
		t.Fatalf("unexpected record: %#v", record)
	}
	if record.Status != StatusPending || record.Progress != 0 {
		t.Fatalf("new record is %s/%d, want pending/0", record.Status, record.Progress)
	}
	if record.ExtractedData != nil || record.ConfidenceScore != nil {
		t.Fatalf("new record has result fields: %#v", record)
	}
	if record.CreatedAt.IsZero() {
		t.Fatal("CreatedAt is zero")
	}

	// pending のまま completed にはできない
	if err := store.Complete(ctx, id, sampleData(), 75); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Complete on pending job: got %v, want ErrInvalidTransition", err)
	}
	if err := store.UpdateProgress(ctx, id, StatusCompleted, 100); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("UpdateProgress to completed: got %v, want ErrInvalidTransition", err)
	}

	if err := store.UpdateProgress(ctx, id, StatusProcessing, 0); err != nil {
		t.Fatalf("UpdateProgress(processing, 0) returned error: %v", err)
	}
	if err := store.UpdateProgress(ctx, id, StatusProcessing, 40); err != nil {
		t.Fatalf("UpdateProgress(processing, 40) returned error: %v", err)
	}
	if err := store.UpdateProgress(ctx, id, StatusProcessing, 30); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("regressing progress: got %v, want ErrInvalidTransition", err)
	}
	if err := store.UpdateProgress(ctx, id, StatusPending, 0); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("regressing status: got %v, want ErrInvalidTransition", err)
	}

	// 結果なしで completed にはできない
	if err := store.Complete(ctx, id, nil, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Complete without data: got %v, want ErrInvalidInput", err)
	}

	view, err := store.GetStatus(ctx, id)
	if err != nil {
		t.Fatalf("GetStatus returned error: %v", err)
	}
	if view.ID != id || view.Status != StatusProcessing || view.Progress != 40 {
		t.Fatalf("unexpected status view: %#v", view)
	}

	// 部分更新で他のフィールドが変わらないこと
	record, err = store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if record.Filename != "contract.pdf" || record.ExtractedData != nil {
		t.Fatalf("partial update disturbed other fields: %#v", record)
	}

	stale, err := store.ListStale(ctx, time.Now().Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("ListStale returned error: %v", err)
	}
	if !containsID(stale, id) {
		t.Fatalf("processing job %s missing from ListStale", id)
	}

	data := sampleData()
	if err := store.Complete(ctx, id, data, 75); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	record, err = store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if record.Status != StatusCompleted || record.Progress != 100 {
		t.Fatalf("completed record is %s/%d", record.Status, record.Progress)
	}
	if record.ConfidenceScore == nil || *record.ConfidenceScore != 75 {
		t.Fatalf("unexpected confidence score: %v", record.ConfidenceScore)
	}
	if record.ExtractedData == nil || record.ExtractedData.PaymentStructure.PaymentTerms != "Net 45" {
		t.Fatalf("unexpected extracted data: %#v", record.ExtractedData)
	}
	if v := record.ExtractedData.FinancialDetails.TotalContractValue; v == nil || *v != 1200.5 {
		t.Fatalf("unexpected contract value: %v", v)
	}

	// 完了後は不変
	if err := store.UpdateProgress(ctx, id, StatusProcessing, 100); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("UpdateProgress after completion: got %v, want ErrInvalidTransition", err)
	}
	if err := store.Complete(ctx, id, sampleData(), 10); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Complete: got %v, want ErrInvalidTransition", err)
	}

	stale, err = store.ListStale(ctx, time.Now().Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("ListStale returned error: %v", err)
	}
	if containsID(stale, id) {
		t.Fatalf("completed job %s listed as stale", id)
	}

	for _, bad := range []string{"not-an-id", "", "../etc/passwd"} {
		if _, err := store.Get(ctx, bad); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get(%q): got %v, want ErrNotFound", bad, err)
		}
		if _, err := store.GetStatus(ctx, bad); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetStatus(%q): got %v, want ErrNotFound", bad, err)
		}
	}
	if _, err := store.Get(ctx, unknownID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(unknown): got %v, want ErrNotFound", err)
	}
	if err := store.UpdateProgress(ctx, unknownID, StatusProcessing, 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateProgress(unknown): got %v, want ErrNotFound", err)
	}
	if err := store.Complete(ctx, unknownID, sampleData(), 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Complete(unknown): got %v, want ErrNotFound", err)
	}
}

func containsID(records []*Record, id string) bool {
	for _, r := range records {
		if r.ID == id {
			return true
		}
	}
	return false
}
