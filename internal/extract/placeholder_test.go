package extract

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStepPercent(t *testing.T) {
	cases := []struct{ step, total, want int }{
		{1, 10, 10},
		{10, 10, 100},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{0, 4, 0},
		{5, 4, 100},
		{1, 0, 100},
	}
	for _, tc := range cases {
		if got := StepPercent(tc.step, tc.total); got != tc.want {
			t.Fatalf("StepPercent(%d, %d) = %d, want %d", tc.step, tc.total, got, tc.want)
		}
	}
}

func TestPlaceholderReportsEveryStep(t *testing.T) {
	p := NewPlaceholder(4, 0)

	var seen []int
	data, err := p.Run(context.Background(), Document{ID: "c1", Filename: "contract.pdf"}, func(percent int) error {
		seen = append(seen, percent)
		return nil
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := []int{25, 50, 75, 100}
	if len(seen) != len(want) {
		t.Fatalf("unexpected progress sequence: %#v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("progress[%d] = %d, want %d", i, seen[i], want[i])
		}
	}
	if data == nil || len(data.PartyIdentification.Parties) != 2 {
		t.Fatalf("unexpected data: %#v", data)
	}
	if data.FinancialDetails.TotalContractValue == nil || *data.FinancialDetails.TotalContractValue != 50000 {
		t.Fatalf("unexpected contract value: %#v", data.FinancialDetails)
	}
}

func TestPlaceholderStopsOnReporterError(t *testing.T) {
	p := NewPlaceholder(10, 0)
	boom := errors.New("store down")

	calls := 0
	data, err := p.Run(context.Background(), Document{ID: "c1"}, func(percent int) error {
		calls++
		if calls == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected reporter error, got %v", err)
	}
	if data != nil {
		t.Fatalf("expected no data after failure, got %#v", data)
	}
	if calls != 3 {
		t.Fatalf("reporter called %d times, want 3", calls)
	}
}

func TestPlaceholderHonoursCancellation(t *testing.T) {
	p := NewPlaceholder(10, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx, Document{ID: "c1"}, func(int) error { return nil })
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
