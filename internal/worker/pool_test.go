package worker

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPool_PreservesOrder(t *testing.T) {
	items := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	p := NewPool[string, int](3)

	results := p.Process(context.Background(), items, func(_ context.Context, s string) (int, error) {
		return len(s), nil
	})

	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d has Index %d", i, r.Index)
		}
		if r.Value != len(items[i]) {
			t.Errorf("result %d = %d, want %d", i, r.Value, len(items[i]))
		}
		if r.Err != nil {
			t.Errorf("result %d unexpected error: %v", i, r.Err)
		}
	}
}

func TestPool_ErrorsStayPerItem(t *testing.T) {
	items := []string{"ok", "bad", "ok"}
	p := NewPool[string, string](2)

	results := p.Process(context.Background(), items, func(_ context.Context, s string) (string, error) {
		if s == "bad" {
			return "", errors.New("boom")
		}
		return strings.ToUpper(s), nil
	})

	if results[1].Err == nil {
		t.Error("expected error on item 1")
	}
	if results[0].Value != "OK" || results[2].Value != "OK" {
		t.Errorf("healthy items should still complete: %+v", results)
	}
}

func TestPool_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	results := NewPool[int, int](2).Process(ctx, []int{1, 2, 3}, func(context.Context, int) (int, error) {
		calls.Add(1)
		return 0, nil
	})

	if calls.Load() != 0 {
		t.Errorf("fn called %d times after cancel", calls.Load())
	}
	for i, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("result %d err = %v, want context.Canceled", i, r.Err)
		}
	}
}

func TestPool_Empty(t *testing.T) {
	if got := NewPool[int, int](0).Process(context.Background(), nil, nil); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
