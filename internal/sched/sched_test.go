package sched

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestMapMatchesSequential(t *testing.T) {
	transform := func(_ context.Context, item int, _ int) (int, error) {
		return item*2 + 1, nil
	}

	for _, n := range []int{0, 1, 2, 5, 17, 100} {
		for _, l := range []int{1, 2, 3, 6, 150} {
			t.Run(fmt.Sprintf("n=%d/l=%d", n, l), func(t *testing.T) {
				items := make([]int, n)
				want := make([]int, n)
				for i := range items {
					items[i] = i * 3
					want[i], _ = transform(context.Background(), items[i], i)
				}

				got, err := Map(context.Background(), items, l, transform)
				if err != nil {
					t.Fatalf("Map() error = %v", err)
				}
				if len(got) != n {
					t.Fatalf("len = %d, want %d", len(got), n)
				}
				for i := range want {
					if got[i] != want[i] {
						t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
					}
				}
			})
		}
	}
}

func TestMapOrderStableUnderSkewedDurations(t *testing.T) {
	// Early items finish last; output order must not care.
	items := []int{5, 4, 3, 2, 1, 0}
	got, err := Map(context.Background(), items, 3, func(_ context.Context, item int, _ int) (int, error) {
		time.Sleep(time.Duration(item) * time.Millisecond)
		return item, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, item := range items {
		if got[i] != item {
			t.Errorf("got[%d] = %d, want %d", i, got[i], item)
		}
	}
}

func TestMapNoDoubleClaim(t *testing.T) {
	const n = 200
	claims := make([]atomic.Int32, n)
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	_, err := Map(context.Background(), items, MaxConcurrency, func(_ context.Context, _ int, idx int) (struct{}, error) {
		claims[idx].Add(1)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := range claims {
		if c := claims[i].Load(); c != 1 {
			t.Errorf("item %d claimed %d times", i, c)
		}
	}
}

func TestMapPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	items := make([]int, 50)
	_, err := Map(context.Background(), items, 4, func(_ context.Context, _ int, idx int) (int, error) {
		if idx == 10 {
			return 0, boom
		}
		return idx, nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestMapContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	items := make([]int, 10)
	_, err := Map(ctx, items, 2, func(ctx context.Context, _ int, _ int) (int, error) {
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		n, fallback, max, want int
	}{
		{0, 2, 6, 2},
		{-3, 2, 6, 2},
		{1, 2, 6, 1},
		{4, 2, 6, 4},
		{9, 2, 6, 6},
		{0, 0, 6, 1},
	}
	for _, tt := range tests {
		if got := Clamp(tt.n, tt.fallback, tt.max); got != tt.want {
			t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.n, tt.fallback, tt.max, got, tt.want)
		}
	}
}
