package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowBurst(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{name: "burst allows initial requests", rps: 1, burst: 3, calls: 3, wantPass: 3},
		{name: "exceeding burst blocks", rps: 1, burst: 2, calls: 5, wantPass: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if rl.Allow("openlibrary.org") {
					passed++
				}
			}
			if passed != tt.wantPass {
				t.Errorf("Allow() passed %d, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestIndependentKeys(t *testing.T) {
	rl := New(1, 1)

	rl.Allow("openlibrary.org")
	if rl.Allow("openlibrary.org") {
		t.Error("first key should be exhausted")
	}
	if !rl.Allow("api.vapi.ai") {
		t.Error("second key should be independent and allowed")
	}
}

func TestWaitContextCancelled(t *testing.T) {
	rl := New(0.1, 1) // one request per 10 seconds

	rl.Allow("slow-host")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, "slow-host"); err == nil {
		t.Error("Wait() should fail when context is canceled")
	}
}

func TestWaitPaces(t *testing.T) {
	rl := New(10, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, "host"); err != nil {
		t.Fatalf("first Wait() failed: %v", err)
	}

	start := time.Now()
	if err := rl.Wait(ctx, "host"); err != nil {
		t.Fatalf("second Wait() failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("second Wait() returned in %v, expected pacing near 100ms", elapsed)
	}
}
