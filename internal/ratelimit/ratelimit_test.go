package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestLimiterAdmitsUpToLimit(t *testing.T) {
	mock := clock.NewMock()
	l := New(NewMapStore(), 60, 3, mock)

	for i := 0; i < 3; i++ {
		allowed, _, err := l.Allow("did:key:aaaa")
		if err != nil || !allowed {
			t.Fatalf("request %d: expected admitted, got allowed=%v err=%v", i, allowed, err)
		}
	}
	allowed, retryAfter, err := l.Allow("did:key:aaaa")
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	if allowed {
		t.Fatalf("expected 4th request in window to be rejected")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %d", retryAfter)
	}
}

func TestLimiterResetsOnNewWindow(t *testing.T) {
	mock := clock.NewMock()
	l := New(NewMapStore(), 60, 1, mock)

	if allowed, _, _ := l.Allow("did:key:bbbb"); !allowed {
		t.Fatalf("first request should be admitted")
	}
	if allowed, _, _ := l.Allow("did:key:bbbb"); allowed {
		t.Fatalf("second request in same window should be rejected")
	}

	mock.Add(61 * time.Second)
	if allowed, _, _ := l.Allow("did:key:bbbb"); !allowed {
		t.Fatalf("request in new window should be admitted")
	}
}

func TestLimiterConcurrentCallersAreIndependent(t *testing.T) {
	mock := clock.NewMock()
	l := New(NewMapStore(), 60, 100, mock)

	var wg sync.WaitGroup
	rejections := make([]int32, 4)
	for caller := 0; caller < 4; caller++ {
		caller := caller
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 150; i++ {
				if allowed, _, _ := l.Allow(callerID(caller)); !allowed {
					rejections[caller]++
				}
			}
		}()
	}
	wg.Wait()

	for caller, rejected := range rejections {
		if rejected != 50 {
			t.Fatalf("caller %d: expected exactly 50 rejections out of 150, got %d", caller, rejected)
		}
	}
}

func TestLRUStoreBehavesLikeMapStoreUnderCapacity(t *testing.T) {
	store, err := NewLRUStore(16)
	if err != nil {
		t.Fatalf("NewLRUStore: %v", err)
	}
	mock := clock.NewMock()
	l := New(store, 60, 2, mock)

	if allowed, _, _ := l.Allow("did:key:cccc"); !allowed {
		t.Fatalf("first request should be admitted")
	}
	if allowed, _, _ := l.Allow("did:key:cccc"); !allowed {
		t.Fatalf("second request should be admitted")
	}
	if allowed, _, _ := l.Allow("did:key:cccc"); allowed {
		t.Fatalf("third request should be rejected")
	}
}

func callerID(i int) string {
	return "did:key:" + string(rune('a'+i))
}
