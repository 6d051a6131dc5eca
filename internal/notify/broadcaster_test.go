package notify

import (
	"sync"
	"testing"
)

func TestPublishDeliversInOrder(t *testing.T) {
	var b Broadcaster[int]
	var got []int
	b.Subscribe(func(v int) { got = append(got, v) })

	for i := 1; i <= 3; i++ {
		b.Publish(i)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("unexpected delivery order: %v", got)
	}
}

func TestReentrantPublishIsDeferredNotDropped(t *testing.T) {
	var b Broadcaster[string]
	var got []string
	b.Subscribe(func(v string) {
		got = append(got, v)
		if v == "first" {
			b.Publish("nested")
			// nested value must not be delivered while this listener is still running
			if len(got) != 1 {
				t.Errorf("nested value delivered re-entrantly: %v", got)
			}
		}
	})

	b.Publish("first")
	if len(got) != 2 || got[1] != "nested" {
		t.Fatalf("expected nested value after first, got %v", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	var b Broadcaster[int]
	calls := 0
	unsubscribe := b.Subscribe(func(int) { calls++ })
	b.Publish(1)
	unsubscribe()
	unsubscribe()
	b.Publish(2)
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if b.Len() != 0 {
		t.Fatalf("expected no listeners, got %d", b.Len())
	}
}

func TestPanickingListenerReleasesDrain(t *testing.T) {
	var b Broadcaster[int]
	var got []int
	b.Subscribe(func(v int) {
		if v == 1 {
			panic("boom")
		}
		got = append(got, v)
	})

	func() {
		defer func() { _ = recover() }()
		b.Publish(1)
	}()
	b.Publish(2)
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected delivery to resume after panic, got %v", got)
	}
}

func TestConcurrentPublishDeliversEverything(t *testing.T) {
	var b Broadcaster[int]
	var mu sync.Mutex
	seen := map[int]bool{}
	b.Subscribe(func(v int) {
		mu.Lock()
		seen[v] = true
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			b.Publish(v)
		}(i)
	}
	wg.Wait()
	// a publisher may hand its value to a concurrent drainer; one final flush settles it
	b.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 50 {
		t.Fatalf("expected 50 values, got %d", len(seen))
	}
}
