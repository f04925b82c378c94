package watcher_test

import (
	"slices"
	"sync"
	"testing"
	"time"

	"go.trai.ch/kiln/internal/adapters/watcher"
)

func TestDebouncer_CoalescesEvents(t *testing.T) {
	fired := make(chan []string, 1)
	d := watcher.NewDebouncer(20*time.Millisecond, func(paths []string) {
		fired <- paths
	})

	d.Add("a.src")
	d.Add("b.src")
	d.Add("a.src") // duplicate, must be deduplicated

	select {
	case paths := <-fired:
		slices.Sort(paths)
		if !slices.Equal(paths, []string{"a.src", "b.src"}) {
			t.Errorf("expected coalesced [a.src b.src], got %v", paths)
		}
	case <-time.After(time.Second):
		t.Fatal("debouncer never fired")
	}
}

func TestDebouncer_AddResetsWindow(t *testing.T) {
	var mu sync.Mutex
	var fireCount int
	d := watcher.NewDebouncer(30*time.Millisecond, func([]string) {
		mu.Lock()
		fireCount++
		mu.Unlock()
	})

	// Keep adding within the window; the callback must fire once, after
	// the last add.
	for range 5 {
		d.Add("hot.src")
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fireCount != 1 {
		t.Errorf("expected exactly one fire, got %d", fireCount)
	}
}

func TestDebouncer_FlushIsSynchronous(t *testing.T) {
	var mu sync.Mutex
	var got []string
	d := watcher.NewDebouncer(time.Hour, func(paths []string) {
		mu.Lock()
		got = append(got, paths...)
		mu.Unlock()
	})

	d.Add("a.src")
	d.Flush()

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(got, []string{"a.src"}) {
		t.Errorf("expected flush to deliver [a.src], got %v", got)
	}
}

func TestDebouncer_FlushWithNothingPending(t *testing.T) {
	d := watcher.NewDebouncer(time.Hour, func([]string) {
		t.Error("callback must not fire with nothing pending")
	})
	d.Flush()
}
