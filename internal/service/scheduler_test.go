package service

import (
	"sync"
	"testing"
	"time"
)

func TestIsQuarterStart(t *testing.T) {
	quarters := map[time.Month]bool{
		time.January: true, time.April: true, time.July: true, time.October: true,
	}
	for m := time.January; m <= time.December; m++ {
		if got := isQuarterStart(m); got != quarters[m] {
			t.Errorf("isQuarterStart(%s) = %v", m, got)
		}
	}
}

func TestSpawnNeverOverlaps(t *testing.T) {
	s := NewScheduler(nil, nil, nil)

	var mu sync.Mutex
	started := 0
	release := make(chan struct{})
	running := make(chan struct{})

	s.spawn("job", func() {
		mu.Lock()
		started++
		mu.Unlock()
		close(running)
		<-release
	})
	<-running

	// Second trigger while the first is in flight must be skipped
	s.spawn("job", func() {
		mu.Lock()
		started++
		mu.Unlock()
	})

	close(release)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if started != 1 {
		t.Errorf("expected a single run, got %d", started)
	}
}

func TestSpawnRecoversPanic(t *testing.T) {
	s := NewScheduler(nil, nil, nil)

	s.spawn("bad", func() { panic("boom") })
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	s.spawn("bad", func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("job slot not released after panic")
	}
}
