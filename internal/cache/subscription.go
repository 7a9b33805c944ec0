package cache

import (
	"sync"
	"time"
)

// Subscription is one consumer's view of a cache entry. Updates carries an
// immediate snapshot followed by every change to the entry. Closing the
// subscription cancels its polling timer but not a fetch already in flight;
// that fetch's result is simply no longer delivered here.
type Subscription struct {
	id      int
	key     Key
	cache   *Cache
	ch      chan Entry
	cmd     chan bool
	done    chan struct{}
	once    sync.Once
	enabled bool // guarded by cache.mu
}

// Key returns the key this subscription watches.
func (s *Subscription) Key() Key {
	return s.key
}

// Updates returns the entry snapshot stream. The channel is closed when the
// subscription is closed.
func (s *Subscription) Updates() <-chan Entry {
	return s.ch
}

// SetEnabled suspends or resumes fetching for this subscription. Disabling
// preserves the entry's data; re-enabling refetches if the entry is absent or
// stale.
func (s *Subscription) SetEnabled(enabled bool) {
	s.cache.setSubEnabled(s, enabled)
	// Replace any pending command so the loop only sees the latest state.
	select {
	case <-s.cmd:
	default:
	}
	select {
	case s.cmd <- enabled:
	case <-s.done:
	}
}

// Close unregisters the subscription and stops its polling timer.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.cache.removeSub(s.key, s.id)
	})
}

// push delivers a snapshot without blocking; when the consumer lags, the
// oldest buffered snapshot is dropped so the latest state wins.
// Callers must hold cache.mu.
func (s *Subscription) push(e Entry) {
	select {
	case s.ch <- e:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- e:
	default:
	}
}

// loop drives background polling for this subscription.
func (s *Subscription) loop(interval time.Duration) {
	var ticker *time.Ticker
	var tickC <-chan time.Time

	start := func() {
		if interval > 0 && ticker == nil {
			ticker = time.NewTicker(interval)
			tickC = ticker.C
		}
	}
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
	}
	defer stopTicker()

	s.cache.mu.Lock()
	enabled := s.enabled
	s.cache.mu.Unlock()
	if enabled {
		start()
	}

	for {
		select {
		case en := <-s.cmd:
			if en {
				start()
			} else {
				stopTicker()
			}
		case <-tickC:
			s.cache.Refresh(s.key)
		case <-s.done:
			return
		case <-s.cache.stop:
			return
		}
	}
}
