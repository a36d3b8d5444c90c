// Package session holds the process-local engagement state: multi-stage
// sessions keyed by token nonce and the nonce replay table.
//
// Both maps live in memory only. They are lost on restart and are not shared
// between instances; a multi-instance deployment needs sticky routing on the
// token nonce or a shared cache in front of these stores.
package session

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

type item[V any] struct {
	value     V
	expiresAt time.Time
}

// expiring is a mutex-guarded map whose entries disappear after their TTL.
type expiring[V any] struct {
	mu    sync.Mutex
	items map[string]*item[V]
	now   Clock
	stop  chan struct{}
	once  sync.Once
}

func newExpiring[V any](now Clock) *expiring[V] {
	if now == nil {
		now = time.Now
	}
	return &expiring[V]{
		items: make(map[string]*item[V]),
		now:   now,
		stop:  make(chan struct{}),
	}
}

// live returns the entry for key, dropping it first if it has expired.
// Caller must hold mu.
func (e *expiring[V]) live(key string) (*item[V], bool) {
	it, ok := e.items[key]
	if !ok {
		return nil, false
	}
	if !e.now().Before(it.expiresAt) {
		delete(e.items, key)
		return nil, false
	}
	return it, true
}

// sweep удаляет все истёкшие записи и возвращает их количество
func (e *expiring[V]) sweep() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	removed := 0
	for key, it := range e.items {
		if !now.Before(it.expiresAt) {
			delete(e.items, key)
			removed++
		}
	}
	return removed
}

func (e *expiring[V]) len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// startJanitor периодически очищает истёкшие записи до вызова stopJanitor
func (e *expiring[V]) startJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-e.stop:
				return
			case <-ticker.C:
				e.sweep()
			}
		}
	}()
}

func (e *expiring[V]) stopJanitor() {
	e.once.Do(func() { close(e.stop) })
}
