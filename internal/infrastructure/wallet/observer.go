package wallet

import (
	"sync"

	"tg_wallet/internal/app/port"
)

// observer fans wallet events out to subscribers. Listeners run on the emitting goroutine.
type observer[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func(T)
}

func newObserver[T any]() *observer[T] {
	return &observer[T]{subs: make(map[int]func(T))}
}

func (o *observer[T]) subscribe(fn func(T)) port.Unsubscribe {
	o.mu.Lock()
	id := o.next
	o.next++
	o.subs[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}
}

func (o *observer[T]) emit(v T) {
	o.mu.Lock()
	fns := make([]func(T), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (o *observer[T]) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}
