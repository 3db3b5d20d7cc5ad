package service

import (
	"sync"

	"tg_wallet/internal/app/port"
	"tg_wallet/internal/domain/entity"
)

// BalanceState owns the published TG balance. BalanceSync is its only writer;
// any number of components may read it or subscribe to changes.
type BalanceState struct {
	mu        sync.RWMutex
	current   entity.Balance
	seq       uint64
	listeners map[uint64]func(entity.Balance)
	nextID    uint64
}

// NewBalanceState returns a state holding the zero balance.
func NewBalanceState() *BalanceState {
	return &BalanceState{
		current:   entity.ZeroBalance(),
		listeners: make(map[uint64]func(entity.Balance)),
	}
}

// Current returns the most recently published balance.
func (s *BalanceState) Current() entity.Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers fn to be called after every change of the published balance.
func (s *BalanceState) Subscribe(fn func(entity.Balance)) port.Unsubscribe {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// publish replaces the balance unless b comes from a sync older than the last one applied.
// It reports whether listeners were notified.
func (s *BalanceState) publish(b entity.Balance) bool {
	s.mu.Lock()
	if b.Sequence < s.seq {
		s.mu.Unlock()
		return false
	}
	s.seq = b.Sequence
	if s.current.SameValue(b) {
		s.mu.Unlock()
		return false
	}
	s.current = b
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(b)
	}
	return true
}

// reset publishes the zero balance, used when the wallet exposes no accounts.
func (s *BalanceState) reset(seq uint64) bool {
	zero := entity.ZeroBalance()
	zero.Sequence = seq
	return s.publish(zero)
}

func (s *BalanceState) snapshotListeners() []func(entity.Balance) {
	out := make([]func(entity.Balance), 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}
