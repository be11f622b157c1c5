// Package bus fans out change notifications to the views that mirror the
// task collection.
package bus

import (
	"context"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
)

var _ transport.Server = (*Bus)(nil)

type subscriber struct {
	id uint64
	fn func()
}

// Bus is an in-process publish/subscribe channel without payloads.
// Subscribers re-read whatever state they need when notified.
type Bus struct {
	mu   sync.Mutex
	next uint64
	subs []subscriber
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a function that deregisters it.
// Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(fn func()) (unsubscribe func()) {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			// copy-on-write, a running Notify may still hold the old slice
			subs := make([]subscriber, 0, len(b.subs)-1)
			subs = append(subs, b.subs[:i]...)
			b.subs = append(subs, b.subs[i+1:]...)
			return
		}
	}
}

// Notify calls every subscriber registered at the time of the call,
// synchronously and in registration order. A panicking subscriber is logged
// and does not stop the others.
func (b *Bus) Notify() {
	b.mu.Lock()
	subs := b.subs
	b.mu.Unlock()

	for _, s := range subs {
		b.call(s)
	}
}

func (b *Bus) call(s subscriber) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("bus subscriber %d panicked: %v", s.id, r)
		}
	}()
	s.fn()
}

// Len returns the number of registered subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Start implements transport.Server.
func (b *Bus) Start(_ context.Context) error {
	log.Debugf("update bus started")
	return nil
}

// Stop implements transport.Server. It drops every subscriber.
func (b *Bus) Stop(_ context.Context) error {
	b.mu.Lock()
	n := len(b.subs)
	b.subs = nil
	b.mu.Unlock()

	log.Debugf("update bus stopped, dropped %d subscribers", n)
	return nil
}
