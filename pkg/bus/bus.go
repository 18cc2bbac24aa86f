// Package bus provides the in-process publish/subscribe channel shared by the
// daemon components. A Bus is an explicit handle passed to every component
// that needs it; there is no process-wide instance.
package bus

import (
	"context"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the channel capacity of a subscription created with Subscribe.
const DefaultBuffer = 64

// Publisher is the write side of the bus. Components accept this interface so
// tests can substitute a recorder.
type Publisher interface {
	Publish(msg any)
}

// Bus routes published messages to the subscribers of the message's concrete type.
// It is safe for concurrent use. Delivery is non-blocking: a subscriber whose
// buffer is full misses the message.
type Bus struct {
	mu     sync.RWMutex
	topics map[reflect.Type]map[*subscriber]struct{}
	closed bool
	logger *logrus.Entry
}

type subscriber struct {
	deliver func(any) bool
	close   func()
}

// New creates a new Bus.
func New(logger *logrus.Entry) *Bus {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bus{
		topics: make(map[reflect.Type]map[*subscriber]struct{}),
		logger: logger,
	}
}

// Publish delivers msg to every subscriber of its concrete type.
// Publishing on a closed bus is a no-op.
func (b *Bus) Publish(msg any) {
	if msg == nil {
		return
	}
	typ := reflect.TypeOf(msg)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for s := range b.topics[typ] {
		if !s.deliver(msg) {
			// Non-blocking send to prevent slow subscribers from stalling publishers
			b.logger.WithField("type", typ.String()).Warn("Dropped bus message for slow subscriber")
		}
	}
}

// Close closes every subscription channel. The bus is unusable afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.topics {
		for s := range subs {
			s.close()
		}
	}
	b.topics = nil
}

func (b *Bus) add(typ reflect.Type, s *subscriber) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	subs, ok := b.topics[typ]
	if !ok {
		subs = make(map[*subscriber]struct{})
		b.topics[typ] = subs
	}
	subs[s] = struct{}{}
	return true
}

func (b *Bus) remove(typ reflect.Type, s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	subs, ok := b.topics[typ]
	if !ok {
		return
	}
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	s.close()
	if len(subs) == 0 {
		delete(b.topics, typ)
	}
}

// Subscription receives every message of type T published after it was created.
type Subscription[T any] struct {
	bus *Bus
	typ reflect.Type
	sub *subscriber
	ch  chan T
}

// Subscribe registers a subscription for messages of concrete type T.
func Subscribe[T any](b *Bus) *Subscription[T] {
	return SubscribeBuffered[T](b, DefaultBuffer)
}

// SubscribeBuffered is Subscribe with an explicit channel capacity.
func SubscribeBuffered[T any](b *Bus, size int) *Subscription[T] {
	if size < 1 {
		size = 1
	}
	ch := make(chan T, size)
	var once sync.Once
	s := &subscriber{
		deliver: func(msg any) bool {
			select {
			case ch <- msg.(T):
				return true
			default:
				return false
			}
		},
		close: func() { once.Do(func() { close(ch) }) },
	}
	sub := &Subscription[T]{bus: b, typ: reflect.TypeFor[T](), sub: s, ch: ch}
	if !b.add(sub.typ, s) {
		s.close()
	}
	return sub
}

// SubscribeFunc calls fn for every message of type T until ctx is cancelled or
// the bus is closed. fn runs on a dedicated goroutine, one message at a time.
func SubscribeFunc[T any](ctx context.Context, b *Bus, fn func(T)) *Subscription[T] {
	sub := Subscribe[T](b)
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.ch:
				if !ok {
					return
				}
				fn(msg)
			}
		}
	}()
	return sub
}

// Events returns the delivery channel. It is closed by Close or when the bus closes.
func (s *Subscription[T]) Events() <-chan T {
	return s.ch
}

// Close removes the subscription and closes its channel.
func (s *Subscription[T]) Close() {
	s.bus.remove(s.typ, s.sub)
}
