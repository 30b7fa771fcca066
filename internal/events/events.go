// Package events is a small in-process publish/subscribe bus. Handlers run
// synchronously on the publisher's goroutine, so a publish returns only after
// every subscriber has observed the event.
package events

import (
	"log/slog"
	"sync"
)

// Topics published by the practice engine.
const (
	AnswerRecorded      = "answer.recorded"
	SessionUpdated      = "session.updated"
	SessionEnded        = "session.ended"
	WrongChanged        = "wrong.changed"
	FavoritesChanged    = "favorites.changed"
	NavigationRefreshed = "navigation.refreshed"
)

// Event is one published message.
type Event struct {
	Topic   string
	Payload any
}

// Handler receives events for a subscribed topic.
type Handler func(Event)

// Bus routes events to subscribers by topic.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]Handler)}
}

// Subscribe registers h for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	b.subs[topic][id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Publish delivers payload to every handler subscribed to topic. A panicking
// handler is logged and does not stop delivery to the others.
func (b *Bus) Publish(topic string, payload any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload}
	for _, h := range handlers {
		deliver(h, ev)
	}
}

func deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "topic", ev.Topic, "panic", r)
		}
	}()
	h(ev)
}
