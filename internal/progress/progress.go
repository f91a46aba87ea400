// Package progress is the in-process broadcast channel for export
// run updates. Delivery is fire-and-forget: a slow subscriber loses
// events rather than stalling the pipeline.
package progress

import (
	"strings"
	"sync"
	"time"
)

// Event kinds published by the export pipeline.
const (
	KindReport   = "export.progress"
	KindComplete = "export.complete"
	KindModel    = "voice.model-download"
)

// Report is the payload of a progress event.
type Report struct {
	RunID          string
	CurrentSession string
	Phase          string
	Current        int
	Total          int
	PhaseProgress  int
	PhaseTotal     int
	PhaseLabel     string
}

// Event is a single broadcast update.
type Event struct {
	Kind      string
	Timestamp time.Time
	Report    Report
}

// Broker fans events out to subscribers by kind prefix.
type Broker struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	prefix string
	ch     chan Event
}

func New() *Broker {
	return &Broker{subs: make(map[int]*subscription)}
}

// Publish delivers evt to every subscriber whose prefix matches
// evt.Kind, stamping the event time. Full subscriber buffers drop the
// event.
func (b *Broker) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.prefix) {
			select {
			case sub.ch <- evt:
			default:
				// Subscriber is behind; progress is advisory.
			}
		}
	}
}

// Report publishes a KindReport event for the given run state.
func (b *Broker) Report(r Report) {
	b.Publish(Event{Kind: KindReport, Report: r})
}

// Complete publishes the terminal event of a successful run.
func (b *Broker) Complete(r Report) {
	b.Publish(Event{Kind: KindComplete, Report: r})
}

// Subscribe returns a channel receiving events whose kind starts with
// prefix, plus an unsubscribe function. bufSize bounds how far the
// subscriber may lag before events are dropped.
func (b *Broker) Subscribe(prefix string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{prefix: prefix, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
