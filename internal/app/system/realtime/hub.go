// Package realtime fans confirmed document changes out to long-lived
// subscriptions.
//
// A Subscription receives ordered batches of events matching its Filter.
// Cancel is final: once it returns, Next never yields another batch, so a
// consumer switching scopes can cancel the old subscription and know no
// stale event will reach it afterwards.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ChangeType is the kind of change a document went through.
type ChangeType string

const (
	Added    ChangeType = "added"
	Modified ChangeType = "modified"
	Removed  ChangeType = "removed"
)

// Collections that carry events.
const (
	Workspaces  = "workspaces"
	Memberships = "workspace_members"
	Invitations = "invitations"
	Tasks       = "tasks"
	Notes       = "notes"
	Categories  = "categories"
)

// Event is one document change.
type Event struct {
	Collection   string             `json:"collection"`
	Type         ChangeType         `json:"type"`
	ID           string             `json:"id"`
	WorkspaceID  primitive.ObjectID `json:"workspace_id,omitempty"`
	InviteeEmail string             `json:"-"`
	Doc          any                `json:"doc,omitempty"`
	At           time.Time          `json:"at"`
}

// Filter selects the events a subscription receives. An event matches when
// its collection is listed (or Collections is empty) and every non-zero
// routing field agrees.
type Filter struct {
	Collections  []string
	WorkspaceID  primitive.ObjectID
	InviteeEmail string
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Event) bool {
	if len(f.Collections) > 0 {
		found := false
		for _, c := range f.Collections {
			if c == e.Collection {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.WorkspaceID.IsZero() && f.WorkspaceID != e.WorkspaceID {
		return false
	}
	if f.InviteeEmail != "" && f.InviteeEmail != e.InviteeEmail {
		return false
	}
	return true
}

// Publisher accepts confirmed changes.
type Publisher interface {
	Publish(events ...Event)
}

// Nop discards events. Services use it when change streams feed the hub.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(...Event) {}

var (
	// ErrClosed is returned by Next after Cancel.
	ErrClosed = errors.New("subscription closed")
	// ErrOverflow is returned when the consumer fell too far behind; the
	// subscription is closed and the consumer must reload.
	ErrOverflow = errors.New("subscription overflowed")
)

// DefaultMaxPending bounds the batches buffered per subscription.
const DefaultMaxPending = 1024

// Hub is an in-process event bus.
type Hub struct {
	mu         sync.RWMutex
	subs       map[uint64]*Subscription
	next       uint64
	maxPending int
	log        *zap.Logger
}

// NewHub returns an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subs:       make(map[uint64]*Subscription),
		maxPending: DefaultMaxPending,
		log:        log,
	}
}

// Subscribe registers a new subscription.
func (h *Hub) Subscribe(f Filter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	s := &Subscription{
		id:     h.next,
		hub:    h,
		filter: f,
		ready:  make(chan struct{}, 1),
		max:    h.maxPending,
	}
	h.subs[s.id] = s
	return s
}

// Publish delivers events, in order, to every matching subscription. Each
// subscription receives the matching subset as a single batch.
func (h *Hub) Publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	now := time.Now().UTC()
	for i := range events {
		if events[i].At.IsZero() {
			events[i].At = now
		}
	}

	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		var batch []Event
		for _, e := range events {
			if s.filter.Match(e) {
				batch = append(batch, e)
			}
		}
		if len(batch) > 0 {
			s.deliver(batch)
		}
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscription is a cancellable, ordered stream of event batches.
type Subscription struct {
	id     uint64
	hub    *Hub
	filter Filter
	max    int

	mu     sync.Mutex
	queue  [][]Event
	closed bool
	err    error
	ready  chan struct{}
}

// Filter returns the subscription's filter.
func (s *Subscription) Filter() Filter { return s.filter }

func (s *Subscription) deliver(batch []Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.max {
		s.closed = true
		s.err = ErrOverflow
		s.queue = nil
		s.mu.Unlock()
		s.hub.remove(s.id)
		s.hub.log.Warn("realtime subscription overflowed", zap.Uint64("subscription", s.id))
		s.wake()
		return
	}
	s.queue = append(s.queue, batch)
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Next blocks until a batch is available, the subscription is cancelled,
// or ctx is done.
func (s *Subscription) Next(ctx context.Context) ([]Event, error) {
	for {
		s.mu.Lock()
		if s.closed {
			err := s.err
			s.mu.Unlock()
			if err == nil {
				err = ErrClosed
			}
			return nil, err
		}
		if len(s.queue) > 0 {
			b := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return b, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ready:
		}
	}
}

// Cancel stops the subscription and drops anything still queued.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	s.hub.remove(s.id)
	s.wake()
}
