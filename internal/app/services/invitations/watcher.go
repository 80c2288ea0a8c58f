package invitations

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.uber.org/zap"
)

// Subscriber opens realtime subscriptions; *realtime.Hub is one.
type Subscriber interface {
	Subscribe(f realtime.Filter) *realtime.Subscription
}

// Notice is the watcher's view after a change.
type Notice struct {
	Pending []models.Invitation `json:"pending"`
	Count   int                 `json:"count"`
	// Badge is the count as shown on the indicator; capped at "9+".
	Badge string `json:"badge"`
	// Alert is a newly arrived invitation, set only while the list is
	// closed.
	Alert *models.Invitation `json:"alert,omitempty"`
}

// Badge renders a pending count for the indicator.
func Badge(n int) string {
	switch {
	case n <= 0:
		return ""
	case n > 9:
		return "9+"
	default:
		return strconv.Itoa(n)
	}
}

// Watcher keeps the pending invitations of one identity current from
// realtime events. Its state changes only from confirmed events and the
// initial load.
type Watcher struct {
	log *zap.Logger
	now func() time.Time

	subscribe func() *realtime.Subscription
	load      func(ctx context.Context) ([]models.Invitation, error)

	mu       sync.Mutex
	sub      *realtime.Subscription
	pending  map[string]models.Invitation
	listOpen bool

	out    chan Notice
	cancel context.CancelFunc
	done   chan struct{}
}

// Watch subscribes to the invitations addressed to email, loads the
// current pending set and starts following changes. The first Notice
// carries the initial set.
func (s *Service) Watch(ctx context.Context, hub Subscriber, userID, email string) (*Watcher, error) {
	email = normalize.Email(email)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w := &Watcher{
		log: s.log,
		now: s.now,
		subscribe: func() *realtime.Subscription {
			return hub.Subscribe(realtime.Filter{
				Collections:  []string{realtime.Invitations},
				InviteeEmail: email,
			})
		},
		load: func(ctx context.Context) ([]models.Invitation, error) {
			return s.ListPendingFor(ctx, userID, email)
		},
		out:    make(chan Notice, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if err := w.sync(ctx); err != nil {
		cancel()
		return nil, err
	}
	w.emit(Notice{})
	go w.run(runCtx)
	return w, nil
}

// Notices delivers the latest state after every change. Only the newest
// notice is buffered; an undelivered alert is carried forward. The channel
// is closed once the watcher stops.
func (w *Watcher) Notices() <-chan Notice { return w.out }

// SetListOpen records whether the invitation list is on screen. Alerts are
// suppressed while it is.
func (w *Watcher) SetListOpen(open bool) {
	w.mu.Lock()
	w.listOpen = open
	w.mu.Unlock()
}

// Pending returns the current pending invitations, newest first.
func (w *Watcher) Pending() []models.Invitation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Close stops the watcher and cancels its subscription.
func (w *Watcher) Close() {
	w.cancel()
	w.current().Cancel()
	<-w.done
}

func (w *Watcher) current() *realtime.Subscription {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sub
}

// sync opens a fresh subscription and reloads the pending set from the
// ledger. The subscription is opened first so nothing committed in
// between is missed.
func (w *Watcher) sync(ctx context.Context) error {
	sub := w.subscribe()
	list, err := w.load(ctx)
	if err != nil {
		sub.Cancel()
		return err
	}
	pending := make(map[string]models.Invitation, len(list))
	for _, inv := range list {
		pending[inv.ID.Hex()] = inv
	}
	w.mu.Lock()
	old := w.sub
	w.sub = sub
	w.pending = pending
	w.mu.Unlock()
	if old != nil {
		old.Cancel()
	}
	return nil
}

func (w *Watcher) snapshotLocked() []models.Invitation {
	out := make([]models.Invitation, 0, len(w.pending))
	now := w.now()
	for _, inv := range w.pending {
		if inv.IsPending(now) {
			out = append(out, inv)
		}
	}
	SortNewestFirst(out)
	return out
}

func (w *Watcher) run(ctx context.Context) {
	defer func() {
		w.current().Cancel()
		close(w.out)
		close(w.done)
	}()
	for {
		batch, err := w.current().Next(ctx)
		if err != nil {
			if !errors.Is(err, realtime.ErrOverflow) || ctx.Err() != nil {
				return
			}
			w.log.Warn("invitation watcher fell behind; reloading")
			if err := w.resync(ctx); err != nil {
				w.log.Error("invitation watcher reload failed", zap.Error(err))
				return
			}
			w.emit(Notice{})
			continue
		}
		if alert, changed := w.apply(batch); changed {
			w.emit(Notice{Alert: alert})
		}
	}
}

func (w *Watcher) resync(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()
	return w.sync(ctx)
}

// apply folds a batch into the pending set. It returns the newest arrival
// worth alerting about.
func (w *Watcher) apply(batch []realtime.Event) (*models.Invitation, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var alert *models.Invitation
	changed := false
	for _, e := range batch {
		_, known := w.pending[e.ID]
		inv, ok := e.Doc.(models.Invitation)
		if !ok && e.Type != realtime.Removed {
			continue
		}
		switch {
		case e.Type == realtime.Removed || inv.Status != models.InvitePending:
			if known {
				delete(w.pending, e.ID)
				changed = true
			}
		default:
			w.pending[e.ID] = inv
			changed = true
			if e.Type == realtime.Added && !known && !w.listOpen {
				a := inv
				alert = &a
			}
		}
	}
	return alert, changed
}

func (w *Watcher) emit(n Notice) {
	w.mu.Lock()
	n.Pending = w.snapshotLocked()
	w.mu.Unlock()
	n.Count = len(n.Pending)
	n.Badge = Badge(n.Count)

	select {
	case old := <-w.out:
		if n.Alert == nil {
			n.Alert = old.Alert
		}
	default:
	}
	w.out <- n
}
