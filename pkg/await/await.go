package await

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrExpired is returned once the deadline of an expectation has passed.
var ErrExpired = errors.New("expectation expired")

// ErrCancelled is returned after an expectation is cancelled.
var ErrCancelled = errors.New("expectation cancelled")

// Kind is the kind of inbound event.
type Kind int

const (
	// KindMessage is a message posted in a channel.
	KindMessage Kind = iota + 1

	// KindReaction is a reaction added to a message.
	KindReaction
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindReaction:
		return "reaction"
	default:
		return "unknown"
	}
}

// Event is an inbound message or reaction.
type Event struct {
	Kind      Kind
	ChannelID string
	MessageID string
	UserID    string

	// Bot is whether the event came from a bot account.
	Bot bool

	// Content is the text of a message event.
	Content string

	// Emoji is the emoji of a reaction event.
	Emoji string
}

// Expectation describes the events a caller is waiting for.
type Expectation struct {
	Kind      Kind
	ChannelID string
	Timeout   time.Duration
}

// bufferSize is how many undelivered events a pending expectation holds before dropping new ones.
const bufferSize = 16

// Pending is a registered expectation.
type Pending struct {
	id       uuid.UUID
	exp      Expectation
	deadline time.Time
	events   chan Event
	done     chan struct{}
	once     sync.Once
	r        *Registry
}

// ID returns the ID of the expectation.
func (p *Pending) ID() uuid.UUID {
	return p.id
}

// Deadline returns the time at which the expectation expires.
func (p *Pending) Deadline() time.Time {
	return p.deadline
}

// Next blocks until a matching event arrives. It returns ErrExpired once the deadline passes.
func (p *Pending) Next(ctx context.Context) (Event, error) {
	timer := time.NewTimer(time.Until(p.deadline))
	defer timer.Stop()

	select {
	case ev := <-p.events:
		return ev, nil
	case <-p.done:
		return Event{}, ErrCancelled
	case <-timer.C:
		p.Cancel()
		return Event{}, ErrExpired
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Cancel removes the expectation from the registry. It is safe to call more than once.
func (p *Pending) Cancel() {
	p.once.Do(func() {
		p.r.remove(p.id)
		close(p.done)
	})
}

// Registry correlates inbound events with the callers waiting on them.
type Registry struct {
	mu      sync.Mutex
	pending map[uuid.UUID]*Pending
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pending: make(map[uuid.UUID]*Pending),
		now:     time.Now,
	}
}

// Expect registers an expectation. Events delivered from this point on are routed to it until it is
// cancelled or expires.
func (r *Registry) Expect(exp Expectation) *Pending {
	p := &Pending{
		id:       uuid.New(),
		exp:      exp,
		deadline: r.now().Add(exp.Timeout),
		events:   make(chan Event, bufferSize),
		done:     make(chan struct{}),
		r:        r,
	}

	r.mu.Lock()
	r.pending[p.id] = p
	r.mu.Unlock()
	return p
}

// Deliver routes an event to every expectation of the same kind on the same channel. It returns the number
// of expectations that received it. Events nobody is waiting for are dropped.
func (r *Registry) Deliver(ev Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, p := range r.pending {
		if p.exp.Kind != ev.Kind || p.exp.ChannelID != ev.ChannelID {
			continue
		}
		select {
		case p.events <- ev:
			n++
		default:
		}
	}
	return n
}

// Len returns the number of outstanding expectations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Registry) remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}
