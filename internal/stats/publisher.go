package stats

import (
	"sync"

	"github.com/ash-bergs/localtask/internal/model"
)

// Snapshot carries a user's tasks at a point in time. Subscribers
// recompute whatever they derive from tasks; they never read the store.
type Snapshot struct {
	UserID string
	Tasks  []model.Task
}

// Publisher fans task snapshots out to subscribers after each mutation.
// Sends never block: a subscriber that falls behind misses intermediate
// snapshots and catches up on the next one.
type Publisher struct {
	mu     sync.Mutex
	subs   []chan Snapshot
	closed bool
}

// NewPublisher creates an empty Publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Subscribe registers a new subscriber and returns its channel.
func (p *Publisher) Subscribe() <-chan Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if p.closed {
		close(ch)
		return ch
	}
	p.subs = append(p.subs, ch)
	return ch
}

// Publish sends a snapshot to every subscriber without blocking.
func (p *Publisher) Publish(userID string, tasks []model.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	for _, ch := range p.subs {
		select {
		case ch <- Snapshot{UserID: userID, Tasks: tasks}:
		default:
			// Drop stale snapshot so a slow subscriber sees the next one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- Snapshot{UserID: userID, Tasks: tasks}:
			default:
			}
		}
	}
}

// Close closes all subscriber channels.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for _, ch := range p.subs {
		close(ch)
	}
	p.subs = nil
}
