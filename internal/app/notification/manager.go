// Package notification fans playback events out to subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/playback"
)

const (
	// DefaultSendTimeout bounds a single subscriber send.
	DefaultSendTimeout = 500 * time.Millisecond
	// QueueSize is the number of notifications buffered per subscriber.
	QueueSize = 32
)

// ErrUnknownSubscription is returned by SendTo for an unknown id.
var ErrUnknownSubscription = errors.New("unknown subscription")

// Notification is one playback event stamped with a sequence number.
type Notification struct {
	SequenceNo uint64
	Event      playback.Event
	Time       time.Time
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// StreamFunc adapts a function to Stream.
type StreamFunc func(*Notification) error

// Send calls f(n).
func (f StreamFunc) Send(n *Notification) error { return f(n) }

// subscriber owns an ordered queue drained by its own goroutine.
type subscriber struct {
	id      string
	stream  Stream
	queue   chan *Notification
	stopped chan struct{}
	once    sync.Once
}

func (s *subscriber) run(timeout time.Duration) {
	for {
		select {
		case n := <-s.queue:
			s.deliver(n, timeout)
		case <-s.stopped:
			return
		}
	}
}

// deliver sends n, giving up after timeout. A timed out send keeps running
// in the background and the queue moves on.
func (s *subscriber) deliver(n *Notification, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.stream.Send(n)
	}()

	select {
	case err := <-done:
		if err != nil {
			zlog.Debug().Msgf("notification: send failed: subscription=%s seq=%d: %v", s.id, n.SequenceNo, err)
		}
	case <-ctx.Done():
		zlog.Debug().Msgf("notification: send timed out: subscription=%s seq=%d", s.id, n.SequenceNo)
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.stopped) })
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	sendTimeout time.Duration

	seqMu sync.Mutex
	seq   uint64
}

// NewManager creates a new notification manager. A non-positive timeout
// selects DefaultSendTimeout.
func NewManager(sendTimeout time.Duration) *Manager {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Manager{
		subscribers: make(map[string]*subscriber),
		sendTimeout: sendTimeout,
	}
}

// Subscribe registers stream and returns its subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	s := &subscriber{
		id:      uuid.New().String(),
		stream:  stream,
		queue:   make(chan *Notification, QueueSize),
		stopped: make(chan struct{}),
	}

	m.mu.Lock()
	m.subscribers[s.id] = s
	m.mu.Unlock()

	go s.run(m.sendTimeout)
	zlog.Debug().Msgf("notification: subscribed: id=%s", s.id)
	return s.id
}

// Unsubscribe removes a subscription. Queued notifications are discarded.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	s, ok := m.subscribers[subscriptionID]
	delete(m.subscribers, subscriptionID)
	m.mu.Unlock()

	if ok {
		s.stop()
	}
}

// Publish wraps event in a notification and broadcasts it.
func (m *Manager) Publish(event playback.Event) *Notification {
	n := &Notification{Event: event, Time: time.Now()}
	m.Broadcast(n)
	return n
}

// Broadcast stamps the next sequence number on n and queues it for every
// subscriber without blocking. A subscriber whose queue is full misses n.
func (m *Manager) Broadcast(n *Notification) {
	m.seqMu.Lock()
	m.seq++
	n.SequenceNo = m.seq
	m.seqMu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.subscribers {
		select {
		case s.queue <- n:
		default:
			zlog.Debug().Msgf("notification: queue full, dropping: subscription=%s seq=%d", s.id, n.SequenceNo)
		}
	}
}

// SendTo delivers n to one subscriber synchronously, bypassing its queue.
func (m *Manager) SendTo(subscriptionID string, n *Notification) error {
	m.mu.RLock()
	s, ok := m.subscribers[subscriptionID]
	m.mu.RUnlock()

	if !ok {
		return errors.Wrapf(ErrUnknownSubscription, "id %s", subscriptionID)
	}
	return s.stream.Send(n)
}

// Pump broadcasts every event from events until the channel is closed or ctx
// is done.
func (m *Manager) Pump(ctx context.Context, events <-chan playback.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				zlog.Debug().Msg("notification: event channel closed")
				return
			}
			m.Publish(ev)
		}
	}
}

// SequenceNo returns the last sequence number issued.
func (m *Manager) SequenceNo() uint64 {
	m.seqMu.Lock()
	defer m.seqMu.Unlock()
	return m.seq
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

// Close stops every subscriber.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subscribers
	m.subscribers = make(map[string]*subscriber)
	m.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}
