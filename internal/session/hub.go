// Package session carries the authenticated principal of each staff member to the panel: the Hub
// delivers identity changes as discrete events and a Gate keeps the current principal for route
// guarding.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-student-records/internal/models"
)

// Listener receives the new principal of a user; nil means signed out.
type Listener func(principal *models.Principal)

// Watcher observes identity changes of every user along with the time they were published.
type Watcher func(userID string, principal *models.Principal, at time.Time)

const (
	relayRetryMin = 500 * time.Millisecond
	relayRetryMax = 30 * time.Second
)

type identityEvent struct {
	UserID    string            `json:"user_id"`
	Principal *models.Principal `json:"principal"`
	At        time.Time         `json:"at"`
}

// Hub fans identity events out to subscribers keyed by user id. With a Redis client every instance
// of the service shares one pub/sub channel and delivery happens in Run; without one, Publish
// delivers in-process.
type Hub struct {
	client   *redis.Client
	channel  string
	logger   *zap.Logger
	now      func() time.Time
	retryMin time.Duration
	retryMax time.Duration

	mu       sync.RWMutex
	nextID   uint64
	subs     map[string]map[uint64]Listener
	watchers map[uint64]Watcher
}

// NewHub creates a hub. client may be nil.
func NewHub(client *redis.Client, channel string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		client:   client,
		channel:  channel,
		logger:   logger,
		now:      time.Now,
		retryMin: relayRetryMin,
		retryMax: relayRetryMax,
		subs:     make(map[string]map[uint64]Listener),
		watchers: make(map[uint64]Watcher),
	}
}

// Subscribe registers fn for identity changes of userID. The returned func unsubscribes and is
// safe to call more than once.
func (h *Hub) Subscribe(userID string, fn Listener) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[uint64]Listener)
	}
	h.subs[userID][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[userID], id)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
		})
	}
}

// Watch registers fn for identity changes of every user. With Redis, fn runs once when the local
// instance publishes and again when the event comes back over the channel, so it must tolerate
// repeats of the same event.
func (h *Hub) Watch(fn Watcher) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.watchers[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers, id)
			h.mu.Unlock()
		})
	}
}

// Subscribers reports how many listeners are registered for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Publish announces a principal change for userID. Watchers on this instance are notified before
// the event goes out so a sign-out takes effect here without waiting for the relay.
func (h *Hub) Publish(ctx context.Context, userID string, principal *models.Principal) error {
	event := identityEvent{UserID: userID, Principal: principal, At: h.now()}
	if h.client == nil {
		h.deliver(event)
		return nil
	}
	h.notifyWatchers(event)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode identity event: %w", err)
	}
	if err := h.client.Publish(ctx, h.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish identity event: %w", err)
	}
	return nil
}

// Run relays events from the Redis channel to local subscribers until ctx is done. A failed or
// dropped subscription is retried with exponential backoff. Without a Redis client it only waits
// for ctx.
func (h *Hub) Run(ctx context.Context) {
	if h.client == nil {
		<-ctx.Done()
		return
	}

	backoff := h.retryMin
	for {
		subscribed, err := h.relay(ctx)
		if ctx.Err() != nil {
			return
		}
		if subscribed {
			backoff = h.retryMin
		}
		h.logger.Warn("identity relay interrupted, retrying", zap.Duration("backoff", backoff), zap.Error(err))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if backoff *= 2; backoff > h.retryMax {
			backoff = h.retryMax
		}
	}
}

// relay holds one subscription open and reports whether it was established.
func (h *Hub) relay(ctx context.Context) (bool, error) {
	pubsub := h.client.Subscribe(ctx, h.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return false, fmt.Errorf("subscribe identity channel: %w", err)
	}
	h.logger.Info("identity relay subscribed", zap.String("channel", h.channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case msg, ok := <-messages:
			if !ok {
				return true, errors.New("identity channel closed")
			}
			h.handle(msg.Payload)
		}
	}
}

func (h *Hub) handle(payload string) {
	var event identityEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		h.logger.Warn("discarding malformed identity event", zap.Error(err))
		return
	}
	h.deliver(event)
}

func (h *Hub) deliver(event identityEvent) {
	h.notifyWatchers(event)

	h.mu.RLock()
	listeners := make([]Listener, 0, len(h.subs[event.UserID]))
	for _, fn := range h.subs[event.UserID] {
		listeners = append(listeners, fn)
	}
	h.mu.RUnlock()

	for _, fn := range listeners {
		fn(event.Principal)
	}
}

func (h *Hub) notifyWatchers(event identityEvent) {
	h.mu.RLock()
	watchers := make([]Watcher, 0, len(h.watchers))
	for _, fn := range h.watchers {
		watchers = append(watchers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range watchers {
		fn(event.UserID, event.Principal, event.At)
	}
}
