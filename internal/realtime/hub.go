package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/metrics"
)

// Subscriber is one connection as seen by the hub.  Deliver must not block;
// it reports false when the message was dropped.
type Subscriber interface {
	ID() string
	UserID() uint64 // 0 for anonymous connections
	Deliver(Message) bool
}

// Hub tracks connections, their topics and their users.  It knows nothing
// about the transport.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]Subscriber
	topics map[Topic]map[string]Subscriber
	joined map[string]map[Topic]struct{}
	users  map[uint64]map[string]Subscriber
	log    *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]Subscriber),
		topics: make(map[Topic]map[string]Subscriber),
		joined: make(map[string]map[Topic]struct{}),
		users:  make(map[uint64]map[string]Subscriber),
		log:    log,
	}
}

func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[s.ID()] = s
	h.joined[s.ID()] = make(map[Topic]struct{})
	if uid := s.UserID(); uid != 0 {
		if h.users[uid] == nil {
			h.users[uid] = make(map[string]Subscriber)
		}
		h.users[uid][s.ID()] = s
	}
	metrics.RealtimeConnections.Inc()
}

// Unregister removes the connection from every topic.  Calling it twice is
// harmless.
func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := s.ID()
	if _, ok := h.conns[id]; !ok {
		return
	}
	for t := range h.joined[id] {
		h.leave(id, t)
	}
	delete(h.joined, id)
	delete(h.conns, id)
	if uid := s.UserID(); uid != 0 {
		delete(h.users[uid], id)
		if len(h.users[uid]) == 0 {
			delete(h.users, uid)
		}
	}
	metrics.RealtimeConnections.Dec()
}

func (h *Hub) Subscribe(s Subscriber, t Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := s.ID()
	if _, ok := h.conns[id]; !ok {
		return
	}
	if h.topics[t] == nil {
		h.topics[t] = make(map[string]Subscriber)
	}
	h.topics[t][id] = s
	h.joined[id][t] = struct{}{}
}

func (h *Hub) Unsubscribe(s Subscriber, t Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(s.ID(), t)
	if j := h.joined[s.ID()]; j != nil {
		delete(j, t)
	}
}

// leave expects h.mu held.
func (h *Hub) leave(id string, t Topic) {
	members := h.topics[t]
	delete(members, id)
	if len(members) == 0 {
		delete(h.topics, t)
	}
}

// Publish delivers msg to every subscriber of t and returns how many
// accepted it.
func (h *Hub) Publish(t Topic, msg Message) int {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.topics[t]))
	for _, s := range h.topics[t] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	return deliver(targets, msg)
}

// SendToUser delivers msg to every authenticated connection of userID.
func (h *Hub) SendToUser(userID uint64, msg Message) int {
	if userID == 0 {
		return 0
	}
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.users[userID]))
	for _, s := range h.users[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	return deliver(targets, msg)
}

func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) Subscribers(t Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[t])
}

func deliver(targets []Subscriber, msg Message) int {
	n := 0
	for _, s := range targets {
		ok := s.Deliver(msg)
		metrics.RecordRealtime(msg.Event, ok)
		if ok {
			n++
		}
	}
	return n
}
