package notify

import (
	"sync"

	"musaix/logger"
	"musaix/model"

	"github.com/google/uuid"
)

// Update is one row-change notification pushed to subscribers of an
// analysis id.
type Update struct {
	AnalysisID string                 `json:"analysisId"`
	Status     model.ProcessingStatus `json:"status"`
	Analysis   *model.AudioAnalysis   `json:"analysis,omitempty"`
	Origin     string                 `json:"origin,omitempty"` // hub instance that produced it
}

// Subscription is one observer of a single analysis id. C closes when the
// subscription ends, either by Close or after a terminal-status update.
type Subscription struct {
	AnalysisID string
	C          <-chan Update

	hub  *Hub
	ch   chan Update
	once sync.Once
}

// Close tears the subscription down. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		select {
		case s.hub.unsubscribe <- s:
		case <-s.hub.done:
		}
	})
}

// Hub fans analysis row updates out to live subscribers, keyed by analysis
// id. All state is owned by the Run loop; callers interact only through
// channels via Subscribe/Publish.
type Hub struct {
	id string // instance id, used by the Redis bridge to drop self-echoes

	subscribers map[string]map[*Subscription]bool

	subscribe   chan *Subscription
	unsubscribe chan *Subscription
	publish     chan Update
	done        chan struct{}

	bridge Broadcaster
}

// Broadcaster relays an update to hubs in other processes.
type Broadcaster interface {
	Broadcast(update Update)
}

// NewHub creates a Hub. Call Run in its own goroutine and Stop on shutdown.
func NewHub() *Hub {
	return &Hub{
		id:          uuid.NewString(),
		subscribers: make(map[string]map[*Subscription]bool),
		subscribe:   make(chan *Subscription),
		unsubscribe: make(chan *Subscription),
		publish:     make(chan Update, 256),
		done:        make(chan struct{}),
	}
}

// SetBridge attaches the cross-process relay. Must be called before Run.
func (h *Hub) SetBridge(b Broadcaster) {
	h.bridge = b
}

// ID returns the hub instance id.
func (h *Hub) ID() string {
	return h.id
}

// Run is the hub main loop.
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.subscribe:
			if h.subscribers[sub.AnalysisID] == nil {
				h.subscribers[sub.AnalysisID] = make(map[*Subscription]bool)
			}
			h.subscribers[sub.AnalysisID][sub] = true
			logger.Debug("subscription added",
				logger.String("analysisId", sub.AnalysisID),
				logger.Int("subscribers", len(h.subscribers[sub.AnalysisID])))

		case sub := <-h.unsubscribe:
			h.drop(sub)

		case update := <-h.publish:
			h.dispatch(update)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop stops the hub and closes every subscriber channel.
func (h *Hub) Stop() {
	close(h.done)
}

// Subscribe registers an observer for one analysis id.
func (h *Hub) Subscribe(analysisID string) *Subscription {
	ch := make(chan Update, 8)
	sub := &Subscription{
		AnalysisID: analysisID,
		C:          ch,
		hub:        h,
		ch:         ch,
	}
	select {
	case h.subscribe <- sub:
	case <-h.done:
		close(ch)
	}
	return sub
}

// PublishAnalysis publishes a row update locally and over the bridge.
func (h *Hub) PublishAnalysis(analysis *model.AudioAnalysis) {
	update := Update{
		AnalysisID: analysis.ID,
		Status:     analysis.ProcessingStatus,
		Analysis:   analysis,
		Origin:     h.id,
	}
	h.Publish(update)
	if h.bridge != nil {
		h.bridge.Broadcast(update)
	}
}

// Publish delivers an update to local subscribers only.
func (h *Hub) Publish(update Update) {
	select {
	case h.publish <- update:
	case <-h.done:
	}
}

// dispatch runs inside the Run loop.
func (h *Hub) dispatch(update Update) {
	subs := h.subscribers[update.AnalysisID]
	for sub := range subs {
		select {
		case sub.ch <- update:
		default:
			// Slow consumer; drop it rather than block the hub.
			h.drop(sub)
		}
	}

	// Terminal status ends every subscription for the id: no further
	// transitions will ever be published.
	if update.Status.IsTerminal() {
		for sub := range h.subscribers[update.AnalysisID] {
			h.drop(sub)
		}
	}
}

// drop runs inside the Run loop.
func (h *Hub) drop(sub *Subscription) {
	if subs, ok := h.subscribers[sub.AnalysisID]; ok {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			close(sub.ch)
			if len(subs) == 0 {
				delete(h.subscribers, sub.AnalysisID)
			}
		}
	}
}

func (h *Hub) cleanup() {
	for id, subs := range h.subscribers {
		for sub := range subs {
			close(sub.ch)
		}
		delete(h.subscribers, id)
	}
}
