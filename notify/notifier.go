// Package notify fans generation progress out to live subscribers.
// The notifier is transport-agnostic: SSE handlers, websocket handlers,
// and the cross-instance bridge all consume the same subscription
// channels, and the record store write always happens before any fanout
// so polling remains a correct fallback.
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"script-to-video-server/models"
)

// subscriber channels buffer a burst of per-clip updates; a subscriber
// that falls this far behind is treated as failed and removed.
const subscriberBuffer = 64

// RecordSaver persists a record mutation. Durability precedes
// notification.
type RecordSaver interface {
	Save(ctx context.Context, g *models.Generation) error
}

// Bridge mirrors updates across server instances.
type Bridge interface {
	Publish(ctx context.Context, generationID string, payload []byte) error
	Subscribe(generationID string, handler func(payload []byte)) (cancel func(), err error)
}

type subscription struct {
	ch chan models.View
}

// Notifier maintains the per-generation subscriber registry.
type Notifier struct {
	saver    RecordSaver
	bridge   Bridge
	logger   *zap.Logger
	instance string

	mu         sync.Mutex
	subs       map[string]map[int]*subscription
	bridgeSubs map[string]func()
	nextID     int
}

func NewNotifier(saver RecordSaver, bridge Bridge, logger *zap.Logger) *Notifier {
	return &Notifier{
		saver:      saver,
		bridge:     bridge,
		logger:     logger,
		instance:   uuid.NewString(),
		subs:       make(map[string]map[int]*subscription),
		bridgeSubs: make(map[string]func()),
	}
}

type bridgeEnvelope struct {
	Instance string      `json:"instance"`
	View     models.View `json:"view"`
}

// Publish persists the record, then delivers its projection to every
// live subscriber. The persist error is the only one that surfaces;
// delivery failures are logged and swallowed.
func (n *Notifier) Publish(ctx context.Context, g *models.Generation) error {
	if err := n.saver.Save(ctx, g); err != nil {
		return err
	}

	view := g.AsView()
	n.fanout(view)

	if n.bridge != nil {
		payload, err := json.Marshal(bridgeEnvelope{Instance: n.instance, View: view})
		if err == nil {
			if err := n.bridge.Publish(ctx, g.ID, payload); err != nil {
				n.logger.Warn("bridge publish failed", zap.String("generation_id", g.ID), zap.Error(err))
			}
		}
	}
	return nil
}

// Subscribe registers a live subscriber for a generation. The returned
// cancel must be called on disconnect. The first subscriber for a
// generation also opens the cross-instance bridge subscription.
func (n *Notifier) Subscribe(generationID string) (<-chan models.View, func()) {
	n.mu.Lock()
	if n.subs[generationID] == nil {
		n.subs[generationID] = make(map[int]*subscription)
		if n.bridge != nil {
			cancel, err := n.bridge.Subscribe(generationID, func(payload []byte) {
				var env bridgeEnvelope
				if err := json.Unmarshal(payload, &env); err != nil {
					return
				}
				// Local publishes already fanned out directly.
				if env.Instance == n.instance {
					return
				}
				n.fanout(env.View)
			})
			if err != nil {
				n.logger.Warn("bridge subscribe failed", zap.String("generation_id", generationID), zap.Error(err))
			} else {
				n.bridgeSubs[generationID] = cancel
			}
		}
	}

	n.nextID++
	id := n.nextID
	sub := &subscription{ch: make(chan models.View, subscriberBuffer)}
	n.subs[generationID][id] = sub
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.removeLocked(generationID, id)
	}
	return sub.ch, cancel
}

// SubscriberCount reports the number of live subscribers for a
// generation.
func (n *Notifier) SubscriberCount(generationID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[generationID])
}

func (n *Notifier) fanout(view models.View) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, sub := range n.subs[view.ID] {
		select {
		case sub.ch <- view:
		default:
			// Send failure: the subscriber stopped draining. Drop it.
			n.logger.Warn("dropping slow subscriber", zap.String("generation_id", view.ID))
			n.removeLocked(view.ID, id)
		}
	}
}

func (n *Notifier) removeLocked(generationID string, id int) {
	m := n.subs[generationID]
	if m == nil {
		return
	}
	if sub, ok := m[id]; ok {
		delete(m, id)
		close(sub.ch)
	}
	if len(m) == 0 {
		delete(n.subs, generationID)
		if cancel, ok := n.bridgeSubs[generationID]; ok {
			cancel()
			delete(n.bridgeSubs, generationID)
		}
	}
}
