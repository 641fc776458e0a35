// Package registry owns the live topic membership: which open connections
// subscribe to which broadcast channel, and the fanout itself.
package registry

import (
	"context"

	"go.uber.org/zap"
)

// Msg is the registry actor's typed inbox vocabulary.
type Msg interface{ isRegistryMsg() }

// Subscribe adds a connection's outbox to a topic. Idempotent: re-subscribing
// the same connection id to the same topic is a no-op.
type Subscribe struct {
	Topic  string
	ID     string
	Outbox chan []byte
}

// Unsubscribe removes a connection from a topic. No-op if absent, so it is
// safe to send on every exit path.
type Unsubscribe struct {
	Topic string
	ID    string
}

// Broadcast fans payload out to every current subscriber of Topic. Delivery
// per subscriber is a non-blocking buffered send; a full outbox drops that
// subscriber (its channel is closed, which tears the socket down) without
// touching the others.
type Broadcast struct {
	Topic   string
	Payload []byte
}

// GetView reflects internal state without data races. Test-only.
type GetView struct {
	Reply chan View
}

type View struct {
	// Subscribers per live topic. Topics with no subscribers do not appear.
	Subscribers map[string]int
}

type Shutdown struct{}

func (Subscribe) isRegistryMsg()   {}
func (Unsubscribe) isRegistryMsg() {}
func (Broadcast) isRegistryMsg()   {}
func (GetView) isRegistryMsg()     {}
func (Shutdown) isRegistryMsg()    {}

// Registry is a single goroutine owning map[topic]map[connID]outbox. One
// owner serializes mutations and gives per-topic FIFO broadcast order; the
// actual socket writes happen in per-connection writer goroutines, so a slow
// socket on one topic never stalls another topic's fanout.
type Registry struct {
	inbox  chan Msg
	topics map[string]map[string]chan []byte
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRegistry(parent context.Context, log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:  make(chan Msg, 64),
		topics: make(map[string]map[string]chan []byte),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go r.loop()
	return r
}

// Inbox exposes the actor's mailbox to the WS layer and tests.
func (r *Registry) Inbox() chan<- Msg { return r.inbox }

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Subscribe:
				subs := r.topics[msg.Topic]
				if subs == nil {
					// Topics are created lazily on first subscriber.
					subs = make(map[string]chan []byte)
					r.topics[msg.Topic] = subs
				}
				if _, ok := subs[msg.ID]; ok {
					break
				}
				subs[msg.ID] = msg.Outbox

			case Unsubscribe:
				r.remove(msg.Topic, msg.ID)

			case Broadcast:
				r.broadcast(msg.Topic, msg.Payload)

			case GetView:
				view := View{Subscribers: make(map[string]int, len(r.topics))}
				for topic, subs := range r.topics {
					view.Subscribers[topic] = len(subs)
				}
				msg.Reply <- view

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Registry) broadcast(topic string, payload []byte) {
	for id, out := range r.topics[topic] {
		select {
		case out <- payload:
			// ok
		default:
			// Subscriber can't keep up - drop it rather than stall the topic.
			r.log.Warn("dropping slow subscriber",
				zap.String("topic", topic),
				zap.String("conn_id", id))
			r.remove(topic, id)
		}
	}
}

// remove closes the outbox so the connection's writer goroutine always
// terminates. Safe to call twice for the same id: the second is a no-op.
func (r *Registry) remove(topic, id string) {
	subs := r.topics[topic]
	out, ok := subs[id]
	if !ok {
		return
	}
	delete(subs, id)
	close(out)
	if len(subs) == 0 {
		// Empty topics are garbage collected; a later broadcast to this
		// topic is a silent no-op.
		delete(r.topics, topic)
	}
}

func (r *Registry) shutdown() {
	for topic, subs := range r.topics {
		for id, out := range subs {
			close(out)
			delete(subs, id)
		}
		delete(r.topics, topic)
	}
	r.cancel()
}
