package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/meshlens/mesh-analyzer/pkg/logging"
)

// subscriberBuffer is the per-subscription channel depth. A slow SSE client
// gets events dropped rather than stalling the publisher.
const subscriberBuffer = 100

// TopicConfig controls what a late subscriber sees on connect
type TopicConfig struct {
	// BufferSize is how many published events the topic retains; 0 disables
	// retention and late subscribers only see live events
	BufferSize int
	// ReplayAll replays the whole retained buffer on subscribe; when false
	// only the most recent event is replayed. Status topics replay history,
	// state topics replay the latest value.
	ReplayAll bool
}

// SSEPublisher implements Publisher for Server-Sent Events consumers
type SSEPublisher struct {
	mu       sync.RWMutex
	subs     map[string]map[*sseSubscription]struct{}
	versions map[string]int
	retained map[string][]Event
	configs  map[string]TopicConfig
	closed   bool
}

// NewSSEPublisher creates a publisher with no topics configured
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{
		subs:     make(map[string]map[*sseSubscription]struct{}),
		versions: make(map[string]int),
		retained: make(map[string][]Event),
		configs:  make(map[string]TopicConfig),
	}
}

// ConfigureTopic sets the retention behavior of a topic
func (p *SSEPublisher) ConfigureTopic(topic string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configs[topic] = config
}

// Subscribe registers a subscription and replays retained events per the
// topic's configuration. Cancelling the context closes the subscription.
func (p *SSEPublisher) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("publisher is closed")
	}

	sub := &sseSubscription{
		topic:     topic,
		events:    make(chan Event, subscriberBuffer),
		publisher: p,
	}
	if p.subs[topic] == nil {
		p.subs[topic] = make(map[*sseSubscription]struct{})
	}
	p.subs[topic][sub] = struct{}{}

	config := p.configs[topic]
	replay := append([]Event(nil), p.retained[topic]...)
	p.mu.Unlock()

	if len(replay) > 0 {
		if !config.ReplayAll {
			replay = replay[len(replay)-1:]
		}
		for _, event := range replay {
			select {
			case sub.events <- event:
			default:
				logging.Warn("could not replay event to new subscriber", "topic", topic)
			}
		}
		logging.Debug("replayed events to new subscriber", "topic", topic, "count", len(replay))
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish delivers an event to every subscriber of the topic without
// blocking; a full subscriber channel drops the event for that subscriber
func (p *SSEPublisher) Publish(topic string, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event data: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	p.versions[topic]++
	event := Event{
		Topic:   topic,
		Type:    eventType,
		Data:    payload,
		Version: p.versions[topic],
	}

	if config := p.configs[topic]; config.BufferSize > 0 {
		retained := append(p.retained[topic], event)
		if len(retained) > config.BufferSize {
			retained = retained[len(retained)-config.BufferSize:]
		}
		p.retained[topic] = retained
	}

	for sub := range p.subs[topic] {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscription channel full, dropping event", "topic", topic)
		}
	}
	return nil
}

// Close shuts down the publisher and every subscription
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	for _, subs := range p.subs {
		for sub := range subs {
			close(sub.events)
		}
	}
	p.subs = make(map[string]map[*sseSubscription]struct{})
	return nil
}

// unsubscribe removes the subscription and closes its channel so consumer
// range loops terminate. Publishes only send to registered subscriptions
// while holding p.mu, and Close resets the registry before this can run
// again, so the close cannot race a send or happen twice.
func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs := p.subs[sub.topic]
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(p.subs, sub.topic)
	}
	close(sub.events)
}

type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher
	mu        sync.Mutex
	closed    bool
}

func (s *sseSubscription) Topic() string {
	return s.topic
}

func (s *sseSubscription) Events() <-chan Event {
	return s.events
}

func (s *sseSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.publisher.unsubscribe(s)
	return nil
}

// WriteSSE frames one event for the wire: "data: {json}\n\n"
func WriteSSE(w io.Writer, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
