package telemetry

import (
	"encoding/json"
	"sync"
	"time"

	"mvave-bridge/bridge"
	"mvave-bridge/logging"
)

// publishQueue bounds the messages waiting for the broker. Observer
// callbacks never block; overflow is dropped and logged.
const publishQueue = 128

type message struct {
	topic    string
	payload  []byte
	retained bool
}

// Publisher mirrors switch state, learn progress and connection state to
// MQTT. It implements bridge.Observer.
type Publisher struct {
	broker Broker
	topics Topics
	logger *logging.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan message
	done   chan struct{}
}

type statePayload struct {
	ID        string `json:"id"`
	On        bool   `json:"on"`
	Timestamp string `json:"timestamp"`
}

type learningPayload struct {
	ID        string `json:"id"`
	Field     string `json:"field"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type connectionPayload struct {
	Connected bool   `json:"connected"`
	Timestamp string `json:"timestamp"`
}

// NewPublisher starts the background sender.
func NewPublisher(b Broker, prefix string, logger *logging.Logger) *Publisher {
	p := &Publisher{
		broker: b,
		topics: Topics{Prefix: prefix},
		logger: logging.OrDefault(logger).Category("mqtt"),
		now:    time.Now,
		queue:  make(chan message, publishQueue),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) run() {
	defer close(p.done)
	for m := range p.queue {
		if err := p.broker.Publish(m.topic, m.payload, m.retained); err != nil {
			p.logger.Debug("publish failed", "topic", m.topic, "error", err)
		}
	}
}

func (p *Publisher) stamp() string {
	return p.now().UTC().Format(time.RFC3339Nano)
}

func (p *Publisher) enqueue(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("encode payload", "topic", topic, "error", err)
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- message{topic: topic, payload: payload, retained: retained}:
	default:
		p.logger.Warn("publish queue full, message dropped", "topic", topic)
	}
}

func (p *Publisher) StateChanged(controlID string, on bool) {
	p.enqueue(p.topics.SwitchState(controlID), statePayload{ID: controlID, On: on, Timestamp: p.stamp()}, true)
}

func (p *Publisher) LearningProgress(controlID string, field bridge.Field, status bridge.LearnStatus) {
	p.enqueue(p.topics.Learning(), learningPayload{
		ID:        controlID,
		Field:     field.String(),
		Status:    status.String(),
		Timestamp: p.stamp(),
	}, false)
}

func (p *Publisher) ConnectionChanged(connected bool) {
	p.enqueue(p.topics.Connection(), connectionPayload{Connected: connected, Timestamp: p.stamp()}, true)
}

// Snapshot publishes the current state of every switch, for example after
// the broker reconnects or a configuration is loaded.
func (p *Publisher) Snapshot(switches []bridge.Switch) {
	for _, sw := range switches {
		p.StateChanged(sw.ControlID, sw.State)
	}
}

// Close drains the queue. It does not close the broker.
func (p *Publisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
}
