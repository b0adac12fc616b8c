package display

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Default topics; overridable through the installation configuration.
const (
	DefaultStatusTopic = "solar/tracker/status"
	DefaultEventTopic  = "solar/tracker/events"
)

// backlogCapacity bounds how many messages queue while disconnected. At
// the 10-minute tracking cadence this is over a day of outage.
const backlogCapacity = 256

// linesPayload is the JSON published to the status topic for each Show.
type linesPayload struct {
	Display struct {
		Line1     string `json:"line1"`
		Line2     string `json:"line2"`
		Timestamp string `json:"timestamp"`
	} `json:"display"`
}

// MQTT is the remote display backend: it publishes the two-line status to
// a broker instead of rendering it. Write-only; the tracker never
// subscribes to anything, so there is no remote control path.
type MQTT struct {
	client paho.Client

	mu      sync.Mutex
	pending *backlog

	statusTopic string
	eventTopic  string
}

// NewMQTT connects to the broker and returns the remote display.
// Publishing while disconnected queues messages for replay on reconnect.
func NewMQTT(broker, clientID, statusTopic, eventTopic string) (*MQTT, error) {
	if statusTopic == "" {
		statusTopic = DefaultStatusTopic
	}
	if eventTopic == "" {
		eventTopic = DefaultEventTopic
	}

	m := &MQTT{
		pending:     newBacklog(backlogCapacity),
		statusTopic: statusTopic,
		eventTopic:  eventTopic,
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) { m.flushPending() })

	m.client = paho.NewClient(opts)
	token := m.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return m, nil
}

// Show publishes the display lines to the retained status topic, so a late
// subscriber immediately sees the last state.
func (m *MQTT) Show(line1, line2 string) error {
	var p linesPayload
	p.Display.Line1 = line1
	p.Display.Line2 = line2
	p.Display.Timestamp = time.Now().UTC().Format(time.RFC3339)

	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("format display payload: %w", err)
	}
	// QoS 0: the next status supersedes this one anyway.
	return m.publish(m.statusTopic, 0, true, payload)
}

// Power is a no-op for the remote backend; there is no backlight to manage.
func (m *MQTT) Power(on bool) error { return nil }

// PublishEvent sends a lifecycle event (STARTUP, SHUTDOWN) carrying a full
// status snapshot payload. QoS 1 so shutdown notices survive a wobbly link.
func (m *MQTT) PublishEvent(payload []byte) error {
	return m.publish(m.eventTopic, 1, false, payload)
}

// Close flushes nothing further and disconnects.
func (m *MQTT) Close() error {
	m.client.Disconnect(1000) // milliseconds
	return nil
}

func (m *MQTT) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !m.client.IsConnected() {
		m.mu.Lock()
		m.pending.add(outMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		m.mu.Unlock()
		return nil
	}

	token := m.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// flushPending replays everything queued while disconnected. Runs on the
// paho connect callback goroutine.
func (m *MQTT) flushPending() {
	m.mu.Lock()
	msgs := m.pending.take()
	m.mu.Unlock()

	for _, msg := range msgs {
		token := m.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		token.WaitTimeout(5 * time.Second)
	}
}
