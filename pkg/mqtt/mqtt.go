// Package mqtt publishes the readings of the gateway to a mqtt broker.
package mqtt

import (
	"sync/atomic"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/womat/debug"
)

const (
	// quiesce is the number of milliseconds to wait for existing work to be completed.
	quiesce = 250
	// connectTimeout limits a (re)connect to the broker.
	connectTimeout = 5 * time.Second
)

// Handler contains the handler of the mqtt broker.
type Handler struct {
	client   mqttlib.Client
	clientID string

	// C is the channel to service the mqtt message
	// sending a message to channel C will send the message.
	C chan Message

	published uint64
	failed    uint64
}

// Message contains the properties of the mqtt message.
type Message struct {
	Topic    string
	Payload  []byte
	Qos      byte
	Retained bool
}

// New generates a new mqtt broker client.
func New(clientID string) *Handler {
	return &Handler{
		clientID: clientID,
		C:        make(chan Message, 8),
	}
}

// Connect connects to the mqtt broker, e.g. tcp://127.0.0.1:1883.
// If no broker is defined, no mqtt message is sent.
func (m *Handler) Connect(broker string) error {
	if broker == "" {
		return nil
	}

	opts := mqttlib.NewClientOptions().
		AddBroker(broker).
		SetClientID(m.clientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetOrderMatters(false)

	m.client = mqttlib.NewClient(opts)
	return m.ReConnect()
}

// ReConnect reconnects to the defined mqtt broker.
func (m *Handler) ReConnect() error {
	t := m.client.Connect()
	if !t.WaitTimeout(connectTimeout) {
		return mqttlib.ErrNotConnected
	}
	return t.Error()
}

// Connected reports whether a broker is configured and connected.
func (m *Handler) Connected() bool {
	return m.client != nil && m.client.IsConnected()
}

// Disconnect will end the connection to the broker.
func (m *Handler) Disconnect() error {
	if m.client == nil {
		return nil
	}

	m.client.Disconnect(quiesce)
	return nil
}

// Close stops Service, no message may be sent to C after Close.
func (m *Handler) Close() error {
	close(m.C)
	return m.Disconnect()
}

// Published returns the number of messages accepted by the broker.
func (m *Handler) Published() uint64 {
	return atomic.LoadUint64(&m.published)
}

// Failed returns the number of messages which could not be published.
func (m *Handler) Failed() uint64 {
	return atomic.LoadUint64(&m.failed)
}

// Service listens to messages on the channel C and sends them to the broker until C is closed.
// If no broker or topic is defined, the message is dropped.
func (m *Handler) Service() {
	for msg := range m.C {
		if m.client == nil || msg.Topic == "" {
			continue
		}

		if !m.client.IsConnected() {
			debug.DebugLog.Print("mqtt broker isn't connected, reconnect it")

			if err := m.ReConnect(); err != nil {
				atomic.AddUint64(&m.failed, 1)
				debug.ErrorLog.Printf("can't reconnect to mqtt broker %v", err)
				continue
			}
		}

		debug.DebugLog.Printf("publishing %v bytes to topic %v", len(msg.Payload), msg.Topic)
		t := m.client.Publish(msg.Topic, msg.Qos, msg.Retained, msg.Payload)

		// the asynchronous nature of the library makes it easy to forget to check for errors
		go func(topic string, t mqttlib.Token) {
			<-t.Done()
			if err := t.Error(); err != nil {
				atomic.AddUint64(&m.failed, 1)
				debug.ErrorLog.Printf("publishing topic %v: %v", topic, err)
				return
			}
			atomic.AddUint64(&m.published, 1)
		}(msg.Topic, t)
	}
}
