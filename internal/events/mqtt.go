package events

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const mqttTopicPrefix = "fleet/events/"

// MQTTBridge republishes bus events to an MQTT broker so out-of-process
// consumers (dashboards, integrations) see the same change stream the
// websocket sessions do.
type MQTTBridge struct {
	client mqtt.Client
	subID  string
	done   chan struct{}
}

// NewMQTTBridge connects to the broker. brokerURL is e.g. "tcp://mqtt:1883".
func NewMQTTBridge(brokerURL, clientID string) (*MQTTBridge, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout for %s", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}

	return &MQTTBridge{
		client: client,
		done:   make(chan struct{}),
	}, nil
}

// Run subscribes to the bus and forwards events until the bus closes the
// subscription or Close is called.
func (b *MQTTBridge) Run(bus *Bus) {
	id, ch := bus.Subscribe(64)
	b.subID = id

	go func() {
		defer close(b.done)
		for change := range ch {
			payload, err := json.Marshal(change)
			if err != nil {
				log.WithError(err).Error("Failed to marshal change event for MQTT")
				continue
			}
			topic := mqttTopicPrefix + string(change.Table)
			token := b.client.Publish(topic, 0, false, payload)
			if token.WaitTimeout(5*time.Second) && token.Error() != nil {
				log.WithError(token.Error()).WithField("topic", topic).Warn("MQTT publish failed")
			}
		}
	}()
}

// Close stops forwarding and disconnects from the broker.
func (b *MQTTBridge) Close(bus *Bus) {
	if b.subID != "" {
		bus.Unsubscribe(b.subID)
		<-b.done
	}
	b.client.Disconnect(250)
}
