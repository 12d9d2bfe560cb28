package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/crowdgauge/crowdgauge/services"
	"github.com/crowdgauge/crowdgauge/utils"
)

// Subscriber bridges sensor pulses arriving over MQTT into the same ingest
// path the HTTP endpoint uses. Topics follow sensors/<deviceID>/pulse; a
// deviceId inside the payload wins over the topic segment when both are set.
type Subscriber struct {
	client paho.Client
	topic  string
	ingest *services.IngestService
}

type pulseMessage struct {
	DeviceID string `json:"deviceId"`
	Entries  int    `json:"entries"`
	Exits    int    `json:"exits"`
}

// NewSubscriber connects to the broker and subscribes to the pulse topic.
func NewSubscriber(broker, topic, clientID string, ingest *services.IngestService) (*Subscriber, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	s := &Subscriber{client: client, topic: topic, ingest: ingest}

	// QoS 1: a lost pulse is a lost visitor, duplicates only bend the count
	// until the next exit pulse.
	sub := client.Subscribe(topic, 1, s.handleMessage)
	if !sub.WaitTimeout(10 * time.Second) {
		client.Disconnect(250)
		return nil, fmt.Errorf("subscribe timeout")
	}
	if err := sub.Error(); err != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("subscribe %q: %w", topic, err)
	}

	return s, nil
}

func (s *Subscriber) handleMessage(_ paho.Client, msg paho.Message) {
	var pulse pulseMessage
	if err := json.Unmarshal(msg.Payload(), &pulse); err != nil {
		utils.Sugar.Warnw("dropping malformed pulse", "topic", msg.Topic(), "error", err)
		return
	}

	if pulse.DeviceID == "" {
		pulse.DeviceID = deviceIDFromTopic(msg.Topic())
	}

	if _, err := s.ingest.ProcessPulse(pulse.DeviceID, pulse.Entries, pulse.Exits); err != nil {
		utils.Sugar.Warnw("rejected pulse", "device_id", pulse.DeviceID, "error", err)
	}
}

// deviceIDFromTopic extracts the device segment from sensors/<id>/pulse.
func deviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// Close disconnects from the broker.
func (s *Subscriber) Close() error {
	s.client.Disconnect(1000)
	return nil
}
