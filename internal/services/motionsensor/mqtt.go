package motionsensor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"nvr-worker-go/internal/config"
)

// MQTTBroker is a connection shared by every camera using MQTT motion.
type MQTTBroker struct {
	client mqtt.Client
	broker string
	logger zerolog.Logger

	mu        sync.Mutex
	connected bool
}

func NewMQTTBroker(cfg *config.Config) *MQTTBroker {
	b := &MQTTBroker{
		broker: cfg.MQTTBroker,
		logger: log.With().Str("service", "mqtt").Str("broker", cfg.MQTTBroker).Logger(),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID + "-" + cfg.WorkerID)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(false)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		b.logger.Info().Msg("Connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		b.logger.Warn().Err(err).Msg("Lost connection to MQTT broker")
	})

	b.client = mqtt.NewClient(opts)
	return b
}

// Connect is safe to call more than once.
func (b *MQTTBroker) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connected {
		return nil
	}
	token := b.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to %s: %w", b.broker, token.Error())
	}
	b.connected = true
	return nil
}

func (b *MQTTBroker) IsConnected() bool {
	return b.client.IsConnected()
}

func (b *MQTTBroker) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connected {
		b.client.Disconnect(250)
		b.connected = false
	}
}

// Sensor returns a motion sensor reading the given topic.
func (b *MQTTBroker) Sensor(topic string) *MQTTSensor {
	return &MQTTSensor{broker: b, topic: topic}
}

// MQTTSensor follows a topic whose messages carry the motion state.
type MQTTSensor struct {
	broker *MQTTBroker
	topic  string
}

func (s *MQTTSensor) Start(_ context.Context, cb Callback) error {
	if err := s.broker.Connect(); err != nil {
		return err
	}
	token := s.broker.client.Subscribe(s.topic, 1, func(client mqtt.Client, msg mqtt.Message) {
		motion, err := ParseMotionPayload(msg.Payload())
		if err != nil {
			s.broker.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Ignoring motion message")
			return
		}
		cb(motion)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", s.topic, token.Error())
	}
	s.broker.logger.Info().Str("topic", s.topic).Msg("Subscribed to motion topic")
	return nil
}

func (s *MQTTSensor) Stop() {
	if s.broker.IsConnected() {
		s.broker.client.Unsubscribe(s.topic).Wait()
	}
}

type motionMessage struct {
	Motion     *bool  `json:"motion"`
	State      string `json:"state"`
	EventState string `json:"eventState"`
}

// ParseMotionPayload accepts ON/OFF style strings or a JSON object with a
// boolean "motion", a "state" string or a Hikvision style "eventState".
func ParseMotionPayload(payload []byte) (bool, error) {
	text := strings.TrimSpace(string(payload))
	if v, ok := parseState(text); ok {
		return v, nil
	}

	var msg motionMessage
	if err := json.Unmarshal([]byte(text), &msg); err != nil {
		return false, fmt.Errorf("unrecognised motion payload %q", text)
	}
	switch {
	case msg.Motion != nil:
		return *msg.Motion, nil
	case msg.State != "":
		if v, ok := parseState(msg.State); ok {
			return v, nil
		}
	case msg.EventState != "":
		if v, ok := parseState(msg.EventState); ok {
			return v, nil
		}
	}
	return false, fmt.Errorf("unrecognised motion payload %q", text)
}

func parseState(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "active", "motion", "detected":
		return true, true
	case "off", "false", "0", "inactive", "clear", "idle":
		return false, true
	}
	return false, false
}
