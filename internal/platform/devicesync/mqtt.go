package devicesync

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

type Config struct {
	BrokerURL string
	ClientID  string
	Topic     string
	Username  string
	Password  string
}

// Subscriber delivers MQTT messages to a Processor.
type Subscriber struct {
	client mqtt.Client
	topic  string
	logger zerolog.Logger
}

func NewSubscriber(cfg Config, logger zerolog.Logger) (*Subscriber, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(false)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to mqtt broker: %w", token.Error())
	}
	return &Subscriber{client: client, topic: cfg.Topic, logger: logger}, nil
}

// Run subscribes with QoS 1 and blocks until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context, p *Processor) error {
	token := s.client.Subscribe(s.topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		_ = p.Handle(ctx, msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribing to %s: %w", s.topic, token.Error())
	}
	s.logger.Info().Str("topic", s.topic).Msg("device sync subscribed")

	<-ctx.Done()
	if token := s.client.Unsubscribe(s.topic); token.WaitTimeout(2*time.Second) && token.Error() != nil {
		s.logger.Warn().Err(token.Error()).Msg("mqtt unsubscribe failed")
	}
	s.client.Disconnect(250)
	return nil
}
