package devicesync

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

// Sink applies a reading to the device identified by key.
type Sink interface {
	ApplyReading(ctx context.Context, key string, r Reading) error
}

// SessionFunc runs fn on a store session that carries the device-sync
// identity.
type SessionFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// Processor decodes messages and applies them inside a device-sync session.
type Processor struct {
	pattern string
	sink    Sink
	session SessionFunc
	logger  zerolog.Logger
}

func NewProcessor(pattern string, sink Sink, session SessionFunc, logger zerolog.Logger) *Processor {
	if session == nil {
		session = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Processor{pattern: pattern, sink: sink, session: session, logger: logger}
}

// Handle processes one message. Bad payloads and unknown devices are logged
// and dropped; redelivering them would fail the same way.
func (p *Processor) Handle(ctx context.Context, topic string, body []byte) error {
	key, reading, err := Decode(p.pattern, topic, body)
	if err != nil {
		p.logger.Warn().Err(err).Str("topic", topic).Msg("dropping sync message")
		return err
	}

	err = p.session(ctx, func(ctx context.Context) error {
		return p.sink.ApplyReading(ctx, key, reading)
	})
	switch {
	case err == nil:
		p.logger.Debug().Str("device", key).Int("battery_level", *reading.BatteryLevel).
			Int("remaining_doses", *reading.RemainingDoses).Msg("device synced")
	case apperr.IsValidation(err) || apperr.IsNotFound(err):
		p.logger.Warn().Err(err).Str("device", key).Msg("rejected sync reading")
	default:
		p.logger.Error().Err(err).Str("device", key).Msg("device sync failed")
	}
	return err
}
