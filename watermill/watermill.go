// Package watermill carries omni change notifications over an in-process
// Watermill pub/sub.
//
// A [Bus] implements [omni.Notifier]. Each update is published as a JSON
// message on one topic; subscribers receive decoded updates on a channel.
// Updates carry no state, so a subscriber that falls behind loses
// notifications but never the state they point at.
package watermill

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/fwojciec/omni"
	"github.com/rs/zerolog"
)

// DefaultTopic is the topic updates are published on.
const DefaultTopic = "omni.updates"

const defaultBuffer = 64

// Interface compliance check.
var _ omni.Notifier = (*Bus)(nil)

// updateDTO is the wire form of an update.
type updateDTO struct {
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id,omitempty"`
	Kind      string `json:"kind"`
	Status    string `json:"status,omitempty"`
}

// Bus publishes and fans out session updates.
type Bus struct {
	pubsub *gochannel.GoChannel
	topic  string
	buffer int
	logger zerolog.Logger
}

// Option configures a [Bus].
type Option func(*Bus)

// WithTopic sets the topic name.
func WithTopic(topic string) Option {
	return func(b *Bus) { b.topic = topic }
}

// WithBuffer sets the per-subscriber channel capacity. Non-positive values
// are ignored.
func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithLogger sets the logger. Watermill's own logs go to it as well.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// New creates a Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		topic:  DefaultTopic,
		buffer: defaultBuffer,
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(b)
	}
	b.pubsub = gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(b.buffer),
	}, NewLogger(b.logger))
	return b
}

// Notify publishes u. It does not wait for subscribers.
func (b *Bus) Notify(u omni.Update) {
	payload, err := json.Marshal(updateDTO{
		SessionID: u.SessionID,
		TurnID:    u.TurnID,
		Kind:      string(u.Kind),
		Status:    string(u.Status),
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("watermill: encode update")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("kind", string(u.Kind))
	if err := b.pubsub.Publish(b.topic, msg); err != nil {
		b.logger.Warn().Err(err).Str("kind", string(u.Kind)).Msg("watermill: publish update")
	}
}

// Subscribe returns a channel of updates published after the call. The
// channel is closed when ctx ends or the bus is closed. Updates that find
// the channel full are dropped.
func (b *Bus) Subscribe(ctx context.Context) (<-chan omni.Update, error) {
	messages, err := b.pubsub.Subscribe(ctx, b.topic)
	if err != nil {
		return nil, fmt.Errorf("watermill: subscribe: %w", err)
	}
	out := make(chan omni.Update, b.buffer)
	go b.forward(messages, out)
	return out, nil
}

func (b *Bus) forward(messages <-chan *message.Message, out chan<- omni.Update) {
	defer close(out)
	for msg := range messages {
		u, err := decode(msg.Payload)
		msg.Ack()
		if err != nil {
			b.logger.Debug().Err(err).Str("message_id", msg.UUID).Msg("watermill: dropped malformed update")
			continue
		}
		select {
		case out <- u:
		default:
			b.logger.Trace().Str("kind", string(u.Kind)).Msg("watermill: subscriber behind, update dropped")
		}
	}
}

// Close closes the pub/sub and every subscription.
func (b *Bus) Close() error {
	if err := b.pubsub.Close(); err != nil {
		return fmt.Errorf("watermill: %w", err)
	}
	return nil
}

func decode(payload []byte) (omni.Update, error) {
	var dto updateDTO
	if err := json.Unmarshal(payload, &dto); err != nil {
		return omni.Update{}, err
	}
	return omni.Update{
		SessionID: dto.SessionID,
		TurnID:    dto.TurnID,
		Kind:      omni.UpdateKind(dto.Kind),
		Status:    omni.TurnStatus(dto.Status),
	}, nil
}
