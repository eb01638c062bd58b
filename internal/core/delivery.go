package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// deliveryTask pulls one member's copy of the room stream and renders it.
type deliveryTask struct {
	room     string
	user     string
	rx       *Receiver
	sink     Sink
	recorder Recorder
	log      zerolog.Logger
}

// startDelivery launches the task for a freshly added member. The caller has
// already accounted for it in b.tasks and b.active.
func (b *Broker) startDelivery(room, user string, rx *Receiver) {
	task := &deliveryTask{
		room:     room,
		user:     user,
		rx:       rx,
		sink:     b.sinks(room, user),
		recorder: b.recorder,
		log:      b.log.With().Str("room", room).Str("user", user).Logger(),
	}
	b.recorder.DeliveryStarted()

	go func() {
		defer b.tasks.Done()
		defer b.active.Add(-1)
		defer b.recorder.DeliveryStopped()
		task.run(context.Background())
	}()
}

// run loops until the receiver or the stream is closed.
func (t *deliveryTask) run(ctx context.Context) {
	for {
		msg, err := t.rx.Recv(ctx)
		if err != nil {
			var lagged *LaggedError
			if errors.As(err, &lagged) {
				t.recorder.MessagesDropped(lagged.Skipped)
				t.log.Warn().Uint64("skipped", lagged.Skipped).Msg("slow receiver, messages dropped")
				continue
			}
			if !errors.Is(err, ErrReceiverClosed) && !errors.Is(err, ErrStreamClosed) {
				t.log.Error().Err(err).Msg("delivery stopped")
			}
			return
		}

		if err := t.sink.Render(msg); err != nil {
			t.recorder.RenderFailed()
			t.log.Error().Err(err).Str("message_id", msg.ID).Msg("render message")
			continue
		}
		t.recorder.MessageDelivered()
	}
}

// runTranscript logs every message of a room once, independent of members.
func (b *Broker) runTranscript(room string, rx *Receiver) {
	defer b.tasks.Done()

	log := b.log.With().Str("room", room).Str("task", "transcript").Logger()
	ctx := context.Background()
	for {
		msg, err := rx.Recv(ctx)
		if err != nil {
			var lagged *LaggedError
			if errors.As(err, &lagged) {
				log.Warn().Uint64("skipped", lagged.Skipped).Msg("transcript lagged")
				continue
			}
			return
		}
		log.Debug().Str("from", msg.From).Str("text", msg.Text).Time("created_at", msg.CreatedAt).Msg("message")
	}
}
