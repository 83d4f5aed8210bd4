package broker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/roost/flow"
	"github.com/casualjim/roost/pkg/slogx"
	"github.com/casualjim/roost/pkg/uuidx"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix is prepended to topic ids to form NATS subjects.
const SubjectPrefix = "roost.flow."

type natsBroker struct {
	client *nats.Conn
	topics *haxmap.Map[string, *natsTopic]
}

func NATS(client *nats.Conn) *natsBroker {
	return &natsBroker{
		client: client,
		topics: haxmap.New[string, *natsTopic](),
	}
}

func (b *natsBroker) Topic(_ context.Context, id string) Topic {
	top, _ := b.topics.GetOrCompute(id, func() *natsTopic {
		return &natsTopic{
			subject: SubjectPrefix + id,
			client:  b.client,
		}
	})
	return top
}

type natsTopic struct {
	client  *nats.Conn
	subject string
}

func (t *natsTopic) Publish(_ context.Context, event flow.Event) error {
	eb, err := flow.MarshalEvent(event)
	if err != nil {
		return err
	}
	return t.client.Publish(t.subject, eb)
}

// Subscribe delivers events to hook from the subscription's own goroutine,
// one at a time and in publish order.
func (t *natsTopic) Subscribe(ctx context.Context, hook flow.Hook) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}
	nsub, err := t.client.Subscribe(t.subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		event, err := flow.UnmarshalEvent(msg.Data)
		if err != nil {
			slog.Error("failed to unmarshal event", slogx.Error(err), slog.String("subject", msg.Subject))
			return
		}
		hook.OnEvent(ctx, event)

		if msg.Reply != "" {
			if nerr := msg.Ack(); nerr != nil {
				slog.Error("failed to ack message", slogx.Error(nerr))
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", t.subject, err)
	}
	// make sure the subscription is registered before the first publish
	if err := t.client.Flush(); err != nil {
		_ = nsub.Unsubscribe()
		return nil, fmt.Errorf("subscribe %s: %w", t.subject, err)
	}

	sub := &natsSubscription{id: uuidx.NewString(), sub: nsub}
	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()
	return sub, nil
}

type natsSubscription struct {
	id  string
	sub *nats.Subscription
}

func (n *natsSubscription) ID() string {
	return n.id
}

func (n *natsSubscription) Unsubscribe() {
	if !n.sub.IsValid() {
		return
	}
	if err := n.sub.Unsubscribe(); err != nil {
		slog.Error("failed to unsubscribe", slogx.Error(err), slog.String("subscription", n.id))
	}
}
