package broker

import (
	"context"

	"github.com/casualjim/roost/flow"
)

type Broker interface {
	Topic(context.Context, string) Topic
}

type Topic interface {
	Publish(context.Context, flow.Event) error
	Subscribe(context.Context, flow.Hook) (Subscription, error)
}

type Subscription interface {
	ID() string
	Unsubscribe()
}
