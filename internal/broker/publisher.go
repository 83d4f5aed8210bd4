package broker

import (
	"context"
	"log/slog"

	"github.com/casualjim/roost/flow"
	"github.com/casualjim/roost/pkg/slogx"
)

// Publisher returns a hook that forwards every event of a run to the topic
// named after the run id. Publish failures are logged and do not affect the
// run.
func Publisher(b Broker) flow.Hook {
	return flow.HookFunc(func(ctx context.Context, ev flow.Event) {
		if err := b.Topic(ctx, ev.Run().String()).Publish(ctx, ev); err != nil {
			slog.WarnContext(ctx, "failed to publish flow event",
				slogx.LoggerName("broker"), slogx.RunID(ev.Run()), slog.String("event", ev.EventKind()), slogx.Error(err))
		}
	})
}
