// Package broker distributes flow events over named topics, so a run can be
// watched from outside the process that executes it.
//
// Every flow run publishes to the topic named after its run id (see
// Publisher). Subscribers receive the events through a flow.Hook:
//
//	topic := b.Topic(ctx, runID.String())
//	sub, err := topic.Subscribe(ctx, flow.LogHook(logger))
//	if err != nil {
//	    return err
//	}
//	defer sub.Unsubscribe()
//
// Local keeps everything in memory and drops subscribers that fall behind.
// NATS encodes events as JSON and publishes them on a subject per topic.
package broker
