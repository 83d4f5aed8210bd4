package broker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/roost/flow"
	"github.com/casualjim/roost/pkg/uuidx"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokerFactory creates a new broker instance for a test.
type brokerFactory func(t *testing.T) Broker

type acceptanceTest struct {
	name string
	test func(t *testing.T, createBroker brokerFactory)
}

func runAcceptanceTests(t *testing.T, createBroker brokerFactory) {
	tests := []acceptanceTest{
		{"creates unique topics", testUniqueTopics},
		{"reuses existing topics", testReuseTopics},
		{"publishes events to all subscribers", testPublishToAllSubscribers},
		{"handles subscription lifecycle", testSubscriptionLifecycle},
		{"handles context cancellation", testContextCancellation},
		{"handles concurrent operations", testConcurrentOperations},
		{"validates hook requirement", testHookValidation},
		{"publishes a whole flow run", testPublisherHook},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.test(t, createBroker)
		})
	}
}

func TestBrokerImplementations(t *testing.T) {
	t.Run("Local", func(t *testing.T) {
		runAcceptanceTests(t, func(t *testing.T) Broker {
			return Local()
		})
	})

	t.Run("NATS", func(t *testing.T) {
		url := os.Getenv("NATS_URL")
		if url == "" {
			url = nats.DefaultURL
		}
		probe, err := nats.Connect(url)
		if err != nil {
			t.Skipf("no NATS server at %s: %v", url, err)
		}
		probe.Close()

		runAcceptanceTests(t, func(t *testing.T) Broker {
			nc, err := nats.Connect(url)
			require.NoError(t, err)
			t.Cleanup(nc.Close)
			return NATS(nc)
		})
	})
}

// recordingHook collects the events it receives.
type recordingHook struct {
	mu     sync.Mutex
	events []flow.Event
	wg     *sync.WaitGroup
}

func (h *recordingHook) OnEvent(_ context.Context, ev flow.Event) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	if h.wg != nil {
		h.wg.Done()
	}
}

func (h *recordingHook) received() []flow.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]flow.Event(nil), h.events...)
}

func stepEvent(runID uuid.UUID, step string) flow.StepCompleted {
	return flow.StepCompleted{
		RunID:      runID,
		Flow:       "test",
		Step:       step,
		Invocation: 1,
		Delta:      map[string]any{"n": float64(1)},
		Timestamp:  strfmt.DateTime(time.Now().UTC().Truncate(time.Millisecond)),
	}
}

func waitFor(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for events to be processed")
	}
}

func testUniqueTopics(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic1 := broker.Topic(context.Background(), uuidx.NewString())
	topic2 := broker.Topic(context.Background(), uuidx.NewString())
	assert.NotSame(t, topic1, topic2)
}

func testReuseTopics(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	id := uuidx.NewString()
	assert.Same(t, broker.Topic(context.Background(), id), broker.Topic(context.Background(), id))
}

func testPublishToAllSubscribers(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), uuidx.NewString())

	var wg sync.WaitGroup
	wg.Add(4)
	recorder1 := &recordingHook{wg: &wg}
	recorder2 := &recordingHook{wg: &wg}

	ctx := context.Background()
	sub1, err := topic.Subscribe(ctx, recorder1)
	require.NoError(t, err)
	defer sub1.Unsubscribe()
	sub2, err := topic.Subscribe(ctx, recorder2)
	require.NoError(t, err)
	defer sub2.Unsubscribe()
	assert.NotEqual(t, sub1.ID(), sub2.ID())

	runID := uuidx.New()
	completed := stepEvent(runID, "A")
	routed := flow.Routed{RunID: runID, Flow: "test", Router: "R", Label: "again", Destination: "A", Timestamp: completed.Timestamp}
	require.NoError(t, topic.Publish(ctx, completed))
	require.NoError(t, topic.Publish(ctx, routed))

	waitFor(t, &wg)

	for _, rec := range []*recordingHook{recorder1, recorder2} {
		got := rec.received()
		require.Len(t, got, 2)
		assert.Equal(t, flow.KindStepCompleted, got[0].EventKind())
		assert.Equal(t, flow.KindRouted, got[1].EventKind())
		assert.Equal(t, runID, got[1].Run())
		sc, ok := got[0].(flow.StepCompleted)
		require.True(t, ok)
		assert.Equal(t, "A", sc.Step)
	}
}

func testSubscriptionLifecycle(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), uuidx.NewString())

	recorder := &recordingHook{}
	sub, err := topic.Subscribe(context.Background(), recorder)
	require.NoError(t, err)

	sub.Unsubscribe()
	sub.Unsubscribe()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, topic.Publish(context.Background(), stepEvent(uuidx.New(), "A")))
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, recorder.received())
}

func testContextCancellation(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), uuidx.NewString())

	ctx, cancel := context.WithCancel(context.Background())
	recorder := &recordingHook{}
	sub, err := topic.Subscribe(ctx, recorder)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	cancel()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, topic.Publish(context.Background(), stepEvent(uuidx.New(), "A")))
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, recorder.received())
}

func testConcurrentOperations(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), uuidx.NewString())
	ctx := context.Background()

	const numSubscribers = 10
	const numEvents = 40
	var processWg sync.WaitGroup
	processWg.Add(numSubscribers * numEvents)

	recorders := make([]*recordingHook, numSubscribers)
	for i := range recorders {
		recorders[i] = &recordingHook{wg: &processWg}
		sub, err := topic.Subscribe(ctx, recorders[i])
		require.NoError(t, err)
		t.Cleanup(sub.Unsubscribe)
	}

	var publishWg sync.WaitGroup
	publishWg.Add(numEvents)
	for i := range numEvents {
		go func() {
			defer publishWg.Done()
			assert.NoError(t, topic.Publish(ctx, stepEvent(uuidx.New(), fmt.Sprintf("step-%d", i))))
		}()
	}
	publishWg.Wait()
	waitFor(t, &processWg)

	for _, rec := range recorders {
		assert.Len(t, rec.received(), numEvents)
	}
}

func testHookValidation(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), uuidx.NewString())

	_, err := topic.Subscribe(context.Background(), nil)
	assert.ErrorContains(t, err, "hook is required")
}

func testPublisherHook(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	runID := uuidx.New()

	var wg sync.WaitGroup
	wg.Add(6) // started, 2x step started, 2x step completed, finished
	recorder := &recordingHook{wg: &wg}
	sub, err := broker.Topic(context.Background(), runID.String()).Subscribe(context.Background(), recorder)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	noop := func(context.Context, flow.Snapshot) (flow.Delta, error) { return nil, nil }
	g := flow.New("published", flow.WithHook(Publisher(broker))).
		Start("A", noop).
		Step("B", noop, "A").
		MustBuild()

	_, err = g.Kickoff(context.Background(), nil, flow.WithRunID(runID))
	require.NoError(t, err)
	waitFor(t, &wg)

	var kinds []string
	for _, ev := range recorder.received() {
		kinds = append(kinds, ev.EventKind())
	}
	assert.Equal(t, []string{
		flow.KindFlowStarted,
		flow.KindStepStarted, flow.KindStepCompleted,
		flow.KindStepStarted, flow.KindStepCompleted,
		flow.KindFlowFinished,
	}, kinds)
}

func TestLocal_SlowSubscribersAreDropped(t *testing.T) {
	broker := Local().WithSlowSubscriberTimeout(10 * time.Millisecond)
	topic := broker.Topic(context.Background(), "slow")

	block := make(chan struct{})
	var count int
	var mu sync.Mutex
	slow := flow.HookFunc(func(context.Context, flow.Event) {
		<-block
		mu.Lock()
		count++
		mu.Unlock()
	})
	sub, err := topic.Subscribe(context.Background(), slow)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// 1 in the hook, 50 buffered, the rest time out and drop the subscriber
	for range 60 {
		require.NoError(t, topic.Publish(context.Background(), stepEvent(uuidx.New(), "A")))
	}
	close(block)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Less(t, count, 60)
}
