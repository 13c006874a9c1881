package sink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/medisync/realtime/internal/delivery"
	"github.com/medisync/realtime/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap/zaptest"
)

type recording struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recording) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recording) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) Produce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	f.records = append(f.records, r)
	promise(r, f.err)
}

func sampleEvent() Event {
	return Event{
		Type:      MessageStored,
		UserID:    "p1",
		At:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Direction: Outgoing,
		Message:   &domain.ChatMessage{ID: "X", SenderID: "p1", ReceiverID: "doctor1", Content: "hello", Status: delivery.Sent},
	}
}

func TestRedis_PublishesJSONOnUserChannel(t *testing.T) {
	pub := &fakePublisher{}
	r := NewRedis(pub, "hms:events:")

	require.NoError(t, r.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, "hms:events:p1", pub.channel)

	var got Event
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, MessageStored, got.Type)
	assert.Equal(t, "X", got.Message.ID)
}

func TestRedis_WrapsError(t *testing.T) {
	boom := errors.New("connection refused")
	r := NewRedis(&fakePublisher{err: boom}, "p:")
	assert.ErrorIs(t, r.Publish(context.Background(), sampleEvent()), boom)
}

func TestKafka_KeysByUser(t *testing.T) {
	prod := &fakeProducer{}
	k := NewKafka(prod, "hms-client-events")

	require.NoError(t, k.Publish(context.Background(), sampleEvent()))
	require.Len(t, prod.records, 1)
	rec := prod.records[0]
	assert.Equal(t, "hms-client-events", rec.Topic)
	assert.Equal(t, []byte("p1"), rec.Key)
	assert.Equal(t, "message_stored", string(rec.Headers[0].Value))
}

func TestKafka_ProduceErrorIsNotReturned(t *testing.T) {
	k := NewKafka(&fakeProducer{err: errors.New("leader not available")}, "t")
	assert.NoError(t, k.Publish(context.Background(), sampleEvent()))
}

func TestFanout_JoinsErrors(t *testing.T) {
	ok := &recording{}
	bad := &recording{err: errors.New("down")}
	err := Fanout{ok, bad}.Publish(context.Background(), sampleEvent())

	assert.Error(t, err)
	assert.Equal(t, 1, ok.len())
	assert.Equal(t, 1, bad.len())
}

func TestAsync_DeliversQueuedEventsOnClose(t *testing.T) {
	rec := &recording{}
	a := NewAsync("test", rec, 16)
	for i := 0; i < 10; i++ {
		require.NoError(t, a.Publish(context.Background(), sampleEvent()))
	}
	a.Close()
	assert.Equal(t, 10, rec.len())

	// Publishing after Close is a silent no-op.
	require.NoError(t, a.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, 10, rec.len())
}

func TestLog_Publish(t *testing.T) {
	l := Log{Logger: zaptest.NewLogger(t)}
	e := sampleEvent()
	e.Notification = &domain.BroadcastNotification{SenderID: "a1", Recipients: []string{"all"}}
	e.State = "open"
	assert.NoError(t, l.Publish(context.Background(), e))
}
