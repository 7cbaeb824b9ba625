package events

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"docchat-service/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umakantv/go-utils/logger"
)

func TestMain(m *testing.M) {
	logger.Init(logger.LoggerConfig{
		CallerKey:  "file",
		TimeKey:    "timestamp",
		CallerSkip: 1,
	})
	os.Exit(m.Run())
}

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, exchange+"|"+key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestNew(t *testing.T) {
	before := time.Now().UTC()
	e := New(TypeChatCreated, "alice", "c1")

	_, err := uuid.Parse(e.ID)
	require.NoError(t, err)
	assert.Equal(t, TypeChatCreated, e.Type)
	assert.Equal(t, "alice", e.Username)
	assert.Equal(t, "c1", e.ChatID)
	assert.False(t, e.At.Before(before))
	assert.NotEqual(t, e.ID, New(TypeChatCreated, "alice", "c1").ID)
}

func TestEvent_JSONOmitsEmptyChat(t *testing.T) {
	raw, err := json.Marshal(New(TypeUserLoggedIn, "bob", ""))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "chat_id")
	assert.Contains(t, string(raw), `"type":"user.logged_in"`)
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch, queue: "docchat.events"}
	e := New(TypeMessageSent, "alice", "c1")

	before := testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(TypeMessageSent, metrics.ResultOK))
	require.NoError(t, p.Publish(context.Background(), e))

	require.Len(t, ch.published, 1)
	assert.Equal(t, []string{"|docchat.events"}, ch.keys)
	msg := ch.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)
	assert.Equal(t, e.ID, msg.MessageId)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, "alice", decoded.Username)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(TypeMessageSent, metrics.ResultOK)))

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	p := &AMQPPublisher{ch: &fakeChannel{err: amqp.ErrClosed}, queue: "q"}

	before := testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(TypeChatDeleted, metrics.ResultError))
	err := p.Publish(context.Background(), New(TypeChatDeleted, "alice", "c1"))
	assert.ErrorIs(t, err, amqp.ErrClosed)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(TypeChatDeleted, metrics.ResultError)))
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("broker down")
}

func (f *failingPublisher) Close() error { return nil }

func TestEmit(t *testing.T) {
	f := &failingPublisher{}
	assert.NotPanics(t, func() {
		Emit(context.Background(), f, New(TypeUserRegistered, "alice", ""))
		Emit(context.Background(), nil, New(TypeUserRegistered, "alice", ""))
		Emit(context.Background(), NopPublisher{}, New(TypeUserRegistered, "alice", ""))
	})
	assert.Equal(t, 1, f.calls)
}
