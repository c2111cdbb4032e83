package results

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicpaesk/killer-game/internal/services/summary"
	"github.com/nicpaesk/killer-game/internal/testutil"
)

type fakeChannel struct {
	exchange string
	key      string
	msgs     []amqp.Publishing
	err      error
	closed   bool
}

func (c *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.exchange, c.key = exchange, key
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func testSummary() *summary.Summary {
	return &summary.Summary{
		Code:   "ABC234",
		Status: "finished",
		Winner: "Alice",
		Kills: []summary.Kill{
			{KillerName: "Alice", VictimName: "Bob", Task: "say banana"},
		},
		KillCounts: []summary.KillCount{{Name: "Alice", Count: 1}, {Name: "Bob", Count: 0}},
	}
}

func TestAMQPPublisherPublishesJSON(t *testing.T) {
	ch := &fakeChannel{}
	p := newAMQPPublisher(ch, "killer.results", testutil.NopLogger())
	finished := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return finished }

	require.NoError(t, p.Publish(context.Background(), testSummary()))
	require.Len(t, ch.msgs, 1)

	msg := ch.msgs[0]
	assert.Equal(t, "", ch.exchange)
	assert.Equal(t, "killer.results", ch.key)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)
	assert.Equal(t, "ABC234", msg.MessageId)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "ABC234", decoded["code"])
	assert.Equal(t, "Alice", decoded["winner"])
	assert.Equal(t, "2024-01-01T12:00:00Z", decoded["finished_at"])
}

func TestAMQPPublisherWrapsErrors(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := newAMQPPublisher(ch, "q", testutil.NopLogger())

	err := p.Publish(context.Background(), testSummary())
	assert.ErrorContains(t, err, "publish result")
}

func TestAMQPPublisherHonoursContext(t *testing.T) {
	ch := &fakeChannel{}
	p := newAMQPPublisher(ch, "q", testutil.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Publish(ctx, testSummary()), context.Canceled)
	assert.Empty(t, ch.msgs)
}

func TestAMQPPublisherClose(t *testing.T) {
	ch := &fakeChannel{}
	p := newAMQPPublisher(ch, "q", testutil.NopLogger())
	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(testutil.NopLogger())
	assert.NoError(t, p.Publish(context.Background(), testSummary()))
	assert.NoError(t, p.Close())
}
