package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NERRecon/internal/testutil"
)

// mockKafkaReader
type mockKafkaReader struct {
	fetchFunc  func(ctx context.Context) (kafka.Message, error)
	commitFunc func(ctx context.Context, msgs ...kafka.Message) error
	closeFunc  func() error
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx)
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.commitFunc != nil {
		return m.commitFunc(ctx, msgs...)
	}
	return nil
}

func (m *mockKafkaReader) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

// onceReader yields msg once and then blocks until cancelled.
func onceReader(msg kafka.Message, committed chan<- kafka.Message) *mockKafkaReader {
	var mu sync.Mutex
	served := false
	return &mockKafkaReader{
		fetchFunc: func(ctx context.Context) (kafka.Message, error) {
			mu.Lock()
			first := !served
			served = true
			mu.Unlock()
			if first {
				return msg, nil
			}
			<-ctx.Done()
			return kafka.Message{}, ctx.Err()
		},
		commitFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			for _, m := range msgs {
				committed <- m
			}
			return nil
		},
	}
}

// recordingPublisher captures dead letters.
type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*ProducerMessage
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, msg *ProducerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newTestConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "nerrecon-workers",
		Topics:  []string{TopicReconcileRequests},
		RetryConfig: RetryConfig{
			MaxRetries:      2,
			RetryBackoff:    time.Millisecond,
			MaxRetryBackoff: 2 * time.Millisecond,
			DeadLetterTopic: TopicReconcileDLQ,
		},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(newTestConsumerConfig()))

	cases := map[string]func(*ConsumerConfig){
		"no brokers":  func(c *ConsumerConfig) { c.Brokers = nil },
		"no group":    func(c *ConsumerConfig) { c.GroupID = "" },
		"no topics":   func(c *ConsumerConfig) { c.Topics = nil },
		"bad offset":  func(c *ConsumerConfig) { c.AutoOffsetReset = "middle" },
		"neg retries": func(c *ConsumerConfig) { c.RetryConfig.MaxRetries = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := newTestConsumerConfig()
			mutate(&cfg)
			assert.Error(t, ValidateConsumerConfig(cfg))
		})
	}
}

func TestStart_AlreadyRunning(t *testing.T) {
	c := NewConsumerWithReader(&mockKafkaReader{}, nil, newTestConsumerConfig(), nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.Equal(t, ErrAlreadyRunning, c.Start(context.Background()))
}

func TestConsumeLoop_DispatchesAndCommits(t *testing.T) {
	committed := make(chan kafka.Message, 1)
	reader := onceReader(kafka.Message{
		Topic:   TopicReconcileRequests,
		Offset:  7,
		Value:   []byte("value"),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(EventReconcileRequested)}},
	}, committed)
	c := NewConsumerWithReader(reader, nil, newTestConsumerConfig(), nil)

	got := make(chan *Message, 1)
	c.Subscribe(TopicReconcileRequests, func(ctx context.Context, msg *Message) error {
		got <- msg
		return nil
	})
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	select {
	case msg := <-got:
		assert.Equal(t, "value", string(msg.Value))
		assert.Equal(t, EventReconcileRequested, msg.Headers["event_type"])
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for handler")
	}
	select {
	case m := <-committed:
		assert.Equal(t, int64(7), m.Offset)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for commit")
	}
}

func TestConsumeLoop_FailedMessageIsDeadLetteredAndCommitted(t *testing.T) {
	committed := make(chan kafka.Message, 1)
	reader := onceReader(kafka.Message{Topic: TopicReconcileRequests, Key: []byte("k"), Value: []byte("bad")}, committed)
	dlq := &recordingPublisher{}
	c := NewConsumerWithReader(reader, dlq, newTestConsumerConfig(), testutil.NewMockLogger())
	c.Subscribe(TopicReconcileRequests, func(ctx context.Context, msg *Message) error {
		return errors.New("unknown policy")
	})
	require.NoError(t, c.Start(context.Background()))

	select {
	case <-committed:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for commit")
	}
	require.NoError(t, c.Close())

	_, failed, dead := c.Stats()
	assert.Equal(t, int64(1), failed)
	assert.Equal(t, int64(1), dead)
	require.Len(t, dlq.msgs, 1)
	dl := dlq.msgs[0]
	assert.Equal(t, TopicReconcileDLQ, dl.Topic)
	assert.Equal(t, "k", string(dl.Key))
	assert.Equal(t, TopicReconcileRequests, dl.Headers[HeaderOriginalTopic])
	assert.Equal(t, "unknown policy", dl.Headers[HeaderErrorMessage])
	assert.Equal(t, "3", dl.Headers[HeaderAttempts])
}

func TestProcessMessage_RetrySuccess(t *testing.T) {
	c := NewConsumerWithReader(nil, nil, newTestConsumerConfig(), nil)

	attempts := 0
	handler := func(ctx context.Context, msg *Message) error {
		attempts++
		if attempts < 2 {
			return errors.New("fail")
		}
		return nil
	}

	require.NoError(t, c.processMessage(context.Background(), &Message{}, handler))
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(1), c.metrics.MessagesRetried.Load())
}

func TestProcessMessage_RetryExhausted(t *testing.T) {
	dlq := &recordingPublisher{err: errors.New("dlq down")}
	logger := testutil.NewMockLogger()
	c := NewConsumerWithReader(nil, dlq, newTestConsumerConfig(), logger)

	err := c.processMessage(context.Background(), &Message{Topic: "t"}, func(ctx context.Context, msg *Message) error {
		return errors.New("fail")
	})
	assert.EqualError(t, err, "fail")
	assert.Equal(t, int64(2), c.metrics.MessagesRetried.Load())
	assert.Zero(t, c.metrics.MessagesDeadLettered.Load())
	assert.True(t, logger.HasMessage("error", "Failed to send to dead letter queue"))
}

func TestProcessMessage_CancelledDuringBackoff(t *testing.T) {
	cfg := newTestConsumerConfig()
	cfg.RetryConfig.RetryBackoff = time.Hour
	c := NewConsumerWithReader(nil, nil, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	err := c.processMessage(ctx, &Message{}, func(ctx context.Context, msg *Message) error {
		cancel()
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClose_NotStarted(t *testing.T) {
	c := NewConsumerWithReader(&mockKafkaReader{}, nil, newTestConsumerConfig(), nil)
	assert.NoError(t, c.Close())
}

//Personal.AI order the ending
