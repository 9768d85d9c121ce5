package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKafkaWriter mocks KafkaWriter interface
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessfulPublish", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		p := &KafkaPublisher{writer: mockWriter, topic: "ledger", log: zerolog.Nop()}

		payload := []byte(`{"type":"ledger.entry.recorded"}`)
		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			return len(msgs) == 1 &&
				string(msgs[0].Key) == "wallet-1" &&
				string(msgs[0].Value) == string(payload) &&
				msgs[0].Topic == ""
		})).Return(nil).Once()

		require.NoError(t, p.Publish(ctx, "ledger", "wallet-1", payload))
		mockWriter.AssertExpectations(t)
	})

	t.Run("WriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		p := &KafkaPublisher{writer: mockWriter, topic: "ledger", log: zerolog.Nop()}

		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).
			Return(errors.New("kafka write error")).Once()

		err := p.Publish(ctx, "ledger", "wallet-1", []byte("{}"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kafka write error")
		mockWriter.AssertExpectations(t)
	})

	t.Run("ForeignTopicRejected", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		p := &KafkaPublisher{writer: mockWriter, topic: "ledger", log: zerolog.Nop()}

		err := p.Publish(ctx, "other-topic", "wallet-1", []byte("{}"))
		require.Error(t, err)
		mockWriter.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
	})
}

func TestKafkaPublisher_Close(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	p := &KafkaPublisher{writer: mockWriter, topic: "ledger", log: zerolog.Nop()}

	mockWriter.On("Close").Return(nil).Once()
	require.NoError(t, p.Close())

	mockWriter.On("Close").Return(errors.New("already closed")).Once()
	assert.Error(t, p.Close())
	mockWriter.AssertExpectations(t)
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "ledger", zerolog.Nop())
	assert.Error(t, err)

	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "", zerolog.Nop())
	assert.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "ledger", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "ledger", p.topic)
	require.NoError(t, p.Close())
}
