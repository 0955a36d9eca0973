package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageForwardsTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "t-42")
	msg := newMessage(ctx, "credit.snapshots", []byte("7"), []byte(`{}`))

	assert.Equal(t, "credit.snapshots", msg.Topic)
	assert.Equal(t, []byte("7"), msg.Key)
	assert.Equal(t, "t-42", ExtractTraceID(msg))

	plain := newMessage(context.Background(), "credit.snapshots", nil, nil)
	assert.Empty(t, plain.Headers)
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue("raw")
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), b)

	b, err = encodeValue(map[string]int64{"clientId": 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"clientId":7}`, string(b))

	_, err = encodeValue(func() {})
	assert.Error(t, err)
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(WithCompression("zstd"))
	assert.Error(t, err)
}
