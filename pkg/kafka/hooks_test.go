package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookChainThreadsContextAndStopsOnError(t *testing.T) {
	var order []string
	chain := NewHookChain(
		TraceHook{},
		HookFuncs{After: func(context.Context, string, kafka.Message, []byte, error) { order = append(order, "a") }},
		nil,
		HookFuncs{After: func(context.Context, string, kafka.Message, []byte, error) { order = append(order, "b") }},
	)

	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("t-1")}}}
	ctx, _, data, err := chain.BeforeHandle(context.Background(), "erp.client-activity", km, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "t-1", TraceIDFrom(ctx))
	assert.IsType(t, time.Time{}, ctx.Value(CtxStartTime))
	assert.Equal(t, []byte(`{}`), data)

	chain.AfterHandle(ctx, "erp.client-activity", km, data, nil)
	assert.Equal(t, []string{"b", "a"}, order)
}

func TestRequireJSONIsPermanent(t *testing.T) {
	chain := NewHookChain(RequireJSON())

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("not-json"))
	require.Error(t, err)
	assert.True(t, IsPermanent(err))

	var he *HookError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, "ERR_DECODE", he.Code)
}

func TestHookChainRecoversPanics(t *testing.T) {
	chain := NewHookChain(HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("boom")
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { panic("boom") },
	})

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, "ERR_PANIC", he.Code)

	assert.NotPanics(t, func() { chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil) })
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(100*time.Millisecond, time.Second, attempt)
		assert.LessOrEqual(t, d, time.Second)
		assert.Greater(t, d, time.Duration(0))
	}
}
