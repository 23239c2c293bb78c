package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_FilteredDelivery(t *testing.T) {
	bus := NewMemoryBus(16)

	var (
		mu  sync.Mutex
		got []string
	)
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{TypeChainRetracted}}, func(_ context.Context, ev *Envelope) {
		mu.Lock()
		got = append(got, ev.EventType)
		mu.Unlock()
	})
	require.NoError(t, err)

	for _, typ := range []string{TypeChainCreated, TypeChainRetracted, TypeBlockExpired, TypeChainRetracted} {
		ev, err := NewEnvelope("test", typ, ChainPayload{ChainID: 1})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(), ev))
	}

	// Close дожидается доставки принятых событий
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{TypeChainRetracted, TypeChainRetracted}, got)

	stats := bus.Metrics()
	assert.Equal(t, uint64(4), stats.Published)
	assert.Equal(t, uint64(2), stats.Consumed)
}

func TestMemoryBus_PublishAfterClose(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "повторное закрытие безопасно")

	ev, err := NewEnvelope("test", TypeBlockDestroyed, BlockPayload{Reason: "expired"})
	require.NoError(t, err)
	assert.ErrorIs(t, bus.Publish(context.Background(), ev), ErrBusClosed)

	_, err = bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {})
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()

	calls := make(chan struct{}, 8)
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {
		calls <- struct{}{}
	})
	require.NoError(t, err)

	ev, _ := NewEnvelope("test", TypeChainCreated, ChainPayload{ChainID: 2})
	require.NoError(t, bus.Publish(context.Background(), ev))

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("событие не доставлено")
	}

	sub.Unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), ev))
	assert.Never(t, func() bool { return len(calls) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestEnvelope_RoundTripPayload(t *testing.T) {
	ev, err := NewEnvelope("engine", TypeChainCreated, ChainPayload{ChainID: 7, Count: 4, Direction: [3]int32{1, 0, 0}})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, PayloadVersion, ev.Version)

	var p ChainPayload
	require.NoError(t, ev.Decode(&p))
	assert.Equal(t, 7, p.ChainID)
	assert.Equal(t, 4, p.Count)
}

func TestMetricsExporter_Collect(t *testing.T) {
	bus := NewMemoryBus(8)
	reg := prometheus.NewRegistry()
	me, err := NewMetricsExporter(bus, reg)
	require.NoError(t, err)

	ev, _ := NewEnvelope("test", TypeBlockExpired, BlockPayload{})
	require.NoError(t, bus.Publish(context.Background(), ev))
	require.NoError(t, bus.Close())

	me.Collect()
	me.Collect() // повторный сбор не удваивает счётчики

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		m := mf.GetMetric()[0]
		if c := m.GetCounter(); c != nil {
			values[mf.GetName()] = c.GetValue()
		}
	}
	assert.Equal(t, 1.0, values["eventbus_messages_published_total"])

	_, err = NewMetricsExporter(bus, reg)
	assert.Error(t, err, "повторная регистрация в том же реестре")
}
