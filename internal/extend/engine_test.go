package extend

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/annel0/gridextend/internal/config"
	"github.com/annel0/gridextend/internal/eventbus"
	"github.com/annel0/gridextend/internal/grid"
	"github.com/annel0/gridextend/internal/level"
	"github.com/annel0/gridextend/internal/observability"
	"github.com/annel0/gridextend/internal/physics"
	"github.com/annel0/gridextend/internal/vec"
	"github.com/annel0/gridextend/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []*eventbus.Envelope
}

func (l *eventLog) handle(_ context.Context, ev *eventbus.Envelope) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) count(eventType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.EventType == eventType {
			n++
		}
	}
	return n
}

func (l *eventLog) first(eventType string) *eventbus.Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		if ev.EventType == eventType {
			return ev
		}
	}
	return nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("метрика %s не найдена", name)
	return 0
}

func testExtendConfig() config.ExtendConfig {
	cfg := config.Default().Extend
	cfg.DefaultLifetimeSeconds = 0
	return cfg
}

func tick(t *testing.T, e *Engine, dt float64) TickReport {
	t.Helper()
	report, err := e.Tick(context.Background(), dt)
	require.NoError(t, err)
	require.Zero(t, report.Violations, "тик %d", report.Tick)
	return report
}

func anchorAt(t *testing.T, e *Engine, c grid.Coord) block.Handle {
	t.Helper()
	for _, v := range e.Snapshot() {
		if v.Anchor != nil && v.Cell == c {
			return v.Handle
		}
	}
	t.Fatalf("якорь в %s не найден", c)
	return block.Nil
}

func TestEngine_TickPipeline(t *testing.T) {
	bus := eventbus.NewMemoryBus(64)
	log := &eventLog{}
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{}, log.handle)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics, err := observability.NewEngineMetrics(reg)
	require.NoError(t, err)

	e := NewEngine(Options{
		Extend:         testExtendConfig(),
		Workers:        4,
		SpawnPerTick:   1,
		Bus:            bus,
		Metrics:        metrics,
		VerifyEachTick: true,
	})
	e.LoadStatic([]level.Cell{{Type: block.AnchorTypeID}, {X: 3}})

	// Статика появляется по одной клетке за тик
	r := tick(t, e, 0.016)
	assert.Equal(t, 1, r.StaticSpawned)
	assert.Equal(t, 1, e.PendingStatic())
	r = tick(t, e, 0.016)
	assert.Equal(t, 1, r.Registration.Registered)
	assert.Equal(t, 2, e.IndexStats().Live)

	anchor := anchorAt(t, e, origin)
	req, done := e.SubmitExtend(Request{Anchor: anchor, Direction: vec.AxisPosX, Length: 5})
	assert.Equal(t, 1, req.ChainID, "новой цепочке выдан id")

	r = tick(t, e, 0.016)
	require.Len(t, r.Extends, 1)
	res := <-done
	assert.Equal(t, 2, res.Created)
	assert.True(t, res.Truncated())
	assert.Equal(t, 4, e.World().Len())
	assert.Equal(t, 2, e.IndexStats().Live, "сегменты регистрируются в следующем тике")

	r = tick(t, e, 0.016)
	assert.Equal(t, 2, r.Registration.Registered)
	assert.Equal(t, 4, e.IndexStats().Live)

	first := e.SubmitRetract(RetractRequest{ChainID: req.ChainID})
	second := e.SubmitRetract(RetractRequest{ChainID: req.ChainID})
	r = tick(t, e, 0.016)
	assert.Equal(t, 2, (<-first)[0].Destroyed)
	assert.Equal(t, 0, (<-second)[0].Destroyed)
	assert.Equal(t, 2, r.Reconciled)
	assert.Equal(t, 2, e.IndexStats().Live)
	assert.Equal(t, uint64(5), e.CurrentTick())

	require.NoError(t, bus.Close())
	assert.Equal(t, 1, log.count(eventbus.TypeChainCreated))
	assert.Equal(t, 1, log.count(eventbus.TypeChainRetracted))
	assert.Equal(t, 2, log.count(eventbus.TypeBlockDestroyed))
	assert.Zero(t, log.count(eventbus.TypeBlockExpired))

	created := log.first(eventbus.TypeChainCreated)
	require.NotNil(t, created)
	assert.Equal(t, "1", created.CorrelationID)
	var payload eventbus.ChainPayload
	require.NoError(t, created.Decode(&payload))
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, 5, payload.Requested)
	assert.True(t, payload.Truncated)

	assert.Equal(t, 2.0, counterValue(t, reg, "gridextend_segments_created_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "gridextend_extend_truncations_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "gridextend_chains_retracted_total"))
}

func TestEngine_LifetimeExpiry(t *testing.T) {
	bus := eventbus.NewMemoryBus(64)
	log := &eventLog{}
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{eventbus.TypeBlockExpired}}, log.handle)
	require.NoError(t, err)

	cfg := testExtendConfig()
	cfg.DefaultLifetimeSeconds = 1
	e := NewEngine(Options{Extend: cfg, Bus: bus, VerifyEachTick: true})
	e.LoadStatic([]level.Cell{{Type: block.AnchorTypeID}})
	tick(t, e, 0.5)

	e.SubmitExtend(Request{Anchor: anchorAt(t, e, origin), Direction: vec.AxisNegY, Length: 2})
	tick(t, e, 0.5) // сегменты ещё не живые на фазе истечения
	r := tick(t, e, 0.5)
	assert.Zero(t, r.Expired)

	r = tick(t, e, 0.5)
	assert.Equal(t, 2, r.Expired)
	assert.Equal(t, 2, r.Reconciled)
	assert.Equal(t, 1, e.World().Len())

	r = tick(t, e, 0.5)
	assert.Zero(t, r.Expired)

	require.NoError(t, bus.Close())
	assert.Equal(t, 2, log.count(eventbus.TypeBlockExpired))
}

func TestEngine_FootGuardToggle(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		want    int
	}{
		{"защита включена", true, 0},
		{"защита выключена", false, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testExtendConfig()
			cfg.FootGuard = tt.enabled
			e := NewEngine(Options{Extend: cfg})
			e.LoadStatic([]level.Cell{{Type: block.AnchorTypeID}})
			tick(t, e, 0)

			// Игрок стоит под якорем: клетки (0,-2,0) и (0,-1,0) у его головы
			e.SetPlayerFoot(grid.New(0, -3, 0, 0))
			_, done := e.SubmitExtend(Request{Anchor: anchorAt(t, e, origin), Direction: vec.AxisNegY, Length: 5})
			tick(t, e, 0)
			assert.Equal(t, tt.want, (<-done).Created)
		})
	}
}

func TestEngine_ExplicitChainIDIsReserved(t *testing.T) {
	e := NewEngine(Options{Extend: testExtendConfig()})
	req, _ := e.SubmitExtend(Request{Direction: vec.AxisPosX, Length: 1, ChainID: 10})
	assert.Equal(t, 10, req.ChainID)

	next, _ := e.SubmitExtend(Request{Direction: vec.AxisPosX, Length: 1})
	assert.Equal(t, 11, next.ChainID)

	resume, _ := e.SubmitExtend(Request{Direction: vec.AxisPosX, Length: 1, ResumeOffset: 2})
	assert.Equal(t, 0, resume.ChainID, "продолжению id не выдаётся")
}

func TestEngine_OpposingAnchorsInOneTick(t *testing.T) {
	e := NewEngine(Options{Extend: testExtendConfig(), Workers: 2, VerifyEachTick: true})
	e.LoadStatic([]level.Cell{{Type: block.AnchorTypeID}, {X: 6, Type: block.AnchorTypeID}})
	tick(t, e, 0)

	_, left := e.SubmitExtend(Request{Anchor: anchorAt(t, e, origin), Direction: vec.AxisPosX, Length: 5})
	_, right := e.SubmitExtend(Request{Anchor: anchorAt(t, e, grid.New(6, 0, 0, 0)), Direction: vec.AxisNegX, Length: 5})
	tick(t, e, 0)
	assert.Equal(t, 5, (<-left).Created+(<-right).Created)

	r := tick(t, e, 0)
	assert.Equal(t, 5, r.Registration.Registered)
	assert.Zero(t, r.Registration.Contended)
}

func TestEngine_QueuedPreview(t *testing.T) {
	e := NewEngine(Options{Extend: testExtendConfig()})
	e.LoadStatic([]level.Cell{{Type: block.AnchorTypeID}, {Z: 4}})
	tick(t, e, 0)

	anchor := anchorAt(t, e, origin)
	require.NoError(t, e.Select(anchor))
	e.SubmitPreview(anchor, vec.AxisPosZ, 8)
	e.SubmitPreview(anchor, vec.Vec3{X: 1, Y: 1}, 8)

	r := tick(t, e, 0)
	require.Len(t, r.Previews, 1, "неосевой предпросмотр отброшен")
	assert.Equal(t, 3, r.Previews[0].ValidLength)
	assert.Equal(t, 2, e.World().Len(), "предпросмотр не создаёт блоков")
}

func TestEngine_SyncsProxies(t *testing.T) {
	proxies := physics.NewProxyRegistry(25, 15)
	e := NewEngine(Options{Extend: testExtendConfig(), Proxies: proxies})
	e.LoadStatic([]level.Cell{{Type: block.AnchorTypeID}, {X: 100}})
	e.SetPlayerFoot(grid.New(0, -1, 0, 0))
	tick(t, e, 0)

	total, enabled := proxies.Len()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, enabled, "дальний блок без активного коллайдера")

	// Столбец над ступнями (0,-1,0) защищён, поэтому тянем вбок
	_, done := e.SubmitExtend(Request{Anchor: anchorAt(t, e, origin), Direction: vec.AxisPosX, Length: 2, ChainID: 3})
	tick(t, e, 0)
	require.Equal(t, 2, (<-done).Created)
	total, _ = proxies.Len()
	assert.Equal(t, 4, total)

	e.SubmitRetract(RetractRequest{ChainID: 3})
	tick(t, e, 0)
	total, _ = proxies.Len()
	assert.Equal(t, 2, total, "коллайдеры втянутых сегментов освобождены")
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	cfg := testExtendConfig()
	cfg.TickRate = 200
	e := NewEngine(Options{Extend: cfg})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := e.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Positive(t, e.CurrentTick())
}
