package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics Prometheus-метрики движка вытягивания.
// Все методы безопасны для nil-получателя: движок без метрик просто их не пишет.
type EngineMetrics struct {
	registrations       prometheus.Counter
	contention          prometheus.Counter
	indexGrows          prometheus.Counter
	reconciled          prometheus.Counter
	segmentsCreated     prometheus.Counter
	truncations         prometheus.Counter
	refused             prometheus.Counter
	chainsRetracted     prometheus.Counter
	blocksExpired       prometheus.Counter
	invariantViolations prometheus.Counter
	indexLive           prometheus.Gauge
	indexCapacity       prometheus.Gauge
	liveBlocks          prometheus.Gauge
	tickDuration        prometheus.Histogram
}

// NewEngineMetrics создаёт метрики и регистрирует их в reg
func NewEngineMetrics(reg prometheus.Registerer) (*EngineMetrics, error) {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: "gridextend", Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "gridextend", Name: name, Help: help})
	}

	m := &EngineMetrics{
		registrations:       counter("registrations_total", "Блоков, занявших клетку в индексе."),
		contention:          counter("registration_contention_total", "Проигранных гонок за клетку при регистрации."),
		indexGrows:          counter("index_grows_total", "Ростов хранилища индекса занятости."),
		reconciled:          counter("index_reconciled_total", "Устаревших записей, удалённых сверкой."),
		segmentsCreated:     counter("segments_created_total", "Созданных сегментов цепочек."),
		truncations:         counter("extend_truncations_total", "Вытягиваний, остановленных препятствием."),
		refused:             counter("extend_refused_total", "Отклонённых запросов вытягивания."),
		chainsRetracted:     counter("chains_retracted_total", "Полностью втянутых цепочек."),
		blocksExpired:       counter("blocks_expired_total", "Блоков, уничтоженных по истечении времени жизни."),
		invariantViolations: counter("invariant_violations_total", "Нарушений инвариантов индекса."),
		indexLive:           gauge("index_live_entries", "Записей в индексе занятости."),
		indexCapacity:       gauge("index_capacity", "Ёмкость хранилища индекса."),
		liveBlocks:          gauge("live_blocks", "Блоков в арене."),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gridextend",
			Name:      "tick_duration_seconds",
			Help:      "Длительность тика конвейера.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033, 0.1},
		}),
	}

	collectors := []prometheus.Collector{
		m.registrations, m.contention, m.indexGrows, m.reconciled, m.segmentsCreated,
		m.truncations, m.refused, m.chainsRetracted, m.blocksExpired, m.invariantViolations,
		m.indexLive, m.indexCapacity, m.liveBlocks, m.tickDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register engine metric: %w", err)
		}
	}
	return m, nil
}

func (m *EngineMetrics) ObserveRegistration(registered, contended, reconciled int, grown bool) {
	if m == nil {
		return
	}
	m.registrations.Add(float64(registered))
	m.contention.Add(float64(contended))
	m.reconciled.Add(float64(reconciled))
	if grown {
		m.indexGrows.Inc()
	}
}

func (m *EngineMetrics) ObserveExtend(created int, truncated, refused bool) {
	if m == nil {
		return
	}
	m.segmentsCreated.Add(float64(created))
	if truncated {
		m.truncations.Inc()
	}
	if refused {
		m.refused.Inc()
	}
}

func (m *EngineMetrics) AddReconciled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reconciled.Add(float64(n))
}

func (m *EngineMetrics) IncChainsRetracted() {
	if m == nil {
		return
	}
	m.chainsRetracted.Inc()
}

func (m *EngineMetrics) AddExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.blocksExpired.Add(float64(n))
}

func (m *EngineMetrics) AddViolations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.invariantViolations.Add(float64(n))
}

// SetIndex обновляет gauges индекса и арены
func (m *EngineMetrics) SetIndex(live, capacity, blocks int) {
	if m == nil {
		return
	}
	m.indexLive.Set(float64(live))
	m.indexCapacity.Set(float64(capacity))
	m.liveBlocks.Set(float64(blocks))
}

func (m *EngineMetrics) ObserveTick(seconds float64) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(seconds)
}
