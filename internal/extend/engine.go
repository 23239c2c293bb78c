package extend

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/annel0/gridextend/internal/config"
	"github.com/annel0/gridextend/internal/eventbus"
	"github.com/annel0/gridextend/internal/grid"
	"github.com/annel0/gridextend/internal/level"
	"github.com/annel0/gridextend/internal/logging"
	"github.com/annel0/gridextend/internal/observability"
	"github.com/annel0/gridextend/internal/physics"
	"github.com/annel0/gridextend/internal/vec"
	"github.com/annel0/gridextend/internal/world"
	"github.com/annel0/gridextend/internal/world/block"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// EventSource имя источника в конвертах событий
const EventSource = "gridextend"

// Options задаёт зависимости движка
type Options struct {
	Extend         config.ExtendConfig
	IndexCapacity  int
	Workers        int // параллельность регистрации и исполнения; 0: по числу CPU
	SpawnPerTick   int // статических блоков за тик; 0: без ограничения
	Bus            eventbus.EventBus
	Metrics        *observability.EngineMetrics
	Proxies        *physics.ProxyRegistry
	VerifyEachTick bool
}

// TickReport итог одного тика конвейера
type TickReport struct {
	Tick          uint64                  `json:"tick"`
	StaticSpawned int                     `json:"static_spawned"`
	Registration  world.RegistrationStats `json:"registration"`
	Previews      []PreviewResult         `json:"previews,omitempty"`
	Extends       []Result                `json:"extends,omitempty"`
	Retracts      []RetractResult         `json:"retracts,omitempty"`
	Expired       int                     `json:"expired"`
	Changes       int                     `json:"changes"`
	Reconciled    int                     `json:"reconciled"`
	Violations    int                     `json:"violations"`
	Duration      time.Duration           `json:"duration"`
}

type previewRequest struct {
	anchor block.Handle
	dir    vec.Vec3
	length int
}

type extendTicket struct {
	req  Request
	done chan Result
}

type retractTicket struct {
	req  RetractRequest
	done chan []RetractResult
}

// Engine владелец мира уровня и конвейера тиков.
// Создаётся при загрузке уровня и выбрасывается при выгрузке.
type Engine struct {
	opts      Options
	world     *world.World
	registrar *world.Registrar
	previewer *Previewer
	executor  *Executor
	retractor *Retractor
	lifetime  *LifetimeWorker
	foot      *FootGuard
	spawner   *level.Spawner
	proxies   *physics.ProxyRegistry
	bus       eventbus.EventBus
	metrics   *observability.EngineMetrics
	tracer    trace.Tracer
	logger    *logging.Logger

	tickMu   sync.Mutex // один тик за раз
	queueMu  sync.Mutex
	previews []previewRequest
	extends  []extendTicket
	retracts []retractTicket

	tick        atomic.Uint64
	nextChainID atomic.Int64
}

// NewEngine создаёт движок с пустым миром
func NewEngine(opts Options) *Engine {
	if opts.Workers < 0 {
		opts.Workers = 0
	}

	foot := &FootGuard{}
	w := world.NewWorld(world.Options{IndexCapacity: opts.IndexCapacity})
	if opts.Proxies != nil {
		w.SetProxies(opts.Proxies)
	}

	settings := Settings{
		MaxExtendLength:        opts.Extend.MaxExtendLength,
		DefaultLifetimeSeconds: opts.Extend.DefaultLifetimeSeconds,
		DefaultOpacity:         opts.Extend.DefaultOpacity,
	}

	e := &Engine{
		opts:      opts,
		world:     w,
		registrar: world.NewRegistrar(w, opts.Workers),
		previewer: NewPreviewer(w, settings.MaxExtendLength, foot),
		executor:  NewExecutor(w, settings, foot),
		retractor: NewRetractor(w),
		lifetime:  NewLifetimeWorker(w),
		foot:      foot,
		spawner:   level.NewSpawner(opts.SpawnPerTick),
		proxies:   opts.Proxies,
		bus:       opts.Bus,
		metrics:   opts.Metrics,
		tracer:    observability.Tracer(),
		logger:    logging.GetExtendLogger(),
	}
	if !opts.Extend.FootGuard {
		e.foot = nil
		e.previewer.foot = nil
		e.executor.foot = nil
	}
	return e
}

// World возвращает мир движка
func (e *Engine) World() *world.World {
	return e.world
}

// LoadStatic ставит статические клетки в очередь спавна; они появляются партиями по тикам
func (e *Engine) LoadStatic(cells []level.Cell) int {
	e.spawner.Enqueue(cells)
	return len(cells)
}

// PendingStatic возвращает число ещё не заспавненных статических клеток
func (e *Engine) PendingStatic() int {
	return e.spawner.Pending()
}

// NewChainID выдаёт следующий id цепочки
func (e *Engine) NewChainID() int {
	return int(e.nextChainID.Inc())
}

// reserveChainID сдвигает счётчик за явно переданный id, чтобы автоматические id его не повторили
func (e *Engine) reserveChainID(id int) {
	for {
		cur := e.nextChainID.Load()
		if int64(id) <= cur || e.nextChainID.CompareAndSwap(cur, int64(id)) {
			return
		}
	}
}

// Select выбирает якорь для предпросмотра
func (e *Engine) Select(h block.Handle) error {
	return e.world.Select(h)
}

// SetPlayerFoot задаёт клетку под ступнями игрока для защиты от замуровывания
func (e *Engine) SetPlayerFoot(c grid.Coord) {
	if e.foot != nil {
		e.foot.SetFoot(c)
	}
	if e.proxies != nil {
		e.proxies.SetFocus(c.Vec().ToFloat())
	}
}

// ClearPlayerFoot снимает защиту клеток игрока
func (e *Engine) ClearPlayerFoot() {
	if e.foot != nil {
		e.foot.Clear()
	}
}

// Preview немедленно считает спекулятивную длину; только чтение
func (e *Engine) Preview(anchor block.Handle, dir vec.Vec3, length int) (PreviewResult, bool) {
	return e.previewer.Preview(anchor, dir, length)
}

// SubmitPreview ставит предпросмотр в очередь; результат попадёт в TickReport
func (e *Engine) SubmitPreview(anchor block.Handle, dir vec.Vec3, length int) {
	e.queueMu.Lock()
	e.previews = append(e.previews, previewRequest{anchor: anchor, dir: dir, length: length})
	e.queueMu.Unlock()
}

// SubmitExtend ставит вытягивание в очередь следующего тика.
// Для новой цепочки без id выдаётся свежий id. Канал получит результат после тика.
func (e *Engine) SubmitExtend(req Request) (Request, <-chan Result) {
	if req.ResumeOffset == 0 && req.ChainID == 0 {
		req.ChainID = e.NewChainID()
	} else if req.ChainID > 0 {
		e.reserveChainID(req.ChainID)
	}

	done := make(chan Result, 1)
	e.queueMu.Lock()
	e.extends = append(e.extends, extendTicket{req: req, done: done})
	e.queueMu.Unlock()
	return req, done
}

// SubmitRetract ставит втягивание в очередь следующего тика
func (e *Engine) SubmitRetract(req RetractRequest) <-chan []RetractResult {
	if req.Mode == "" {
		req.Mode = RetractWhole
	}
	done := make(chan []RetractResult, 1)
	e.queueMu.Lock()
	e.retracts = append(e.retracts, retractTicket{req: req, done: done})
	e.queueMu.Unlock()
	return done
}

// Snapshot перечисляет живые блоки для рендера и физики
func (e *Engine) Snapshot() []world.View {
	return e.world.Snapshot()
}

// IndexStats возвращает статистику индекса занятости
func (e *Engine) IndexStats() grid.Stats {
	return e.world.Index().Stats()
}

// CurrentTick возвращает номер последнего выполненного тика
func (e *Engine) CurrentTick() uint64 {
	return e.tick.Load()
}

func (e *Engine) drainQueues() ([]previewRequest, []extendTicket, []retractTicket) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	p, x, r := e.previews, e.extends, e.retracts
	e.previews, e.extends, e.retracts = nil, nil, nil
	return p, x, r
}

// phase выполняет фазу конвейера в дочернем span
func (e *Engine) phase(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := e.tracer.Start(ctx, "extend."+name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Tick выполняет конвейер: применение команд → регистрация → предпросмотр →
// исполнение → втягивание → истечение → применение команд → сверка индекса.
func (e *Engine) Tick(ctx context.Context, dt float64) (TickReport, error) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	start := time.Now()
	report := TickReport{Tick: e.tick.Inc()}

	ctx, span := e.tracer.Start(ctx, "extend.tick", trace.WithAttributes(attribute.Int64("tick", int64(report.Tick))))
	defer span.End()

	previews, extends, retracts := e.drainQueues()
	var changes []world.Change

	// 1. Статические блоки партией и применение отложенных команд
	for _, c := range e.spawner.Next() {
		e.world.SpawnStatic(c.Coord(), c.Type)
		report.StaticSpawned++
	}
	changes = append(changes, e.world.Playback()...)

	// 2. Регистрация в индексе
	err := e.phase(ctx, "registration", func(ctx context.Context) error {
		stats, err := e.registrar.Run(ctx)
		report.Registration = stats
		return err
	})
	if err != nil {
		e.failTickets(extends, retracts)
		return report, fmt.Errorf("tick %d registration: %w", report.Tick, err)
	}
	e.metrics.ObserveRegistration(report.Registration.Registered, report.Registration.Contended,
		report.Registration.Reconciled, report.Registration.Grown)

	// 3. Предпросмотр, только чтение
	for _, p := range previews {
		if res, ok := e.previewer.Preview(p.anchor, p.dir, p.length); ok {
			report.Previews = append(report.Previews, res)
		}
	}

	// 4. Исполнение: разные якоря параллельно, запросы одного якоря по порядку
	_ = e.phase(ctx, "execution", func(ctx context.Context) error {
		report.Extends = e.executeGrouped(ctx, extends)
		return nil
	})

	// 5. Втягивание
	_ = e.phase(ctx, "retraction", func(context.Context) error {
		for _, t := range retracts {
			results := e.retractor.Apply(t.req)
			report.Retracts = append(report.Retracts, results...)
			t.done <- results
		}
		return nil
	})

	// 6. Истечение времени жизни
	var lifetimeStats LifetimeStats
	_ = e.phase(ctx, "lifetime", func(context.Context) error {
		lifetimeStats = e.lifetime.Run(dt)
		report.Expired = len(lifetimeStats.Expired)
		return nil
	})

	// 7. Применение уничтожений и 8. сверка индекса
	changes = append(changes, e.world.Playback()...)
	report.Changes = len(changes)
	report.Reconciled = e.world.Reconcile()
	e.world.ClearClaims()

	if e.opts.VerifyEachTick {
		report.Violations = e.world.Verify()
	}

	if e.proxies != nil {
		e.proxies.Sync(e.world.Snapshot())
	}

	report.Duration = time.Since(start)
	e.recordMetrics(report)
	e.publish(ctx, report, changes)
	return report, nil
}

// executeGrouped исполняет запросы; группы по якорю идут параллельно в пределах Workers
func (e *Engine) executeGrouped(ctx context.Context, tickets []extendTicket) []Result {
	if len(tickets) == 0 {
		return nil
	}

	order := make([]block.Handle, 0)
	groups := make(map[block.Handle][]int)
	for i, t := range tickets {
		if _, ok := groups[t.req.Anchor]; !ok {
			order = append(order, t.req.Anchor)
		}
		groups[t.req.Anchor] = append(groups[t.req.Anchor], i)
	}

	results := make([]Result, len(tickets))
	g, _ := errgroup.WithContext(ctx)
	if e.opts.Workers > 0 {
		g.SetLimit(e.opts.Workers)
	}
	for _, anchor := range order {
		idxs := groups[anchor]
		g.Go(func() error {
			for _, i := range idxs {
				results[i] = e.executor.Execute(tickets[i].req)
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, t := range tickets {
		t.done <- results[i]
	}
	return results
}

// failTickets отвечает ожидающим пустыми результатами, если тик прерван
func (e *Engine) failTickets(extends []extendTicket, retracts []retractTicket) {
	for _, t := range extends {
		t.done <- Result{Request: t.req, Refused: RefuseInvalid}
	}
	for _, t := range retracts {
		t.done <- nil
	}
}

func (e *Engine) recordMetrics(report TickReport) {
	if e.metrics == nil {
		return
	}
	for _, r := range report.Extends {
		e.metrics.ObserveExtend(r.Created, r.Stopped, r.Refused != RefuseNone)
	}
	for _, r := range report.Retracts {
		if !r.Partial && r.Destroyed > 0 {
			e.metrics.IncChainsRetracted()
		}
	}
	e.metrics.AddExpired(report.Expired)
	e.metrics.AddReconciled(report.Reconciled)
	e.metrics.AddViolations(report.Violations)
	idx := e.world.Index()
	e.metrics.SetIndex(idx.Len(), idx.Capacity(), e.world.Len())
	e.metrics.ObserveTick(report.Duration.Seconds())
}

// publish отправляет события тика; ошибка шины не прерывает конвейер
func (e *Engine) publish(ctx context.Context, report TickReport, changes []world.Change) {
	if e.bus == nil {
		return
	}

	send := func(eventType string, correlation int, payload interface{}) {
		ev, err := eventbus.NewEnvelope(EventSource, eventType, payload)
		if err != nil {
			e.logger.Warn("событие %s не собрано: %v", eventType, err)
			return
		}
		if correlation > 0 {
			ev.CorrelationID = strconv.Itoa(correlation)
		}
		if err := e.bus.Publish(ctx, ev); err != nil {
			e.logger.Warn("событие %s не опубликовано: %v", eventType, err)
		}
	}

	for _, r := range report.Extends {
		if r.Created == 0 {
			continue
		}
		eventType := eventbus.TypeChainExtended
		if r.Request.ResumeOffset == 0 {
			eventType = eventbus.TypeChainCreated
		}
		send(eventType, r.Request.ChainID, eventbus.ChainPayload{
			ChainID:   r.Request.ChainID,
			Root:      r.Request.Anchor.String(),
			Direction: [3]int32{r.Request.Direction.X, r.Request.Direction.Y, r.Request.Direction.Z},
			From:      r.Request.ResumeOffset + 1,
			Count:     r.Created,
			Requested: r.Request.Length,
			Truncated: r.Truncated(),
		})
	}

	for _, r := range report.Retracts {
		if r.Destroyed == 0 {
			continue
		}
		send(eventbus.TypeChainRetracted, r.ChainID, eventbus.ChainPayload{
			ChainID:   r.ChainID,
			Root:      r.Root.String(),
			Count:     r.Destroyed,
			Partial:   r.Partial,
			Remaining: r.ActiveChains,
		})
	}

	for _, c := range changes {
		if c.Type != world.ChangeDestroyed {
			continue
		}
		payload := eventbus.BlockPayload{
			Handle:  c.Handle.String(),
			Cell:    [4]int32{c.Cell.X, c.Cell.Y, c.Cell.Z, c.Cell.Layer},
			Kind:    c.Kind.String(),
			ChainID: c.ChainID,
			Reason:  c.Reason.String(),
		}
		if c.Reason == world.ReasonExpired {
			send(eventbus.TypeBlockExpired, c.ChainID, payload)
		}
		send(eventbus.TypeBlockDestroyed, c.ChainID, payload)
	}
}

// Run крутит конвейер с частотой TickRate до отмены ctx.
// dt фактическое время между тиками.
func (e *Engine) Run(ctx context.Context) error {
	rate := e.opts.Extend.TickRate
	if rate <= 0 {
		rate = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if _, err := e.Tick(ctx, dt); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Error("тик завершился ошибкой: %v", err)
			}
		}
	}
}
