package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/gridextend/internal/eventbus"
	"github.com/annel0/gridextend/internal/extend"
	"github.com/annel0/gridextend/internal/grid"
	"github.com/annel0/gridextend/internal/logging"
	"github.com/annel0/gridextend/internal/middleware"
	"github.com/annel0/gridextend/internal/storage"
	"github.com/annel0/gridextend/internal/vec"
	"github.com/annel0/gridextend/internal/world/block"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Version версия REST API
const Version = "v0.1.0"

// DefaultPlayer игрок песочницы, чья позиция восстанавливается при старте
const DefaultPlayer = "local"

// RestServer представляет REST API движка вытягивания
type RestServer struct {
	router  *gin.Engine
	server  *http.Server
	engine  *extend.Engine
	bus     eventbus.EventBus
	players storage.PositionRepo
	port    string
	wait    time.Duration
	metrics *ServerMetrics
	logger  *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port        string               // адрес, например ":8088"
	Engine      *extend.Engine       // движок уровня
	Bus         eventbus.EventBus    // может быть nil
	Players     storage.PositionRepo // nil: хранилище в памяти
	Registry    *prometheus.Registry // регистр для HTTP-метрик и /metrics
	ServiceName string               // имя сервиса для otelgin
	WaitTimeout time.Duration        // ожидание результата тика
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) (*RestServer, error) {
	if config.Engine == nil {
		return nil, errors.New("rest server: engine is required")
	}
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.ServiceName == "" {
		config.ServiceName = "gridextend"
	}
	if config.Players == nil {
		config.Players = storage.NewMemoryPositionRepo()
	}
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = 2 * time.Second
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware(config.ServiceName))
	router.Use(middleware.NewRequestLogger(logging.GetServerLogger()).Handler())

	promMw, err := middleware.NewPrometheusMiddleware("rest_api", config.Registry)
	if err != nil {
		return nil, err
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Registry)

	rs := &RestServer{
		router:  router,
		engine:  config.Engine,
		bus:     config.Bus,
		players: config.Players,
		port:    config.Port,
		wait:    config.WaitTimeout,
		metrics: NewServerMetrics(),
		logger:  logging.GetServerLogger(),
	}
	rs.setupRoutes()
	rs.server = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return rs, nil
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	api := rs.router.Group("/api")
	{
		api.GET("/server", rs.handleServerInfo)
		api.GET("/blocks", rs.handleBlocks)
		api.GET("/index/stats", rs.handleIndexStats)
		api.GET("/chains/:id", rs.handleChain)
		api.GET("/events/stats", rs.handleEventStats)

		api.POST("/select", rs.handleSelect)
		api.POST("/preview", rs.handlePreview)
		api.POST("/extend", rs.handleExtend)
		api.POST("/retract", rs.handleRetract)

		api.GET("/players/:id/foot", rs.handleGetFoot)
		api.PUT("/players/:id/foot", rs.handleSetFoot)
		api.DELETE("/players/:id/foot", rs.handleClearFoot)
	}

	rs.router.GET("/health", rs.handleHealth)
}

// Handler возвращает http.Handler сервера
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// SelectRequest выбирает якорь; нулевой handle снимает выбор
type SelectRequest struct {
	Anchor block.Handle `json:"anchor"`
}

// PreviewRequest запрос спекулятивной длины
type PreviewRequest struct {
	Anchor    block.Handle `json:"anchor"`
	Direction [3]int32     `json:"direction"`
	Length    int          `json:"length"`
}

// ExtendRequest подтверждённое вытягивание
type ExtendRequest struct {
	Anchor          block.Handle `json:"anchor"`
	Direction       [3]int32     `json:"direction"`
	Length          int          `json:"length"`
	ResumeOffset    int          `json:"resume_offset"`
	ChainID         int          `json:"chain_id"`
	LifetimeSeconds float64      `json:"lifetime_seconds"`
}

func direction(d [3]int32) vec.Vec3 {
	return vec.Vec3{X: d[0], Y: d[1], Z: d[2]}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: msg})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
		"tick":   rs.engine.CurrentTick(),
	})
}

func (rs *RestServer) handleServerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация о сервере",
		Data: gin.H{
			"version":   Version,
			"name":      "Grid Extend Engine",
			"tick":      rs.engine.CurrentTick(),
			"blocks":    rs.engine.World().Len(),
			"resources": rs.metrics.Collect(),
		},
	})
}

func (rs *RestServer) handleBlocks(c *gin.Context) {
	views := rs.engine.Snapshot()

	if raw := c.Query("layer"); raw != "" {
		layer, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			badRequest(c, "Неверный слой")
			return
		}
		filtered := views[:0]
		for _, v := range views {
			if v.Cell.Layer == int32(layer) {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Блоки", Data: views})
}

func (rs *RestServer) handleIndexStats(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Индекс занятости", Data: rs.engine.IndexStats()})
}

func (rs *RestServer) handleChain(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, "Неверный id цепочки")
		return
	}
	info, ok := rs.engine.World().Chain(id)
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Цепочка не найдена"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Цепочка", Data: info})
}

func (rs *RestServer) handleEventStats(c *gin.Context) {
	if rs.bus == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: "Шина событий отключена"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Шина событий", Data: rs.bus.Metrics()})
}

func (rs *RestServer) handleSelect(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	if err := rs.engine.Select(req.Anchor); err != nil {
		c.JSON(http.StatusUnprocessableEntity, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Якорь выбран", Data: req.Anchor})
}

func (rs *RestServer) handlePreview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	res, ok := rs.engine.Preview(req.Anchor, direction(req.Direction), req.Length)
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, GenericResponse{
			Success: false,
			Message: "Предпросмотр недоступен: якорь не выбран или направление не осевое",
		})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Предпросмотр", Data: res})
}

func (rs *RestServer) handleExtend(c *gin.Context) {
	var req ExtendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}

	submitted, done := rs.engine.SubmitExtend(extend.Request{
		Anchor:          req.Anchor,
		Direction:       direction(req.Direction),
		Length:          req.Length,
		ResumeOffset:    req.ResumeOffset,
		ChainID:         req.ChainID,
		LifetimeSeconds: req.LifetimeSeconds,
	})

	ctx, cancel := context.WithTimeout(c.Request.Context(), rs.wait)
	defer cancel()
	select {
	case res := <-done:
		if res.Refused != extend.RefuseNone {
			c.JSON(http.StatusConflict, GenericResponse{Success: false, Message: string(res.Refused), Data: res})
			return
		}
		c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Цепочка вытянута", Data: res})
	case <-ctx.Done():
		// Запрос уже в очереди и будет исполнен в одном из следующих тиков
		c.JSON(http.StatusAccepted, GenericResponse{Success: true, Message: "Запрос поставлен в очередь", Data: submitted})
	}
}

func (rs *RestServer) handleRetract(c *gin.Context) {
	var req extend.RetractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	if req.Mode == extend.RetractAllOf && req.Root.IsNil() {
		badRequest(c, "Не указан корень")
		return
	}
	if req.Mode != extend.RetractAllOf && req.ChainID <= 0 {
		badRequest(c, "Не указан id цепочки")
		return
	}

	done := rs.engine.SubmitRetract(req)
	ctx, cancel := context.WithTimeout(c.Request.Context(), rs.wait)
	defer cancel()
	select {
	case results := <-done:
		c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Втягивание выполнено", Data: results})
	case <-ctx.Done():
		c.JSON(http.StatusAccepted, GenericResponse{Success: true, Message: "Запрос поставлен в очередь"})
	}
}

func (rs *RestServer) handleGetFoot(c *gin.Context) {
	pos, found, err := rs.players.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		rs.logger.Error("загрузка позиции %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка хранилища позиций"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Позиция не найдена"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Позиция игрока", Data: pos})
}

func (rs *RestServer) handleSetFoot(c *gin.Context) {
	var foot grid.Coord
	if err := c.ShouldBindJSON(&foot); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	if err := rs.players.Save(c.Request.Context(), c.Param("id"), foot); err != nil {
		rs.logger.Error("сохранение позиции %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка хранилища позиций"})
		return
	}
	rs.engine.SetPlayerFoot(foot)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Позиция игрока обновлена", Data: foot})
}

func (rs *RestServer) handleClearFoot(c *gin.Context) {
	err := rs.players.Delete(c.Request.Context(), c.Param("id"))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		rs.logger.Error("удаление позиции %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка хранилища позиций"})
		return
	}
	rs.engine.ClearPlayerFoot()
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Защита игрока снята"})
}

// RestorePlayer возвращает движку сохранённую позицию игрока
func (rs *RestServer) RestorePlayer(ctx context.Context, playerID string) (bool, error) {
	pos, found, err := rs.players.Load(ctx, playerID)
	if err != nil || !found {
		return false, err
	}
	rs.engine.SetPlayerFoot(pos.Foot)
	rs.logger.Info("🧍 Позиция игрока %s восстановлена: %s", playerID, pos.Foot)
	return true, nil
}

// Start запускает HTTP-сервер; блокирует до остановки
func (rs *RestServer) Start() error {
	rs.logger.Info("🌐 REST API слушает %s", rs.port)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop корректно останавливает сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}
