package physics

import (
	"sync"

	"github.com/annel0/gridextend/internal/logging"
	"github.com/annel0/gridextend/internal/vec"
	"github.com/annel0/gridextend/internal/world"
	"github.com/annel0/gridextend/internal/world/block"
)

// Proxy коллайдер движения, сопровождающий блок
type Proxy struct {
	Handle  block.Handle
	Box     BoxCollider
	Enabled bool
}

// SyncStats итог синхронизации прокси с перечислением блоков
type SyncStats struct {
	Spawned  int
	Enabled  int
	Disabled int
	Released int
}

// ProxyRegistry держит по прокси на блок и включает только ближние к фокусу.
// Прокси включается в радиусе radius и выключается дальше radius+hysteresis,
// чтобы блоки на границе не переключались каждый тик.
type ProxyRegistry struct {
	mu         sync.RWMutex
	proxies    map[block.Handle]*Proxy
	focus      vec.Vec3Float
	hasFocus   bool
	radius     float64
	hysteresis float64
	logger     *logging.Logger
}

// NewProxyRegistry создаёт реестр прокси
func NewProxyRegistry(radius, hysteresis float64) *ProxyRegistry {
	return &ProxyRegistry{
		proxies:    make(map[block.Handle]*Proxy),
		radius:     radius,
		hysteresis: hysteresis,
		logger:     logging.GetComponentLogger("physics"),
	}
}

// SetFocus задаёт точку, вокруг которой активны прокси (обычно позиция игрока)
func (r *ProxyRegistry) SetFocus(p vec.Vec3Float) {
	r.mu.Lock()
	r.focus = p
	r.hasFocus = true
	r.mu.Unlock()
}

// Release удаляет прокси уничтожаемого блока
func (r *ProxyRegistry) Release(h block.Handle) {
	r.mu.Lock()
	delete(r.proxies, h)
	r.mu.Unlock()
}

// Sync приводит реестр в соответствие с перечислением живых блоков
func (r *ProxyRegistry) Sync(views []world.View) SyncStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats SyncStats
	enableSq := r.radius * r.radius
	disable := r.radius + r.hysteresis
	disableSq := disable * disable

	seen := make(map[block.Handle]struct{}, len(views))
	for _, v := range views {
		seen[v.Handle] = struct{}{}
		center := v.Cell.Vec().ToFloat()

		distSq := 0.0
		if r.hasFocus {
			distSq = center.Sub(r.focus).LengthSq()
		}

		p, ok := r.proxies[v.Handle]
		if !ok {
			r.proxies[v.Handle] = &Proxy{Handle: v.Handle, Box: UnitBox(center), Enabled: distSq <= enableSq}
			stats.Spawned++
			continue
		}

		switch {
		case !p.Enabled && distSq <= enableSq:
			p.Enabled = true
			stats.Enabled++
		case p.Enabled && distSq > disableSq:
			p.Enabled = false
			stats.Disabled++
		}
	}

	// Блоки, пропавшие из перечисления без Release
	for h := range r.proxies {
		if _, ok := seen[h]; !ok {
			delete(r.proxies, h)
			stats.Released++
		}
	}

	if stats.Released > 0 {
		r.logger.Debug("освобождено %d осиротевших прокси", stats.Released)
	}
	return stats
}

// Get возвращает копию прокси блока
func (r *ProxyRegistry) Get(h block.Handle) (Proxy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.proxies[h]
	if !ok {
		return Proxy{}, false
	}
	return *p, true
}

// Len возвращает число прокси и число включённых
func (r *ProxyRegistry) Len() (total, enabled int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.proxies {
		if p.Enabled {
			enabled++
		}
	}
	return len(r.proxies), enabled
}

// CanMoveTo проверяет, что коллайдер не пересекает ни один включённый прокси
func (r *ProxyRegistry) CanMoveTo(box BoxCollider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.proxies {
		if p.Enabled && CheckBoxCollision(box, p.Box) {
			return false
		}
	}
	return true
}
