package world

import (
	"sync"

	"github.com/annel0/gridextend/internal/world/block"
)

type destroyCmd struct {
	handle block.Handle
	reason DestroyReason
}

// CommandBuffer откладывает структурные изменения до применения в начале или конце тика,
// чтобы обход живых блоков внутри фазы не видел спавнов и уничтожений
type CommandBuffer struct {
	arena *Arena

	mu       sync.Mutex
	spawns   []block.Handle
	destroys []destroyCmd
}

// NewCommandBuffer создаёт буфер команд для арены
func NewCommandBuffer(arena *Arena) *CommandBuffer {
	return &CommandBuffer{arena: arena}
}

// Spawn резервирует слот сразу и откладывает его применение
func (cb *CommandBuffer) Spawn(b Block) block.Handle {
	h := cb.arena.Reserve(b)

	cb.mu.Lock()
	cb.spawns = append(cb.spawns, h)
	cb.mu.Unlock()
	return h
}

// Destroy помечает блок и откладывает освобождение. Повторный вызов для того же блока — no-op.
func (cb *CommandBuffer) Destroy(h block.Handle, reason DestroyReason) bool {
	if !cb.arena.MarkDying(h) {
		return false
	}

	cb.mu.Lock()
	cb.destroys = append(cb.destroys, destroyCmd{handle: h, reason: reason})
	cb.mu.Unlock()
	return true
}

// Pending возвращает число отложенных команд
func (cb *CommandBuffer) Pending() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return len(cb.spawns) + len(cb.destroys)
}

// Playback применяет отложенные команды. Прокси коллизий освобождается до слота.
func (cb *CommandBuffer) Playback(proxies ProxyReleaser) []Change {
	cb.mu.Lock()
	spawns := cb.spawns
	destroys := cb.destroys
	cb.spawns = nil
	cb.destroys = nil
	cb.mu.Unlock()

	changes := make([]Change, 0, len(spawns)+len(destroys))
	for _, h := range spawns {
		// Блок, уничтоженный до применения, сразу уходит в destroys
		if !cb.arena.Commit(h) {
			continue
		}
		b, _, _ := cb.arena.Get(h)
		changes = append(changes, Change{
			Type:    ChangeSpawned,
			Handle:  h,
			Cell:    b.Cell(),
			Kind:    b.Kind,
			ChainID: b.ChainID(),
		})
	}

	for _, cmd := range destroys {
		if proxies != nil {
			proxies.Release(cmd.handle)
		}
		b, ok := cb.arena.Release(cmd.handle)
		if !ok {
			continue
		}
		changes = append(changes, Change{
			Type:    ChangeDestroyed,
			Handle:  cmd.handle,
			Cell:    b.Cell(),
			Kind:    b.Kind,
			ChainID: b.ChainID(),
			Reason:  cmd.reason,
		})
	}
	return changes
}
