package block

import "sync"

// TypeID представляет идентификатор типа блока из раскладки уровня
type TypeID uint16

// Константы ID типов
const (
	DefaultTypeID  TypeID = iota // 0: обычный статический блок
	AnchorTypeID                 // 1: блок, от которого можно тянуть цепочки
	ExtendedTypeID               // 2: сегмент цепочки
)

// Type описывает тип блока
type Type struct {
	ID                  TypeID
	Name                string
	Extendable          bool // блок получает атрибут якоря при спавне
	MaxExtendLength     int  // длина по умолчанию для якоря
	AllowMultipleChains bool
}

var (
	registryMu sync.RWMutex
	registry   = make(map[TypeID]Type)
)

func init() {
	Register(Type{ID: DefaultTypeID, Name: "default"})
	Register(Type{ID: AnchorTypeID, Name: "anchor", Extendable: true, MaxExtendLength: 10, AllowMultipleChains: true})
	Register(Type{ID: ExtendedTypeID, Name: "extended"})
}

// Register добавляет тип блока в регистр
func Register(t Type) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t.ID] = t
}

// Get возвращает тип для указанного ID
func Get(id TypeID) (Type, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, exists := registry[id]
	return t, exists
}

// IsValidTypeID проверяет, является ли ID зарегистрированным типом
func IsValidTypeID(id TypeID) bool {
	_, exists := Get(id)
	return exists
}
