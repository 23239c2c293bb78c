package block

// Kind различает происхождение блока
type Kind uint8

const (
	// KindStatic статический блок из раскладки уровня
	KindStatic Kind = iota
	// KindDynamic блок, созданный игроком вне цепочек
	KindDynamic
	// KindExtended сегмент цепочки вытягивания
	KindExtended
)

// String возвращает строковое представление вида блока
func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindDynamic:
		return "dynamic"
	case KindExtended:
		return "extended"
	default:
		return "unknown"
	}
}
