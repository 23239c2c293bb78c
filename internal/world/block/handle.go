package block

import "fmt"

// Handle адресует запись блока в арене мира.
// Поколение увеличивается при каждом переиспользовании слота, поэтому
// устаревший Handle никогда не совпадёт с новым блоком в том же слоте.
type Handle struct {
	Index uint32 `json:"index" yaml:"index"`
	Gen   uint32 `json:"gen" yaml:"gen"`
}

// Nil нулевой Handle; поколения начинаются с 1
var Nil = Handle{}

// IsNil возвращает true для нулевого Handle
func (h Handle) IsNil() bool {
	return h.Gen == 0
}

func (h Handle) String() string {
	if h.IsNil() {
		return "block(nil)"
	}
	return fmt.Sprintf("block(%d:%d)", h.Index, h.Gen)
}
