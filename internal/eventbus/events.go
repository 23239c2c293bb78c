package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Типы событий движка вытягивания
const (
	TypeChainCreated   = "extend.chain_created"
	TypeChainExtended  = "extend.chain_extended"
	TypeChainRetracted = "extend.chain_retracted"
	TypeBlockExpired   = "extend.block_expired"
	TypeBlockDestroyed = "extend.block_destroyed"
)

// PayloadVersion версия схемы полезной нагрузки
const PayloadVersion = 1

// ChainPayload полезная нагрузка событий создания, продления и втягивания цепочки
type ChainPayload struct {
	ChainID   int      `json:"chain_id"`
	Root      string   `json:"root"`
	Direction [3]int32 `json:"direction"`
	From      int      `json:"from"` // первый индекс, затронутый вызовом
	Count     int      `json:"count"`
	Requested int      `json:"requested,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
	Partial   bool     `json:"partial,omitempty"`
	Remaining int      `json:"remaining,omitempty"` // активных цепочек у корня после втягивания
}

// BlockPayload полезная нагрузка событий уничтожения блока
type BlockPayload struct {
	Handle  string   `json:"handle"`
	Cell    [4]int32 `json:"cell"` // x, y, z, layer
	Kind    string   `json:"kind"`
	ChainID int      `json:"chain_id,omitempty"`
	Reason  string   `json:"reason"`
}

// NewEnvelope упаковывает полезную нагрузку в JSON-конверт с новым UUID
func NewEnvelope(source, eventType string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   PayloadVersion,
		Payload:   data,
	}, nil
}

// Decode разбирает полезную нагрузку конверта в out
func (e *Envelope) Decode(out interface{}) error {
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}
