package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox/payloads"
)

// DecodeFunc turns a versioned envelope body into a typed payload.
type DecodeFunc func(payload json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

func (k decoderKey) String() string {
	return fmt.Sprintf("%s@v%d", k.eventType, k.version)
}

// DecoderRegistry maps (event type, envelope version) to a payload decoder.
// Consumers use it so a schema bump can be rolled out alongside the old
// version.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[decoderKey]DecodeFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]DecodeFunc)}
}

// NewDomainDecoderRegistry knows the v1 shape of every event the relay
// publishes.
func NewDomainDecoderRegistry() *DecoderRegistry {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventProductionUpdated, 1, JSONDecoder[payloads.ProductionUpdatedEvent]())
	reg.Register(enums.EventProcessUpdated, 1, JSONDecoder[payloads.ProcessUpdatedEvent]())
	reg.Register(enums.EventLowStock, 1, JSONDecoder[payloads.LowStockEvent]())
	reg.Register(enums.EventOrderStageChanged, 1, JSONDecoder[payloads.OrderStageChangedEvent]())
	return reg
}

// JSONDecoder unmarshals into a fresh *T.
func JSONDecoder[T any]() DecodeFunc {
	return func(payload json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(payload, out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// Register replaces any decoder already stored for the pair.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decode DecodeFunc) {
	r.mu.Lock()
	r.decoders[decoderKey{eventType, version}] = decode
	r.mu.Unlock()
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	key := decoderKey{eventType, version}
	r.mu.RLock()
	decode, ok := r.decoders[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no decoder registered for %s", key)
	}
	out, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}
