package pub

import (
	"fmt"
	"maps"

	"github.com/google/uuid"
)

// Event represents a single publishable event.
// Events are immutable once constructed; NewEvent copies everything it is given.
type Event struct {
	// ID is the broker message id, a random UUID
	ID string `json:"id"`
	// Payload is the opaque event body
	Payload []byte `json:"payload"`
	// Properties are application properties attached as message metadata
	Properties map[string]string `json:"properties,omitempty"`
}

// NewEvent creates an event with a fresh message id. A nil payload is rejected.
func NewEvent(payload []byte, properties map[string]string) (Event, error) {
	if payload == nil {
		return Event{}, fmt.Errorf("%w: payload must not be nil", ErrInvalidArgument)
	}

	e := Event{
		ID:      uuid.NewString(),
		Payload: append([]byte{}, payload...),
	}
	if len(properties) > 0 {
		e.Properties = maps.Clone(properties)
	}

	return e, nil
}

// Size returns the payload size in bytes.
func (e Event) Size() int {
	return len(e.Payload)
}
