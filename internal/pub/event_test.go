package pub

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestNewEvent(t *testing.T) {
	payload := []byte("hello")
	props := map[string]string{"layer": "api"}

	e, err := NewEvent(payload, props)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if _, err := uuid.Parse(e.ID); err != nil {
		t.Errorf("ID %q is not a uuid: %v", e.ID, err)
	}

	payload[0] = 'j'
	props["layer"] = "db"
	if string(e.Payload) != "hello" || e.Properties["layer"] != "api" {
		t.Errorf("event shares caller memory: %q %v", e.Payload, e.Properties)
	}
}

func TestNewEvent_EmptyPayloadIsLegal(t *testing.T) {
	e, err := NewEvent([]byte{}, nil)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if e.Size() != 0 || e.Properties != nil {
		t.Errorf("unexpected event %+v", e)
	}
}

func TestNewEvent_NilPayload(t *testing.T) {
	if _, err := NewEvent(nil, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("NewEvent(nil) = %v, want ErrInvalidArgument", err)
	}
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		e, _ := NewEvent([]byte("x"), nil)
		if seen[e.ID] {
			t.Fatalf("duplicate id %s", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestTransportError(t *testing.T) {
	cause := errors.New("link detached")

	err := NewTransportError("send", cause)
	if !errors.Is(err, ErrTransport) || !errors.Is(err, cause) {
		t.Fatalf("TransportError does not match ErrTransport and cause: %v", err)
	}

	wrapped := fmt.Errorf("failed to publish: %w", err)
	var te *TransportError
	if !errors.As(wrapped, &te) {
		t.Fatalf("errors.As failed for %v", wrapped)
	}
	if te.Op != "send" {
		t.Errorf("Op = %q, want send", te.Op)
	}

	if again := NewTransportError("retry", err); again != err {
		t.Errorf("NewTransportError re-wrapped: %v", again)
	}
	if NewTransportError("send", nil) != nil {
		t.Error("NewTransportError(nil) != nil")
	}
	if errors.Is(err, ErrInvalidArgument) {
		t.Error("TransportError matches ErrInvalidArgument")
	}
}

func TestReceiptKey(t *testing.T) {
	if got := ReceiptKey("orders", "abc"); got != "receipt::orders::abc" {
		t.Errorf("ReceiptKey = %q", got)
	}
}
