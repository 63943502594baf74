// Package invalidation broadcasts cache invalidation events between service
// instances and applies the ones it receives to the local product cache.
//
// Delivery is best effort. A lost message leaves a stale entry that expires
// with the cache TTL, so the bus narrows staleness but never guarantees it.
package invalidation

import (
	"errors"
	"fmt"
	"strings"
)

// EventType names the mutation that made cached data stale.
type EventType string

const (
	ProductCreated EventType = "PRODUCT_CREATED"
	ProductUpdated EventType = "PRODUCT_UPDATED"
	ProductDeleted EventType = "PRODUCT_DELETED"
)

const separator = ":"

var (
	// ErrMalformedMessage is returned for payloads that are not exactly
	// "<EVENT_TYPE>:<entityId>".
	ErrMalformedMessage = errors.New("malformed invalidation message")
	// ErrUnknownEventType is returned for well formed payloads naming an
	// event type this instance does not handle.
	ErrUnknownEventType = errors.New("unknown invalidation event type")
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case ProductCreated, ProductUpdated, ProductDeleted:
		return true
	}
	return false
}

// Event is a single invalidation notice.
type Event struct {
	Type     EventType
	EntityID string
}

func Created(id string) Event { return Event{Type: ProductCreated, EntityID: id} }
func Updated(id string) Event { return Event{Type: ProductUpdated, EntityID: id} }
func Deleted(id string) Event { return Event{Type: ProductDeleted, EntityID: id} }

// Format encodes e for the wire. Entity ids may not contain the separator.
func Format(e Event) (string, error) {
	if !e.Type.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
	if e.EntityID == "" {
		return "", fmt.Errorf("%w: empty entity id", ErrMalformedMessage)
	}
	if strings.Contains(e.EntityID, separator) {
		return "", fmt.Errorf("%w: entity id %q contains %q", ErrMalformedMessage, e.EntityID, separator)
	}
	return string(e.Type) + separator + e.EntityID, nil
}

// Parse decodes a wire payload.
func Parse(payload string) (Event, error) {
	parts := strings.Split(payload, separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Event{}, fmt.Errorf("%w: %q", ErrMalformedMessage, payload)
	}
	e := Event{Type: EventType(parts[0]), EntityID: parts[1]}
	if !e.Type.Valid() {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEventType, parts[0])
	}
	return e, nil
}
