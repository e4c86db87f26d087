package events

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Kafka headers set on every published event.
const (
	HeaderEventType     = "event_type"
	HeaderSchemaSubject = "schema_subject"
	HeaderAggregateID   = "aggregate_id"
)

// ErrMalformedFrame is returned by Unframe for values without a valid registry header.
var ErrMalformedFrame = errors.New("malformed schema registry frame")

const frameHeaderLen = 5

// Frame prefixes a JSON payload with the Schema Registry wire header: magic byte 0 followed
// by the big-endian schema id.
func Frame(schemaID int, payload []byte) []byte {
	frame := make([]byte, frameHeaderLen+len(payload))
	binary.BigEndian.PutUint32(frame[1:frameHeaderLen], uint32(schemaID))
	copy(frame[frameHeaderLen:], payload)
	return frame
}

// Unframe splits a framed value into its schema id and a copy of the payload.
func Unframe(value []byte) (int, []byte, error) {
	if len(value) < frameHeaderLen {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(value))
	}
	if value[0] != 0 {
		return 0, nil, fmt.Errorf("%w: magic byte %d", ErrMalformedFrame, value[0])
	}
	schemaID := int(binary.BigEndian.Uint32(value[1:frameHeaderLen]))
	return schemaID, append([]byte(nil), value[frameHeaderLen:]...), nil
}
