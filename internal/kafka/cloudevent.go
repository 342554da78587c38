// Package kafka carries CloudEvents over Kafka topics.
package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// CloudEvent is the envelope every message on the bus is wrapped in.
type CloudEvent = cloudevents.Event

// NewCloudEvent wraps data in a structured-mode CloudEvent.
func NewCloudEvent(source, eventType string, data any) (CloudEvent, error) {
	ce := cloudevents.NewEvent()
	ce.SetID(uuid.New().String())
	ce.SetSource(source)
	ce.SetType(eventType)
	ce.SetTime(time.Now().UTC())
	if err := ce.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return ce, fmt.Errorf("failed to encode %s data: %w", eventType, err)
	}
	if err := ce.Validate(); err != nil {
		return ce, fmt.Errorf("invalid cloud event: %w", err)
	}
	return ce, nil
}

// ParseCloudEvent decodes a structured-mode CloudEvent.
func ParseCloudEvent(raw []byte) (CloudEvent, error) {
	ce := cloudevents.NewEvent()
	if err := json.Unmarshal(raw, &ce); err != nil {
		return ce, fmt.Errorf("failed to decode cloud event: %w", err)
	}
	return ce, nil
}
