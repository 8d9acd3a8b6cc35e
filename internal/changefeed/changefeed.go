// Package changefeed delivers pending-shop document changes to a listener.
//
// Every source gives at-least-once delivery: an event is acknowledged only
// after the listener returns, so a crash mid-dispatch causes redelivery.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"shop-notifier/internal/common/errors"
	"shop-notifier/internal/common/metrics"
	"shop-notifier/internal/common/validation"
	"shop-notifier/internal/models"
)

// ChangeListener reacts to one document change. It must not block on
// anything but its own work and reports nothing back to the source.
type ChangeListener interface {
	OnChange(ctx context.Context, event models.ChangeEvent)
}

// ListenerFunc adapts a function to ChangeListener.
type ListenerFunc func(ctx context.Context, event models.ChangeEvent)

func (f ListenerFunc) OnChange(ctx context.Context, event models.ChangeEvent) {
	f(ctx, event)
}

// Source is a running subscription. Run blocks until ctx is done or the
// source fails irrecoverably.
type Source interface {
	Name() string
	Run(ctx context.Context, listener ChangeListener) error
}

func snapshotSchema() validation.Property {
	return validation.Property{
		Type: validation.Nullable("object"),
		Properties: map[string]validation.Property{
			"status":   {Type: validation.Nullable("string")},
			"email":    {Type: validation.Nullable("string")},
			"shopName": {Type: validation.Nullable("string")},
		},
	}
}

// EventSchema describes the JSON envelope shared by all sources. Snapshots
// may carry any other document fields.
func EventSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"shopId"},
		Properties: map[string]validation.Property{
			"shopId": {
				Type:        "string",
				Description: "Document id of the changed shop",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(1500),
			},
			"before": snapshotSchema(),
			"after":  snapshotSchema(),
		},
		AdditionalProperties: true,
	}
}

// Decode validates and parses a raw JSON event.
func Decode(source string, raw []byte) (models.ChangeEvent, error) {
	if !json.Valid(raw) {
		return models.ChangeEvent{}, errors.NewEventDecodeFailedError(source, fmt.Errorf("payload is not valid JSON"))
	}

	result, err := validation.ValidateJSON(raw, EventSchema())
	if err != nil {
		return models.ChangeEvent{}, errors.NewEventDecodeFailedError(source, err)
	}
	if !result.Valid {
		return models.ChangeEvent{}, errors.NewEventSchemaInvalidError(joinMessages(result))
	}

	ev, err := models.DecodeChangeEvent(raw)
	if err != nil {
		return models.ChangeEvent{}, errors.NewEventDecodeFailedError(source, err)
	}
	return ev, nil
}

// DecodeMap is Decode for payloads already unmarshalled into a map.
func DecodeMap(source string, vars map[string]interface{}) (models.ChangeEvent, error) {
	raw, err := json.Marshal(vars)
	if err != nil {
		return models.ChangeEvent{}, errors.NewEventDecodeFailedError(source, err)
	}
	return Decode(source, raw)
}

func joinMessages(result *validation.ValidationResult) string {
	return strings.Join(result.GetErrorMessages(), "; ")
}

// deliver hands ev to the listener, bounded by timeout when positive.
func deliver(ctx context.Context, listener ChangeListener, ev models.ChangeEvent, timeout time.Duration) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	listener.OnChange(ctx, ev)
}

func recordRejected(source string, err error) {
	metrics.ChangeEventsRejected.WithLabelValues(source, errors.CodeOf(err)).Inc()
}
