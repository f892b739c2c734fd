package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strconv"

	"github.com/jmgilman/dexkeep/internal/identity"
	"github.com/jmgilman/dexkeep/internal/queue"
)

// MaxUpdatesPerRequest is the largest number of updates one batched request
// may carry. Larger requests are refused with 413.
const MaxUpdatesPerRequest = 5000

// Wire field names shared by every update.
const (
	FieldInstanceID = "instance_id"
	FieldLastUpdate = "last_update"
	FieldDeleted    = "deleted"
)

// ErrMalformedUpdate is returned when an update cannot be decoded into a delta.
var ErrMalformedUpdate = errors.New("malformed update")

// Update is one flat pokemonUpdates entry: the instance fields plus
// instance_id and last_update.
type Update map[string]any

// BatchRequest is the body of POST /batchedUpdates.
type BatchRequest struct {
	Location       map[string]any    `json:"location,omitempty"`
	PokemonUpdates []Update          `json:"pokemonUpdates"`
	TradeUpdates   []json.RawMessage `json:"tradeUpdates"`
}

// Rejected names one update the receiver refused permanently.
type Rejected struct {
	InstanceID string `json:"instance_id"`
	Reason     string `json:"reason"`
}

// BatchResponse is the body returned by POST /batchedUpdates.
type BatchResponse struct {
	TraceID  string     `json:"trace_id,omitempty"`
	Applied  int        `json:"applied"`
	Ignored  int        `json:"ignored"`
	Rejected []Rejected `json:"rejected,omitempty"`
}

// EncodeDelta flattens d into a wire update.
func EncodeDelta(d queue.Delta) Update {
	u := make(Update, len(d.Fields)+3)
	maps.Copy(u, d.Fields)
	u[FieldInstanceID] = d.InstanceID.String()
	u[FieldLastUpdate] = d.Timestamp
	if d.Deleted {
		u[FieldDeleted] = true
	}
	return u
}

// DecodeUpdate parses a wire update back into a delta. Only full instance
// ids are accepted.
func DecodeUpdate(u Update) (queue.Delta, error) {
	raw, ok := u[FieldInstanceID].(string)
	if !ok || raw == "" {
		return queue.Delta{}, fmt.Errorf("%w: missing %s", ErrMalformedUpdate, FieldInstanceID)
	}
	id, err := identity.ParseID(raw)
	if err != nil {
		return queue.Delta{}, fmt.Errorf("%w: %w", ErrMalformedUpdate, err)
	}

	ts, err := toInt64(u[FieldLastUpdate])
	if err != nil {
		return queue.Delta{}, fmt.Errorf("%w: %s: %w", ErrMalformedUpdate, FieldLastUpdate, err)
	}

	d := queue.Delta{InstanceID: id, Timestamp: ts}
	if deleted, _ := u[FieldDeleted].(bool); deleted {
		d.Deleted = true
		return d, nil
	}

	d.Fields = make(map[string]any, len(u))
	for k, v := range u {
		if k == FieldDeleted {
			continue
		}
		d.Fields[k] = v
	}
	return d, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, errors.New("missing")
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
