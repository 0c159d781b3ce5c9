package pub

import (
	"fmt"
	"maps"
	"math"
	"strconv"
)

// RouteKind identifies one of the four publish variants.
type RouteKind int

const (
	// RoutePlain leaves partition selection to the broker.
	RoutePlain RouteKind = iota
	// RoutePartitionKey routes by a key hashed on the broker.
	RoutePartitionKey
	// RoutePartitionID routes to an explicit partition.
	RoutePartitionID
	// RouteProperties attaches properties and has no routing effect.
	RouteProperties
)

func (k RouteKind) String() string {
	switch k {
	case RoutePartitionKey:
		return "partition_key"
	case RoutePartitionID:
		return "partition_id"
	case RouteProperties:
		return "properties"
	default:
		return "plain"
	}
}

// Route selects how a single event is published. The zero value is a plain route.
type Route struct {
	kind        RouteKind
	key         string
	partitionID int32
	properties  map[string]string
}

// Plain returns a route without partition affinity.
func Plain() Route {
	return Route{kind: RoutePlain}
}

// ByPartitionKey returns a route for the given partition key.
func ByPartitionKey(key string) Route {
	return Route{kind: RoutePartitionKey, key: key}
}

// ByPartitionID returns a route to an explicit partition.
func ByPartitionID(id int32) Route {
	return Route{kind: RoutePartitionID, partitionID: id}
}

// WithProperties returns a route attaching properties to the event.
func WithProperties(properties map[string]string) Route {
	return Route{kind: RouteProperties, properties: maps.Clone(properties)}
}

func (r Route) Kind() RouteKind {
	return r.kind
}

func (r Route) PartitionKey() string {
	return r.key
}

func (r Route) PartitionID() int32 {
	return r.partitionID
}

// Properties returns a copy of the route properties.
func (r Route) Properties() map[string]string {
	return maps.Clone(r.properties)
}

// Validate checks the routing parameters locally, before anything is sent.
func (r Route) Validate() error {
	switch r.kind {
	case RoutePlain, RouteProperties:
		return nil
	case RoutePartitionKey:
		if r.key == "" {
			return fmt.Errorf("%w: partition key must not be empty", ErrInvalidArgument)
		}
		return nil
	case RoutePartitionID:
		if r.partitionID < 0 {
			return fmt.Errorf("%w: partition id %d is negative", ErrInvalidArgument, r.partitionID)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown route kind %d", ErrInvalidArgument, r.kind)
	}
}

// BatchOptions returns the batch affinity implied by the route.
func (r Route) BatchOptions() BatchOptions {
	switch r.kind {
	case RoutePartitionKey:
		key := r.key
		return BatchOptions{PartitionKey: &key}
	case RoutePartitionID:
		id := r.partitionID
		return BatchOptions{PartitionID: &id}
	default:
		return BatchOptions{}
	}
}

func (r Route) String() string {
	switch r.kind {
	case RoutePartitionKey:
		return fmt.Sprintf("%s(%s)", r.kind, r.key)
	case RoutePartitionID:
		return fmt.Sprintf("%s(%d)", r.kind, r.partitionID)
	case RouteProperties:
		return fmt.Sprintf("%s(%d)", r.kind, len(r.properties))
	default:
		return r.kind.String()
	}
}

// Legacy integer codes accepted by RouteFromCode.
const (
	CodePlain        = 0
	CodePartitionKey = 1
	CodePartitionID  = 2
	CodeProperties   = 3
)

// RouteFromCode maps an integer publish code and its argument to a Route.
// Unknown codes fall back to a plain route and ignore arg.
func RouteFromCode(code int, arg any) (Route, error) {
	switch code {
	case CodePartitionKey:
		key, ok := arg.(string)
		if !ok {
			return Route{}, fmt.Errorf("%w: partition key must be a string, got %T", ErrInvalidArgument, arg)
		}
		r := ByPartitionKey(key)
		return r, r.Validate()
	case CodePartitionID:
		id, err := partitionIDArg(arg)
		if err != nil {
			return Route{}, err
		}
		r := ByPartitionID(id)
		return r, r.Validate()
	case CodeProperties:
		switch props := arg.(type) {
		case nil:
			return WithProperties(nil), nil
		case map[string]string:
			return WithProperties(props), nil
		default:
			return Route{}, fmt.Errorf("%w: properties must be map[string]string, got %T", ErrInvalidArgument, arg)
		}
	default:
		return Plain(), nil
	}
}

func partitionIDArg(arg any) (int32, error) {
	var n int64
	switch v := arg.(type) {
	case int:
		n = int64(v)
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint:
		return unsignedPartitionID(uint64(v))
	case uint8:
		n = int64(v)
	case uint16:
		n = int64(v)
	case uint32:
		n = int64(v)
	case uint64:
		return unsignedPartitionID(v)
	case float32:
		return floatPartitionID(float64(v))
	case float64:
		return floatPartitionID(v)
	case string:
		parsed, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: partition id %q is not numeric", ErrInvalidArgument, v)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("%w: partition id must be an integer, got %T", ErrInvalidArgument, arg)
	}

	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, fmt.Errorf("%w: partition id %d out of range", ErrInvalidArgument, n)
	}

	return int32(n), nil
}

func unsignedPartitionID(v uint64) (int32, error) {
	if v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: partition id %d out of range", ErrInvalidArgument, v)
	}

	return int32(v), nil
}

// floatPartitionID accepts whole numbers only, as produced by JSON decoding.
func floatPartitionID(v float64) (int32, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: partition id %v is not a whole number", ErrInvalidArgument, v)
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, fmt.Errorf("%w: partition id %v out of range", ErrInvalidArgument, v)
	}

	return int32(v), nil
}
