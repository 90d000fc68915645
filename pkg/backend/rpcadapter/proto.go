package rpcadapter

import "fmt"

// serviceName is the fully-qualified gRPC service name both sides of the
// connection register their handlers/calls against.
const serviceName = "rpcadapter.Backend"

// Value is the wire shape of one scalar parameter or result field. Plain
// interface{} doesn't round-trip cleanly through the json codec (a JSON
// number always decodes back as float64), so every value that crosses the
// wire is tagged with its kind the same way pkg/backend/griddb tags its
// binary row encoding.
type Value struct {
	Kind    string  `json:"kind"`
	Int64   int64   `json:"int64,omitempty"`
	Float64 float64 `json:"float64,omitempty"`
	Str     string  `json:"str,omitempty"`
	Bool    bool    `json:"bool,omitempty"`
}

const (
	kindNull    = "null"
	kindInt64   = "int64"
	kindFloat64 = "float64"
	kindString  = "string"
	kindBool    = "bool"
)

func encodeValue(v any) (Value, error) {
	if v == nil {
		return Value{Kind: kindNull}, nil
	}
	switch t := v.(type) {
	case int64:
		return Value{Kind: kindInt64, Int64: t}, nil
	case int:
		return Value{Kind: kindInt64, Int64: int64(t)}, nil
	case float64:
		return Value{Kind: kindFloat64, Float64: t}, nil
	case string:
		return Value{Kind: kindString, Str: t}, nil
	case bool:
		return Value{Kind: kindBool, Bool: t}, nil
	default:
		return Value{}, fmt.Errorf("rpcadapter: unsupported value type %T", v)
	}
}

func decodeValue(v Value) (value any, isNull bool, err error) {
	switch v.Kind {
	case kindNull, "":
		return nil, true, nil
	case kindInt64:
		return v.Int64, false, nil
	case kindFloat64:
		return v.Float64, false, nil
	case kindString:
		return v.Str, false, nil
	case kindBool:
		return v.Bool, false, nil
	default:
		return nil, false, fmt.Errorf("rpcadapter: unknown value kind %q", v.Kind)
	}
}

// ConnectRequest carries credential.Value's fields flattened into a
// message the json codec can marshal without importing pkg/credential
// into the wire contract itself.
type ConnectRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int32  `json:"port"`
	Socket   string `json:"socket"`
	Database string `json:"database"`
}

// ConnectResponse hands back the session id every subsequent call on this
// logical connection must present, since the gRPC service itself is
// stateless across calls.
type ConnectResponse struct {
	SessionID string `json:"session_id"`
}

// SessionRequest names the session a no-argument call (Disconnect, Reset,
// BeginTransaction, Commit, Rollback, Close) applies to.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// Empty is the response for calls that carry no result beyond success.
type Empty struct{}

// PingResponse mirrors health.Result's fields.
type PingResponse struct {
	Healthy       bool   `json:"healthy"`
	Message       string `json:"message"`
	DurationNanos int64  `json:"duration_nanos"`
}

// SavepointRequest names the savepoint for Savepoint/RollbackTo.
type SavepointRequest struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
}

// ExecuteRequest carries one planner.Binding's rendered SQL text and its
// already-ordered parameter values.
type ExecuteRequest struct {
	SessionID string  `json:"session_id"`
	SQL       string  `json:"sql"`
	Params    []Value `json:"params"`
}

// ExecuteResponse carries the backend's result set as rows of tagged
// values, in the same field order the request's projection expects.
type ExecuteResponse struct {
	Rows              [][]Value `json:"rows"`
	QueryDurationNanos int64    `json:"query_duration_nanos"`
	FormationDurationNanos int64 `json:"formation_duration_nanos"`
}
