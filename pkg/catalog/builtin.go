package catalog

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// RegisterBuiltins publishes the small set of scalar types the engine ships
// with: bool, int32, int64, float64, and a variable-length String. Backends
// register their own native types and TAM overrides on top of these (spec
// §4.C, §4.L).
func RegisterBuiltins(r *Registry) error {
	for _, t := range []*Type{
		boolType(),
		int32Type(),
		int64Type(),
		float64Type(),
		stringType(),
	} {
		if _, err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func endianOrder(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func boolType() *Type {
	return &Type{
		Name: "bool", Size: 1, Align: 1,
		AM: AccessMethods{
			BinaryGet: func(_ Stack, _ BinaryOptions, source any, _ []byte, _, _ *int) ([]byte, error) {
				v, _ := source.(bool)
				if v {
					return []byte{1}, nil
				}
				return []byte{0}, nil
			},
			BinarySet: func(_ Stack, _ BinaryOptions, source []byte) (any, int, error) {
				if len(source) < 1 {
					return nil, 0, fmt.Errorf("catalog: bool binary set needs 1 byte")
				}
				return source[0] != 0, 1, nil
			},
			TextGet: func(value any, _ Formatter) (string, error) {
				v, _ := value.(bool)
				return strconv.FormatBool(v), nil
			},
			TextSet: func(text string, _ Formatter) (any, error) {
				return strconv.ParseBool(text)
			},
			MemCopy: func(value any, _ bool) (any, error) { return value, nil },
		},
		OM: OperatorMethods{
			Compare: func(lhs, rhs any) (int, error) {
				a, _ := lhs.(bool)
				b, _ := rhs.(bool)
				if a == b {
					return 0, nil
				}
				if !a && b {
					return -1, nil
				}
				return 1, nil
			},
			Construct: func() (any, error) { return false, nil },
		},
	}
}

func int32Type() *Type {
	return &Type{
		Name: "int32", Size: 4, Align: 4,
		AM: AccessMethods{
			BinaryGet: func(_ Stack, opts BinaryOptions, source any, _ []byte, _, _ *int) ([]byte, error) {
				v, _ := source.(int32)
				buf := make([]byte, 4)
				endianOrder(opts.TargetBigEndian).PutUint32(buf, uint32(v))
				return buf, nil
			},
			BinarySet: func(_ Stack, opts BinaryOptions, source []byte) (any, int, error) {
				if len(source) < 4 {
					return nil, 0, fmt.Errorf("catalog: int32 binary set needs 4 bytes")
				}
				return int32(endianOrder(opts.SourceBigEndian).Uint32(source)), 4, nil
			},
			TextGet: func(value any, _ Formatter) (string, error) {
				v, _ := value.(int32)
				return strconv.FormatInt(int64(v), 10), nil
			},
			TextSet: func(text string, _ Formatter) (any, error) {
				n, err := strconv.ParseInt(text, 10, 32)
				return int32(n), err
			},
			MemCopy: func(value any, _ bool) (any, error) { return value, nil },
		},
		OM: OperatorMethods{
			Compare: func(lhs, rhs any) (int, error) {
				a, _ := lhs.(int32)
				b, _ := rhs.(int32)
				switch {
				case a < b:
					return -1, nil
				case a > b:
					return 1, nil
				default:
					return 0, nil
				}
			},
			Construct: func() (any, error) { return int32(0), nil },
		},
	}
}

func int64Type() *Type {
	return &Type{
		Name: "int64", Size: 8, Align: 8,
		AM: AccessMethods{
			BinaryGet: func(_ Stack, opts BinaryOptions, source any, _ []byte, _, _ *int) ([]byte, error) {
				v, _ := source.(int64)
				buf := make([]byte, 8)
				endianOrder(opts.TargetBigEndian).PutUint64(buf, uint64(v))
				return buf, nil
			},
			BinarySet: func(_ Stack, opts BinaryOptions, source []byte) (any, int, error) {
				if len(source) < 8 {
					return nil, 0, fmt.Errorf("catalog: int64 binary set needs 8 bytes")
				}
				return int64(endianOrder(opts.SourceBigEndian).Uint64(source)), 8, nil
			},
			TextGet: func(value any, _ Formatter) (string, error) {
				v, _ := value.(int64)
				return strconv.FormatInt(v, 10), nil
			},
			TextSet: func(text string, _ Formatter) (any, error) {
				return strconv.ParseInt(text, 10, 64)
			},
			MemCopy: func(value any, _ bool) (any, error) { return value, nil },
		},
		OM: OperatorMethods{
			Compare: func(lhs, rhs any) (int, error) {
				a, _ := lhs.(int64)
				b, _ := rhs.(int64)
				switch {
				case a < b:
					return -1, nil
				case a > b:
					return 1, nil
				default:
					return 0, nil
				}
			},
			Construct: func() (any, error) { return int64(0), nil },
		},
	}
}

func float64Type() *Type {
	return &Type{
		Name: "float64", Size: 8, Align: 8,
		AM: AccessMethods{
			BinaryGet: func(_ Stack, opts BinaryOptions, source any, _ []byte, _, _ *int) ([]byte, error) {
				v, _ := source.(float64)
				buf := make([]byte, 8)
				endianOrder(opts.TargetBigEndian).PutUint64(buf, math.Float64bits(v))
				return buf, nil
			},
			BinarySet: func(_ Stack, opts BinaryOptions, source []byte) (any, int, error) {
				if len(source) < 8 {
					return nil, 0, fmt.Errorf("catalog: float64 binary set needs 8 bytes")
				}
				return math.Float64frombits(endianOrder(opts.SourceBigEndian).Uint64(source)), 8, nil
			},
			TextGet: func(value any, _ Formatter) (string, error) {
				v, _ := value.(float64)
				return strconv.FormatFloat(v, 'g', -1, 64), nil
			},
			TextSet: func(text string, _ Formatter) (any, error) {
				return strconv.ParseFloat(text, 64)
			},
			MemCopy: func(value any, _ bool) (any, error) { return value, nil },
		},
		OM: OperatorMethods{
			Compare: func(lhs, rhs any) (int, error) {
				a, _ := lhs.(float64)
				b, _ := rhs.(float64)
				switch {
				case a < b:
					return -1, nil
				case a > b:
					return 1, nil
				default:
					return 0, nil
				}
			},
			Construct: func() (any, error) { return float64(0), nil },
		},
	}
}

// stringType is the engine's sole built-in variable-length type — its
// payload is a byte slice copied by value (no out-of-line buffer id: that
// bookkeeping lives one level up, in pkg/value, which is what actually
// tracks "owning buffer id" for an out-of-line allocation).
func stringType() *Type {
	return &Type{
		Name: "string", Variable: true, Align: 1,
		AM: AccessMethods{
			BinaryGet: func(_ Stack, opts BinaryOptions, source any, _ []byte, length, cursor *int) ([]byte, error) {
				s, _ := source.(string)
				raw := []byte(s)
				plan, err := DecideBinaryAccess(opts, len(raw), length, cursor)
				if err != nil {
					return nil, err
				}
				return raw[plan.Start : plan.Start+plan.Count], nil
			},
			BinarySet: func(_ Stack, _ BinaryOptions, source []byte) (any, int, error) {
				return string(source), len(source), nil
			},
			TextGet: func(value any, f Formatter) (string, error) {
				s, _ := value.(string)
				if f != nil {
					return f.FormatText(s)
				}
				return s, nil
			},
			TextSet: func(text string, f Formatter) (any, error) {
				if f != nil {
					v, err := f.ParseText(text)
					if err != nil {
						return nil, err
					}
					s, _ := v.(string)
					return s, nil
				}
				return text, nil
			},
			MemCopy: func(value any, _ bool) (any, error) {
				s, _ := value.(string)
				return s, nil
			},
		},
		OM: OperatorMethods{
			Compare: func(lhs, rhs any) (int, error) {
				a, _ := lhs.(string)
				b, _ := rhs.(string)
				switch {
				case a < b:
					return -1, nil
				case a > b:
					return 1, nil
				default:
					return 0, nil
				}
			},
			Construct: func() (any, error) { return "", nil },
		},
	}
}
