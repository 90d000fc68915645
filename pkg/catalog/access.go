package catalog

import "errors"

// BinaryOptions carries endianness and allocation authorization for a
// binary get/set call (spec §4.C).
type BinaryOptions struct {
	SourceBigEndian bool
	TargetBigEndian bool
	Malloc          bool
}

// ErrInvalidAccessOptions is returned when a caller's malloc/length/cursor
// combination does not match any row of the decision matrix in spec §4.C.
var ErrInvalidAccessOptions = errors.New("catalog: invalid malloc/length/cursor combination")

// BinaryPlan is the resolved outcome of DecideBinaryAccess: how many source
// bytes to read, starting where, and whether the caller must allocate a
// fresh buffer rather than copy into one it already owns.
type BinaryPlan struct {
	Start    int
	Count    int
	Allocate bool
}

// DecideBinaryAccess implements the malloc/length/cursor decision matrix
// from spec §4.C. length and cursor are optional (nil means "not supplied")
// and are mutated to reflect the outcome, mirroring the source's in/out
// pointer parameters.
func DecideBinaryAccess(opts BinaryOptions, sourceLen int, length *int, cursor *int) (BinaryPlan, error) {
	switch {
	case opts.Malloc && length == nil:
		// malloc, length null -> invalid, fail.
		return BinaryPlan{}, ErrInvalidAccessOptions

	case opts.Malloc && *length != 0 && cursor == nil:
		// malloc, length non-null non-zero, cursor null -> allocate up to
		// length; length updated to real size.
		n := *length
		if n > sourceLen {
			n = sourceLen
		}
		*length = n
		return BinaryPlan{Start: 0, Count: n, Allocate: true}, nil

	case opts.Malloc && *length == 0:
		// malloc, length non-null zero -> allocate full source size.
		*length = sourceLen
		return BinaryPlan{Start: 0, Count: sourceLen, Allocate: true}, nil

	case opts.Malloc:
		// malloc, length non-null non-zero, cursor supplied: the matrix
		// does not define this combination as valid.
		return BinaryPlan{}, ErrInvalidAccessOptions

	case !opts.Malloc && length != nil && *length != 0 && cursor != nil:
		// no malloc, length non-null non-zero, cursor non-null -> copy up
		// to length starting at cursor; update cursor and length.
		start := *cursor
		if start > sourceLen {
			start = sourceLen
		}
		n := *length
		if start+n > sourceLen {
			n = sourceLen - start
		}
		*cursor = start + n
		*length = n
		return BinaryPlan{Start: start, Count: n}, nil

	case !opts.Malloc && length != nil && *length == 0:
		// no malloc, length non-null zero -> return full length only, no
		// copy.
		*length = sourceLen
		return BinaryPlan{Start: 0, Count: 0}, nil

	case !opts.Malloc && length != nil && *length != 0 && cursor == nil:
		// no malloc, length non-null non-zero, cursor null -> invalid when
		// source exceeds length.
		if sourceLen > *length {
			return BinaryPlan{}, ErrInvalidAccessOptions
		}
		return BinaryPlan{Start: 0, Count: sourceLen}, nil

	default:
		return BinaryPlan{}, ErrInvalidAccessOptions
	}
}

// BinaryGetFunc serializes a Go-native value for this Type's level of the
// stack into target, honoring opts/length/cursor via DecideBinaryAccess.
// rest is the remainder of the stack (for container types that must
// recurse, e.g. Array delegating per-element).
type BinaryGetFunc func(rest Stack, opts BinaryOptions, source any, target []byte, length, cursor *int) ([]byte, error)

// BinarySetFunc deserializes bytes produced by the matching BinaryGetFunc
// back into a Go-native value.
type BinarySetFunc func(rest Stack, opts BinaryOptions, source []byte) (value any, consumed int, err error)

// Formatter converts between a Go-native value and text using a
// locale/pattern-specific rule (e.g. a date layout). LiteralFormatter is a
// sentinel instance requesting "wrap in double quotes" (spec §4.C).
type Formatter interface {
	FormatText(value any) (string, error)
	ParseText(text string) (any, error)
}

// FormatterFactory builds (and the Registry caches) a Formatter for a given
// pattern string.
type FormatterFactory func(pattern string) (Formatter, error)

type literalFormatter struct{}

func (literalFormatter) FormatText(value any) (string, error) {
	s, _ := value.(string)
	return `"` + s + `"`, nil
}

func (literalFormatter) ParseText(text string) (any, error) {
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		return text[1 : len(text)-1], nil
	}
	return text, nil
}

// LiteralFormatter is the sentinel formatter for SQL-escape double-quoting
// of a textual value, per spec §4.C.
var LiteralFormatter Formatter = literalFormatter{}

// TextGetFunc renders a value as text, optionally through a Formatter.
type TextGetFunc func(value any, f Formatter) (string, error)

// TextSetFunc parses text back into a value, optionally through a
// Formatter.
type TextSetFunc func(text string, f Formatter) (any, error)

// MemCopyFunc performs a fast, varlen-aware copy of a value. When
// transferBufferID is true, the destination keeps the source's owning
// buffer id (a move rather than a deep copy) — used when a tuple pointer's
// varlen payload is reassigned within the same heap buffer.
type MemCopyFunc func(value any, transferBufferID bool) (any, error)

// AccessMethods bundles a Type's binary/text/memcopy functions.
type AccessMethods struct {
	BinaryGet        BinaryGetFunc
	BinarySet        BinarySetFunc
	TextGet          TextGetFunc
	TextSet          TextSetFunc
	FormatterFactory FormatterFactory
	MemCopy          MemCopyFunc
}
