package query

import "fmt"

// PlaceholderStyle selects how a FormatterContext renders a bound parameter
// reference in emitted SQL text.
type PlaceholderStyle int

const (
	// PlaceholderQuestion renders every parameter as "?".
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar renders parameters as "$1", "$2", ... (Postgres style).
	PlaceholderDollar
	// PlaceholderNamed renders parameters as ":p1", ":p2", ...
	PlaceholderNamed
)

// EmitOverride lets a backend-specific formatter override the default
// EmitSQL behavior for one tag without subclassing the node tree — e.g. a
// backend whose dialect renders LIMIT/OFFSET differently registers an
// override for TagSelect.
type EmitOverride func(n *Node, ctx *FormatterContext) error

// FormatterContext accumulates SQL text and bound parameters across one or
// more EmitSQL calls against a target backend (spec §4.G: "a pluggable
// formatter context that holds target backend, placeholder style, parameter
// accumulator, and an override function table for backend-specific
// quirks").
type FormatterContext struct {
	TargetBackend string
	Style         PlaceholderStyle
	SQL           []byte
	Params        []any
	Overrides     map[Tag]EmitOverride
}

// NewFormatterContext creates an empty context for target, rendering
// placeholders per style.
func NewFormatterContext(target string, style PlaceholderStyle) *FormatterContext {
	return &FormatterContext{TargetBackend: target, Style: style, Overrides: make(map[Tag]EmitOverride)}
}

// WriteSQL appends literal text to the accumulated fragment.
func (c *FormatterContext) WriteSQL(s string) {
	c.SQL = append(c.SQL, s...)
}

// BindParam appends v to the parameter accumulator and writes the
// placeholder text for its position.
func (c *FormatterContext) BindParam(v any) {
	c.Params = append(c.Params, v)
	c.WriteSQL(c.placeholderText(len(c.Params)))
}

func (c *FormatterContext) placeholderText(ordinal int) string {
	switch c.Style {
	case PlaceholderDollar:
		return fmt.Sprintf("$%d", ordinal)
	case PlaceholderNamed:
		return fmt.Sprintf(":p%d", ordinal)
	default:
		return "?"
	}
}

// String returns the accumulated SQL fragment.
func (c *FormatterContext) String() string {
	return string(c.SQL)
}

// Emit renders n as a SQL fragment into ctx, preferring a registered
// override for n.Tag over n.VT.EmitSQL (spec §4.G's override function
// table). It does not recurse into children — callers (the default
// EmitSQL implementations, or a planner's code generator) decide when to
// descend, per spec §4.G ("not recursively by default; callers decide").
func Emit(n *Node, ctx *FormatterContext) error {
	if n == nil {
		return nil
	}
	if override, ok := ctx.Overrides[n.Tag]; ok {
		return override(n, ctx)
	}
	if n.VT.EmitSQL == nil {
		return fmt.Errorf("query: node tag %s has no emit-sql implementation", n.Tag)
	}
	return n.VT.EmitSQL(n, ctx)
}
