package planner

import (
	"fmt"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/query"
)

// ProjectedField is one column of a Query Result Projection: which table
// (by its position among the query's joined result tables) and field a
// result column materializes into, plus its access-method stack resolved
// once here so the executor never re-walks a type stack per row.
type ProjectedField struct {
	TableIndex int
	Table      *catalog.TupleDef
	Field      *catalog.HeapField
	AMStack    []*catalog.AccessMethods
}

// Projection is the ordered list of result columns a Fetch step's driver
// materializes each row into, spanning every joined result table.
type Projection struct {
	Tables []*catalog.TupleDef
	Fields []ProjectedField
}

// amStack collects a field's access methods innermost-last, the same
// outermost-first orientation catalog.Stack already uses, so a backend
// walks it exactly like it walks the type stack itself.
func amStack(s catalog.Stack) []*catalog.AccessMethods {
	out := make([]*catalog.AccessMethods, len(s))
	for i, t := range s {
		am := t.AM
		out[i] = &am
	}
	return out
}

// BuildProjection resolves the SELECT's projected Field nodes against the
// joined result tables' TDVs. tables must be supplied in FROM/JOIN order;
// a field's table-qualification (or, if absent, the single table in an
// unqualified single-table query) picks its TableIndex.
func BuildProjection(tables []*catalog.TupleDef, fields []*query.Node) (*Projection, error) {
	byName := make(map[string]int, len(tables))
	for i, td := range tables {
		byName[td.Name] = i
	}

	proj := &Projection{Tables: tables}
	for _, fn := range fields {
		fp, ok := fn.Payload.(query.FieldPayload)
		if !ok {
			return nil, fmt.Errorf("planner: projection field node has unexpected payload %T", fn.Payload)
		}

		tableIdx := 0
		if fp.Table != "" {
			idx, ok := byName[fp.Table]
			if !ok {
				return nil, fmt.Errorf("planner: projection references unknown table %q", fp.Table)
			}
			tableIdx = idx
		} else if len(tables) != 1 {
			return nil, fmt.Errorf("planner: projection field %q is ambiguous across %d joined tables", fp.Name, len(tables))
		}

		td := tables[tableIdx]
		field, ok := td.Field(fp.Name)
		if !ok {
			return nil, fmt.Errorf("planner: table %q has no field %q", td.Name, fp.Name)
		}

		proj.Fields = append(proj.Fields, ProjectedField{
			TableIndex: tableIdx,
			Table:      td,
			Field:      field,
			AMStack:    amStack(field.Stack),
		})
	}
	return proj, nil
}
