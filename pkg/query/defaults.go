package query

import "fmt"

// NewFieldNode builds a FIELD node, optionally table-qualified.
func NewFieldNode(table, name, alias string) *Node {
	n := NewNode(TagField, FieldPayload{Table: table, Name: name, Alias: alias})
	n.VT = VTable{
		Copy: func(n *Node) any { return n.Payload },
		EmitSQL: func(n *Node, ctx *FormatterContext) error {
			p := n.Payload.(FieldPayload)
			if p.Table != "" {
				ctx.WriteSQL(p.Table + "." + p.Name)
			} else {
				ctx.WriteSQL(p.Name)
			}
			return nil
		},
	}
	return n
}

// NewLiteralNode builds a LITERAL node bound as a parameter on emit.
func NewLiteralNode(value any) *Node {
	n := NewNode(TagLiteral, LiteralPayload{Value: value})
	n.VT = VTable{
		Copy: func(n *Node) any { return n.Payload },
		EmitSQL: func(n *Node, ctx *FormatterContext) error {
			ctx.BindParam(n.Payload.(LiteralPayload).Value)
			return nil
		},
	}
	return n
}

// NewFromNode builds a FROM node naming table, optionally aliased.
func NewFromNode(table, alias string) *Node {
	n := NewNode(TagFrom, FromPayload{Table: table, Alias: alias})
	n.VT = VTable{
		Copy: func(n *Node) any { return n.Payload },
		Check: func(n *Node) error {
			p := n.Payload.(FromPayload)
			if p.Table == "" {
				return fmt.Errorf("query: FROM node requires a table name")
			}
			return nil
		},
		EmitSQL: func(n *Node, ctx *FormatterContext) error {
			p := n.Payload.(FromPayload)
			ctx.WriteSQL(p.Table)
			if p.Alias != "" {
				ctx.WriteSQL(" AS " + p.Alias)
			}
			return nil
		},
	}
	return n
}

// NewOrderByNode builds an ORDER_BY node.
func NewOrderByNode(field string, desc bool) *Node {
	n := NewNode(TagOrderBy, OrderByPayload{Field: field, Desc: desc})
	n.VT = VTable{
		Copy: func(n *Node) any { return n.Payload },
		EmitSQL: func(n *Node, ctx *FormatterContext) error {
			p := n.Payload.(OrderByPayload)
			ctx.WriteSQL(p.Field)
			if p.Desc {
				ctx.WriteSQL(" DESC")
			}
			return nil
		},
	}
	return n
}

// NewQualCompareNode builds a comparison QUAL node; left and right are
// attached as its two children (typically a Field and a Literal).
func NewQualCompareNode(op QualOp, left, right *Node) *Node {
	n := NewNode(TagQual, QualPayload{Op: op})
	n.VT = qualVTable()
	n.AppendRightChild(left)
	n.AppendRightChild(right)
	return n
}

// NewQualBoolNode builds an AND/OR/NOT boolean QUAL node over operands.
func NewQualBoolNode(op QualOp, operands ...*Node) *Node {
	n := NewNode(TagQual, QualPayload{Op: op})
	n.VT = qualVTable()
	for _, o := range operands {
		n.AppendRightChild(o)
	}
	return n
}

func qualVTable() VTable {
	return VTable{
		Copy: func(n *Node) any { return n.Payload },
		Check: func(n *Node) error {
			p := n.Payload.(QualPayload)
			count := len(n.Children())
			switch p.Op {
			case QualNot:
				if count != 1 {
					return fmt.Errorf("query: NOT qual requires exactly one operand, got %d", count)
				}
			case QualAnd, QualOr:
				if count < 1 {
					return fmt.Errorf("query: %s qual requires at least one operand", p.Op)
				}
			default:
				if count != 2 {
					return fmt.Errorf("query: comparison qual %q requires exactly two operands, got %d", p.Op, count)
				}
			}
			return nil
		},
		EmitSQL: func(n *Node, ctx *FormatterContext) error {
			p := n.Payload.(QualPayload)
			children := n.Children()
			switch p.Op {
			case QualNot:
				ctx.WriteSQL("NOT (")
				if err := Emit(children[0], ctx); err != nil {
					return err
				}
				ctx.WriteSQL(")")
			case QualAnd, QualOr:
				ctx.WriteSQL("(")
				for i, c := range children {
					if i > 0 {
						ctx.WriteSQL(" " + string(p.Op) + " ")
					}
					if err := Emit(c, ctx); err != nil {
						return err
					}
				}
				ctx.WriteSQL(")")
			default:
				if err := Emit(children[0], ctx); err != nil {
					return err
				}
				ctx.WriteSQL(" " + string(p.Op) + " ")
				if err := Emit(children[1], ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// NewUpdateFieldNode builds an UPDATE_FIELD (SET assignment) node.
func NewUpdateFieldNode(field string, value any) *Node {
	n := NewNode(TagUpdateField, UpdateFieldPayload{Field: field, Value: value})
	n.VT = VTable{
		Copy: func(n *Node) any { return n.Payload },
		EmitSQL: func(n *Node, ctx *FormatterContext) error {
			p := n.Payload.(UpdateFieldPayload)
			ctx.WriteSQL(p.Field + " = ")
			ctx.BindParam(p.Value)
			return nil
		},
	}
	return n
}

// NewInsertIntoNode builds an INSERT_INTO node naming the target table,
// columns, and one or more value rows.
func NewInsertIntoNode(table string, columns []string, values [][]any) *Node {
	n := NewNode(TagInsertInto, InsertIntoPayload{Table: table, Columns: columns, Values: values})
	n.VT = VTable{
		Copy: func(n *Node) any { return n.Payload },
		Check: func(n *Node) error {
			p := n.Payload.(InsertIntoPayload)
			if p.Table == "" {
				return fmt.Errorf("query: INSERT_INTO node requires a table name")
			}
			for i, row := range p.Values {
				if len(row) != len(p.Columns) {
					return fmt.Errorf("query: row %d has %d values, expected %d columns", i, len(row), len(p.Columns))
				}
			}
			return nil
		},
		EmitSQL: func(n *Node, ctx *FormatterContext) error {
			p := n.Payload.(InsertIntoPayload)
			ctx.WriteSQL(p.Table + " (")
			for i, c := range p.Columns {
				if i > 0 {
					ctx.WriteSQL(", ")
				}
				ctx.WriteSQL(c)
			}
			ctx.WriteSQL(") VALUES ")
			for r, row := range p.Values {
				if r > 0 {
					ctx.WriteSQL(", ")
				}
				ctx.WriteSQL("(")
				for i, v := range row {
					if i > 0 {
						ctx.WriteSQL(", ")
					}
					ctx.BindParam(v)
				}
				ctx.WriteSQL(")")
			}
			return nil
		},
	}
	return n
}

// NewSelectNode builds a SELECT root node.
func NewSelectNode(distinct bool, limit, offset int) *Node {
	n := NewNode(TagSelect, SelectPayload{Distinct: distinct, Limit: limit, Offset: offset})
	n.VT = VTable{Copy: func(n *Node) any { return n.Payload }}
	return n
}

// NewInsertNode builds an INSERT root node.
func NewInsertNode(returning []string) *Node {
	n := NewNode(TagInsert, InsertPayload{Returning: returning})
	n.VT = VTable{Copy: func(n *Node) any { return n.Payload }}
	return n
}

// NewUpdateNode builds an UPDATE root node.
func NewUpdateNode(returning []string) *Node {
	n := NewNode(TagUpdate, UpdatePayload{Returning: returning})
	n.VT = VTable{Copy: func(n *Node) any { return n.Payload }}
	return n
}

// NewDeleteNode builds a DELETE root node.
func NewDeleteNode(returning []string) *Node {
	n := NewNode(TagDelete, DeletePayload{Returning: returning})
	n.VT = VTable{Copy: func(n *Node) any { return n.Payload }}
	return n
}

// NewJoinNode builds a JOIN node; on is attached as its single child
// (typically a Qual comparison tree).
func NewJoinNode(kind JoinKind, table, alias string, on *Node) *Node {
	n := NewNode(TagJoin, JoinPayload{Kind: kind, Table: table, Alias: alias})
	n.VT = VTable{
		Copy: func(n *Node) any { return n.Payload },
		EmitSQL: func(n *Node, ctx *FormatterContext) error {
			p := n.Payload.(JoinPayload)
			switch p.Kind {
			case JoinLeft:
				ctx.WriteSQL("LEFT JOIN ")
			case JoinRight:
				ctx.WriteSQL("RIGHT JOIN ")
			case JoinFull:
				ctx.WriteSQL("FULL JOIN ")
			default:
				ctx.WriteSQL("JOIN ")
			}
			ctx.WriteSQL(p.Table)
			if p.Alias != "" {
				ctx.WriteSQL(" AS " + p.Alias)
			}
			if n.FirstChild != nil {
				ctx.WriteSQL(" ON ")
				return Emit(n.FirstChild, ctx)
			}
			return nil
		},
	}
	if on != nil {
		n.AppendRightChild(on)
	}
	return n
}
