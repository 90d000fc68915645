package planner

import "github.com/cuemby/shardbridge/pkg/shard"

// PlanDDL wraps a caller-supplied SQL statement (CREATE/ALTER/DROP TABLE,
// index management, and similar) in a single Discard ExecStep (spec
// §4.I). DDL targets a shard directly rather than through a table's
// beacon, since the statement may be creating the very table a beacon
// would otherwise resolve.
func PlanDDL(access *shard.ShardAccess, sqlText string, params []any) *Plan {
	return &Plan{
		Root: &ExecStep{
			Kind: StepDiscard,
			Binding: &Binding{
				Access: access,
				SQL:    sqlText,
				Params: params,
			},
		},
	}
}
