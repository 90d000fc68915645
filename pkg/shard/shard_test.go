package shard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroupByDriverGroups(t *testing.T) {
	s1 := &Shard{ID: NewID(), Driver: "griddb"}
	s2 := &Shard{ID: NewID(), Driver: "griddb"}
	s3 := &Shard{ID: NewID(), Driver: "postgres"}

	groups := GroupByDriver([]*Shard{s1, s2, s3})
	require.Len(t, groups, 2)
	require.ElementsMatch(t, []*Shard{s1, s2}, groups["griddb"])
	require.ElementsMatch(t, []*Shard{s3}, groups["postgres"])
}

func TestGroupByDriverEmpty(t *testing.T) {
	require.Empty(t, GroupByDriver(nil))
}

func TestNewIDProducesDistinctValues(t *testing.T) {
	require.NotEqual(t, NewID(), NewID())
}
