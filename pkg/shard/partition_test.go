package shard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseContainerNamePlain(t *testing.T) {
	p := ParseContainerName("accounts")
	require.Equal(t, "accounts", p.Base)
	require.Empty(t, p.Affinity)
	require.False(t, p.SubPartitioning)
}

func TestParseContainerNameAffinityPrefix(t *testing.T) {
	p := ParseContainerName("@tenant42/accounts")
	require.Equal(t, "tenant42", p.Affinity)
	require.Equal(t, "accounts", p.Base)
}

func TestParseContainerNameSubPartitioningSuffix(t *testing.T) {
	p := ParseContainerName("accounts/sub/partitioning")
	require.Equal(t, "accounts", p.Base)
	require.True(t, p.SubPartitioning)
}

func TestParseContainerNameAffinityAndSubPartitioning(t *testing.T) {
	p := ParseContainerName("@tenant42/accounts/sub/partitioning")
	require.Equal(t, "tenant42", p.Affinity)
	require.Equal(t, "accounts", p.Base)
	require.True(t, p.SubPartitioning)
}

func TestPartitionHashIsCaseInsensitive(t *testing.T) {
	require.Equal(t, PartitionHash("Accounts"), PartitionHash("accounts"))
	require.Equal(t, PartitionHash("ACCOUNTS"), PartitionHash("accounts"))
}

func TestPartitionIDIsDeterministicAndInRange(t *testing.T) {
	id, parsed := PartitionID("accounts", 8, 0)
	require.GreaterOrEqual(t, id, 0)
	require.Less(t, id, 8)
	require.Equal(t, "accounts", parsed.Base)

	id2, _ := PartitionID("accounts", 8, 0)
	require.Equal(t, id, id2)
}

func TestPartitionIDAffinityOverridesBaseName(t *testing.T) {
	idA, _ := PartitionID("@tenant42/accounts", 16, 0)
	idB, _ := PartitionID("@tenant42/orders", 16, 0)
	require.Equal(t, idA, idB, "same affinity key must land on the same partition regardless of container name")
}

func TestPartitionIDSubPartitioningUsesAlternateModulo(t *testing.T) {
	id, parsed := PartitionID("accounts/sub/partitioning", 8, 3)
	require.True(t, parsed.SubPartitioning)
	require.Less(t, id, 3)
}

func TestPartitionIDZeroModuloIsZero(t *testing.T) {
	id, _ := PartitionID("accounts", 0, 0)
	require.Equal(t, 0, id)
}
