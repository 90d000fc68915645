package shard

import (
	"hash/crc32"
	"strings"
)

// ParsedContainerName is a container name broken into its three optional
// routing components: an "@affinity" prefix that pins the container to the
// same partition as every other container sharing that affinity key, the
// base container name the partition hash is computed over, and a trailing
// "/sub/partitioning" marker that redirects the id computation to the
// sub-partition modulo instead of the top-level one.
type ParsedContainerName struct {
	Affinity        string
	Base            string
	SubPartitioning bool
}

const subPartitioningSuffix = "/sub/partitioning"

// ParseContainerName splits a raw container name into its routing
// components. Matching is case-sensitive on the markers themselves; the
// base name is lowercased by PartitionID, not here, so callers that want
// the original casing (e.g. for display) still have it.
func ParseContainerName(raw string) ParsedContainerName {
	name := raw
	var affinity string
	if strings.HasPrefix(name, "@") {
		rest := name[1:]
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			affinity = rest[:idx]
			name = rest[idx+1:]
		} else {
			affinity = rest
			name = ""
		}
	}

	subPartitioning := false
	if strings.HasSuffix(name, subPartitioningSuffix) {
		subPartitioning = true
		name = strings.TrimSuffix(name, subPartitioningSuffix)
	}

	return ParsedContainerName{Affinity: affinity, Base: name, SubPartitioning: subPartitioning}
}

// PartitionHash computes the GridDB-style partition hash for key: the
// IEEE CRC-32 of the lowercased key, from the standard library's
// hash/crc32 (Open Question 1's resolved choice of hash function).
func PartitionHash(key string) uint32 {
	return crc32.ChecksumIEEE([]byte(strings.ToLower(key)))
}

// PartitionID resolves raw to a partition index. An "@affinity" prefix
// makes the hash (and therefore the partition) depend only on the affinity
// key, so every container sharing that affinity lands on the same
// partition regardless of its own base name. A "/sub/partitioning" suffix
// redirects the modulo from partitionCount to subPartitionCount, the
// documented "alternate modulo" for sub-partitioned containers.
func PartitionID(raw string, partitionCount, subPartitionCount int) (int, ParsedContainerName) {
	parsed := ParseContainerName(raw)

	hashKey := parsed.Base
	if parsed.Affinity != "" {
		hashKey = parsed.Affinity
	}

	modulo := partitionCount
	if parsed.SubPartitioning && subPartitionCount > 0 {
		modulo = subPartitionCount
	}
	if modulo <= 0 {
		return 0, parsed
	}

	id := int(PartitionHash(hashKey) % uint32(modulo))
	return id, parsed
}
