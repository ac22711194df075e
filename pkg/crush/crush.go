// Package crush computes a placement group's ordered storage-node list
// from cluster topology. The algorithm itself is treated as an opaque
// black box by every caller: ObjectClient feeds it (pg, rule,
// osd_weights, replica_count, hashpspool) and consumes an ordered OSD
// id list, the same contract a reference CRUSH implementation
// exposes. What matters to the caller is that Place is a pure,
// deterministic function of its inputs — the same pg and map state
// always produce the same ordering — not the particular weighting
// strategy inside it.
package crush

import (
	"encoding/binary"
	"hash/crc32"
	"sort"
)

// RuleID selects which placement rule (replicated vs. erasure-coded,
// and which failure domain) governs a pool's PGs.
type RuleID uint32

// OSDWeight is a CRUSH weight in the reference 0x10000 = 1.0 fixed
// point convention. A weight of zero excludes the OSD from placement
// entirely (out or destroyed).
type OSDWeight uint32

const weightUnit = 0x10000

// PlacementGroupID identifies one placement group: the pool it belongs
// to and its seed within that pool's PG space (pool_id, hash mod
// pg_count — §4.5). Callers derive Seed upstream from the object id's
// hash; Place treats the pair as an opaque input to its scoring.
type PlacementGroupID struct {
	PoolID int64
	Seed   uint32
}

// Topology is the subset of OSDMap state the placement function
// consumes: every OSD's weight, keyed by id. Down/out OSDs are
// expected to carry weight 0 rather than being absent from the map,
// matching how the reference OSDMap represents them.
type Topology struct {
	Weights map[int32]OSDWeight
}

// Place deterministically selects replicaCount distinct OSD ids for
// pg under rule, drawing only from OSDs with nonzero weight in topo.
// hashpspool only affects how the caller derived pg.Seed upstream; it
// has no further effect here.
//
// The selection itself uses a weighted straw-style draw: each
// candidate OSD gets a pseudo-random score derived from (pg, rule,
// osd id) via CRC32C, scaled by its weight, and the replicaCount
// highest-scoring OSDs are returned ordered by score descending. This
// reproduces CRUSH's key property — deterministic, weight-proportional,
// stable under small topology changes — without reproducing its
// bucket-hierarchy internals, which no caller in this module inspects.
func Place(pg PlacementGroupID, rule RuleID, topo Topology, replicaCount int) []int32 {
	if replicaCount <= 0 || len(topo.Weights) == 0 {
		return nil
	}

	type candidate struct {
		osd   int32
		score uint64
	}
	candidates := make([]candidate, 0, len(topo.Weights))
	for osd, w := range topo.Weights {
		if w == 0 {
			continue
		}
		candidates = append(candidates, candidate{osd: osd, score: straw(pg, rule, osd, w)})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].osd < candidates[j].osd
	})

	if replicaCount > len(candidates) {
		replicaCount = len(candidates)
	}
	out := make([]int32, replicaCount)
	for i := 0; i < replicaCount; i++ {
		out[i] = candidates[i].osd
	}
	return out
}

// straw scores one OSD for one PG: a CRC32C digest of (pool, seed,
// rule, osd) mixed multiplicatively with the OSD's weight, so heavier
// OSDs draw higher scores more often without ever ignoring lighter
// ones (weight zero already excluded by the caller).
func straw(pg PlacementGroupID, rule RuleID, osd int32, w OSDWeight) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(pg.PoolID)<<32|uint64(pg.Seed))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(rule))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(osd))
	digest := crc32.Checksum(buf[:], crc32.MakeTable(crc32.Castagnoli))
	return uint64(digest) * uint64(w)
}
