package objclient

import (
	"github.com/marmos91/radosclient/pkg/crush"
	"github.com/marmos91/radosclient/pkg/raderr"
)

// resolve computes obj's placement group and ordered OSD list against
// m: the opaque crush.Place draw, then overrides applied in the fixed
// order §4.5 step 4 specifies — pg_upmap replaces wholesale, pg_temp
// replaces again, pg_upmap_items swaps individual pairs in place,
// pg_upmap_primaries moves the named OSD to index 0. The primary,
// list[0], must be a valid OSD id or resolution fails NoOSDs (§4.5
// step 5).
func resolve(m *OSDMap, obj ObjectId) (crush.PlacementGroupID, []int32, error) {
	pool, ok := m.Pools[obj.PoolID]
	if !ok {
		return crush.PlacementGroupID{}, nil, raderr.New(raderr.KindPlacement, component, "unknown pool").WithState("pool")
	}
	if pool.PGCount == 0 {
		return crush.PlacementGroupID{}, nil, raderr.New(raderr.KindPlacement, component, "pool has zero pg_count")
	}

	pg := obj.PlacementGroup(pool.PGCount, pool.HashPSPool())
	osds, err := placeAndOverride(m, pg, pool)
	return pg, osds, err
}

// resolvePG computes placement for pg directly, bypassing the
// object-hash-to-seed step — used by List, which already knows the
// seed it wants to visit rather than deriving one from an object name.
func resolvePG(m *OSDMap, poolID int64, seed uint32) (crush.PlacementGroupID, []int32, error) {
	pool, ok := m.Pools[poolID]
	if !ok {
		return crush.PlacementGroupID{}, nil, raderr.New(raderr.KindPlacement, component, "unknown pool").WithState("pool")
	}
	pg := crush.PlacementGroupID{PoolID: poolID, Seed: seed}
	osds, err := placeAndOverride(m, pg, pool)
	return pg, osds, err
}

// placeAndOverride runs the opaque CRUSH draw for pg and applies the
// four override tables in the fixed order §4.5 step 4 specifies.
func placeAndOverride(m *OSDMap, pg crush.PlacementGroupID, pool PoolInfo) ([]int32, error) {
	osds := crush.Place(pg, pool.RuleID, m.topology(), int(pool.Size))

	if remap, ok := m.PGUpmap[pg]; ok {
		osds = append([]int32(nil), remap...)
	}
	if remap, ok := m.PGTemp[pg]; ok {
		osds = append([]int32(nil), remap...)
	}
	if swaps, ok := m.PGUpmapItems[pg]; ok {
		osds = applyItemSwaps(osds, swaps)
	}
	if primary, ok := m.PGUpmapPrimaries[pg]; ok {
		osds = moveToFront(osds, primary)
	}

	if len(osds) == 0 || osds[0] < 0 {
		return nil, raderr.New(raderr.KindPlacement, component, "no OSDs available for placement group").WithState("NoOSDs")
	}
	return osds, nil
}

// applyItemSwaps replaces every occurrence of swap.From with swap.To,
// applied in list order so a chain of swaps composes the way repeated
// pg_upmap_items entries do.
func applyItemSwaps(osds []int32, swaps []pgItemSwap) []int32 {
	out := append([]int32(nil), osds...)
	for _, swap := range swaps {
		for i, id := range out {
			if id == swap.From {
				out[i] = swap.To
			}
		}
	}
	return out
}

// moveToFront relocates primary to index 0, preserving the relative
// order of the remaining entries, the pg_upmap_primaries effect.
func moveToFront(osds []int32, primary int32) []int32 {
	idx := -1
	for i, id := range osds {
		if id == primary {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return osds
	}
	out := make([]int32, 0, len(osds))
	out = append(out, primary)
	out = append(out, osds[:idx]...)
	out = append(out, osds[idx+1:]...)
	return out
}
