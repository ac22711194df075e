package objclient

import (
	"github.com/google/uuid"

	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/crush"
	"github.com/marmos91/radosclient/pkg/raderr"
)

// PoolType distinguishes a pool's redundancy scheme.
type PoolType uint8

const (
	PoolTypeReplicated PoolType = 1
	PoolTypeErasureCoded PoolType = 3
)

// PoolFlags carries per-pool behavior bits; only the one bit this
// client interprets is named (§3 PoolInfo, §4.5 step 2).
type PoolFlags uint32

const PoolFlagHashPSPool PoolFlags = 1 << 0

// PoolInfo describes one pool (§3).
type PoolInfo struct {
	ID      int64
	Name    string
	Type    PoolType
	Size    uint32
	MinSize uint32
	PGCount uint32
	RuleID  crush.RuleID
	Flags   PoolFlags
}

// HashPSPool reports whether pg seeds for this pool must be mixed
// with the pool id (§4.5 step 2).
func (p PoolInfo) HashPSPool() bool { return p.Flags&PoolFlagHashPSPool != 0 }

// OSDInfo describes one storage node's placement-relevant state: its
// weight, whether it is currently up, and how to reach it.
type OSDInfo struct {
	ID     int32
	Up     bool
	Weight crush.OSDWeight
	Addrs  codec.AddrVec
}

// pgItemSwap is one (from, to) OSD substitution within pg_upmap_items.
type pgItemSwap struct {
	From, To int32
}

// OSDMap is the object client's view of cluster topology: pools, OSDs,
// and the four placement override tables applied in order during
// resolution (§3 OSDMap, §4.5 step 4).
type OSDMap struct {
	Epoch uint32
	FSID  uuid.UUID

	Pools map[int64]PoolInfo
	OSDs  map[int32]OSDInfo

	PGUpmap          map[crush.PlacementGroupID][]int32
	PGTemp           map[crush.PlacementGroupID][]int32
	PGUpmapItems     map[crush.PlacementGroupID][]pgItemSwap
	PGUpmapPrimaries map[crush.PlacementGroupID]int32
}

// NewOSDMap returns an empty map at epoch 0, the zero state ObjectClient
// starts from before its first MOSDMap arrives.
func NewOSDMap() *OSDMap {
	return &OSDMap{
		Pools:            make(map[int64]PoolInfo),
		OSDs:             make(map[int32]OSDInfo),
		PGUpmap:          make(map[crush.PlacementGroupID][]int32),
		PGTemp:           make(map[crush.PlacementGroupID][]int32),
		PGUpmapItems:     make(map[crush.PlacementGroupID][]pgItemSwap),
		PGUpmapPrimaries: make(map[crush.PlacementGroupID]int32),
	}
}

// clone returns a shallow copy of m with fresh top-level maps, the
// copy-on-write shape incremental application writes into so readers
// holding the old *OSDMap under a read lock are never mutated from
// under them.
func (m *OSDMap) clone() *OSDMap {
	out := &OSDMap{
		Epoch: m.Epoch,
		FSID:  m.FSID,

		Pools:            make(map[int64]PoolInfo, len(m.Pools)),
		OSDs:             make(map[int32]OSDInfo, len(m.OSDs)),
		PGUpmap:          make(map[crush.PlacementGroupID][]int32, len(m.PGUpmap)),
		PGTemp:           make(map[crush.PlacementGroupID][]int32, len(m.PGTemp)),
		PGUpmapItems:     make(map[crush.PlacementGroupID][]pgItemSwap, len(m.PGUpmapItems)),
		PGUpmapPrimaries: make(map[crush.PlacementGroupID]int32, len(m.PGUpmapPrimaries)),
	}
	for k, v := range m.Pools {
		out.Pools[k] = v
	}
	for k, v := range m.OSDs {
		out.OSDs[k] = v
	}
	for k, v := range m.PGUpmap {
		out.PGUpmap[k] = v
	}
	for k, v := range m.PGTemp {
		out.PGTemp[k] = v
	}
	for k, v := range m.PGUpmapItems {
		out.PGUpmapItems[k] = v
	}
	for k, v := range m.PGUpmapPrimaries {
		out.PGUpmapPrimaries[k] = v
	}
	return out
}

// topology projects the OSDMap's per-OSD weights into the shape
// pkg/crush.Place consumes, excluding OSDs currently down (weight 0
// already excludes them from CRUSH's own perspective, so marking a
// down OSD's effective weight 0 here is sufficient).
func (m *OSDMap) topology() crush.Topology {
	weights := make(map[int32]crush.OSDWeight, len(m.OSDs))
	for id, osd := range m.OSDs {
		if !osd.Up {
			weights[id] = 0
			continue
		}
		weights[id] = osd.Weight
	}
	return crush.Topology{Weights: weights}
}

// DecodeFullOSDMap reads a complete OSDMap snapshot (§3, the "maps"
// entries of an MOSDMap envelope).
func DecodeFullOSDMap(d *codec.Decoder) (*OSDMap, error) {
	m := NewOSDMap()
	err := d.GetVersioned(1, func(version uint8, sub *codec.Decoder) error {
		fsidBytes, err := sub.GetRaw(16)
		if err != nil {
			return err
		}
		fsid, err := uuid.FromBytes(fsidBytes)
		if err != nil {
			return raderr.Wrap(raderr.KindMap, component, "parse fsid", err)
		}
		m.FSID = fsid

		m.Epoch, err = sub.GetU32()
		if err != nil {
			return err
		}
		if err := decodePools(sub, m.Pools); err != nil {
			return err
		}
		if err := decodeOSDs(sub, m.OSDs); err != nil {
			return err
		}
		return decodeOverrides(sub, m)
	})
	return m, err
}

func decodePools(d *codec.Decoder, out map[int64]PoolInfo) error {
	count, err := d.GetU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		id, err := d.GetI64()
		if err != nil {
			return err
		}
		name, err := d.GetString()
		if err != nil {
			return err
		}
		typ, err := d.GetU8()
		if err != nil {
			return err
		}
		size, err := d.GetU32()
		if err != nil {
			return err
		}
		minSize, err := d.GetU32()
		if err != nil {
			return err
		}
		pgCount, err := d.GetU32()
		if err != nil {
			return err
		}
		ruleID, err := d.GetU32()
		if err != nil {
			return err
		}
		flags, err := d.GetU32()
		if err != nil {
			return err
		}
		out[id] = PoolInfo{
			ID:      id,
			Name:    name,
			Type:    PoolType(typ),
			Size:    size,
			MinSize: minSize,
			PGCount: pgCount,
			RuleID:  crush.RuleID(ruleID),
			Flags:   PoolFlags(flags),
		}
	}
	return nil
}

func decodeOSDs(d *codec.Decoder, out map[int32]OSDInfo) error {
	count, err := d.GetU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		id, err := d.GetI32()
		if err != nil {
			return err
		}
		up, err := d.GetBool()
		if err != nil {
			return err
		}
		weight, err := d.GetU32()
		if err != nil {
			return err
		}
		addrs, err := codec.DecodeAddrVec(d)
		if err != nil {
			return err
		}
		out[id] = OSDInfo{ID: id, Up: up, Weight: crush.OSDWeight(weight), Addrs: addrs}
	}
	return nil
}

func decodeOverrides(d *codec.Decoder, m *OSDMap) error {
	if err := decodePGRemapTable(d, m.PGUpmap); err != nil {
		return err
	}
	if err := decodePGRemapTable(d, m.PGTemp); err != nil {
		return err
	}
	if err := decodePGItemTable(d, m.PGUpmapItems); err != nil {
		return err
	}
	return decodePGPrimaryTable(d, m.PGUpmapPrimaries)
}

func decodePGKey(d *codec.Decoder) (crush.PlacementGroupID, error) {
	poolID, err := d.GetI64()
	if err != nil {
		return crush.PlacementGroupID{}, err
	}
	seed, err := d.GetU32()
	if err != nil {
		return crush.PlacementGroupID{}, err
	}
	return crush.PlacementGroupID{PoolID: poolID, Seed: seed}, nil
}

func decodePGRemapTable(d *codec.Decoder, out map[crush.PlacementGroupID][]int32) error {
	count, err := d.GetU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		pg, err := decodePGKey(d)
		if err != nil {
			return err
		}
		osds, err := codec.GetSet(d, func(d *codec.Decoder) (int32, error) { return d.GetI32() })
		if err != nil {
			return err
		}
		out[pg] = osds
	}
	return nil
}

func decodePGItemTable(d *codec.Decoder, out map[crush.PlacementGroupID][]pgItemSwap) error {
	count, err := d.GetU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		pg, err := decodePGKey(d)
		if err != nil {
			return err
		}
		swaps, err := codec.GetSet(d, func(d *codec.Decoder) (pgItemSwap, error) {
			from, err := d.GetI32()
			if err != nil {
				return pgItemSwap{}, err
			}
			to, err := d.GetI32()
			return pgItemSwap{From: from, To: to}, err
		})
		if err != nil {
			return err
		}
		out[pg] = swaps
	}
	return nil
}

func decodePGPrimaryTable(d *codec.Decoder, out map[crush.PlacementGroupID]int32) error {
	count, err := d.GetU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		pg, err := decodePGKey(d)
		if err != nil {
			return err
		}
		osd, err := d.GetI32()
		if err != nil {
			return err
		}
		out[pg] = osd
	}
	return nil
}

// IncrementalOSDMap is a delta from epoch Epoch-1 to Epoch: puts and
// removes over pools, OSD weights, and the four override tables
// (§3 "OSDMap... incremental N applies only to epoch N-1").
type IncrementalOSDMap struct {
	Epoch uint32

	NewPools     map[int64]PoolInfo
	RemovedPools []int64

	NewOSDs     map[int32]OSDInfo
	RemovedOSDs []int32

	NewPGUpmap          map[crush.PlacementGroupID][]int32
	RemovedPGUpmap      []crush.PlacementGroupID
	NewPGTemp           map[crush.PlacementGroupID][]int32
	RemovedPGTemp       []crush.PlacementGroupID
	NewPGUpmapItems     map[crush.PlacementGroupID][]pgItemSwap
	RemovedPGUpmapItems []crush.PlacementGroupID
	NewPGUpmapPrimaries map[crush.PlacementGroupID]int32
	RemovedPGUpmapPrimaries []crush.PlacementGroupID
}

// DecodeIncrementalOSDMap reads one incremental delta.
func DecodeIncrementalOSDMap(d *codec.Decoder) (*IncrementalOSDMap, error) {
	inc := &IncrementalOSDMap{
		NewPools:            make(map[int64]PoolInfo),
		NewOSDs:             make(map[int32]OSDInfo),
		NewPGUpmap:          make(map[crush.PlacementGroupID][]int32),
		NewPGTemp:           make(map[crush.PlacementGroupID][]int32),
		NewPGUpmapItems:     make(map[crush.PlacementGroupID][]pgItemSwap),
		NewPGUpmapPrimaries: make(map[crush.PlacementGroupID]int32),
	}
	err := d.GetVersioned(1, func(version uint8, sub *codec.Decoder) error {
		var err error
		inc.Epoch, err = sub.GetU32()
		if err != nil {
			return err
		}
		if err := decodePools(sub, inc.NewPools); err != nil {
			return err
		}
		inc.RemovedPools, err = codec.GetSet(sub, func(d *codec.Decoder) (int64, error) { return d.GetI64() })
		if err != nil {
			return err
		}
		if err := decodeOSDs(sub, inc.NewOSDs); err != nil {
			return err
		}
		inc.RemovedOSDs, err = codec.GetSet(sub, func(d *codec.Decoder) (int32, error) { return d.GetI32() })
		if err != nil {
			return err
		}
		if err := decodePGRemapTable(sub, inc.NewPGUpmap); err != nil {
			return err
		}
		inc.RemovedPGUpmap, err = codec.GetSet(sub, decodePGKey)
		if err != nil {
			return err
		}
		if err := decodePGRemapTable(sub, inc.NewPGTemp); err != nil {
			return err
		}
		inc.RemovedPGTemp, err = codec.GetSet(sub, decodePGKey)
		if err != nil {
			return err
		}
		if err := decodePGItemTable(sub, inc.NewPGUpmapItems); err != nil {
			return err
		}
		inc.RemovedPGUpmapItems, err = codec.GetSet(sub, decodePGKey)
		if err != nil {
			return err
		}
		if err := decodePGPrimaryTable(sub, inc.NewPGUpmapPrimaries); err != nil {
			return err
		}
		inc.RemovedPGUpmapPrimaries, err = codec.GetSet(sub, decodePGKey)
		return err
	})
	return inc, err
}

// Apply returns a new OSDMap at inc.Epoch built from m, which must be
// at epoch inc.Epoch-1 (§3 incremental invariant; checked by the
// caller before calling Apply).
func (inc *IncrementalOSDMap) Apply(m *OSDMap) *OSDMap {
	out := m.clone()
	out.Epoch = inc.Epoch

	for id, p := range inc.NewPools {
		out.Pools[id] = p
	}
	for _, id := range inc.RemovedPools {
		delete(out.Pools, id)
	}
	for id, o := range inc.NewOSDs {
		out.OSDs[id] = o
	}
	for _, id := range inc.RemovedOSDs {
		delete(out.OSDs, id)
	}
	for pg, osds := range inc.NewPGUpmap {
		out.PGUpmap[pg] = osds
	}
	for _, pg := range inc.RemovedPGUpmap {
		delete(out.PGUpmap, pg)
	}
	for pg, osds := range inc.NewPGTemp {
		out.PGTemp[pg] = osds
	}
	for _, pg := range inc.RemovedPGTemp {
		delete(out.PGTemp, pg)
	}
	for pg, swaps := range inc.NewPGUpmapItems {
		out.PGUpmapItems[pg] = swaps
	}
	for _, pg := range inc.RemovedPGUpmapItems {
		delete(out.PGUpmapItems, pg)
	}
	for pg, osd := range inc.NewPGUpmapPrimaries {
		out.PGUpmapPrimaries[pg] = osd
	}
	for _, pg := range inc.RemovedPGUpmapPrimaries {
		delete(out.PGUpmapPrimaries, pg)
	}
	return out
}
