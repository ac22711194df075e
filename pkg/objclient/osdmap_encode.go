package objclient

import (
	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/crush"
)

// EncodeFullOSDMap writes m in the shape DecodeFullOSDMap reads, used
// by tests to build scripted MOSDMap replies.
func EncodeFullOSDMap(e *codec.Encoder, m *OSDMap) {
	e.PutVersioned(1, 1, func(e *codec.Encoder) {
		fsidBytes, _ := m.FSID.MarshalBinary()
		e.PutRaw(fsidBytes)
		e.PutU32(m.Epoch)
		encodePools(e, m.Pools)
		encodeOSDs(e, m.OSDs)
		encodePGRemapTable(e, m.PGUpmap)
		encodePGRemapTable(e, m.PGTemp)
		encodePGItemTable(e, m.PGUpmapItems)
		encodePGPrimaryTable(e, m.PGUpmapPrimaries)
	})
}

func encodePools(e *codec.Encoder, pools map[int64]PoolInfo) {
	e.PutU32(uint32(len(pools)))
	for id, p := range pools {
		e.PutI64(id)
		e.PutString(p.Name)
		e.PutU8(uint8(p.Type))
		e.PutU32(p.Size)
		e.PutU32(p.MinSize)
		e.PutU32(p.PGCount)
		e.PutU32(uint32(p.RuleID))
		e.PutU32(uint32(p.Flags))
	}
}

func encodeOSDs(e *codec.Encoder, osds map[int32]OSDInfo) {
	e.PutU32(uint32(len(osds)))
	for id, o := range osds {
		e.PutI32(int32(id))
		e.PutBool(o.Up)
		e.PutU32(uint32(o.Weight))
		codec.EncodeAddrVec(e, o.Addrs)
	}
}

func encodePGKey(e *codec.Encoder, pg crush.PlacementGroupID) {
	e.PutI64(pg.PoolID)
	e.PutU32(pg.Seed)
}

func encodePGRemapTable(e *codec.Encoder, table map[crush.PlacementGroupID][]int32) {
	e.PutU32(uint32(len(table)))
	for pg, osds := range table {
		encodePGKey(e, pg)
		codec.PutSet(e, osds, func(e *codec.Encoder, v int32) { e.PutI32(v) })
	}
}

func encodePGItemTable(e *codec.Encoder, table map[crush.PlacementGroupID][]pgItemSwap) {
	e.PutU32(uint32(len(table)))
	for pg, swaps := range table {
		encodePGKey(e, pg)
		codec.PutSet(e, swaps, func(e *codec.Encoder, v pgItemSwap) {
			e.PutI32(v.From)
			e.PutI32(v.To)
		})
	}
}

func encodePGPrimaryTable(e *codec.Encoder, table map[crush.PlacementGroupID]int32) {
	e.PutU32(uint32(len(table)))
	for pg, osd := range table {
		encodePGKey(e, pg)
		e.PutI32(osd)
	}
}

// EncodeIncrementalOSDMap writes inc in the shape
// DecodeIncrementalOSDMap reads.
func EncodeIncrementalOSDMap(e *codec.Encoder, inc *IncrementalOSDMap) {
	e.PutVersioned(1, 1, func(e *codec.Encoder) {
		e.PutU32(inc.Epoch)
		encodePools(e, inc.NewPools)
		codec.PutSet(e, inc.RemovedPools, func(e *codec.Encoder, v int64) { e.PutI64(v) })
		encodeOSDs(e, inc.NewOSDs)
		codec.PutSet(e, inc.RemovedOSDs, func(e *codec.Encoder, v int32) { e.PutI32(v) })
		encodePGRemapTable(e, inc.NewPGUpmap)
		codec.PutSet(e, inc.RemovedPGUpmap, encodePGKey)
		encodePGRemapTable(e, inc.NewPGTemp)
		codec.PutSet(e, inc.RemovedPGTemp, encodePGKey)
		encodePGItemTable(e, inc.NewPGUpmapItems)
		codec.PutSet(e, inc.RemovedPGUpmapItems, encodePGKey)
		encodePGPrimaryTable(e, inc.NewPGUpmapPrimaries)
		codec.PutSet(e, inc.RemovedPGUpmapPrimaries, encodePGKey)
	})
}
