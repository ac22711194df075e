package objclient

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/crush"
)

func TestFullOSDMapEncodeDecodeRoundTrip(t *testing.T) {
	fsid := uuid.New()
	m := NewOSDMap()
	m.FSID = fsid
	m.Epoch = 7
	m.Pools[1] = PoolInfo{ID: 1, Name: "data", Type: PoolTypeReplicated, Size: 3, MinSize: 2, PGCount: 16, RuleID: 0, Flags: PoolFlagHashPSPool}
	m.OSDs[1] = OSDInfo{ID: 1, Up: true, Weight: crush.OSDWeight(0x10000), Addrs: codec.AddrVec{}}
	m.PGUpmap[crush.PlacementGroupID{PoolID: 1, Seed: 3}] = []int32{1, 2, 3}

	e := codec.NewEncoder(0)
	EncodeFullOSDMap(e, m)

	decoded, err := DecodeFullOSDMap(codec.NewDecoder(e.Bytes()))
	require.NoError(t, err)
	require.Equal(t, fsid, decoded.FSID)
	require.Equal(t, uint32(7), decoded.Epoch)
	require.Equal(t, m.Pools[1], decoded.Pools[1])
	require.Equal(t, m.OSDs[1], decoded.OSDs[1])
	require.Equal(t, []int32{1, 2, 3}, decoded.PGUpmap[crush.PlacementGroupID{PoolID: 1, Seed: 3}])
}

func TestIncrementalOSDMapApplyFromPriorEpochIsCopyOnWrite(t *testing.T) {
	base := NewOSDMap()
	base.Epoch = 5
	base.Pools[1] = PoolInfo{ID: 1, PGCount: 4}

	inc := &IncrementalOSDMap{
		Epoch:        6,
		NewPools:     map[int64]PoolInfo{2: {ID: 2, PGCount: 8}},
		RemovedPools: []int64{1},
		NewOSDs:             map[int32]OSDInfo{},
		NewPGUpmap:          map[crush.PlacementGroupID][]int32{},
		NewPGTemp:           map[crush.PlacementGroupID][]int32{},
		NewPGUpmapItems:     map[crush.PlacementGroupID][]pgItemSwap{},
		NewPGUpmapPrimaries: map[crush.PlacementGroupID]int32{},
	}

	next := inc.Apply(base)
	require.Equal(t, uint32(6), next.Epoch)
	require.NotContains(t, next.Pools, int64(1))
	require.Contains(t, next.Pools, int64(2))

	// base is untouched by the copy-on-write application.
	require.Equal(t, uint32(5), base.Epoch)
	require.Contains(t, base.Pools, int64(1))
}

func TestIncrementalOSDMapEncodeDecodeRoundTrip(t *testing.T) {
	inc := &IncrementalOSDMap{
		Epoch:               3,
		NewPools:            map[int64]PoolInfo{1: {ID: 1, PGCount: 4}},
		RemovedPools:        []int64{9},
		NewOSDs:             map[int32]OSDInfo{1: {ID: 1, Up: true, Weight: crush.OSDWeight(1), Addrs: codec.AddrVec{}}},
		RemovedOSDs:         []int32{2},
		NewPGUpmap:          map[crush.PlacementGroupID][]int32{},
		NewPGTemp:           map[crush.PlacementGroupID][]int32{},
		NewPGUpmapItems:     map[crush.PlacementGroupID][]pgItemSwap{},
		NewPGUpmapPrimaries: map[crush.PlacementGroupID]int32{},
	}

	e := codec.NewEncoder(0)
	EncodeIncrementalOSDMap(e, inc)

	decoded, err := DecodeIncrementalOSDMap(codec.NewDecoder(e.Bytes()))
	require.NoError(t, err)
	require.Equal(t, inc.Epoch, decoded.Epoch)
	require.Equal(t, inc.NewPools, decoded.NewPools)
	require.Equal(t, inc.RemovedPools, decoded.RemovedPools)
	require.Equal(t, inc.NewOSDs, decoded.NewOSDs)
	require.Equal(t, inc.RemovedOSDs, decoded.RemovedOSDs)
}
