package monclient

import (
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/radosclient/pkg/codec"
)

func TestMonMapEncodeDecodeRoundTrip(t *testing.T) {
	in := &MonMap{
		Epoch:   7,
		FSID:    uuid.New(),
		Created: 1234567,
		Mons: []MonInfo{
			{Name: "a", Addrs: codec.AddrVec{{Type: codec.AddrTypeMsgr2, IP: net.ParseIP("10.0.0.1"), Port: 3300}}, Priority: 0, Weight: 1},
			{Name: "b", Addrs: codec.AddrVec{{Type: codec.AddrTypeMsgr2, IP: net.ParseIP("10.0.0.2"), Port: 3300}}, Priority: 1, Weight: 1},
		},
	}

	e := codec.NewEncoder(0)
	EncodeMonMap(e, in)

	out, err := DecodeMonMap(codec.NewDecoder(e.Bytes()))
	require.NoError(t, err)
	require.Equal(t, in.Epoch, out.Epoch)
	require.Equal(t, in.FSID, out.FSID)
	require.Equal(t, in.Created, out.Created)
	require.Len(t, out.Mons, 2)
	require.Equal(t, "a", out.Mons[0].Name)
	require.Equal(t, uint16(0), out.Mons[0].Priority)
	require.Equal(t, "b", out.Mons[1].Name)
	require.Equal(t, uint16(1), out.Mons[1].Priority)
}

func TestMonMapByPriorityGroupsAscending(t *testing.T) {
	mm := &MonMap{Mons: []MonInfo{
		{Name: "a", Priority: 5},
		{Name: "b", Priority: 0},
		{Name: "c", Priority: 5},
		{Name: "d", Priority: 2},
	}}

	tiers := mm.ByPriority()
	require.Len(t, tiers, 3)
	require.Equal(t, []int{1}, tiers[0])    // priority 0 -> "b"
	require.Equal(t, []int{3}, tiers[1])    // priority 2 -> "d"
	require.ElementsMatch(t, []int{0, 2}, tiers[2]) // priority 5 -> "a", "c"
}

func TestMonMapByPriorityEmpty(t *testing.T) {
	var mm *MonMap
	require.Nil(t, mm.ByPriority())

	mm = &MonMap{}
	require.Nil(t, mm.ByPriority())
}
