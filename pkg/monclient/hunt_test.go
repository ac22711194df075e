package monclient

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/radosclient/pkg/cephx"
	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/config"
)

func TestWeightedOrderIsAPermutation(t *testing.T) {
	tier := []candidate{
		{name: "a", addr: "a:1", weight: 10},
		{name: "b", addr: "b:1", weight: 1},
		{name: "c", addr: "c:1", weight: 0},
	}
	ordered := weightedOrder(tier)
	require.Len(t, ordered, len(tier))

	seen := map[string]bool{}
	for _, c := range ordered {
		seen[c.name] = true
	}
	require.Len(t, seen, 3)
}

func TestWeightedOrderAllZeroWeightsStillOrdersEveryCandidate(t *testing.T) {
	tier := []candidate{{name: "a"}, {name: "b"}, {name: "c"}}
	ordered := weightedOrder(tier)
	require.Len(t, ordered, 3)
}

func TestWeightedOrderSingleCandidate(t *testing.T) {
	tier := []candidate{{name: "only", weight: 5}}
	ordered := weightedOrder(tier)
	require.Equal(t, tier, ordered)
}

func TestHuntCandidatesBootstrapsFromConfigAddrsWithoutMonMap(t *testing.T) {
	c := &Client{cfg: config.Config{MonAddrs: []string{"1.2.3.4:3300", "5.6.7.8:3300"}}}
	tiers := c.huntCandidates()
	require.Len(t, tiers, 1)
	require.Len(t, tiers[0], 2)
}

func TestHuntCandidatesUsesMonMapPriorityTiers(t *testing.T) {
	c := &Client{
		cfg: config.Config{MonAddrs: []string{"bootstrap:3300"}},
		monmap: &MonMap{Mons: []MonInfo{
			{Name: "a", Priority: 0, Addrs: codec.AddrVec{{IP: net.ParseIP("10.0.0.1"), Port: 1}}},
			{Name: "b", Priority: 1, Addrs: codec.AddrVec{{IP: net.ParseIP("10.0.0.2"), Port: 2}}},
		}},
	}
	tiers := c.huntCandidates()
	require.Len(t, tiers, 2)
	require.Equal(t, "a", tiers[0][0].name)
	require.Equal(t, "b", tiers[1][0].name)
}

func TestAuthMethodDefaultsToCephX(t *testing.T) {
	c := &Client{}
	require.Equal(t, cephx.AuthMethodCephX, c.authMethod())
}

func TestAuthMethodHonorsNoneWhenConfigured(t *testing.T) {
	c := &Client{cfg: config.Config{SupportedAuthMethods: []string{"none"}}}
	require.Equal(t, cephx.AuthMethodNone, c.authMethod())
}
