package monclient

import (
	"github.com/google/uuid"

	"github.com/marmos91/radosclient/pkg/cephx"
	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/raderr"
)

// MonInfo describes one monitor in the quorum: its name, every address
// it can be reached at, and the priority/weight pair hunting uses to
// order candidates (§3 MonMap, §4.4 hunting).
type MonInfo struct {
	Name     string
	Addrs    codec.AddrVec
	Priority uint16
	Weight   uint16
}

// MonMap is the monitor topology map: epoch, cluster UUID, and the
// ordered list of monitors. Epochs are monotonic; a decoded map with a
// lower epoch than one already installed is rejected by the caller.
type MonMap struct {
	Epoch   uint32
	FSID    uuid.UUID
	Mons    []MonInfo
	Created int64 // unix seconds, informational only
}

// ByPriority groups monitor indices into tiers ordered by ascending
// priority (lowest value = highest preference), the grouping hunting
// iterates one tier at a time (§4.4).
func (m *MonMap) ByPriority() [][]int {
	if m == nil || len(m.Mons) == 0 {
		return nil
	}
	tiers := map[uint16][]int{}
	var order []uint16
	for i, mon := range m.Mons {
		if _, ok := tiers[mon.Priority]; !ok {
			order = append(order, mon.Priority)
		}
		tiers[mon.Priority] = append(tiers[mon.Priority], i)
	}
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			if order[j] < order[i] {
				order[i], order[j] = order[j], order[i]
			}
		}
	}
	out := make([][]int, 0, len(order))
	for _, p := range order {
		out = append(out, tiers[p])
	}
	return out
}

// DecodeMonMap reads the versioned MonMap record msgr delivers in
// reply to a monmap subscription.
func DecodeMonMap(d *codec.Decoder) (*MonMap, error) {
	m := &MonMap{}
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
		m.Created, err = sub.GetI64()
		if err != nil {
			return err
		}

		count, err := sub.GetU32()
		if err != nil {
			return err
		}
		m.Mons = make([]MonInfo, 0, count)
		for i := uint32(0); i < count; i++ {
			name, err := sub.GetString()
			if err != nil {
				return err
			}
			addrs, err := codec.DecodeAddrVec(sub)
			if err != nil {
				return err
			}
			priority, err := sub.GetU16()
			if err != nil {
				return err
			}
			weight, err := sub.GetU16()
			if err != nil {
				return err
			}
			m.Mons = append(m.Mons, MonInfo{Name: name, Addrs: addrs, Priority: priority, Weight: weight})
		}
		return nil
	})
	return m, err
}

// EncodeMonMap writes m in the same shape DecodeMonMap reads, used by
// tests to build scripted peer replies.
func EncodeMonMap(e *codec.Encoder, m *MonMap) {
	e.PutVersioned(1, 1, func(e *codec.Encoder) {
		fsidBytes, _ := m.FSID.MarshalBinary()
		e.PutRaw(fsidBytes)
		e.PutU32(m.Epoch)
		e.PutI64(m.Created)
		e.PutU32(uint32(len(m.Mons)))
		for _, mon := range m.Mons {
			e.PutString(mon.Name)
			codec.EncodeAddrVec(e, mon.Addrs)
			e.PutU16(mon.Priority)
			e.PutU16(mon.Weight)
		}
	})
}

// entityNameFor builds the EntityName tag for a monitor, used when a
// hunt needs to address one by name rather than index.
func entityNameFor(mon MonInfo) cephx.EntityName {
	return cephx.EntityName{Type: cephx.EntityTypeMon, ID: mon.Name}
}
