package objclient

import (
	"github.com/google/uuid"

	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/raderr"
)

// osdMapEnvelope is the decoded body of one MOSDMap message: the
// cluster uuid plus every incremental and full snapshot the monitor
// chose to attach, keyed by epoch (§4.5 "OSDMap update handling").
type osdMapEnvelope struct {
	fsid          uuid.UUID
	incrementals  map[uint32]*IncrementalOSDMap
	fulls         map[uint32]*OSDMap
}

// decodeOSDMapEnvelope reads an MOSDMap body: fsid, then a set of
// incremental records, then a set of full records.
func decodeOSDMapEnvelope(body []byte) (*osdMapEnvelope, error) {
	d := codec.NewDecoder(body)
	env := &osdMapEnvelope{
		incrementals: make(map[uint32]*IncrementalOSDMap),
		fulls:        make(map[uint32]*OSDMap),
	}

	err := d.GetVersioned(1, func(version uint8, sub *codec.Decoder) error {
		fsidBytes, err := sub.GetRaw(16)
		if err != nil {
			return err
		}
		fsid, err := uuid.FromBytes(fsidBytes)
		if err != nil {
			return raderr.Wrap(raderr.KindMap, component, "parse fsid", err)
		}
		env.fsid = fsid

		incCount, err := sub.GetU32()
		if err != nil {
			return err
		}
		for i := uint32(0); i < incCount; i++ {
			inc, err := DecodeIncrementalOSDMap(sub)
			if err != nil {
				return err
			}
			env.incrementals[inc.Epoch] = inc
		}

		fullCount, err := sub.GetU32()
		if err != nil {
			return err
		}
		for i := uint32(0); i < fullCount; i++ {
			full, err := DecodeFullOSDMap(sub)
			if err != nil {
				return err
			}
			env.fulls[full.Epoch] = full
		}
		return nil
	})
	return env, err
}
