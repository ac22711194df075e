package objclient

import (
	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/crush"
)

// encodeOperation serializes op as the body of an msgOSDOp MESSAGE
// frame: request id, target object, OSDMap epoch, flags, and the
// ordered sub-op list (§3 Operation).
func encodeOperation(op Operation) []byte {
	e := codec.NewEncoder(0)
	e.PutVersioned(1, 1, func(e *codec.Encoder) {
		e.PutString(op.ID.Entity)
		e.PutU64(op.ID.TID)
		e.PutU64(op.ID.Incarnation)

		e.PutI64(op.Object.PoolID)
		e.PutString(op.Object.Name)
		e.PutString(op.Object.Key)
		e.PutString(op.Object.Namespace)
		e.PutU32(op.Object.Hash)

		e.PutU32(op.Epoch)
		e.PutU32(uint32(op.Flags))
		e.PutBool(op.Redirected)

		e.PutU32(uint32(len(op.SubOps)))
		for _, s := range op.SubOps {
			e.PutU8(uint8(s.Kind))
			e.PutU64(s.Offset)
			e.PutU64(s.Length)
			e.PutBytes(s.Data)
		}
	})
	return e.Bytes()
}

// decodeOperationReply reads the body of an msgOSDOpReply frame: the
// request tid the reply correlates to, followed by an
// OperationResult (§3 OperationResult).
func decodeOperationReply(body []byte) (uint64, OperationResult, error) {
	d := codec.NewDecoder(body)
	var tid uint64
	var res OperationResult
	err := d.GetVersioned(1, func(version uint8, sub *codec.Decoder) error {
		var err error
		tid, err = sub.GetU64()
		if err != nil {
			return err
		}
		code, err := sub.GetI64()
		if err != nil {
			return err
		}
		res.Code = int32(code)
		res.Version, err = sub.GetU64()
		if err != nil {
			return err
		}

		count, err := sub.GetU32()
		if err != nil {
			return err
		}
		res.SubOps = make([]SubOpResult, 0, count)
		for i := uint32(0); i < count; i++ {
			subCode, err := sub.GetI64()
			if err != nil {
				return err
			}
			data, err := sub.GetBytes()
			if err != nil {
				return err
			}
			res.SubOps = append(res.SubOps, SubOpResult{Code: int32(subCode), Data: data})
		}

		hasRedirect, err := sub.GetBool()
		if err != nil {
			return err
		}
		if hasRedirect {
			pool, err := sub.GetI64()
			if err != nil {
				return err
			}
			key, err := sub.GetString()
			if err != nil {
				return err
			}
			namespace, err := sub.GetString()
			if err != nil {
				return err
			}
			name, err := sub.GetString()
			if err != nil {
				return err
			}
			res.Redirect = &Redirect{Pool: pool, Key: key, Namespace: namespace, Name: name}
		}
		return nil
	})
	return tid, res, err
}

// decodeBackoffFrame reads an msgOSDBackoff frame: operation, the
// OSD-assigned id, the covered pg, and its [begin,end) key range
// (§4.5 backoff frames).
func decodeBackoffFrame(d *codec.Decoder) (op backoffOp, id uint64, pg crush.PlacementGroupID, begin, end string, err error) {
	opByte, err := d.GetU8()
	if err != nil {
		return 0, 0, crush.PlacementGroupID{}, "", "", err
	}
	op = backoffOp(opByte)

	id, err = d.GetU64()
	if err != nil {
		return 0, 0, crush.PlacementGroupID{}, "", "", err
	}

	poolID, err := d.GetI64()
	if err != nil {
		return 0, 0, crush.PlacementGroupID{}, "", "", err
	}
	seed, err := d.GetU32()
	if err != nil {
		return 0, 0, crush.PlacementGroupID{}, "", "", err
	}
	pg = crush.PlacementGroupID{PoolID: poolID, Seed: seed}

	begin, err = d.GetString()
	if err != nil {
		return 0, 0, crush.PlacementGroupID{}, "", "", err
	}
	end, err = d.GetString()
	return op, id, pg, begin, end, err
}

// encodeBackoffFrame is the mirror of decodeBackoffFrame, used by
// tests to script an OSD peer's backoff traffic.
func encodeBackoffFrame(op backoffOp, id uint64, pg crush.PlacementGroupID, begin, end string) []byte {
	e := codec.NewEncoder(0)
	e.PutU8(uint8(op))
	e.PutU64(id)
	e.PutI64(pg.PoolID)
	e.PutU32(pg.Seed)
	e.PutString(begin)
	e.PutString(end)
	return e.Bytes()
}

// encodeListRequest builds a paginated pg-list request body: the
// request tid, target pool and pg seed (§4.5 "List").
func encodeListRequest(tid uint64, poolID int64, seed uint32) []byte {
	e := codec.NewEncoder(0)
	e.PutVersioned(1, 1, func(e *codec.Encoder) {
		e.PutU64(tid)
		e.PutI64(poolID)
		e.PutU32(seed)
	})
	return e.Bytes()
}

// decodeListReply reads one page of a pg-list reply: the tid it
// correlates to and the object names it carries.
func decodeListReply(body []byte) (uint64, []string, error) {
	d := codec.NewDecoder(body)
	var tid uint64
	var entries []string
	err := d.GetVersioned(1, func(version uint8, sub *codec.Decoder) error {
		var err error
		tid, err = sub.GetU64()
		if err != nil {
			return err
		}
		entries, err = codec.GetSet(sub, func(d *codec.Decoder) (string, error) { return d.GetString() })
		return err
	})
	return tid, entries, err
}

// encodeBackoffAck builds the ack_block reply echoing id back to the
// OSD that sent a block frame (§4.5 "sends ack_block echoing the id
// back").
func encodeBackoffAck(id uint64) []byte {
	e := codec.NewEncoder(0)
	e.PutU8(uint8(backoffAckBlock))
	e.PutU64(id)
	e.PutI64(0)
	e.PutU32(0)
	e.PutString("")
	e.PutString("")
	return e.Bytes()
}
