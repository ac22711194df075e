package monclient

import (
	"context"

	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/raderr"
)

// Command invokes a monitor command (the same `ceph ...` vector the
// CLI sends) and blocks for its reply or ctx's expiry. args is the
// command's JSON-ish argument vector (e.g. ["osd", "pool", "ls"]);
// input carries an optional data payload alongside it.
func (c *Client) Command(ctx context.Context, args []string, input []byte) (CommandResult, error) {
	tid := c.nextTID()
	pending := &pendingCommand{done: make(chan CommandResult, 1)}

	c.tidMu.Lock()
	c.commands[tid] = pending
	c.tidMu.Unlock()
	defer func() {
		c.tidMu.Lock()
		delete(c.commands, tid)
		c.tidMu.Unlock()
	}()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return CommandResult{}, raderr.New(raderr.KindState, component, "no monitor connection")
	}

	e := codec.NewEncoder(0)
	e.PutVersioned(1, 1, func(e *codec.Encoder) {
		e.PutU64(tid)
		e.PutU32(uint32(len(args)))
		for _, a := range args {
			e.PutString(a)
		}
		e.PutBytes(input)
	})
	if err := conn.SendMessage(ctx, uint16(MsgMonCommand), e.Bytes()); err != nil {
		return CommandResult{}, raderr.Wrap(raderr.KindTransport, component, "send command", err)
	}

	select {
	case res := <-pending.done:
		return res, nil
	case <-ctx.Done():
		return CommandResult{}, raderr.Wrap(raderr.KindTimeout, component, "command reply", ctx.Err())
	}
}

func (c *Client) handleCommandAck(body []byte) {
	tid, res, err := decodeCommandAck(body)
	if err != nil {
		return
	}
	c.tidMu.Lock()
	pending, ok := c.commands[tid]
	c.tidMu.Unlock()
	if !ok {
		return
	}
	select {
	case pending.done <- res:
	default:
	}
}

func decodeCommandAck(body []byte) (uint64, CommandResult, error) {
	d := codec.NewDecoder(body)
	var tid uint64
	var res CommandResult
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
		res.ReplyCode = int32(code)
		res.Outs, err = sub.GetString()
		if err != nil {
			return err
		}
		res.Outbl, err = sub.GetBytes()
		return err
	})
	return tid, res, err
}

// PoolOp requests a pool-lifecycle operation (create or delete) on
// poolName and blocks for the monitor's reply or ctx's expiry (§4.4).
func (c *Client) PoolOp(ctx context.Context, op PoolOpType, poolName string) (PoolOpResult, error) {
	tid := c.nextTID()
	pending := &pendingPoolOp{done: make(chan PoolOpResult, 1)}

	c.tidMu.Lock()
	c.poolOps[tid] = pending
	c.tidMu.Unlock()
	defer func() {
		c.tidMu.Lock()
		delete(c.poolOps, tid)
		c.tidMu.Unlock()
	}()

	c.mu.RLock()
	conn := c.conn
	mm := c.monmap
	c.mu.RUnlock()
	if conn == nil {
		return PoolOpResult{}, raderr.New(raderr.KindState, component, "no monitor connection")
	}

	e := codec.NewEncoder(0)
	e.PutVersioned(1, 1, func(e *codec.Encoder) {
		e.PutU64(tid)
		e.PutU16(uint16(op))
		if mm != nil {
			fsidBytes, _ := mm.FSID.MarshalBinary()
			e.PutRaw(fsidBytes)
		} else {
			e.PutRaw(make([]byte, 16))
		}
		e.PutString(poolName)
	})
	if err := conn.SendMessage(ctx, uint16(MsgPoolOp), e.Bytes()); err != nil {
		return PoolOpResult{}, raderr.Wrap(raderr.KindTransport, component, "send pool op", err)
	}

	select {
	case res := <-pending.done:
		return res, nil
	case <-ctx.Done():
		return PoolOpResult{}, raderr.Wrap(raderr.KindTimeout, component, "pool op reply", ctx.Err())
	}
}

func (c *Client) handlePoolOpReply(body []byte) {
	d := codec.NewDecoder(body)
	var tid uint64
	var res PoolOpResult
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
		res.ReplyCode = int32(code)
		res.Epoch, err = sub.GetU32()
		if err != nil {
			return err
		}
		res.Data, err = sub.GetBytes()
		return err
	})
	if err != nil {
		return
	}
	c.tidMu.Lock()
	pending, ok := c.poolOps[tid]
	c.tidMu.Unlock()
	if !ok {
		return
	}
	select {
	case pending.done <- res:
	default:
	}
}

// GetVersion asks the monitor for the current <version, oldest_version>
// pair of mapType (e.g. "osdmap"), used before issuing operations that
// must not race a map update the client hasn't seen yet.
func (c *Client) GetVersion(ctx context.Context, mapType string) (version uint64, oldest uint64, err error) {
	tid := c.nextTID()
	pending := &pendingGetVersion{done: make(chan [2]uint64, 1)}

	c.tidMu.Lock()
	c.getVers[tid] = pending
	c.tidMu.Unlock()
	defer func() {
		c.tidMu.Lock()
		delete(c.getVers, tid)
		c.tidMu.Unlock()
	}()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return 0, 0, raderr.New(raderr.KindState, component, "no monitor connection")
	}

	e := codec.NewEncoder(0)
	e.PutU64(tid)
	e.PutString(mapType)
	if err := conn.SendMessage(ctx, uint16(MsgMonGetVersion), e.Bytes()); err != nil {
		return 0, 0, raderr.Wrap(raderr.KindTransport, component, "send get version", err)
	}

	select {
	case res := <-pending.done:
		return res[0], res[1], nil
	case <-ctx.Done():
		return 0, 0, raderr.Wrap(raderr.KindTimeout, component, "get version reply", ctx.Err())
	}
}

func (c *Client) handleGetVersionReply(body []byte) {
	d := codec.NewDecoder(body)
	tid, err := d.GetU64()
	if err != nil {
		return
	}
	version, err := d.GetU64()
	if err != nil {
		return
	}
	oldest, err := d.GetU64()
	if err != nil {
		return
	}
	c.tidMu.Lock()
	pending, ok := c.getVers[tid]
	c.tidMu.Unlock()
	if !ok {
		return
	}
	select {
	case pending.done <- [2]uint64{version, oldest}:
	default:
	}
}
