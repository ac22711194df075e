package monclient

import (
	"context"

	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/raderr"
)

// Subscribe registers interest in mapName (e.g. "monmap", "osdmap")
// starting at startEpoch, and sends an MMonSubscribe immediately if a
// connection is already up. Re-sent on every reconnect until
// Unsubscribe is called.
func (c *Client) Subscribe(mapName string, startEpoch uint64, flags uint8) {
	c.mu.Lock()
	c.subs[mapName] = &subState{start: startEpoch, flags: flags}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		c.sendSubscribe(conn, mapName, startEpoch, flags)
	}
}

// Unsubscribe drops interest in mapName; no further MMonSubscribeAck
// pushes are expected for it after the monitor processes the next
// subscribe request.
func (c *Client) Unsubscribe(mapName string) {
	c.mu.Lock()
	delete(c.subs, mapName)
	c.mu.Unlock()
}

// resendSubscriptions re-sends every registered subscription over a
// newly installed connection, the monitor having no memory of them
// from before the reconnect.
func (c *Client) resendSubscriptions() {
	c.mu.Lock()
	conn := c.conn
	subs := make(map[string]*subState, len(c.subs))
	for k, v := range c.subs {
		subs[k] = v
	}
	c.mu.Unlock()

	if conn == nil {
		return
	}
	for name, st := range subs {
		c.sendSubscribe(conn, name, st.start, st.flags)
	}
}

func (c *Client) sendSubscribe(conn Connection, mapName string, startEpoch uint64, flags uint8) {
	e := codec.NewEncoder(0)
	e.PutVersioned(1, 1, func(e *codec.Encoder) {
		e.PutU32(1) // one subscription entry
		e.PutString(mapName)
		e.PutU64(startEpoch)
		e.PutU8(flags)
	})

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CommandTimeout)
	defer cancel()
	if err := conn.SendMessage(ctx, uint16(MsgMonSubscribe), e.Bytes()); err != nil {
		c.OnUnhealthy(nil, raderr.Wrap(raderr.KindTransport, component, "send subscribe "+mapName, err))
	}
}
