// Package objclient implements the object-service client: placement
// resolution against the current OSDMap, a pool of per-OSD sessions,
// and the submit/redirect loop that turns an Operation into an
// OperationResult (spec §4.5).
package objclient

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marmos91/radosclient/internal/logger"
	"github.com/marmos91/radosclient/pkg/cephx"
	"github.com/marmos91/radosclient/pkg/config"
	"github.com/marmos91/radosclient/pkg/metrics"
	"github.com/marmos91/radosclient/pkg/monclient"
	"github.com/marmos91/radosclient/pkg/msgr"
	"github.com/marmos91/radosclient/pkg/raderr"
)

// blockedRetryInterval is how long Submit waits before re-checking a
// session's backoff ranges once it finds the target key blocked.
const blockedRetryInterval = 50 * time.Millisecond

// sessionDialer opens and authenticates a connection to addr, the seam
// tests replace with an in-process fake OSD.
type sessionDialer func(ctx context.Context, addr string) (wireConn, error)

// ObjectClient resolves objects to placement groups against the
// current OSDMap, maintains one session per OSD it has talked to, and
// drives the submit/redirect loop described in §4.5.
type ObjectClient struct {
	cfg    config.Config
	mon    *monclient.Client
	entity cephx.EntityName
	inc    uint64
	dial   sessionDialer
	met    *metrics.Metrics

	mapMu  sync.RWMutex
	osdmap *OSDMap

	sessMu   sync.Mutex
	sessions map[int32]*Session
	dialOnce singleflight.Group

	throttle *throttle
}

// New constructs an ObjectClient bound to mon, the monitor client that
// supplies OSDMap updates and OSD service tickets. A nil dial uses the
// real msgr2 dialer, authenticating against mon's OSD service ticket.
func New(cfg config.Config, mon *monclient.Client, dial sessionDialer) *ObjectClient {
	c := &ObjectClient{
		cfg:      cfg,
		mon:      mon,
		entity:   mon.Entity(),
		inc:      cfg.ClientInc,
		sessions: make(map[int32]*Session),
		osdmap:   NewOSDMap(),
		throttle: newThrottle(cfg.Throttle.Ops, cfg.Throttle.Bytes),
	}
	if dial != nil {
		c.dial = dial
	} else {
		c.dial = c.defaultDialer()
	}
	mon.OnOSDMap(c.handleOSDMap)
	return c
}

// SetMetrics wires m's collectors into the admission and resolution
// paths; nil leaves metrics unrecorded.
func (c *ObjectClient) SetMetrics(m *metrics.Metrics) { c.met = m }

// defaultDialer builds a sessionDialer that authenticates against the
// monitor client's session ticket for the OSD service, the real-socket
// path used outside tests.
func (c *ObjectClient) defaultDialer() sessionDialer {
	return func(ctx context.Context, addr string) (wireConn, error) {
		auth, err := c.mon.AuthClient()
		if err != nil {
			return nil, err
		}
		conn := msgr.NewConnection(noopOwner{}, auth, cephx.EntityTypeOSD, addr)
		if err := conn.Connect(ctx); err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// noopOwner satisfies msgr.ConnectionOwner for OSD sessions: a fault
// surfaces to the caller as a submit() error and the next submission
// simply opens a fresh session, so there is nothing extra to do here.
type noopOwner struct{}

func (noopOwner) OnUnhealthy(*msgr.Connection, error) {}

// OSDMap returns the currently installed map.
func (c *ObjectClient) OSDMap() *OSDMap {
	c.mapMu.RLock()
	defer c.mapMu.RUnlock()
	return c.osdmap
}

// handleOSDMap applies one MOSDMap envelope per the epoch-walk
// algorithm: incrementals are preferred when the prior epoch is held,
// otherwise a full snapshot installs directly; a gap with neither
// stops the walk (§4.5 "OSDMap update handling").
func (c *ObjectClient) handleOSDMap(body []byte) {
	env, err := decodeOSDMapEnvelope(body)
	if err != nil {
		logger.Warn("discarding malformed OSDMap", logger.Err(err))
		return
	}

	c.mapMu.Lock()
	defer c.mapMu.Unlock()

	cur := c.osdmap
	if cur.Epoch > 0 && cur.FSID != env.fsid {
		logger.Warn("OSDMap fsid mismatch, ignoring")
		return
	}

	highest := cur.Epoch
	for {
		next := cur.Epoch + 1
		if inc, ok := env.incrementals[next]; ok {
			cur = inc.Apply(cur)
			highest = cur.Epoch
			continue
		}
		if full, ok := env.fulls[next]; ok {
			cur = full
			highest = cur.Epoch
			continue
		}
		break
	}
	if highest <= c.osdmap.Epoch {
		return
	}
	c.osdmap = cur
	if c.met != nil {
		c.met.MapEpoch.WithLabelValues("osdmap").Set(float64(cur.Epoch))
	}
}

// getOrOpen returns the session for osdID, opening and authenticating
// one if none exists or the existing one is no longer Ready. Dials for
// the same osdID collapse onto a single in-flight attempt (§4.5
// "Session cache").
func (c *ObjectClient) getOrOpen(ctx context.Context, osdID int32) (*Session, error) {
	c.sessMu.Lock()
	if s, ok := c.sessions[osdID]; ok && s.Ready() {
		c.sessMu.Unlock()
		return s, nil
	}
	c.sessMu.Unlock()

	key := mapKey(osdID)
	v, err, _ := c.dialOnce.Do(key, func() (any, error) {
		m := c.OSDMap()
		osd, ok := m.OSDs[osdID]
		if !ok || len(osd.Addrs) == 0 {
			return nil, raderr.New(raderr.KindPlacement, component, "no address for osd").WithEntity(mapKey(osdID))
		}
		conn, err := c.dial(ctx, osd.Addrs[0].String())
		if err != nil {
			return nil, raderr.Wrap(raderr.KindTransport, component, "dial osd", err)
		}
		s := newSession(osdID, conn, c.inc)

		c.sessMu.Lock()
		c.sessions[osdID] = s
		c.sessMu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func mapKey(osdID int32) string {
	return "osd:" + itoa(osdID)
}

func itoa(v int32) string {
	neg := v < 0
	if neg {
		v = -v
	}
	if v == 0 {
		return "0"
	}
	var buf [12]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Submit resolves obj's placement, opens or reuses the primary's
// session, and drives the redirect loop until the storage node returns
// a result with no redirect or ctx expires (§4.5 request pipeline).
func (c *ObjectClient) Submit(ctx context.Context, poolID int64, name, key, namespace string, subOps []SubOp) (OperationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	obj := NewObjectId(poolID, name, key, namespace)
	cost := budget(subOps)
	if err := c.throttle.acquire(ctx, cost); err != nil {
		return OperationResult{}, err
	}
	defer c.throttle.release(cost)
	if c.met != nil {
		c.met.ThrottleOpsInUse.Inc()
		defer c.met.ThrottleOpsInUse.Dec()
		c.met.ThrottleBytesInUse.Add(float64(cost))
		defer c.met.ThrottleBytesInUse.Sub(float64(cost))
	}

	op := Operation{
		ID:     RequestID{Entity: c.entity.String(), Incarnation: c.inc},
		Object: obj,
		SubOps: subOps,
		Flags:  flagsForSubOps(subOps),
	}

	for {
		m := c.OSDMap()
		pg, osds, err := resolve(m, op.Object)
		if err != nil {
			return OperationResult{}, err
		}
		primary := osds[0]
		op.Epoch = m.Epoch

		session, err := c.getOrOpen(ctx, primary)
		if err != nil {
			return OperationResult{}, err
		}
		if session.blocked(pg, op.Object.Key) {
			select {
			case <-ctx.Done():
				return OperationResult{}, raderr.Wrap(raderr.KindTimeout, component, "operation", ctx.Err())
			case <-time.After(blockedRetryInterval):
				continue
			}
		}

		res, err := session.Submit(ctx, op)
		if err != nil {
			return OperationResult{}, err
		}
		if res.Redirect != nil {
			applyRedirect(&op, res.Redirect)
			if c.met != nil {
				c.met.Redirects.Inc()
			}
			continue
		}
		return res, nil
	}
}

// applyRedirect retargets op per the redirect pointer and marks it so
// (§4.5 "Redirect application"). Reapplying the same redirect is safe:
// REDIRECTED is set, not toggled, and the fields are overwritten
// wholesale rather than merged.
func applyRedirect(op *Operation, r *Redirect) {
	op.Object.PoolID = r.Pool
	op.Object.Key = r.Key
	op.Object.Namespace = r.Namespace
	if r.Name != "" {
		op.Object.Name = r.Name
	}
	op.Object.Hash = computeHash(op.Object.Name, op.Object.Key)
	op.Flags |= FlagRedirected | FlagIgnoreCache | FlagIgnoreOverlay
	op.Redirected = true
}

// ListPools returns every pool in the currently installed OSDMap
// (§4.5 "list_pools reads from the current OSDMap").
func (c *ObjectClient) ListPools() []PoolInfo {
	m := c.OSDMap()
	out := make([]PoolInfo, 0, len(m.Pools))
	for _, p := range m.Pools {
		out = append(out, p)
	}
	return out
}

// CreatePool sends an MPoolOp create request through the monitor
// client and waits for its reply.
func (c *ObjectClient) CreatePool(ctx context.Context, name string) (monclient.PoolOpResult, error) {
	return c.mon.PoolOp(ctx, monclient.PoolOpCreate, name)
}

// DeletePool sends an MPoolOp delete request through the monitor
// client and waits for its reply. The request names the pool once and
// carries no separate confirmation field.
func (c *ObjectClient) DeletePool(ctx context.Context, name string) (monclient.PoolOpResult, error) {
	return c.mon.PoolOp(ctx, monclient.PoolOpDelete, name)
}

// ListResult is one page of List's pg-list walk: the entries collected
// and a cursor to resume from. Once every PG has been walked the
// cursor is the end marker "pg:4294967295", not the empty string
// (§4.5 "List").
type ListResult struct {
	Entries []string
	Cursor  string
}

// List iterates poolID's placement groups starting at cursor (the
// empty string begins at the first PG), concatenating entries from
// each primary's paginated pg-list reply until maxEntries is satisfied
// or every PG has been exhausted. Cursor format is "pg:<seed>", the
// PG seed to resume from; seed 0xFFFFFFFF marks the end (§4.5 "List").
func (c *ObjectClient) List(ctx context.Context, poolID int64, cursor string, maxEntries int) (ListResult, error) {
	m := c.OSDMap()
	pool, ok := m.Pools[poolID]
	if !ok {
		return ListResult{}, raderr.New(raderr.KindPlacement, component, "unknown pool").WithState("pool")
	}

	startSeed := uint32(0)
	if cursor != "" {
		seed, err := parseListCursor(cursor)
		if err != nil {
			return ListResult{}, err
		}
		startSeed = seed
	}

	var entries []string
	for seed := startSeed; seed < pool.PGCount; seed++ {
		if len(entries) >= maxEntries {
			return ListResult{Entries: entries, Cursor: formatListCursor(seed)}, nil
		}

		_, osds, err := resolvePG(m, poolID, seed)
		if err != nil || len(osds) == 0 {
			continue
		}

		session, err := c.getOrOpen(ctx, osds[0])
		if err != nil {
			continue
		}
		page, err := session.ListPG(ctx, poolID, seed)
		if err != nil {
			continue
		}
		entries = append(entries, page...)
	}
	return ListResult{Entries: entries, Cursor: formatListCursor(listEndMarker)}, nil
}

// Close tears down every open session.
func (c *ObjectClient) Close() error {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	var firstErr error
	for id, s := range c.sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.sessions, id)
	}
	return firstErr
}

// listEndMarker is the seed value that marks end-of-PG in a list
// cursor (§4.5 "hash == u32::MAX marks end-of-PG").
const listEndMarker = ^uint32(0)

func formatListCursor(seed uint32) string {
	return "pg:" + uitoa(seed)
}

func parseListCursor(cursor string) (uint32, error) {
	const prefix = "pg:"
	if len(cursor) <= len(prefix) || cursor[:len(prefix)] != prefix {
		return 0, raderr.New(raderr.KindProtocol, component, "malformed list cursor").WithEntity(cursor)
	}
	var v uint32
	for _, r := range cursor[len(prefix):] {
		if r < '0' || r > '9' {
			return 0, raderr.New(raderr.KindProtocol, component, "malformed list cursor").WithEntity(cursor)
		}
		v = v*10 + uint32(r-'0')
	}
	return v, nil
}

func uitoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
