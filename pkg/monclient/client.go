package monclient

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/radosclient/internal/logger"
	"github.com/marmos91/radosclient/pkg/cephx"
	"github.com/marmos91/radosclient/pkg/codec"
	"github.com/marmos91/radosclient/pkg/config"
	"github.com/marmos91/radosclient/pkg/metrics"
	"github.com/marmos91/radosclient/pkg/msgr"
	"github.com/marmos91/radosclient/pkg/raderr"
)

// Dialer opens a msgr2 connection to peer and runs the handshake. It
// is the seam MonitorClient uses to reach out to a monitor; tests
// supply a fake that talks to an in-process scripted peer instead of a
// real socket.
type Dialer func(ctx context.Context, owner msgr.ConnectionOwner, auth *cephx.AuthClient, peer string) (Connection, error)

// Connection is the subset of *msgr.Connection MonitorClient depends
// on, narrowed so tests can substitute a fake.
type Connection interface {
	Connect(ctx context.Context) error
	SendMessage(ctx context.Context, msgType uint16, body []byte) error
	SetDispatcher(d msgr.Dispatcher)
	State() msgr.FrameState
	Peer() string
	Close() error
}

// OSDMapHandler receives the raw body of every MOSDMap message the
// monitor client is subscribed to; ObjectClient registers one via
// OnOSDMap to keep its own map state current.
type OSDMapHandler func(body []byte)

// Client maintains one healthy connection to the monitor quorum and
// exposes the identity, map subscriptions, and command interface the
// rest of the library is built on (§4.4).
type Client struct {
	cfg    config.Config
	entity cephx.EntityName
	secret cephx.SecretKey

	dial Dialer
	now  func() time.Time
	met  *metrics.Metrics

	mu         sync.RWMutex
	state      State
	conn       Connection
	auth       *cephx.AuthClient
	activeMon  string
	monmap     *MonMap
	subs       map[string]*subState
	huntMult   float64
	hadConnect bool

	tidMu     sync.Mutex
	nextTid   uint64
	commands  map[uint64]*pendingCommand
	poolOps   map[uint64]*pendingPoolOp
	getVers   map[uint64]*pendingGetVersion

	osdHandler atomic.Pointer[OSDMapHandler]

	authNotify  chan struct{}
	monmapNotify chan struct{}
	notifyMu    sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

type subState struct {
	start uint64
	flags uint8
	sent  bool
}

type pendingCommand struct {
	done chan CommandResult
}

type pendingPoolOp struct {
	done chan PoolOpResult
}

type pendingGetVersion struct {
	done chan [2]uint64
}

// New constructs a Client in StateUninit. Call Init to begin hunting.
func New(cfg config.Config, secret cephx.SecretKey, dial Dialer) (*Client, error) {
	entity, err := parseEntityName(cfg.EntityName)
	if err != nil {
		return nil, err
	}
	if dial == nil {
		dial = defaultDialer
	}
	c := &Client{
		cfg:      cfg,
		entity:   entity,
		secret:   secret,
		dial:     dial,
		now:      time.Now,
		subs:     make(map[string]*subState),
		commands: make(map[uint64]*pendingCommand),
		poolOps:  make(map[uint64]*pendingPoolOp),
		getVers:  make(map[uint64]*pendingGetVersion),
		huntMult: cfg.Hunt.MinMultiple,
		stopCh:   make(chan struct{}),
	}
	return c, nil
}

// SetMetrics attaches a metrics sink; nil disables observation.
func (c *Client) SetMetrics(m *metrics.Metrics) { c.met = m }

// SetClock overrides the time source, for deterministic tests (§9).
func (c *Client) SetClock(now func() time.Time) { c.now = now }

func parseEntityName(s string) (cephx.EntityName, error) {
	n, err := cephx.ParseEntityName(s)
	if err != nil {
		return cephx.EntityName{}, raderr.Wrap(raderr.KindState, component, "entity_name", err)
	}
	return n, nil
}

// State reports the client's current lifecycle state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// MonMap returns the most recently installed MonMap, or nil.
func (c *Client) MonMap() *MonMap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.monmap
}

// FSID returns the cluster UUID from the current MonMap.
func (c *Client) FSID() (uuid.UUID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.monmap == nil {
		return uuid.UUID{}, raderr.New(raderr.KindState, component, "no monmap yet")
	}
	return c.monmap.FSID, nil
}

// Entity returns the principal name this client authenticates as, for
// ObjectClient to stamp into request ids.
func (c *Client) Entity() cephx.EntityName { return c.entity }

// GlobalID returns the monitor-assigned cluster-wide client id, zero
// before the first successful authentication.
func (c *Client) GlobalID() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.auth == nil {
		return 0
	}
	return c.auth.Session().GlobalID
}

// Authorizer builds an authorizer for svc using the monitor client's
// authenticated session, for ObjectClient to present when opening an
// OSD connection.
func (c *Client) Authorizer(svc cephx.ServiceID) (*cephx.Authorizer, error) {
	c.mu.RLock()
	auth := c.auth
	c.mu.RUnlock()
	if auth == nil {
		return nil, raderr.New(raderr.KindState, component, "not authenticated")
	}
	return auth.BuildAuthorizer(svc, nil)
}

// AuthClient returns the monitor client's authenticated session, for
// ObjectClient to hand to msgr.NewConnection when opening an OSD
// connection — the session that already holds the OSD service ticket
// Authorizer builds from.
func (c *Client) AuthClient() (*cephx.AuthClient, error) {
	c.mu.RLock()
	auth := c.auth
	c.mu.RUnlock()
	if auth == nil {
		return nil, raderr.New(raderr.KindState, component, "not authenticated")
	}
	return auth, nil
}

// Init starts hunting for a monitor and blocks until the first
// connection, authentication, and MonMap arrival succeed or ctx
// expires.
func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUninit {
		c.mu.Unlock()
		return raderr.New(raderr.KindState, component, "already initialized")
	}
	c.state = StateHunting
	c.mu.Unlock()

	// Default subscriptions: monmap and osdmap, from epoch 0.
	c.Subscribe("monmap", 0, 0)
	c.Subscribe("osdmap", 0, 0)

	if err := c.huntOnce(ctx); err != nil {
		return err
	}

	c.wg.Add(1)
	go c.tickLoop()

	return c.WaitForMonMap(ctx)
}

// WaitForAuth blocks until GlobalID is nonzero or ctx expires.
func (c *Client) WaitForAuth(ctx context.Context) error {
	for {
		if c.GlobalID() != 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return raderr.Wrap(raderr.KindTimeout, component, "wait for auth", ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// WaitForMonMap blocks until a MonMap has been installed or ctx expires.
func (c *Client) WaitForMonMap(ctx context.Context) error {
	for {
		if c.MonMap() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return raderr.Wrap(raderr.KindTimeout, component, "wait for monmap", ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// OnOSDMap registers the handler invoked for every MOSDMap message
// received on the monitor connection. Only one handler is supported;
// ObjectClient is the sole intended caller.
func (c *Client) OnOSDMap(h OSDMapHandler) {
	c.osdHandler.Store(&h)
}

// Dispatch implements msgr.Dispatcher: MonMap replies are decoded and
// installed directly; everything else is routed by tid (commands,
// pool ops, version requests) or forwarded whole to the OSDMap handler.
func (c *Client) Dispatch(msgType uint16, body []byte) {
	switch MsgType(msgType) {
	case MsgMonMap:
		c.handleMonMap(body)
	case MsgMonSubscribeAck:
		// Nothing to correlate: subscriptions aren't tid-keyed.
	case MsgMonCommandAck:
		c.handleCommandAck(body)
	case MsgPoolOpReply:
		c.handlePoolOpReply(body)
	case MsgMonGetVersionReply:
		c.handleGetVersionReply(body)
	case MsgOSDMap:
		if h := c.osdHandler.Load(); h != nil && *h != nil {
			(*h)(body)
		}
	}
}

func (c *Client) handleMonMap(body []byte) {
	d := codec.NewDecoder(body)
	mm, err := DecodeMonMap(d)
	if err != nil {
		logger.Warn("discarding malformed monmap", logger.Err(err))
		return
	}
	c.mu.Lock()
	if c.monmap != nil && mm.Epoch <= c.monmap.Epoch {
		c.mu.Unlock()
		return
	}
	c.monmap = mm
	c.mu.Unlock()
	if c.met != nil {
		c.met.MapEpoch.WithLabelValues("monmap").Set(float64(mm.Epoch))
	}
}

// OnUnhealthy implements msgr.ConnectionOwner: a lost connection
// returns the client to Hunting.
func (c *Client) OnUnhealthy(conn *msgr.Connection, err error) {
	logger.Warn("monitor connection unhealthy, hunting", logger.Err(err))
	c.mu.Lock()
	if c.state == StateConnected {
		c.state = StateHunting
	}
	c.mu.Unlock()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout*time.Duration(len(c.cfg.MonAddrs)+1))
		defer cancel()
		_ = c.huntOnce(ctx)
	}()
}

// Shutdown stops the maintenance task and closes the active
// connection; idempotent.
func (c *Client) Shutdown() error {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.state = StateStopping
		conn := c.conn
		c.mu.Unlock()
		close(c.stopCh)
		if conn != nil {
			_ = conn.Close()
		}
	})
	c.wg.Wait()
	return nil
}

func (c *Client) tickLoop() {
	defer c.wg.Done()
	interval := c.cfg.TickInterval
	if interval <= 0 {
		interval = c.cfg.Hunt.Interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.tick()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Client) tick() {
	c.mu.RLock()
	auth := c.auth
	c.mu.RUnlock()
	if auth == nil {
		return
	}
	due := auth.DueForRenewal(c.now())
	if len(due) == 0 {
		return
	}
	req, err := auth.BuildRenewalRequest(due)
	if err != nil {
		logger.Warn("building ticket renewal request", logger.Err(err))
		return
	}
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CommandTimeout)
	defer cancel()
	if err := conn.SendMessage(ctx, uint16(MsgMonCommand), req); err != nil {
		logger.Warn("sending ticket renewal request", logger.Err(err))
	}
}

// nextTID returns a fresh, client-unique transaction id for commands,
// pool ops, and version requests.
func (c *Client) nextTID() uint64 {
	c.tidMu.Lock()
	defer c.tidMu.Unlock()
	c.nextTid++
	return c.nextTid
}

func defaultDialer(ctx context.Context, owner msgr.ConnectionOwner, auth *cephx.AuthClient, peer string) (Connection, error) {
	conn := msgr.NewConnection(owner, auth, cephx.EntityTypeMon, peer)
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}
