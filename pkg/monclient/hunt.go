package monclient

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/radosclient/internal/logger"
	"github.com/marmos91/radosclient/pkg/cephx"
	"github.com/marmos91/radosclient/pkg/msgr"
	"github.com/marmos91/radosclient/pkg/raderr"
)

// candidate is one dialable monitor: an address to connect to and the
// weight hunting uses to prefer it within its priority tier.
type candidate struct {
	name   string
	addr   string
	weight uint16
}

// huntCandidates groups dialable monitors into tiers ordered by
// ascending priority (§4.4). Before the first MonMap arrives, every
// bootstrap address is a single, equally weighted tier.
func (c *Client) huntCandidates() [][]candidate {
	c.mu.RLock()
	mm := c.monmap
	c.mu.RUnlock()

	if mm == nil {
		tier := make([]candidate, 0, len(c.cfg.MonAddrs))
		for _, addr := range c.cfg.MonAddrs {
			tier = append(tier, candidate{name: addr, addr: addr, weight: 0})
		}
		return [][]candidate{tier}
	}

	tiers := mm.ByPriority()
	out := make([][]candidate, 0, len(tiers))
	for _, idxs := range tiers {
		var tier []candidate
		for _, i := range idxs {
			mon := mm.Mons[i]
			addr := primaryAddr(mon)
			if addr == "" {
				continue
			}
			tier = append(tier, candidate{name: mon.Name, addr: addr, weight: mon.Weight})
		}
		if len(tier) > 0 {
			out = append(out, tier)
		}
	}
	return out
}

// primaryAddr picks the first address in a monitor's AddrVec, the one
// hunting dials. The client doesn't distinguish msgr2 from legacy
// addresses here; Connect negotiates the wire version itself.
func primaryAddr(mon MonInfo) string {
	for _, a := range mon.Addrs {
		return a.String()
	}
	return ""
}

// weightedOrder returns tier shuffled so that higher-weight candidates
// are more likely, but not guaranteed, to sort earlier: a sequential
// weighted draw without replacement. All-zero weights degrade to a
// uniform shuffle, matching the bootstrap case where no weight is
// known yet (§4.4).
func weightedOrder(tier []candidate) []candidate {
	pool := append([]candidate(nil), tier...)
	out := make([]candidate, 0, len(pool))
	for len(pool) > 0 {
		total := 0.0
		for _, cand := range pool {
			total += float64(cand.weight)
		}
		var pick int
		if total <= 0 {
			pick = rand.N(len(pool))
		} else {
			r := rand.Float64() * total
			acc := 0.0
			pick = len(pool) - 1
			for i, cand := range pool {
				acc += float64(cand.weight)
				if r < acc {
					pick = i
					break
				}
			}
		}
		out = append(out, pool[pick])
		pool = append(pool[:pick], pool[pick+1:]...)
	}
	return out
}

// authMethod resolves the configured preferred auth method to a
// cephx.AuthMethod, defaulting to CephX when none is configured.
func (c *Client) authMethod() cephx.AuthMethod {
	for _, m := range c.cfg.SupportedAuthMethods {
		switch m {
		case "cephx":
			return cephx.AuthMethodCephX
		case "none":
			return cephx.AuthMethodNone
		}
	}
	return cephx.AuthMethodCephX
}

// huntOnce runs hunt rounds, each trying every priority tier in turn,
// until one monitor connects and authenticates or ctx expires. A round
// dials up to Hunt.Parallel candidates per tier concurrently; the
// first to finish its handshake wins and the rest are closed (§4.4).
// Each round re-gathers the full candidate list fresh rather than
// excluding monitors a prior round failed to reach — backoff, not
// exclusion, is what keeps a dead monitor from being hot-looped.
func (c *Client) huntOnce(ctx context.Context) error {
	for {
		conn, auth, name, err := c.attemptRound(ctx)
		if err == nil {
			c.installConnection(conn, auth, name)
			return nil
		}
		if ctx.Err() != nil {
			return raderr.Wrap(raderr.KindTimeout, component, "hunting for monitor", ctx.Err())
		}
		logger.Warn("hunt round exhausted every candidate", logger.Err(err))
		interval := c.nextHuntInterval(false)
		select {
		case <-ctx.Done():
			return raderr.Wrap(raderr.KindTimeout, component, "hunting for monitor", ctx.Err())
		case <-time.After(interval):
		}
	}
}

func (c *Client) attemptRound(ctx context.Context) (*msgr.Connection, *cephx.AuthClient, string, error) {
	for _, tier := range c.huntCandidates() {
		ordered := weightedOrder(tier)
		parallel := c.cfg.Hunt.Parallel
		if parallel <= 0 {
			parallel = 1
		}
		if parallel > len(ordered) {
			parallel = len(ordered)
		}

		roundCtx, cancel := context.WithCancel(ctx)
		g, gctx := errgroup.WithContext(roundCtx)
		g.SetLimit(parallel)

		type winner struct {
			conn *msgr.Connection
			auth *cephx.AuthClient
			name string
		}
		results := make(chan winner, len(ordered))

		for _, cand := range ordered {
			cand := cand
			g.Go(func() error {
				auth := cephx.NewAuthClient(c.entity, c.secret, c.authMethod())
				conn := msgr.NewConnection(c, auth, cephx.EntityTypeMon, cand.addr)
				dialCtx, dialCancel := context.WithTimeout(gctx, c.cfg.ConnectTimeout)
				defer dialCancel()
				if err := conn.Connect(dialCtx); err != nil {
					logger.Debug("hunt candidate failed", logger.Err(err))
					return nil
				}
				select {
				case results <- winner{conn: conn, auth: auth, name: cand.name}:
				default:
				}
				cancel()
				return nil
			})
		}
		_ = g.Wait()
		cancel()
		close(results)

		var won *winner
		for w := range results {
			w := w
			if won == nil {
				won = &w
			} else {
				_ = w.conn.Close()
			}
		}
		if won != nil {
			c.huntMult = c.cfg.Hunt.MinMultiple
			return won.conn, won.auth, won.name, nil
		}
	}
	return nil, nil, "", raderr.New(raderr.KindTransport, component, "no monitor candidate connected")
}

// installConnection adopts a freshly authenticated connection as the
// client's active one, moves state to Connected, and re-sends every
// outstanding subscription so the new monitor knows what to push.
func (c *Client) installConnection(conn *msgr.Connection, auth *cephx.AuthClient, name string) {
	conn.SetDispatcher(c)

	c.mu.Lock()
	if c.conn != nil {
		old := c.conn
		c.mu.Unlock()
		_ = old.Close()
		c.mu.Lock()
	}
	c.conn = conn
	c.auth = auth
	c.activeMon = name
	c.state = StateConnected
	c.hadConnect = true
	c.mu.Unlock()

	c.resendSubscriptions()
}

// nextHuntInterval advances the accumulated backoff multiplier after a
// round outcome and returns the delay before the next round (§4.4):
// Interval * multiplier, multiplier clamped to [MinMultiple,
// MaxMultiple] and reset on success.
func (c *Client) nextHuntInterval(success bool) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.huntMult = c.cfg.Hunt.MinMultiple
	} else {
		c.huntMult *= c.cfg.Hunt.IntervalBackoff
		if c.huntMult > c.cfg.Hunt.MaxMultiple {
			c.huntMult = c.cfg.Hunt.MaxMultiple
		}
	}
	return time.Duration(float64(c.cfg.Hunt.Interval) * c.huntMult)
}
