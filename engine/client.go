package engine

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	probeCommand = "/users"

	drainAttempts = 3
	drainTimeout  = 50 * time.Millisecond
	readBufSize   = 4096
	senderNap     = 5 * time.Millisecond
)

// Dialer opens the byte-stream connection a client talks over. Injected so
// tests can refuse connections or serve canned traffic.
type Dialer func(ctx context.Context, addr string) (net.Conn, error)

// NetDialer returns the production TCP dialer.
func NetDialer(timeout time.Duration) Dialer {
	return func(ctx context.Context, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: timeout}

		return d.DialContext(ctx, "tcp", addr)
	}
}

// SimClient is one simulated participant: it owns a single connection,
// performs the login handshake, then runs a reader and a rate-limited sender
// concurrently until the stop signal fires or the connection closes.
//
// The pending slice tracks probes whose response has not arrived yet. In the
// default loose mode it holds at most one timestamp and a new probe silently
// overwrites a still-unanswered one, so a late reply gets attributed to the
// newest send. Strict mode queues timestamps FIFO and resolves the oldest on
// each read instead.
type SimClient struct {
	idx     int
	addr    string
	rate    float64
	strict  bool
	metrics *Metrics
	dial    Dialer
	log     *zap.Logger

	startC <-chan struct{}
	stopC  <-chan struct{}

	conn    net.Conn
	running atomic.Bool

	pendingMu sync.Mutex
	pending   []time.Time
}

func NewSimClient(idx int, addr string, rate float64, strict bool, metrics *Metrics, dial Dialer, startC, stopC <-chan struct{}, log *zap.Logger) *SimClient {
	return &SimClient{
		idx:     idx,
		addr:    addr,
		rate:    rate,
		strict:  strict,
		metrics: metrics,
		dial:    dial,
		log:     log,
		startC:  startC,
		stopC:   stopC,
	}
}

// Connect attempts to open the connection. A failure is counted and final:
// the client takes no further part in the run.
func (c *SimClient) Connect(ctx context.Context) bool {
	conn, err := c.dial(ctx, c.addr)
	if err != nil {
		c.metrics.ConnFailed()
		c.log.Debug("connect failed", zap.Int("client", c.idx), zap.Error(err))

		return false
	}

	c.conn = conn
	c.running.Store(true)
	c.metrics.ConnOK()

	return true
}

// Login drains any unsolicited welcome bytes with short bounded reads, then
// sends the identity token as raw bytes without a delimiter. Failures stay
// inside the client.
func (c *SimClient) Login() {
	buf := make([]byte, readBufSize)

	for range drainAttempts {
		_ = c.conn.SetReadDeadline(time.Now().Add(drainTimeout))

		n, err := c.conn.Read(buf)
		if n > 0 {
			c.metrics.AddBytesRecv(n)
		}
		if err != nil || n == 0 {
			break
		}
	}

	_ = c.conn.SetReadDeadline(time.Time{})

	token := "bot_" + strconv.Itoa(c.idx)
	if _, err := c.conn.Write([]byte(token)); err != nil {
		c.running.Store(false)
		c.log.Debug("login failed", zap.Int("client", c.idx), zap.Error(err))

		return
	}

	c.metrics.AddBytesSent(len(token))
}

// Run drives the Active and Closing states: reader and sender run until the
// first of them finishes, then the connection is closed, which unblocks the
// other. Returns once both loops have exited.
func (c *SimClient) Run() {
	done := make(chan struct{}, 2)

	go func() {
		c.readerLoop()
		done <- struct{}{}
	}()
	go func() {
		c.senderLoop()
		done <- struct{}{}
	}()

	<-done
	_ = c.conn.Close()
	<-done
}

func (c *SimClient) markProbe(t time.Time) {
	c.pendingMu.Lock()

	if !c.strict {
		c.pending = c.pending[:0]
	}
	c.pending = append(c.pending, t)

	c.pendingMu.Unlock()
}

func (c *SimClient) takeProbe() (time.Time, bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if len(c.pending) == 0 {
		return time.Time{}, false
	}

	t := c.pending[0]
	c.pending = c.pending[1:]

	return t, true
}

// readerLoop awaits byte arrivals. Any non-empty read counts toward
// bytes_recv and resolves the pending probe by presence alone; there is no
// correlation by content. EOF or a read error ends the client.
func (c *SimClient) readerLoop() {
	buf := make([]byte, readBufSize)

	for c.running.Load() {
		select {
		case <-c.stopC:
			return
		default:
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			c.metrics.AddBytesRecv(n)

			if started, ok := c.takeProbe(); ok {
				c.metrics.ObserveTTFB(time.Since(started))
			}
		}

		if err != nil {
			c.running.Store(false)
			return
		}
	}
}

// senderLoop waits for the shared start signal, then transmits the probe
// command on a drift-corrected fixed-interval schedule: next advances by
// exactly one interval per send and never resets to "now", so the average
// rate holds under scheduling jitter. Naps between checks are capped so the
// loop neither busy-waits nor overshoots the next slot.
func (c *SimClient) senderLoop() {
	select {
	case <-c.startC:
	case <-c.stopC:
		return
	}

	if c.rate <= 0 {
		// Idle client: hold the connection open until stop.
		<-c.stopC
		return
	}

	interval := time.Duration(float64(time.Second) / c.rate)
	next := time.Now()

	for c.running.Load() {
		select {
		case <-c.stopC:
			return
		default:
		}

		if !time.Now().Before(next) {
			sentAt := time.Now()

			if _, err := c.conn.Write([]byte(probeCommand)); err != nil {
				c.running.Store(false)
				c.log.Debug("probe send failed", zap.Int("client", c.idx), zap.Error(err))

				return
			}

			c.metrics.AddBytesSent(len(probeCommand))
			c.metrics.ProbeSent()
			c.markProbe(sentAt)

			next = next.Add(interval)
		}

		nap := senderNap
		if until := time.Until(next); until < nap {
			nap = max(until, 0)
		}

		select {
		case <-c.stopC:
			return
		case <-time.After(nap):
		}
	}
}
