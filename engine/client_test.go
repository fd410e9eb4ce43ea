package engine

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// pipeDialer hands out the client end of a net.Pipe and runs serve with the
// server end.
func pipeDialer(serve func(net.Conn)) Dialer {
	return func(_ context.Context, _ string) (net.Conn, error) {
		client, server := net.Pipe()
		go serve(server)
		return client, nil
	}
}

func refusingDialer() Dialer {
	return func(_ context.Context, _ string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}
}

// discardServer keeps reading until the peer closes, replying never.
func discardServer(conn net.Conn) {
	buf := make([]byte, readBufSize)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

func newTestClient(t *testing.T, idx int, rate float64, strict bool, dial Dialer) (*SimClient, *Metrics, chan struct{}, chan struct{}) {
	t.Helper()

	m := NewMetrics(1000, 42)
	startC := make(chan struct{})
	stopC := make(chan struct{})
	c := NewSimClient(idx, "test:0", rate, strict, m, dial, startC, stopC, zap.NewNop())

	return c, m, startC, stopC
}

func TestClientConnectFailure(t *testing.T) {
	c, m, _, _ := newTestClient(t, 0, 1, false, refusingDialer())

	ok := c.Connect(context.Background())

	assert.False(t, ok)
	assert.Equal(t, int64(1), m.Counters().ConnectionsFailed)
	assert.Equal(t, int64(0), m.Counters().ConnectionsOK)
}

func TestClientLoginDrainsAndSendsToken(t *testing.T) {
	tokenCh := make(chan string, 1)

	dial := pipeDialer(func(conn net.Conn) {
		// Unsolicited welcome banner, then capture the login token.
		_, _ = conn.Write([]byte("welcome\n"))

		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err == nil {
			tokenCh <- string(buf[:n])
		}

		discardServer(conn)
	})

	c, m, _, _ := newTestClient(t, 3, 1, false, dial)
	require.True(t, c.Connect(context.Background()))

	c.Login()

	select {
	case token := <-tokenCh:
		assert.Equal(t, "bot_3", token)
	case <-time.After(time.Second):
		t.Fatal("server never received login token")
	}

	counters := m.Counters()
	assert.Equal(t, int64(8), counters.BytesRecv)
	assert.Equal(t, int64(len("bot_3")), counters.BytesSent)
	assert.True(t, c.running.Load())
}

func TestClientSenderPacing(t *testing.T) {
	c, m, startC, stopC := newTestClient(t, 0, 10, false, pipeDialer(discardServer))
	require.True(t, c.Connect(context.Background()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run()
	}()

	close(startC)
	time.Sleep(time.Second)
	close(stopC)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not terminate")
	}

	sent := m.Counters().RequestsSent
	assert.GreaterOrEqual(t, sent, int64(9))
	assert.LessOrEqual(t, sent, int64(11))
}

func TestClientIdleRateSendsNothing(t *testing.T) {
	c, m, startC, stopC := newTestClient(t, 0, 0, false, pipeDialer(discardServer))
	require.True(t, c.Connect(context.Background()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run()
	}()

	close(startC)
	time.Sleep(100 * time.Millisecond)
	close(stopC)
	<-done

	assert.Equal(t, int64(0), m.Counters().RequestsSent)
}

func TestClientPendingLooseOverwrites(t *testing.T) {
	c, _, _, _ := newTestClient(t, 0, 1, false, refusingDialer())

	t1 := time.Now().Add(-time.Second)
	t2 := time.Now()

	c.markProbe(t1)
	c.markProbe(t2)

	got, ok := c.takeProbe()
	require.True(t, ok)
	assert.Equal(t, t2, got)

	_, ok = c.takeProbe()
	assert.False(t, ok)
}

func TestClientPendingStrictFIFO(t *testing.T) {
	c, _, _, _ := newTestClient(t, 0, 1, true, refusingDialer())

	t1 := time.Now().Add(-time.Second)
	t2 := time.Now()

	c.markProbe(t1)
	c.markProbe(t2)

	got, ok := c.takeProbe()
	require.True(t, ok)
	assert.Equal(t, t1, got)

	got, ok = c.takeProbe()
	require.True(t, ok)
	assert.Equal(t, t2, got)
}

func TestClientReaderResolvesPendingProbe(t *testing.T) {
	serverReady := make(chan net.Conn, 1)

	dial := pipeDialer(func(conn net.Conn) {
		serverReady <- conn
	})

	c, m, _, _ := newTestClient(t, 0, 1, false, dial)
	require.True(t, c.Connect(context.Background()))

	server := <-serverReady

	c.markProbe(time.Now().Add(-10 * time.Millisecond))

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		c.readerLoop()
	}()

	_, err := server.Write([]byte("x"))
	require.NoError(t, err)
	_ = server.Close()

	select {
	case <-readerDone:
	case <-time.After(time.Second):
		t.Fatal("reader did not exit on close")
	}

	counters := m.Counters()
	assert.Equal(t, int64(1), counters.ResponsesObserved)
	assert.Equal(t, int64(1), counters.BytesRecv)
	assert.False(t, c.running.Load())

	ps := m.LivePercentiles(50)
	require.NotNil(t, ps[50])
	assert.Greater(t, *ps[50], 0.0)
}

func TestClientReaderStopsOnEOF(t *testing.T) {
	dial := pipeDialer(func(conn net.Conn) {
		_ = conn.Close()
	})

	c, _, _, _ := newTestClient(t, 0, 1, false, dial)
	require.True(t, c.Connect(context.Background()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.readerLoop()
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader did not notice peer close")
	}

	assert.False(t, c.running.Load())
}

func TestClientResponsesNeverExceedRequests(t *testing.T) {
	// Echo one byte back for every read.
	dial := pipeDialer(func(conn net.Conn) {
		buf := make([]byte, readBufSize)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
			if _, err := conn.Write([]byte("y")); err != nil {
				return
			}
		}
	})

	c, m, startC, stopC := newTestClient(t, 0, 20, true, dial)
	require.True(t, c.Connect(context.Background()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run()
	}()

	close(startC)
	time.Sleep(500 * time.Millisecond)
	close(stopC)
	<-done

	counters := m.Counters()
	assert.LessOrEqual(t, counters.ResponsesObserved, counters.RequestsSent)
	assert.Greater(t, counters.RequestsSent, int64(0))
}

func TestNetDialerRefusedEndpoint(t *testing.T) {
	// Grab a port that nothing listens on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	dial := NetDialer(500 * time.Millisecond)
	conn, err := dial(context.Background(), addr)

	assert.Error(t, err)
	if conn != nil {
		_ = conn.Close()
	}
}
