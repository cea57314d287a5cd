package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/moyoez/blendconv/types"
)

// gateway is a scripted notification server. It reads the init frame, waits
// for proceed when set, writes frames and then reads until the client leaves.
type gateway struct {
	srv     *httptest.Server
	inits   chan string
	apiKeys chan string
}

func newGateway(proceed <-chan struct{}, frames ...string) *gateway {
	g := &gateway{inits: make(chan string, 1), apiKeys: make(chan string, 1)}
	upgrader := websocket.Upgrader{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.apiKeys <- r.URL.Query().Get("x-api-key")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, init, err := conn.ReadMessage()
		if err != nil {
			return
		}
		g.inits <- string(init)
		if proceed != nil {
			<-proceed
		}
		for _, f := range frames {
			if f == "<close>" {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
				_ = conn.WriteMessage(websocket.CloseMessage, msg)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	return g
}

func (g *gateway) url() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http")
}

func dialGateway(t *testing.T, g *gateway, onClose func(*Session, error)) *Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Dial(ctx, Options{URL: g.url(), APIKey: "k1", OnClose: onClose})
	require.NoError(t, err)
	return s
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDialSendsInitAndAPIKey(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	g := newGateway(nil)
	defer g.srv.Close()
	s := dialGateway(t, g, nil)
	defer s.Close()

	assert.Equal(t, "k1", <-g.apiKeys)
	assert.JSONEq(t, `{"action":"init"}`, <-g.inits)
	assert.True(t, s.Open())
	assert.Empty(t, s.Token())
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := Dial(context.Background(), Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	assert.ErrorIs(t, err, types.ErrChannelError)

	_, err = Dial(context.Background(), Options{URL: "ftp://example.com"})
	assert.ErrorIs(t, err, types.ErrChannelError)
}

func TestTokenFirstWins(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	proceed := make(chan struct{})
	g := newGateway(proceed,
		`{"connectionId":"c1"}`,
		`{"connectionId":"c2"}`,
		`{"jobStatus":"completed","modelId":"m1"}`,
	)
	defer g.srv.Close()
	s := dialGateway(t, g, nil)
	defer s.Close()
	require.NoError(t, s.Expect("m1"))
	close(proceed)

	token, err := s.WaitToken(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "c1", token)

	// frames are applied in order, so c2 has been seen once the completion is in
	_, err = s.WaitCompletion(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "c1", s.Token())

	token, err = s.WaitToken(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "c1", token)
}

func TestUnparseableFrameClosesSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var closes atomic.Int32
	g := newGateway(nil, "Internal server error")
	defer g.srv.Close()
	s := dialGateway(t, g, func(_ *Session, cause error) {
		closes.Add(1)
		assert.ErrorIs(t, cause, types.ErrProtocolDesync)
	})

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end on desync")
	}
	assert.False(t, s.Open())
	assert.Empty(t, s.Token())
	assert.ErrorIs(t, s.Err(), types.ErrProtocolDesync)

	_, err := s.WaitToken(waitCtx(t))
	assert.ErrorIs(t, err, types.ErrProtocolDesync)

	s.Close()
	require.Eventually(t, func() bool { return closes.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestParseableFramesKeepSessionOpen(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	for _, frame := range []string{`"keepalive"`, `[1,2]`, `42`, `{"connectionId":7}`} {
		t.Run(frame, func(t *testing.T) {
			g := newGateway(nil, frame, `{"connectionId":"c1"}`)
			defer g.srv.Close()
			s := dialGateway(t, g, nil)
			defer s.Close()

			token, err := s.WaitToken(waitCtx(t))
			require.NoError(t, err)
			assert.Equal(t, "c1", token)
			assert.True(t, s.Open())
			assert.NoError(t, s.Err())
		})
	}
}

func TestOversizedFrameEndsSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	huge := `{"connectionId":"` + strings.Repeat("x", int(MaxFrameSize)) + `"}`
	g := newGateway(nil, huge)
	defer g.srv.Close()
	s := dialGateway(t, g, nil)

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end on an oversized frame")
	}
	assert.ErrorIs(t, s.Err(), types.ErrChannelError)
	assert.Empty(t, s.Token())
}

func TestDesyncClearsAssignedToken(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	g := newGateway(nil, `{"connectionId":"c1"}`, "not json")
	defer g.srv.Close()
	s := dialGateway(t, g, nil)

	<-s.Done()
	assert.Empty(t, s.Token())
	assert.ErrorIs(t, s.Err(), types.ErrProtocolDesync)
}

func TestCompletionFallsBackToExpectedResource(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	proceed := make(chan struct{})
	g := newGateway(proceed,
		`{"jobStatus":"pending"}`,
		`{"connectionId":"c1","jobStatus":"completed"}`,
	)
	defer g.srv.Close()
	s := dialGateway(t, g, nil)
	defer s.Close()
	require.NoError(t, s.Expect("m1"))
	close(proceed)

	c, err := s.WaitCompletion(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "m1", c.ResourceID)
	assert.NoError(t, c.Err)
	// a relayed job record is not a token frame
	assert.Empty(t, s.Token())
}

func TestCompletionForOtherResourceIsSkipped(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	proceed := make(chan struct{})
	g := newGateway(proceed,
		`{"jobStatus":"completed","modelId":"other"}`,
		`{"jobStatus":"completed","modelId":"m1"}`,
	)
	defer g.srv.Close()
	s := dialGateway(t, g, nil)
	defer s.Close()
	require.NoError(t, s.Expect("m1"))
	close(proceed)

	c, err := s.WaitCompletion(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "m1", c.ResourceID)
}

func TestFailedJobStatus(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	proceed := make(chan struct{})
	g := newGateway(proceed, `{"jobStatus":"failed","modelId":"m1","error":"bad mesh"}`)
	defer g.srv.Close()
	s := dialGateway(t, g, nil)
	defer s.Close()
	require.NoError(t, s.Expect("m1"))
	close(proceed)

	c, err := s.WaitCompletion(waitCtx(t))
	require.NoError(t, err)
	assert.ErrorIs(t, c.Err, types.ErrConversionFailed)
	assert.Contains(t, c.Err.Error(), "bad mesh")
}

func TestPeerCloseEndsWaits(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	proceed := make(chan struct{})
	g := newGateway(proceed, `{"connectionId":"c1"}`, "<close>")
	defer g.srv.Close()
	s := dialGateway(t, g, nil)
	require.NoError(t, s.Expect("m1"))
	close(proceed)

	_, err := s.WaitCompletion(waitCtx(t))
	assert.ErrorIs(t, err, types.ErrChannelError)
	assert.False(t, s.Open())
	assert.Empty(t, s.Token())
	assert.ErrorIs(t, s.Expect("m2"), types.ErrChannelError)
}

func TestWaitCompletionHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	g := newGateway(nil)
	defer g.srv.Close()
	s := dialGateway(t, g, nil)
	defer s.Close()
	require.NoError(t, s.Expect("m1"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.WaitCompletion(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, s.Open())
}

func TestCloseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var closes atomic.Int32
	g := newGateway(nil)
	defer g.srv.Close()
	s := dialGateway(t, g, func(*Session, error) { closes.Add(1) })

	s.Close()
	s.Close()
	assert.Equal(t, int32(1), closes.Load())
	assert.False(t, s.Open())
	assert.ErrorIs(t, s.Err(), types.ErrChannelError)

	var nilSession *Session
	assert.NotPanics(t, nilSession.Close)
	assert.False(t, nilSession.Open())
}
